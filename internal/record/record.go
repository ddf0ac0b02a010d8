// Package record owns the upload_record table: the metadata row written
// for every upload event, the serialized file list stored inside it, and
// the repository operations that keep those rows consistent with the
// blob store they reference.
package record

import (
	"encoding/json"
	"time"
)

// FileItem describes one stored object belonging to an upload record.
// Path is the blob store key and is the only link between the metadata
// row and the stored bytes.
type FileItem struct {
	Name      string `json:"name"`
	Size      int64  `json:"size"`
	Path      string `json:"path"`
	Thumbnail string `json:"thumbnail"`
}

// UploadRecord is the metadata for a single upload event. Rows are
// created once and never updated; they are removed by Delete or
// PurgeBefore.
type UploadRecord struct {
	ID       int64      `json:"id"`
	Uploader string     `json:"uploader"`
	CTime    time.Time  `json:"ctime"`
	Size     int64      `json:"size"`
	Files    []FileItem `json:"files"`
	Message  string     `json:"message"`
}

// normalizeFiles returns a copy of files with zero-value entries dropped.
// The stored form never contains placeholder entries, so positional
// download indexes always point at a real file.
func normalizeFiles(files []FileItem) []FileItem {
	out := make([]FileItem, 0, len(files))
	for _, f := range files {
		if f.Name == "" && f.Path == "" && f.Size == 0 && f.Thumbnail == "" {
			continue
		}
		out = append(out, f)
	}
	return out
}

// encodeFiles serializes the file list for the files column.
func encodeFiles(files []FileItem) (string, error) {
	b, err := json.Marshal(normalizeFiles(files))
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// decodeFiles parses the files column. Malformed content degrades to an
// empty list rather than failing the read; null entries are dropped.
func decodeFiles(raw string) []FileItem {
	var entries []*FileItem
	if err := json.Unmarshal([]byte(raw), &entries); err != nil {
		return []FileItem{}
	}
	out := make([]FileItem, 0, len(entries))
	for _, e := range entries {
		if e == nil {
			continue
		}
		out = append(out, *e)
	}
	return out
}

// timeLayouts are the textual forms a ctime column may come back in,
// depending on the driver. Postgres scans straight into time.Time;
// sqlite returns the CURRENT_TIMESTAMP default as text.
var timeLayouts = []string{
	"2006-01-02 15:04:05",
	time.RFC3339Nano,
	time.RFC3339,
}

// coerceTime converts a scanned ctime value into an absolute instant.
// Unrecognised values yield the zero time.
func coerceTime(v any) time.Time {
	switch t := v.(type) {
	case time.Time:
		return t.UTC()
	case string:
		return parseTime(t)
	case []byte:
		return parseTime(string(t))
	case int64:
		return time.Unix(t, 0).UTC()
	default:
		return time.Time{}
	}
}

func parseTime(s string) time.Time {
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}

func filePaths(files []FileItem) []string {
	paths := make([]string, 0, len(files))
	for _, f := range files {
		paths = append(paths, f.Path)
	}
	return paths
}
