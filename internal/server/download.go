package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"path"
	"strconv"
	"strings"
	"time"
)

// inlineExtensions are served without an attachment disposition so
// browsers can render them in place.
var inlineExtensions = map[string]bool{
	".jpg": true, ".jpeg": true, ".png": true, ".gif": true, ".avif": true,
	".mp4": true, ".mov": true, ".txt": true, ".html": true, ".js": true,
	".css": true, ".json": true, ".yaml": true, ".yml": true,
}

// downloadHandler handles GET /api/download/{id}/{index}.
//
// The index addresses the record's file list by position, which is why
// the stored list order is significant. The special index "message"
// returns the record's message as plain text. A single Range request is
// honored with a 206; multi-range or unsatisfiable ranges fall back to
// the full object.
func (s *Server) downloadHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	rest := strings.TrimPrefix(r.URL.Path, "/api/download/")
	parts := strings.Split(rest, "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}

	id, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		http.Error(w, "bad id", http.StatusBadRequest)
		return
	}

	rec, err := s.records.Get(r.Context(), id)
	if err != nil {
		rid := RequestIDFromContext(r.Context())
		log.Printf("rid=%s msg=%q id=%d err=%v", rid, "get_record_failed", id, err)
		http.Error(w, "db error", http.StatusInternalServerError)
		return
	}
	if rec == nil {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}

	if parts[1] == "message" {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = io.WriteString(w, rec.Message)
		return
	}

	index, err := strconv.Atoi(parts[1])
	if err != nil || index < 0 || index >= len(rec.Files) {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	filePath := rec.Files[index].Path
	if filePath == "" {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Minute)
	defer cancel()

	info, err := s.blobs.Stat(ctx, filePath)
	if err != nil {
		if errors.Is(err, errBlobNotFound) {
			writeJSONError(w, http.StatusNotFound, "file not found")
			return
		}
		http.Error(w, "storage error", http.StatusBadGateway)
		return
	}

	start, end := int64(0), int64(-1)
	ranged := false
	if hdr := r.Header.Get("Range"); hdr != "" {
		start, end, ranged = parseRange(hdr, info.Size)
	}

	obj, err := s.blobs.Get(ctx, filePath, start, end)
	if err != nil {
		http.Error(w, "storage error", http.StatusBadGateway)
		return
	}
	defer func() { _ = obj.Close() }()

	contentType := info.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Accept-Ranges", "bytes")

	basename := path.Base(filePath)
	if i := strings.Index(basename, "?"); i >= 0 {
		basename = basename[:i]
	}
	if !inlineExtensions[strings.ToLower(path.Ext(basename))] {
		w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, basename))
	}

	if ranged {
		w.Header().Set("Content-Range", fmt.Sprintf("bytes %d-%d/%d", start, end, info.Size))
		w.Header().Set("Content-Length", strconv.FormatInt(end-start+1, 10))
		w.WriteHeader(http.StatusPartialContent)
	} else {
		w.Header().Set("Content-Length", strconv.FormatInt(info.Size, 10))
		w.WriteHeader(http.StatusOK)
	}

	GetMetrics().RecordDownload()
	_, _ = io.Copy(w, obj)
}

// parseRange resolves a single "bytes=" Range header against the object
// size, returning inclusive offsets. Anything it cannot satisfy (multi
// ranges, malformed specs, out-of-bounds starts) reports ok=false and
// the caller serves the full object.
func parseRange(hdr string, size int64) (start, end int64, ok bool) {
	spec, found := strings.CutPrefix(hdr, "bytes=")
	if !found || strings.Contains(spec, ",") || size <= 0 {
		return 0, -1, false
	}

	dash := strings.Index(spec, "-")
	if dash < 0 {
		return 0, -1, false
	}
	startStr, endStr := spec[:dash], spec[dash+1:]

	// Suffix form: bytes=-N is the last N bytes.
	if startStr == "" {
		n, err := strconv.ParseInt(endStr, 10, 64)
		if err != nil || n <= 0 {
			return 0, -1, false
		}
		if n > size {
			n = size
		}
		return size - n, size - 1, true
	}

	start, err := strconv.ParseInt(startStr, 10, 64)
	if err != nil || start < 0 || start >= size {
		return 0, -1, false
	}
	if endStr == "" {
		return start, size - 1, true
	}

	end, err = strconv.ParseInt(endStr, 10, 64)
	if err != nil || end < start {
		return 0, -1, false
	}
	if end >= size {
		end = size - 1
	}
	return start, end, true
}
