package server

import (
	"context"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"os"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"file-drop/internal/record"
)

// uploadResp is the JSON response returned after a successful upload.
type uploadResp struct {
	Record *record.UploadRecord `json:"record"`
}

// thumbnail and message parts are inline form values, not blobs; keep
// them bounded so a mislabelled file part cannot balloon memory.
const (
	maxThumbnailBytes = 256 << 10
	maxMessageBytes   = 1 << 20
)

// maxUploadBytes reads the DROP_MAX_UPLOAD_BYTES environment variable
// and returns the maximum allowed request size in bytes. Returns 0 if
// not set (meaning no limit).
func maxUploadBytes() (int64, error) {
	raw := os.Getenv("DROP_MAX_UPLOAD_BYTES")
	if raw == "" {
		return 0, nil // no limit configured
	}
	return strconv.ParseInt(raw, 10, 64)
}

// uploadHandler handles POST /api/upload multipart requests.
//
// Form fields: "files" (repeated, binary), "thumbnails" (repeated,
// paired with files by position), "message" (optional text). The
// uploader comes from the X-Uploader header, defaulting to "unknown".
// Each file part streams straight to the blob store under a fresh
// uploads/{uuid}/ prefix; once every put has finished the metadata row
// is created in one insert. If the insert fails, the already-stored
// blobs stay behind as unreferenced orphans; there is deliberately no
// rollback that could leave a row pointing at missing blobs.
func (s *Server) uploadHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	limit, err := maxUploadBytes()
	if err != nil {
		http.Error(w, "server misconfigured", http.StatusInternalServerError)
		return
	}
	if limit > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, limit)
	}

	uploader := strings.TrimSpace(r.Header.Get("X-Uploader"))
	if uploader == "" {
		uploader = "unknown"
	}

	mr, err := r.MultipartReader()
	if err != nil {
		http.Error(w, "bad multipart", http.StatusBadRequest)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Minute)
	defer cancel()

	prefix := "uploads/" + uuid.NewString()

	var (
		files      []record.FileItem
		thumbnails []string
		message    string
	)

	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			http.Error(w, "bad multipart", http.StatusBadRequest)
			return
		}

		switch part.FormName() {
		case "files":
			if part.FileName() == "" {
				// Not an actual file entry; mirror form parsing and skip it.
				_ = part.Close()
				continue
			}
			// Base strips any client-supplied directory components, so the
			// object key always stays under this upload's prefix.
			name := path.Base(part.FileName())
			if name == "." || name == ".." || name == "/" {
				_ = part.Close()
				http.Error(w, "bad file name", http.StatusBadRequest)
				return
			}
			contentType := part.Header.Get("Content-Type")
			if contentType == "" {
				contentType = "application/octet-stream"
			}
			objectPath := prefix + "/" + name

			n, err := s.blobs.Put(ctx, objectPath, part, -1, contentType)
			_ = part.Close()
			if err != nil {
				rid := RequestIDFromContext(r.Context())
				log.Printf("rid=%s msg=%q path=%s err=%v", rid, "putobject_failed", objectPath, err)

				// If MaxBytesReader tripped, surface 413.
				if _, ok := err.(*http.MaxBytesError); ok {
					http.Error(w, "file too large", http.StatusRequestEntityTooLarge)
					return
				}
				http.Error(w, "upload failed", http.StatusBadGateway)
				return
			}

			files = append(files, record.FileItem{
				Name: name,
				Size: n,
				Path: objectPath,
			})

		case "thumbnails":
			v, err := readFormValue(part, maxThumbnailBytes)
			if err != nil {
				http.Error(w, "bad multipart", http.StatusBadRequest)
				return
			}
			thumbnails = append(thumbnails, v)

		case "message":
			v, err := readFormValue(part, maxMessageBytes)
			if err != nil {
				http.Error(w, "bad multipart", http.StatusBadRequest)
				return
			}
			message = v

		default:
			_ = part.Close()
		}
	}

	if len(files) == 0 && message == "" {
		writeJSONError(w, http.StatusBadRequest, "no files or message")
		return
	}

	// Thumbnails pair with files by position; extras are ignored.
	for i := range files {
		if i < len(thumbnails) {
			files[i].Thumbnail = thumbnails[i]
		}
	}

	var totalSize int64
	for _, f := range files {
		totalSize += f.Size
	}

	_, rec, err := s.records.Create(ctx, uploader, totalSize, files, message)
	if err != nil {
		rid := RequestIDFromContext(r.Context())
		log.Printf("rid=%s msg=%q err=%v", rid, "create_record_failed", err)
		http.Error(w, "db error", http.StatusInternalServerError)
		return
	}

	GetMetrics().RecordUpload(totalSize)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(uploadResp{Record: rec})
}

// readFormValue drains a small text part, erroring if it exceeds limit.
func readFormValue(part io.ReadCloser, limit int64) (string, error) {
	defer func() { _ = part.Close() }()
	b, err := io.ReadAll(io.LimitReader(part, limit+1))
	if err != nil {
		return "", err
	}
	if int64(len(b)) > limit {
		return "", io.ErrShortBuffer
	}
	return string(b), nil
}

func writeJSONError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
