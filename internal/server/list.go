package server

import (
	"encoding/json"
	"log"
	"net/http"
	"strconv"

	"file-drop/internal/record"
)

// listHandler handles GET /api/list?beforeId={id}.
// Without a cursor it returns the newest page; with one, the page of
// records strictly older than the cursor. A malformed or non-positive
// beforeId is treated as absent, matching the cursor contract.
func (s *Server) listHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var beforeID int64
	if raw := r.URL.Query().Get("beforeId"); raw != "" {
		if v, err := strconv.ParseInt(raw, 10, 64); err == nil && v > 0 {
			beforeID = v
		}
	}

	records, err := s.records.List(r.Context(), beforeID)
	if err != nil {
		rid := RequestIDFromContext(r.Context())
		log.Printf("rid=%s msg=%q err=%v", rid, "list_failed", err)
		http.Error(w, "db error", http.StatusInternalServerError)
		return
	}
	if records == nil {
		records = []record.UploadRecord{}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(records)
}
