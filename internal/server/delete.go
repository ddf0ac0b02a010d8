package server

import (
	"encoding/json"
	"log"
	"net/http"
)

type deleteReq struct {
	ID int64 `json:"id"`
}

type purgeReq struct {
	BeforeID int64 `json:"beforeId"`
}

// deleteHandler handles POST /api/delete with body {"id": N}.
// Deleting an id that no longer exists still answers ok: the caller's
// goal state (no such record) already holds.
func (s *Server) deleteHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req deleteReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	if req.ID <= 0 {
		http.Error(w, "bad id", http.StatusBadRequest)
		return
	}

	if err := s.records.Delete(r.Context(), req.ID); err != nil {
		rid := RequestIDFromContext(r.Context())
		log.Printf("rid=%s msg=%q id=%d err=%v", rid, "delete_failed", req.ID, err)
		http.Error(w, "db error", http.StatusInternalServerError)
		return
	}

	GetMetrics().RecordDelete()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(map[string]bool{"ok": true})
}

// purgeHandler handles POST /api/purge with body {"beforeId": N}.
// Every record with id below the threshold is removed together with its
// blobs; re-running the same purge is a no-op.
func (s *Server) purgeHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req purgeReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	if req.BeforeID <= 0 {
		http.Error(w, "bad beforeId", http.StatusBadRequest)
		return
	}

	if err := s.records.PurgeBefore(r.Context(), req.BeforeID); err != nil {
		rid := RequestIDFromContext(r.Context())
		log.Printf("rid=%s msg=%q before_id=%d err=%v", rid, "purge_failed", req.BeforeID, err)
		http.Error(w, "db error", http.StatusInternalServerError)
		return
	}

	GetMetrics().RecordPurge()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(map[string]bool{"ok": true})
}
