package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"file-drop/internal/record"
)

func TestList_ReturnsRecords(t *testing.T) {
	records := &stubRecords{
		listResult: []record.UploadRecord{
			{ID: 5, Uploader: "yon", Message: "b"},
			{ID: 4, Uploader: "yon", Message: "a"},
		},
	}
	srv := newTestServer(records, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/list", nil)
	rr := httptest.NewRecorder()
	srv.listHandler(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rr.Code)
	}

	var got []record.UploadRecord
	if err := json.NewDecoder(rr.Body).Decode(&got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(got) != 2 || got[0].ID != 5 || got[1].ID != 4 {
		t.Fatalf("unexpected page: %+v", got)
	}
}

func TestList_EmptyIsJSONArray(t *testing.T) {
	srv := newTestServer(&stubRecords{}, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/list", nil)
	rr := httptest.NewRecorder()
	srv.listHandler(rr, req)

	if got := rr.Body.String(); got != "[]\n" {
		t.Fatalf("body = %q, want empty JSON array", got)
	}
}

func TestList_CursorParsing(t *testing.T) {
	tests := []struct {
		query string
		want  int64
	}{
		{"", 0},
		{"?beforeId=6", 6},
		{"?beforeId=0", 0},
		{"?beforeId=-3", 0},
		{"?beforeId=abc", 0},
		{"?beforeId=2.5", 0},
	}

	for _, tt := range tests {
		records := &stubRecords{}
		srv := newTestServer(records, nil)

		req := httptest.NewRequest(http.MethodGet, "/api/list"+tt.query, nil)
		rr := httptest.NewRecorder()
		srv.listHandler(rr, req)

		if rr.Code != http.StatusOK {
			t.Fatalf("query %q: status = %d", tt.query, rr.Code)
		}
		if records.listBeforeID != tt.want {
			t.Fatalf("query %q: beforeID = %d, want %d", tt.query, records.listBeforeID, tt.want)
		}
	}
}

func TestList_MethodNotAllowed(t *testing.T) {
	srv := newTestServer(&stubRecords{}, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/list", nil)
	rr := httptest.NewRecorder()
	srv.listHandler(rr, req)

	if rr.Code != http.StatusMethodNotAllowed {
		t.Fatalf("status = %d, want 405", rr.Code)
	}
}
