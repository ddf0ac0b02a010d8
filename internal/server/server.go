package server

import (
	"context"
	"database/sql"
	"net"
	"net/http"
	"time"

	"file-drop/internal/record"
)

// RecordStore is the repository capability the handlers consume.
// *record.Repository satisfies it; tests substitute stubs.
type RecordStore interface {
	List(ctx context.Context, beforeID int64) ([]record.UploadRecord, error)
	Get(ctx context.Context, id int64) (*record.UploadRecord, error)
	Create(ctx context.Context, uploader string, size int64, files []record.FileItem, message string) (int64, *record.UploadRecord, error)
	Delete(ctx context.Context, id int64) error
	PurgeBefore(ctx context.Context, beforeID int64) error
}

// BuildInfo identifies the running binary.
type BuildInfo struct {
	Version string
	Commit  string
}

type Config struct {
	Addr    string // e.g. ":8080"
	Build   BuildInfo
	DB      *sql.DB
	Records RecordStore
	Blobs   BlobStore
}

type Server struct {
	httpServer *http.Server
	db         *sql.DB
	records    RecordStore
	blobs      BlobStore
	version    string
}

func New(cfg Config) *Server {
	s := &Server{
		db:      cfg.DB,
		records: cfg.Records,
		blobs:   cfg.Blobs,
		version: cfg.Build.Version,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.handleLive)
	mux.HandleFunc("/readyz", s.handleReady)
	mux.HandleFunc("/metrics", metricsHandler)
	mux.HandleFunc("/api/list", s.listHandler)
	mux.HandleFunc("/api/upload", s.uploadHandler)
	mux.HandleFunc("/api/download/", s.downloadHandler)
	mux.HandleFunc("/api/delete", s.deleteHandler)
	mux.HandleFunc("/api/purge", s.purgeHandler)

	// Wrap middleware: requestID -> logging -> mux
	var handler http.Handler = mux
	handler = loggingMiddleware(handler)
	handler = requestIDMiddleware(handler)

	s.httpServer = &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	return s
}

// Handler exposes the fully wrapped handler chain for httptest servers.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return err
	}
	return s.httpServer.Serve(ln)
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
