package server

import (
	"bytes"
	"context"
	"io"
	"sync"

	"file-drop/internal/record"
)

// stubRecords is a scriptable RecordStore for handler tests.
type stubRecords struct {
	mu sync.Mutex

	listBeforeID int64
	listResult   []record.UploadRecord
	listErr      error

	getResult *record.UploadRecord
	getErr    error

	created   *record.UploadRecord
	createErr error

	deletedID    int64
	purgedBefore int64
}

func (s *stubRecords) List(_ context.Context, beforeID int64) ([]record.UploadRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listBeforeID = beforeID
	return s.listResult, s.listErr
}

func (s *stubRecords) Get(_ context.Context, id int64) (*record.UploadRecord, error) {
	return s.getResult, s.getErr
}

func (s *stubRecords) Create(_ context.Context, uploader string, size int64, files []record.FileItem, message string) (int64, *record.UploadRecord, error) {
	if s.createErr != nil {
		return 0, nil, s.createErr
	}
	rec := &record.UploadRecord{
		ID:       1,
		Uploader: uploader,
		Size:     size,
		Files:    files,
		Message:  message,
	}
	s.mu.Lock()
	s.created = rec
	s.mu.Unlock()
	return rec.ID, rec, nil
}

func (s *stubRecords) Delete(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deletedID = id
	return nil
}

func (s *stubRecords) PurgeBefore(_ context.Context, beforeID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.purgedBefore = beforeID
	return nil
}

// stubBlobs keeps objects in memory.
type stubBlobs struct {
	mu      sync.Mutex
	objects map[string][]byte
	types   map[string]string
	putErr  error
}

func newStubBlobs() *stubBlobs {
	return &stubBlobs{
		objects: make(map[string][]byte),
		types:   make(map[string]string),
	}
}

func (b *stubBlobs) Put(_ context.Context, path string, r io.Reader, _ int64, contentType string) (int64, error) {
	if b.putErr != nil {
		return 0, b.putErr
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return 0, err
	}
	b.mu.Lock()
	b.objects[path] = data
	b.types[path] = contentType
	b.mu.Unlock()
	return int64(len(data)), nil
}

func (b *stubBlobs) Stat(_ context.Context, path string) (ObjectInfo, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	data, ok := b.objects[path]
	if !ok {
		return ObjectInfo{}, errBlobNotFound
	}
	return ObjectInfo{Size: int64(len(data)), ContentType: b.types[path]}, nil
}

func (b *stubBlobs) Get(_ context.Context, path string, start, end int64) (io.ReadCloser, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	data, ok := b.objects[path]
	if !ok {
		return nil, errBlobNotFound
	}
	if start == 0 && end < 0 {
		return io.NopCloser(bytes.NewReader(data)), nil
	}
	return io.NopCloser(bytes.NewReader(data[start : end+1])), nil
}

func (b *stubBlobs) RemoveAll(_ context.Context, paths []string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, p := range paths {
		delete(b.objects, p)
		delete(b.types, p)
	}
	return nil
}

func (b *stubBlobs) Ping(_ context.Context) error { return nil }

func newTestServer(records *stubRecords, blobs *stubBlobs) *Server {
	if blobs == nil {
		blobs = newStubBlobs()
	}
	return New(Config{
		Addr:    ":0",
		Records: records,
		Blobs:   blobs,
	})
}
