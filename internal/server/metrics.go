package server

import (
	"fmt"
	"net/http"
	"strings"
	"sync"
)

// Metrics holds in-process counters for the drop service.
type Metrics struct {
	mu sync.Mutex

	requestsTotal    int64
	requestErrors4xx int64
	requestErrors5xx int64

	uploadsTotal     int64
	uploadBytesTotal int64
	downloadsTotal   int64
	deletesTotal     int64
	purgesTotal      int64
}

// MetricsSnapshot is a point-in-time copy of all counters.
type MetricsSnapshot struct {
	RequestsTotal    int64
	RequestErrors4xx int64
	RequestErrors5xx int64
	UploadsTotal     int64
	UploadBytesTotal int64
	DownloadsTotal   int64
	DeletesTotal     int64
	PurgesTotal      int64
}

var globalMetrics = &Metrics{}

// GetMetrics returns the global metrics instance.
func GetMetrics() *Metrics {
	return globalMetrics
}

// RecordRequest counts one finished HTTP request.
func (m *Metrics) RecordRequest(status int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requestsTotal++
	switch {
	case status >= 500:
		m.requestErrors5xx++
	case status >= 400:
		m.requestErrors4xx++
	}
}

// RecordUpload counts one created record and its total bytes.
func (m *Metrics) RecordUpload(bytes int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.uploadsTotal++
	m.uploadBytesTotal += bytes
}

func (m *Metrics) RecordDownload() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.downloadsTotal++
}

func (m *Metrics) RecordDelete() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deletesTotal++
}

func (m *Metrics) RecordPurge() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.purgesTotal++
}

// Snapshot returns a copy of the current counters.
func (m *Metrics) Snapshot() MetricsSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return MetricsSnapshot{
		RequestsTotal:    m.requestsTotal,
		RequestErrors4xx: m.requestErrors4xx,
		RequestErrors5xx: m.requestErrors5xx,
		UploadsTotal:     m.uploadsTotal,
		UploadBytesTotal: m.uploadBytesTotal,
		DownloadsTotal:   m.downloadsTotal,
		DeletesTotal:     m.deletesTotal,
		PurgesTotal:      m.purgesTotal,
	}
}

// metricsHandler serves the counters in Prometheus text exposition
// format without pulling in a client library.
func metricsHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	s := GetMetrics().Snapshot()

	var out strings.Builder
	writeCounter := func(name, help string, v int64) {
		fmt.Fprintf(&out, "# HELP %s %s\n# TYPE %s counter\n%s %d\n", name, help, name, name, v)
	}

	writeCounter("drop_requests_total", "Total HTTP requests served", s.RequestsTotal)
	writeCounter("drop_request_errors_4xx_total", "Requests answered with a 4xx status", s.RequestErrors4xx)
	writeCounter("drop_request_errors_5xx_total", "Requests answered with a 5xx status", s.RequestErrors5xx)
	writeCounter("drop_uploads_total", "Upload records created", s.UploadsTotal)
	writeCounter("drop_upload_bytes_total", "Bytes accepted across all uploads", s.UploadBytesTotal)
	writeCounter("drop_downloads_total", "File downloads served", s.DownloadsTotal)
	writeCounter("drop_deletes_total", "Single-record deletes", s.DeletesTotal)
	writeCounter("drop_purges_total", "Bulk purge invocations", s.PurgesTotal)

	w.Header().Set("Content-Type", "text/plain; version=0.0.4")
	_, _ = w.Write([]byte(out.String()))
}
