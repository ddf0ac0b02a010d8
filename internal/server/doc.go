// Package server implements the HTTP surface of the file-drop service.
// It wires the HTTP routes to the record repository and the MinIO blob
// store and provides lifecycle helpers used by tests and the production
// binary.
package server
