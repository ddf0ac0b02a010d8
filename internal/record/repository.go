package record

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"
)

// pageSize is the fixed page length returned by List.
const pageSize = 20

// BlobDeleter removes stored objects by path. Implementations must treat
// already-missing objects as success so that purge stays retryable.
type BlobDeleter interface {
	RemoveAll(ctx context.Context, paths []string) error
}

// Dialect selects the auto-increment DDL flavour used by EnsureSchema.
type Dialect string

const (
	DialectPostgres Dialect = "postgres"
	DialectSQLite   Dialect = "sqlite"
)

// Repository owns the upload_record table and coordinates row deletion
// with blob cleanup. There is no transaction spanning both stores: blob
// deletion is best-effort and never blocks row deletion, so a failure
// can leave orphaned blobs but never a row pointing at missing blobs.
type Repository struct {
	db      *sql.DB
	blobs   BlobDeleter
	dialect Dialect
}

// New returns a Repository backed by Postgres.
func New(db *sql.DB, blobs BlobDeleter) *Repository {
	return NewWithDialect(db, blobs, DialectPostgres)
}

// NewWithDialect returns a Repository for the given DDL dialect. The
// dialect only affects EnsureSchema; all other statements are shared.
func NewWithDialect(db *sql.DB, blobs BlobDeleter, dialect Dialect) *Repository {
	return &Repository{db: db, blobs: blobs, dialect: dialect}
}

// EnsureSchema creates the upload_record table if it does not exist.
// Safe to call on every cold start; existing data is never altered.
func (r *Repository) EnsureSchema(ctx context.Context) error {
	idCol := "BIGSERIAL PRIMARY KEY"
	if r.dialect == DialectSQLite {
		idCol = "INTEGER PRIMARY KEY AUTOINCREMENT"
	}
	ddl := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS upload_record (
		id %s,
		uploader TEXT NOT NULL,
		ctime TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		size BIGINT DEFAULT 0,
		files TEXT DEFAULT '',
		message TEXT DEFAULT ''
	)`, idCol)
	_, err := r.db.ExecContext(ctx, ddl)
	return err
}

// List returns up to 20 records in descending id order, newest first.
// A positive beforeID restricts the page to ids strictly below it, which
// is the cursor for older pages; since ids are store-assigned and
// monotonic, a fixed cursor never picks up records created afterwards.
func (r *Repository) List(ctx context.Context, beforeID int64) ([]UploadRecord, error) {
	q := "SELECT id, uploader, ctime, size, files, message FROM upload_record"
	var args []any
	if beforeID > 0 {
		q += " WHERE id < $1"
		args = append(args, beforeID)
	}
	q += fmt.Sprintf(" ORDER BY id DESC LIMIT %d", pageSize)

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	records := make([]UploadRecord, 0, pageSize)
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// Get returns the record with the given id, or nil if no such record
// exists. Absence is not an error; callers branch on the nil record.
func (r *Repository) Get(ctx context.Context, id int64) (*UploadRecord, error) {
	row := r.db.QueryRowContext(ctx,
		"SELECT id, uploader, ctime, size, files, message FROM upload_record WHERE id = $1", id)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// Create inserts one row and returns the store-assigned id together with
// the materialized record. The returned CTime is taken client-side at
// call time; the persisted row keeps the store's own default, which may
// differ by a moment. There is no rollback path: callers that already
// stored blobs keep them as orphans if the insert fails.
func (r *Repository) Create(ctx context.Context, uploader string, size int64, files []FileItem, message string) (int64, *UploadRecord, error) {
	encoded, err := encodeFiles(files)
	if err != nil {
		return 0, nil, fmt.Errorf("encode files: %w", err)
	}

	var id int64
	err = r.db.QueryRowContext(ctx,
		"INSERT INTO upload_record (uploader, size, files, message) VALUES ($1, $2, $3, $4) RETURNING id",
		uploader, size, encoded, message,
	).Scan(&id)
	if err != nil {
		return 0, nil, err
	}

	rec := &UploadRecord{
		ID:       id,
		Uploader: uploader,
		CTime:    time.Now().UTC(),
		Size:     size,
		Files:    normalizeFiles(files),
		Message:  message,
	}
	return id, rec, nil
}

// Delete removes the record with the given id along with its blobs.
// A missing id is a silent no-op. Blob deletion failures are logged and
// swallowed: the row is removed regardless, so the table never keeps a
// reference to blobs that a partial cleanup already removed.
func (r *Repository) Delete(ctx context.Context, id int64) error {
	rec, err := r.Get(ctx, id)
	if err != nil {
		return err
	}
	if rec == nil {
		return nil
	}

	if len(rec.Files) > 0 {
		if err := r.blobs.RemoveAll(ctx, filePaths(rec.Files)); err != nil {
			log.Printf("service=record msg=%q id=%d err=%v", "blob_delete_failed", id, err)
		}
	}

	_, err = r.db.ExecContext(ctx, "DELETE FROM upload_record WHERE id = $1", id)
	return err
}

// PurgeBefore removes every record with id < beforeID and their blobs.
// Blobs are deleted per record before the rows are removed in one bulk
// delete; a crash in between leaves rows whose blobs are gone, and a
// second invocation removes those rows, so the operation is retryable.
func (r *Repository) PurgeBefore(ctx context.Context, beforeID int64) error {
	rows, err := r.db.QueryContext(ctx,
		"SELECT id, files FROM upload_record WHERE id < $1", beforeID)
	if err != nil {
		return err
	}

	type doomed struct {
		id    int64
		files string
	}
	var matches []doomed
	for rows.Next() {
		var d doomed
		if err := rows.Scan(&d.id, &d.files); err != nil {
			rows.Close()
			return err
		}
		matches = append(matches, d)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return err
	}
	rows.Close()

	if len(matches) == 0 {
		return nil
	}

	ids := make([]string, 0, len(matches))
	for _, d := range matches {
		ids = append(ids, strconv.FormatInt(d.id, 10))
		files := decodeFiles(d.files)
		if len(files) == 0 {
			continue
		}
		if err := r.blobs.RemoveAll(ctx, filePaths(files)); err != nil {
			log.Printf("service=record msg=%q id=%d err=%v", "blob_delete_failed", d.id, err)
		}
	}

	_, err = r.db.ExecContext(ctx,
		"DELETE FROM upload_record WHERE id IN ("+strings.Join(ids, ", ")+")")
	return err
}

// scanner is satisfied by both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(s scanner) (UploadRecord, error) {
	var (
		rec   UploadRecord
		ctime any
		files sql.NullString
	)
	if err := s.Scan(&rec.ID, &rec.Uploader, &ctime, &rec.Size, &files, &rec.Message); err != nil {
		return UploadRecord{}, err
	}
	rec.CTime = coerceTime(ctime)
	rec.Files = decodeFiles(files.String)
	return rec, nil
}
