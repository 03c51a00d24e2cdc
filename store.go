package seoconsole

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/eringen/seoconsole/validate"
)

var (
	// ErrNotFound is returned when a requested record does not exist.
	ErrNotFound = errors.New("record not found")
	// ErrDuplicateRoute is returned when a route path is already taken.
	ErrDuplicateRoute = errors.New("a record for this route already exists")
)

// RecordStore persists SEO records. Implementations are safe for concurrent
// use. List returns records ordered by route path.
type RecordStore interface {
	List(ctx context.Context) ([]Record, error)
	Get(ctx context.Context, id string) (Record, error)
	GetByRoute(ctx context.Context, routePath string) (Record, error)
	Create(ctx context.Context, in RecordInput) (Record, error)
	Update(ctx context.Context, id string, patch RecordPatch) (Record, error)
	Delete(ctx context.Context, id string) error
	SetValidation(ctx context.Context, id string, status ValidationStatus, at time.Time, issues []validate.Issue) (Record, error)
	Available(ctx context.Context) bool
	Close() error
}

// NewStore opens the backend selected by cfg.
func NewStore(cfg StorageConfig) (RecordStore, error) {
	switch cfg.Type {
	case StorageSQLite, "":
		return NewSQLiteStore(cfg.Path)
	case StorageFile:
		return NewFileStore(cfg.Path)
	default:
		return nil, fmt.Errorf("unknown storage type %q", cfg.Type)
	}
}

// newRecord builds a pending record from a validated input.
func newRecord(in RecordInput, now time.Time) Record {
	return Record{
		ID:               uuid.NewString(),
		RoutePath:        in.RoutePath,
		SEOFields:        in.SEOFields,
		ValidationStatus: StatusPending,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
}

func prepareInput(in RecordInput) (RecordInput, error) {
	in.Normalize()
	if err := in.Validate(); err != nil {
		return RecordInput{}, err
	}
	return in, nil
}

func encodeIssues(issues []validate.Issue) (json.RawMessage, error) {
	if issues == nil {
		issues = []validate.Issue{}
	}
	return json.Marshal(issues)
}

// SQLiteStore keeps records in a SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) the SQLite database at path, ensures the
// data directory exists, and creates the schema.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// WAL lets readers proceed during writes; busy_timeout makes writers wait
	// instead of failing with SQLITE_BUSY.
	if _, err := db.Exec(`
		PRAGMA journal_mode=WAL;
		PRAGMA busy_timeout=5000;
		PRAGMA synchronous=NORMAL;
		PRAGMA cache_size=-8000;
	`); err != nil {
		db.Close()
		return nil, err
	}
	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(4)
	s := &SQLiteStore{db: db}
	if err := s.ensureSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) ensureSchema() error {
	_, err := s.db.Exec(`
CREATE TABLE IF NOT EXISTS seo_records (
    id TEXT PRIMARY KEY,
    route_path TEXT NOT NULL UNIQUE,
    metadata TEXT NOT NULL,
    validation_status TEXT NOT NULL DEFAULT 'pending'
        CHECK (validation_status IN ('pending', 'valid', 'invalid', 'warning')),
    last_validated_at TEXT,
    validation_errors TEXT,
    created_at TEXT NOT NULL,
    updated_at TEXT NOT NULL
);
`)
	return err
}

// Available pings the database.
func (s *SQLiteStore) Available(ctx context.Context) bool {
	return s.db.PingContext(ctx) == nil
}

const recordColumns = `id, route_path, metadata, validation_status, last_validated_at, validation_errors, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (Record, error) {
	var (
		r                    Record
		metadata             string
		lastValidated        sql.NullString
		validationErrors     sql.NullString
		createdAt, updatedAt string
	)
	if err := row.Scan(&r.ID, &r.RoutePath, &metadata, &r.ValidationStatus, &lastValidated, &validationErrors, &createdAt, &updatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Record{}, ErrNotFound
		}
		return Record{}, err
	}
	if err := json.Unmarshal([]byte(metadata), &r.SEOFields); err != nil {
		return Record{}, fmt.Errorf("decode metadata for %s: %w", r.ID, err)
	}
	if lastValidated.Valid {
		t, err := time.Parse(time.RFC3339Nano, lastValidated.String)
		if err != nil {
			return Record{}, err
		}
		r.LastValidatedAt = &t
	}
	if validationErrors.Valid && validationErrors.String != "" {
		r.ValidationErrors = json.RawMessage(validationErrors.String)
	}
	var err error
	if r.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
		return Record{}, err
	}
	if r.UpdatedAt, err = time.Parse(time.RFC3339Nano, updatedAt); err != nil {
		return Record{}, err
	}
	return r, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// List returns all records ordered by route path.
func (s *SQLiteStore) List(ctx context.Context) ([]Record, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+recordColumns+` FROM seo_records ORDER BY route_path`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	records := []Record{}
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

// Get returns a record by id.
func (s *SQLiteStore) Get(ctx context.Context, id string) (Record, error) {
	return scanRecord(s.db.QueryRowContext(ctx, `SELECT `+recordColumns+` FROM seo_records WHERE id = ?`, id))
}

// GetByRoute returns the record for a route path.
func (s *SQLiteStore) GetByRoute(ctx context.Context, routePath string) (Record, error) {
	return scanRecord(s.db.QueryRowContext(ctx, `SELECT `+recordColumns+` FROM seo_records WHERE route_path = ?`, routePath))
}

// Create validates in and inserts a new pending record.
func (s *SQLiteStore) Create(ctx context.Context, in RecordInput) (Record, error) {
	in, err := prepareInput(in)
	if err != nil {
		return Record{}, err
	}
	r := newRecord(in, time.Now().UTC())
	metadata, err := json.Marshal(r.SEOFields)
	if err != nil {
		return Record{}, err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO seo_records (id, route_path, metadata, validation_status, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)`,
		r.ID, r.RoutePath, string(metadata), r.ValidationStatus, formatTime(r.CreatedAt), formatTime(r.UpdatedAt))
	if isUniqueViolation(err) {
		return Record{}, ErrDuplicateRoute
	}
	if err != nil {
		return Record{}, err
	}
	return r, nil
}

// Update applies patch to the record with the given id.
func (s *SQLiteStore) Update(ctx context.Context, id string, patch RecordPatch) (Record, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Record{}, err
	}
	defer tx.Rollback()

	current, err := scanRecord(tx.QueryRowContext(ctx, `SELECT `+recordColumns+` FROM seo_records WHERE id = ?`, id))
	if err != nil {
		return Record{}, err
	}
	r, err := patch.Apply(current)
	if err != nil {
		return Record{}, err
	}
	r.UpdatedAt = time.Now().UTC()
	metadata, err := json.Marshal(r.SEOFields)
	if err != nil {
		return Record{}, err
	}
	_, err = tx.ExecContext(ctx,
		`UPDATE seo_records SET route_path = ?, metadata = ?, updated_at = ? WHERE id = ?`,
		r.RoutePath, string(metadata), formatTime(r.UpdatedAt), id)
	if isUniqueViolation(err) {
		return Record{}, ErrDuplicateRoute
	}
	if err != nil {
		return Record{}, err
	}
	return r, tx.Commit()
}

// Delete removes a record by id.
func (s *SQLiteStore) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM seo_records WHERE id = ?`, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// SetValidation stores the outcome of a validation run.
func (s *SQLiteStore) SetValidation(ctx context.Context, id string, status ValidationStatus, at time.Time, issues []validate.Issue) (Record, error) {
	if _, err := ParseValidationStatus(string(status)); err != nil {
		return Record{}, err
	}
	errs, err := encodeIssues(issues)
	if err != nil {
		return Record{}, err
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE seo_records SET validation_status = ?, last_validated_at = ?, validation_errors = ?, updated_at = ? WHERE id = ?`,
		status, formatTime(at), string(errs), formatTime(time.Now()), id)
	if err != nil {
		return Record{}, err
	}
	if n, err := res.RowsAffected(); err != nil {
		return Record{}, err
	} else if n == 0 {
		return Record{}, ErrNotFound
	}
	return s.Get(ctx, id)
}
