package store

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
)

//go:embed schema.sql
var schemaSQL string

// schemaVersion is stamped into PRAGMA user_version on every archive this
// build creates. Archives stamped with a later version are refused.
const schemaVersion = 1

// connParams are go-sqlite3 DSN options applied to every connection:
// WAL journaling, NORMAL sync, a 5s busy timeout and enforced foreign keys.
const connParams = "_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000&_foreign_keys=on"

// ErrBatchNotFound is returned when a batch id does not exist.
var ErrBatchNotFound = errors.New("batch not found")

// ErrSchemaTooNew is returned by Open when the archive was written by a
// newer tracegate.
var ErrSchemaTooNew = errors.New("archive schema is newer than this build")

// Store is the SQLite-backed analysis archive.
type Store struct {
	db *sql.DB
}

// Open creates the archive at path, or reopens an existing one. Pass
// ":memory:" for a throwaway archive.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path+"?"+connParams)
	if err != nil {
		return nil, fmt.Errorf("open archive %s: %w", path, err)
	}
	// one connection keeps writes serialized and a :memory: archive alive
	db.SetMaxOpenConns(1)

	if err := initArchive(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("open archive %s: %w", path, err)
	}
	return &Store{db: db}, nil
}

// Close releases the archive. Closing a zero Store is a no-op.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// NewID returns a time-ordered UUIDv7 string for batch and evaluation ids.
func NewID() string {
	return uuid.Must(uuid.NewV7()).String()
}

func initArchive(db *sql.DB) error {
	var stamped int
	if err := db.QueryRow("PRAGMA user_version").Scan(&stamped); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	if stamped > schemaVersion {
		return fmt.Errorf("%w: version %d, supported %d", ErrSchemaTooNew, stamped, schemaVersion)
	}
	if _, err := db.Exec(schemaSQL); err != nil {
		return fmt.Errorf("create tables: %w", err)
	}
	if stamped == schemaVersion {
		return nil
	}
	if _, err := db.Exec(fmt.Sprintf("PRAGMA user_version = %d", schemaVersion)); err != nil {
		return fmt.Errorf("stamp schema version: %w", err)
	}
	return nil
}

// nextSeq returns the next logical sequence number for table inside tx.
func nextSeq(ctx context.Context, tx *sql.Tx, table string) (int64, error) {
	var seq int64
	err := tx.QueryRowContext(ctx, fmt.Sprintf("SELECT COALESCE(MAX(seq), 0) + 1 FROM %s", table)).Scan(&seq)
	if err != nil {
		return 0, fmt.Errorf("next seq for %s: %w", table, err)
	}
	return seq, nil
}
