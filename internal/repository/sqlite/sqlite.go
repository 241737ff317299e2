// Package sqlite is the embedded storage backend. It supplies the SQLite
// dialect for the shared sqlstore engine and owns the connection pool.
//
// modernc.org/sqlite is a pure Go translation of SQLite, so the binary
// still cross-compiles without a C toolchain.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/sakif/avatar-vault/internal/repository"
	"github.com/sakif/avatar-vault/internal/repository/sqlstore"
)

// MemoryPath opens a private in-memory database.
const MemoryPath = ":memory:"

const defaultBusyTimeout = 5 * time.Second

type Options struct {
	// BusyTimeout is how long a connection waits on a locked database
	// before failing with SQLITE_BUSY.
	BusyTimeout time.Duration
	sqlstore.Options
}

// DB is the SQLite-backed avatar repository.
type DB struct {
	*sqlstore.Repository
	conn *sql.DB
}

var _ repository.AvatarRepository = (*DB)(nil)

// New opens (or creates) the database at path and runs migrations.
//
// Pragmas go in the DSN rather than through Exec so that every pooled
// connection gets them, not only the first one.
func New(path string, opts Options) (*DB, error) {
	if opts.BusyTimeout <= 0 {
		opts.BusyTimeout = defaultBusyTimeout
	}

	if path != MemoryPath {
		if dir := filepath.Dir(path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("sqlite: creating data directory: %w", err)
			}
		}
	}

	conn, err := sql.Open("sqlite", dsn(path, opts.BusyTimeout))
	if err != nil {
		return nil, fmt.Errorf("sqlite: opening database: %w", err)
	}

	// Each connection to :memory: is its own database.
	if path == MemoryPath {
		conn.SetMaxOpenConns(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: pinging database: %w", err)
	}

	d := Dialect{}
	if err := sqlstore.Migrate(ctx, conn, d); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: running migrations: %w", err)
	}

	return &DB{
		Repository: sqlstore.New(conn, d, opts.Options),
		conn:       conn,
	}, nil
}

func (db *DB) Close() error {
	return db.conn.Close()
}

func dsn(path string, busy time.Duration) string {
	q := url.Values{}
	q.Add("_pragma", "foreign_keys(1)")
	q.Add("_pragma", fmt.Sprintf("busy_timeout(%d)", busy.Milliseconds()))
	if path != MemoryPath {
		q.Add("_pragma", "journal_mode(WAL)")
	}
	// BEGIN IMMEDIATE takes the write lock up front, which serialises slot
	// allocation the way a row lock does on Postgres.
	q.Set("_txlock", "immediate")
	return "file:" + path + "?" + q.Encode()
}

// Dialect is the SQLite flavour of sqlstore.Dialect.
type Dialect struct{}

var _ sqlstore.Dialect = Dialect{}

func (Dialect) Name() string { return "sqlite" }
func (Dialect) Rebind(query string) string { return sqlstore.RebindQuestion(query) }
func (Dialect) FloatType() string { return "REAL" }
func (Dialect) TimestampType() string { return "DATETIME" }
func (Dialect) LockOwnerQuery() string { return "" }

// Classify maps a unique-constraint failure to the constraint it broke.
// SQLite reports the offending columns, not the constraint name.
func (Dialect) Classify(err error) sqlstore.Violation {
	var se *sqlite.Error
	if !errors.As(err, &se) || se.Code() != sqlite3.SQLITE_CONSTRAINT_UNIQUE {
		return sqlstore.NoViolation
	}
	msg := se.Error()
	switch {
	case strings.Contains(msg, "avatars.slot"):
		return sqlstore.SlotTaken
	case strings.Contains(msg, "avatars.name_key"):
		return sqlstore.NameTaken
	default:
		return sqlstore.NoViolation
	}
}
