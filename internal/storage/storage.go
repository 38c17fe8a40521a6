// Package storage provides the durable, transactional store for sessions,
// messages, events, LLM configs, and the auxiliary domain entities. It is
// the one component in this tree built on a real embedded SQL engine
// (modernc.org/sqlite) rather than the teacher's file-per-record JSON
// store: spec §4.1 requires enforced foreign keys, atomic event append, and
// a single-writer monotonic stream_seq allocator, none of which a JSON file
// tree gives for free.
package storage

import (
	"context"
	"database/sql"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/agentrt/core/internal/apperr"
)

// Storage is the durable backend described in spec §4.1.
type Storage struct {
	db *sql.DB

	// writeMu serializes writers so stream_seq and other monotonic
	// invariants hold even though SQLite itself would happily interleave
	// transactions under WAL. Readers never take this lock.
	writeMu sync.Mutex
}

// Open opens (creating if absent) a SQLite-backed store at path. Use
// ":memory:" for ephemeral/test stores.
func Open(path string) (*Storage, error) {
	// foreign_keys and busy_timeout are per-connection settings, so they
	// also go in the DSN, which the driver applies to every connection.
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	db, err := sql.Open("sqlite", path+sep+"_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, apperr.Wrap(apperr.BackendError, "open sqlite store", err)
	}

	// Several physical connections allow concurrent readers; writers are
	// additionally serialized by writeMu below.
	db.SetMaxOpenConns(8)

	if _, err := db.Exec(`PRAGMA journal_mode=WAL;`); err != nil {
		db.Close()
		return nil, apperr.Wrap(apperr.BackendError, "enable WAL", err)
	}
	if _, err := db.Exec(`PRAGMA foreign_keys=ON;`); err != nil {
		db.Close()
		return nil, apperr.Wrap(apperr.BackendError, "enable foreign keys", err)
	}
	if _, err := db.Exec(`PRAGMA busy_timeout=5000;`); err != nil {
		db.Close()
		return nil, apperr.Wrap(apperr.BackendError, "set busy timeout", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, apperr.Wrap(apperr.BackendError, "apply schema", err)
	}

	return &Storage{db: db}, nil
}

// Close releases the underlying database handle.
func (s *Storage) Close() error {
	return s.db.Close()
}

// Ping reports whether the underlying database connection is alive, for
// internal/health's readiness check.
func (s *Storage) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// withWriteTx runs fn inside a transaction, serialized against all other
// writers on this Storage instance. fn's error, if any, is returned
// verbatim after rollback; a nil error commits.
func (s *Storage) withWriteTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return apperr.Wrap(apperr.BackendError, "begin transaction", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return apperr.Wrap(apperr.BackendError, "commit transaction", err)
	}
	return nil
}

func nowMillis() int64 { return time.Now().UnixMilli() }

func timeFromMillis(ms int64) time.Time { return time.UnixMilli(ms) }

// mapConstraintErr turns a raw SQLite constraint violation into a typed
// apperr, since the driver surfaces them as plain strings rather than typed
// sentinels.
func mapConstraintErr(op string, err error) error {
	if err == nil {
		return nil
	}
	msg := err.Error()
	if containsAny(msg, "UNIQUE constraint failed", "constraint failed: UNIQUE") {
		return apperr.Wrap(apperr.Conflict, op, err)
	}
	if containsAny(msg, "FOREIGN KEY constraint failed") {
		return apperr.Wrap(apperr.InvalidRequest, op+": dangling reference", err)
	}
	return apperr.Wrap(apperr.BackendError, op, err)
}

func containsAny(s string, substrs ...string) bool {
	for _, sub := range substrs {
		if indexOf(s, sub) >= 0 {
			return true
		}
	}
	return false
}

func indexOf(s, sub string) int {
	n, m := len(s), len(sub)
	if m == 0 {
		return 0
	}
	for i := 0; i+m <= n; i++ {
		if s[i:i+m] == sub {
			return i
		}
	}
	return -1
}
