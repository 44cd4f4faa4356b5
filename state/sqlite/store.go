// Package sqlite implements state.Store on a single SQLite file using
// mattn/go-sqlite3. All namespaces share one table keyed by
// (namespace, key).
//
// Usage:
//
//	s, err := sqlite.Open(ctx, "/var/lib/parley/state.db")
//	if err != nil { ... }
//	defer s.Close()
package sqlite

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"log/slog"

	_ "github.com/mattn/go-sqlite3"

	"github.com/xraph/parley/state"
)

//go:embed schema.sql
var schema string

var _ state.Store = (*Store)(nil)

// Option configures the Store.
type Option func(*Store)

// WithLogger sets the logger for the store.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) { s.logger = logger }
}

// Store is a SQLite-backed state.Store.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

// Open opens (creating if needed) the database file at path and applies
// the schema. Writers take the database lock when a transaction begins,
// so concurrent updates serialize instead of failing on upgrade.
func Open(ctx context.Context, path string, opts ...Option) (*Store, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000&_txlock=immediate")
	if err != nil {
		return nil, fmt.Errorf("parley/sqlite: open: %w", err)
	}
	// One writer at a time; SQLite serializes them anyway.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("parley/sqlite: init schema: %w", err)
	}

	s := &Store{db: db, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	s.logger.Info("state database opened", slog.String("path", path))
	return s, nil
}

// DB returns the underlying database handle.
func (s *Store) DB() *sql.DB { return s.db }

// Get implements state.Store.
func (s *Store) Get(ctx context.Context, ns, key string) ([]byte, bool, error) {
	var v []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT value FROM parley_state WHERE namespace = ? AND key = ?`, ns, key,
	).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("parley/sqlite: get %s/%s: %w", ns, key, err)
	}
	return v, true, nil
}

// Set implements state.Store.
func (s *Store) Set(ctx context.Context, ns, key string, value []byte) (bool, error) {
	var existed bool
	err := s.tx(ctx, func(tx *sql.Tx) error {
		var err error
		existed, err = exists(ctx, tx, ns, key)
		if err != nil {
			return err
		}
		return put(ctx, tx, ns, key, value)
	})
	if err != nil {
		return false, fmt.Errorf("parley/sqlite: set %s/%s: %w", ns, key, err)
	}
	return existed, nil
}

// Update implements state.Store. fn runs inside the write transaction.
func (s *Store) Update(ctx context.Context, ns, key string, fn state.UpdateFunc) ([]byte, error) {
	var out []byte
	err := s.tx(ctx, func(tx *sql.Tx) error {
		var old []byte
		err := tx.QueryRowContext(ctx,
			`SELECT value FROM parley_state WHERE namespace = ? AND key = ?`, ns, key,
		).Scan(&old)
		ok := true
		if errors.Is(err, sql.ErrNoRows) {
			ok, err = false, nil
		}
		if err != nil {
			return err
		}

		value, keep, err := fn(old, ok)
		if err != nil {
			return err
		}
		if !keep {
			_, err = tx.ExecContext(ctx,
				`DELETE FROM parley_state WHERE namespace = ? AND key = ?`, ns, key)
			return err
		}
		out = state.Clone(value)
		return put(ctx, tx, ns, key, value)
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Delete implements state.Store.
func (s *Store) Delete(ctx context.Context, ns, key string) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM parley_state WHERE namespace = ? AND key = ?`, ns, key)
	if err != nil {
		return false, fmt.Errorf("parley/sqlite: delete %s/%s: %w", ns, key, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("parley/sqlite: delete %s/%s: %w", ns, key, err)
	}
	return n > 0, nil
}

// GetAll implements state.Store.
func (s *Store) GetAll(ctx context.Context, ns string) (map[string][]byte, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT key, value FROM parley_state WHERE namespace = ?`, ns)
	if err != nil {
		return nil, fmt.Errorf("parley/sqlite: get all %s: %w", ns, err)
	}
	defer rows.Close()

	out := make(map[string][]byte)
	for rows.Next() {
		var (
			k string
			v []byte
		)
		if err := rows.Scan(&k, &v); err != nil {
			return nil, fmt.Errorf("parley/sqlite: scan %s: %w", ns, err)
		}
		out[k] = v
	}
	return out, rows.Err()
}

// Clear implements state.Store.
func (s *Store) Clear(ctx context.Context, ns string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM parley_state WHERE namespace = ?`, ns); err != nil {
		return fmt.Errorf("parley/sqlite: clear %s: %w", ns, err)
	}
	return nil
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) tx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

func exists(ctx context.Context, tx *sql.Tx, ns, key string) (bool, error) {
	var ok bool
	err := tx.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM parley_state WHERE namespace = ? AND key = ?)`, ns, key,
	).Scan(&ok)
	return ok, err
}

func put(ctx context.Context, tx *sql.Tx, ns, key string, value []byte) error {
	if value == nil {
		value = []byte{}
	}
	_, err := tx.ExecContext(ctx, `
		INSERT INTO parley_state (namespace, key, value, updated_at)
		VALUES (?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT (namespace, key) DO UPDATE
		SET value = excluded.value, updated_at = excluded.updated_at`,
		ns, key, value)
	return err
}
