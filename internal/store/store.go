package store

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

const (
	sqliteFileName = "state.sqlite"

	// KeyToken is the fixed key the bearer token is persisted under.
	KeyToken = "token"
)

// Store is the client's local state file. It only ever holds small values
// (the session token and UI preferences); tasks, users and notifications are
// never written to disk.
type Store struct {
	Dir string
}

func (s Store) Ensure() error {
	return os.MkdirAll(s.Dir, 0o700)
}

func (s Store) Path() string {
	return filepath.Join(s.Dir, sqliteFileName)
}

func (s Store) openSQLite(ctx context.Context) (*sql.DB, error) {
	if strings.TrimSpace(s.Dir) == "" {
		return nil, errors.New("store: empty state dir")
	}
	if err := s.Ensure(); err != nil {
		return nil, err
	}
	// modernc.org/sqlite driver name is "sqlite".
	db, err := sql.Open("sqlite", s.Path())
	if err != nil {
		return nil, err
	}
	// Several taskboard processes (TUI + scripts) may share the file.
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA busy_timeout=5000;",
	}
	for _, p := range pragmas {
		if _, err := db.ExecContext(ctx, p); err != nil {
			_ = db.Close()
			return nil, err
		}
	}
	if err := migrateSQLite(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

func migrateSQLite(ctx context.Context, db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS client_state (
			k TEXT PRIMARY KEY,
			v TEXT NOT NULL,
			updated_at_unixms INTEGER NOT NULL
		);`,
	}
	for _, st := range stmts {
		if _, err := db.ExecContext(ctx, st); err != nil {
			return err
		}
	}
	return nil
}

// Get returns the value stored under k. ok is false when the key is absent.
func (s Store) Get(ctx context.Context, k string) (v string, ok bool, err error) {
	db, err := s.openSQLite(ctx)
	if err != nil {
		return "", false, err
	}
	defer db.Close()

	err = db.QueryRowContext(ctx, `SELECT v FROM client_state WHERE k = ?`, k).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return v, true, nil
}

func (s Store) Set(ctx context.Context, k, v string) error {
	db, err := s.openSQLite(ctx)
	if err != nil {
		return err
	}
	defer db.Close()

	_, err = db.ExecContext(ctx,
		`INSERT OR REPLACE INTO client_state(k, v, updated_at_unixms) VALUES(?, ?, ?)`,
		k, v, time.Now().UTC().UnixMilli())
	return err
}

func (s Store) Delete(ctx context.Context, k string) error {
	db, err := s.openSQLite(ctx)
	if err != nil {
		return err
	}
	defer db.Close()

	_, err = db.ExecContext(ctx, `DELETE FROM client_state WHERE k = ?`, k)
	return err
}

// LoadToken returns the persisted bearer token, or "" when none is stored.
func (s Store) LoadToken(ctx context.Context) (string, error) {
	v, _, err := s.Get(ctx, KeyToken)
	return strings.TrimSpace(v), err
}

func (s Store) SaveToken(ctx context.Context, token string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return s.ClearToken(ctx)
	}
	return s.Set(ctx, KeyToken, token)
}

func (s Store) ClearToken(ctx context.Context) error {
	return s.Delete(ctx, KeyToken)
}
