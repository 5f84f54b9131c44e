package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS counts (
	name  TEXT NOT NULL,
	key   TEXT NOT NULL,
	item  TEXT NOT NULL,
	count INTEGER NOT NULL,
	PRIMARY KEY (name, key, item)
)`

// SQLite stores every table as rows of one counts table.
type SQLite struct {
	db *sql.DB
}

// NewSQLite opens (or creates) the database at path.
func NewSQLite(path string) (*SQLite, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("sqlite: create dir: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open %s: %w", path, err)
	}
	// one writer; modernc needs pragmas set per connection
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("sqlite: %s: %w", p, err)
		}
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite: schema: %w", err)
	}
	return &SQLite{db: db}, nil
}

func (s *SQLite) Load(ctx context.Context, name string) (Table, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT key, item, count FROM counts WHERE name = ?`, name)
	if err != nil {
		return nil, fmt.Errorf("sqlite: load %s: %w", name, err)
	}
	defer rows.Close()

	t := Table{}
	for rows.Next() {
		var key, item string
		var n int
		if err := rows.Scan(&key, &item, &n); err != nil {
			return nil, fmt.Errorf("sqlite: scan %s: %w", name, err)
		}
		t.Incr(key, item, n)
	}
	return t, rows.Err()
}

// Save replaces the stored rows of name with t in one transaction.
func (s *SQLite) Save(ctx context.Context, name string, t Table) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM counts WHERE name = ?`, name); err != nil {
		return fmt.Errorf("sqlite: clear %s: %w", name, err)
	}
	stmt, err := tx.PrepareContext(ctx, `INSERT INTO counts (name, key, item, count) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("sqlite: prepare: %w", err)
	}
	defer stmt.Close()

	for key, row := range t {
		for item, n := range row {
			if _, err := stmt.ExecContext(ctx, name, key, item, n); err != nil {
				return fmt.Errorf("sqlite: insert %s: %w", name, err)
			}
		}
	}
	return tx.Commit()
}

func (s *SQLite) Close() error {
	return s.db.Close()
}
