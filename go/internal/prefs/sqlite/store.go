// Package sqlite stores preferences in a local SQLite database.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/mcdev12/emdrtap/go/internal/prefs"
	"github.com/mcdev12/emdrtap/go/internal/sqlutil"
	_ "modernc.org/sqlite"
)

type Store struct {
	db *sql.DB
}

var _ prefs.Store = (*Store)(nil)

// Open prepares the database at path and ensures the schema exists.
func Open(path string) (*Store, error) {
	db, err := openDatabase(path)
	if err != nil {
		return nil, err
	}
	return &Store{db: db}, nil
}

func openDatabase(path string) (*sql.DB, error) {
	if path == "" {
		return nil, errors.New("database path is empty")
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("ensure db directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if _, err := db.Exec(`PRAGMA busy_timeout = 5000;`); err != nil {
		db.Close()
		return nil, fmt.Errorf("configure sqlite: %w", err)
	}

	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS preferences (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);`); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	return db, nil
}

type queries struct {
	tx *sql.Tx
}

func newQueries(tx *sql.Tx) *queries { return &queries{tx: tx} }

func (q *queries) put(ctx context.Context, key, value string) error {
	_, err := q.tx.ExecContext(ctx,
		`INSERT INTO preferences (key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		key, value)
	return err
}

func (s *Store) Load(ctx context.Context) (prefs.Preferences, error) {
	p := prefs.Defaults()

	rows, err := s.db.QueryContext(ctx, `SELECT key, value FROM preferences`)
	if err != nil {
		return prefs.Preferences{}, fmt.Errorf("query preferences: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return prefs.Preferences{}, fmt.Errorf("scan preference: %w", err)
		}
		if err := apply(&p, key, value); err != nil {
			return prefs.Preferences{}, err
		}
	}
	if err := rows.Err(); err != nil {
		return prefs.Preferences{}, fmt.Errorf("iterate preferences: %w", err)
	}
	return p, nil
}

func apply(p *prefs.Preferences, key, value string) error {
	var err error
	switch key {
	case prefs.KeySpeedSlider:
		p.SpeedSlider, err = strconv.ParseFloat(value, 64)
	case prefs.KeyDurationPreset:
		p.DurationPreset, err = strconv.Atoi(value)
	case prefs.KeyIcon:
		p.Icon, err = strconv.Atoi(value)
	}
	if err != nil {
		return fmt.Errorf("parse preference %s: %w", key, err)
	}
	return nil
}

func (s *Store) Save(ctx context.Context, p prefs.Preferences) error {
	values := map[string]string{
		prefs.KeySpeedSlider:    strconv.FormatFloat(p.SpeedSlider, 'g', -1, 64),
		prefs.KeyDurationPreset: strconv.Itoa(p.DurationPreset),
		prefs.KeyIcon:           strconv.Itoa(p.Icon),
	}
	err := sqlutil.Run(ctx, s.db, newQueries, func(q *queries) error {
		for key, value := range values {
			if err := q.put(ctx, key, value); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("save preferences: %w", err)
	}
	return nil
}

// Close releases database resources.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}
