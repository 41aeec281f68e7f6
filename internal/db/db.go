package db

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/tphummel/lab_inventory/internal/models"
	_ "modernc.org/sqlite"
)

// DB wraps a SQLite connection holding the lookup audit log.
type DB struct {
	conn *sql.DB
}

// New opens the SQLite database at path, enables WAL mode, and runs migrations.
func New(path string) (*DB, error) {
	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	// A second pooled connection to ":memory:" would see an empty database.
	if path == ":memory:" {
		conn.SetMaxOpenConns(1)
	}

	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("enable WAL: %w", err)
	}

	if err := migrate(conn); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return &DB{conn: conn}, nil
}

func migrate(conn *sql.DB) error {
	_, err := conn.Exec(`
		CREATE TABLE IF NOT EXISTS lookups (
			id          TEXT PRIMARY KEY,
			hostname    TEXT NOT NULL DEFAULT '',
			mode        TEXT NOT NULL,
			found       INTEGER NOT NULL DEFAULT 0,
			remote_addr TEXT NOT NULL DEFAULT '',
			created_at  DATETIME NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_lookups_mode ON lookups(mode);
		CREATE INDEX IF NOT EXISTS idx_lookups_created_at ON lookups(created_at);
	`)
	return err
}

// Close closes the underlying database connection.
func (d *DB) Close() error {
	return d.conn.Close()
}

// Ping verifies the database connection is alive.
func (d *DB) Ping() error {
	return d.conn.Ping()
}

// Record appends a lookup to the audit log.
func (d *DB) Record(l *models.Lookup) error {
	_, err := d.conn.Exec(`
		INSERT INTO lookups (id, hostname, mode, found, remote_addr, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		l.ID, l.Hostname, l.Mode, l.Found, l.RemoteAddr,
		l.CreatedAt.UTC().Format(time.RFC3339),
	)
	return err
}

// GetByID returns the lookup with the given ID, or sql.ErrNoRows if not found.
func (d *DB) GetByID(id string) (*models.Lookup, error) {
	row := d.conn.QueryRow(`
		SELECT id, hostname, mode, found, remote_addr, created_at
		FROM lookups WHERE id = ?`, id)
	return scan(row)
}

// List returns lookups newest first, optionally filtered by mode.
func (d *DB) List(mode string) ([]*models.Lookup, error) {
	var (
		rows *sql.Rows
		err  error
	)
	if mode != "" {
		rows, err = d.conn.Query(`
			SELECT id, hostname, mode, found, remote_addr, created_at
			FROM lookups WHERE mode = ? ORDER BY created_at DESC, rowid DESC`, mode)
	} else {
		rows, err = d.conn.Query(`
			SELECT id, hostname, mode, found, remote_addr, created_at
			FROM lookups ORDER BY created_at DESC, rowid DESC`)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var lookups []*models.Lookup
	for rows.Next() {
		l, err := scan(rows)
		if err != nil {
			return nil, err
		}
		lookups = append(lookups, l)
	}
	return lookups, rows.Err()
}

// CountByMode returns the number of audited lookups per mode.
func (d *DB) CountByMode() (map[string]int, error) {
	rows, err := d.conn.Query(`SELECT mode, COUNT(*) FROM lookups GROUP BY mode`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var (
			mode string
			n    int
		)
		if err := rows.Scan(&mode, &n); err != nil {
			return nil, err
		}
		counts[mode] = n
	}
	return counts, rows.Err()
}

// scanner is satisfied by both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scan(s scanner) (*models.Lookup, error) {
	var l models.Lookup
	var createdAt string
	if err := s.Scan(&l.ID, &l.Hostname, &l.Mode, &l.Found, &l.RemoteAddr, &createdAt); err != nil {
		return nil, err
	}
	var err error
	l.CreatedAt, err = time.Parse(time.RFC3339, createdAt)
	if err != nil {
		return nil, fmt.Errorf("parse created_at %q: %w", createdAt, err)
	}
	return &l, nil
}
