// Package store keeps a SQLite history of reported findings.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/railwatch/crtm/internal/search"
)

const schema = `
CREATE TABLE IF NOT EXISTS findings (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	route_date  TEXT    NOT NULL,
	route_from  TEXT    NOT NULL,
	route_to    TEXT    NOT NULL,
	train       TEXT    NOT NULL,
	train_no    TEXT    NOT NULL,
	from_name   TEXT    NOT NULL,
	to_name     TEXT    NOT NULL,
	depart_time TEXT    NOT NULL,
	arrive_time TEXT    NOT NULL,
	summary     TEXT    NOT NULL,
	total       TEXT    NOT NULL,
	link        TEXT    NOT NULL,
	pass        TEXT    NOT NULL,
	reported_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_findings_reported_at ON findings (reported_at);
`

// Entry is one stored finding
type Entry struct {
	ID         int64           `json:"id"`
	Route      search.RouteKey `json:"route"`
	Finding    search.Finding  `json:"finding"`
	ReportedAt time.Time       `json:"reportedAt"`
}

// Store is a finding history backed by SQLite
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// Open opens (creating if needed) the history database at path
func Open(ctx context.Context, path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open history: %w", err)
	}

	// SQLite serialises writers; one connection avoids "database is locked"
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
	} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to configure history (%s): %w", pragma, err)
		}
	}

	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create history schema: %w", err)
	}

	return &Store{db: db, now: time.Now}, nil
}

// Close closes the database
func (s *Store) Close() error {
	return s.db.Close()
}

// Record appends findings reported for route in one transaction
func (s *Store) Record(ctx context.Context, route search.RouteKey, findings []search.Finding) error {
	if len(findings) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO findings (
			route_date, route_from, route_to, train, train_no, from_name, to_name,
			depart_time, arrive_time, summary, total, link, pass, reported_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	reportedAt := s.now().UnixMilli()
	for _, f := range findings {
		if _, err := stmt.ExecContext(ctx,
			route.Date, route.From, route.To,
			f.Train, f.TrainNo, f.FromName, f.ToName,
			f.DepartTime, f.ArriveTime, f.Summary, f.Total, f.Link, string(f.Pass),
			reportedAt,
		); err != nil {
			return fmt.Errorf("failed to insert finding %s: %w", f.Train, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// Recent returns up to limit entries, newest first
func (s *Store) Recent(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, route_date, route_from, route_to, train, train_no, from_name, to_name,
		       depart_time, arrive_time, summary, total, link, pass, reported_at
		FROM findings
		ORDER BY reported_at DESC, id DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query history: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var (
			e    Entry
			pass string
			ms   int64
		)
		if err := rows.Scan(
			&e.ID, &e.Route.Date, &e.Route.From, &e.Route.To,
			&e.Finding.Train, &e.Finding.TrainNo, &e.Finding.FromName, &e.Finding.ToName,
			&e.Finding.DepartTime, &e.Finding.ArriveTime, &e.Finding.Summary, &e.Finding.Total,
			&e.Finding.Link, &pass, &ms,
		); err != nil {
			return nil, fmt.Errorf("failed to scan history row: %w", err)
		}
		e.Finding.Pass = search.Pass(pass)
		e.ReportedAt = time.UnixMilli(ms)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Count returns the number of stored findings
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM findings").Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count history: %w", err)
	}
	return n, nil
}
