package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS transitions (
    id          INTEGER PRIMARY KEY AUTOINCREMENT,
    host        INTEGER NOT NULL,
    address     TEXT    NOT NULL,
    status      TEXT    NOT NULL CHECK(status IN ('reachable', 'unreachable')),
    delivered   INTEGER NOT NULL,
    error       TEXT    NOT NULL DEFAULT '',
    notified_at TEXT    NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_transitions_host ON transitions(host);
CREATE INDEX IF NOT EXISTS idx_transitions_host_notified ON transitions(host, notified_at DESC);
`

// Transition is a journaled state change and the outcome of notifying it.
type Transition struct {
	ID         int64     `json:"id"`
	Host       int       `json:"host"`
	Address    string    `json:"address"`
	Status     string    `json:"status"`
	Delivered  bool      `json:"delivered"`
	Error      string    `json:"error"`
	NotifiedAt time.Time `json:"notified_at"`
}

// DB wraps a SQLite database.
type DB struct {
	db *sql.DB
}

// Open opens (or creates) the SQLite database at path and applies the schema.
func Open(path string) (*DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite at %q: %w", path, err)
	}
	// ":memory:" databases are per connection.
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("applying pragma %q: %w", p, err)
		}
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("applying schema: %w", err)
	}

	return &DB{db: db}, nil
}

// Close closes the underlying database connection.
func (d *DB) Close() error {
	return d.db.Close()
}

// RecordTransition appends a transition to the journal.
func (d *DB) RecordTransition(ctx context.Context, t Transition) error {
	delivered := 0
	if t.Delivered {
		delivered = 1
	}
	_, err := d.db.ExecContext(ctx,
		`INSERT INTO transitions (host, address, status, delivered, error, notified_at) VALUES (?, ?, ?, ?, ?, ?)`,
		t.Host,
		t.Address,
		t.Status,
		delivered,
		t.Error,
		t.NotifiedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("inserting transition for host %d: %w", t.Host, err)
	}
	return nil
}

// HostTransitions returns paginated transitions for a host, newest first, plus the total count.
func (d *DB) HostTransitions(ctx context.Context, host, limit, offset int) ([]Transition, int, error) {
	var total int
	err := d.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM transitions WHERE host = ?`, host,
	).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("counting transitions for host %d: %w", host, err)
	}

	rows, err := d.db.QueryContext(ctx,
		`SELECT id, host, address, status, delivered, error, notified_at FROM transitions WHERE host = ? ORDER BY id DESC LIMIT ? OFFSET ?`,
		host, limit, offset,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("querying transitions for host %d: %w", host, err)
	}
	defer rows.Close()

	ts, err := scanTransitions(rows)
	if err != nil {
		return nil, 0, err
	}
	return ts, total, nil
}

// AllLatest returns the most recent transition for each host, ordered by host.
func (d *DB) AllLatest(ctx context.Context) ([]Transition, error) {
	rows, err := d.db.QueryContext(ctx, `
		SELECT id, host, address, status, delivered, error, notified_at
		FROM transitions
		WHERE id IN (
			SELECT MAX(id) FROM transitions GROUP BY host
		)
		ORDER BY host
	`)
	if err != nil {
		return nil, fmt.Errorf("querying all latest: %w", err)
	}
	defer rows.Close()
	return scanTransitions(rows)
}

type scanner interface {
	Scan(dest ...any) error
}

func scanTransition(row scanner) (*Transition, error) {
	var t Transition
	var delivered int
	var notifiedAt string
	err := row.Scan(&t.ID, &t.Host, &t.Address, &t.Status, &delivered, &t.Error, &notifiedAt)
	if err != nil {
		return nil, err
	}
	t.Delivered = delivered != 0
	ts, err := time.Parse(time.RFC3339Nano, notifiedAt)
	if err != nil {
		return nil, fmt.Errorf("parsing notified_at %q: %w", notifiedAt, err)
	}
	t.NotifiedAt = ts
	return &t, nil
}

func scanTransitions(rows *sql.Rows) ([]Transition, error) {
	var ts []Transition
	for rows.Next() {
		t, err := scanTransition(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning transition row: %w", err)
		}
		ts = append(ts, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating transition rows: %w", err)
	}
	return ts, nil
}
