package store

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

// DB wraps a SQLite database connection
type DB struct {
	*sql.DB
}

// New opens a SQLite database at the given path (":memory:" for tests)
func New(dataSourceName string) (*DB, error) {
	db, err := sql.Open("sqlite", dataSourceName)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Single writer; the sqlite driver returns SQLITE_BUSY under
	// concurrent connections otherwise
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}

	return &DB{db}, nil
}

// WithTx runs fn inside a transaction, rolling back on error.
func (db *DB) WithTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("rollback failed: %v (original error: %w)", rbErr, err)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// EnsureSchema creates the schema on a fresh database and is a no-op on an
// existing one.
func (db *DB) EnsureSchema() error {
	var n int
	err := db.QueryRow(
		`SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = 'jobs'`,
	).Scan(&n)
	if err != nil {
		return fmt.Errorf("failed to inspect schema: %w", err)
	}
	if n > 0 {
		return nil
	}
	return db.RunMigrations()
}

// RunMigrations creates the schema. In production migrations would run via a
// migrate CLI; inline keeps tests and single-binary deploys simple.
func (db *DB) RunMigrations() error {
	migration := `
-- Participants (profile data lives in the account service)
CREATE TABLE users (
    id TEXT PRIMARY KEY,
    name TEXT NOT NULL,
    email TEXT NOT NULL UNIQUE,
    role TEXT NOT NULL CHECK(role IN ('client', 'freelancer', 'admin')),
    created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);

-- Job postings
CREATE TABLE jobs (
    id TEXT PRIMARY KEY,
    client_id TEXT NOT NULL,
    title TEXT NOT NULL,
    description TEXT NOT NULL DEFAULT '',
    skills TEXT NOT NULL DEFAULT '[]',
    budget_min REAL NOT NULL,
    budget_max REAL NOT NULL,
    currency TEXT NOT NULL DEFAULT 'USD',
    deadline TIMESTAMP NOT NULL,
    status TEXT NOT NULL DEFAULT 'open'
        CHECK(status IN ('open', 'in-progress', 'completed', 'cancelled', 'closed')),
    experience_level TEXT NOT NULL DEFAULT 'intermediate'
        CHECK(experience_level IN ('entry', 'intermediate', 'expert')),
    is_urgent INTEGER NOT NULL DEFAULT 0,
    total_bids INTEGER NOT NULL DEFAULT 0,
    accepted_bid TEXT,
    accepted_freelancer TEXT,
    project_start_date TIMESTAMP,
    project_end_date TIMESTAMP,
    completed_at TIMESTAMP,
    created_at TIMESTAMP NOT NULL,
    updated_at TIMESTAMP NOT NULL,
    CHECK(budget_min < budget_max),
    FOREIGN KEY (client_id) REFERENCES users(id)
);
CREATE INDEX idx_jobs_client ON jobs(client_id);
CREATE INDEX idx_jobs_status ON jobs(status);
CREATE INDEX idx_jobs_accepted_freelancer ON jobs(accepted_freelancer);

-- Bids; one per (job, freelancer) pair
CREATE TABLE bids (
    id TEXT PRIMARY KEY,
    job_id TEXT NOT NULL,
    freelancer_id TEXT NOT NULL,
    proposal TEXT NOT NULL,
    bid_amount REAL NOT NULL CHECK(bid_amount > 0),
    estimated_delivery TIMESTAMP NOT NULL,
    status TEXT NOT NULL DEFAULT 'pending'
        CHECK(status IN ('pending', 'accepted', 'rejected', 'withdrawn')),
    accepted_at TIMESTAMP,
    rejected_at TIMESTAMP,
    client_notes TEXT NOT NULL DEFAULT '',
    created_at TIMESTAMP NOT NULL,
    updated_at TIMESTAMP NOT NULL,
    UNIQUE(job_id, freelancer_id),
    FOREIGN KEY (job_id) REFERENCES jobs(id) ON DELETE CASCADE,
    FOREIGN KEY (freelancer_id) REFERENCES users(id)
);
CREATE INDEX idx_bids_job ON bids(job_id);
CREATE INDEX idx_bids_freelancer ON bids(freelancer_id);

-- Per-job conversations
CREATE TABLE messages (
    id TEXT PRIMARY KEY,
    job_id TEXT NOT NULL,
    sender_id TEXT NOT NULL,
    recipient_id TEXT NOT NULL,
    content TEXT NOT NULL,
    message_type TEXT NOT NULL DEFAULT 'text'
        CHECK(message_type IN ('text', 'file', 'system')),
    is_read INTEGER NOT NULL DEFAULT 0,
    read_at TIMESTAMP,
    created_at TIMESTAMP NOT NULL,
    FOREIGN KEY (job_id) REFERENCES jobs(id) ON DELETE CASCADE,
    FOREIGN KEY (sender_id) REFERENCES users(id),
    FOREIGN KEY (recipient_id) REFERENCES users(id)
);
CREATE INDEX idx_messages_job ON messages(job_id, created_at);
CREATE INDEX idx_messages_recipient_unread ON messages(recipient_id, is_read);
`

	if _, err := db.Exec(migration); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}
