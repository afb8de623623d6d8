// Package sqlite persists tour progress and the per-user completion flag in
// SQLite through database/sql.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/aretw0/waypoint/pkg/domain"
	_ "modernc.org/sqlite"
)

// Store implements ports.ProgressStore and ports.CompletionRecorder.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the database at dsn with the pure-Go driver and
// prepares the schema. Use ":memory:" for a throwaway database.
func Open(dsn string) (*Store, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("sql.Open failed: %w", err)
	}
	// SQLite serializes writers anyway; one connection also keeps
	// in-memory databases from splitting per connection.
	db.SetMaxOpenConns(1)

	s, err := New(db)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// New initializes the schema in db and returns a Store. The caller owns db
// and must have imported a SQLite driver.
func New(db *sql.DB) (*Store, error) {
	s := &Store{db: db}
	if err := s.initSchema(context.Background()); err != nil {
		return nil, fmt.Errorf("failed to init schema: %w", err)
	}
	return s, nil
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS tour_progress (
		session_id TEXT PRIMARY KEY,
		tour_id TEXT NOT NULL,
		step_index INTEGER NOT NULL,
		phase TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);`,
	`CREATE TABLE IF NOT EXISTS tour_completed (
		user_id TEXT NOT NULL,
		tour_id TEXT NOT NULL,
		completed_at TEXT NOT NULL,
		PRIMARY KEY (user_id, tour_id)
	);`,
}

func (s *Store) initSchema(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

// Save upserts the progress record of a session.
func (s *Store) Save(ctx context.Context, sessionID string, p *domain.Progress) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO tour_progress (session_id, tour_id, step_index, phase, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (session_id) DO UPDATE SET
			tour_id = excluded.tour_id,
			step_index = excluded.step_index,
			phase = excluded.phase,
			updated_at = excluded.updated_at`,
		sessionID, p.TourID, p.StepIndex, string(p.Phase), p.UpdatedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("failed to save progress: %w", err)
	}
	return nil
}

// Load returns the progress record of a session.
func (s *Store) Load(ctx context.Context, sessionID string) (*domain.Progress, error) {
	var (
		p       = domain.Progress{SessionID: sessionID}
		phase   string
		updated string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT tour_id, step_index, phase, updated_at FROM tour_progress WHERE session_id = ?`,
		sessionID,
	).Scan(&p.TourID, &p.StepIndex, &phase, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrProgressNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load progress: %w", err)
	}

	p.Phase = domain.Phase(phase)
	if p.UpdatedAt, err = time.Parse(time.RFC3339Nano, updated); err != nil {
		return nil, fmt.Errorf("corrupt updated_at for %s: %w", sessionID, err)
	}
	return &p, nil
}

// Delete removes the progress record.
func (s *Store) Delete(ctx context.Context, sessionID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM tour_progress WHERE session_id = ?`, sessionID)
	return err
}

// List returns the sessions with saved progress.
func (s *Store) List(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT session_id FROM tour_progress ORDER BY session_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list progress: %w", err)
	}
	defer rows.Close()

	sessions := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		sessions = append(sessions, id)
	}
	return sessions, rows.Err()
}

// MarkCompleted sets the completion flag of userID for tourID.
func (s *Store) MarkCompleted(ctx context.Context, userID, tourID string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO tour_completed (user_id, tour_id, completed_at) VALUES (?, ?, ?)
		ON CONFLICT (user_id, tour_id) DO UPDATE SET completed_at = excluded.completed_at`,
		userID, tourID, time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("failed to mark completion: %w", err)
	}
	return nil
}

// IsCompleted reports whether the completion flag is set.
func (s *Store) IsCompleted(ctx context.Context, userID, tourID string) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM tour_completed WHERE user_id = ? AND tour_id = ?`,
		userID, tourID,
	).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("failed to read completion: %w", err)
	}
	return n > 0, nil
}

// Reset clears the completion flag.
func (s *Store) Reset(ctx context.Context, userID, tourID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM tour_completed WHERE user_id = ? AND tour_id = ?`, userID, tourID)
	return err
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}
