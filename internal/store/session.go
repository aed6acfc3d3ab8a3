package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jtandoc/speakquest/internal/watchdog"
)

// SessionRepo stores session-time-budget records. It implements
// watchdog.SessionStore and adds the creation side used at sign-in.
type SessionRepo struct {
	db *sql.DB
}

var _ watchdog.SessionStore = (*SessionRepo)(nil)

// Create inserts a new session record.
func (r *SessionRepo) Create(ctx context.Context, sess *watchdog.Session) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO sessions (id, minutes_allowed, status, started_at, end_at)
		 VALUES (?, ?, ?, ?, ?)`,
		sess.ID, sess.MinutesAllowed, sess.Status, sess.StartedAt, sess.EndAt,
	)
	if err != nil {
		return fmt.Errorf("create session: %w", err)
	}
	return nil
}

// Active returns the most recent non-ended session, or (nil, nil) when
// none exists.
func (r *SessionRepo) Active(ctx context.Context) (*watchdog.Session, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, minutes_allowed, status, started_at, end_at
		 FROM sessions WHERE status != ? ORDER BY started_at DESC LIMIT 1`,
		watchdog.StatusEnded,
	)
	var sess watchdog.Session
	err := row.Scan(&sess.ID, &sess.MinutesAllowed, &sess.Status, &sess.StartedAt, &sess.EndAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query active session: %w", err)
	}
	return &sess, nil
}

// MarkEnded flips the session to ended. The WHERE guard makes the
// transition fire for exactly one caller even under duplicate checks.
func (r *SessionRepo) MarkEnded(ctx context.Context, id string) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE sessions SET status = ? WHERE id = ? AND status != ?`,
		watchdog.StatusEnded, id, watchdog.StatusEnded,
	)
	if err != nil {
		return false, fmt.Errorf("mark session ended: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("mark session ended: %w", err)
	}
	return n > 0, nil
}

// Delete removes the session record.
func (r *SessionRepo) Delete(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}
