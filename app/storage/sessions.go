package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
)

// ErrNotFound is returned when a lookup matches no row.
var ErrNotFound = errors.New("storage: not found")

// Session is one persisted wizard flow, keyed by owner and kind.
// Payload holds the step-accumulated draft as JSON; the wizard layer
// owns its shape, storage treats it as opaque text.
type Session struct {
	AdminID   int64  `db:"admin_id"`
	Kind      string `db:"kind"`
	Step      string `db:"step"`
	Payload   []byte `db:"payload"`
	UpdatedAt int64  `db:"updated_at"`
}

// SessionRepo persists wizard sessions.
type SessionRepo struct {
	db *sqlx.DB
}

// Get loads the session for a specific flow kind.
func (r *SessionRepo) Get(ctx context.Context, adminID int64, kind string) (*Session, error) {
	q := r.db.Rebind(`SELECT admin_id, kind, step, payload, updated_at
		FROM wizard_sessions WHERE admin_id = ? AND kind = ?`)
	var s Session
	if err := r.db.GetContext(ctx, &s, q, adminID, kind); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("session get: %w", err)
	}
	return &s, nil
}

// GetActive returns the most recently touched session for the owner,
// regardless of kind.
func (r *SessionRepo) GetActive(ctx context.Context, adminID int64) (*Session, error) {
	q := r.db.Rebind(`SELECT admin_id, kind, step, payload, updated_at
		FROM wizard_sessions WHERE admin_id = ?
		ORDER BY updated_at DESC LIMIT 1`)
	var s Session
	if err := r.db.GetContext(ctx, &s, q, adminID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("session get active: %w", err)
	}
	return &s, nil
}

// Put replaces the session for (admin, kind) wholesale.
func (r *SessionRepo) Put(ctx context.Context, s *Session) error {
	if s == nil {
		return errors.New("storage: nil session")
	}
	if s.UpdatedAt == 0 {
		s.UpdatedAt = time.Now().Unix()
	}
	if len(s.Payload) == 0 {
		s.Payload = []byte("{}")
	}
	q := r.db.Rebind(`INSERT INTO wizard_sessions (admin_id, kind, step, payload, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (admin_id, kind) DO UPDATE SET
			step = excluded.step,
			payload = excluded.payload,
			updated_at = excluded.updated_at`)
	if _, err := r.db.ExecContext(ctx, q, s.AdminID, s.Kind, s.Step, s.Payload, s.UpdatedAt); err != nil {
		return fmt.Errorf("session put: %w", err)
	}
	return nil
}

// Delete removes the session for (admin, kind). Missing rows are not an error.
func (r *SessionRepo) Delete(ctx context.Context, adminID int64, kind string) error {
	q := r.db.Rebind(`DELETE FROM wizard_sessions WHERE admin_id = ? AND kind = ?`)
	if _, err := r.db.ExecContext(ctx, q, adminID, kind); err != nil {
		return fmt.Errorf("session delete: %w", err)
	}
	return nil
}

// DeleteAll removes every session owned by the admin.
func (r *SessionRepo) DeleteAll(ctx context.Context, adminID int64) error {
	q := r.db.Rebind(`DELETE FROM wizard_sessions WHERE admin_id = ?`)
	if _, err := r.db.ExecContext(ctx, q, adminID); err != nil {
		return fmt.Errorf("session delete all: %w", err)
	}
	return nil
}

// DeleteStale prunes sessions last touched before cutoff and reports the count.
func (r *SessionRepo) DeleteStale(ctx context.Context, cutoff int64) (int64, error) {
	q := r.db.Rebind(`DELETE FROM wizard_sessions WHERE updated_at < ?`)
	res, err := r.db.ExecContext(ctx, q, cutoff)
	if err != nil {
		return 0, fmt.Errorf("session delete stale: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}
