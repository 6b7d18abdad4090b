package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
)

// User is a bot subscriber.
type User struct {
	ID         int64  `db:"id"`
	Username   string `db:"username"`
	FirstName  string `db:"first_name"`
	AuthKey    string `db:"auth_key"`
	ReferrerID int64  `db:"referrer_id"`
	CreatedAt  int64  `db:"created_at"`
	LastSeenAt int64  `db:"last_seen_at"`
}

// UserRepo persists subscribers and answers directory queries for broadcasts.
type UserRepo struct {
	db *sqlx.DB
}

// Upsert registers a user on first contact and refreshes profile fields
// afterwards. AuthKey and ReferrerID are written once and never overwritten.
func (r *UserRepo) Upsert(ctx context.Context, u *User) error {
	if u == nil {
		return errors.New("storage: nil user")
	}
	now := time.Now().Unix()
	if u.CreatedAt == 0 {
		u.CreatedAt = now
	}
	if u.LastSeenAt == 0 {
		u.LastSeenAt = now
	}
	q := r.db.Rebind(`INSERT INTO users (id, username, first_name, auth_key, referrer_id, created_at, last_seen_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			username = excluded.username,
			first_name = excluded.first_name,
			last_seen_at = excluded.last_seen_at`)
	if _, err := r.db.ExecContext(ctx, q,
		u.ID, u.Username, u.FirstName, u.AuthKey, u.ReferrerID, u.CreatedAt, u.LastSeenAt,
	); err != nil {
		return fmt.Errorf("user upsert: %w", err)
	}
	return nil
}

// Touch refreshes last activity for the user.
func (r *UserRepo) Touch(ctx context.Context, id int64) error {
	q := r.db.Rebind(`UPDATE users SET last_seen_at = ? WHERE id = ?`)
	if _, err := r.db.ExecContext(ctx, q, time.Now().Unix(), id); err != nil {
		return fmt.Errorf("user touch: %w", err)
	}
	return nil
}

// Get returns a user by id.
func (r *UserRepo) Get(ctx context.Context, id int64) (*User, error) {
	q := r.db.Rebind(`SELECT id, username, first_name, auth_key, referrer_id, created_at, last_seen_at
		FROM users WHERE id = ?`)
	var u User
	if err := r.db.GetContext(ctx, &u, q, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("user get: %w", err)
	}
	return &u, nil
}

// Exists reports whether the user is registered.
func (r *UserRepo) Exists(ctx context.Context, id int64) (bool, error) {
	q := r.db.Rebind(`SELECT COUNT(1) FROM users WHERE id = ?`)
	var n int
	if err := r.db.GetContext(ctx, &n, q, id); err != nil {
		return false, fmt.Errorf("user exists: %w", err)
	}
	return n > 0, nil
}

// ListIDs returns subscriber ids active at or after activeSince,
// ordered by id for deterministic fan-out. activeSince == 0 lists everyone.
func (r *UserRepo) ListIDs(ctx context.Context, activeSince int64) ([]int64, error) {
	var (
		ids []int64
		err error
	)
	if activeSince <= 0 {
		q := r.db.Rebind(`SELECT id FROM users ORDER BY id`)
		err = r.db.SelectContext(ctx, &ids, q)
	} else {
		q := r.db.Rebind(`SELECT id FROM users WHERE last_seen_at >= ? ORDER BY id`)
		err = r.db.SelectContext(ctx, &ids, q, activeSince)
	}
	if err != nil {
		return nil, fmt.Errorf("user list ids: %w", err)
	}
	return ids, nil
}

// Count returns the number of registered users.
func (r *UserRepo) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := r.db.GetContext(ctx, &n, `SELECT COUNT(1) FROM users`); err != nil {
		return 0, fmt.Errorf("user count: %w", err)
	}
	return n, nil
}

// CountActiveSince returns the number of users active at or after the cutoff.
func (r *UserRepo) CountActiveSince(ctx context.Context, cutoff int64) (int64, error) {
	q := r.db.Rebind(`SELECT COUNT(1) FROM users WHERE last_seen_at >= ?`)
	var n int64
	if err := r.db.GetContext(ctx, &n, q, cutoff); err != nil {
		return 0, fmt.Errorf("user count active: %w", err)
	}
	return n, nil
}

// CountReferrals returns how many users were referred by the given user.
func (r *UserRepo) CountReferrals(ctx context.Context, referrerID int64) (int64, error) {
	q := r.db.Rebind(`SELECT COUNT(1) FROM users WHERE referrer_id = ?`)
	var n int64
	if err := r.db.GetContext(ctx, &n, q, referrerID); err != nil {
		return 0, fmt.Errorf("user count referrals: %w", err)
	}
	return n, nil
}
