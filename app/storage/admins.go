package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
)

// Admin roles. The primary admin is seeded from configuration and cannot
// be removed through the bot.
const (
	RolePrimary   = "primary"
	RoleDelegated = "delegated"
)

// ErrPrimaryImmutable is returned on attempts to remove or demote the primary admin.
var ErrPrimaryImmutable = errors.New("storage: primary admin cannot be removed")

// Admin is a user allowed to drive admin flows.
type Admin struct {
	UserID    int64  `db:"user_id"`
	Role      string `db:"role"`
	AddedBy   int64  `db:"added_by"`
	CreatedAt int64  `db:"created_at"`
}

// AdminRepo persists the admin directory.
type AdminRepo struct {
	db *sqlx.DB
}

// EnsurePrimary seeds the primary admin row. Safe to call on every start.
func (r *AdminRepo) EnsurePrimary(ctx context.Context, userID int64) error {
	if userID == 0 {
		return errors.New("storage: zero primary admin id")
	}
	q := r.db.Rebind(`INSERT INTO admins (user_id, role, added_by, created_at)
		VALUES (?, ?, 0, ?)
		ON CONFLICT (user_id) DO UPDATE SET role = excluded.role`)
	if _, err := r.db.ExecContext(ctx, q, userID, RolePrimary, time.Now().Unix()); err != nil {
		return fmt.Errorf("admin ensure primary: %w", err)
	}
	return nil
}

// Add grants the delegated role. Adding an existing admin is a no-op
// that never downgrades the primary.
func (r *AdminRepo) Add(ctx context.Context, userID, addedBy int64) error {
	q := r.db.Rebind(`INSERT INTO admins (user_id, role, added_by, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (user_id) DO NOTHING`)
	if _, err := r.db.ExecContext(ctx, q, userID, RoleDelegated, addedBy, time.Now().Unix()); err != nil {
		return fmt.Errorf("admin add: %w", err)
	}
	return nil
}

// Remove revokes the delegated role. The primary admin is never removed.
func (r *AdminRepo) Remove(ctx context.Context, userID int64) error {
	role, err := r.Role(ctx, userID)
	if err != nil {
		return err
	}
	if role == RolePrimary {
		return ErrPrimaryImmutable
	}
	q := r.db.Rebind(`DELETE FROM admins WHERE user_id = ? AND role <> ?`)
	if _, err := r.db.ExecContext(ctx, q, userID, RolePrimary); err != nil {
		return fmt.Errorf("admin remove: %w", err)
	}
	return nil
}

// Role returns the role for the user or ErrNotFound.
func (r *AdminRepo) Role(ctx context.Context, userID int64) (string, error) {
	q := r.db.Rebind(`SELECT role FROM admins WHERE user_id = ?`)
	var role string
	if err := r.db.GetContext(ctx, &role, q, userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("admin role: %w", err)
	}
	return role, nil
}

// IsAdmin reports whether the user holds any admin role.
func (r *AdminRepo) IsAdmin(ctx context.Context, userID int64) (bool, error) {
	_, err := r.Role(ctx, userID)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// IsPrimary reports whether the user is the primary admin.
func (r *AdminRepo) IsPrimary(ctx context.Context, userID int64) (bool, error) {
	role, err := r.Role(ctx, userID)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return role == RolePrimary, nil
}

// List returns all admins ordered by creation time.
func (r *AdminRepo) List(ctx context.Context) ([]Admin, error) {
	var out []Admin
	if err := r.db.SelectContext(ctx, &out,
		`SELECT user_id, role, added_by, created_at FROM admins ORDER BY created_at, user_id`,
	); err != nil {
		return nil, fmt.Errorf("admin list: %w", err)
	}
	return out, nil
}
