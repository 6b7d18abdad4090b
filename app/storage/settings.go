package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/jmoiron/sqlx"
)

// Runtime configuration keys managed through the admin flow.
const (
	SettingFirebaseURL    = "firebase_url"
	SettingFirebaseSecret = "firebase_secret"
	SettingMiniAppURL     = "mini_app_url"
)

// SettingsRepo persists runtime key/value configuration.
type SettingsRepo struct {
	db *sqlx.DB
}

// Get returns the value for key or ErrNotFound.
func (r *SettingsRepo) Get(ctx context.Context, key string) (string, error) {
	q := r.db.Rebind(`SELECT value FROM config_settings WHERE key = ?`)
	var v string
	if err := r.db.GetContext(ctx, &v, q, key); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("settings get: %w", err)
	}
	return v, nil
}

// SetMany upserts all pairs in one transaction so a partial update
// never becomes visible. Every row records which admin made the change.
func (r *SettingsRepo) SetMany(ctx context.Context, values map[string]string, actorID int64) error {
	if len(values) == 0 {
		return nil
	}
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("settings begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	now := time.Now().Unix()
	q := r.db.Rebind(`INSERT INTO config_settings (key, value, updated_by, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (key) DO UPDATE SET
			value = excluded.value,
			updated_by = excluded.updated_by,
			updated_at = excluded.updated_at`)

	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if _, err := tx.ExecContext(ctx, q, k, values[k], actorID, now); err != nil {
			return fmt.Errorf("settings set %s: %w", k, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("settings commit: %w", err)
	}
	return nil
}

// UpdatedBy returns which admin last changed the key, or ErrNotFound.
func (r *SettingsRepo) UpdatedBy(ctx context.Context, key string) (int64, error) {
	q := r.db.Rebind(`SELECT updated_by FROM config_settings WHERE key = ?`)
	var id int64
	if err := r.db.GetContext(ctx, &id, q, key); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, ErrNotFound
		}
		return 0, fmt.Errorf("settings updated by: %w", err)
	}
	return id, nil
}

// All returns every stored setting.
func (r *SettingsRepo) All(ctx context.Context) (map[string]string, error) {
	rows := []struct {
		Key   string `db:"key"`
		Value string `db:"value"`
	}{}
	if err := r.db.SelectContext(ctx, &rows, `SELECT key, value FROM config_settings`); err != nil {
		return nil, fmt.Errorf("settings all: %w", err)
	}
	out := make(map[string]string, len(rows))
	for _, row := range rows {
		out[row.Key] = row.Value
	}
	return out, nil
}
