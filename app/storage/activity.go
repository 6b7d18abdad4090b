package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// ActivityStat is one recorded user action.
type ActivityStat struct {
	ID        string `db:"id"`
	UserID    int64  `db:"user_id"`
	Action    string `db:"action"`
	CreatedAt int64  `db:"created_at"`
}

// ActivityRepo keeps a lightweight user-action journal feeding the
// admin stats view.
type ActivityRepo struct {
	db *sqlx.DB
}

// Record appends one action for the user.
func (r *ActivityRepo) Record(ctx context.Context, userID int64, action string) error {
	q := r.db.Rebind(`INSERT INTO activity_stats (id, user_id, action, created_at)
		VALUES (?, ?, ?, ?)`)
	if _, err := r.db.ExecContext(ctx, q, uuid.NewString(), userID, action, time.Now().Unix()); err != nil {
		return fmt.Errorf("activity record: %w", err)
	}
	return nil
}

// Recent returns the newest entries, newest first.
func (r *ActivityRepo) Recent(ctx context.Context, limit int) ([]ActivityStat, error) {
	if limit <= 0 {
		limit = 5
	}
	q := r.db.Rebind(`SELECT id, user_id, action, created_at FROM activity_stats
		ORDER BY created_at DESC, id DESC LIMIT ?`)
	var stats []ActivityStat
	if err := r.db.SelectContext(ctx, &stats, q, limit); err != nil {
		return nil, fmt.Errorf("activity recent: %w", err)
	}
	return stats, nil
}

// DeleteBefore drops journal entries older than the cutoff.
func (r *ActivityRepo) DeleteBefore(ctx context.Context, cutoff int64) (int64, error) {
	q := r.db.Rebind(`DELETE FROM activity_stats WHERE created_at < ?`)
	res, err := r.db.ExecContext(ctx, q, cutoff)
	if err != nil {
		return 0, fmt.Errorf("activity delete: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}
