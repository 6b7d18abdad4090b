package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// Podcast delivery statuses.
const (
	PodcastStatusDraft = "draft"
	PodcastStatusSent  = "sent"
)

// Podcast is a committed announcement with its delivery tally.
type Podcast struct {
	ID         string `db:"id"`
	AuthorID   int64  `db:"author_id"`
	Title      string `db:"title"`
	Content    string `db:"content"`
	ImagePath  string `db:"image_path"`
	ButtonText string `db:"button_text"`
	ButtonURL  string `db:"button_url"`
	Target     string `db:"target"`
	TargetID   int64  `db:"target_id"`
	Recipients int64  `db:"recipients"`
	Attempted  int64  `db:"attempted"`
	Failed     int64  `db:"failed"`
	Status     string `db:"status"`
	CreatedAt  int64  `db:"created_at"`
	SentAt     int64  `db:"sent_at"`
}

// PodcastRepo persists announcement records.
type PodcastRepo struct {
	db *sqlx.DB
}

// Insert stores a new record, assigning an id when absent.
func (r *PodcastRepo) Insert(ctx context.Context, p *Podcast) error {
	if p == nil {
		return errors.New("storage: nil podcast")
	}
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.Status == "" {
		p.Status = PodcastStatusDraft
	}
	if p.CreatedAt == 0 {
		p.CreatedAt = time.Now().Unix()
	}
	q := r.db.Rebind(`INSERT INTO podcasts
		(id, author_id, title, content, image_path, button_text, button_url,
		 target, target_id, recipients, attempted, failed, status, created_at, sent_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if _, err := r.db.ExecContext(ctx, q,
		p.ID, p.AuthorID, p.Title, p.Content, p.ImagePath, p.ButtonText, p.ButtonURL,
		p.Target, p.TargetID, p.Recipients, p.Attempted, p.Failed, p.Status, p.CreatedAt, p.SentAt,
	); err != nil {
		return fmt.Errorf("podcast insert: %w", err)
	}
	return nil
}

// MarkSent records the delivery tally after dispatch completes.
func (r *PodcastRepo) MarkSent(ctx context.Context, id string, recipients, attempted, failed int64) error {
	q := r.db.Rebind(`UPDATE podcasts SET
		recipients = ?, attempted = ?, failed = ?, status = ?, sent_at = ?
		WHERE id = ?`)
	if _, err := r.db.ExecContext(ctx, q,
		recipients, attempted, failed, PodcastStatusSent, time.Now().Unix(), id,
	); err != nil {
		return fmt.Errorf("podcast mark sent: %w", err)
	}
	return nil
}

// Get returns a record by id.
func (r *PodcastRepo) Get(ctx context.Context, id string) (*Podcast, error) {
	q := r.db.Rebind(`SELECT id, author_id, title, content, image_path, button_text, button_url,
		target, target_id, recipients, attempted, failed, status, created_at, sent_at
		FROM podcasts WHERE id = ?`)
	var p Podcast
	if err := r.db.GetContext(ctx, &p, q, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("podcast get: %w", err)
	}
	return &p, nil
}

// CountSent returns the number of delivered announcements.
func (r *PodcastRepo) CountSent(ctx context.Context) (int64, error) {
	q := r.db.Rebind(`SELECT COUNT(1) FROM podcasts WHERE status = ?`)
	var n int64
	if err := r.db.GetContext(ctx, &n, q, PodcastStatusSent); err != nil {
		return 0, fmt.Errorf("podcast count sent: %w", err)
	}
	return n, nil
}
