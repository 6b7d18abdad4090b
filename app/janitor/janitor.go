package janitor

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/coresuz/tangabot/app/assets"
	"github.com/coresuz/tangabot/app/storage"
	"github.com/coresuz/tangabot/core/logger"

	"github.com/robfig/cron/v3"
)

// Janitor periodically prunes abandoned wizard sessions and their
// staged image files once they pass the retention window.
type Janitor struct {
	sessions  *storage.SessionRepo
	assets    *assets.Manager
	activity  *storage.ActivityRepo
	retention time.Duration
	// activityKeep bounds the activity journal; it outlives sessions.
	activityKeep time.Duration
	schedule     string
	cron         *cron.Cron
}

// New builds a janitor. schedule is a cron expression; retention is
// how long a stale session or staged file survives.
func New(sessions *storage.SessionRepo, mgr *assets.Manager, schedule string, retention time.Duration) *Janitor {
	if schedule == "" {
		schedule = "@hourly"
	}
	if retention <= 0 {
		retention = 24 * time.Hour
	}
	return &Janitor{
		sessions:  sessions,
		assets:    mgr,
		retention: retention,
		schedule:  schedule,
	}
}

// TrackActivity enables journal pruning: activity entries older than
// keep are removed each sweep.
func (j *Janitor) TrackActivity(repo *storage.ActivityRepo, keep time.Duration) {
	if keep <= 0 {
		keep = 30 * 24 * time.Hour
	}
	j.activity = repo
	j.activityKeep = keep
}

// Start registers the cron entry and begins scheduling.
func (j *Janitor) Start() error {
	c := cron.New()
	if _, err := c.AddFunc(j.schedule, func() { j.RunOnce(context.Background()) }); err != nil {
		return fmt.Errorf("janitor: bad schedule %q: %w", j.schedule, err)
	}
	j.cron = c
	c.Start()
	logger.JAN.Info("janitor started",
		slog.String("event", "janitor.started"),
		slog.String("schedule", j.schedule),
		slog.Duration("retention", j.retention),
	)
	return nil
}

// Stop halts scheduling and waits for a running sweep to finish.
func (j *Janitor) Stop() {
	if j.cron == nil {
		return
	}
	<-j.cron.Stop().Done()
}

// RunOnce performs a single cleanup sweep.
func (j *Janitor) RunOnce(ctx context.Context) {
	cutoff := time.Now().Add(-j.retention)

	pruned, err := j.sessions.DeleteStale(ctx, cutoff.Unix())
	if err != nil {
		logger.JAN.Error("session prune failed",
			slog.String("event", "janitor.sessions"),
			slog.String("err", err.Error()),
		)
	}

	removed := 0
	if j.assets != nil {
		removed, err = j.assets.PruneStaging(cutoff)
		if err != nil {
			logger.JAN.Error("asset prune failed",
				slog.String("event", "janitor.assets"),
				slog.String("err", err.Error()),
			)
		}
	}

	var journal int64
	if j.activity != nil {
		journal, err = j.activity.DeleteBefore(ctx, time.Now().Add(-j.activityKeep).Unix())
		if err != nil {
			logger.JAN.Error("journal prune failed",
				slog.String("event", "janitor.activity"),
				slog.String("err", err.Error()),
			)
		}
	}

	logger.JAN.Info("sweep complete",
		slog.String("event", "janitor.sweep"),
		slog.Int64("sessions", pruned),
		slog.Int("files", removed),
		slog.Int64("journal", journal),
	)
}
