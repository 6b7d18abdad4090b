package broadcast

import (
	"context"
	"log/slog"

	"github.com/coresuz/tangabot/core/logger"
	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

// Button is an optional link attached to an outbound announcement.
type Button struct {
	Text string
	URL  string
}

// Message is one announcement rendered for delivery.
type Message struct {
	Text      string
	ImagePath string
	Button    *Button
}

// Tally aggregates the outcome of one broadcast run.
type Tally struct {
	Attempted int64
	Failed    int64
}

// Sender delivers a single message to a single recipient.
type Sender interface {
	SendText(ctx context.Context, recipient int64, text string, btn *Button) error
	SendPhoto(ctx context.Context, recipient int64, path, caption string, btn *Button) error
}

// Dispatcher fans an announcement out to a recipient list. Sends are
// sequential and paced by a rate limiter; a failed recipient is logged
// and skipped, never aborting the run. Exactly one attempt per
// recipient, no retries.
type Dispatcher struct {
	sender  Sender
	limiter *rate.Limiter
}

// NewDispatcher builds a dispatcher pacing sends at ratePerSec.
// ratePerSec <= 0 disables pacing.
func NewDispatcher(sender Sender, ratePerSec float64) *Dispatcher {
	var lim *rate.Limiter
	if ratePerSec > 0 {
		lim = rate.NewLimiter(rate.Limit(ratePerSec), 1)
	}
	return &Dispatcher{sender: sender, limiter: lim}
}

// Dispatch delivers msg to every recipient and returns the tally.
// Context cancellation stops the run early; recipients not reached are
// not counted as attempted.
func (d *Dispatcher) Dispatch(ctx context.Context, msg Message, recipients []int64) Tally {
	runID := uuid.NewString()
	logger.BC.Info("dispatch start",
		slog.String("event", "dispatch.start"),
		slog.String("run_id", runID),
		slog.Int("recipients", len(recipients)),
		slog.Bool("image", msg.ImagePath != ""),
	)

	var tally Tally
	for _, recipient := range recipients {
		if d.limiter != nil {
			if err := d.limiter.Wait(ctx); err != nil {
				logger.BC.Warn("dispatch interrupted",
					slog.String("event", "dispatch.interrupted"),
					slog.String("run_id", runID),
					slog.Int64("attempted", tally.Attempted),
					slog.String("err", err.Error()),
				)
				return tally
			}
		} else if ctx.Err() != nil {
			return tally
		}

		tally.Attempted++
		if err := d.sendOne(ctx, msg, recipient); err != nil {
			tally.Failed++
			logger.BC.Warn("delivery failed",
				slog.String("event", "dispatch.failed"),
				slog.String("run_id", runID),
				slog.Int64("user_id", recipient),
				slog.String("err", err.Error()),
			)
		}
	}

	logger.BC.Info("dispatch complete",
		slog.String("event", "dispatch.complete"),
		slog.String("run_id", runID),
		slog.Int64("attempted", tally.Attempted),
		slog.Int64("failed", tally.Failed),
	)
	return tally
}

func (d *Dispatcher) sendOne(ctx context.Context, msg Message, recipient int64) error {
	if msg.ImagePath != "" {
		return d.sender.SendPhoto(ctx, recipient, msg.ImagePath, msg.Text, msg.Button)
	}
	return d.sender.SendText(ctx, recipient, msg.Text, msg.Button)
}
