package middleware

import (
	"context"

	"github.com/coresuz/tangabot/core/logger"
	tghelpers "github.com/coresuz/tangabot/core/telegram/helpers"
	"log/slog"

	tele "gopkg.in/telebot.v4"
)

// RoleChecker answers role lookups for a user. Checks hit the admin
// directory on every call so revocations take effect immediately.
type RoleChecker interface {
	IsAdmin(ctx context.Context, userID int64) (bool, error)
	IsPrimary(ctx context.Context, userID int64) (bool, error)
}

// AccessOptions defines how role-gated checks should behave.
type AccessOptions struct {
	Roles    RoleChecker
	OnReject tele.HandlerFunc
}

func (o AccessOptions) allowed(c tele.Context, primaryOnly bool) bool {
	user := c.Sender()
	if o.Roles == nil || user == nil {
		return false
	}
	ctx := tghelpers.BuildContext(c)
	var (
		ok  bool
		err error
	)
	if primaryOnly {
		ok, err = o.Roles.IsPrimary(ctx, user.ID)
	} else {
		ok, err = o.Roles.IsAdmin(ctx, user.ID)
	}
	if err != nil {
		logger.TG.Error("role lookup failed",
			slog.String("event", "tg.access"),
			slog.Int64("user_id", user.ID),
			slog.String("err", err.Error()),
		)
		return false
	}
	return ok
}

// WithAccessCheck wraps a command handler enforcing role-gated execution when required.
func WithAccessCheck(opts AccessOptions, cmd struct {
	AdminOnly   bool
	PrimaryOnly bool
	Handler     tele.HandlerFunc
}) tele.HandlerFunc {
	if !cmd.AdminOnly && !cmd.PrimaryOnly {
		return cmd.Handler
	}
	return func(c tele.Context) error {
		if !opts.allowed(c, cmd.PrimaryOnly) {
			if opts.OnReject != nil {
				return opts.OnReject(c)
			}
			return nil
		}
		return cmd.Handler(c)
	}
}

// AdminOnlyMiddleware ensures that only users with an admin role can invoke
// downstream handlers.
func AdminOnlyMiddleware(opts AccessOptions) tele.MiddlewareFunc {
	return func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) error {
			if !opts.allowed(c, false) {
				if opts.OnReject != nil {
					return opts.OnReject(c)
				}
				return nil
			}
			return next(c)
		}
	}
}

// PrimaryOnlyMiddleware restricts downstream handlers to the primary admin.
func PrimaryOnlyMiddleware(opts AccessOptions) tele.MiddlewareFunc {
	return func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) error {
			if !opts.allowed(c, true) {
				if opts.OnReject != nil {
					return opts.OnReject(c)
				}
				return nil
			}
			return next(c)
		}
	}
}
