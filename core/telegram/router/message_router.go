package router

import (
	"context"
	"strings"
	"time"

	tg "github.com/coresuz/tangabot/core/telegram"
	tghelpers "github.com/coresuz/tangabot/core/telegram/helpers"
	"github.com/coresuz/tangabot/core/telegram/middleware"

	tele "gopkg.in/telebot.v4"
)

// Wizard defines the minimal interface for a conversational flow manager.
// InProgress consults durable session state, so a flow survives restarts.
type Wizard interface {
	InProgress(ctx context.Context, userID int64) bool
	HandleText(c tele.Context) error
	HandlePhoto(c tele.Context) error
}

// TextOptions controls fallback behaviour for text/photo updates.
type TextOptions struct {
	UnknownText  tele.HandlerFunc
	UnknownPhoto tele.HandlerFunc

	// Breakout lists commands that preempt an active wizard, so e.g.
	// a typed /cancel is never consumed as step input.
	Breakout []string
}

// breakoutCommand reports whether the message is one of the breakout
// commands, returning the bare command name. The bot mention suffix
// and any arguments are ignored.
func breakoutCommand(text string, breakouts []string) (string, bool) {
	if len(breakouts) == 0 || !strings.HasPrefix(text, "/") {
		return "", false
	}
	tok := text
	if i := strings.IndexAny(tok, " \t\n"); i >= 0 {
		tok = tok[:i]
	}
	if i := strings.Index(tok, "@"); i >= 0 {
		tok = tok[:i]
	}
	for _, b := range breakouts {
		if tok == b {
			return tok, true
		}
	}
	return "", false
}

// TextRoutes builds handlers for text and photo routing.
// A wizard session takes priority over command lookup so mid-flow input
// is never swallowed by the registry.
func TextRoutes(wiz Wizard, reg *tg.Registry, opts TextOptions) []tg.Route {
	handler := func(c tele.Context) error {
		start := time.Now()
		text := c.Text()

		if reg != nil {
			if name, ok := breakoutCommand(text, opts.Breakout); ok {
				if key, cmd, found := reg.LookupCommand(name); found && cmd.Handler != nil {
					return handleWithSummary(c, normalizeHandlerName(key), start, "", "", func() error {
						return cmd.Handler(c)
					})
				}
			}
		}

		if wiz != nil && wiz.InProgress(tghelpers.BuildContext(c), c.Sender().ID) {
			return handleWithSummary(c, "wizard", start, "", "", func() error {
				return wiz.HandleText(c)
			})
		}

		if reg != nil {
			if key, cmd, ok := reg.LookupCommand(text); ok && cmd.Handler != nil {
				name := normalizeHandlerName(key)
				return handleWithSummary(c, name, start, "", "", func() error {
					return cmd.Handler(c)
				})
			}
		}

		if reg != nil {
			if fb := reg.TextFallback(); fb != nil {
				return handleWithSummary(c, "fallback", start, "", "", func() error {
					return fb(c)
				})
			}
		}

		if opts.UnknownText != nil {
			return handleWithSummary(c, "unknown_text", start, "", "", func() error {
				return opts.UnknownText(c)
			})
		}

		logHandlerSummary(c, "unknown_text", start, "skip", "ok", nil)
		return nil
	}

	photoHandler := func(c tele.Context) error {
		start := time.Now()
		if wiz != nil && wiz.InProgress(tghelpers.BuildContext(c), c.Sender().ID) {
			return handleWithSummary(c, "wizard_photo", start, "", "", func() error {
				return wiz.HandlePhoto(c)
			})
		}
		if opts.UnknownPhoto != nil {
			return handleWithSummary(c, "unexpected_photo", start, "", "", func() error {
				return opts.UnknownPhoto(c)
			})
		}
		logHandlerSummary(c, "unexpected_photo", start, "skip", "ok", nil)
		return nil
	}

	return []tg.Route{
		{
			Endpoint: tele.OnText,
			Handler:  middleware.RecoverMiddleware(middleware.LoggerMiddleware(handler)),
		},
		{
			Endpoint: tele.OnPhoto,
			Handler:  middleware.RecoverMiddleware(middleware.LoggerMiddleware(photoHandler)),
		},
	}
}
