package handlers

import (
	"context"

	"github.com/coresuz/tangabot/app/wizard"
	tghelpers "github.com/coresuz/tangabot/core/telegram/helpers"

	tele "gopkg.in/telebot.v4"
)

// wizardFlow adapts the engine to the message router's flow interface
// and renders engine replies back into Telegram messages.
type wizardFlow struct {
	engine *wizard.Engine
}

func (w *wizardFlow) InProgress(ctx context.Context, userID int64) bool {
	return w.engine.InProgress(ctx, userID)
}

func (w *wizardFlow) HandleText(c tele.Context) error {
	ctx := tghelpers.BuildContext(c)
	reply, err := w.engine.HandleText(ctx, c.Sender().ID, c.Text())
	if err != nil {
		return err
	}
	return sendWizardReply(c, reply)
}

func (w *wizardFlow) HandlePhoto(c tele.Context) error {
	msg := c.Message()
	if msg == nil || msg.Photo == nil {
		return nil
	}
	ctx := tghelpers.BuildContext(c)
	reply, err := w.engine.HandlePhoto(ctx, c.Sender().ID, msg.Photo.FileID)
	if err != nil {
		return err
	}
	return sendWizardReply(c, reply)
}

// callbackHandler builds a registry handler that forwards one wizard
// callback key to the engine.
func (h *Handlers) callbackHandler(key string) tele.HandlerFunc {
	return func(c tele.Context) error {
		ctx := tghelpers.BuildContext(c)
		reply, err := h.Engine.HandleCallback(ctx, c.Sender().ID, key)
		if err != nil {
			return err
		}
		return sendWizardReply(c, reply)
	}
}

// sendWizardReply renders an engine reply; an empty reply means the
// update was a no-op and nothing is sent.
func sendWizardReply(c tele.Context, reply wizard.Reply) error {
	if reply.Text == "" {
		return nil
	}
	markup := wizardMarkup(reply.Keyboard)
	if markup != nil {
		return tghelpers.SendHTML(c, reply.Text, markup)
	}
	return tghelpers.SendHTML(c, reply.Text)
}
