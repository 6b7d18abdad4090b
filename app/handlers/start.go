package handlers

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"strings"

	"github.com/coresuz/tangabot/app/storage"
	"github.com/coresuz/tangabot/core/logger"
	"github.com/coresuz/tangabot/core/telegram/format"
	tghelpers "github.com/coresuz/tangabot/core/telegram/helpers"
	"github.com/coresuz/tangabot/core/telegram/keyboard"

	tele "gopkg.in/telebot.v4"
)

// newAuthKey returns the per-user key the mini app authenticates with.
func newAuthKey() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("handlers: auth key: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

// Start onboards the user: registers them with a fresh auth key,
// credits the referrer from the deep-link payload, and shows the main
// menu. Repeat calls only refresh the profile.
func (h *Handlers) Start(c tele.Context) error {
	ctx := tghelpers.BuildContext(c)
	from := c.Sender()
	if from == nil {
		return nil
	}

	key, err := newAuthKey()
	if err != nil {
		return err
	}

	user := &storage.User{
		ID:         from.ID,
		Username:   from.Username,
		FirstName:  from.FirstName,
		AuthKey:    key,
		ReferrerID: parseReferrer(c.Message(), from.ID),
	}
	if err := h.Store.Users.Upsert(ctx, user); err != nil {
		logger.TG.Error("onboarding failed",
			slog.String("event", "start.failed"),
			slog.Int64("user_id", from.ID),
			slog.String("err", err.Error()),
		)
		return tghelpers.SendText(c, "Что-то пошло не так, попробуйте ещё раз.")
	}
	if err := h.Store.Activity.Record(ctx, from.ID, "start"); err != nil {
		logger.TG.Warn("activity record failed",
			slog.String("event", "start.activity"),
			slog.Int64("user_id", from.ID),
			slog.String("err", err.Error()),
		)
	}

	text := fmt.Sprintf(
		"<b>Добро пожаловать в %s!</b>\n\nДобывайте монеты, выполняйте миссии и приглашайте друзей.",
		format.EscapeHTML(h.Cfg.App.Brand),
	)
	markup, err := h.mainMenu(ctx, from.ID)
	if err != nil {
		return err
	}

	if h.Cfg.App.WelcomeImage != "" {
		photo := &tele.Photo{File: tele.FromDisk(h.Cfg.App.WelcomeImage), Caption: text}
		return tghelpers.SendPhotoHTML(c, photo, markup)
	}
	return tghelpers.SendHTML(c, text, markup)
}

// parseReferrer reads the /start deep-link payload. Self-referrals are
// dropped.
func parseReferrer(msg *tele.Message, selfID int64) int64 {
	if msg == nil {
		return 0
	}
	payload := strings.TrimSpace(msg.Payload)
	if payload == "" {
		return 0
	}
	id, err := strconv.ParseInt(payload, 10, 64)
	if err != nil || id <= 0 || id == selfID {
		return 0
	}
	return id
}

func (h *Handlers) mainMenu(ctx context.Context, userID int64) (*tele.ReplyMarkup, error) {
	rows := [][]keyboard.InlineBtn{
		{{Text: "⛏ Открыть приложение", URL: h.miniAppLink(ctx, userID)}},
		{{Text: "👥 Пригласить друзей", Unique: cbCopyRef}},
	}
	isAdmin, err := h.Store.Admins.IsAdmin(ctx, userID)
	if err != nil {
		return nil, err
	}
	if isAdmin {
		rows = append(rows, []keyboard.InlineBtn{{Text: "🛠 Админ-панель", Unique: cbAdminPanel}})
	}
	return keyboard.InlineButtonsRows(rows...), nil
}

// miniAppURL prefers the runtime setting over the static config value.
func (h *Handlers) miniAppURL(ctx context.Context) string {
	if v, err := h.Store.Settings.Get(ctx, storage.SettingMiniAppURL); err == nil && v != "" {
		return v
	}
	return h.Cfg.App.MiniAppURL
}

// miniAppLink appends the user's stored credentials so the mini app
// can authenticate the session.
func (h *Handlers) miniAppLink(ctx context.Context, userID int64) string {
	base := h.miniAppURL(ctx)
	u, err := h.Store.Users.Get(ctx, userID)
	if err != nil || u.AuthKey == "" {
		return base
	}
	parsed, perr := url.Parse(base)
	if perr != nil {
		return base
	}
	q := parsed.Query()
	q.Set("user_id", strconv.FormatInt(userID, 10))
	q.Set("auth_key", u.AuthKey)
	parsed.RawQuery = q.Encode()
	return parsed.String()
}

// CopyRef sends the user their personal invite link with the current
// referral count.
func (h *Handlers) CopyRef(c tele.Context) error {
	ctx := tghelpers.BuildContext(c)
	from := c.Sender()
	if from == nil {
		return nil
	}

	count, err := h.Store.Users.CountReferrals(ctx, from.ID)
	if err != nil {
		return err
	}
	link := fmt.Sprintf("https://t.me/%s?start=%d", h.Cfg.Telegram.Username, from.ID)
	text := fmt.Sprintf(
		"Ваша реферальная ссылка:\n<code>%s</code>\n\nПриглашено друзей: <b>%d</b>",
		format.EscapeHTML(link), count,
	)
	return tghelpers.SendHTML(c, text)
}

// BackToMain re-renders the main menu.
func (h *Handlers) BackToMain(c tele.Context) error {
	ctx := tghelpers.BuildContext(c)
	from := c.Sender()
	if from == nil {
		return nil
	}
	markup, err := h.mainMenu(ctx, from.ID)
	if err != nil {
		return err
	}
	return tghelpers.SendHTML(c, "Главное меню:", markup)
}
