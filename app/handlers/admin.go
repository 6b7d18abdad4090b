package handlers

import (
	"fmt"
	"strings"
	"time"

	"github.com/coresuz/tangabot/app/wizard"
	tghelpers "github.com/coresuz/tangabot/core/telegram/helpers"
	"github.com/coresuz/tangabot/core/telegram/keyboard"

	tele "gopkg.in/telebot.v4"
)

// Callback keys for the static menus. Wizard step callbacks live in the
// wizard package.
const (
	cbAdminPanel   = "admin_panel"
	cbSendPodcast  = "send_podcast"
	cbAddAdmin     = "add_admin"
	cbRemoveAdmin  = "remove_admin"
	cbUpdateConfig = "update_config"
	cbStats        = "stats"
	cbCopyRef      = "copy_ref"
	cbBackToMain   = "back_to_main"
)

const (
	dayWindow   = 24 * time.Hour
	weekWindow  = 7 * 24 * time.Hour
	monthWindow = 30 * 24 * time.Hour
)

// AdminPanel renders the admin menu. The primary admin additionally
// sees the management actions.
func (h *Handlers) AdminPanel(c tele.Context) error {
	ctx := tghelpers.BuildContext(c)
	from := c.Sender()
	if from == nil {
		return nil
	}

	rows := [][]keyboard.InlineBtn{
		{{Text: "📣 Отправить подкаст", Unique: cbSendPodcast}},
		{{Text: "📊 Статистика", Unique: cbStats}},
	}
	isPrimary, err := h.Store.Admins.IsPrimary(ctx, from.ID)
	if err != nil {
		return err
	}
	if isPrimary {
		rows = append(rows,
			[]keyboard.InlineBtn{
				{Text: "➕ Добавить админа", Unique: cbAddAdmin},
				{Text: "➖ Удалить админа", Unique: cbRemoveAdmin},
			},
			[]keyboard.InlineBtn{{Text: "⚙️ Обновить конфигурацию", Unique: cbUpdateConfig}},
		)
	}
	rows = append(rows, []keyboard.InlineBtn{{Text: "⬅️ Назад", Unique: cbBackToMain}})

	return tghelpers.SendHTML(c, "<b>Админ-панель</b>\n\nВыберите действие:", keyboard.InlineButtonsRows(rows...))
}

// Stats reports user activity, delivery history and admin headcount.
func (h *Handlers) Stats(c tele.Context) error {
	ctx := tghelpers.BuildContext(c)
	now := time.Now()

	total, err := h.Store.Users.Count(ctx)
	if err != nil {
		return err
	}
	day, err := h.Store.Users.CountActiveSince(ctx, now.Add(-dayWindow).Unix())
	if err != nil {
		return err
	}
	week, err := h.Store.Users.CountActiveSince(ctx, now.Add(-weekWindow).Unix())
	if err != nil {
		return err
	}
	month, err := h.Store.Users.CountActiveSince(ctx, now.Add(-monthWindow).Unix())
	if err != nil {
		return err
	}
	sent, err := h.Store.Podcasts.CountSent(ctx)
	if err != nil {
		return err
	}
	admins, err := h.Store.Admins.List(ctx)
	if err != nil {
		return err
	}
	recent, err := h.Store.Activity.Recent(ctx, 5)
	if err != nil {
		return err
	}

	var b strings.Builder
	fmt.Fprintf(&b,
		"<b>📊 Статистика</b>\n\n"+
			"Всего пользователей: <b>%d</b>\n"+
			"Активны за сутки: <b>%d</b>\n"+
			"Активны за неделю: <b>%d</b>\n"+
			"Активны за месяц: <b>%d</b>\n\n"+
			"Отправлено подкастов: <b>%d</b>\n"+
			"Администраторов: <b>%d</b>",
		total, day, week, month, sent, len(admins),
	)
	if len(recent) > 0 {
		b.WriteString("\n\nПоследние действия:")
		for _, s := range recent {
			ts := time.Unix(s.CreatedAt, 0).Format("02.01 15:04")
			fmt.Fprintf(&b, "\n<code>%s</code> %d — %s", ts, s.UserID, s.Action)
		}
	}
	return tghelpers.SendHTML(c, b.String())
}

// startFlow builds a handler that opens a wizard flow for the caller.
func (h *Handlers) startFlow(start func(c tele.Context) (wizard.Reply, error)) tele.HandlerFunc {
	return func(c tele.Context) error {
		reply, err := start(c)
		if err != nil {
			return err
		}
		return sendWizardReply(c, reply)
	}
}

// SendPodcast opens the broadcast composer.
func (h *Handlers) SendPodcast(c tele.Context) error {
	return h.startFlow(func(c tele.Context) (wizard.Reply, error) {
		return h.Engine.StartPodcast(tghelpers.BuildContext(c), c.Sender().ID)
	})(c)
}

// AddAdmin opens the delegate-admin flow.
func (h *Handlers) AddAdmin(c tele.Context) error {
	return h.startFlow(func(c tele.Context) (wizard.Reply, error) {
		return h.Engine.StartAdminAction(tghelpers.BuildContext(c), c.Sender().ID, wizard.StepAdminAdd)
	})(c)
}

// RemoveAdmin opens the revoke-admin flow.
func (h *Handlers) RemoveAdmin(c tele.Context) error {
	return h.startFlow(func(c tele.Context) (wizard.Reply, error) {
		return h.Engine.StartAdminAction(tghelpers.BuildContext(c), c.Sender().ID, wizard.StepAdminRemove)
	})(c)
}

// UpdateConfig opens the runtime-settings flow.
func (h *Handlers) UpdateConfig(c tele.Context) error {
	return h.startFlow(func(c tele.Context) (wizard.Reply, error) {
		return h.Engine.StartAdminAction(tghelpers.BuildContext(c), c.Sender().ID, wizard.StepConfigEdit)
	})(c)
}

// CancelFlow aborts whatever wizard the caller has open.
func (h *Handlers) CancelFlow(c tele.Context) error {
	reply, err := h.Engine.Cancel(tghelpers.BuildContext(c), c.Sender().ID)
	if err != nil {
		return err
	}
	return sendWizardReply(c, reply)
}
