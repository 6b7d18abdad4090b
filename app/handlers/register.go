package handlers

import (
	"github.com/coresuz/tangabot/app/storage"
	"github.com/coresuz/tangabot/app/wizard"
	"github.com/coresuz/tangabot/core/config"
	tg "github.com/coresuz/tangabot/core/telegram"
	"github.com/coresuz/tangabot/core/telegram/commands"
	tghelpers "github.com/coresuz/tangabot/core/telegram/helpers"
	"github.com/coresuz/tangabot/core/telegram/middleware"

	tele "gopkg.in/telebot.v4"
)

// Handlers owns the bot-facing surface: commands, menu callbacks and
// the wizard bridge.
type Handlers struct {
	Cfg    *config.Config
	Store  *storage.Store
	Engine *wizard.Engine
}

func New(cfg *config.Config, store *storage.Store, engine *wizard.Engine) *Handlers {
	return &Handlers{Cfg: cfg, Store: store, Engine: engine}
}

func (h *Handlers) roles() middleware.RoleChecker {
	if h.Store == nil {
		return nil
	}
	return h.Store.Admins
}

// Flow exposes the wizard adapter used by the message router.
func (h *Handlers) Flow() *wizardFlow {
	return &wizardFlow{engine: h.Engine}
}

// Register wires every command and callback into the registry. Menu
// callbacks that open admin functionality are role-gated here as well;
// the wizard engine re-checks roles at commit time.
func (h *Handlers) Register(reg *tg.Registry) {
	access := middleware.AccessOptions{
		Roles: h.roles(),
		OnReject: func(c tele.Context) error {
			return tghelpers.SendText(c, "Недостаточно прав.")
		},
	}
	adminOnly := middleware.AdminOnlyMiddleware(access)
	primaryOnly := middleware.PrimaryOnlyMiddleware(access)

	reg.RegisterCommand("/start", commands.Command{
		Description: "Запустить бота",
		Handler:     h.Start,
	})
	reg.RegisterCommand("/admin", commands.Command{
		Description: "Админ-панель",
		Handler:     h.AdminPanel,
		AdminOnly:   true,
		Hidden:      true,
	})
	reg.RegisterCommand("/cancel", commands.Command{
		Description: "Отменить текущее действие",
		Handler:     h.CancelFlow,
	})

	reg.RegisterCallback(cbAdminPanel, adminOnly(h.AdminPanel))
	reg.RegisterCallback(cbStats, adminOnly(h.Stats))
	reg.RegisterCallback(cbSendPodcast, adminOnly(h.SendPodcast))
	reg.RegisterCallback(cbAddAdmin, primaryOnly(h.AddAdmin))
	reg.RegisterCallback(cbRemoveAdmin, primaryOnly(h.RemoveAdmin))
	reg.RegisterCallback(cbUpdateConfig, primaryOnly(h.UpdateConfig))
	reg.RegisterCallback(cbCopyRef, h.CopyRef)
	reg.RegisterCallback(cbBackToMain, h.BackToMain)

	for _, key := range []string{
		wizard.CBTargetAll,
		wizard.CBTargetLastDay,
		wizard.CBTargetLastWeek,
		wizard.CBTargetLastMonth,
		wizard.CBTargetSpecific,
		wizard.CBImageYes,
		wizard.CBImageNo,
		wizard.CBButtonYes,
		wizard.CBButtonNo,
		wizard.CBConfirmYes,
		wizard.CBCancel,
		wizard.CBCancelAdmin,
	} {
		reg.RegisterCallback(key, h.callbackHandler(key))
	}

	reg.SetTextFallback(func(c tele.Context) error {
		return tghelpers.SendText(c, "Используйте кнопки меню или команду /start.")
	})
}
