package app

import (
	"context"
	"time"

	"github.com/coresuz/tangabot/app/assets"
	"github.com/coresuz/tangabot/app/broadcast"
	"github.com/coresuz/tangabot/app/handlers"
	"github.com/coresuz/tangabot/app/janitor"
	"github.com/coresuz/tangabot/app/storage"
	"github.com/coresuz/tangabot/app/wizard"
	"github.com/coresuz/tangabot/core/bootstrap"
	coreconfig "github.com/coresuz/tangabot/core/config"
	coredatabase "github.com/coresuz/tangabot/core/database"
	tg "github.com/coresuz/tangabot/core/telegram"
	tghelpers "github.com/coresuz/tangabot/core/telegram/helpers"
	"github.com/coresuz/tangabot/core/telegram/router"

	"github.com/jmoiron/sqlx"
	tele "gopkg.in/telebot.v4"
)

// App ties configuration, storage and the bot surface together.
type App struct {
	cfg *coreconfig.Config
	db  *sqlx.DB

	store    *storage.Store
	engine   *wizard.Engine
	handlers *handlers.Handlers
	janitor  *janitor.Janitor
	botRef   *handlers.BotRef
}

// Load reads configuration; the rest of the app is built in Bootstrap.
func Load(path string) (*App, error) {
	cfg, err := coreconfig.Load(path)
	if err != nil {
		return nil, err
	}
	return &App{cfg: cfg}, nil
}

// CoreConfig implements cmd.ConfigCarrier.
func (a *App) CoreConfig() *coreconfig.Config {
	return a.cfg
}

// Bootstrap initializes logging, the database and every domain
// component. The bot handle itself is bound later, on startup.
func (a *App) Bootstrap() error {
	res, err := bootstrap.Run(bootstrap.Options{
		Config:   a.cfg,
		Database: databaseConfig(a.cfg),
	})
	if err != nil {
		return err
	}
	a.db = res.DB
	a.store = storage.New(a.db)

	a.botRef = &handlers.BotRef{}
	mgr, err := assets.NewManager(a.cfg.App.AssetDir, a.cfg.App.MaxImageBytes, handlers.NewFetcher(a.botRef))
	if err != nil {
		a.db.Close()
		return err
	}

	sender := handlers.NewSender(a.botRef)
	a.engine = wizard.New(wizard.Deps{
		Sessions: a.store.Sessions,
		Admins:   a.store.Admins,
		Records:  a.store.Podcasts,
		Settings: a.store.Settings,
		Assets:   mgr,
		Resolver: broadcast.NewResolver(a.store.Users),
		Dispatch: broadcast.NewDispatcher(sender, float64(a.cfg.Broadcast.RatePerSec)),
		Notify:   sender,
	})
	a.handlers = handlers.New(a.cfg, a.store, a.engine)
	a.janitor = janitor.New(
		a.store.Sessions, mgr,
		a.cfg.Janitor.Schedule,
		time.Duration(a.cfg.Janitor.RetentionHours)*time.Hour,
	)
	a.janitor.TrackActivity(a.store.Activity, 0)
	return nil
}

// TelegramRunOptions implements cmd.TelegramApp.
func (a *App) TelegramRunOptions() (tg.RunOptions, error) {
	reg := tg.NewRegistry()
	a.handlers.Register(reg)

	rejected := func(c tele.Context) error {
		return tghelpers.SendText(c, "Недостаточно прав.")
	}

	routes := router.CommandRoutes(reg, router.CommandRouteOptions{
		Roles:    a.store.Admins,
		OnReject: rejected,
	})
	routes = append(routes, router.CallbackRoute(reg, router.CallbackOptions{}))
	routes = append(routes, router.TextRoutes(a.handlers.Flow(), reg, router.TextOptions{
		Breakout: []string{"/cancel"},
	})...)

	return tg.RunOptions{
		Config:      a.cfg,
		Registry:    reg,
		Middlewares: tg.DefaultMiddlewares(a.cfg, nil),
		Routes:      routes,
		OnStart:     a.onStart,
		OnStop:      a.onStop,
	}, nil
}

func (a *App) onStart(ctx context.Context, rt tg.Runtime) error {
	a.botRef.Set(rt.Bot)
	if err := a.store.Admins.EnsurePrimary(ctx, a.cfg.App.PrimaryAdminID); err != nil {
		return err
	}
	return a.janitor.Start()
}

func (a *App) onStop(ctx context.Context, rt tg.Runtime) error {
	a.janitor.Stop()
	return a.db.Close()
}

func databaseConfig(cfg *coreconfig.Config) coredatabase.Config {
	return coredatabase.Config{
		Driver:         cfg.Database.Driver,
		Path:           cfg.Database.Path,
		Host:           cfg.Database.Host,
		Port:           cfg.Database.Port,
		User:           cfg.Database.User,
		Password:       cfg.Database.Password,
		Name:           cfg.Database.Name,
		SSLMode:        cfg.Database.SSLMode,
		MaxConnections: cfg.Database.MaxConnections,
	}
}
