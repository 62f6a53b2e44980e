package app

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"

	"groundcontrol/internal/config"
	"groundcontrol/internal/db"
	"groundcontrol/internal/engine"
	"groundcontrol/internal/migrate"
	"groundcontrol/internal/notify"
)

// App bundles the wired components for one workspace. Close stops the
// notification dispatcher and closes the database.
type App struct {
	Engine     engine.Engine
	Config     *config.Config
	Log        zerolog.Logger
	dispatcher *notify.Dispatcher
	closeDB    func() error
}

// Open bootstraps a workspace: database, schema, config, engine, and
// the notification dispatcher when delivery targets are configured.
func Open(workspace string) (*App, error) {
	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()

	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := migrate.Migrate(conn); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	cfg, err := config.Load(workspace)
	if err != nil {
		conn.Close()
		return nil, err
	}

	a := &App{
		Engine:  engine.New(conn, cfg),
		Config:  cfg,
		Log:     log,
		closeDB: conn.Close,
	}

	ncfg := notifyConfig(cfg)
	if ncfg.TelegramToken != "" || len(ncfg.Webhooks) > 0 {
		a.dispatcher = notify.NewDispatcher(ncfg, log)
		a.dispatcher.Start()
		a.Engine.Notify = a.dispatcher
	}
	return a, nil
}

func (a *App) Close() error {
	if a.dispatcher != nil {
		a.dispatcher.Close()
	}
	if a.closeDB != nil {
		return a.closeDB()
	}
	return nil
}

func notifyConfig(cfg *config.Config) notify.Config {
	out := notify.Config{
		TelegramToken:  cfg.Notifications.Telegram.Token,
		TelegramChatID: cfg.Notifications.Telegram.ChatID,
	}
	for _, hook := range cfg.Notifications.Webhooks {
		if hook.Enabled != nil && !*hook.Enabled {
			continue
		}
		out.Webhooks = append(out.Webhooks, notify.Webhook{URL: hook.URL, Secret: hook.Secret})
	}
	return out
}
