package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/gmsas95/dosetrack/internal/adherence"
	"github.com/gmsas95/dosetrack/internal/api"
	"github.com/gmsas95/dosetrack/internal/config"
	"github.com/gmsas95/dosetrack/internal/medication"
	"github.com/gmsas95/dosetrack/internal/notify"
	"github.com/gmsas95/dosetrack/internal/reminder"
	"github.com/gmsas95/dosetrack/internal/store"
	"github.com/gmsas95/dosetrack/internal/sweeper"
)

// App wires the storage, scheduling, and delivery layers together.
// Every component receives its dependencies here; nothing reaches for
// globals.
type App struct {
	Config      *config.Config
	Store       *store.Store
	Logger      *zap.Logger
	Meds        *medication.Store
	Coordinator *adherence.Coordinator
	Reminders   *reminder.Manager
	Sweeper     *sweeper.Sweeper
	Dispatcher  *notify.Dispatcher
	Version     string
}

func New(cfg *config.Config, st *store.Store, logger *zap.Logger, version string) (*App, error) {
	meds, err := medication.NewStore(st.DB())
	if err != nil {
		return nil, fmt.Errorf("medication store: %w", err)
	}

	dispatcher := buildDispatcher(cfg, logger)

	registry := reminder.NewRegistry(st.Badger())
	reminders := reminder.NewManager(registry, dispatcher, logger)

	coordinator := adherence.NewCoordinator(meds, reminders, adherence.NewBus(), logger)

	sw := sweeper.NewSweeper(sweeper.Config{
		SweepInterval:       cfg.Scheduler.SweepInterval,
		MissedGracePeriod:   cfg.Scheduler.MissedGracePeriod,
		RefillAlertCooldown: cfg.Scheduler.RefillAlertCooldown,
	}, coordinator, dispatcher, logger)

	return &App{
		Config:      cfg,
		Store:       st,
		Logger:      logger,
		Meds:        meds,
		Coordinator: coordinator,
		Reminders:   reminders,
		Sweeper:     sw,
		Dispatcher:  dispatcher,
		Version:     version,
	}, nil
}

// buildDispatcher assembles the delivery fan-out from the enabled
// channels. The log channel is always present so reminders are never
// silently lost.
func buildDispatcher(cfg *config.Config, logger *zap.Logger) *notify.Dispatcher {
	channels := []notify.Notifier{notify.NewLogNotifier(logger)}

	if cfg.Notifications.Telegram.Enabled {
		tg, err := notify.NewTelegramNotifier(cfg.Notifications.Telegram)
		if err != nil {
			logger.Error("Failed to create Telegram notifier", zap.Error(err))
		} else {
			channels = append(channels, tg)
			logger.Info("Telegram notifications enabled")
		}
	}

	if cfg.Notifications.Discord.Enabled {
		dc, err := notify.NewDiscordNotifier(cfg.Notifications.Discord)
		if err != nil {
			logger.Error("Failed to create Discord notifier", zap.Error(err))
		} else {
			channels = append(channels, dc)
			logger.Info("Discord notifications enabled")
		}
	}

	return notify.NewDispatcher(logger, cfg.Notifications.RatePerMinute, channels...)
}

// RunServer starts the reminder engine, the sweeper, and the HTTP API,
// then blocks until SIGINT or SIGTERM.
func (app *App) RunServer() {
	ctx := context.Background()

	app.Reminders.Start()

	// Re-register triggers for every active medication; registrations
	// do not survive a restart.
	meds, err := app.Meds.ListMedications(true)
	if err != nil {
		app.Logger.Error("Failed to list medications for rescheduling", zap.Error(err))
	} else {
		app.Reminders.RescheduleAll(meds)
		app.Logger.Info("Triggers rescheduled", zap.Int("medications", len(meds)))
	}

	if created, err := app.Coordinator.MaterializeDay(ctx, time.Now()); err != nil {
		app.Logger.Error("Failed to materialize today's ledger", zap.Error(err))
	} else if created > 0 {
		app.Logger.Info("Materialized today's ledger", zap.Int64("created", created))
	}

	if err := app.Sweeper.Start(); err != nil {
		app.Logger.Error("Failed to start sweeper", zap.Error(err))
	}

	// Scheduler tuning picks up config file edits without a restart
	configFile := filepath.Join(app.Config.Storage.DataDir, "dosetrack.yaml")
	if err := config.Watch(configFile, func(updated *config.Config) {
		app.Sweeper.UpdateConfig(sweeper.Config{
			MissedGracePeriod:   updated.Scheduler.MissedGracePeriod,
			RefillAlertCooldown: updated.Scheduler.RefillAlertCooldown,
		})
		app.Logger.Info("Configuration reloaded",
			zap.Int("missed_grace_period", updated.Scheduler.MissedGracePeriod),
			zap.Int("refill_alert_cooldown", updated.Scheduler.RefillAlertCooldown))
	}); err != nil {
		app.Logger.Warn("Config watch unavailable", zap.Error(err))
	}

	server := api.New(app.Config, app.Coordinator, app.Logger)

	go func() {
		if err := server.Start(); err != nil {
			app.Logger.Fatal("Server error", zap.Error(err))
		}
	}()

	app.Logger.Info("Server started",
		zap.String("address", app.Config.Server.Address),
		zap.Int("port", app.Config.Server.Port),
		zap.String("url", fmt.Sprintf("http://localhost:%d", app.Config.Server.Port)),
	)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	app.Logger.Info("Shutting down...")

	app.Sweeper.Stop()
	app.Reminders.Stop()

	if err := server.Shutdown(); err != nil {
		app.Logger.Error("Server shutdown error", zap.Error(err))
	}

	if err := app.Store.Close(); err != nil {
		app.Logger.Error("Store close error", zap.Error(err))
	}
}

// Close releases storage resources for short-lived CLI invocations
func (app *App) Close() {
	if err := app.Store.Close(); err != nil {
		app.Logger.Error("Store close error", zap.Error(err))
	}
}
