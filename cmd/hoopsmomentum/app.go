package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Vodeneev/hoopsmomentum/internal/alerts"
	"github.com/Vodeneev/hoopsmomentum/internal/collector"
	"github.com/Vodeneev/hoopsmomentum/internal/collector/espn"
	"github.com/Vodeneev/hoopsmomentum/internal/collector/oddsportal"
	"github.com/Vodeneev/hoopsmomentum/internal/collector/pinnacle"
	"github.com/Vodeneev/hoopsmomentum/internal/pkg/config"
	"github.com/Vodeneev/hoopsmomentum/internal/pkg/logging"
	"github.com/Vodeneev/hoopsmomentum/internal/pkg/performance"
	"github.com/Vodeneev/hoopsmomentum/internal/pkg/storage"
	"github.com/Vodeneev/hoopsmomentum/internal/scheduler"
)

const serviceName = "hoopsmomentum"

// app holds the wired collaborators for one command invocation.
type app struct {
	cfg     *config.Config
	store   storage.Store
	orch    *scheduler.Orchestrator
	closers []func()
}

func loadConfig(flags *globalFlags) (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	override := config.WithStorageDriver(flags.storage)
	if flags.configPath == "" {
		cfg, err = config.Default(override)
	} else {
		cfg, err = config.Load(flags.configPath, override)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, nil
}

// newApp loads config, sets up logging and opens the store. Collectors and the
// orchestrator are only built when withOrchestrator is set.
func newApp(flags *globalFlags, withOrchestrator bool) (*app, error) {
	cfg, err := loadConfig(flags)
	if err != nil {
		return nil, err
	}

	a := &app{cfg: cfg}
	_, closeLog, err := logging.SetupLogger(&cfg.Logging, serviceName)
	if err != nil {
		slog.Warn("Failed to setup logging, continuing with default logger", "error", err)
	} else {
		a.closers = append(a.closers, closeLog)
	}

	a.store, err = openStore(cfg)
	if err != nil {
		a.close()
		return nil, err
	}
	a.closers = append(a.closers, func() { _ = a.store.Close() })

	if withOrchestrator {
		if err := a.buildOrchestrator(); err != nil {
			a.close()
			return nil, err
		}
	}
	return a, nil
}

func openStore(cfg *config.Config) (storage.Store, error) {
	switch cfg.Storage.Driver {
	case config.DriverMemory:
		slog.Warn("Using in-memory storage, data is lost on exit")
		return storage.NewMemoryStore(), nil
	default:
		st, err := storage.NewPostgresStore(&cfg.Postgres)
		if err != nil {
			return nil, fmt.Errorf("open postgres: %w", err)
		}
		return st, nil
	}
}

func (a *app) buildOrchestrator() error {
	cfg := a.cfg

	var notifier alerts.Notifier = alerts.LogNotifier{}
	if cfg.Telegram.Enabled() {
		tg, err := alerts.NewTelegramNotifier(cfg.Telegram.BotToken, cfg.Telegram.ChatID)
		if err != nil {
			slog.Warn("Telegram unavailable, alerts go to the log only", "error", err)
		} else {
			notifier = tg
			a.closers = append(a.closers, tg.Stop)
		}
	}
	gate := alerts.NewGate(notifier, cfg.Alerts.Cooldown)

	if cfg.Redis.Addr != "" {
		locker, err := storage.NewRedisLocker(cfg.Redis)
		if err != nil {
			return err
		}
		gate.WithLocker(locker)
		a.closers = append(a.closers, func() { _ = locker.Close() })
		slog.Info("Alert lock shared through Redis", "addr", cfg.Redis.Addr)
	}

	op := oddsportal.NewClient(cfg.OddsPortal)
	sources := collector.Chain{op}
	if cfg.Pinnacle.Enabled {
		sources = append(sources, pinnacle.NewPoller(pinnacle.NewClient(cfg.Pinnacle)))
	}
	if cfg.ESPN.Enabled {
		sources = append(sources, espn.NewClient(cfg.ESPN))
	}
	names := make([]string, 0, len(sources))
	for _, s := range sources {
		names = append(names, s.Name())
	}
	slog.Info("Live sources configured", "sources", names, "notifier", notifier.Name())

	a.orch = scheduler.New(cfg.Scheduler, a.store, op, sources, gate).WithTracker(performance.GetTracker())
	return nil
}

func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

// withApp runs fn with a wired app and releases it afterwards.
func withApp(ctx context.Context, flags *globalFlags, withOrchestrator bool, fn func(context.Context, *app) error) error {
	a, err := newApp(flags, withOrchestrator)
	if err != nil {
		return err
	}
	defer a.close()
	return fn(ctx, a)
}
