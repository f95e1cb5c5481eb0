package main

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/MarcoPoloResearchLab/carebook/internal/auth"
	"github.com/MarcoPoloResearchLab/carebook/internal/config"
	"github.com/MarcoPoloResearchLab/carebook/internal/database"
	"github.com/MarcoPoloResearchLab/carebook/internal/eventsync"
	"github.com/MarcoPoloResearchLab/carebook/internal/logging"
	"github.com/MarcoPoloResearchLab/carebook/internal/reminders"
	"github.com/MarcoPoloResearchLab/carebook/internal/remote"
	"github.com/MarcoPoloResearchLab/carebook/internal/store"
)

// appRuntime owns every long-lived collaborator of one process.
type appRuntime struct {
	config      config.AppConfig
	logger      *zap.Logger
	sqlDB       *sql.DB
	store       *store.LocalStore
	remote      remote.DocumentStore
	closeRemote func()
	scheduler   *reminders.TimerScheduler
	validator   *auth.SessionValidator
	coordinator *eventsync.Coordinator
}

func newAppRuntime(ctx context.Context) (*appRuntime, error) {
	appConfig, err := config.Load(viper.GetViper())
	if err != nil {
		return nil, err
	}

	logger, err := logging.NewLogger(appConfig.LogLevel)
	if err != nil {
		return nil, err
	}
	runtime := &appRuntime{config: appConfig, logger: logger, closeRemote: func() {}}

	db, err := database.OpenSQLite(appConfig.DatabasePath, logger)
	if err != nil {
		runtime.Close()
		return nil, err
	}
	if runtime.sqlDB, err = db.DB(); err != nil {
		runtime.Close()
		return nil, err
	}
	if runtime.store, err = store.New(store.Config{Database: db, Clock: time.Now, Logger: logger}); err != nil {
		runtime.Close()
		return nil, err
	}

	if err := runtime.openRemote(ctx); err != nil {
		runtime.Close()
		return nil, err
	}

	runtime.scheduler, err = reminders.NewTimerScheduler(reminders.TimerConfig{
		Notifier: runtime.notifier(),
		Clock:    time.Now,
		Logger:   logger,
	})
	if err != nil {
		runtime.Close()
		return nil, err
	}

	runtime.validator, err = auth.NewSessionValidator(auth.SessionValidatorConfig{
		SigningSecret: []byte(appConfig.SessionSigningSecret),
		Issuer:        appConfig.SessionIssuer,
	})
	if err != nil {
		runtime.Close()
		return nil, err
	}
	identity, err := runtime.identity()
	if err != nil {
		runtime.Close()
		return nil, err
	}

	runtime.coordinator, err = eventsync.New(eventsync.Config{
		Store:        runtime.store,
		Remote:       runtime.remote,
		Reminders:    runtime.scheduler,
		Identity:     identity,
		Clock:        time.Now,
		Logger:       logger,
		TombstoneTTL: appConfig.TombstoneTTL,
	})
	if err != nil {
		runtime.Close()
		return nil, err
	}
	return runtime, nil
}

func (r *appRuntime) openRemote(ctx context.Context) error {
	switch r.config.RemoteDriver {
	case config.RemoteDriverPostgres:
		postgresStore, err := remote.ConnectPostgres(ctx, r.config.RemotePostgresURL, r.logger)
		if err != nil {
			return fmt.Errorf("connect remote store: %w", err)
		}
		r.remote = postgresStore
		r.closeRemote = postgresStore.Close
	default:
		r.remote = remote.NewMemoryStore(time.Now)
	}
	r.logger.Info("remote store ready", zap.String("driver", r.config.RemoteDriver))
	return nil
}

func (r *appRuntime) notifier() reminders.Notifier {
	notifiers := reminders.MultiNotifier{reminders.LogNotifier{Logger: r.logger}}
	if !r.config.TelegramEnabled() {
		return notifiers
	}
	telegram, err := reminders.NewTelegramNotifier(r.config.TelegramToken, r.config.TelegramChatID)
	if err != nil {
		r.logger.Warn("telegram reminders disabled", zap.Error(err))
		return notifiers
	}
	return append(notifiers, telegram)
}

func (r *appRuntime) identity() (auth.IdentityProvider, error) {
	if r.config.SessionToken != "" {
		identity, err := auth.NewSessionIdentity(r.validator, r.config.SessionToken)
		if err != nil {
			return nil, fmt.Errorf("session token rejected: %w", err)
		}
		return identity, nil
	}
	return auth.StaticIdentity(r.config.UserID), nil
}

// Close stops the coordinator before the stores it writes to.
func (r *appRuntime) Close() {
	if r.coordinator != nil {
		r.coordinator.Stop()
	}
	if r.scheduler != nil {
		r.scheduler.Stop()
	}
	r.closeRemote()
	if r.sqlDB != nil {
		_ = r.sqlDB.Close()
	}
	_ = r.logger.Sync()
}
