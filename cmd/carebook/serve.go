package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/MarcoPoloResearchLab/carebook/internal/assistant"
	"github.com/MarcoPoloResearchLab/carebook/internal/calendar"
	"github.com/MarcoPoloResearchLab/carebook/internal/events"
	"github.com/MarcoPoloResearchLab/carebook/internal/reminders"
	"github.com/MarcoPoloResearchLab/carebook/internal/server"
)

const shutdownTimeout = 10 * time.Second

func runServer(ctx context.Context) error {
	signalCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	runtime, err := newAppRuntime(signalCtx)
	if err != nil {
		return err
	}
	defer runtime.Close()
	logger := runtime.logger

	if err := runtime.coordinator.Start(signalCtx); err != nil {
		return err
	}
	if err := runtime.coordinator.EnsureReminders(signalCtx); err != nil {
		logger.Warn("initial reminder arming failed", zap.Error(err))
	}

	rearmer, err := reminders.NewRearmer(runtime.config.RearmSchedule, runtime.coordinator, logger)
	if err != nil {
		return err
	}
	rearmer.Start()
	defer rearmer.Stop()

	view, err := calendar.NewViewState(calendar.Config{
		Source:  runtime.store,
		Actions: runtime.coordinator,
		IDs:     events.NewUUIDProvider(),
		Clock:   time.Now,
		Logger:  logger,
	})
	if err != nil {
		return err
	}
	if err := view.Start(signalCtx); err != nil {
		return err
	}
	defer view.Stop()

	dependencies := server.Dependencies{
		Sessions:       runtime.validator,
		UserID:         runtime.coordinator.UserID(),
		Calendar:       view,
		Events:         runtime.store,
		AllowedOrigins: runtime.config.AllowedOrigins,
		Clock:          time.Now,
		Logger:         logger,
	}
	if runtime.config.AssistantEnabled() {
		summarizer, err := assistant.NewSummarizer(assistant.Config{
			Client: assistant.NewOpenAIClient(runtime.config.AIAPIKey, runtime.config.AIBaseURL),
			Model:  runtime.config.AIModel,
			Logger: logger,
		})
		if err != nil {
			return err
		}
		dependencies.Summarizer = summarizer
	}
	handler, err := server.NewHTTPHandler(dependencies)
	if err != nil {
		return err
	}

	httpServer := &http.Server{
		Addr:              runtime.config.HTTPAddress,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server starting",
			zap.String("address", runtime.config.HTTPAddress),
			zap.String("user_id", runtime.coordinator.UserID()))
		err := httpServer.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-signalCtx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}
