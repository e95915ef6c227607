package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/diagnosis/inkstudio-bookings/internal/notify"
	"github.com/diagnosis/inkstudio-bookings/pkg/config"
	"github.com/diagnosis/inkstudio-bookings/pkg/events"
	"github.com/diagnosis/inkstudio-bookings/pkg/logger"
	mw "github.com/diagnosis/inkstudio-bookings/pkg/middleware"
	"github.com/go-chi/chi/v5"
)

const queueName = "notify"

func main() {
	cfg, err := config.LoadNotify()
	if err != nil {
		logger.Error("Invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	bus, err := events.NewNATSPublisher(cfg.NATSURL)
	if err != nil {
		logger.Error("Failed to connect to NATS", "error", err)
		os.Exit(1)
	}
	defer bus.Close()

	notifier := notify.NewNotifier(newMailer(cfg), cfg.StudioEmail, cfg.AdminURL)
	for _, subject := range notifier.Subjects() {
		if _, err := bus.Subscribe(subject, queueName, notifier.Handle); err != nil {
			logger.Error("Failed to subscribe", "subject", subject, "error", err)
			os.Exit(1)
		}
	}

	r := chi.NewRouter()
	r.Use(mw.RequestID)
	r.Use(mw.ServiceName(queueName))
	r.Use(mw.Logging)
	r.Use(mw.Health(bus.Ping))

	srv := &http.Server{Addr: ":" + cfg.Port, Handler: r, ReadTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		logger.Info("Shutting down notify service...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Notify service shutdown error", "error", err)
		}
	}()

	logger.Info("Starting notify service", "port", cfg.Port, "subjects", notifier.Subjects())
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Notify service error", "error", err)
		os.Exit(1)
	}
}

func newMailer(cfg *config.NotifyConfig) notify.Mailer {
	switch {
	case cfg.MailerSendAPIKey != "":
		return notify.NewMailerSend(cfg.MailerSendAPIKey, cfg.MailFromName, cfg.MailFrom)
	case cfg.SMTPHost != "":
		return notify.NewSMTPMailer(cfg.SMTPHost, cfg.SMTPPort, cfg.MailFrom, cfg.SMTPUser, cfg.SMTPPass, cfg.SMTPUseTLS)
	default:
		logger.Warn("No mail provider configured, notifications are logged only")
		return notify.LogMailer{}
	}
}
