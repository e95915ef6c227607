package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/diagnosis/inkstudio-bookings/internal/http/handlers"
	"github.com/diagnosis/inkstudio-bookings/internal/http/middleware"
	"github.com/diagnosis/inkstudio-bookings/internal/media"
	"github.com/diagnosis/inkstudio-bookings/internal/repo/postgres"
	"github.com/diagnosis/inkstudio-bookings/internal/service"
	"github.com/diagnosis/inkstudio-bookings/pkg/config"
	"github.com/diagnosis/inkstudio-bookings/pkg/database"
	"github.com/diagnosis/inkstudio-bookings/pkg/events"
	"github.com/diagnosis/inkstudio-bookings/pkg/logger"
	mw "github.com/diagnosis/inkstudio-bookings/pkg/middleware"
	"github.com/diagnosis/inkstudio-bookings/pkg/secret"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"golang.org/x/sync/errgroup"
)

const maxUploadFiles = 10

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.Error("Invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Connect to database
	pool, err := database.Connect(ctx, cfg.Database)
	if err != nil {
		logger.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	// Connect to event bus. An empty NATS_URL disables publishing.
	var eventBus events.Publisher = events.NopPublisher{}
	if cfg.NATS.URL != "" {
		nb, err := events.NewNATSPublisher(cfg.NATS.URL)
		if err != nil {
			logger.Error("Failed to connect to NATS", "error", err)
			os.Exit(1)
		}
		eventBus = nb
	}
	defer eventBus.Close()

	// Public routes are throttled when redis is configured.
	var throttle func(http.Handler) http.Handler
	if cfg.Redis.URL != "" {
		rdb, err := database.ConnectRedis(ctx, cfg.Redis.URL)
		if err != nil {
			logger.Error("Failed to connect to redis", "error", err)
			os.Exit(1)
		}
		defer rdb.Close()
		limiter := middleware.NewRateLimiter(middleware.NewRedisCounter(rdb), middleware.RateLimitConfig{
			Requests: cfg.RateLimit.Requests,
			Window:   cfg.RateLimit.Window,
		})
		throttle = limiter.Middleware()
	} else {
		logger.Warn("REDIS_URL is empty, public routes are not rate limited")
	}

	hasher, err := secret.NewHasher(cfg.Links.Pepper, nil)
	if err != nil {
		logger.Error("Failed to initialise token hasher", "error", err)
		os.Exit(1)
	}

	store, err := media.NewLocalStore(cfg.Media.Root, cfg.Media.PublicURL)
	if err != nil {
		logger.Error("Failed to initialise media store", "error", err)
		os.Exit(1)
	}

	// Initialize repositories
	bookingRepo := postgres.NewBookingRepo(pool)
	linkRepo := postgres.NewLinkTokenRepo(pool)
	uploadRepo := postgres.NewUploadRepo(pool)
	adminRepo := postgres.NewAdminRepo(pool)
	intakeRepo := postgres.NewIntakeRepo(pool)
	idempotencyRepo := postgres.NewIdempotencyRepo(pool)

	// Initialize services
	limits := service.UploadLimits{Folder: cfg.Media.Folder, MaxBytes: cfg.Media.MaxBytes, MaxFiles: maxUploadFiles}
	authService := service.NewAuthService(adminRepo, cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTL)
	bookingService := service.NewBookingService(bookingRepo, eventBus)
	linkService := service.NewLinkService(linkRepo, hasher, eventBus, cfg.Links.PublicBaseURL)
	uploadService := service.NewUploadService(uploadRepo, store, eventBus, limits)
	intakeService := service.NewIntakeService(intakeRepo, bookingRepo, idempotencyRepo, store, eventBus, limits)

	adminHandler := handlers.NewAdminHandler(authService, bookingService, linkService, cfg.Auth.JWTSecret)
	publicHandler := handlers.NewPublicHandler(intakeService, bookingService, uploadService, linkService,
		handlers.UploadLimits{MaxBytes: cfg.Media.MaxBytes, MaxFiles: maxUploadFiles}, throttle)

	// Setup router
	r := chi.NewRouter()
	r.Use(mw.RequestID)
	r.Use(mw.ServiceName("inkstudio-bookings"))
	r.Use(mw.Logging)
	r.Use(chimw.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.Server.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PATCH", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "Idempotency-Key", "X-Landing-Path", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID", "Retry-After"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.Use(mw.Health(pool.Ping))

	r.Mount("/admin", adminHandler.Routes())
	r.Mount("/public", publicHandler.Routes())
	r.Handle("/media/*", http.StripPrefix("/media/", http.FileServer(http.Dir(cfg.Media.Root))))

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("Starting inkstudio bookings API", "port", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		cleanupIdempotencyKeys(gctx, idempotencyRepo)
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down inkstudio bookings API...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error("Server error", "error", err)
		os.Exit(1)
	}
}

// cleanupIdempotencyKeys drops expired intake keys every hour until ctx ends.
func cleanupIdempotencyKeys(ctx context.Context, repo postgres.IdempotencyRepo) {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := repo.CleanupExpired(ctx)
			if err != nil {
				logger.Error("Idempotency cleanup failed", "error", err)
				continue
			}
			if n > 0 {
				logger.Info("Expired idempotency keys removed", "count", n)
			}
		}
	}
}
