package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"github.com/georgemunganga/campo-directo-backend/internal/config"
	"github.com/georgemunganga/campo-directo-backend/internal/modules/activity"
	"github.com/georgemunganga/campo-directo-backend/internal/modules/auth"
	"github.com/georgemunganga/campo-directo-backend/internal/modules/order"
	"github.com/georgemunganga/campo-directo-backend/internal/modules/product"
	"github.com/georgemunganga/campo-directo-backend/internal/modules/user"
	"github.com/georgemunganga/campo-directo-backend/internal/platform/database"
	"github.com/georgemunganga/campo-directo-backend/internal/platform/events"
	"github.com/georgemunganga/campo-directo-backend/internal/platform/logger"
	"github.com/georgemunganga/campo-directo-backend/internal/platform/metrics"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	log, err := logger.New(cfg.App.IsProduction(), cfg.App.LogLevel)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.Open(ctx, cfg.Database)
	if err != nil {
		return err
	}
	defer db.Close()
	log.Info("connected to database")

	if cfg.Database.AutoMigrate {
		if err := database.Migrate(ctx, db); err != nil {
			return err
		}
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	var publisher interface {
		order.EventPublisher
		Close() error
	} = events.Noop{}
	if cfg.Kafka.Enabled() {
		publisher = events.NewKafkaPublisher(cfg.Kafka.Brokers, cfg.Kafka.OrderTopic)
		log.Info("publishing order events", zap.Strings("brokers", cfg.Kafka.Brokers), zap.String("topic", cfg.Kafka.OrderTopic))
	}
	defer publisher.Close()

	// ── Router ──────────────────────────────────────────────
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(logger.RequestLogger(log))
	router.Use(m.Middleware)
	router.Use(middleware.Recoverer)
	router.Use(middleware.Timeout(cfg.App.RequestTimeout))

	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		if err := db.PingContext(r.Context()); err != nil {
			http.Error(w, "database unavailable", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	router.Handle("/metrics", m.Handler())

	tx := database.NewTransactor(db)

	// ── Identity ────────────────────────────────────────────
	userRepo := user.NewPostgresRepository(db)
	userService := user.NewService(userRepo, log)
	authService := auth.NewService(userRepo, cfg.Auth.JWTSecret, cfg.Auth.TokenTTL, log)
	auth.NewHandler(authService).RegisterRoutes(router)

	user.NewHandler(userService).RegisterRoutes(router, router.With(auth.Middleware(authService)))

	activityService := activity.NewService(activity.NewPostgresRepository(db))
	productService := product.NewService(product.NewPostgresRepository(db), activityService, tx, log)

	// ── Orders ──────────────────────────────────────────────
	orderService, err := order.NewService(order.Deps{
		Orders:     order.NewPostgresRepository(db),
		Catalog:    productService,
		Stock:      productService,
		Ratings:    userService,
		Activities: activityService,
		UnitOfWork: tx,
		Events:     publisher,
		Metrics:    m,
		Logger:     log,
	})
	if err != nil {
		return err
	}

	router.Group(func(r chi.Router) {
		r.Use(auth.Middleware(authService))
		activity.NewHandler(activityService).RegisterRoutes(r)
		product.NewHandler(productService).RegisterRoutes(r)
		order.NewHandler(orderService, log).RegisterRoutes(r)
	})

	// ── Start Server ────────────────────────────────────────
	srv := &http.Server{
		Addr:              cfg.App.Address(),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("campo directo API starting", zap.String("addr", srv.Addr), zap.String("env", cfg.App.Env))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.App.ShutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
