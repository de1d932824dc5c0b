package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/etribe/portal/internal/application/groupdata"
	appidentity "github.com/etribe/portal/internal/application/identity"
	appmembership "github.com/etribe/portal/internal/application/membership"
	"github.com/etribe/portal/internal/application/preference"
	appsearch "github.com/etribe/portal/internal/application/search"
	"github.com/etribe/portal/internal/infrastructure/apiclient"
	"github.com/etribe/portal/internal/infrastructure/config"
	"github.com/etribe/portal/internal/infrastructure/event"
	"github.com/etribe/portal/internal/infrastructure/logger"
	"github.com/etribe/portal/internal/infrastructure/session"
	"github.com/etribe/portal/internal/infrastructure/telemetry"
	"github.com/etribe/portal/internal/interfaces/http/handler"
	"github.com/etribe/portal/internal/interfaces/http/router"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	// Initialize logger
	log, err := logger.New(logger.FromLogConfig(cfg.Log))
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer func() {
		_ = logger.Sync(log)
	}()

	log.Info("Starting member portal",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
		zap.String("api", cfg.API.BaseURL),
	)

	// Tracing and metrics
	tp, err := telemetry.NewTracerProvider(context.Background(), cfg.Telemetry, log)
	if err != nil {
		log.Fatal("Failed to initialize tracer provider", zap.Error(err))
	}
	metrics := telemetry.NewMetrics()

	// Session storage
	store, closeStore, err := session.NewFromConfig(cfg, log)
	if err != nil {
		log.Fatal("Failed to open session store", zap.Error(err))
	}
	defer func() {
		if err := closeStore(); err != nil {
			log.Error("Error closing session store", zap.Error(err))
		}
	}()
	if sqlStore, ok := store.(*session.SQLStore); ok {
		if err := telemetry.RegisterGormTracing(sqlStore.DB(), tp.IsEnabled(), log); err != nil {
			log.Warn("Session database tracing unavailable", zap.Error(err))
		}
	}

	bus := event.NewInMemorySignalBus(log)

	client, err := apiclient.New(cfg.API, store,
		apiclient.WithLogger(log),
		apiclient.WithObserver(metrics),
		apiclient.WithTracerProvider(tp.Provider()),
	)
	if err != nil {
		log.Fatal("Failed to create API client", zap.Error(err))
	}

	// Application services
	authService := appidentity.NewAuthService(client, store, bus, appidentity.AuthServiceConfig{
		LoginTimeout: cfg.API.LoginTimeout,
	}, log)
	membershipService := appmembership.NewService(client, log)
	paymentMethods := appmembership.NewPaymentMethods(store)
	preferenceService := preference.NewService(store)

	groupService := groupdata.NewService(context.Background(), client, store, bus, groupdata.Config{
		TTL:      cfg.Cache.Duration,
		Observer: metrics,
		Logger:   log,
	})
	defer groupService.Close()
	groupService.Warm(context.Background())

	aggregator := appsearch.NewAggregator(membershipService, appsearch.Config{
		MinQueryLength: cfg.Search.MinQueryLength,
		MaxResults:     cfg.Search.MaxResults,
		Logger:         log,
		Observer:       metrics,
	})
	searchHandler := handler.NewSearchHandler(aggregator, authService,
		handler.WithSearchDebounce(cfg.Search.Debounce),
		handler.WithSearchLogger(log),
	)

	engineCfg := router.EngineConfig{
		Env:            cfg.App.Env,
		HTTP:           cfg.HTTP,
		ServiceName:    cfg.Telemetry.ServiceName,
		TracingEnabled: tp.IsEnabled(),
		TracerProvider: tp.Provider(),
		Session:        store,
		Logger:         log,
	}
	if cfg.Telemetry.MetricsEnabled {
		engineCfg.Metrics = metrics
	}
	engine := router.NewEngine(engineCfg)

	router.NewRouter(engine).
		Register(handler.NewAuthHandler(authService)).
		Register(handler.NewMembershipHandler(membershipService, store)).
		Register(handler.NewPaymentMethodHandler(paymentMethods)).
		Register(handler.NewPreferenceHandler(preferenceService)).
		Register(handler.NewGroupDataHandler(groupService)).
		Register(searchHandler).
		Setup()

	srv := &http.Server{
		Addr:         ":" + cfg.App.Port,
		Handler:      engine,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}

	go func() {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	searchHandler.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}
	if err := tp.Shutdown(ctx); err != nil {
		log.Error("Error shutting down tracer provider", zap.Error(err))
	}

	log.Info("Server exited gracefully")
}
