package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/idkrafsan/BetTracker/config"
	"github.com/idkrafsan/BetTracker/database"
	"github.com/idkrafsan/BetTracker/events"
	"github.com/idkrafsan/BetTracker/handlers"
	"github.com/idkrafsan/BetTracker/hub"
	"github.com/idkrafsan/BetTracker/infrastructure"
	"github.com/idkrafsan/BetTracker/observability"
	"github.com/idkrafsan/BetTracker/repository"
	"github.com/idkrafsan/BetTracker/service"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
)

const (
	shutdownTimeout     = 10 * time.Second
	cacheRefreshTimeout = 5 * time.Second
)

// Run initializes and starts the application
func Run(ctx context.Context) error {
	// Load configuration
	cfg := config.Get()
	configureLogging(cfg)

	log.WithField("environment", cfg.Environment).Info("Starting bet tracker...")

	// Apply pending migrations before serving
	if err := database.RunMigrationsWithURL(cfg.GetDatabaseURL()); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	// Initialize database connection
	log.Info("Connecting to database...")
	db, err := database.NewConnection(ctx, cfg.GetDatabaseURL())
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()
	log.Info("Database connection established successfully")

	// Initialize event bus and its subscribers
	eventBus := events.NewBus()
	metrics := observability.NewMetrics()
	eventBus.SubscribeAll(metrics.HandleEvent)

	natsClient, err := setupNATS(ctx, cfg, eventBus)
	if err != nil {
		return err
	}
	if natsClient != nil {
		defer func() {
			if err := natsClient.Close(); err != nil {
				log.WithError(err).Warn("Error closing NATS connection")
			}
		}()
	}

	// Initialize unit of work factory and services
	uowFactory := repository.NewUnitOfWorkFactory(db, eventBus)
	betService := service.NewBetService(uowFactory, eventBus, cfg.AccountID)
	accountService := service.NewAccountService(uowFactory, cfg.AccountID)
	log.Info("Services initialized successfully")

	// Start the dashboard observer on the change feed
	feed := repository.NewChangeFeed(db)
	dashboard := service.NewDashboardService(uowFactory, feed, cfg.AccountID, cfg.RecentBetsLimit, cfg.Location())
	if err := dashboard.Start(ctx); err != nil {
		return fmt.Errorf("failed to start dashboard subscriptions: %w", err)
	}
	defer dashboard.Stop()

	dashboard.OnChange(metrics.ObserveDashboardChange)

	dashboardHub := hub.NewHub(dashboard, metrics, allowOrigin(cfg.CORSOrigins))
	hubCtx, stopHub := context.WithCancel(context.Background())
	defer stopHub()
	go dashboardHub.Run(hubCtx)
	dashboard.OnChange(dashboardHub.OnChange)

	redisClient, err := setupDashboardCache(ctx, cfg, dashboard)
	if err != nil {
		return err
	}
	if redisClient != nil {
		defer redisClient.Close()
	}

	// Serve HTTP
	server := &http.Server{
		Addr: cfg.HTTPAddr,
		Handler: handlers.NewRouter(handlers.Dependencies{
			Bets:        betService,
			Accounts:    accountService,
			Dashboard:   dashboard,
			Health:      db,
			Metrics:     metrics,
			Websocket:   dashboardHub,
			CORSOrigins: cfg.CORSOrigins,
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.WithField("addr", cfg.HTTPAddr).Info("HTTP server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	// Wait for context cancellation or a server failure
	select {
	case <-ctx.Done():
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("http server failed: %w", err)
		}
	}

	log.Info("Shutting down...")
	stopHub()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("HTTP server shutdown did not complete")
	}

	log.Info("Shutdown completed")
	return nil
}

func configureLogging(cfg *config.Config) {
	log.SetOutput(os.Stdout)

	level, err := log.ParseLevel(cfg.LogLevel)
	if err != nil {
		log.WithField("level", cfg.LogLevel).Warn("Unknown log level, using info")
		level = log.InfoLevel
	}
	log.SetLevel(level)

	if cfg.LogFormat == "json" {
		log.SetFormatter(&log.JSONFormatter{})
		return
	}
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
}

// setupNATS forwards committed domain events to JetStream. It returns a nil
// client when NATS is not configured.
func setupNATS(ctx context.Context, cfg *config.Config, eventBus *events.Bus) (*infrastructure.NATSClient, error) {
	if cfg.NATSServers == "" {
		eventBus.SubscribeAll(infrastructure.NewNoopEventPublisher().Forward)
		log.Info("NATS_SERVERS not set, domain events stay in process")
		return nil, nil
	}

	client := infrastructure.NewNATSClient(cfg.NATSServers, "bettracker")
	if err := client.Connect(ctx); err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	subjects := infrastructure.NewEventSubjectMapper()
	if err := client.EnsureStream(infrastructure.DomainEventStream, subjects.GetAllSubjects()); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to ensure NATS stream: %w", err)
	}

	publisher := infrastructure.NewNATSEventPublisher(client, subjects)
	eventBus.SubscribeAll(publisher.Forward)
	log.WithField("servers", cfg.NATSServers).Info("Forwarding domain events to NATS")
	return client, nil
}

// setupDashboardCache mirrors the all-time dashboard into Redis. Refreshes run
// on their own goroutine until ctx ends. It returns a nil client when Redis is
// not configured.
func setupDashboardCache(ctx context.Context, cfg *config.Config, dashboard *service.DashboardService) (*redis.Client, error) {
	if cfg.RedisURL == "" {
		log.Info("REDIS_URL not set, dashboard cache disabled")
		return nil, nil
	}

	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_URL: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	cache := infrastructure.NewDashboardCache(client, cfg.DashboardCacheKey, cfg.DashboardChannel)
	if err := cache.Refresh(ctx, dashboard); err != nil {
		log.WithError(err).Warn("Initial dashboard cache refresh failed")
	}
	go cache.Run(ctx, dashboard, cacheRefreshTimeout)
	dashboard.OnChange(cache.OnChange)

	log.WithField("key", cfg.DashboardCacheKey).Info("Dashboard cache enabled")
	return client, nil
}

// allowOrigin applies the CORS origin list to websocket upgrades
func allowOrigin(origins []string) func(r *http.Request) bool {
	allowed := make(map[string]struct{}, len(origins))
	for _, o := range origins {
		if o == "*" {
			return func(*http.Request) bool { return true }
		}
		allowed[o] = struct{}{}
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		_, ok := allowed[origin]
		return ok
	}
}
