// Package components assembles the application's dependency graph behind
// a single sync.Once-guarded singleton, the way the teacher's Container
// wires database, events, and the HTTP server together.
package components

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"ledger-api/internal/api/routes"
	"ledger-api/internal/config"
	"ledger-api/internal/coordinator"
	"ledger-api/internal/domain/engine"
	"ledger-api/internal/domain/registry"
	"ledger-api/internal/infrastructure/idempotency"
	"ledger-api/internal/infrastructure/messaging"
	"ledger-api/internal/infrastructure/messaging/kafka"
	"ledger-api/internal/infrastructure/store"
	"ledger-api/internal/infrastructure/store/postgres"
	"ledger-api/internal/pkg/logging"
	"ledger-api/internal/pkg/telemetry"
)

// Container holds every wired component and satisfies
// handlers.HandlerDependencies so routes can be built from it directly.
type Container struct {
	Config         *config.Config
	Logger         *logging.Logger
	Store          store.Store
	Registry       *registry.Registry
	Engine         *engine.Engine
	Gate           *idempotency.Gate
	Coordinator    *coordinator.Coordinator
	EventPublisher messaging.EventPublisher
	Router         *gin.Engine
	Server         *http.Server

	stopMetrics chan struct{}
}

var (
	instance     *Container
	instanceOnce sync.Once
	instanceErr  error
)

// GetInstance returns the singleton container instance, building it on
// first call.
func GetInstance() (*Container, error) {
	instanceOnce.Do(func() {
		instance, instanceErr = newContainer()
	})
	return instance, instanceErr
}

// New creates and initializes all application components. Kept as an
// alias of GetInstance for call-site clarity in main.
func New() (*Container, error) {
	return GetInstance()
}

func newContainer() (*Container, error) {
	c := &Container{}

	if err := c.initConfig(); err != nil {
		return nil, fmt.Errorf("failed to initialize config: %w", err)
	}
	if err := c.initLogger(); err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	if err := c.initStore(); err != nil {
		return nil, fmt.Errorf("failed to initialize store: %w", err)
	}
	if err := c.initLedger(); err != nil {
		return nil, fmt.Errorf("failed to initialize ledger components: %w", err)
	}
	if err := c.initEventPublisher(); err != nil {
		return nil, fmt.Errorf("failed to initialize event publisher: %w", err)
	}
	c.initMetricsCollector()
	if err := c.initServer(); err != nil {
		return nil, fmt.Errorf("failed to initialize server: %w", err)
	}

	logging.Info("All components initialized successfully", nil)
	return c, nil
}

func (c *Container) initConfig() error {
	c.Config = config.Load()
	return nil
}

func (c *Container) initLogger() error {
	logging.Init(c.Config)
	c.Logger = &logging.Logger{}
	logging.Info("Logger initialized", map[string]interface{}{"level": c.Config.Logging.Level})
	return nil
}

func (c *Container) initStore() error {
	st, err := postgres.New(
		context.Background(),
		c.Config.Database.URL,
		c.Config.Database.MaxOpenConns,
		c.Config.Database.MaxIdleConns,
		c.Config.Database.ConnMaxLifetime,
	)
	if err != nil {
		return fmt.Errorf("failed to connect to postgres: %w", err)
	}
	c.Store = st
	logging.Info("Store initialized", map[string]interface{}{"backend": "postgres"})
	return nil
}

// initLedger wires the Account Registry, Posting Engine, Idempotency
// Gate, and Request Coordinator on top of the Store.
func (c *Container) initLedger() error {
	c.Registry = registry.New()
	c.Engine = engine.New(c.Registry)

	var cache idempotency.Cache
	if c.Config.Redis.URL != "" {
		redisCache, err := idempotency.NewRedisCache(c.Config.Redis.URL)
		if err != nil {
			logging.Warn("Failed to connect to Redis, idempotency cache disabled", map[string]interface{}{"error": err.Error()})
		} else {
			cache = redisCache
			logging.Info("Idempotency read-through cache initialized", map[string]interface{}{"backend": "redis"})
		}
	}

	hostname, _ := os.Hostname()
	c.Gate = idempotency.New(c.Config.Idempotency.TTL, hostname, cache)
	c.Coordinator = coordinator.New(c.Store, c.Gate)

	logging.Info("Ledger components initialized", map[string]interface{}{"idempotency_ttl_seconds": c.Config.Idempotency.TTL.Seconds()})
	return nil
}

func (c *Container) initEventPublisher() error {
	if !c.Config.Kafka.Enabled {
		logging.Info("Kafka disabled, using no-op event publisher", nil)
		c.EventPublisher = messaging.NewNoOpEventPublisher()
		return nil
	}

	kafkaConfig := kafka.NewConfigFromEnv()
	publisher, err := messaging.NewKafkaEventPublisher(kafkaConfig)
	if err != nil {
		logging.Warn("Failed to initialize Kafka, using no-op event publisher", map[string]interface{}{"error": err.Error()})
		c.EventPublisher = messaging.NewNoOpEventPublisher()
		return nil
	}

	c.EventPublisher = publisher
	logging.Info("Kafka event publisher initialized", map[string]interface{}{"brokers": kafkaConfig.Brokers})
	return nil
}

func (c *Container) initMetricsCollector() {
	c.stopMetrics = make(chan struct{})
	telemetry.StartSystemMetricsCollector(15*time.Second, c.stopMetrics)
}

func (c *Container) initServer() error {
	if c.Config.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	c.Router = gin.New()
	c.Router.Use(gin.Recovery())

	routes.RegisterRoutes(c.Router, c, c.Config)

	c.Server = &http.Server{
		Addr:           ":" + c.Config.Server.Port,
		Handler:        c.Router,
		ReadTimeout:    15 * time.Second,
		WriteTimeout:   15 * time.Second,
		IdleTimeout:    60 * time.Second,
		MaxHeaderBytes: 1 << 20,
	}

	logging.Info("HTTP server configured", map[string]interface{}{"port": c.Config.Server.Port})
	return nil
}

// Start begins serving HTTP requests and blocks until a shutdown signal
// arrives.
func (c *Container) Start() error {
	logging.Info("Starting HTTP server", map[string]interface{}{"address": c.Server.Addr})

	go func() {
		if err := c.Server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logging.Error("Server failed to start", err, nil)
			os.Exit(1)
		}
	}()

	c.waitForShutdown()
	return nil
}

func (c *Container) waitForShutdown() {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logging.Info("Shutting down server...", nil)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := c.Shutdown(ctx); err != nil {
		logging.Error("Server forced to shutdown", err, nil)
	}

	logging.Info("Server shutdown complete", nil)
}

// Shutdown gracefully stops every owned component.
func (c *Container) Shutdown(ctx context.Context) error {
	if err := c.Server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	close(c.stopMetrics)

	if c.EventPublisher != nil {
		if err := c.EventPublisher.Close(); err != nil {
			logging.Error("Failed to close event publisher", err, nil)
		}
	}

	c.Store.Close()

	return nil
}

// GetStore, GetCoordinator, GetEngine, and GetEventPublisher satisfy
// handlers.HandlerDependencies.
func (c *Container) GetStore() store.Store                      { return c.Store }
func (c *Container) GetCoordinator() *coordinator.Coordinator    { return c.Coordinator }
func (c *Container) GetEngine() *engine.Engine                  { return c.Engine }
func (c *Container) GetEventPublisher() messaging.EventPublisher { return c.EventPublisher }
func (c *Container) GetConfig() *config.Config                  { return c.Config }
func (c *Container) GetRouter() *gin.Engine                     { return c.Router }
