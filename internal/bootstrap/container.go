package bootstrap

import (
	"context"
	"sync"

	chclient "navfund/internal/adapters/clickhouse"
	"navfund/internal/adapters/config"
	"navfund/internal/adapters/kafka"
	"navfund/internal/adapters/oracle"
	pgclient "navfund/internal/adapters/postgres"
	redisclient "navfund/internal/adapters/redis"
	"navfund/internal/api"
	"navfund/internal/api/health"
	"navfund/internal/consumers"
	"navfund/internal/domain/fund"
	chrepo "navfund/internal/repository/clickhouse"
	redisrepo "navfund/internal/repository/redis"
	"navfund/internal/services/accounting"
	"navfund/internal/workers"
	"navfund/pkg/errors"
	"navfund/pkg/logger"
)

// Container holds all application dependencies and their lifecycle
// Components are organized in initialization order
type Container struct {
	// Core configuration & logging
	Config       *config.Config
	Log          *logger.Logger
	ErrorTracker errors.Tracker

	// Infrastructure Layer (Data stores). Nil when disabled.
	PG    *pgclient.Client
	CH    *chclient.Client
	Redis *redisclient.Client

	Repos       *Repositories
	Adapters    *Adapters
	Services    *Services
	Application *Application
	Background  *Background

	// Lifecycle management
	Lifecycle *Lifecycle
	WG        *sync.WaitGroup
	Context   context.Context
	Cancel    context.CancelFunc
}

// Repositories groups storage behind the engine and the read paths
type Repositories struct {
	Store      fund.Store
	Snapshots  *redisrepo.SnapshotCache     // nil without redis
	NavHistory *chrepo.NavHistoryRepository // nil without clickhouse
}

// Adapters groups all external adapters
type Adapters struct {
	KafkaProducer      *kafka.Producer
	NavHistoryConsumer *kafka.Consumer
	Oracle             *oracle.Client
}

// Services groups the accounting engine and what it is built from
type Services struct {
	Locker    accounting.Locker
	Publisher fund.EventPublisher
	Engine    *accounting.Engine
}

// Application groups application layer components
type Application struct {
	HTTPServer    *api.Server
	HealthHandler *health.Handler
}

// Background groups all background processing components
type Background struct {
	WorkerScheduler *workers.Scheduler
	NavHistorySvc   *consumers.NavHistoryConsumer // nil unless kafka and clickhouse are enabled
}

// NewContainer creates a new dependency container
func NewContainer() *Container {
	ctx, cancel := context.WithCancel(context.Background())

	return &Container{
		Repos:       &Repositories{},
		Adapters:    &Adapters{},
		Services:    &Services{},
		Application: &Application{},
		Background:  &Background{},
		Lifecycle:   NewLifecycle(),
		WG:          &sync.WaitGroup{},
		Context:     ctx,
		Cancel:      cancel,
	}
}

// MustInit initializes all components in the correct order
// Panics on any initialization error (fail-fast at startup)
func (c *Container) MustInit() {
	c.MustInitConfig()
	c.MustInitInfrastructure()
	c.MustInitRepositories()
	c.MustInitAdapters()
	c.MustInitServices()
	c.MustInitGenesis()
	c.MustInitApplication()
	c.MustInitBackground()
}

// Start starts all background components
func (c *Container) Start() error {
	c.Log.Info("Starting all systems...")

	c.startConsumers()

	// Start HTTP server
	c.WG.Add(1)
	go func() {
		defer c.WG.Done()
		if err := c.Application.HTTPServer.Start(); err != nil {
			c.Log.Errorw("HTTP server failed", "error", err)
			c.Cancel() // Trigger shutdown on fatal HTTP error
		}
	}()

	if err := c.Background.WorkerScheduler.Start(c.Context); err != nil {
		return errors.Wrap(err, "failed to start workers")
	}

	c.Log.Info("All systems operational")
	return nil
}

// startConsumers starts the Kafka consumers in background goroutines
func (c *Container) startConsumers() {
	if c.Background.NavHistorySvc == nil {
		c.Log.Info("NAV history consumer disabled")
		return
	}

	svc := c.Background.NavHistorySvc
	c.WG.Add(1)
	go func() {
		defer c.WG.Done()
		if err := svc.Start(c.Context); err != nil && c.Context.Err() == nil {
			c.Log.Errorw("NAV history consumer failed", "error", err)
		}
	}()

	c.Log.Infow("Event consumers started", "consumers", []string{"nav_history"})
}

// Shutdown performs graceful shutdown in the correct order
func (c *Container) Shutdown() {
	c.Log.Info("Initiating graceful shutdown...")

	// Cancel application context to signal all other components to stop
	c.Cancel()

	c.Lifecycle.Shutdown(ShutdownTargets{
		WG:              c.WG,
		HTTPServer:      c.Application.HTTPServer,
		HTTPTimeout:     c.Config.HTTP.ShutdownTimeout,
		WorkerScheduler: c.Background.WorkerScheduler,
		KafkaProducer:   c.Adapters.KafkaProducer,
		KafkaConsumers: map[string]*kafka.Consumer{
			"nav_history": c.Adapters.NavHistoryConsumer,
		},
		PG:           c.PG,
		CH:           c.CH,
		Redis:        c.Redis,
		ErrorTracker: c.ErrorTracker,
	}, c.Log)
}
