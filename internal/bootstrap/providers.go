package bootstrap

import (
	"context"
	"os"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"

	chclient "navfund/internal/adapters/clickhouse"
	"navfund/internal/adapters/config"
	errnoop "navfund/internal/adapters/errors/noop"
	"navfund/internal/adapters/errors/sentry"
	"navfund/internal/adapters/kafka"
	"navfund/internal/adapters/oracle"
	pgclient "navfund/internal/adapters/postgres"
	redisclient "navfund/internal/adapters/redis"
	"navfund/internal/api"
	"navfund/internal/api/health"
	"navfund/internal/consumers"
	"navfund/internal/events"
	"navfund/internal/metrics"
	chrepo "navfund/internal/repository/clickhouse"
	"navfund/internal/repository/memory"
	pgrepo "navfund/internal/repository/postgres"
	redisrepo "navfund/internal/repository/redis"
	"navfund/internal/services/accounting"
	"navfund/internal/workers"
	"navfund/pkg/auth"
	"navfund/pkg/errors"
	"navfund/pkg/logger"
)

const connectTimeout = 30 * time.Second

// ========================================
// Phase 1: Configuration & Logging
// ========================================

// MustInitConfig loads configuration and initializes logger
func (c *Container) MustInitConfig() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}
	c.Config = cfg

	if err := logger.Init(cfg.App.LogLevel, cfg.App.Env); err != nil {
		panic("failed to init logger: " + err.Error())
	}

	c.ErrorTracker = provideErrorTracker(cfg, logger.Get())
	logger.SetErrorTracker(c.ErrorTracker)

	c.Log = logger.Get()
	c.Log.Infow("Starting service",
		"name", cfg.App.Name,
		"env", cfg.App.Env,
		"version", cfg.App.Version,
		"storage", cfg.Storage.Driver,
	)

	metrics.Init()
}

// ========================================
// Phase 2: Infrastructure Layer
// ========================================

// MustInitInfrastructure connects the enabled data stores
func (c *Container) MustInitInfrastructure() {
	ctx, cancel := context.WithTimeout(c.Context, connectTimeout)
	defer cancel()

	var err error

	if c.Config.Storage.Driver == config.StoragePostgres {
		c.Log.Info("Connecting to PostgreSQL...")
		c.PG, err = pgclient.NewClient(ctx, c.Config.Postgres)
		if err != nil {
			c.Log.Fatalf("failed to connect postgres: %v", err)
		}
		if c.Config.Postgres.Migrate {
			if err := pgclient.Migrate(c.PG.DB(), c.Log); err != nil {
				c.Log.Fatalf("failed to migrate postgres: %v", err)
			}
		}
		c.Log.Info("PostgreSQL connected")
	}

	if c.Config.ClickHouse.Enabled {
		c.Log.Info("Connecting to ClickHouse...")
		c.CH, err = chclient.NewClient(ctx, c.Config.ClickHouse)
		if err != nil {
			c.Log.Fatalf("failed to connect clickhouse: %v", err)
		}
		c.Log.Info("ClickHouse connected")
	}

	if c.Config.Redis.Enabled {
		c.Log.Info("Connecting to Redis...")
		c.Redis, err = redisclient.NewClient(ctx, c.Config.Redis)
		if err != nil {
			c.Log.Fatalf("failed to connect redis: %v", err)
		}
		c.Log.Info("Redis connected")
	}
}

// ========================================
// Phase 3: Repositories
// ========================================

// MustInitRepositories picks the fund store and the optional read models
func (c *Container) MustInitRepositories() {
	if c.PG != nil {
		c.Repos.Store = pgrepo.NewStore(c.PG.DB(), c.Log)
		metrics.RegisterStoreCollector(metrics.NewStoreCollector(c.Log, c.PG.DB(), c.chConn()))
	} else {
		c.Log.Warn("Using in-memory storage, state is lost on restart")
		c.Repos.Store = memory.NewStore()
	}

	if c.Redis != nil {
		c.Repos.Snapshots = redisrepo.NewSnapshotCache(c.Redis, 2*c.Config.Workers.FundMonitorInterval)
	}

	if c.CH != nil {
		c.Repos.NavHistory = chrepo.NewNavHistoryRepository(c.CH.Conn())
		ctx, cancel := context.WithTimeout(c.Context, connectTimeout)
		defer cancel()
		if err := c.Repos.NavHistory.EnsureSchema(ctx); err != nil {
			c.Log.Fatalf("failed to prepare nav_history table: %v", err)
		}
	}

	c.Log.Info("Repositories initialized")
}

func (c *Container) chConn() driver.Conn {
	if c.CH == nil {
		return nil
	}
	return c.CH.Conn()
}

// ========================================
// Phase 4: External Adapters
// ========================================

// MustInitAdapters initializes Kafka and the oracle API client
func (c *Container) MustInitAdapters() {
	if c.Config.Kafka.Enabled {
		c.Adapters.KafkaProducer = provideKafkaProducer(c.Config, c.Log)
		if c.Repos.NavHistory != nil {
			c.Adapters.NavHistoryConsumer = provideKafkaConsumer(c.Config, kafka.TopicNav, c.Log)
		}
	}

	c.Adapters.Oracle = oracle.NewClient(oracle.Config{
		BaseURL:           c.Config.Oracle.APIURL,
		RequestsPerSecond: c.Config.Oracle.RequestsPerSecond,
		Timeout:           c.Config.Oracle.Timeout,
	}, c.Log)
}

// ========================================
// Phase 5: Services
// ========================================

// MustInitServices builds the accounting engine
func (c *Container) MustInitServices() {
	if c.Redis != nil {
		c.Services.Locker = redisrepo.NewLocker(c.Redis, c.Config.Redis.LockTTL, c.Log)
		c.Log.Info("Using Redis fund locks")
	} else {
		c.Services.Locker = accounting.NewMutexLocker()
	}

	if c.Adapters.KafkaProducer != nil {
		c.Services.Publisher = events.NewPublisher(c.Adapters.KafkaProducer, c.Log)
	} else {
		c.Services.Publisher = events.NewNoopPublisher(c.Log)
	}

	c.Services.Engine = accounting.NewEngine(
		c.Repos.Store,
		auth.NewVerifier(c.Config.Auth.MaxSkew),
		c.Services.Locker,
		c.Services.Publisher,
		c.Config.Fund.ProgramID,
		c.Log,
	)

	c.Log.Info("Accounting engine initialized")
}

// MustInitGenesis creates the configured fund when it does not exist yet.
func (c *Container) MustInitGenesis() {
	if !c.Config.Fund.Configured() {
		c.Log.Info("No fund configured, skipping genesis")
		return
	}

	ctx, cancel := context.WithTimeout(c.Context, connectTimeout)
	defer cancel()

	if err := ensureFund(ctx, c.Services.Engine, c.Config.Fund, c.Log); err != nil {
		c.Log.Fatalf("fund genesis failed: %v", err)
	}
}

// ========================================
// Phase 6: Application Layer
// ========================================

// MustInitApplication builds the HTTP server
func (c *Container) MustInitApplication() {
	c.Application.HealthHandler = provideHealthHandler(c)

	var snapshots api.SnapshotSource
	if c.Repos.Snapshots != nil {
		snapshots = c.Repos.Snapshots
	}
	var history api.NavHistorySource
	if c.Repos.NavHistory != nil {
		history = c.Repos.NavHistory
	}

	c.Application.HTTPServer = api.NewServer(
		api.ServerConfig{
			Port:        c.Config.HTTP.Port,
			ServiceName: c.Config.App.Name,
			Version:     c.Config.App.Version,
		},
		c.Application.HealthHandler,
		api.NewFundsHandler(c.Services.Engine, snapshots, history, c.Log),
		c.Log,
	)
}

// ========================================
// Phase 7: Background Processing
// ========================================

// MustInitBackground registers workers and consumers
func (c *Container) MustInitBackground() {
	c.Background.WorkerScheduler = workers.NewScheduler(c.Log)
	for _, w := range provideWorkers(c) {
		c.Background.WorkerScheduler.RegisterWorker(w)
	}
	c.Application.HealthHandler.SetWorkers(c.Background.WorkerScheduler, 3*c.Config.Workers.FundMonitorInterval)

	if c.Adapters.NavHistoryConsumer != nil {
		c.Background.NavHistorySvc = consumers.NewNavHistoryConsumer(
			c.Adapters.NavHistoryConsumer,
			c.Repos.NavHistory,
			consumers.NavHistoryConfig{
				MaxBatchSize: c.Config.ClickHouse.BatchSize,
				MaxAge:       c.Config.ClickHouse.FlushInterval,
			},
			c.Log,
		)
	}
}

// ========================================
// Providers
// ========================================

func provideErrorTracker(cfg *config.Config, log *logger.Logger) errors.Tracker {
	if !cfg.ErrorTracking.Enabled || cfg.ErrorTracking.SentryDSN == "" {
		log.Info("Error tracking disabled")
		return errnoop.New()
	}

	hostname, _ := os.Hostname()
	tracker, err := sentry.New(sentry.Options{
		DSN:         cfg.ErrorTracking.SentryDSN,
		Environment: cfg.ErrorTracking.Environment,
		Release:     cfg.App.Name + "@" + cfg.App.Version,
		ServerName:  hostname,
	})
	if err != nil {
		log.Warnw("Failed to initialize Sentry", "error", err)
		return errnoop.New()
	}

	log.Info("Error tracking initialized (Sentry)")
	return tracker
}

func provideKafkaProducer(cfg *config.Config, log *logger.Logger) *kafka.Producer {
	producer := kafka.NewProducer(kafka.ProducerConfig{
		Brokers: cfg.Kafka.Brokers,
	}, log)
	log.Infow("Kafka producer initialized", "brokers", cfg.Kafka.Brokers)
	return producer
}

func provideKafkaConsumer(cfg *config.Config, topic string, log *logger.Logger) *kafka.Consumer {
	return kafka.NewConsumer(kafka.ConsumerConfig{
		Brokers: cfg.Kafka.Brokers,
		GroupID: cfg.Kafka.GroupID,
		Topic:   topic,
	}, log)
}

func provideHealthHandler(c *Container) *health.Handler {
	h := health.New(c.Log, c.Config.App.Name, c.Config.App.Version)
	if c.PG != nil {
		h.AddCheck("postgres", c.PG.Health)
	}
	if c.CH != nil {
		h.AddCheck("clickhouse", c.CH.Health)
	}
	if c.Redis != nil {
		h.AddCheck("redis", c.Redis.Health)
	}
	return h
}

// provideWorkers builds the background workers. The NAV sync worker needs a
// configured fund and the oracle key, which config validation enforces when it is enabled.
func provideWorkers(c *Container) []workers.Worker {
	wcfg := c.Config.Workers
	list := make([]workers.Worker, 0, 2)

	var cache workers.SnapshotSaver
	if c.Repos.Snapshots != nil {
		cache = c.Repos.Snapshots
	}
	list = append(list, workers.NewFundMonitorWorker(
		c.Services.Engine, cache, wcfg.FundMonitorInterval, wcfg.FundMonitorEnabled, c.Log,
	))

	if wcfg.NavSyncEnabled {
		if !c.Config.Fund.Configured() {
			c.Log.Warn("NAV sync enabled without FUND_ID, worker not registered")
			return list
		}
		signer, err := c.Config.Oracle.Signer()
		if err != nil {
			c.Log.Fatalf("invalid oracle key: %v", err)
		}
		list = append(list, workers.NewNavSyncWorker(
			c.Adapters.Oracle,
			c.Services.Engine,
			c.Config.Fund.ID,
			signer,
			wcfg.NavSyncInterval,
			true,
			c.Log,
		))
	}

	return list
}

// ensureFund initializes the configured fund unless it already exists.
// The admin key signs the genesis envelope and becomes the fund admin.
func ensureFund(ctx context.Context, engine *accounting.Engine, cfg config.FundConfig, log *logger.Logger) error {
	existing, err := engine.Fund(ctx, cfg.ID)
	if err == nil {
		log.Infow("Fund loaded",
			"fund_id", existing.ID,
			"latest_nav", existing.Oracle.LatestNav,
			"paused", existing.Governance.Paused,
		)
		return nil
	}
	if !errors.Is(err, errors.ErrFundNotFound) {
		return err
	}

	admin, err := cfg.Admin()
	if err != nil {
		return err
	}

	params := cfg.GenesisParams()
	env, err := auth.Sign(admin, accounting.InitializeFundAction(params), time.Now())
	if err != nil {
		return err
	}

	created, err := engine.InitializeFund(ctx, env, params)
	if err != nil {
		return errors.Wrap(err, "initialize fund")
	}

	log.Infow("Fund created at genesis",
		"fund_id", created.ID,
		"admin", created.Governance.Admin,
		"treasury", created.Accounts.Treasury,
	)
	return nil
}
