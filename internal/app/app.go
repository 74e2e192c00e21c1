// Package app builds the ledger's dependency graph from configuration.
package app

import (
	"context"
	"errors"
	"fmt"
	"os"

	"promoledger/config"
	"promoledger/internal/auth"
	"promoledger/internal/cache"
	"promoledger/internal/commission"
	"promoledger/internal/database"
	"promoledger/internal/events"
	"promoledger/internal/jobs"
	"promoledger/internal/metrics"
	"promoledger/internal/repository"
	"promoledger/internal/repository/memory"
	"promoledger/internal/repository/mongostore"
	"promoledger/internal/service"
	"promoledger/internal/ws"
	"promoledger/pkg/fingerprint"

	firebase "firebase.google.com/go/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// App holds the wired services. Close releases every connection New opened.
type App struct {
	Config   *config.Config
	Log      *zap.Logger
	Registry *prometheus.Registry
	Metrics  *metrics.Metrics
	Stores   repository.Stores
	Hub      *ws.Hub
	Verifier auth.Verifier
	Locker   jobs.Locker

	Notifications *service.NotificationService
	Sponsorships  *service.SponsorshipService
	Attributions  *service.AttributionService
	Affiliates    *service.AffiliateService
	Stats         *service.StatsService
	Ranking       *service.RankingService

	gormDB  *gorm.DB
	mongoDB *mongo.Database
	closers []func() error
}

// New connects the configured backends and builds the services.
func New(ctx context.Context, cfg *config.Config, log *zap.Logger) (a *App, err error) {
	a = &App{Config: cfg, Log: log, Hub: ws.NewHub()}
	defer func() {
		if err != nil {
			_ = a.Close()
		}
	}()

	a.Registry = prometheus.NewRegistry()
	a.Registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	if a.Metrics, err = metrics.New(a.Registry); err != nil {
		return nil, err
	}

	if err = a.openStores(ctx); err != nil {
		return nil, err
	}

	var c cache.Cache = cache.NewMemory()
	a.Locker = jobs.NewMemoryLocker()
	if cfg.Redis.URL != "" {
		client, err := cache.Connect(ctx, cfg.Redis.URL)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, client.Close)
		c = cache.NewRedis(client, "promoledger:")
		a.Locker = jobs.NewRedisLocker(client, instanceID())
		log.Info("redis enabled for cache and job locks")
	}

	publishers := events.Multi{a.Hub}
	if len(cfg.Kafka.Brokers) > 0 {
		kp, err := events.NewKafkaPublisher(cfg.Kafka.Brokers, cfg.Kafka.TopicPrefix)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, kp.Close)
		publishers = append(publishers, kp)
		log.Info("kafka event publishing enabled", zap.Strings("brokers", cfg.Kafka.Brokers))
	}
	bus := events.NewBus(publishers, log, a.Metrics)

	pusher, err := a.setupFirebase(ctx)
	if err != nil {
		return nil, err
	}

	hasher, err := fingerprint.New(cfg.Tracking.FingerprintKey)
	if err != nil {
		return nil, fmt.Errorf("fingerprint key: %w", err)
	}

	a.Notifications = service.NewNotificationService(a.Stores.Notifications, a.Stores.DeviceTokens, pusher, log)
	a.Sponsorships = service.NewSponsorshipService(a.Stores.Sponsorships, a.Stores.Products, c,
		cfg.Sponsorship.CacheTTL, a.Notifications, bus, a.Metrics, log)
	a.Attributions = service.NewAttributionService(service.AttributionDeps{
		Links:        a.Stores.Links,
		Attributions: a.Stores.Attributions,
		Rates:        commission.NewRates(cfg.Commission.DefaultRateBps, cfg.Commission.ProductRates),
		Window:       cfg.Commission.AttributionWindow,
		Sponsorships: a.Sponsorships,
		ClickCost:    cfg.Sponsorship.ClickCost,
		Hasher:       hasher,
		Notifier:     a.Notifications,
		Bus:          bus,
		Metrics:      a.Metrics,
		Log:          log,
	})
	a.Affiliates = service.NewAffiliateService(a.Stores.Links, a.Stores.Products, cfg.Server.PublicBaseURL, log)
	a.Stats = service.NewStatsService(a.Stores.Attributions, cfg.Commission.AttributionWindow)
	a.Ranking = service.NewRankingService(a.Stores, service.RankingParams(cfg.Ranking), c, cfg.Ranking.CacheTTL, bus, log)
	return a, nil
}

func (a *App) openStores(ctx context.Context) error {
	cfg := a.Config.Database
	switch cfg.Driver {
	case config.DriverMySQL, config.DriverPostgres:
		db, err := database.NewDB(&cfg)
		if err != nil {
			return fmt.Errorf("database: %w", err)
		}
		if sqlDB, err := db.DB(); err == nil {
			a.closers = append(a.closers, sqlDB.Close)
		}
		a.gormDB = db
		a.Stores = repository.NewGormStores(db)
	case config.DriverMongo:
		client, db, err := database.NewMongo(ctx, &cfg)
		if err != nil {
			return err
		}
		a.closers = append(a.closers, func() error { return client.Disconnect(context.Background()) })
		a.mongoDB = db
		a.Stores = mongostore.NewStores(db)
	case config.DriverMemory:
		a.Log.Warn("using in-memory storage; data is lost on restart")
		a.Stores = memory.New().Stores()
	default:
		return fmt.Errorf("database: unknown driver %q", cfg.Driver)
	}
	a.Log.Info("storage ready", zap.String("driver", cfg.Driver))
	return nil
}

// setupFirebase picks the token verifier and, when enabled, the FCM pusher.
func (a *App) setupFirebase(ctx context.Context) (service.Pusher, error) {
	cfg := a.Config
	needApp := cfg.Auth.Provider == config.AuthProviderFirebase || cfg.Firebase.PushEnabled
	var fbApp *firebase.App
	if needApp {
		var err error
		if fbApp, err = auth.NewFirebaseApp(ctx, &cfg.Firebase); err != nil {
			return nil, err
		}
	}

	if cfg.Auth.Provider == config.AuthProviderFirebase {
		v, err := auth.NewFirebaseVerifier(ctx, fbApp)
		if err != nil {
			return nil, err
		}
		a.Verifier = v
	} else {
		a.Verifier = auth.NewJWTVerifier(&cfg.Auth)
	}

	if !cfg.Firebase.PushEnabled {
		a.Log.Info("push notifications disabled: set FIREBASE_PUSH_ENABLED to enable")
		return nil, nil
	}
	client, err := fbApp.Messaging(ctx)
	if err != nil {
		return nil, fmt.Errorf("firebase messaging: %w", err)
	}
	a.Log.Info("push notifications enabled")
	return service.NewFCMService(client, a.Log), nil
}

// Migrate creates tables (SQL) or indexes (Mongo). The memory backend needs nothing.
func (a *App) Migrate(ctx context.Context) error {
	switch {
	case a.gormDB != nil:
		return database.AutoMigrate(a.gormDB.WithContext(ctx))
	case a.mongoDB != nil:
		return mongostore.EnsureIndexes(ctx, a.mongoDB)
	}
	return nil
}

// Scheduler wires the background jobs onto the ledger and ranking services.
func (a *App) Scheduler() *jobs.Scheduler {
	jc := a.Config.Jobs
	runner := jobs.NewRunner(a.Locker, jc.LockTTL, jc.MaxAttempts, jc.RetryBaseDelay, a.Metrics, a.Log)
	return jobs.NewScheduler(runner, a.Sponsorships, a.Ranking, jc.ActivationInterval, a.Config.Ranking.Interval, a.Log)
}

func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil && !errors.Is(err, redis.ErrClosed) {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

func instanceID() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		return "promoledger"
	}
	return fmt.Sprintf("%s-%d", host, os.Getpid())
}
