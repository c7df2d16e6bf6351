package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/minerva-imaging/minervadb/pkg/api"
	"github.com/minerva-imaging/minervadb/pkg/authz"
	"github.com/minerva-imaging/minervadb/pkg/config"
	"github.com/minerva-imaging/minervadb/pkg/db"
	"github.com/minerva-imaging/minervadb/pkg/observability"
	"github.com/minerva-imaging/minervadb/pkg/store"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger := observability.NewLogger(cfg.Observability.LogLevel, os.Stdout)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	manager, err := db.NewConnectionManager(cfg.Database, logger)
	if err != nil {
		logger.WithError(err).Error("Failed to connect to database")
		os.Exit(1)
	}
	defer manager.Close()

	if err := store.RunMigrations(ctx, manager.Primary()); err != nil {
		logger.WithError(err).Error("Failed to run migrations")
		os.Exit(1)
	}

	st := store.NewStore(manager.Primary())

	if cfg.SeedFile != "" {
		fixture, err := loadSeedFile(cfg.SeedFile)
		if err != nil {
			logger.WithError(err).Errorf("Failed to load seed file %s", cfg.SeedFile)
			os.Exit(1)
		}
		if err := fixture.Apply(ctx, st, logger); err != nil {
			logger.WithError(err).Error("Failed to apply seed fixture")
			os.Exit(1)
		}
	}

	var redisClient *redis.Client
	if cfg.Cache.Enabled && cfg.Cache.RedisAddr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Cache.RedisAddr,
			Password: cfg.Cache.RedisPassword,
			DB:       cfg.Cache.RedisDB,
		})
		if err := redisClient.Ping(ctx).Err(); err != nil {
			// The redis tier only caches decisions; start without it
			logger.WithError(err).Warnf("Redis unreachable at %s, running with local cache only", cfg.Cache.RedisAddr)
		}
		defer redisClient.Close()
	}

	var metrics *observability.Metrics
	if cfg.Observability.MetricsEnabled {
		metrics = observability.NewMetrics(prometheus.NewRegistry())
	}

	var cache *authz.DecisionCache
	if cfg.Cache.Enabled {
		cache = authz.NewDecisionCache(cfg.Cache.MaxEntries, cfg.Cache.TTL, redisClient)
		if metrics != nil {
			cache = cache.WithMetrics(metrics)
		}
	}

	// Decision reads tolerate replica staleness; the manager routes each
	// query through a healthy replica and falls back to the primary when
	// none are configured
	engine := authz.NewEngine(manager, cache, logger)

	accessLog := logrus.New()
	accessLog.SetFormatter(&logrus.JSONFormatter{})

	server := api.NewServer(st, engine, accessLog, metrics)

	apiServer := &http.Server{
		Addr:         cfg.Server.Host + ":" + cfg.Server.Port,
		Handler:      server,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	probeMux := http.NewServeMux()
	observability.RegisterHealthRoutes(probeMux, observability.NewHealthChecker(manager, redisClient))
	if metrics != nil {
		probeMux.Handle("/metrics", metrics.Handler())
	}
	probeServer := &http.Server{
		Addr:    cfg.Server.Host + ":" + cfg.Server.HealthPort,
		Handler: probeMux,
	}

	scheduler := cron.New()
	if cache != nil && cfg.Cache.PurgeSchedule != "" {
		if _, err := scheduler.AddFunc(cfg.Cache.PurgeSchedule, func() {
			cache.Purge(context.Background())
			logger.Debug("Purged decision cache on schedule")
		}); err != nil {
			logger.WithError(err).Errorf("Invalid cache purge schedule %q", cfg.Cache.PurgeSchedule)
			os.Exit(1)
		}
		scheduler.Start()
		defer scheduler.Stop()
	}

	group, groupCtx := errgroup.WithContext(ctx)

	group.Go(func() error {
		logger.Infof("API server listening on %s", apiServer.Addr)
		if err := apiServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	group.Go(func() error {
		logger.Infof("Health and metrics server listening on %s", probeServer.Addr)
		if err := probeServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	if metrics != nil {
		group.Go(func() error {
			ticker := time.NewTicker(15 * time.Second)
			defer ticker.Stop()
			for {
				select {
				case <-groupCtx.Done():
					return nil
				case <-ticker.C:
					stats := manager.Stats()
					metrics.SetDBConnections(stats.Primary.InUse, stats.Primary.Idle)
				}
			}
		})
	}

	group.Go(func() error {
		<-groupCtx.Done()
		logger.Info("Shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		err := apiServer.Shutdown(shutdownCtx)
		if probeErr := probeServer.Shutdown(shutdownCtx); err == nil {
			err = probeErr
		}
		return err
	})

	if err := group.Wait(); err != nil {
		logger.WithError(err).Error("Server exited with error")
		os.Exit(1)
	}
	logger.Info("Shutdown complete")
}
