package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"google.golang.org/grpc"

	"github.com/waleedtradee5-svg/pharmacy-management-system/internal/adapter/handler"
	"github.com/waleedtradee5-svg/pharmacy-management-system/internal/adapter/storage"
	"github.com/waleedtradee5-svg/pharmacy-management-system/internal/config"
	"github.com/waleedtradee5-svg/pharmacy-management-system/internal/core/service"
	"github.com/waleedtradee5-svg/pharmacy-management-system/internal/port"
)

type cacheAdapter interface {
	port.IdempotencyStore
	port.Locker
}

func main() {
	cfg := config.LoadConfig()
	logg := config.NewLogger(cfg.LogLevel, cfg.LogFormat)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var (
		store port.Store
		db    *sqlx.DB
	)
	if cfg.MySQLDSN != "" {
		if cfg.MigrateOnStart {
			if err := storage.RunMigrations(cfg.MySQLDSN); err != nil {
				logg.WithError(err).Fatal("failed to run migrations")
			}
			logg.Info("migrations applied")
		}

		var err error
		db, err = sqlx.Open("mysql", cfg.MySQLDSN)
		if err != nil {
			logg.WithError(err).Fatal("failed to connect mysql")
		}
		db.SetMaxOpenConns(cfg.DBMaxOpenConns)
		db.SetMaxIdleConns(cfg.DBMaxOpenConns / 2)
		db.SetConnMaxLifetime(5 * time.Minute)

		if err := db.PingContext(ctx); err != nil {
			logg.WithError(err).Fatal("failed to ping mysql")
		}
		logg.Info("connected to mysql")
		store = storage.NewMySQLAdapter(db)
	} else {
		store = storage.NewMemoryStore()
		logg.Warn("MYSQL_DSN not set, using in-memory store")
	}

	var (
		cache cacheAdapter
		rdb   *redis.Client
	)
	if cfg.RedisAddr != "" {
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
			PoolSize: 100,
		})
		if err := rdb.Ping(ctx).Err(); err != nil {
			logg.WithError(err).Fatal("failed to connect redis")
		}
		logg.Info("connected to redis")
		cache = storage.NewRedisAdapter(rdb)
	} else {
		cache = storage.NewLocalAdapter()
		logg.Warn("REDIS_ADDR not set, idempotency keys and locks are process-local")
	}

	if cfg.SeedDemo {
		demo, err := storage.SeedDemo(ctx, store, time.Now())
		if err != nil {
			logg.WithError(err).Fatal("failed to seed demo data")
		}
		logg.WithFields(logrus.Fields{
			"items":     len(demo.ItemIDs),
			"customers": len(demo.CustomerIDs),
		}).Info("seeded demo data")
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := service.NewMetrics(reg)

	exec := service.NewTransactionExecutor(store, metrics, logg)
	ledger := service.NewStockLedger(store, exec, metrics, logg)
	engine, err := service.NewNotificationEngine(ctx, store, cache, metrics, logg)
	if err != nil {
		logg.WithError(err).Fatal("failed to load notification thresholds")
	}
	svc := handler.Services{
		Catalog:       service.NewCatalogService(store, logg),
		Ledger:        ledger,
		Orders:        service.NewPurchaseOrderService(store, exec, ledger, metrics, logg),
		Returns:       service.NewPurchaseReturnService(store, exec, ledger, metrics, logg),
		Sales:         service.NewSalesService(store, exec, ledger, cache, metrics, logg),
		Notifications: engine,
	}

	// Start notification scanner
	var wg sync.WaitGroup
	scanCtx, stopScanner := context.WithCancel(ctx)
	if cfg.NotificationScanInterval > 0 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			engine.RunScanner(scanCtx, cfg.NotificationScanInterval)
		}()
		logg.WithField("interval", cfg.NotificationScanInterval.String()).Info("started notification scanner")
	}

	// Initialize gRPC server
	grpcServer := grpc.NewServer()
	handler.RegisterPharmacyServiceServer(grpcServer, handler.NewGRPCHandler(svc, logg))

	lis, err := net.Listen("tcp", cfg.GRPCAddr)
	if err != nil {
		logg.WithError(err).Fatal("failed to listen")
	}

	go func() {
		logg.Infof("gRPC server listening on %s", cfg.GRPCAddr)
		if err := grpcServer.Serve(lis); err != nil {
			logg.WithError(err).Error("gRPC server error")
		}
	}()

	// Initialize HTTP server
	httpServer := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           handler.NewHTTPHandler(svc, logg).Router(reg),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logg.Infof("HTTP server listening on %s", cfg.HTTPAddr)
		if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			logg.WithError(err).Error("HTTP server error")
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logg.Info("shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logg.WithError(err).Warn("HTTP shutdown")
	}
	logg.Info("HTTP server stopped")

	grpcServer.GracefulStop()
	logg.Info("gRPC server stopped")

	stopScanner()
	wg.Wait()
	logg.Info("scanner stopped")

	if rdb != nil {
		rdb.Close()
	}
	if db != nil {
		db.Close()
	}
	logg.Info("connections closed")
}
