package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/avast/retry-go/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/xela07ax/erp-backend-prototype/internal/audit"
	"github.com/xela07ax/erp-backend-prototype/internal/cache"
	"github.com/xela07ax/erp-backend-prototype/internal/infra"
	"github.com/xela07ax/erp-backend-prototype/internal/infra/auth"
	"github.com/xela07ax/erp-backend-prototype/internal/pipeline"
	"github.com/xela07ax/erp-backend-prototype/internal/registry"
	"github.com/xela07ax/erp-backend-prototype/internal/repository"
	"github.com/xela07ax/erp-backend-prototype/internal/repository/postgres"
	"github.com/xela07ax/erp-backend-prototype/internal/server"
	"github.com/xela07ax/erp-backend-prototype/internal/service"
)

func main() {
	// 1. Конфигурация и логгер
	cfg, err := infra.LoadConfig()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := infra.NewLogger(cfg.Logger)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync()

	// 2. Postgres. База может подниматься параллельно с нами (docker
	// compose), поэтому пингуем с бэкоффом, а не падаем с первого раза.
	db, err := postgres.Open(cfg.Database.URL)
	if err != nil {
		logger.Fatal("failed to open postgres", zap.Error(err))
	}
	defer db.Close()

	pingCtx, pingCancel := context.WithTimeout(context.Background(), 30*time.Second)
	r := retry.New(retry.Context(pingCtx), retry.Attempts(5))
	if err := r.Do(func() error { return db.PingContext(pingCtx) }); err != nil {
		pingCancel()
		logger.Fatal("postgres is unreachable", zap.Error(err))
	}
	pingCancel()

	// 3. Redis (кэш записей)
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer rdb.Close()

	// 4. Метрики
	reg := prometheus.NewRegistry()
	metrics := pipeline.NewMetrics(reg)

	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
		addr := fmt.Sprintf(":%d", cfg.Server.MetricsPort)
		logger.Info("metrics endpoint started", zap.String("addr", addr))
		if err := http.ListenAndServe(addr, mux); err != nil && err != http.ErrServerClosed {
			logger.Error("metrics endpoint failed", zap.Error(err))
		}
	}()

	// 5. Аутентификация (RS256)
	publicKey, err := auth.ParseRSAPublicKey(cfg.Auth.PublicKey)
	if err != nil {
		logger.Fatal("failed to parse public key", zap.Error(err))
	}
	privateKey, err := auth.ParseRSAPrivateKey(cfg.Auth.PrivateKey)
	if err != nil {
		logger.Fatal("failed to parse private key", zap.Error(err))
	}
	validator := auth.NewBaseValidator(publicKey)
	authService := service.NewAuthService(postgres.NewUserRepo(db), privateKey, cfg.Auth.TokenTTL)

	// 6. Конвейер и реестр ресурсов.
	// Цепочка хранилища: Postgres -> Redis-кэш -> предохранитель.
	storeFactory := func(spec postgres.TableSpec) pipeline.Store {
		var store pipeline.Store = postgres.NewResourceRepo(db, spec)
		store = cache.NewRecordCache(spec.Table, store, rdb, cfg.Pipeline.CacheTTL, metrics, logger)
		return repository.NewResilientStore(spec.Table, store, logger)
	}
	assocFactory := func(child postgres.TableSpec, parentCol string) pipeline.AssociationStore {
		assoc := postgres.NewAssociationRepo(db, child, parentCol)
		return repository.NewResilientAssociationStore(child.Table, assoc, logger)
	}

	// След операций: асинхронный, с финальным flush на остановке.
	trail := audit.NewTrail(postgres.NewAuditRepo(db), logger)
	trail.Start()
	defer trail.Stop()

	orch := pipeline.NewOrchestrator(logger, metrics)
	routes := registry.Build(registry.Definitions(cfg.Auth.BcryptCost), storeFactory, assocFactory)
	handler := server.NewResourceHandler(orch, trail, logger)

	// 7. HTTP Server
	api := server.NewServer(cfg, logger, validator, authService, handler, routes)
	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      api,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// 8. Graceful Shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		logger.Info("server started", zap.String("addr", srv.Addr), zap.Int("routes", len(routes)))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("listen failed", zap.Error(err))
		}
	}()

	<-stop
	logger.Info("server stopping...")

	// Даем 5 секунд на завершение запросов
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Fatal("server shutdown failed", zap.Error(err))
	}
	logger.Info("server exited properly")
}
