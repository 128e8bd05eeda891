package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"
	"ustp_things/internal/pkg/config"
	"ustp_things/internal/pkg/events"
	"ustp_things/internal/pkg/kafka"
	"ustp_things/internal/pkg/middleware"
	"ustp_things/internal/pkg/push"
	"ustp_things/internal/pkg/registry"
	"ustp_things/pkg/database"
	"ustp_things/pkg/logger"
	"ustp_things/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	// 业务模块在 init 中注册自己
	_ "ustp_things/internal/domain/common"
	_ "ustp_things/internal/domain/ledger"
	_ "ustp_things/internal/domain/order"
	_ "ustp_things/internal/domain/payment"
	_ "ustp_things/internal/domain/product"
	_ "ustp_things/internal/domain/user"
)

func main() {
	config.LoadConfig()
	cfg := config.GlobalConfig

	if err := logger.InitLogger(cfg.App.Env, cfg.App.LogLevel); err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	gin.SetMode(cfg.Server.Mode)

	db := database.InitDatabase()
	rdb := database.InitRedis()

	bus := events.NewBus(1024)
	var producer *kafka.Producer
	if len(cfg.Kafka.Brokers) > 0 {
		p, err := kafka.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.TopicPrefix)
		if err != nil {
			logger.Log.Warn("kafka producer disabled", zap.Error(err))
		} else {
			producer = p
			bus.Subscribe(producer)
		}
	}
	if pushSvc, err := push.NewAliyunPushService(cfg.Push); err == nil {
		bus.Subscribe(push.NewOrderNotifier(pushSvc))
	} else if !errors.Is(err, push.ErrNotConfigured) {
		logger.Log.Warn("push notifier disabled", zap.Error(err))
	}
	bus.Start()

	scheduler := cron.New(cron.WithSeconds())

	limiter := middleware.NewRateLimiter(rate.Limit(cfg.App.RateLimitQPS), cfg.App.RateLimitBurst)
	if _, err := scheduler.AddFunc("0 */5 * * * *", limiter.Cleanup); err != nil {
		logger.Log.Fatal("failed to schedule limiter cleanup", zap.Error(err))
	}

	r := gin.New()
	r.Use(
		middleware.RecoveryMiddleware(),
		middleware.TraceMiddleware(),
		middleware.LoggerMiddleware(),
		middleware.MetricsMiddleware(),
		middleware.CORSMiddleware(cfg.App.AllowedOrigins),
		middleware.SecurityHeadersMiddleware(),
		middleware.RateLimitMiddleware(limiter),
	)

	r.GET("/health", func(c *gin.Context) {
		response.Success(c, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	moduleCtx := &registry.ModuleContext{
		DB:       db,
		Redis:    rdb,
		Router:   r,
		Events:   bus,
		Cron:     scheduler,
		Services: make(map[string]interface{}),
	}
	if err := registry.InitModules(moduleCtx); err != nil {
		logger.Log.Fatal("failed to init modules", zap.Error(err))
	}

	scheduler.Start()
	go database.ReportPoolStats(ctx, db, 15*time.Second)

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Log.Info("server started", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Log.Fatal("server error", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Log.Error("server shutdown failed", zap.Error(err))
	}

	// 等待正在执行的对账任务结束
	<-scheduler.Stop().Done()

	moduleCtx.Shutdown()
	bus.Stop()

	if producer != nil {
		if err := producer.Close(); err != nil {
			logger.Log.Error("kafka producer close failed", zap.Error(err))
		}
	}
	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
	_ = rdb.Close()
}
