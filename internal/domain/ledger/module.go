package ledger

import (
	"ustp_things/internal/domain/ledger/handler"
	"ustp_things/internal/domain/ledger/repository"
	"ustp_things/internal/domain/ledger/service"
	"ustp_things/internal/pkg/config"
	"ustp_things/internal/pkg/middleware"
	"ustp_things/internal/pkg/registry"
	"ustp_things/internal/pkg/worker"

	"github.com/gin-gonic/gin"
)

const (
	ServiceName = "ledger.service"
	// RetrierName 流水写入失败后的异步重试池
	RetrierName = "ledger.retrier"
)

type LedgerModule struct{}

func init() {
	registry.Register(&LedgerModule{})
}

func (m *LedgerModule) Name() string {
	return "ledger"
}

func (m *LedgerModule) Priority() int {
	return 30
}

func (m *LedgerModule) Init(ctx *registry.ModuleContext) error {
	svc := service.NewLedgerService(repository.NewTransactionRepository(ctx.DB))
	ctx.Provide(ServiceName, svc)

	cfg := config.GlobalConfig.Checkout
	pool := worker.NewWorkerPool(cfg.LedgerWorkers, cfg.LedgerQueue)
	pool.Start()
	ctx.OnShutdown(pool.Stop)
	ctx.Provide(RetrierName, pool)

	if ctx.Events != nil {
		ctx.Events.Subscribe(service.NewOrderStatusSubscriber(svc))
	}

	setupRoutes(ctx.Router, handler.NewLedgerHandler(svc))
	return nil
}

func setupRoutes(r *gin.Engine, h *handler.LedgerHandler) {
	admin := r.Group("/admin")
	admin.Use(middleware.AuthMiddleware(), middleware.AdminMiddleware())
	{
		admin.GET("/transactions", h.List)
		admin.PUT("/transactions/:id/status", h.UpdateStatus)
		admin.GET("/revenue/summary", h.Summary)
	}
}
