package order

import (
	"ustp_things/internal/domain/order/handler"
	"ustp_things/internal/domain/order/repository"
	"ustp_things/internal/domain/order/service"
	"ustp_things/internal/pkg/middleware"
	"ustp_things/internal/pkg/registry"

	"github.com/gin-gonic/gin"
)

const ServiceName = "order.service"

type OrderModule struct{}

func init() {
	registry.Register(&OrderModule{})
}

func (m *OrderModule) Name() string {
	return "order"
}

func (m *OrderModule) Priority() int {
	return 40
}

func (m *OrderModule) Init(ctx *registry.ModuleContext) error {
	svc := service.NewOrderService(repository.NewOrderRepository(ctx.DB), ctx.Events)
	ctx.Provide(ServiceName, svc)

	setupRoutes(ctx.Router, handler.NewOrderHandler(svc))
	return nil
}

func setupRoutes(r *gin.Engine, h *handler.OrderHandler) {
	g := r.Group("/orders")
	g.Use(middleware.AuthMiddleware())
	{
		g.GET("", h.ListMine)
		g.GET("/:id", h.Get)
		g.PUT("/:id/status", h.UpdateStatus)
		g.POST("/:id/cancel", h.Cancel)
	}

	admin := r.Group("/admin")
	admin.Use(middleware.AuthMiddleware(), middleware.AdminMiddleware())
	admin.GET("/orders", h.ListAll)
}
