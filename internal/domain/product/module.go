package product

import (
	"ustp_things/internal/domain/product/handler"
	"ustp_things/internal/domain/product/repository"
	"ustp_things/internal/domain/product/service"
	"ustp_things/internal/pkg/middleware"
	"ustp_things/internal/pkg/registry"

	"github.com/gin-gonic/gin"
)

const ServiceName = "product.service"

type ProductModule struct{}

func init() {
	registry.Register(&ProductModule{})
}

func (m *ProductModule) Name() string {
	return "product"
}

func (m *ProductModule) Priority() int {
	return 20
}

func (m *ProductModule) Init(ctx *registry.ModuleContext) error {
	svc := service.NewProductService(repository.NewProductRepository(ctx.DB))
	ctx.Provide(ServiceName, svc)

	setupRoutes(ctx.Router, handler.NewProductHandler(svc))
	return nil
}

func setupRoutes(r *gin.Engine, h *handler.ProductHandler) {
	r.GET("/products", h.List)
	r.GET("/products/:id", h.Get)

	g := r.Group("/products")
	g.Use(middleware.AuthMiddleware())
	{
		g.POST("", h.Create)
		g.DELETE("/:id", h.Archive)
	}
}
