package user

import (
	"ustp_things/internal/domain/user/handler"
	"ustp_things/internal/domain/user/repository"
	"ustp_things/internal/domain/user/service"
	"ustp_things/internal/pkg/config"
	"ustp_things/internal/pkg/middleware"
	"ustp_things/internal/pkg/otp"
	"ustp_things/internal/pkg/registry"
	"ustp_things/pkg/cache"

	"github.com/gin-gonic/gin"
)

// ServiceName 其他模块通过该名字取用户服务
const ServiceName = "user.service"

// UserModule 用户模块
type UserModule struct{}

func init() {
	registry.Register(&UserModule{})
}

func (m *UserModule) Name() string {
	return "user"
}

func (m *UserModule) Priority() int {
	// 下单需要读认证等级，用户模块最先初始化
	return 10
}

func (m *UserModule) Init(ctx *registry.ModuleContext) error {
	userRepo := repository.NewUserRepository(ctx.DB)
	verificationRepo := repository.NewVerificationRepository(ctx.DB)
	otpService := otp.NewOTPService(ctx.Redis, config.GlobalConfig.App.TestOTPCode)

	inner := service.NewUserService(userRepo, verificationRepo, otpService)
	userService := service.NewCachedUserService(inner, cache.NewRedisCache(ctx.Redis, ""))
	ctx.Provide(ServiceName, userService)

	setupRoutes(ctx.Router, handler.NewUserHandler(userService))
	return nil
}

func setupRoutes(r *gin.Engine, h *handler.UserHandler) {
	authGroup := r.Group("/auth")
	{
		authGroup.POST("/login", h.LoginOrRegister)
		authGroup.POST("/otp", h.SendOTP)
	}

	userGroup := r.Group("/users")
	userGroup.Use(middleware.AuthMiddleware())
	{
		userGroup.GET("/me", h.GetMe)
		userGroup.PUT("/me", h.UpdateMe)
		userGroup.POST("/me/verification", h.SubmitVerification)
		userGroup.GET("/:id", h.GetUser)
	}

	adminGroup := r.Group("/admin")
	adminGroup.Use(middleware.AuthMiddleware(), middleware.AdminMiddleware())
	{
		adminGroup.GET("/users", h.GetUsers)
		adminGroup.DELETE("/users/:id", h.DeleteUser)
		adminGroup.GET("/verifications", h.ListVerifications)
		adminGroup.PUT("/verifications/:id/review", h.ReviewVerification)
	}
}
