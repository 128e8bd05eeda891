package payment

import (
	"context"
	"fmt"
	"time"
	"ustp_things/internal/domain/ledger"
	"ustp_things/internal/domain/order"
	"ustp_things/internal/domain/payment/handler"
	"ustp_things/internal/domain/payment/repository"
	"ustp_things/internal/domain/payment/service"
	"ustp_things/internal/domain/payment/strategy"
	"ustp_things/internal/domain/product"
	productModel "ustp_things/internal/domain/product/model"
	"ustp_things/internal/domain/user"
	"ustp_things/internal/pkg/config"
	"ustp_things/internal/pkg/lock"
	"ustp_things/internal/pkg/middleware"
	"ustp_things/internal/pkg/registry"
	"ustp_things/pkg/logger"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// PaymentModule 下单、支付回调与对账
type PaymentModule struct{}

func init() {
	registry.Register(&PaymentModule{})
}

func (m *PaymentModule) Name() string {
	return "payment"
}

func (m *PaymentModule) Priority() int {
	// 依赖用户、商品、流水、订单服务
	return 50
}

func lookup[T any](ctx *registry.ModuleContext, name string) (T, error) {
	var zero T
	svc, err := ctx.Lookup(name)
	if err != nil {
		return zero, err
	}
	t, ok := svc.(T)
	if !ok {
		return zero, fmt.Errorf("service %q has unexpected type %T", name, svc)
	}
	return t, nil
}

func (m *PaymentModule) Init(ctx *registry.ModuleContext) error {
	products, err := lookup[service.ProductReader](ctx, product.ServiceName)
	if err != nil {
		return err
	}
	tiers, err := lookup[service.TierReader](ctx, user.ServiceName)
	if err != nil {
		return err
	}
	orders, err := lookup[service.OrderWriter](ctx, order.ServiceName)
	if err != nil {
		return err
	}
	ledgerWriter, err := lookup[service.LedgerWriter](ctx, ledger.ServiceName)
	if err != nil {
		return err
	}
	retrier, err := lookup[service.Retrier](ctx, ledger.RetrierName)
	if err != nil {
		return err
	}

	cfg := config.GlobalConfig
	deps := service.Deps{
		Drafts:   repository.NewDraftRepository(ctx.Redis),
		Orders:   orders,
		Ledger:   ledgerWriter,
		Products: products,
		Tiers:    tiers,
		Locker: lock.NewRedisLocker(ctx.Redis,
			lock.WithExpiry(cfg.Checkout.LockExpiry),
			lock.WithTries(cfg.Checkout.LockTries),
		),
		Retrier: retrier,
	}
	if ctx.Events != nil {
		deps.Events = ctx.Events
	}

	svc := service.NewPaymentService(deps, service.OptionsFromConfig(cfg))
	registerStrategies(svc, cfg)

	// 同一买家每秒最多一次下单，允许 3 次突发
	checkoutLimiter := middleware.NewRateLimiter(rate.Every(time.Second), 3)

	if ctx.Cron != nil {
		if _, err := ctx.Cron.AddFunc(cfg.Checkout.ReconcileSpec, func() { reconcile(svc) }); err != nil {
			return fmt.Errorf("schedule reconcile: %w", err)
		}
		if _, err := ctx.Cron.AddFunc("@every 5m", checkoutLimiter.Cleanup); err != nil {
			return fmt.Errorf("schedule limiter cleanup: %w", err)
		}
	}

	setupRoutes(ctx.Router, handler.NewPaymentHandler(svc, cfg.Gateway.CallbackToken), checkoutLimiter)
	return nil
}

func registerStrategies(svc service.PaymentService, cfg config.Config) {
	// 电子钱包托管收银台
	if cfg.Gateway.BaseURL != "" {
		for method := range cfg.Gateway.Channels {
			svc.RegisterStrategy(method, strategy.NewEWalletGateway(cfg.Gateway, method))
		}
	}

	// 支付宝
	if cfg.Alipay.AppID != "" {
		s, err := strategy.NewAlipayStrategy(cfg.Alipay)
		if err != nil {
			logger.Log.Error("init alipay strategy failed", zap.Error(err))
		} else {
			svc.RegisterStrategy(productModel.MethodAlipay, s)
		}
	}

	// 微信支付
	if cfg.Wechat.MchID != "" {
		s, err := strategy.NewWechatStrategy(context.Background(), cfg.Wechat)
		if err != nil {
			logger.Log.Error("init wechat strategy failed", zap.Error(err))
		} else {
			svc.RegisterStrategy(productModel.MethodWechat, s)
		}
	}
}

func reconcile(svc service.PaymentService) {
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Second)
	defer cancel()

	if _, err := svc.Reconcile(ctx); err != nil {
		logger.Log.Error("reconcile checkout drafts failed", zap.Error(err))
	}
}

func setupRoutes(r *gin.Engine, h *handler.PaymentHandler, checkoutLimiter *middleware.RateLimiter) {
	g := r.Group("/payment")

	// 网关服务端通知 (无需登录，校验回调 token)
	g.POST("/notify/ewallet", h.EWalletNotify)

	auth := g.Group("")
	auth.Use(middleware.AuthMiddleware())
	{
		auth.POST("/quote", h.Quote)
		auth.POST("/checkout", middleware.UserRateLimitMiddleware(checkoutLimiter), h.Checkout)
		auth.GET("/callback", h.Callback)
	}
}
