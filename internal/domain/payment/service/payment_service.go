package service

import (
	"context"
	"errors"
	"fmt"
	"time"
	ledgerService "ustp_things/internal/domain/ledger/service"
	orderModel "ustp_things/internal/domain/order/model"
	"ustp_things/internal/domain/payment/model"
	"ustp_things/internal/domain/payment/repository"
	"ustp_things/internal/domain/payment/strategy"
	productModel "ustp_things/internal/domain/product/model"
	"ustp_things/internal/pkg/config"
	"ustp_things/internal/pkg/events"
	"ustp_things/internal/pkg/lock"
	"ustp_things/internal/pkg/session"
	"ustp_things/internal/pkg/worker"
)

var (
	ErrCheckoutInvalid    = errors.New("invalid checkout")
	ErrProductNotFound    = errors.New("product not found")
	ErrProductUnavailable = errors.New("product is not available")
	ErrPaymentGateway     = errors.New("payment gateway unavailable, please try again")
	ErrPaymentInProgress  = errors.New("payment is being processed")
	ErrNoPendingOrder     = errors.New("No pending order data")
)

// 以下为支付模块依赖的其他模块能力，只取用到的方法

type ProductReader interface {
	Get(ctx context.Context, id string) (*productModel.Product, error)
}

type TierReader interface {
	GetTier(ctx context.Context, userID string) (string, error)
}

type OrderWriter interface {
	// Create 同一 ExternalID 已存在时返回已有订单，existed 为 true
	Create(ctx context.Context, o *orderModel.Order) (order *orderModel.Order, existed bool, err error)
	FindByExternalID(ctx context.Context, externalID string) (*orderModel.Order, error)
}

type LedgerWriter interface {
	Record(ctx context.Context, in ledgerService.RecordInput) (string, error)
}

type Retrier interface {
	AddTask(task worker.Task) bool
}

type EventPublisher interface {
	Publish(e events.Event)
}

// Deps 支付服务依赖
type Deps struct {
	Drafts   repository.DraftRepository
	Orders   OrderWriter
	Ledger   LedgerWriter
	Products ProductReader
	Tiers    TierReader
	Locker   lock.Locker
	Retrier  Retrier        // 可为 nil，流水写入失败时不重试
	Events   EventPublisher // 可为 nil
}

// Options 下单与回调参数
type Options struct {
	DraftTTL       time.Duration
	ProcessedTTL   time.Duration
	ReconcileAfter time.Duration
	Currency       string
	Channels       map[string]string // 支付方式 -> 网关 channel code
	SuccessURL     string
	FailureURL     string
	CancelURL      string
}

func OptionsFromConfig(cfg config.Config) Options {
	return Options{
		DraftTTL:       cfg.Checkout.DraftTTL,
		ProcessedTTL:   cfg.Checkout.ProcessedTTL,
		ReconcileAfter: cfg.Checkout.ReconcileAfter,
		Currency:       cfg.Gateway.Currency,
		Channels:       cfg.Gateway.Channels,
		SuccessURL:     cfg.Checkout.SuccessURL,
		FailureURL:     cfg.Checkout.FailureURL,
		CancelURL:      cfg.Checkout.CancelURL,
	}
}

type PaymentService interface {
	// RegisterStrategy 注册支付方式对应的网关，未注册的支付方式走直付
	RegisterStrategy(method string, s strategy.PaymentStrategy)

	Quote(ctx context.Context, sess session.Session, in CheckoutInput) (*Quote, error)
	Checkout(ctx context.Context, sess session.Session, in CheckoutInput) (*CheckoutResult, error)

	// HandleCallback 买家从收银台跳转回来
	HandleCallback(ctx context.Context, sess session.Session, in CallbackInput) (*model.CallbackResult, error)
	// HandleNotify 网关服务端通知
	HandleNotify(ctx context.Context, n Notification) (*model.CallbackResult, error)
	// Reconcile 处理长时间未回调的草稿，返回已终结的数量
	Reconcile(ctx context.Context) (int, error)
}

type paymentService struct {
	deps       Deps
	opts       Options
	strategies map[string]strategy.PaymentStrategy
	now        func() time.Time
}

func NewPaymentService(deps Deps, opts Options) PaymentService {
	if opts.DraftTTL <= 0 {
		opts.DraftTTL = time.Hour
	}
	if opts.ProcessedTTL <= 0 {
		opts.ProcessedTTL = 24 * time.Hour
	}
	if opts.ReconcileAfter <= 0 {
		opts.ReconcileAfter = 5 * time.Minute
	}
	if opts.Currency == "" {
		opts.Currency = "PHP"
	}
	return &paymentService{
		deps:       deps,
		opts:       opts,
		strategies: make(map[string]strategy.PaymentStrategy),
		now:        time.Now,
	}
}

func (s *paymentService) RegisterStrategy(method string, st strategy.PaymentStrategy) {
	s.strategies[method] = st
}

func (s *paymentService) publish(t events.Type, p events.OrderPayload) {
	if s.deps.Events != nil {
		s.deps.Events.Publish(events.NewEvent(t, p))
	}
}

// NewExternalID order_<毫秒时间戳>_<买家ID>
func NewExternalID(now time.Time, buyerID string) string {
	return fmt.Sprintf("order_%d_%s", now.UnixMilli(), buyerID)
}
