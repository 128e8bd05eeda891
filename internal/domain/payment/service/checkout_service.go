package service

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	orderModel "ustp_things/internal/domain/order/model"
	"ustp_things/internal/domain/payment/model"
	"ustp_things/internal/domain/payment/strategy"
	productModel "ustp_things/internal/domain/product/model"
	productService "ustp_things/internal/domain/product/service"
	"ustp_things/internal/pkg/session"
	"ustp_things/pkg/logger"
	"ustp_things/pkg/metrics"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// CheckoutInput 下单表单
type CheckoutInput struct {
	ProductID     string `json:"product_id" binding:"required"`
	Quantity      int    `json:"quantity" binding:"required,min=1,max=99"`
	PickupDate    string `json:"pickup_date"`
	PickupTime    string `json:"pickup_time"`
	PaymentMethod string `json:"payment_method"`
}

// Quote 下单前的金额试算
type Quote struct {
	ProductID     string          `json:"product_id"`
	ProductName   string          `json:"product_name"`
	SellerID      string          `json:"seller_id"`
	Quantity      int             `json:"quantity"`
	UnitPrice     decimal.Decimal `json:"unit_price"`
	Tier          string          `json:"tier"`
	PaymentMethod string          `json:"payment_method"`
	PickupDate    string          `json:"pickup_date"`
	PickupTime    string          `json:"pickup_time"`
	Fee
}

// CheckoutResult 电子钱包返回收银台地址，直付直接返回订单
type CheckoutResult struct {
	Path        string                   `json:"path"` // ewallet | direct
	ExternalID  string                   `json:"external_id"`
	CheckoutURL string                   `json:"checkout_url,omitempty"`
	ChargeID    string                   `json:"charge_id,omitempty"`
	Order       *model.OrderConfirmation `json:"order,omitempty"`
}

const (
	pathEWallet = "ewallet"
	pathDirect  = "direct"
)

func invalid(msg string) error {
	return fmt.Errorf("%w: %s", ErrCheckoutInvalid, msg)
}

func (s *paymentService) Quote(ctx context.Context, sess session.Session, in CheckoutInput) (*Quote, error) {
	q, _, err := s.quote(ctx, sess, in)
	return q, err
}

func (s *paymentService) quote(ctx context.Context, sess session.Session, in CheckoutInput) (*Quote, *productModel.Product, error) {
	if in.Quantity < 1 || in.Quantity > 99 {
		return nil, nil, invalid("quantity must be between 1 and 99")
	}

	p, err := s.deps.Products.Get(ctx, in.ProductID)
	if err != nil {
		if errors.Is(err, productService.ErrProductNotFound) {
			return nil, nil, ErrProductNotFound
		}
		return nil, nil, err
	}
	if !p.Available() {
		return nil, nil, ErrProductUnavailable
	}
	if p.SellerID == sess.UserID {
		return nil, nil, invalid("cannot buy your own product")
	}

	if in.PickupDate == "" || in.PickupTime == "" {
		return nil, nil, invalid("please select a pickup date and time")
	}
	if !p.HasSlot(in.PickupDate, in.PickupTime) {
		return nil, nil, invalid("selected pickup slot is not offered")
	}

	method := in.PaymentMethod
	if method == "" {
		m, ok := p.DefaultPaymentMethod()
		if !ok {
			return nil, nil, invalid("please select a payment method")
		}
		method = m
	}
	if !p.AcceptsMethod(method) {
		return nil, nil, invalid("payment method not accepted by seller")
	}

	tier, err := s.deps.Tiers.GetTier(ctx, sess.UserID)
	if err != nil {
		return nil, nil, fmt.Errorf("get buyer tier: %w", err)
	}

	return &Quote{
		ProductID:     p.ID,
		ProductName:   p.Name,
		SellerID:      p.SellerID,
		Quantity:      in.Quantity,
		UnitPrice:     p.Price,
		Tier:          tier,
		PaymentMethod: method,
		PickupDate:    in.PickupDate,
		PickupTime:    in.PickupTime,
		Fee:           CalculateFee(p.Price, in.Quantity, tier),
	}, p, nil
}

func (s *paymentService) Checkout(ctx context.Context, sess session.Session, in CheckoutInput) (*CheckoutResult, error) {
	q, _, err := s.quote(ctx, sess, in)
	if err != nil {
		metrics.GetGlobalCollector().RecordCheckout("unknown", "invalid")
		return nil, err
	}

	d := &model.CheckoutDraft{
		ExternalID:       NewExternalID(s.now(), sess.UserID),
		BuyerID:          sess.UserID,
		SellerID:         q.SellerID,
		ProductID:        q.ProductID,
		ProductName:      q.ProductName,
		Quantity:         q.Quantity,
		Subtotal:         q.Subtotal,
		ServiceFeeRate:   q.Rate,
		ServiceFeeAmount: q.Amount,
		TotalAmount:      q.Total,
		PaymentMethod:    q.PaymentMethod,
		PickupDate:       q.PickupDate,
		PickupTime:       q.PickupTime,
		CreatedAt:        s.now(),
	}

	if st, ok := s.strategies[q.PaymentMethod]; ok {
		return s.checkoutEWallet(ctx, st, d)
	}
	return s.checkoutDirect(ctx, d)
}

// checkoutEWallet 先落草稿再创建收款单，网关失败则删除草稿，不写订单
func (s *paymentService) checkoutEWallet(ctx context.Context, st strategy.PaymentStrategy, d *model.CheckoutDraft) (*CheckoutResult, error) {
	if err := s.deps.Drafts.Save(ctx, d, s.opts.DraftTTL); err != nil {
		return nil, err
	}

	charge, err := st.CreateCharge(ctx, strategy.ChargeRequest{
		ReferenceID: d.ExternalID,
		Amount:      d.TotalAmount,
		Currency:    s.opts.Currency,
		ChannelCode: s.opts.Channels[d.PaymentMethod],
		Description: d.ProductName,
		SuccessURL:  redirectURL(s.opts.SuccessURL, "success", d.ExternalID),
		FailureURL:  redirectURL(s.opts.FailureURL, "failed", d.ExternalID),
		CancelURL:   redirectURL(s.opts.CancelURL, "cancelled", d.ExternalID),
		Metadata: map[string]string{
			"buyer_id":   d.BuyerID,
			"product_id": d.ProductID,
		},
	})
	if err != nil {
		if delErr := s.deps.Drafts.Delete(ctx, d.ExternalID, d.BuyerID); delErr != nil {
			logger.Ctx(ctx).Warn("delete draft failed", zap.String("external_id", d.ExternalID), zap.Error(delErr))
		}
		metrics.GetGlobalCollector().RecordCheckout(pathEWallet, "gateway_error")
		logger.Ctx(ctx).Error("create charge failed",
			zap.String("external_id", d.ExternalID),
			zap.String("method", d.PaymentMethod),
			zap.Error(err),
		)
		return nil, fmt.Errorf("%w: %v", ErrPaymentGateway, err)
	}

	d.ChargeID = charge.ID
	d.CheckoutURL = charge.CheckoutURL
	if err := s.deps.Drafts.Save(ctx, d, s.opts.DraftTTL); err != nil {
		// 回调仍可通过 charge_id 参数查询状态
		logger.Ctx(ctx).Warn("update draft with charge id failed", zap.String("external_id", d.ExternalID), zap.Error(err))
	}

	metrics.GetGlobalCollector().RecordCheckout(pathEWallet, "redirect")
	logger.Ctx(ctx).Info("checkout redirected to gateway",
		zap.String("external_id", d.ExternalID),
		zap.String("charge_id", charge.ID),
		zap.String("method", d.PaymentMethod),
	)
	return &CheckoutResult{
		Path:        pathEWallet,
		ExternalID:  d.ExternalID,
		CheckoutURL: charge.CheckoutURL,
		ChargeID:    charge.ID,
	}, nil
}

// checkoutDirect 到付等无需网关的方式，同步写订单和流水
func (s *paymentService) checkoutDirect(ctx context.Context, d *model.CheckoutDraft) (*CheckoutResult, error) {
	o, _, err := s.deps.Orders.Create(ctx, orderFromDraft(d, ""))
	if err != nil {
		metrics.GetGlobalCollector().RecordCheckout(pathDirect, "error")
		return nil, fmt.Errorf("create order: %w", err)
	}

	txID := s.ensureLedger(ctx, o)
	metrics.GetGlobalCollector().RecordCheckout(pathDirect, "confirmed")
	return &CheckoutResult{
		Path:       pathDirect,
		ExternalID: o.ExternalID,
		Order:      confirmation(o, txID),
	}, nil
}

// redirectURL 在跳转地址上附加 status 与 external_id
func redirectURL(base, status, externalID string) string {
	if base == "" {
		return ""
	}
	u, err := url.Parse(base)
	if err != nil {
		return base
	}
	q := u.Query()
	q.Set("status", status)
	q.Set("external_id", externalID)
	u.RawQuery = q.Encode()
	return u.String()
}

func orderFromDraft(d *model.CheckoutDraft, paymentID string) *orderModel.Order {
	o := &orderModel.Order{
		UserID:           d.BuyerID,
		SellerID:         d.SellerID,
		ProductID:        d.ProductID,
		ProductName:      d.ProductName,
		Status:           orderModel.StatusProcessing,
		Quantity:         d.Quantity,
		Subtotal:         d.Subtotal,
		ServiceFeeAmount: d.ServiceFeeAmount,
		ServiceFeeRate:   d.ServiceFeeRate,
		TotalAmount:      d.TotalAmount,
		PaymentMethod:    d.PaymentMethod,
		PaymentStatus:    orderModel.PaymentStatusCompleted,
		ExternalID:       d.ExternalID,
		PickupDate:       d.PickupDate,
		PickupTime:       d.PickupTime,
	}
	if paymentID != "" {
		o.PaymentID = &paymentID
	}
	return o
}

func confirmation(o *orderModel.Order, txID string) *model.OrderConfirmation {
	return &model.OrderConfirmation{
		OrderID:          o.ID,
		ExternalID:       o.ExternalID,
		TransactionID:    txID,
		ProductID:        o.ProductID,
		ProductName:      o.ProductName,
		Quantity:         o.Quantity,
		Subtotal:         o.Subtotal,
		ServiceFeeAmount: o.ServiceFeeAmount,
		TotalAmount:      o.TotalAmount,
		PaymentMethod:    o.PaymentMethod,
		PaymentStatus:    o.PaymentStatus,
		Status:           o.Status,
		PickupDate:       o.PickupDate,
		PickupTime:       o.PickupTime,
		CreatedAt:        o.CreatedAt,
	}
}
