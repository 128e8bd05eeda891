package strategy

import (
	"context"
	"errors"
	"fmt"
	"time"
	"ustp_things/internal/pkg/config"
	"ustp_things/pkg/metrics"

	"github.com/smartwalle/alipay/v3"
)

type AlipayStrategy struct {
	client *alipay.Client
	config config.AlipayConfig
}

func NewAlipayStrategy(cfg config.AlipayConfig) (*AlipayStrategy, error) {
	if cfg.AppID == "" {
		return nil, errors.New("alipay config missing")
	}

	client, err := alipay.New(cfg.AppID, cfg.PrivateKey, cfg.IsProduction)
	if err != nil {
		return nil, err
	}

	// 加载支付宝公钥 (用于验证签名)
	if err = client.LoadAliPayPublicKey(cfg.PublicKey); err != nil {
		return nil, err
	}

	return &AlipayStrategy{
		client: client,
		config: cfg,
	}, nil
}

// CreateCharge 电脑网站支付，收款单号即 ReferenceID
func (s *AlipayStrategy) CreateCharge(ctx context.Context, req ChargeRequest) (*Charge, error) {
	p := alipay.TradePagePay{}
	p.ReturnURL = req.SuccessURL
	p.Subject = req.Description
	p.OutTradeNo = req.ReferenceID
	p.TotalAmount = req.Amount.StringFixed(2)
	p.ProductCode = "FAST_INSTANT_TRADE_PAY"

	start := time.Now()
	u, err := s.client.TradePagePay(p)
	metrics.GetGlobalCollector().ObserveGatewayCall("create_charge", time.Since(start))
	if err != nil {
		metrics.GetGlobalCollector().RecordGatewayError("alipay", "create_charge")
		return nil, fmt.Errorf("%w: alipay page pay: %v", ErrGateway, err)
	}

	return &Charge{ID: req.ReferenceID, Status: "WAIT_BUYER_PAY", CheckoutURL: u.String()}, nil
}

// GetChargeStatus 返回 trade_status，如 TRADE_SUCCESS / WAIT_BUYER_PAY / TRADE_CLOSED
func (s *AlipayStrategy) GetChargeStatus(ctx context.Context, chargeID string) (string, error) {
	p := alipay.TradeQuery{}
	p.OutTradeNo = chargeID

	start := time.Now()
	rsp, err := s.client.TradeQuery(p)
	metrics.GetGlobalCollector().ObserveGatewayCall("get_charge", time.Since(start))
	if err != nil {
		metrics.GetGlobalCollector().RecordGatewayError("alipay", "get_charge")
		return "", fmt.Errorf("%w: alipay trade query: %v", ErrGateway, err)
	}
	if rsp.IsFailure() {
		metrics.GetGlobalCollector().RecordGatewayError("alipay", "get_charge")
		return "", fmt.Errorf("%w: alipay trade query: %s %s", ErrGateway, rsp.Code, rsp.Msg)
	}
	return string(rsp.TradeStatus), nil
}

var _ PaymentStrategy = (*AlipayStrategy)(nil)
