package strategy

import (
	"context"
	"errors"
	"fmt"
	"time"
	"ustp_things/internal/pkg/config"
	"ustp_things/pkg/metrics"

	"github.com/wechatpay-apiv3/wechatpay-go/core"
	"github.com/wechatpay-apiv3/wechatpay-go/core/option"
	"github.com/wechatpay-apiv3/wechatpay-go/services/payments/native"
	"github.com/wechatpay-apiv3/wechatpay-go/utils"
)

// WechatStrategy Native 支付，CheckoutURL 为二维码内容 code_url
type WechatStrategy struct {
	svc    native.NativeApiService
	config config.WechatPayConfig
}

func NewWechatStrategy(ctx context.Context, cfg config.WechatPayConfig) (*WechatStrategy, error) {
	if cfg.MchID == "" {
		return nil, errors.New("wechat pay config missing")
	}

	// 加载商户私钥
	mchPrivateKey, err := utils.LoadPrivateKey(cfg.MchPrivateKey)
	if err != nil {
		return nil, err
	}

	opts := []core.ClientOption{
		option.WithWechatPayAutoAuthCipher(cfg.MchID, cfg.MchCertificateSerial, mchPrivateKey, cfg.APIv3Key),
	}
	client, err := core.NewClient(ctx, opts...)
	if err != nil {
		return nil, err
	}

	return &WechatStrategy{
		svc:    native.NativeApiService{Client: client},
		config: cfg,
	}, nil
}

func (s *WechatStrategy) CreateCharge(ctx context.Context, req ChargeRequest) (*Charge, error) {
	// 转换为分
	amountFen := req.Amount.Shift(2).Round(0).IntPart()

	start := time.Now()
	resp, _, err := s.svc.Prepay(ctx, native.PrepayRequest{
		Appid:       core.String(s.config.AppID),
		Mchid:       core.String(s.config.MchID),
		Description: core.String(req.Description),
		OutTradeNo:  core.String(req.ReferenceID),
		NotifyUrl:   core.String(s.config.NotifyURL),
		Amount: &native.Amount{
			Total: core.Int64(amountFen),
		},
	})
	metrics.GetGlobalCollector().ObserveGatewayCall("create_charge", time.Since(start))
	if err != nil {
		metrics.GetGlobalCollector().RecordGatewayError("wechat", "create_charge")
		return nil, fmt.Errorf("%w: wechat prepay: %v", ErrGateway, err)
	}
	if resp.CodeUrl == nil {
		return nil, fmt.Errorf("%w: wechat prepay returned no code_url", ErrGateway)
	}

	return &Charge{ID: req.ReferenceID, Status: "NOTPAY", CheckoutURL: *resp.CodeUrl}, nil
}

// GetChargeStatus 返回 trade_state，如 SUCCESS / NOTPAY / CLOSED
func (s *WechatStrategy) GetChargeStatus(ctx context.Context, chargeID string) (string, error) {
	start := time.Now()
	tx, _, err := s.svc.QueryOrderByOutTradeNo(ctx, native.QueryOrderByOutTradeNoRequest{
		OutTradeNo: core.String(chargeID),
		Mchid:      core.String(s.config.MchID),
	})
	metrics.GetGlobalCollector().ObserveGatewayCall("get_charge", time.Since(start))
	if err != nil {
		metrics.GetGlobalCollector().RecordGatewayError("wechat", "get_charge")
		return "", fmt.Errorf("%w: wechat query order: %v", ErrGateway, err)
	}
	if tx.TradeState == nil {
		return "", nil
	}
	return *tx.TradeState, nil
}

var _ PaymentStrategy = (*WechatStrategy)(nil)
