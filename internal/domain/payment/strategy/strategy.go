package strategy

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
)

// ErrGateway 支付网关调用失败（网络、熔断、非 2xx），可重试
var ErrGateway = errors.New("payment gateway error")

// ChargeRequest 创建收款单
type ChargeRequest struct {
	ReferenceID string // 即 ExternalID
	Amount      decimal.Decimal
	Currency    string
	ChannelCode string
	Description string
	SuccessURL  string
	FailureURL  string
	CancelURL   string
	Metadata    map[string]string
}

// Charge 网关返回的收款单，CheckoutURL 为托管收银台地址
type Charge struct {
	ID          string
	Status      string
	CheckoutURL string
}

type PaymentStrategy interface {
	// CreateCharge 发起收款，返回收银台跳转地址
	CreateCharge(ctx context.Context, req ChargeRequest) (*Charge, error)

	// GetChargeStatus 查询收款单状态，返回网关原始状态字符串
	GetChargeStatus(ctx context.Context, chargeID string) (string, error)
}
