package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// CheckoutDraft 待支付订单草稿，买家跳转收银台期间保存在 Redis，按 ExternalID 索引
type CheckoutDraft struct {
	ExternalID       string          `json:"external_id"`
	BuyerID          string          `json:"buyer_id"`
	SellerID         string          `json:"seller_id"`
	ProductID        string          `json:"product_id"`
	ProductName      string          `json:"product_name"`
	Quantity         int             `json:"quantity"`
	Subtotal         decimal.Decimal `json:"subtotal"`
	ServiceFeeRate   decimal.Decimal `json:"service_fee_rate"`
	ServiceFeeAmount decimal.Decimal `json:"service_fee_amount"`
	TotalAmount      decimal.Decimal `json:"total_amount"`
	PaymentMethod    string          `json:"payment_method"`
	PickupDate       string          `json:"pickup_date"`
	PickupTime       string          `json:"pickup_time"`
	ChargeID         string          `json:"charge_id,omitempty"`
	CheckoutURL      string          `json:"checkout_url,omitempty"`
	CreatedAt        time.Time       `json:"created_at"`
}

// OrderConfirmation 下单成功后返回给买家的订单摘要，电子钱包与直付两条路径相同
type OrderConfirmation struct {
	OrderID          string          `json:"order_id"`
	ExternalID       string          `json:"external_id"`
	TransactionID    string          `json:"transaction_id,omitempty"`
	ProductID        string          `json:"product_id"`
	ProductName      string          `json:"product_name"`
	Quantity         int             `json:"quantity"`
	Subtotal         decimal.Decimal `json:"subtotal"`
	ServiceFeeAmount decimal.Decimal `json:"service_fee_amount"`
	TotalAmount      decimal.Decimal `json:"total_amount"`
	PaymentMethod    string          `json:"payment_method"`
	PaymentStatus    string          `json:"payment_status"`
	Status           string          `json:"status"`
	PickupDate       string          `json:"pickup_date"`
	PickupTime       string          `json:"pickup_time"`
	CreatedAt        time.Time       `json:"created_at"`
}

// CallbackResult 回调处理结果，失败时 Reason 给出可读原因
type CallbackResult struct {
	Success   bool               `json:"success"`
	Duplicate bool               `json:"duplicate"`
	Order     *OrderConfirmation `json:"order,omitempty"`
	Reason    string             `json:"reason,omitempty"`
}
