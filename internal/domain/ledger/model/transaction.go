package model

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	StatusCompleted = "completed"
	StatusFailed    = "failed"
	StatusCancelled = "cancelled"
	StatusRefunded  = "refunded"
)

// TransactionRecord 交易流水，每个订单、每个支付单号至多一条，只改状态不删除
type TransactionRecord struct {
	ID               string          `gorm:"primaryKey;type:uuid" json:"id"`
	OrderID          string          `gorm:"type:uuid;uniqueIndex;not null" json:"order_id"`
	BuyerID          string          `gorm:"type:uuid;index;not null" json:"buyer_id"`
	SellerID         string          `gorm:"type:uuid;index;not null" json:"seller_id"`
	ProductID        string          `gorm:"type:uuid;not null" json:"product_id"`
	Subtotal         decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"subtotal"`
	ServiceFeeAmount decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"service_fee_amount"`
	TotalAmount      decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"total_amount"`
	PlatformRevenue  decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"platform_revenue"`
	SellerRevenue    decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"seller_revenue"`
	PaymentMethod    string          `gorm:"type:varchar(32);not null" json:"payment_method"`
	PaymentID        *string         `gorm:"type:varchar(128);uniqueIndex" json:"payment_id,omitempty"`
	Status           string          `gorm:"type:varchar(16);index;not null" json:"status"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
}

func (TransactionRecord) TableName() string {
	return "transactions"
}

// CanMoveTo 只有 completed 的流水可以改为 failed/cancelled/refunded
func CanMoveTo(from, to string) bool {
	if from != StatusCompleted {
		return false
	}
	return to == StatusFailed || to == StatusCancelled || to == StatusRefunded
}

// Summary 收入汇总，仅统计 completed
type Summary struct {
	Count           int64           `json:"count"`
	GrossVolume     decimal.Decimal `json:"gross_volume"`
	PlatformRevenue decimal.Decimal `json:"platform_revenue"`
	SellerRevenue   decimal.Decimal `json:"seller_revenue"`
}
