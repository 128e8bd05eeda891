package model

import (
	"time"
	"ustp_things/pkg/model"

	"github.com/shopspring/decimal"
)

// 订单状态，取值与前端展示一致
const (
	StatusProcessing     = "Processing"
	StatusReadyForPickup = "Ready for pickup"
	StatusCompleted      = "Completed"
	StatusCancelled      = "Cancelled"
)

const PaymentStatusCompleted = "completed"

// CancelWindow 买家下单后可取消的时长
const CancelWindow = time.Hour

// Order 订单，ExternalID 对应一次支付尝试，唯一索引保证一次支付最多一个订单
type Order struct {
	model.BaseModel
	UserID           string          `gorm:"type:uuid;index;not null" json:"user_id"` // 买家
	SellerID         string          `gorm:"type:uuid;index;not null" json:"seller_id"`
	ProductID        string          `gorm:"type:uuid;index;not null" json:"product_id"`
	ProductName      string          `gorm:"type:varchar(128)" json:"product_name"`
	Status           string          `gorm:"type:varchar(32);index;not null" json:"status"`
	Quantity         int             `gorm:"not null" json:"quantity"`
	Subtotal         decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"subtotal"`
	ServiceFeeAmount decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"service_fee_amount"`
	ServiceFeeRate   decimal.Decimal `gorm:"type:numeric(5,4);not null" json:"service_fee_rate"`
	TotalAmount      decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"total_amount"`
	PaymentMethod    string          `gorm:"type:varchar(32);not null" json:"payment_method"`
	PaymentStatus    string          `gorm:"type:varchar(16);not null" json:"payment_status"`
	PaymentID        *string         `gorm:"type:varchar(128)" json:"payment_id,omitempty"`
	ExternalID       string          `gorm:"type:varchar(128);uniqueIndex;not null" json:"external_id"`
	PickupDate       string          `gorm:"type:varchar(10)" json:"pickup_date"`
	PickupTime       string          `gorm:"type:varchar(16)" json:"pickup_time"`
}

// CanCancel 仅 Processing 且下单不超过一小时
func (o *Order) CanCancel(now time.Time) bool {
	return o.Status == StatusProcessing && now.Sub(o.CreatedAt) <= CancelWindow
}

var transitions = map[string][]string{
	StatusProcessing:     {StatusReadyForPickup, StatusCancelled},
	StatusReadyForPickup: {StatusCompleted},
}

// CanTransition 状态机: Processing -> {Ready for pickup -> Completed, Cancelled}
func CanTransition(from, to string) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}
