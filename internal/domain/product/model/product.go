package model

import (
	"ustp_things/pkg/model"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

const (
	StatusActive   = "active"
	StatusArchived = "archived"
)

// 支付方式
const (
	MethodGCash        = "gcash"
	MethodMaya         = "maya"
	MethodAlipay       = "alipay"
	MethodWechat       = "wechat"
	MethodCashOnPickup = "cash_on_pickup"
)

var knownMethods = map[string]bool{
	MethodGCash:        true,
	MethodMaya:         true,
	MethodAlipay:       true,
	MethodWechat:       true,
	MethodCashOnPickup: true,
}

func KnownPaymentMethod(m string) bool {
	return knownMethods[m]
}

// Slot 某一天可自提的时间段
type Slot struct {
	Date  string   `json:"date"` // 2006-01-02
	Times []string `json:"times"`
}

// Product 商品
type Product struct {
	model.BaseModel
	SellerID       string                      `gorm:"type:uuid;index;not null" json:"seller_id"`
	Name           string                      `gorm:"type:varchar(128);not null" json:"name"`
	Description    string                      `gorm:"type:text" json:"description"`
	Price          decimal.Decimal             `gorm:"type:numeric(12,2);not null" json:"price"`
	ImageURLs      datatypes.JSONSlice[string] `gorm:"column:image_urls;type:jsonb" json:"image_urls"`
	PaymentMethods datatypes.JSONSlice[string] `gorm:"type:jsonb" json:"payment_methods"`
	Slots          datatypes.JSONSlice[Slot]   `gorm:"type:jsonb" json:"slots"`
	Status         string                      `gorm:"type:varchar(16);index;default:active" json:"status"`
}

func (p *Product) Available() bool {
	return p.Status == StatusActive
}

func (p *Product) AcceptsMethod(method string) bool {
	for _, m := range p.PaymentMethods {
		if m == method {
			return true
		}
	}
	return false
}

func (p *Product) HasSlot(date, time string) bool {
	for _, s := range p.Slots {
		if s.Date != date {
			continue
		}
		for _, t := range s.Times {
			if t == time {
				return true
			}
		}
	}
	return false
}

// DefaultPaymentMethod 只提供一种支付方式时无需买家选择
func (p *Product) DefaultPaymentMethod() (string, bool) {
	if len(p.PaymentMethods) == 1 {
		return p.PaymentMethods[0], true
	}
	return "", false
}
