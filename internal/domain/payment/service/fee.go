package service

import (
	userModel "ustp_things/internal/domain/user/model"

	"github.com/shopspring/decimal"
)

// 服务费率按买家认证等级，未认证不收
var feeRates = map[string]decimal.Decimal{
	userModel.TierStudent: decimal.RequireFromString("0.03"),
	userModel.TierCompany: decimal.RequireFromString("0.05"),
}

// Fee 金额拆分
type Fee struct {
	Subtotal decimal.Decimal `json:"subtotal"`
	Rate     decimal.Decimal `json:"service_fee_rate"`
	Amount   decimal.Decimal `json:"service_fee_amount"`
	Total    decimal.Decimal `json:"total_amount"`
}

func FeeRate(tier string) decimal.Decimal {
	if r, ok := feeRates[tier]; ok {
		return r
	}
	return decimal.Zero
}

// CalculateFee subtotal = price * quantity，服务费四舍五入到分
func CalculateFee(price decimal.Decimal, quantity int, tier string) Fee {
	subtotal := price.Mul(decimal.NewFromInt(int64(quantity))).Round(2)
	rate := FeeRate(tier)
	amount := subtotal.Mul(rate).Round(2)
	return Fee{
		Subtotal: subtotal,
		Rate:     rate,
		Amount:   amount,
		Total:    subtotal.Add(amount),
	}
}
