package service

import "strings"

// 各网关表示支付成功的状态
var successStatuses = map[string]bool{
	"SUCCEEDED":      true,
	"PAID":           true,
	"SUCCESS":        true,
	"SETTLED":        true,
	"COMPLETED":      true,
	"TRADE_SUCCESS":  true,
	"TRADE_FINISHED": true,
}

// 尚未终结的状态，对账时保留草稿
var pendingStatuses = map[string]bool{
	"PENDING":         true,
	"REQUIRES_ACTION": true,
	"WAIT_BUYER_PAY":  true,
	"NOTPAY":          true,
	"USERPAYING":      true,
}

// IsSuccessfulStatus 网关状态或跳转参数 status=success 视为成功，大小写不敏感
func IsSuccessfulStatus(status string) bool {
	return successStatuses[strings.ToUpper(strings.TrimSpace(status))]
}

func IsPendingStatus(status string) bool {
	return pendingStatuses[strings.ToUpper(strings.TrimSpace(status))]
}

// failureReason 给买家看的失败原因
func failureReason(status string) string {
	switch strings.ToUpper(strings.TrimSpace(status)) {
	case "CANCELLED", "CANCELED", "VOIDED":
		return "Payment was cancelled"
	case "EXPIRED", "TRADE_CLOSED", "CLOSED":
		return "Payment expired or was closed"
	case "FAILED", "FAILURE", "PAYERROR":
		return "Payment failed"
	case "":
		return "Payment status unknown"
	default:
		return "Payment was not completed (status: " + status + ")"
	}
}
