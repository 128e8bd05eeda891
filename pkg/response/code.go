package response

// 业务状态码
const (
	CodeSuccess = 0
	CodeError   = 1

	// 用户模块错误 100xx
	ErrUserExists           = 10001
	ErrUserNotFound         = 10002
	ErrAuthFailed           = 10003
	ErrTokenInvalid         = 10004
	ErrNoPermission         = 10005
	ErrVerificationPending  = 10006
	ErrVerificationNotFound = 10007
	ErrVerificationReviewed = 10008

	// 商品模块错误 200xx
	ErrProductNotFound    = 20001
	ErrProductUnavailable = 20002

	// 下单与支付错误 300xx
	ErrCheckoutInvalid   = 30001
	ErrPaymentGateway    = 30002
	ErrPaymentInProgress = 30003
	ErrPaymentFailed     = 30004

	// 订单错误 400xx
	ErrOrderNotFound = 40001
	ErrOrderStatus   = 40002
	ErrCancelWindow  = 40003

	// 交易流水错误 401xx
	ErrTransactionNotFound = 40101
	ErrTransactionStatus   = 40102

	// 系统错误 500xx
	ErrServerInternal  = 50001
	ErrInvalidParam    = 50002
	ErrTooManyRequests = 50003
)
