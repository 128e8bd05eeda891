package handler

import (
	"crypto/subtle"
	"errors"
	"net/http"
	"ustp_things/internal/domain/payment/service"
	"ustp_things/internal/pkg/middleware"
	"ustp_things/pkg/response"

	"github.com/gin-gonic/gin"
)

type PaymentHandler struct {
	service       service.PaymentService
	callbackToken string
}

func NewPaymentHandler(s service.PaymentService, callbackToken string) *PaymentHandler {
	return &PaymentHandler{service: s, callbackToken: callbackToken}
}

// chargeEvents 只有扣款结果事件参与订单落地，退款等事件直接确认
var chargeEvents = map[string]bool{
	"ewallet.capture": true,
	"ewallet.void":    true,
}

// EWalletWebhook 电子钱包网关回调体
type EWalletWebhook struct {
	Event string `json:"event"`
	Data  struct {
		ID          string `json:"id"`
		ReferenceID string `json:"reference_id"`
		Status      string `json:"status"`
	} `json:"data"`
}

// Quote 金额试算
// @Summary 下单试算
// @Tags Payment
// @Accept json
// @Produce json
// @Param input body service.CheckoutInput true "Checkout form"
// @Success 200 {object} response.Response{data=service.Quote}
// @Router /payment/quote [post]
func (h *PaymentHandler) Quote(c *gin.Context) {
	var in service.CheckoutInput
	if err := c.ShouldBindJSON(&in); err != nil {
		response.Error(c, http.StatusBadRequest, response.ErrInvalidParam, err.Error())
		return
	}

	sess, _ := middleware.CurrentSession(c)
	q, err := h.service.Quote(c.Request.Context(), sess, in)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, q)
}

// Checkout 提交订单
// @Summary 提交订单
// @Description 电子钱包返回 checkout_url，到付直接返回订单
// @Tags Payment
// @Accept json
// @Produce json
// @Param input body service.CheckoutInput true "Checkout form"
// @Success 200 {object} response.Response{data=service.CheckoutResult}
// @Router /payment/checkout [post]
func (h *PaymentHandler) Checkout(c *gin.Context) {
	var in service.CheckoutInput
	if err := c.ShouldBindJSON(&in); err != nil {
		response.Error(c, http.StatusBadRequest, response.ErrInvalidParam, err.Error())
		return
	}

	sess, _ := middleware.CurrentSession(c)
	res, err := h.service.Checkout(c.Request.Context(), sess, in)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, res)
}

// Callback 收银台跳转回来后确认订单
// @Summary 支付结果确认
// @Tags Payment
// @Param status query string false "success|failed|cancelled"
// @Param charge_id query string false "charge id"
// @Param external_id query string false "external id"
// @Router /payment/callback [get]
func (h *PaymentHandler) Callback(c *gin.Context) {
	var in service.CallbackInput
	_ = c.ShouldBindQuery(&in)

	sess, _ := middleware.CurrentSession(c)
	res, err := h.service.HandleCallback(c.Request.Context(), sess, in)
	if err != nil {
		h.fail(c, err)
		return
	}
	if !res.Success {
		response.Fail(c, response.ErrPaymentFailed, res.Reason, res)
		return
	}
	response.Success(c, res)
}

// EWalletNotify 电子钱包网关服务端通知
// @Summary 电子钱包回调
// @Tags Payment
// @Router /payment/notify/ewallet [post]
func (h *PaymentHandler) EWalletNotify(c *gin.Context) {
	token := c.GetHeader("X-Callback-Token")
	if h.callbackToken == "" || subtle.ConstantTimeCompare([]byte(token), []byte(h.callbackToken)) != 1 {
		response.Error(c, http.StatusUnauthorized, response.ErrTokenInvalid, "invalid callback token")
		return
	}

	var body EWalletWebhook
	if err := c.ShouldBindJSON(&body); err != nil {
		response.Error(c, http.StatusBadRequest, response.ErrInvalidParam, err.Error())
		return
	}

	if !chargeEvents[body.Event] {
		response.Success(c, gin.H{"ignored": body.Event})
		return
	}

	res, err := h.service.HandleNotify(c.Request.Context(), service.Notification{
		ChargeID:    body.Data.ID,
		ReferenceID: body.Data.ReferenceID,
		Status:      body.Data.Status,
	})
	if err != nil {
		// 非 2xx 网关会重发
		h.fail(c, err)
		return
	}
	// 业务失败也回 200，避免网关无意义重试
	response.Success(c, res)
}

func (h *PaymentHandler) fail(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrCheckoutInvalid):
		response.Error(c, http.StatusBadRequest, response.ErrCheckoutInvalid, err.Error())
	case errors.Is(err, service.ErrProductNotFound):
		response.Error(c, http.StatusNotFound, response.ErrProductNotFound, err.Error())
	case errors.Is(err, service.ErrProductUnavailable):
		response.Error(c, http.StatusConflict, response.ErrProductUnavailable, err.Error())
	case errors.Is(err, service.ErrPaymentGateway):
		response.Error(c, http.StatusBadGateway, response.ErrPaymentGateway, service.ErrPaymentGateway.Error())
	case errors.Is(err, service.ErrPaymentInProgress):
		response.Error(c, http.StatusConflict, response.ErrPaymentInProgress, err.Error())
	default:
		response.Error(c, http.StatusInternalServerError, response.ErrServerInternal, "Internal server error")
	}
}
