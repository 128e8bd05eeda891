package handler

import (
	"errors"
	"net/http"
	"ustp_things/internal/domain/order/model"
	"ustp_things/internal/domain/order/repository"
	"ustp_things/internal/domain/order/service"
	"ustp_things/internal/pkg/middleware"
	"ustp_things/pkg/response"
	"ustp_things/pkg/utils"

	"github.com/gin-gonic/gin"
)

type OrderHandler struct {
	service service.OrderService
}

func NewOrderHandler(s service.OrderService) *OrderHandler {
	return &OrderHandler{service: s}
}

type StatusInput struct {
	Status string `json:"status" binding:"required,oneof='Ready for pickup' Completed"`
}

func (h *OrderHandler) Get(c *gin.Context) {
	sess, _ := middleware.CurrentSession(c)
	o, err := h.service.Get(c.Request.Context(), sess, c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, o)
}

// ListMine 买家视角 ?as=seller 切换为卖家视角
// @Summary 我的订单
// @Tags Order
// @Param as query string false "buyer|seller"
// @Param status query string false "status"
// @Router /orders [get]
func (h *OrderHandler) ListMine(c *gin.Context) {
	var p utils.Pagination
	_ = c.ShouldBindQuery(&p)
	sess, _ := middleware.CurrentSession(c)
	status := c.Query("status")

	var (
		list  []model.Order
		total int64
		err   error
	)
	if c.Query("as") == "seller" {
		list, total, err = h.service.ListForSeller(c.Request.Context(), sess, status, p.Page, p.Limit)
	} else {
		list, total, err = h.service.ListForBuyer(c.Request.Context(), sess, status, p.Page, p.Limit)
	}
	if err != nil {
		h.fail(c, err)
		return
	}
	p.Normalize()
	response.Page(c, list, total, p.Page, p.Limit)
}

// ListAll 管理员订单列表
func (h *OrderHandler) ListAll(c *gin.Context) {
	var p utils.Pagination
	_ = c.ShouldBindQuery(&p)

	f := repository.Filter{
		BuyerID:  c.Query("buyer_id"),
		SellerID: c.Query("seller_id"),
		Status:   c.Query("status"),
	}
	list, total, err := h.service.ListAll(c.Request.Context(), f, p.Page, p.Limit)
	if err != nil {
		h.fail(c, err)
		return
	}
	p.Normalize()
	response.Page(c, list, total, p.Page, p.Limit)
}

// UpdateStatus 卖家推进订单状态
// @Summary 更新订单状态
// @Tags Order
// @Param id path string true "order id"
// @Param body body StatusInput true "status"
// @Router /orders/{id}/status [put]
func (h *OrderHandler) UpdateStatus(c *gin.Context) {
	var in StatusInput
	if err := c.ShouldBindJSON(&in); err != nil {
		response.Error(c, http.StatusBadRequest, response.ErrInvalidParam, err.Error())
		return
	}

	sess, _ := middleware.CurrentSession(c)
	o, err := h.service.AdvanceStatus(c.Request.Context(), sess, c.Param("id"), in.Status)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, o)
}

// Cancel 买家取消订单
// @Summary 取消订单
// @Tags Order
// @Param id path string true "order id"
// @Router /orders/{id}/cancel [post]
func (h *OrderHandler) Cancel(c *gin.Context) {
	sess, _ := middleware.CurrentSession(c)
	o, err := h.service.Cancel(c.Request.Context(), sess, c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, o)
}

func (h *OrderHandler) fail(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrOrderNotFound):
		response.Error(c, http.StatusNotFound, response.ErrOrderNotFound, err.Error())
	case errors.Is(err, service.ErrNoPermission):
		response.Error(c, http.StatusForbidden, response.ErrNoPermission, err.Error())
	case errors.Is(err, service.ErrInvalidStatus):
		response.Error(c, http.StatusConflict, response.ErrOrderStatus, err.Error())
	case errors.Is(err, service.ErrCancelWindow):
		response.Error(c, http.StatusConflict, response.ErrCancelWindow, err.Error())
	default:
		response.Error(c, http.StatusInternalServerError, response.ErrServerInternal, "Internal server error")
	}
}
