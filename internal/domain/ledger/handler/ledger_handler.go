package handler

import (
	"errors"
	"net/http"
	"time"
	"ustp_things/internal/domain/ledger/repository"
	"ustp_things/internal/domain/ledger/service"
	"ustp_things/internal/pkg/middleware"
	"ustp_things/pkg/response"
	"ustp_things/pkg/utils"

	"github.com/gin-gonic/gin"
)

type LedgerHandler struct {
	service service.LedgerService
}

func NewLedgerHandler(s service.LedgerService) *LedgerHandler {
	return &LedgerHandler{service: s}
}

type StatusInput struct {
	Status string `json:"status" binding:"required,oneof=failed cancelled refunded"`
}

// 日期参数 YYYY-MM-DD，to 包含当天
func parseFilter(c *gin.Context) (repository.Filter, error) {
	f := repository.Filter{
		Status:   c.Query("status"),
		BuyerID:  c.Query("buyer_id"),
		SellerID: c.Query("seller_id"),
	}
	if v := c.Query("from"); v != "" {
		t, err := time.Parse("2006-01-02", v)
		if err != nil {
			return f, err
		}
		f.From = &t
	}
	if v := c.Query("to"); v != "" {
		t, err := time.Parse("2006-01-02", v)
		if err != nil {
			return f, err
		}
		t = t.Add(24*time.Hour - time.Nanosecond)
		f.To = &t
	}
	return f, nil
}

// List 交易流水列表
// @Summary 交易流水
// @Tags Admin
// @Param status query string false "completed|failed|cancelled|refunded"
// @Param from query string false "YYYY-MM-DD"
// @Param to query string false "YYYY-MM-DD"
// @Router /admin/transactions [get]
func (h *LedgerHandler) List(c *gin.Context) {
	var p utils.Pagination
	_ = c.ShouldBindQuery(&p)

	f, err := parseFilter(c)
	if err != nil {
		response.Error(c, http.StatusBadRequest, response.ErrInvalidParam, "invalid date")
		return
	}

	list, total, err := h.service.List(c.Request.Context(), f, p.Page, p.Limit)
	if err != nil {
		h.fail(c, err)
		return
	}
	p.Normalize()
	response.Page(c, list, total, p.Page, p.Limit)
}

// UpdateStatus 退款 / 作废
// @Summary 修改流水状态
// @Tags Admin
// @Param id path string true "transaction id"
// @Param body body StatusInput true "status"
// @Router /admin/transactions/{id}/status [put]
func (h *LedgerHandler) UpdateStatus(c *gin.Context) {
	var in StatusInput
	if err := c.ShouldBindJSON(&in); err != nil {
		response.Error(c, http.StatusBadRequest, response.ErrInvalidParam, err.Error())
		return
	}

	sess, _ := middleware.CurrentSession(c)
	rec, err := h.service.UpdateStatus(c.Request.Context(), sess, c.Param("id"), in.Status)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, rec)
}

// Summary 平台收入汇总
// @Summary 收入汇总
// @Tags Admin
// @Router /admin/revenue/summary [get]
func (h *LedgerHandler) Summary(c *gin.Context) {
	f, err := parseFilter(c)
	if err != nil {
		response.Error(c, http.StatusBadRequest, response.ErrInvalidParam, "invalid date")
		return
	}

	sum, err := h.service.Summary(c.Request.Context(), f)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, sum)
}

func (h *LedgerHandler) fail(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrTransactionNotFound):
		response.Error(c, http.StatusNotFound, response.ErrTransactionNotFound, err.Error())
	case errors.Is(err, service.ErrNoPermission):
		response.Error(c, http.StatusForbidden, response.ErrNoPermission, err.Error())
	case errors.Is(err, service.ErrInvalidStatus):
		response.Error(c, http.StatusConflict, response.ErrTransactionStatus, err.Error())
	default:
		response.Error(c, http.StatusInternalServerError, response.ErrServerInternal, "Internal server error")
	}
}
