package handler

import (
	"errors"
	"net/http"
	"ustp_things/internal/domain/product/model"
	"ustp_things/internal/domain/product/repository"
	"ustp_things/internal/domain/product/service"
	"ustp_things/internal/pkg/middleware"
	"ustp_things/pkg/response"
	"ustp_things/pkg/utils"

	"github.com/gin-gonic/gin"
)

type ProductHandler struct {
	service service.ProductService
}

func NewProductHandler(s service.ProductService) *ProductHandler {
	return &ProductHandler{service: s}
}

// Create 发布商品
// @Summary 发布商品
// @Tags Product
// @Param body body service.CreateInput true "product"
// @Router /products [post]
func (h *ProductHandler) Create(c *gin.Context) {
	var in service.CreateInput
	if err := c.ShouldBindJSON(&in); err != nil {
		response.Error(c, http.StatusBadRequest, response.ErrInvalidParam, err.Error())
		return
	}

	sess, _ := middleware.CurrentSession(c)
	p, err := h.service.Create(c.Request.Context(), sess, in)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, p)
}

func (h *ProductHandler) Get(c *gin.Context) {
	p, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, p)
}

// List 默认只列出在售商品
func (h *ProductHandler) List(c *gin.Context) {
	var p utils.Pagination
	_ = c.ShouldBindQuery(&p)

	f := repository.Filter{
		SellerID: c.Query("seller_id"),
		Status:   c.DefaultQuery("status", model.StatusActive),
		Keyword:  c.Query("q"),
	}
	list, total, err := h.service.List(c.Request.Context(), f, p.Page, p.Limit)
	if err != nil {
		h.fail(c, err)
		return
	}
	p.Normalize()
	response.Page(c, list, total, p.Page, p.Limit)
}

func (h *ProductHandler) Archive(c *gin.Context) {
	sess, _ := middleware.CurrentSession(c)
	if err := h.service.Archive(c.Request.Context(), sess, c.Param("id")); err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, true)
}

func (h *ProductHandler) fail(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrProductNotFound):
		response.Error(c, http.StatusNotFound, response.ErrProductNotFound, err.Error())
	case errors.Is(err, service.ErrInvalidProduct):
		response.Error(c, http.StatusBadRequest, response.ErrInvalidParam, err.Error())
	case errors.Is(err, service.ErrNoPermission):
		response.Error(c, http.StatusForbidden, response.ErrNoPermission, err.Error())
	default:
		response.Error(c, http.StatusInternalServerError, response.ErrServerInternal, "Internal server error")
	}
}
