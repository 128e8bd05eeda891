package handler

import (
	"errors"
	"net/http"
	"ustp_things/internal/domain/user/service"
	"ustp_things/internal/pkg/middleware"
	"ustp_things/internal/pkg/otp"
	"ustp_things/pkg/response"
	"ustp_things/pkg/utils"

	"github.com/gin-gonic/gin"
)

// UserHandler 用户处理器
type UserHandler struct {
	service service.UserService
}

func NewUserHandler(service service.UserService) *UserHandler {
	return &UserHandler{service: service}
}

type SendOTPInput struct {
	Mobile string `json:"mobile" binding:"required,min=10,max=20"`
}

type LoginInput struct {
	Mobile string `json:"mobile" binding:"required,min=10,max=20"`
	Code   string `json:"code" binding:"required,len=6"`
}

type UpdateProfileInput struct {
	Nickname  string `json:"nickname" binding:"omitempty,max=64"`
	AvatarURL string `json:"avatar_url" binding:"omitempty,url"`
}

type VerificationInput struct {
	Tier        string `json:"tier" binding:"required,oneof=student company"`
	DocumentURL string `json:"document_url" binding:"required,url"`
}

type ReviewInput struct {
	Approve bool   `json:"approve"`
	Note    string `json:"note" binding:"max=255"`
}

// SendOTP 发送验证码
// @Summary 发送登录验证码
// @Tags User
// @Param body body SendOTPInput true "mobile"
// @Router /auth/otp [post]
func (h *UserHandler) SendOTP(c *gin.Context) {
	var input SendOTPInput
	if err := c.ShouldBindJSON(&input); err != nil {
		response.Error(c, http.StatusBadRequest, response.ErrInvalidParam, err.Error())
		return
	}

	if err := h.service.SendOTP(c.Request.Context(), input.Mobile); err != nil {
		if errors.Is(err, otp.ErrTooFrequent) {
			response.Error(c, http.StatusTooManyRequests, response.ErrTooManyRequests, err.Error())
			return
		}
		response.Error(c, http.StatusInternalServerError, response.ErrServerInternal, "Failed to send code")
		return
	}
	response.Success(c, nil)
}

// LoginOrRegister 手机号验证码登录，首次登录自动注册
// @Summary 登录/注册
// @Tags User
// @Param body body LoginInput true "mobile + code"
// @Router /auth/login [post]
func (h *UserHandler) LoginOrRegister(c *gin.Context) {
	var input LoginInput
	if err := c.ShouldBindJSON(&input); err != nil {
		response.Error(c, http.StatusBadRequest, response.ErrInvalidParam, err.Error())
		return
	}

	res, err := h.service.LoginOrRegister(c.Request.Context(), input.Mobile, input.Code)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, res)
}

func (h *UserHandler) GetMe(c *gin.Context) {
	sess, _ := middleware.CurrentSession(c)
	user, err := h.service.GetUser(c.Request.Context(), sess.UserID)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, user)
}

func (h *UserHandler) UpdateMe(c *gin.Context) {
	var input UpdateProfileInput
	if err := c.ShouldBindJSON(&input); err != nil {
		response.Error(c, http.StatusBadRequest, response.ErrInvalidParam, err.Error())
		return
	}

	sess, _ := middleware.CurrentSession(c)
	user, err := h.service.UpdateUser(c.Request.Context(), sess, input.Nickname, input.AvatarURL)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, user)
}

func (h *UserHandler) GetUser(c *gin.Context) {
	user, err := h.service.GetUser(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, user)
}

// GetUsers 管理员查看用户列表
func (h *UserHandler) GetUsers(c *gin.Context) {
	var p utils.Pagination
	_ = c.ShouldBindQuery(&p)

	users, total, err := h.service.GetUsers(c.Request.Context(), p.Page, p.Limit)
	if err != nil {
		h.fail(c, err)
		return
	}
	p.Normalize()
	response.Page(c, users, total, p.Page, p.Limit)
}

func (h *UserHandler) DeleteUser(c *gin.Context) {
	if err := h.service.DeleteUser(c.Request.Context(), c.Param("id")); err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, true)
}

// SubmitVerification 提交学生/企业认证
// @Summary 提交认证申请
// @Tags User
// @Param body body VerificationInput true "tier + document"
// @Router /users/me/verification [post]
func (h *UserHandler) SubmitVerification(c *gin.Context) {
	var input VerificationInput
	if err := c.ShouldBindJSON(&input); err != nil {
		response.Error(c, http.StatusBadRequest, response.ErrInvalidParam, err.Error())
		return
	}

	sess, _ := middleware.CurrentSession(c)
	v, err := h.service.SubmitVerification(c.Request.Context(), sess, input.Tier, input.DocumentURL)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, v)
}

func (h *UserHandler) ListVerifications(c *gin.Context) {
	var p utils.Pagination
	_ = c.ShouldBindQuery(&p)

	list, total, err := h.service.ListVerifications(c.Request.Context(), c.Query("status"), p.Page, p.Limit)
	if err != nil {
		h.fail(c, err)
		return
	}
	p.Normalize()
	response.Page(c, list, total, p.Page, p.Limit)
}

// ReviewVerification 管理员审核认证申请
// @Summary 审核认证
// @Tags Admin
// @Param id path string true "verification id"
// @Param body body ReviewInput true "decision"
// @Router /admin/verifications/{id}/review [put]
func (h *UserHandler) ReviewVerification(c *gin.Context) {
	var input ReviewInput
	if err := c.ShouldBindJSON(&input); err != nil {
		response.Error(c, http.StatusBadRequest, response.ErrInvalidParam, err.Error())
		return
	}

	sess, _ := middleware.CurrentSession(c)
	v, err := h.service.ReviewVerification(c.Request.Context(), sess, c.Param("id"), input.Approve, input.Note)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, v)
}

func (h *UserHandler) fail(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidCode):
		response.Error(c, http.StatusUnauthorized, response.ErrAuthFailed, err.Error())
	case errors.Is(err, service.ErrAccountBanned), errors.Is(err, service.ErrAccountDeleted):
		response.Error(c, http.StatusForbidden, response.ErrAuthFailed, err.Error())
	case errors.Is(err, service.ErrUserNotFound):
		response.Error(c, http.StatusNotFound, response.ErrUserNotFound, err.Error())
	case errors.Is(err, service.ErrInvalidTier):
		response.Error(c, http.StatusBadRequest, response.ErrInvalidParam, err.Error())
	case errors.Is(err, service.ErrVerificationPending):
		response.Error(c, http.StatusConflict, response.ErrVerificationPending, err.Error())
	case errors.Is(err, service.ErrVerificationNotFound):
		response.Error(c, http.StatusNotFound, response.ErrVerificationNotFound, err.Error())
	case errors.Is(err, service.ErrVerificationReviewed):
		response.Error(c, http.StatusConflict, response.ErrVerificationReviewed, err.Error())
	case errors.Is(err, service.ErrNoPermission):
		response.Error(c, http.StatusForbidden, response.ErrNoPermission, err.Error())
	default:
		response.Error(c, http.StatusInternalServerError, response.ErrServerInternal, "Internal server error")
	}
}
