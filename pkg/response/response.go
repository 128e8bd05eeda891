package response

import (
	"net/http"
	"ustp_things/pkg/utils"

	"github.com/gin-gonic/gin"
)

// Response 统一响应结构
type Response struct {
	Code    int         `json:"code"`    // 业务码
	Message string      `json:"message"` // 提示信息
	Data    interface{} `json:"data"`    // 数据
}

// Success 成功响应
func Success(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Response{
		Code:    CodeSuccess,
		Message: "success",
		Data:    data,
	})
}

// Error 错误响应
func Error(c *gin.Context, httpCode int, errCode int, msg string) {
	c.JSON(httpCode, Response{
		Code:    errCode,
		Message: msg,
		Data:    nil,
	})
}

// Fail 业务失败响应 (HTTP 200, 业务码非 0)，data 可携带失败页面所需信息
func Fail(c *gin.Context, errCode int, msg string, data ...interface{}) {
	var payload interface{}
	if len(data) > 0 {
		payload = data[0]
	}
	c.JSON(http.StatusOK, Response{
		Code:    errCode,
		Message: msg,
		Data:    payload,
	})
}

// Page 分页响应，page/limit 需已经过 Pagination.Normalize
func Page(c *gin.Context, list interface{}, total int64, page, limit int) {
	Success(c, gin.H{
		"list":  list,
		"total": total,
		"page":  page,
		"limit": limit,
		"pages": utils.TotalPages(total, limit),
	})
}
