package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/isolexIO/chainlink-pos-sub003/internal/auth"
	"github.com/isolexIO/chainlink-pos-sub003/internal/logger"
	"github.com/isolexIO/chainlink-pos-sub003/internal/logic"
)

// SuccessResponse 成功响应
func SuccessResponse(c *gin.Context, statusCode int, message string, data interface{}) {
	c.JSON(statusCode, Response{
		Success: true,
		Message: message,
		Data:    data,
	})
}

// ErrorResponse 错误响应
func ErrorResponse(c *gin.Context, statusCode int, message string) {
	c.JSON(statusCode, Response{
		Success: false,
		Message: message,
		Data:    nil,
	})
}

// FailureResponse 业务失败响应，附带结果数据
func FailureResponse(c *gin.Context, statusCode int, message string, data interface{}) {
	c.JSON(statusCode, Response{
		Success: false,
		Message: message,
		Data:    data,
	})
}

// statusOf 业务错误到 HTTP 状态码的映射
func statusOf(err error) int {
	switch {
	case errors.Is(err, logic.ErrInvalidInput),
		errors.Is(err, logic.ErrInvalidTransition),
		errors.Is(err, logic.ErrBelowMinimum):
		return http.StatusBadRequest
	case errors.Is(err, logic.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, logic.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, logic.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, logic.ErrBusy):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// HandleError 统一输出业务错误，内部错误只记日志
func HandleError(c *gin.Context, err error) {
	code := statusOf(err)
	if code == http.StatusInternalServerError {
		logger.Error("%s %s failed: %v", c.Request.Method, c.FullPath(), err)
		ErrorResponse(c, code, "internal server error")
		return
	}
	ErrorResponse(c, code, err.Error())
}

// currentActor 取出已认证的操作者，缺失时直接返回 401
func currentActor(c *gin.Context) (auth.Actor, bool) {
	actor, ok := auth.ActorFrom(c)
	if !ok {
		ErrorResponse(c, http.StatusUnauthorized, "authentication required")
		return auth.Actor{}, false
	}
	return actor, true
}
