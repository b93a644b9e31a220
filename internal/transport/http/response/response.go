package response

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"burnmail/backend/internal/domain"
)

// Envelope 统一响应结构
type Envelope struct {
	Success bool       `json:"success"`
	Data    any        `json:"data,omitempty"`
	Error   *ErrorBody `json:"error,omitempty"`
}

// ErrorBody 错误信息，Message 可直接展示给用户
type ErrorBody struct {
	Code    domain.ErrorCode    `json:"code"`
	Message string              `json:"message"`
	Details map[string][]string `json:"details,omitempty"`
}

// 通用错误消息
const (
	MsgInvalidJSON    = "请求参数格式错误"
	MsgNotFound       = "请求的资源不存在"
	MsgRateLimited    = "请求过于频繁，请稍后再试"
	MsgInternalError  = "服务器内部错误，请稍后重试"
	MsgInvalidPageArg = "分页参数必须为整数"
)

// statusByCode 错误码到 HTTP 状态码的映射
var statusByCode = map[domain.ErrorCode]int{
	domain.CodeBadRequest:    http.StatusBadRequest,
	domain.CodeUnauthorized:  http.StatusUnauthorized,
	domain.CodeForbidden:     http.StatusForbidden,
	domain.CodeNotFound:      http.StatusNotFound,
	domain.CodeConflict:      http.StatusConflict,
	domain.CodeLimitExceeded: http.StatusTooManyRequests,
	domain.CodeRateLimited:   http.StatusTooManyRequests,
	domain.CodeInternal:      http.StatusInternalServerError,
}

// StatusOf 返回错误码对应的 HTTP 状态码
func StatusOf(code domain.ErrorCode) int {
	if status, ok := statusByCode[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// Success 成功响应（200）
func Success(c *gin.Context, data any) {
	c.JSON(http.StatusOK, Envelope{Success: true, Data: data})
}

// Created 创建成功响应（201）
func Created(c *gin.Context, data any) {
	c.JSON(http.StatusCreated, Envelope{Success: true, Data: data})
}

// OK 无数据的成功响应，data 为空对象
func OK(c *gin.Context) {
	Success(c, gin.H{})
}

// Error 将错误写为统一错误响应。
// 业务错误原样返回给调用方；其他错误记录日志后只返回通用消息。
func Error(c *gin.Context, err error, log *zap.Logger) {
	status, body := render(c, err, log)
	c.JSON(status, Envelope{Success: false, Error: body})
}

// Abort 写入错误响应并终止后续处理，供中间件使用
func Abort(c *gin.Context, err error, log *zap.Logger) {
	status, body := render(c, err, log)
	c.AbortWithStatusJSON(status, Envelope{Success: false, Error: body})
}

func render(c *gin.Context, err error, log *zap.Logger) (int, *ErrorBody) {
	var appErr *domain.AppError
	if errors.As(err, &appErr) {
		return StatusOf(appErr.Code), &ErrorBody{
			Code:    appErr.Code,
			Message: appErr.Message,
			Details: appErr.Details,
		}
	}

	if log != nil {
		log.Error("请求处理失败",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Error(err),
		)
	}
	_ = c.Error(err)
	return http.StatusInternalServerError, &ErrorBody{
		Code:    domain.CodeInternal,
		Message: MsgInternalError,
	}
}
