package domain

import (
	"errors"
	"fmt"
)

// ErrorCode 对外暴露的稳定错误码
type ErrorCode string

const (
	CodeBadRequest    ErrorCode = "BAD_REQUEST"
	CodeUnauthorized  ErrorCode = "UNAUTHORIZED"
	CodeForbidden     ErrorCode = "FORBIDDEN"
	CodeNotFound      ErrorCode = "NOT_FOUND"
	CodeConflict      ErrorCode = "CONFLICT"
	CodeLimitExceeded ErrorCode = "LIMIT_EXCEEDED"
	CodeRateLimited   ErrorCode = "RATE_LIMITED"
	CodeInternal      ErrorCode = "INTERNAL_ERROR"
)

// AppError 业务错误，Message 可直接展示给用户
type AppError struct {
	Code    ErrorCode
	Message string
	Details map[string][]string
}

func (e *AppError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Is 按错误码比较，便于 errors.Is 匹配预定义错误
func (e *AppError) Is(target error) bool {
	var t *AppError
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code && t.Message == e.Message
}

// NewError 创建业务错误
func NewError(code ErrorCode, message string) *AppError {
	return &AppError{Code: code, Message: message}
}

// BadRequest 参数错误，details 为字段级错误信息
func BadRequest(message string, details map[string][]string) *AppError {
	return &AppError{Code: CodeBadRequest, Message: message, Details: details}
}

func Unauthorized(message string) *AppError  { return NewError(CodeUnauthorized, message) }
func Forbidden(message string) *AppError     { return NewError(CodeForbidden, message) }
func NotFound(message string) *AppError      { return NewError(CodeNotFound, message) }
func Conflict(message string) *AppError      { return NewError(CodeConflict, message) }
func LimitExceeded(message string) *AppError { return NewError(CodeLimitExceeded, message) }

// CodeOf 返回错误对应的错误码，非业务错误统一视为 INTERNAL_ERROR
func CodeOf(err error) ErrorCode {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return CodeInternal
}

// 常用业务错误
var (
	ErrInvalidCredentials  = Unauthorized("用户名或密码错误")
	ErrAccountDisabled     = Forbidden("账户已被禁用")
	ErrRegistrationClosed  = Forbidden("注册功能已关闭")
	ErrUsernameExists      = Conflict("用户名已存在")
	ErrLoginRequired       = Unauthorized("请先登录")
	ErrSessionInvalid      = Unauthorized("会话无效或已过期")
	ErrAdminRequired       = Forbidden("需要管理员权限")
	ErrUserNotFound        = NotFound("用户不存在")
	ErrMailboxNotFound     = NotFound("邮箱不存在")
	ErrEmailNotFound       = NotFound("邮件不存在")
	ErrMailboxForbidden    = Forbidden("无权访问此邮箱")
	ErrMailboxTokenInvalid = Unauthorized("邮箱令牌无效")
	ErrMailboxLimit        = LimitExceeded("邮箱数量已达上限")
	ErrWrongPassword       = Unauthorized("当前密码错误")
	ErrCannotModifySelf    = Forbidden("不能对自己的账户执行此操作")
	ErrInvalidStatus       = BadRequest("无效的用户状态", nil)
)
