package domain

import (
	"regexp"
	"unicode/utf8"
)

// 验证常量
const (
	MinUsernameLength = 3
	MaxUsernameLength = 20
	MinPasswordLength = 8
)

var (
	usernameRegex = regexp.MustCompile(`^[A-Za-z0-9_]+$`)
	letterRegex   = regexp.MustCompile(`[A-Za-z]`)
	digitRegex    = regexp.MustCompile(`[0-9]`)
)

// ValidateUsername 校验用户名，返回全部错误信息
func ValidateUsername(username string) []string {
	var errs []string
	n := utf8.RuneCountInString(username)
	if n < MinUsernameLength || n > MaxUsernameLength {
		errs = append(errs, "用户名长度必须在3-20个字符之间")
	}
	if username != "" && !usernameRegex.MatchString(username) {
		errs = append(errs, "用户名只能包含字母、数字和下划线")
	}
	return errs
}

// ValidatePassword 校验密码强度：至少8位，且同时包含字母和数字
func ValidatePassword(password string) []string {
	var errs []string
	if utf8.RuneCountInString(password) < MinPasswordLength {
		errs = append(errs, "密码长度至少为8个字符")
	}
	if !letterRegex.MatchString(password) {
		errs = append(errs, "密码必须包含至少一个字母")
	}
	if !digitRegex.MatchString(password) {
		errs = append(errs, "密码必须包含至少一个数字")
	}
	return errs
}

// ValidationError 将字段错误汇总为 BAD_REQUEST，没有错误时返回 nil
func ValidationError(fields map[string][]string) error {
	details := make(map[string][]string)
	for field, msgs := range fields {
		if len(msgs) > 0 {
			details[field] = msgs
		}
	}
	if len(details) == 0 {
		return nil
	}
	return BadRequest("输入验证失败", details)
}
