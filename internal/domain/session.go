package domain

import "time"

// Session 登录会话，Token 为不透明的 Bearer 凭证
type Session struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Token     string    `json:"token"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// ValidAt 判断会话在指定时间是否仍有效（严格大于）
func (s *Session) ValidAt(now time.Time) bool {
	return s.ExpiresAt.After(now)
}
