package domain

import "time"

// Mailbox 表示临时邮箱的业务实体。
// UserID 为空表示匿名邮箱，只能通过 Token 访问。
// Token 只在创建时返回一次，任何列表视图都不输出。
type Mailbox struct {
	ID        string    `json:"id"`
	Address   string    `json:"address"`
	Token     string    `json:"-"`
	UserID    *string   `json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// ExpiredAt 判断邮箱在指定时间是否已过期，expires_at 恰好等于 now 视为过期
func (m *Mailbox) ExpiredAt(now time.Time) bool {
	return !m.ExpiresAt.After(now)
}

// OwnedBy 判断邮箱是否属于指定用户
func (m *Mailbox) OwnedBy(userID string) bool {
	return m.UserID != nil && *m.UserID == userID
}

// MailboxWithOwner 管理后台使用的邮箱视图
type MailboxWithOwner struct {
	Mailbox
	OwnerUsername *string `json:"owner_username"`
}

// CreatedMailbox 创建邮箱后返回给调用方的信息
type CreatedMailbox struct {
	ID        string    `json:"id"`
	Address   string    `json:"address"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
}
