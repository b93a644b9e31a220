package domain

import "time"

// UserRole 用户角色
type UserRole string

const (
	RoleUser  UserRole = "user"
	RoleAdmin UserRole = "admin"
)

// UserStatus 用户状态
type UserStatus string

const (
	StatusActive   UserStatus = "active"
	StatusDisabled UserStatus = "disabled"
)

// Valid 判断状态值是否合法
func (s UserStatus) Valid() bool {
	return s == StatusActive || s == StatusDisabled
}

// User 表示注册用户的业务实体（包含密码哈希，不直接返回给前端）
type User struct {
	ID           string
	Username     string
	PasswordHash string
	Role         UserRole
	Status       UserStatus
	CreatedAt    time.Time
}

// IsAdmin 判断用户是否为管理员
func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// IsActive 判断用户是否处于启用状态
func (u *User) IsActive() bool {
	return u.Status == StatusActive
}

// Public 返回去除密码哈希后的用户视图
func (u *User) Public() UserPublic {
	return UserPublic{
		ID:        u.ID,
		Username:  u.Username,
		Role:      u.Role,
		Status:    u.Status,
		CreatedAt: u.CreatedAt,
	}
}

// UserPublic 用户公开信息
type UserPublic struct {
	ID        string     `json:"id"`
	Username  string     `json:"username"`
	Role      UserRole   `json:"role"`
	Status    UserStatus `json:"status"`
	CreatedAt time.Time  `json:"created_at"`
}

// UserProfile 当前用户资料
type UserProfile struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	Role         UserRole  `json:"role"`
	CreatedAt    time.Time `json:"created_at"`
	MailboxCount int       `json:"mailboxCount"`
}
