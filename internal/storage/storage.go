package storage

import (
	"context"
	"errors"
	"time"

	"burnmail/backend/internal/domain"
)

var (
	// ErrUserNotFound 用户不存在
	ErrUserNotFound = errors.New("user not found")
	// ErrUsernameTaken 用户名已被占用
	ErrUsernameTaken = errors.New("username already taken")
	// ErrSessionNotFound 会话不存在或已过期
	ErrSessionNotFound = errors.New("session not found")
	// ErrMailboxNotFound 邮箱不存在
	ErrMailboxNotFound = errors.New("mailbox not found")
	// ErrAddressTaken 邮箱地址已被占用
	ErrAddressTaken = errors.New("mailbox address already taken")
	// ErrEmailNotFound 邮件不存在
	ErrEmailNotFound = errors.New("email not found")
)

// UserRepository 定义用户数据存取操作。
// 授权与唯一性预检查由调用方负责，存储层只保证用户名唯一约束。
type UserRepository interface {
	CreateUser(ctx context.Context, user *domain.User) error
	GetUserByID(ctx context.Context, id string) (*domain.User, error)
	GetUserByUsername(ctx context.Context, username string) (*domain.User, error)
	UpdateUserStatus(ctx context.Context, id string, status domain.UserStatus) error
	UpdateUserPassword(ctx context.Context, id, passwordHash string) error
	UpdateUsername(ctx context.Context, id, username string) error
	DeleteUser(ctx context.Context, id string) error // 级联删除会话、邮箱与邮件
	ListUsers(ctx context.Context, page domain.PageRequest) ([]domain.User, int64, error)
	CountUsers(ctx context.Context) (int64, error)
	CountActiveUsers(ctx context.Context) (int64, error)
	HasAdmin(ctx context.Context) (bool, error)
}

// SessionRepository 定义会话数据存取操作。
type SessionRepository interface {
	CreateSession(ctx context.Context, session *domain.Session) error
	FindValidSession(ctx context.Context, token string, now time.Time) (*domain.Session, error)
	DeleteSession(ctx context.Context, token string) error // 不存在时不报错
	DeleteUserSessions(ctx context.Context, userID string) (int64, error)
	DeleteExpiredSessions(ctx context.Context, now time.Time) (int64, error)
}

// MailboxRepository 定义邮箱数据存取操作。
type MailboxRepository interface {
	CreateMailbox(ctx context.Context, mailbox *domain.Mailbox) error
	GetMailboxByID(ctx context.Context, id string) (*domain.Mailbox, error)
	GetMailboxByAddress(ctx context.Context, address string) (*domain.Mailbox, error)
	GetMailboxByToken(ctx context.Context, token string) (*domain.Mailbox, error)
	ValidateMailboxAccess(ctx context.Context, address, token string) (*domain.Mailbox, error)
	ListUserMailboxes(ctx context.Context, userID string) ([]domain.Mailbox, error)
	CountUserMailboxes(ctx context.Context, userID string, now time.Time) (int64, error) // 仅统计未过期邮箱
	DeleteMailbox(ctx context.Context, id string) error                                  // 级联删除邮件，不存在时不报错
	ListMailboxes(ctx context.Context, page domain.PageRequest) ([]domain.MailboxWithOwner, int64, error)
	CountMailboxes(ctx context.Context) (int64, error)
	DeleteExpiredMailboxes(ctx context.Context, now time.Time) (int64, error) // 只删除已过期且没有邮件的邮箱
}

// EmailRepository 定义邮件数据存取操作。
type EmailRepository interface {
	CreateEmail(ctx context.Context, email *domain.Email) error
	ListEmails(ctx context.Context, mailboxID string) ([]domain.EmailSummary, error) // 按接收时间倒序
	GetEmail(ctx context.Context, emailID, mailboxID string) (*domain.Email, error)
	CountEmails(ctx context.Context) (int64, error)
	DeleteEmailsReceivedBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// Store 聚合所有存储接口
type Store interface {
	UserRepository
	SessionRepository
	MailboxRepository
	EmailRepository

	// Migrate 幂等地创建表结构与索引
	Migrate(ctx context.Context) error
	// Ping 检查存储连通性
	Ping(ctx context.Context) error
	Close() error
}

// RateLimitRepository 固定窗口限流计数
type RateLimitRepository interface {
	// IncrementRateLimit 对 key 在当前窗口内计数加一，返回计数与窗口重置时间
	IncrementRateLimit(ctx context.Context, key string, window time.Duration) (int64, time.Time, error)
}
