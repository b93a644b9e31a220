package sql

import (
	"time"

	"burnmail/backend/internal/domain"
)

// userRecord 对应 users 表
type userRecord struct {
	ID           string    `gorm:"primaryKey;type:varchar(36)"`
	Username     string    `gorm:"type:varchar(64);uniqueIndex;not null"`
	PasswordHash string    `gorm:"type:varchar(255);not null"`
	Role         string    `gorm:"type:varchar(20);not null;default:'user';index"`
	Status       string    `gorm:"type:varchar(20);not null;default:'active'"`
	CreatedAt    time.Time `gorm:"not null;index"`
}

func (userRecord) TableName() string { return "users" }

// sessionRecord 对应 sessions 表，随用户级联删除
type sessionRecord struct {
	ID        string      `gorm:"primaryKey;type:varchar(36)"`
	UserID    string      `gorm:"type:varchar(36);not null;index"`
	Token     string      `gorm:"type:varchar(64);uniqueIndex;not null"`
	CreatedAt time.Time   `gorm:"not null"`
	ExpiresAt time.Time   `gorm:"not null;index"`
	User      *userRecord `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE"`
}

func (sessionRecord) TableName() string { return "sessions" }

// mailboxRecord 对应 mailboxes 表，user_id 为空表示匿名邮箱
type mailboxRecord struct {
	ID        string      `gorm:"primaryKey;type:varchar(36)"`
	Address   string      `gorm:"type:varchar(255);uniqueIndex;not null"`
	Token     string      `gorm:"type:varchar(64);uniqueIndex;not null"`
	UserID    *string     `gorm:"type:varchar(36);index"`
	CreatedAt time.Time   `gorm:"not null"`
	ExpiresAt time.Time   `gorm:"not null;index"`
	Owner     *userRecord `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE"`
}

func (mailboxRecord) TableName() string { return "mailboxes" }

// emailRecord 对应 emails 表，随邮箱级联删除
type emailRecord struct {
	ID          string  `gorm:"primaryKey;type:varchar(36)"`
	MailboxID   string  `gorm:"type:varchar(36);not null;index"`
	FromAddress string  `gorm:"type:varchar(320);not null"`
	ToAddress   string  `gorm:"type:varchar(320);not null"`
	Subject     *string `gorm:"type:text"`
	Body        *string
	ReceivedAt  time.Time      `gorm:"not null;index"`
	Mailbox     *mailboxRecord `gorm:"foreignKey:MailboxID;constraint:OnDelete:CASCADE"`
}

func (emailRecord) TableName() string { return "emails" }

// mailboxOwnerRow 管理后台邮箱列表的联表查询结果
type mailboxOwnerRow struct {
	ID            string
	Address       string
	Token         string
	UserID        *string
	CreatedAt     time.Time
	ExpiresAt     time.Time
	OwnerUsername *string
}

func newUserRecord(u *domain.User) *userRecord {
	return &userRecord{
		ID:           u.ID,
		Username:     u.Username,
		PasswordHash: u.PasswordHash,
		Role:         string(u.Role),
		Status:       string(u.Status),
		CreatedAt:    u.CreatedAt.UTC(),
	}
}

func (r *userRecord) toDomain() *domain.User {
	return &domain.User{
		ID:           r.ID,
		Username:     r.Username,
		PasswordHash: r.PasswordHash,
		Role:         domain.UserRole(r.Role),
		Status:       domain.UserStatus(r.Status),
		CreatedAt:    r.CreatedAt.UTC(),
	}
}

func newSessionRecord(s *domain.Session) *sessionRecord {
	return &sessionRecord{
		ID:        s.ID,
		UserID:    s.UserID,
		Token:     s.Token,
		CreatedAt: s.CreatedAt.UTC(),
		ExpiresAt: s.ExpiresAt.UTC(),
	}
}

func (r *sessionRecord) toDomain() *domain.Session {
	return &domain.Session{
		ID:        r.ID,
		UserID:    r.UserID,
		Token:     r.Token,
		CreatedAt: r.CreatedAt.UTC(),
		ExpiresAt: r.ExpiresAt.UTC(),
	}
}

func newMailboxRecord(m *domain.Mailbox) *mailboxRecord {
	return &mailboxRecord{
		ID:        m.ID,
		Address:   m.Address,
		Token:     m.Token,
		UserID:    m.UserID,
		CreatedAt: m.CreatedAt.UTC(),
		ExpiresAt: m.ExpiresAt.UTC(),
	}
}

func (r *mailboxRecord) toDomain() *domain.Mailbox {
	return &domain.Mailbox{
		ID:        r.ID,
		Address:   r.Address,
		Token:     r.Token,
		UserID:    r.UserID,
		CreatedAt: r.CreatedAt.UTC(),
		ExpiresAt: r.ExpiresAt.UTC(),
	}
}

func (r *mailboxOwnerRow) toDomain() domain.MailboxWithOwner {
	mailbox := mailboxRecord{
		ID:        r.ID,
		Address:   r.Address,
		Token:     r.Token,
		UserID:    r.UserID,
		CreatedAt: r.CreatedAt,
		ExpiresAt: r.ExpiresAt,
	}
	return domain.MailboxWithOwner{
		Mailbox:       *mailbox.toDomain(),
		OwnerUsername: r.OwnerUsername,
	}
}

func newEmailRecord(e *domain.Email) *emailRecord {
	return &emailRecord{
		ID:          e.ID,
		MailboxID:   e.MailboxID,
		FromAddress: e.FromAddress,
		ToAddress:   e.ToAddress,
		Subject:     e.Subject,
		Body:        e.Body,
		ReceivedAt:  e.ReceivedAt.UTC(),
	}
}

func (r *emailRecord) toDomain() *domain.Email {
	return &domain.Email{
		ID:          r.ID,
		MailboxID:   r.MailboxID,
		FromAddress: r.FromAddress,
		ToAddress:   r.ToAddress,
		Subject:     r.Subject,
		Body:        r.Body,
		ReceivedAt:  r.ReceivedAt.UTC(),
	}
}
