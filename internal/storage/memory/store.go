package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"burnmail/backend/internal/domain"
	"burnmail/backend/internal/storage"
)

// Store 使用内存保存用户、会话、邮箱与邮件数据，主要用于开发验证和测试。
type Store struct {
	mu sync.RWMutex

	users      map[string]*domain.User // userID -> user
	byUsername map[string]string       // username -> userID

	sessions map[string]*domain.Session // token -> session

	mailboxes map[string]*domain.Mailbox // mailboxID -> mailbox
	byAddress map[string]string          // address -> mailboxID
	byToken   map[string]string          // token -> mailboxID

	emails map[string]map[string]*domain.Email // mailboxID -> emailID -> email
}

var _ storage.Store = (*Store)(nil)

// NewStore 创建内存存储
func NewStore() *Store {
	return &Store{
		users:      make(map[string]*domain.User),
		byUsername: make(map[string]string),
		sessions:   make(map[string]*domain.Session),
		mailboxes:  make(map[string]*domain.Mailbox),
		byAddress:  make(map[string]string),
		byToken:    make(map[string]string),
		emails:     make(map[string]map[string]*domain.Email),
	}
}

// Migrate 内存存储无需迁移
func (s *Store) Migrate(context.Context) error { return nil }

// Ping 内存存储始终可用
func (s *Store) Ping(context.Context) error { return nil }

// Close 内存存储无需关闭
func (s *Store) Close() error { return nil }

// ========== User Repository ==========

// CreateUser 创建用户，用户名重复时返回 ErrUsernameTaken
func (s *Store) CreateUser(_ context.Context, user *domain.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.byUsername[user.Username]; exists {
		return storage.ErrUsernameTaken
	}

	copied := *user
	s.users[user.ID] = &copied
	s.byUsername[user.Username] = user.ID
	return nil
}

// GetUserByID 根据 ID 获取用户
func (s *Store) GetUserByID(_ context.Context, id string) (*domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	user, ok := s.users[id]
	if !ok {
		return nil, storage.ErrUserNotFound
	}
	copied := *user
	return &copied, nil
}

// GetUserByUsername 根据用户名获取用户
func (s *Store) GetUserByUsername(_ context.Context, username string) (*domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byUsername[username]
	if !ok {
		return nil, storage.ErrUserNotFound
	}
	copied := *s.users[id]
	return &copied, nil
}

func (s *Store) UpdateUserStatus(_ context.Context, id string, status domain.UserStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.users[id]
	if !ok {
		return storage.ErrUserNotFound
	}
	user.Status = status
	return nil
}

func (s *Store) UpdateUserPassword(_ context.Context, id, passwordHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.users[id]
	if !ok {
		return storage.ErrUserNotFound
	}
	user.PasswordHash = passwordHash
	return nil
}

// UpdateUsername 修改用户名，新用户名被其他用户占用时返回 ErrUsernameTaken
func (s *Store) UpdateUsername(_ context.Context, id, username string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.users[id]
	if !ok {
		return storage.ErrUserNotFound
	}
	if owner, exists := s.byUsername[username]; exists && owner != id {
		return storage.ErrUsernameTaken
	}

	delete(s.byUsername, user.Username)
	user.Username = username
	s.byUsername[username] = id
	return nil
}

// DeleteUser 删除用户及其会话、邮箱和邮件
func (s *Store) DeleteUser(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.users[id]
	if !ok {
		return storage.ErrUserNotFound
	}

	for token, session := range s.sessions {
		if session.UserID == id {
			delete(s.sessions, token)
		}
	}
	for mailboxID, mailbox := range s.mailboxes {
		if mailbox.OwnedBy(id) {
			s.deleteMailboxLocked(mailboxID)
		}
	}

	delete(s.byUsername, user.Username)
	delete(s.users, id)
	return nil
}

// ListUsers 分页列出用户，按创建时间倒序
func (s *Store) ListUsers(_ context.Context, page domain.PageRequest) ([]domain.User, int64, error) {
	s.mu.RLock()
	users := make([]domain.User, 0, len(s.users))
	for _, user := range s.users {
		users = append(users, *user)
	}
	s.mu.RUnlock()

	sort.Slice(users, func(i, j int) bool {
		return users[i].CreatedAt.After(users[j].CreatedAt)
	})
	return paginate(users, page), int64(len(users)), nil
}

func (s *Store) CountUsers(context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.users)), nil
}

func (s *Store) CountActiveUsers(context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var count int64
	for _, user := range s.users {
		if user.IsActive() {
			count++
		}
	}
	return count, nil
}

func (s *Store) HasAdmin(context.Context) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, user := range s.users {
		if user.IsAdmin() {
			return true, nil
		}
	}
	return false, nil
}

// ========== Session Repository ==========

func (s *Store) CreateSession(_ context.Context, session *domain.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	copied := *session
	s.sessions[session.Token] = &copied
	return nil
}

// FindValidSession 查找未过期的会话
func (s *Store) FindValidSession(_ context.Context, token string, now time.Time) (*domain.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	session, ok := s.sessions[token]
	if !ok || !session.ValidAt(now) {
		return nil, storage.ErrSessionNotFound
	}
	copied := *session
	return &copied, nil
}

func (s *Store) DeleteSession(_ context.Context, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.sessions, token)
	return nil
}

func (s *Store) DeleteUserSessions(_ context.Context, userID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var count int64
	for token, session := range s.sessions {
		if session.UserID == userID {
			delete(s.sessions, token)
			count++
		}
	}
	return count, nil
}

// DeleteExpiredSessions 删除 expires_at < now 的会话
func (s *Store) DeleteExpiredSessions(_ context.Context, now time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var count int64
	for token, session := range s.sessions {
		if session.ExpiresAt.Before(now) {
			delete(s.sessions, token)
			count++
		}
	}
	return count, nil
}

// ========== Mailbox Repository ==========

// CreateMailbox 保存邮箱，地址冲突时返回 ErrAddressTaken
func (s *Store) CreateMailbox(_ context.Context, mailbox *domain.Mailbox) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.byAddress[mailbox.Address]; exists {
		return storage.ErrAddressTaken
	}

	copied := *mailbox
	s.mailboxes[mailbox.ID] = &copied
	s.byAddress[mailbox.Address] = mailbox.ID
	s.byToken[mailbox.Token] = mailbox.ID
	return nil
}

func (s *Store) GetMailboxByID(_ context.Context, id string) (*domain.Mailbox, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.mailboxLocked(id)
}

func (s *Store) GetMailboxByAddress(_ context.Context, address string) (*domain.Mailbox, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.mailboxLocked(s.byAddress[address])
}

func (s *Store) GetMailboxByToken(_ context.Context, token string) (*domain.Mailbox, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.mailboxLocked(s.byToken[token])
}

// ValidateMailboxAccess 地址与令牌必须同时匹配
func (s *Store) ValidateMailboxAccess(_ context.Context, address, token string) (*domain.Mailbox, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	mailbox, err := s.mailboxLocked(s.byAddress[address])
	if err != nil {
		return nil, err
	}
	if mailbox.Token != token {
		return nil, storage.ErrMailboxNotFound
	}
	return mailbox, nil
}

// ListUserMailboxes 列出用户名下的全部邮箱，按创建时间倒序
func (s *Store) ListUserMailboxes(_ context.Context, userID string) ([]domain.Mailbox, error) {
	s.mu.RLock()
	result := make([]domain.Mailbox, 0)
	for _, mailbox := range s.mailboxes {
		if mailbox.OwnedBy(userID) {
			result = append(result, *mailbox)
		}
	}
	s.mu.RUnlock()

	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	return result, nil
}

func (s *Store) CountUserMailboxes(_ context.Context, userID string, now time.Time) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var count int64
	for _, mailbox := range s.mailboxes {
		if mailbox.OwnedBy(userID) && !mailbox.ExpiredAt(now) {
			count++
		}
	}
	return count, nil
}

func (s *Store) DeleteMailbox(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.deleteMailboxLocked(id)
	return nil
}

// ListMailboxes 分页列出全部邮箱并附带所有者用户名
func (s *Store) ListMailboxes(_ context.Context, page domain.PageRequest) ([]domain.MailboxWithOwner, int64, error) {
	s.mu.RLock()
	items := make([]domain.MailboxWithOwner, 0, len(s.mailboxes))
	for _, mailbox := range s.mailboxes {
		item := domain.MailboxWithOwner{Mailbox: *mailbox}
		if mailbox.UserID != nil {
			if owner, ok := s.users[*mailbox.UserID]; ok {
				name := owner.Username
				item.OwnerUsername = &name
			}
		}
		items = append(items, item)
	}
	s.mu.RUnlock()

	sort.Slice(items, func(i, j int) bool {
		return items[i].CreatedAt.After(items[j].CreatedAt)
	})
	return paginate(items, page), int64(len(items)), nil
}

func (s *Store) CountMailboxes(context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.mailboxes)), nil
}

// DeleteExpiredMailboxes 删除已过期且没有邮件的邮箱
func (s *Store) DeleteExpiredMailboxes(_ context.Context, now time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var count int64
	for id, mailbox := range s.mailboxes {
		if mailbox.ExpiresAt.Before(now) && len(s.emails[id]) == 0 {
			s.deleteMailboxLocked(id)
			count++
		}
	}
	return count, nil
}

func (s *Store) mailboxLocked(id string) (*domain.Mailbox, error) {
	mailbox, ok := s.mailboxes[id]
	if !ok {
		return nil, storage.ErrMailboxNotFound
	}
	copied := *mailbox
	return &copied, nil
}

func (s *Store) deleteMailboxLocked(id string) {
	mailbox, ok := s.mailboxes[id]
	if !ok {
		return
	}
	delete(s.byAddress, mailbox.Address)
	delete(s.byToken, mailbox.Token)
	delete(s.emails, id)
	delete(s.mailboxes, id)
}

// ========== Email Repository ==========

// CreateEmail 保存邮件，邮箱不存在时返回 ErrMailboxNotFound
func (s *Store) CreateEmail(_ context.Context, email *domain.Email) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.mailboxes[email.MailboxID]; !ok {
		return storage.ErrMailboxNotFound
	}
	if s.emails[email.MailboxID] == nil {
		s.emails[email.MailboxID] = make(map[string]*domain.Email)
	}
	copied := *email
	s.emails[email.MailboxID][email.ID] = &copied
	return nil
}

// ListEmails 列出邮箱内的邮件摘要，最新的在前
func (s *Store) ListEmails(_ context.Context, mailboxID string) ([]domain.EmailSummary, error) {
	s.mu.RLock()
	result := make([]domain.EmailSummary, 0, len(s.emails[mailboxID]))
	for _, email := range s.emails[mailboxID] {
		result = append(result, email.Summary())
	}
	s.mu.RUnlock()

	sort.Slice(result, func(i, j int) bool {
		return result[i].ReceivedAt.After(result[j].ReceivedAt)
	})
	return result, nil
}

// GetEmail 获取邮件详情，限定在指定邮箱内
func (s *Store) GetEmail(_ context.Context, emailID, mailboxID string) (*domain.Email, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	email, ok := s.emails[mailboxID][emailID]
	if !ok {
		return nil, storage.ErrEmailNotFound
	}
	copied := *email
	return &copied, nil
}

func (s *Store) CountEmails(context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var count int64
	for _, emails := range s.emails {
		count += int64(len(emails))
	}
	return count, nil
}

// DeleteEmailsReceivedBefore 删除 received_at < cutoff 的邮件
func (s *Store) DeleteEmailsReceivedBefore(_ context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var count int64
	for mailboxID, emails := range s.emails {
		for id, email := range emails {
			if email.ReceivedAt.Before(cutoff) {
				delete(emails, id)
				count++
			}
		}
		if len(emails) == 0 {
			delete(s.emails, mailboxID)
		}
	}
	return count, nil
}

func paginate[T any](items []T, page domain.PageRequest) []T {
	start := page.Offset()
	if start >= len(items) {
		return []T{}
	}
	end := start + page.PageSize
	if end > len(items) {
		end = len(items)
	}
	return items[start:end]
}
