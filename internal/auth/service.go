package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"burnmail/backend/internal/domain"
	"burnmail/backend/internal/security"
	"burnmail/backend/internal/storage"
)

// Options 认证服务配置
type Options struct {
	AllowRegistration bool
	SessionTTL        time.Duration
}

// Service 认证服务：注册、登录、会话校验与凭证修改
type Service struct {
	users    storage.UserRepository
	sessions storage.SessionRepository
	opts     Options
	logger   *zap.Logger
	now      func() time.Time
}

// NewService 创建认证服务
func NewService(users storage.UserRepository, sessions storage.SessionRepository, opts Options, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		users:    users,
		sessions: sessions,
		opts:     opts,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// WithClock 替换时间源，用于测试会话过期
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// AllowRegistration 返回是否开放注册
func (s *Service) AllowRegistration() bool {
	return s.opts.AllowRegistration
}

// LoginResult 登录结果
type LoginResult struct {
	Token     string            `json:"token"`
	User      domain.UserPublic `json:"user"`
	ExpiresAt time.Time         `json:"expiresAt"`
}

// Identity 会话校验通过后的调用方身份
type Identity struct {
	User    *domain.User
	Session *domain.Session
}

// Register 注册普通用户
func (s *Service) Register(ctx context.Context, username, password string) (*domain.UserPublic, error) {
	if !s.opts.AllowRegistration {
		return nil, domain.ErrRegistrationClosed
	}

	username = strings.TrimSpace(username)
	if err := domain.ValidationError(map[string][]string{
		"username": domain.ValidateUsername(username),
		"password": domain.ValidatePassword(password),
	}); err != nil {
		return nil, err
	}

	user, err := s.createUser(ctx, username, password, domain.RoleUser)
	if err != nil {
		return nil, err
	}

	s.logger.Info("用户注册成功", zap.String("user_id", user.ID), zap.String("username", user.Username))
	public := user.Public()
	return &public, nil
}

// createUser 哈希密码并写入用户，用户名冲突返回 CONFLICT
func (s *Service) createUser(ctx context.Context, username, password string, role domain.UserRole) (*domain.User, error) {
	hash, err := security.HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user := &domain.User{
		ID:           uuid.NewString(),
		Username:     username,
		PasswordHash: hash,
		Role:         role,
		Status:       domain.StatusActive,
		CreatedAt:    s.now(),
	}
	if err := s.users.CreateUser(ctx, user); err != nil {
		if errors.Is(err, storage.ErrUsernameTaken) {
			return nil, domain.ErrUsernameExists
		}
		return nil, fmt.Errorf("create user: %w", err)
	}
	return user, nil
}

// Login 校验用户名密码并创建会话。
// 用户不存在与密码错误返回同一错误，避免枚举用户名。
func (s *Service) Login(ctx context.Context, username, password string) (*LoginResult, error) {
	user, err := s.users.GetUserByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			return nil, domain.ErrInvalidCredentials
		}
		return nil, fmt.Errorf("get user: %w", err)
	}

	if !security.VerifyPassword(password, user.PasswordHash) {
		return nil, domain.ErrInvalidCredentials
	}
	if !user.IsActive() {
		return nil, domain.ErrAccountDisabled
	}

	token, err := security.NewToken()
	if err != nil {
		return nil, err
	}

	now := s.now()
	session := &domain.Session{
		ID:        uuid.NewString(),
		UserID:    user.ID,
		Token:     token,
		CreatedAt: now,
		ExpiresAt: now.Add(s.opts.SessionTTL),
	}
	if err := s.sessions.CreateSession(ctx, session); err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}

	s.logger.Info("用户登录", zap.String("user_id", user.ID))
	return &LoginResult{
		Token:     token,
		User:      user.Public(),
		ExpiresAt: session.ExpiresAt,
	}, nil
}

// Logout 删除会话，令牌不存在时同样成功
func (s *Service) Logout(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	if err := s.sessions.DeleteSession(ctx, token); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// ValidateSession 解析会话令牌。
// 令牌不存在、已过期或用户被禁用都返回 ErrSessionInvalid，调用方无法区分。
func (s *Service) ValidateSession(ctx context.Context, token string) (*Identity, error) {
	if token == "" {
		return nil, domain.ErrSessionInvalid
	}

	session, err := s.sessions.FindValidSession(ctx, token, s.now())
	if err != nil {
		if errors.Is(err, storage.ErrSessionNotFound) {
			return nil, domain.ErrSessionInvalid
		}
		return nil, fmt.Errorf("find session: %w", err)
	}

	user, err := s.users.GetUserByID(ctx, session.UserID)
	if err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			return nil, domain.ErrSessionInvalid
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	if !user.IsActive() {
		return nil, domain.ErrSessionInvalid
	}

	return &Identity{User: user, Session: session}, nil
}

// InvalidateAllSessions 立即作废用户的全部会话
func (s *Service) InvalidateAllSessions(ctx context.Context, userID string) (int64, error) {
	n, err := s.sessions.DeleteUserSessions(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("delete user sessions: %w", err)
	}
	if n > 0 {
		s.logger.Info("已作废用户会话", zap.String("user_id", userID), zap.Int64("count", n))
	}
	return n, nil
}

// ChangePassword 校验当前密码后设置新密码
func (s *Service) ChangePassword(ctx context.Context, userID, currentPassword, newPassword string) error {
	fields := map[string][]string{"newPassword": domain.ValidatePassword(newPassword)}
	if currentPassword == "" {
		fields["currentPassword"] = []string{"请输入当前密码"}
	}
	if err := domain.ValidationError(fields); err != nil {
		return err
	}

	user, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			return domain.ErrUserNotFound
		}
		return fmt.Errorf("get user: %w", err)
	}

	if !security.VerifyPassword(currentPassword, user.PasswordHash) {
		return domain.ErrWrongPassword
	}

	hash, err := security.HashPassword(newPassword)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	if err := s.users.UpdateUserPassword(ctx, userID, hash); err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			return domain.ErrUserNotFound
		}
		return fmt.Errorf("update password: %w", err)
	}

	s.logger.Info("用户修改密码", zap.String("user_id", userID))
	return nil
}

// ChangeUsername 修改用户名，新用户名被他人占用时返回 CONFLICT
func (s *Service) ChangeUsername(ctx context.Context, userID, newUsername string) error {
	newUsername = strings.TrimSpace(newUsername)
	if err := domain.ValidationError(map[string][]string{
		"newUsername": domain.ValidateUsername(newUsername),
	}); err != nil {
		return err
	}

	existing, err := s.users.GetUserByUsername(ctx, newUsername)
	switch {
	case err == nil && existing.ID != userID:
		return domain.ErrUsernameExists
	case err == nil:
		return nil
	case !errors.Is(err, storage.ErrUserNotFound):
		return fmt.Errorf("get user: %w", err)
	}

	if err := s.users.UpdateUsername(ctx, userID, newUsername); err != nil {
		switch {
		case errors.Is(err, storage.ErrUsernameTaken):
			return domain.ErrUsernameExists
		case errors.Is(err, storage.ErrUserNotFound):
			return domain.ErrUserNotFound
		}
		return fmt.Errorf("update username: %w", err)
	}

	s.logger.Info("用户修改用户名", zap.String("user_id", userID), zap.String("username", newUsername))
	return nil
}

// CreateAdmin 创建管理员账户，供部署时的初始化流程调用
func (s *Service) CreateAdmin(ctx context.Context, username, password string) (*domain.User, error) {
	return s.createUser(ctx, strings.TrimSpace(username), password, domain.RoleAdmin)
}
