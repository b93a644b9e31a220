package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"burnmail/backend/internal/domain"
	"burnmail/backend/internal/storage"
)

// UserService 当前用户资料
type UserService struct {
	users     storage.UserRepository
	mailboxes storage.MailboxRepository
	now       func() time.Time
}

// NewUserService 创建用户服务
func NewUserService(users storage.UserRepository, mailboxes storage.MailboxRepository) *UserService {
	return &UserService{
		users:     users,
		mailboxes: mailboxes,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Profile 返回用户资料，mailboxCount 只统计未过期的邮箱
func (s *UserService) Profile(ctx context.Context, userID string) (*domain.UserProfile, error) {
	user, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			return nil, domain.ErrUserNotFound
		}
		return nil, fmt.Errorf("get user: %w", err)
	}

	count, err := s.mailboxes.CountUserMailboxes(ctx, userID, s.now())
	if err != nil {
		return nil, fmt.Errorf("count mailboxes: %w", err)
	}

	return &domain.UserProfile{
		ID:           user.ID,
		Username:     user.Username,
		Role:         user.Role,
		CreatedAt:    user.CreatedAt,
		MailboxCount: int(count),
	}, nil
}
