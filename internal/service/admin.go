package service

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"burnmail/backend/internal/domain"
	"burnmail/backend/internal/monitoring"
	"burnmail/backend/internal/storage"
)

// SessionInvalidator 作废用户全部会话
type SessionInvalidator interface {
	InvalidateAllSessions(ctx context.Context, userID string) (int64, error)
}

// AdminService 管理后台业务服务。
// 所有针对用户的操作都禁止作用于操作者自己的账户。
type AdminService struct {
	store    storage.Store
	sessions SessionInvalidator
	metrics  *monitoring.Metrics
	logger   *zap.Logger
}

// NewAdminService 创建管理服务
func NewAdminService(store storage.Store, sessions SessionInvalidator, metrics *monitoring.Metrics, logger *zap.Logger) *AdminService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AdminService{
		store:    store,
		sessions: sessions,
		metrics:  metrics,
		logger:   logger,
	}
}

// Stats 并发读取四项统计数据
func (s *AdminService) Stats(ctx context.Context) (*domain.SystemStats, error) {
	var stats domain.SystemStats
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() (err error) {
		stats.TotalUsers, err = s.store.CountUsers(gctx)
		return err
	})
	g.Go(func() (err error) {
		stats.ActiveUsers, err = s.store.CountActiveUsers(gctx)
		return err
	})
	g.Go(func() (err error) {
		stats.TotalMailboxes, err = s.store.CountMailboxes(gctx)
		return err
	})
	g.Go(func() (err error) {
		stats.TotalEmails, err = s.store.CountEmails(gctx)
		return err
	})

	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("collect stats: %w", err)
	}
	return &stats, nil
}

// ListUsers 分页列出用户
func (s *AdminService) ListUsers(ctx context.Context, page domain.PageRequest) (domain.Paginated[domain.UserPublic], error) {
	page = page.Normalize()
	users, total, err := s.store.ListUsers(ctx, page)
	if err != nil {
		return domain.Paginated[domain.UserPublic]{}, fmt.Errorf("list users: %w", err)
	}

	items := make([]domain.UserPublic, 0, len(users))
	for i := range users {
		items = append(items, users[i].Public())
	}
	return domain.NewPaginated(items, total, page), nil
}

// SetUserStatus 启用或禁用用户，禁用时立即作废其全部会话
func (s *AdminService) SetUserStatus(ctx context.Context, actorID, userID string, status domain.UserStatus) error {
	if actorID == userID {
		return domain.ErrCannotModifySelf
	}
	if !status.Valid() {
		return domain.ErrInvalidStatus
	}

	if err := s.store.UpdateUserStatus(ctx, userID, status); err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			return domain.ErrUserNotFound
		}
		return fmt.Errorf("update user status: %w", err)
	}

	if status == domain.StatusDisabled {
		if _, err := s.sessions.InvalidateAllSessions(ctx, userID); err != nil {
			return err
		}
	}

	s.logger.Info("管理员修改用户状态",
		zap.String("admin_id", actorID),
		zap.String("user_id", userID),
		zap.String("status", string(status)),
	)
	return nil
}

// DeleteUser 删除用户及其会话、邮箱和邮件
func (s *AdminService) DeleteUser(ctx context.Context, actorID, userID string) error {
	if actorID == userID {
		return domain.ErrCannotModifySelf
	}

	if err := s.store.DeleteUser(ctx, userID); err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			return domain.ErrUserNotFound
		}
		return fmt.Errorf("delete user: %w", err)
	}

	s.logger.Info("管理员删除用户", zap.String("admin_id", actorID), zap.String("user_id", userID))
	return nil
}

// ListMailboxes 分页列出全部邮箱及其所有者用户名
func (s *AdminService) ListMailboxes(ctx context.Context, page domain.PageRequest) (domain.Paginated[domain.MailboxWithOwner], error) {
	page = page.Normalize()
	mailboxes, total, err := s.store.ListMailboxes(ctx, page)
	if err != nil {
		return domain.Paginated[domain.MailboxWithOwner]{}, fmt.Errorf("list mailboxes: %w", err)
	}
	return domain.NewPaginated(mailboxes, total, page), nil
}

// DeleteMailbox 删除任意邮箱
func (s *AdminService) DeleteMailbox(ctx context.Context, actorID, mailboxID string) error {
	if _, err := s.store.GetMailboxByID(ctx, mailboxID); err != nil {
		if errors.Is(err, storage.ErrMailboxNotFound) {
			return domain.ErrMailboxNotFound
		}
		return fmt.Errorf("get mailbox: %w", err)
	}

	if err := s.store.DeleteMailbox(ctx, mailboxID); err != nil {
		return fmt.Errorf("delete mailbox: %w", err)
	}

	s.metrics.RecordMailboxDeleted()
	s.logger.Info("管理员删除邮箱", zap.String("admin_id", actorID), zap.String("mailbox_id", mailboxID))
	return nil
}
