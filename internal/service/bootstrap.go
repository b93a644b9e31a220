package service

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"burnmail/backend/internal/domain"
	"burnmail/backend/internal/storage"
)

// AdminCreator 创建管理员账户
type AdminCreator interface {
	CreateAdmin(ctx context.Context, username, password string) (*domain.User, error)
}

// EnsureAdmin 确保配置的管理员账户存在，可重复执行。
// 用户名已存在时直接返回；并发创建导致的用户名冲突同样视为成功。
func EnsureAdmin(ctx context.Context, users storage.UserRepository, creator AdminCreator, username, password string, logger *zap.Logger) error {
	if logger == nil {
		logger = zap.NewNop()
	}
	if username == "" || password == "" {
		logger.Info("未配置管理员账户，跳过初始化")
		return nil
	}

	existing, err := users.GetUserByUsername(ctx, username)
	if err == nil {
		if !existing.IsAdmin() {
			logger.Warn("管理员用户名已被普通用户占用", zap.String("username", username))
		}
		return nil
	}
	if !errors.Is(err, storage.ErrUserNotFound) {
		return fmt.Errorf("lookup admin: %w", err)
	}

	admin, err := creator.CreateAdmin(ctx, username, password)
	if err != nil {
		if errors.Is(err, domain.ErrUsernameExists) {
			return nil
		}
		return fmt.Errorf("create admin: %w", err)
	}

	logger.Info("管理员账户已创建", zap.String("user_id", admin.ID), zap.String("username", admin.Username))
	return nil
}
