package sql

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"burnmail/backend/internal/domain"
	"burnmail/backend/internal/storage"
)

// CreateUser 创建用户，用户名冲突时返回 ErrUsernameTaken
func (s *Store) CreateUser(ctx context.Context, user *domain.User) error {
	err := s.db.WithContext(ctx).Create(newUserRecord(user)).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return storage.ErrUsernameTaken
	}
	return err
}

// GetUserByID 根据 ID 获取用户
func (s *Store) GetUserByID(ctx context.Context, id string) (*domain.User, error) {
	return s.findUser(ctx, "id = ?", id)
}

// GetUserByUsername 根据用户名获取用户
func (s *Store) GetUserByUsername(ctx context.Context, username string) (*domain.User, error) {
	return s.findUser(ctx, "username = ?", username)
}

func (s *Store) findUser(ctx context.Context, query string, arg any) (*domain.User, error) {
	var record userRecord
	err := s.db.WithContext(ctx).Where(query, arg).First(&record).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, storage.ErrUserNotFound
		}
		return nil, err
	}
	return record.toDomain(), nil
}

func (s *Store) UpdateUserStatus(ctx context.Context, id string, status domain.UserStatus) error {
	return s.updateUser(ctx, id, "status", string(status))
}

func (s *Store) UpdateUserPassword(ctx context.Context, id, passwordHash string) error {
	return s.updateUser(ctx, id, "password_hash", passwordHash)
}

// UpdateUsername 修改用户名，新用户名被占用时返回 ErrUsernameTaken
func (s *Store) UpdateUsername(ctx context.Context, id, username string) error {
	err := s.updateUser(ctx, id, "username", username)
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return storage.ErrUsernameTaken
	}
	return err
}

func (s *Store) updateUser(ctx context.Context, id, column string, value any) error {
	result := s.db.WithContext(ctx).Model(&userRecord{}).Where("id = ?", id).Update(column, value)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return storage.ErrUserNotFound
	}
	return nil
}

// DeleteUser 删除用户，并在同一事务内删除其会话、邮箱与邮件
func (s *Store) DeleteUser(ctx context.Context, id string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("user_id = ?", id).Delete(&sessionRecord{}).Error; err != nil {
			return err
		}

		owned := tx.Model(&mailboxRecord{}).Select("id").Where("user_id = ?", id)
		if err := tx.Where("mailbox_id IN (?)", owned).Delete(&emailRecord{}).Error; err != nil {
			return err
		}
		if err := tx.Where("user_id = ?", id).Delete(&mailboxRecord{}).Error; err != nil {
			return err
		}

		result := tx.Where("id = ?", id).Delete(&userRecord{})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return storage.ErrUserNotFound
		}
		return nil
	})
}

// ListUsers 分页列出用户，按创建时间倒序
func (s *Store) ListUsers(ctx context.Context, page domain.PageRequest) ([]domain.User, int64, error) {
	db := s.db.WithContext(ctx)

	var total int64
	if err := db.Model(&userRecord{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var records []userRecord
	err := db.Order("created_at DESC").Offset(page.Offset()).Limit(page.PageSize).Find(&records).Error
	if err != nil {
		return nil, 0, err
	}

	users := make([]domain.User, 0, len(records))
	for i := range records {
		users = append(users, *records[i].toDomain())
	}
	return users, total, nil
}

func (s *Store) CountUsers(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&userRecord{}).Count(&count).Error
	return count, err
}

func (s *Store) CountActiveUsers(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&userRecord{}).
		Where("status = ?", string(domain.StatusActive)).
		Count(&count).Error
	return count, err
}

func (s *Store) HasAdmin(ctx context.Context) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&userRecord{}).
		Where("role = ?", string(domain.RoleAdmin)).
		Count(&count).Error
	return count > 0, err
}
