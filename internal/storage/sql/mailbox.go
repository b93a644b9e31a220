package sql

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"burnmail/backend/internal/domain"
	"burnmail/backend/internal/storage"
)

// CreateMailbox 保存邮箱，地址冲突时返回 ErrAddressTaken
func (s *Store) CreateMailbox(ctx context.Context, mailbox *domain.Mailbox) error {
	err := s.db.WithContext(ctx).Create(newMailboxRecord(mailbox)).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return storage.ErrAddressTaken
	}
	return err
}

func (s *Store) GetMailboxByID(ctx context.Context, id string) (*domain.Mailbox, error) {
	return s.findMailbox(ctx, "id = ?", id)
}

func (s *Store) GetMailboxByAddress(ctx context.Context, address string) (*domain.Mailbox, error) {
	return s.findMailbox(ctx, "address = ?", address)
}

func (s *Store) GetMailboxByToken(ctx context.Context, token string) (*domain.Mailbox, error) {
	return s.findMailbox(ctx, "token = ?", token)
}

// ValidateMailboxAccess 地址与令牌必须同时匹配
func (s *Store) ValidateMailboxAccess(ctx context.Context, address, token string) (*domain.Mailbox, error) {
	return s.findMailbox(ctx, "address = ? AND token = ?", address, token)
}

func (s *Store) findMailbox(ctx context.Context, query string, args ...any) (*domain.Mailbox, error) {
	var record mailboxRecord
	err := s.db.WithContext(ctx).Where(query, args...).First(&record).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, storage.ErrMailboxNotFound
		}
		return nil, err
	}
	return record.toDomain(), nil
}

// ListUserMailboxes 列出用户名下的全部邮箱，按创建时间倒序
func (s *Store) ListUserMailboxes(ctx context.Context, userID string) ([]domain.Mailbox, error) {
	var records []mailboxRecord
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&records).Error
	if err != nil {
		return nil, err
	}

	mailboxes := make([]domain.Mailbox, 0, len(records))
	for i := range records {
		mailboxes = append(mailboxes, *records[i].toDomain())
	}
	return mailboxes, nil
}

// CountUserMailboxes 统计用户名下未过期的邮箱数量
func (s *Store) CountUserMailboxes(ctx context.Context, userID string, now time.Time) (int64, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&mailboxRecord{}).
		Where("user_id = ? AND expires_at > ?", userID, now.UTC()).
		Count(&count).Error
	return count, err
}

// DeleteMailbox 删除邮箱及其邮件，邮箱不存在时不报错
func (s *Store) DeleteMailbox(ctx context.Context, id string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("mailbox_id = ?", id).Delete(&emailRecord{}).Error; err != nil {
			return err
		}
		return tx.Where("id = ?", id).Delete(&mailboxRecord{}).Error
	})
}

// ListMailboxes 分页列出全部邮箱，左连接用户表获取所有者用户名
func (s *Store) ListMailboxes(ctx context.Context, page domain.PageRequest) ([]domain.MailboxWithOwner, int64, error) {
	db := s.db.WithContext(ctx)

	var total int64
	if err := db.Model(&mailboxRecord{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var rows []mailboxOwnerRow
	err := db.Table("mailboxes").
		Select("mailboxes.id, mailboxes.address, mailboxes.token, mailboxes.user_id, " +
			"mailboxes.created_at, mailboxes.expires_at, users.username AS owner_username").
		Joins("LEFT JOIN users ON users.id = mailboxes.user_id").
		Order("mailboxes.created_at DESC").
		Offset(page.Offset()).
		Limit(page.PageSize).
		Scan(&rows).Error
	if err != nil {
		return nil, 0, err
	}

	items := make([]domain.MailboxWithOwner, 0, len(rows))
	for i := range rows {
		items = append(items, rows[i].toDomain())
	}
	return items, total, nil
}

func (s *Store) CountMailboxes(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&mailboxRecord{}).Count(&count).Error
	return count, err
}

// DeleteExpiredMailboxes 删除已过期且没有任何邮件的邮箱
func (s *Store) DeleteExpiredMailboxes(ctx context.Context, now time.Time) (int64, error) {
	db := s.db.WithContext(ctx)
	withMail := db.Model(&emailRecord{}).Distinct("mailbox_id")

	result := db.Where("expires_at < ? AND id NOT IN (?)", now.UTC(), withMail).Delete(&mailboxRecord{})
	return result.RowsAffected, result.Error
}
