package sql

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"burnmail/backend/internal/domain"
	"burnmail/backend/internal/storage"
)

// CreateEmail 保存邮件，邮箱已被删除时返回 ErrMailboxNotFound
func (s *Store) CreateEmail(ctx context.Context, email *domain.Email) error {
	err := s.db.WithContext(ctx).Create(newEmailRecord(email)).Error
	if errors.Is(err, gorm.ErrForeignKeyViolated) {
		return storage.ErrMailboxNotFound
	}
	return err
}

// ListEmails 列出邮件摘要，最新的在前
func (s *Store) ListEmails(ctx context.Context, mailboxID string) ([]domain.EmailSummary, error) {
	var records []emailRecord
	err := s.db.WithContext(ctx).
		Select("id", "from_address", "subject", "received_at").
		Where("mailbox_id = ?", mailboxID).
		Order("received_at DESC").
		Find(&records).Error
	if err != nil {
		return nil, err
	}

	summaries := make([]domain.EmailSummary, 0, len(records))
	for i := range records {
		summaries = append(summaries, records[i].toDomain().Summary())
	}
	return summaries, nil
}

// GetEmail 获取邮件详情，必须属于指定邮箱
func (s *Store) GetEmail(ctx context.Context, emailID, mailboxID string) (*domain.Email, error) {
	var record emailRecord
	err := s.db.WithContext(ctx).
		Where("id = ? AND mailbox_id = ?", emailID, mailboxID).
		First(&record).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, storage.ErrEmailNotFound
		}
		return nil, err
	}
	return record.toDomain(), nil
}

func (s *Store) CountEmails(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&emailRecord{}).Count(&count).Error
	return count, err
}

// DeleteEmailsReceivedBefore 删除接收时间早于 cutoff 的邮件
func (s *Store) DeleteEmailsReceivedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	result := s.db.WithContext(ctx).Where("received_at < ?", cutoff.UTC()).Delete(&emailRecord{})
	return result.RowsAffected, result.Error
}
