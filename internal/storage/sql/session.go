package sql

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"burnmail/backend/internal/domain"
	"burnmail/backend/internal/storage"
)

func (s *Store) CreateSession(ctx context.Context, session *domain.Session) error {
	return s.db.WithContext(ctx).Create(newSessionRecord(session)).Error
}

// FindValidSession 查找 expires_at > now 的会话
func (s *Store) FindValidSession(ctx context.Context, token string, now time.Time) (*domain.Session, error) {
	var record sessionRecord
	err := s.db.WithContext(ctx).
		Where("token = ? AND expires_at > ?", token, now.UTC()).
		First(&record).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, storage.ErrSessionNotFound
		}
		return nil, err
	}
	return record.toDomain(), nil
}

func (s *Store) DeleteSession(ctx context.Context, token string) error {
	return s.db.WithContext(ctx).Where("token = ?", token).Delete(&sessionRecord{}).Error
}

func (s *Store) DeleteUserSessions(ctx context.Context, userID string) (int64, error) {
	result := s.db.WithContext(ctx).Where("user_id = ?", userID).Delete(&sessionRecord{})
	return result.RowsAffected, result.Error
}

func (s *Store) DeleteExpiredSessions(ctx context.Context, now time.Time) (int64, error) {
	result := s.db.WithContext(ctx).Where("expires_at < ?", now.UTC()).Delete(&sessionRecord{})
	return result.RowsAffected, result.Error
}
