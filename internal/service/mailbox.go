package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"burnmail/backend/internal/domain"
	"burnmail/backend/internal/monitoring"
	"burnmail/backend/internal/security"
	"burnmail/backend/internal/storage"
)

// maxAddressAttempts 生成地址冲突时的最大重试次数
const maxAddressAttempts = 5

// MailboxOptions 邮箱业务配置
type MailboxOptions struct {
	Domain         string
	Retention      time.Duration
	MaxPerUser     int
	AllowAnonymous bool
}

// MailboxService 封装邮箱与邮件的业务操作，所有读取都经过 Authorize 授权。
type MailboxService struct {
	mailboxes storage.MailboxRepository
	emails    storage.EmailRepository
	opts      MailboxOptions
	metrics   *monitoring.Metrics
	logger    *zap.Logger
	now       func() time.Time
}

// NewMailboxService 创建邮箱业务服务。
func NewMailboxService(mailboxes storage.MailboxRepository, emails storage.EmailRepository, opts MailboxOptions, metrics *monitoring.Metrics, logger *zap.Logger) *MailboxService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MailboxService{
		mailboxes: mailboxes,
		emails:    emails,
		opts:      opts,
		metrics:   metrics,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// WithClock 替换时间源
func (s *MailboxService) WithClock(now func() time.Time) *MailboxService {
	s.now = now
	return s
}

// Create 创建新的临时邮箱。
// ownerID 为空时创建匿名邮箱，仅在允许匿名模式下可用。
// 登录用户的有效邮箱数达到上限时返回 LIMIT_EXCEEDED，且不写入任何数据。
func (s *MailboxService) Create(ctx context.Context, ownerID *string) (*domain.CreatedMailbox, error) {
	if ownerID == nil && !s.opts.AllowAnonymous {
		return nil, domain.ErrLoginRequired
	}

	now := s.now()
	if ownerID != nil {
		count, err := s.mailboxes.CountUserMailboxes(ctx, *ownerID, now)
		if err != nil {
			return nil, fmt.Errorf("count mailboxes: %w", err)
		}
		if count >= int64(s.opts.MaxPerUser) {
			return nil, domain.ErrMailboxLimit
		}
	}

	token, err := security.NewToken()
	if err != nil {
		return nil, err
	}

	for attempt := 0; attempt < maxAddressAttempts; attempt++ {
		local, err := security.NewLocalPart()
		if err != nil {
			return nil, err
		}

		mailbox := &domain.Mailbox{
			ID:        uuid.NewString(),
			Address:   local + "@" + s.opts.Domain,
			Token:     token,
			UserID:    ownerID,
			CreatedAt: now,
			ExpiresAt: now.Add(s.opts.Retention),
		}

		err = s.mailboxes.CreateMailbox(ctx, mailbox)
		if errors.Is(err, storage.ErrAddressTaken) {
			s.logger.Debug("邮箱地址冲突，重新生成", zap.String("address", mailbox.Address))
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("create mailbox: %w", err)
		}

		s.metrics.RecordMailboxCreated()
		s.logger.Info("邮箱已创建",
			zap.String("mailbox_id", mailbox.ID),
			zap.String("address", mailbox.Address),
			zap.Bool("anonymous", ownerID == nil),
		)
		return &domain.CreatedMailbox{
			ID:        mailbox.ID,
			Address:   mailbox.Address,
			Token:     mailbox.Token,
			ExpiresAt: mailbox.ExpiresAt,
		}, nil
	}

	return nil, fmt.Errorf("create mailbox: no free address after %d attempts", maxAddressAttempts)
}

// ListForUser 列出用户名下的全部邮箱
func (s *MailboxService) ListForUser(ctx context.Context, userID string) ([]domain.Mailbox, error) {
	mailboxes, err := s.mailboxes.ListUserMailboxes(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list mailboxes: %w", err)
	}
	if mailboxes == nil {
		mailboxes = []domain.Mailbox{}
	}
	return mailboxes, nil
}

// VerifyOwnership 判断邮箱是否属于指定用户，ref 可以是邮箱 ID 或地址
func (s *MailboxService) VerifyOwnership(ctx context.Context, ref, userID string) (bool, error) {
	_, owned, err := s.resolveOwned(ctx, ref, userID)
	if errors.Is(err, domain.ErrMailboxNotFound) {
		return false, nil
	}
	return owned, err
}

// resolveOwned 先按 ID 再按地址查找邮箱，并判断归属
func (s *MailboxService) resolveOwned(ctx context.Context, ref, userID string) (*domain.Mailbox, bool, error) {
	mailbox, err := s.mailboxes.GetMailboxByID(ctx, ref)
	if errors.Is(err, storage.ErrMailboxNotFound) {
		mailbox, err = s.mailboxes.GetMailboxByAddress(ctx, ref)
	}
	if err != nil {
		if errors.Is(err, storage.ErrMailboxNotFound) {
			return nil, false, domain.ErrMailboxNotFound
		}
		return nil, false, fmt.Errorf("get mailbox: %w", err)
	}
	return mailbox, mailbox.OwnedBy(userID), nil
}

// Delete 删除用户自己的邮箱及其邮件。
// 邮箱不存在返回 NOT_FOUND，属于其他用户返回 FORBIDDEN。
func (s *MailboxService) Delete(ctx context.Context, userID, mailboxID string) error {
	mailbox, owned, err := s.resolveOwned(ctx, mailboxID, userID)
	if err != nil {
		return err
	}
	if !owned {
		return domain.ErrMailboxForbidden
	}

	if err := s.mailboxes.DeleteMailbox(ctx, mailbox.ID); err != nil {
		return fmt.Errorf("delete mailbox: %w", err)
	}

	s.metrics.RecordMailboxDeleted()
	s.logger.Info("邮箱已删除", zap.String("mailbox_id", mailbox.ID), zap.String("user_id", userID))
	return nil
}

// Authorize 按访问凭证解析邮箱，是所有邮箱读取操作的唯一授权入口。
//
// OwnedSession 要求邮箱归属于该用户，他人邮箱与不存在的邮箱一样返回 NOT_FOUND；
// AnonymousCapability 要求地址与邮箱令牌同时匹配，且只能打开无主邮箱。
func (s *MailboxService) Authorize(ctx context.Context, cred domain.AccessCredential, address string) (*domain.Mailbox, error) {
	switch c := cred.(type) {
	case domain.OwnedSession:
		mailbox, owned, err := s.resolveOwned(ctx, address, c.UserID)
		if err != nil {
			return nil, err
		}
		if !owned {
			return nil, domain.ErrMailboxNotFound
		}
		return mailbox, nil

	case domain.AnonymousCapability:
		if c.Token == "" || c.Address != address {
			return nil, domain.ErrMailboxTokenInvalid
		}
		mailbox, err := s.mailboxes.ValidateMailboxAccess(ctx, c.Address, c.Token)
		if err != nil {
			if errors.Is(err, storage.ErrMailboxNotFound) {
				return nil, domain.ErrMailboxTokenInvalid
			}
			return nil, fmt.Errorf("validate mailbox access: %w", err)
		}
		if mailbox.UserID != nil {
			return nil, domain.ErrMailboxTokenInvalid
		}
		return mailbox, nil
	}

	return nil, domain.ErrLoginRequired
}

// ListEmails 列出邮箱中的邮件摘要，按接收时间倒序
func (s *MailboxService) ListEmails(ctx context.Context, cred domain.AccessCredential, address string) ([]domain.EmailSummary, error) {
	mailbox, err := s.Authorize(ctx, cred, address)
	if err != nil {
		return nil, err
	}

	emails, err := s.emails.ListEmails(ctx, mailbox.ID)
	if err != nil {
		return nil, fmt.Errorf("list emails: %w", err)
	}
	if emails == nil {
		emails = []domain.EmailSummary{}
	}
	return emails, nil
}

// GetEmail 读取邮件详情，邮件必须属于该邮箱
func (s *MailboxService) GetEmail(ctx context.Context, cred domain.AccessCredential, address, emailID string) (*domain.EmailDetail, error) {
	mailbox, err := s.Authorize(ctx, cred, address)
	if err != nil {
		return nil, err
	}

	email, err := s.emails.GetEmail(ctx, emailID, mailbox.ID)
	if err != nil {
		if errors.Is(err, storage.ErrEmailNotFound) {
			return nil, domain.ErrEmailNotFound
		}
		return nil, fmt.Errorf("get email: %w", err)
	}

	detail := email.Detail()
	return &detail, nil
}
