package smtp

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"burnmail/backend/internal/domain"
	"burnmail/backend/internal/monitoring"
	"burnmail/backend/internal/storage"
)

// 接收结果，同时作为 tempmail_intake_total 的 result 标签
const (
	ResultStored         = "stored"
	ResultUnknownMailbox = "unknown_mailbox"
	ResultExpired        = "expired"
	ResultParseError     = "parse_error"
	ResultStoreError     = "store_error"
	ResultPanic          = "panic"
)

// MailboxLookup 按地址查找邮箱
type MailboxLookup interface {
	GetMailboxByAddress(ctx context.Context, address string) (*domain.Mailbox, error)
}

// EmailWriter 保存邮件
type EmailWriter interface {
	CreateEmail(ctx context.Context, email *domain.Email) error
}

// Intake 尽力而为的邮件接收器。
// Accept 从不返回错误，所有失败只记录日志与指标，SMTP 层不会因此退信或重试。
type Intake struct {
	mailboxes MailboxLookup
	emails    EmailWriter
	metrics   *monitoring.Metrics
	log       *zap.Logger
	now       func() time.Time
}

// NewIntake 创建邮件接收器
func NewIntake(mailboxes MailboxLookup, emails EmailWriter, metrics *monitoring.Metrics, log *zap.Logger) *Intake {
	if log == nil {
		log = zap.NewNop()
	}
	return &Intake{
		mailboxes: mailboxes,
		emails:    emails,
		metrics:   metrics,
		log:       log,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Accept 将一封原始邮件投递到 to 对应的邮箱，返回处理结果
func (in *Intake) Accept(ctx context.Context, to, from string, raw []byte) (result string) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			in.log.Error("邮件处理发生 panic", zap.Any("panic", r), zap.String("to", to), zap.Stack("stack"))
			result = ResultPanic
		}
		in.metrics.RecordIntake(result, time.Since(start))
	}()

	return in.accept(ctx, normalizeAddress(to), from, raw)
}

func (in *Intake) accept(ctx context.Context, to, from string, raw []byte) string {
	mailbox, err := in.mailboxes.GetMailboxByAddress(ctx, to)
	if err != nil {
		if errors.Is(err, storage.ErrMailboxNotFound) {
			in.log.Debug("收件邮箱不存在，丢弃邮件", zap.String("to", to))
			return ResultUnknownMailbox
		}
		in.log.Error("查询收件邮箱失败", zap.String("to", to), zap.Error(err))
		return ResultStoreError
	}

	now := in.now()
	if mailbox.ExpiredAt(now) {
		in.log.Debug("收件邮箱已过期，丢弃邮件", zap.String("to", to))
		return ResultExpired
	}

	parsed, err := ParseEmail(raw)
	if err != nil {
		in.log.Warn("邮件解析失败", zap.String("to", to), zap.Error(err))
		return ResultParseError
	}

	sender := parsed.From
	if sender == "" {
		sender = normalizeAddress(from)
	}

	email := &domain.Email{
		ID:          uuid.NewString(),
		MailboxID:   mailbox.ID,
		FromAddress: sender,
		ToAddress:   to,
		Subject:     optional(parsed.Subject),
		Body:        optional(parsed.Body()),
		ReceivedAt:  now,
	}
	if err := in.emails.CreateEmail(ctx, email); err != nil {
		if errors.Is(err, storage.ErrMailboxNotFound) {
			return ResultUnknownMailbox
		}
		in.log.Error("保存邮件失败", zap.String("mailbox_id", mailbox.ID), zap.Error(err))
		return ResultStoreError
	}

	in.log.Info("收到新邮件",
		zap.String("mailbox_id", mailbox.ID),
		zap.String("email_id", email.ID),
		zap.String("from", sender),
	)
	return ResultStored
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
