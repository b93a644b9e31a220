package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"burnmail/backend/internal/monitoring"
	"burnmail/backend/internal/storage"
)

// 清理阶段名称，同时作为指标标签
const (
	SweepSessions  = "sessions"
	SweepEmails    = "emails"
	SweepMailboxes = "mailboxes"
)

// SweepResult 一次清理的结果，Errors 记录失败的阶段
type SweepResult struct {
	Sessions  int64
	Emails    int64
	Mailboxes int64
	Errors    []error
}

// Sweeper 周期性清理过期会话、超出保留期的邮件和已过期的空邮箱
type Sweeper struct {
	sessions  storage.SessionRepository
	emails    storage.EmailRepository
	mailboxes storage.MailboxRepository
	retention time.Duration
	metrics   *monitoring.Metrics
	logger    *zap.Logger
	now       func() time.Time
}

// NewSweeper 创建清理任务
func NewSweeper(store storage.Store, retention time.Duration, metrics *monitoring.Metrics, logger *zap.Logger) *Sweeper {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Sweeper{
		sessions:  store,
		emails:    store,
		mailboxes: store,
		retention: retention,
		metrics:   metrics,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// WithClock 替换时间源
func (s *Sweeper) WithClock(now func() time.Time) *Sweeper {
	s.now = now
	return s
}

// Run 依次执行三个清理阶段。
// 各阶段相互独立，某一阶段失败不会阻止后续阶段执行。
func (s *Sweeper) Run(ctx context.Context) SweepResult {
	now := s.now()
	var result SweepResult

	result.Sessions = s.phase(ctx, SweepSessions, &result, func(ctx context.Context) (int64, error) {
		return s.sessions.DeleteExpiredSessions(ctx, now)
	})
	result.Emails = s.phase(ctx, SweepEmails, &result, func(ctx context.Context) (int64, error) {
		return s.emails.DeleteEmailsReceivedBefore(ctx, now.Add(-s.retention))
	})
	result.Mailboxes = s.phase(ctx, SweepMailboxes, &result, func(ctx context.Context) (int64, error) {
		return s.mailboxes.DeleteExpiredMailboxes(ctx, now)
	})

	s.metrics.RecordSweepFinished(now)
	s.logger.Info("过期数据清理完成",
		zap.Int64("sessions", result.Sessions),
		zap.Int64("emails", result.Emails),
		zap.Int64("mailboxes", result.Mailboxes),
		zap.Int("errors", len(result.Errors)),
	)
	return result
}

func (s *Sweeper) phase(ctx context.Context, kind string, result *SweepResult, fn func(context.Context) (int64, error)) int64 {
	n, err := fn(ctx)
	if err != nil {
		s.metrics.RecordSweepError(kind)
		s.logger.Error("清理阶段失败", zap.String("kind", kind), zap.Error(err))
		result.Errors = append(result.Errors, fmt.Errorf("sweep %s: %w", kind, err))
		return 0
	}
	s.metrics.RecordSweep(kind, n)
	return n
}

// Start 立即执行一次清理，之后按 interval 周期执行，直到 ctx 取消
func (s *Sweeper) Start(ctx context.Context, interval time.Duration) error {
	s.Run(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			s.Run(ctx)
		}
	}
}
