package smtp

import (
	"context"
	"io"
	"strings"
	"time"

	gosmtp "github.com/emersion/go-smtp"
	"go.uber.org/zap"

	"burnmail/backend/internal/config"
	"burnmail/backend/internal/monitoring"
)

// deliveryTimeout 单封邮件投递到存储的超时时间
const deliveryTimeout = 30 * time.Second

// Sink 接收解码前的原始邮件
type Sink interface {
	Accept(ctx context.Context, to, from string, raw []byte) string
}

// Backend 实现 go-smtp 的 Backend 接口。
//
// 只接收发往本系统域名的邮件，不提供中继。
// RCPT 阶段只校验域名，邮箱是否存在、是否过期由 Sink 在 DATA 阶段判断，
// 未知或过期邮箱的邮件被静默丢弃。
type Backend struct {
	domain  string
	sink    Sink
	limiter *ConnectionLimiter
	metrics *monitoring.Metrics
	log     *zap.Logger
}

// NewBackend 创建 SMTP Backend，limiter 为 nil 时不限流。
func NewBackend(domain string, sink Sink, limiter *ConnectionLimiter, metrics *monitoring.Metrics, log *zap.Logger) *Backend {
	if log == nil {
		log = zap.NewNop()
	}
	return &Backend{
		domain:  strings.ToLower(domain),
		sink:    sink,
		limiter: limiter,
		metrics: metrics,
		log:     log,
	}
}

// NewServer 按配置创建 SMTP 服务器
func NewServer(cfg config.SMTPConfig, backend *Backend) *gosmtp.Server {
	server := gosmtp.NewServer(backend)
	server.Addr = cfg.BindAddr
	server.Domain = cfg.Domain
	server.ReadTimeout = 10 * time.Second
	server.WriteTimeout = 10 * time.Second
	server.MaxMessageBytes = cfg.MaxMessageBytes
	server.MaxRecipients = 50
	return server
}

// NewSession 创建新的 SMTP 会话，超过连接限制时返回 421。
func (b *Backend) NewSession(c *gosmtp.Conn) (gosmtp.Session, error) {
	if b.limiter != nil && !b.limiter.Acquire() {
		b.metrics.RecordSMTPSessionRejected()
		return nil, &gosmtp.SMTPError{
			Code:         421,
			EnhancedCode: gosmtp.EnhancedCode{4, 7, 0},
			Message:      "too many connections, try again later",
		}
	}

	s := &session{backend: b}
	if c != nil && c.Conn() != nil {
		s.remote = c.Conn().RemoteAddr().String()
	}
	return s, nil
}

type session struct {
	backend    *Backend
	remote     string
	from       string
	recipients []string
}

// Mail 处理 MAIL 命令。
func (s *session) Mail(from string, _ *gosmtp.MailOptions) error {
	s.from = normalizeAddress(from)
	return nil
}

// Rcpt 处理 RCPT 命令，拒绝发往其他域名的邮件。
func (s *session) Rcpt(to string, _ *gosmtp.RcptOptions) error {
	addr := normalizeAddress(to)

	_, rcptDomain, ok := strings.Cut(addr, "@")
	if !ok || rcptDomain == "" {
		return &gosmtp.SMTPError{
			Code:         501,
			EnhancedCode: gosmtp.EnhancedCode{5, 1, 3},
			Message:      "invalid recipient address",
		}
	}

	if rcptDomain != s.backend.domain {
		s.backend.log.Debug("拒绝中继", zap.String("to", addr), zap.String("remote", s.remote))
		return &gosmtp.SMTPError{
			Code:         550,
			EnhancedCode: gosmtp.EnhancedCode{5, 7, 1},
			Message:      "relay access denied",
		}
	}

	s.recipients = append(s.recipients, addr)
	return nil
}

// Data 读取邮件内容并逐个收件人投递。
// 邮件读取完成后总是返回成功，投递失败不会导致退信。
func (s *session) Data(r io.Reader) error {
	raw, err := io.ReadAll(r)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), deliveryTimeout)
	defer cancel()

	for _, rcpt := range s.recipients {
		result := s.backend.sink.Accept(ctx, rcpt, s.from, raw)
		s.backend.log.Debug("邮件投递完成",
			zap.String("to", rcpt),
			zap.String("result", result),
			zap.Int("size", len(raw)),
		)
	}
	return nil
}

// Reset 重置状态。
func (s *session) Reset() {
	s.from = ""
	s.recipients = nil
}

// Logout 会话结束。
func (s *session) Logout() error {
	if s.backend.limiter != nil {
		s.backend.limiter.Release()
	}
	return nil
}
