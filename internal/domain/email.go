package domain

import "time"

// Email 收到的邮件
type Email struct {
	ID          string
	MailboxID   string
	FromAddress string
	ToAddress   string
	Subject     *string
	Body        *string
	ReceivedAt  time.Time
}

// Summary 返回邮件摘要（不含正文）
func (e *Email) Summary() EmailSummary {
	return EmailSummary{
		ID:         e.ID,
		From:       e.FromAddress,
		Subject:    e.Subject,
		ReceivedAt: e.ReceivedAt,
	}
}

// Detail 返回邮件详情
func (e *Email) Detail() EmailDetail {
	return EmailDetail{
		EmailSummary: e.Summary(),
		To:           e.ToAddress,
		Body:         e.Body,
	}
}

// EmailSummary 邮件列表项
type EmailSummary struct {
	ID         string    `json:"id"`
	From       string    `json:"from"`
	Subject    *string   `json:"subject"`
	ReceivedAt time.Time `json:"receivedAt"`
}

// EmailDetail 邮件详情
type EmailDetail struct {
	EmailSummary
	To   string  `json:"to"`
	Body *string `json:"body"`
}
