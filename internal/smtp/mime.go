package smtp

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/emersion/go-message"
	_ "github.com/emersion/go-message/charset"
	"github.com/emersion/go-message/mail"
)

// ParsedEmail 表示解析后的邮件内容，正文已转换为 UTF-8。
type ParsedEmail struct {
	Subject string
	From    string // 信头 From 中的第一个地址，没有时为空
	Text    string // 第一个 text/plain 部分
	HTML    string // 第一个 text/html 部分
}

// Body 返回展示用正文：优先纯文本，没有时使用 HTML
func (p *ParsedEmail) Body() string {
	if strings.TrimSpace(p.Text) != "" {
		return p.Text
	}
	return p.HTML
}

// ParseEmail 解析原始邮件，提取主题、发件人和正文，附件被忽略。
// 只有信头无法解析时才返回错误；单个部分解码失败时跳过该部分。
func ParseEmail(raw []byte) (*ParsedEmail, error) {
	reader, err := mail.CreateReader(bytes.NewReader(raw))
	if err != nil && !message.IsUnknownCharset(err) {
		return nil, fmt.Errorf("read message: %w", err)
	}
	if reader == nil {
		return nil, errors.New("read message: empty reader")
	}
	defer reader.Close()

	parsed := &ParsedEmail{}
	if subject, err := reader.Header.Subject(); err == nil {
		parsed.Subject = strings.TrimSpace(subject)
	}
	if from, err := reader.Header.AddressList("From"); err == nil && len(from) > 0 {
		parsed.From = normalizeAddress(from[0].Address)
	}

	for {
		part, err := reader.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			if message.IsUnknownCharset(err) {
				continue
			}
			// 后续部分已无法读取，保留已解析的内容
			break
		}

		inline, ok := part.Header.(*mail.InlineHeader)
		if !ok {
			continue
		}

		mediaType, _, _ := inline.ContentType()
		switch {
		case (mediaType == "" || mediaType == "text/plain") && parsed.Text == "":
			if body, err := io.ReadAll(part.Body); err == nil {
				parsed.Text = string(body)
			}
		case mediaType == "text/html" && parsed.HTML == "":
			if body, err := io.ReadAll(part.Body); err == nil {
				parsed.HTML = string(body)
			}
		}
	}

	return parsed, nil
}

func normalizeAddress(addr string) string {
	addr = strings.TrimSpace(addr)
	addr = strings.Trim(addr, "<>")
	return strings.ToLower(addr)
}
