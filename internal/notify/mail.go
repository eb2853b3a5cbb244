package notify

import (
	"context"
	"strings"

	"gopkg.in/gomail.v2"
)

// MailTransport 通过 SMTP 发送通知
type MailTransport struct {
	dialer *gomail.Dialer
	from   string
	to     string
}

func NewMailTransport(host string, port int, username, password, from, to string) *MailTransport {
	return &MailTransport{
		dialer: gomail.NewDialer(host, port, username, password),
		from:   from,
		to:     to,
	}
}

func (m *MailTransport) Name() string {
	return "mail"
}

func (m *MailTransport) Send(ctx context.Context, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	// 第一行作为主题
	subject := text
	if idx := strings.IndexByte(text, '\n'); idx > 0 {
		subject = text[:idx]
	}

	msg := gomail.NewMessage()
	msg.SetHeader("From", m.from)
	msg.SetHeader("To", m.to)
	msg.SetHeader("Subject", subject)
	msg.SetBody("text/plain", text)

	return m.dialer.DialAndSend(msg)
}
