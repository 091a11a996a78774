package mail

import (
	"context"
	"fmt"
	"net"
	"net/smtp"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"product-user-services/internal/core/config"
)

type Sender interface {
	Send(ctx context.Context, to, subject, htmlBody string) error
}

// NewSender 未配置 SMTP 主机时只记日志
func NewSender(c config.Mail, l *zap.Logger) Sender {
	if c.Host == "" {
		return &LogSender{log: l}
	}
	return &SMTPSender{
		Addr: net.JoinHostPort(c.Host, strconv.Itoa(c.Port)),
		Host: c.Host,
		User: c.Username,
		Pass: c.Password,
		From: c.From,
	}
}

type SMTPSender struct {
	Addr string
	Host string
	User string
	Pass string
	From string
}

func (s *SMTPSender) Send(ctx context.Context, to, subject, htmlBody string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	var auth smtp.Auth
	if s.User != "" {
		auth = smtp.PlainAuth("", s.User, s.Pass, s.Host)
	}
	return smtp.SendMail(s.Addr, auth, s.From, []string{to}, buildMessage(s.From, to, subject, htmlBody))
}

func buildMessage(from, to, subject, htmlBody string) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", from)
	fmt.Fprintf(&b, "To: %s\r\n", to)
	fmt.Fprintf(&b, "Subject: %s\r\n", strings.NewReplacer("\r", "", "\n", "").Replace(subject))
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/html; charset=UTF-8\r\n\r\n")
	b.WriteString(htmlBody)
	return []byte(b.String())
}

type LogSender struct{ log *zap.Logger }

func (s *LogSender) Send(_ context.Context, to, subject, htmlBody string) error {
	s.log.Info("mail (not sent, smtp disabled)",
		zap.String("to", to),
		zap.String("subject", subject),
		zap.String("body", htmlBody),
	)
	return nil
}
