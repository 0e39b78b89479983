package mailer

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"mime"
	"net"
	"net/smtp"
	"net/textproto"
	"time"
)

type SMTPConfig struct {
	Addr     string
	Host     string
	Username string
	Password string
	From     string
}

// SMTPClient 每次发送建立一条连接，ctx 的截止时间作用于整个会话
type SMTPClient struct {
	cfg    SMTPConfig
	dialer net.Dialer
}

func NewSMTPClient(cfg SMTPConfig) *SMTPClient {
	return &SMTPClient{cfg: cfg, dialer: net.Dialer{Timeout: 10 * time.Second}}
}

func (c *SMTPClient) Provider() string { return "smtp" }

func (c *SMTPClient) Send(ctx context.Context, msg Message) error {
	conn, err := c.dialer.DialContext(ctx, "tcp", c.cfg.Addr)
	if err != nil {
		return fmt.Errorf("failed to dial smtp server: %w", err)
	}
	defer conn.Close()

	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}

	client, err := smtp.NewClient(conn, c.cfg.Host)
	if err != nil {
		return fmt.Errorf("failed to start smtp session: %w", err)
	}
	defer client.Close()

	if ok, _ := client.Extension("STARTTLS"); ok {
		if err := client.StartTLS(&tls.Config{ServerName: c.cfg.Host, MinVersion: tls.VersionTLS12}); err != nil {
			return fmt.Errorf("failed to start tls: %w", err)
		}
	}

	if c.cfg.Username != "" {
		auth := smtp.PlainAuth("", c.cfg.Username, c.cfg.Password, c.cfg.Host)
		if err := client.Auth(auth); err != nil {
			return classify(fmt.Errorf("smtp auth failed: %w", err))
		}
	}

	if err := client.Mail(c.cfg.From); err != nil {
		return classify(fmt.Errorf("smtp MAIL FROM rejected: %w", err))
	}
	if err := client.Rcpt(msg.To); err != nil {
		return classify(fmt.Errorf("smtp RCPT TO rejected: %w", err))
	}

	w, err := client.Data()
	if err != nil {
		return classify(fmt.Errorf("smtp DATA rejected: %w", err))
	}
	if _, err := w.Write(BuildMessage(c.cfg.From, msg, time.Now())); err != nil {
		_ = w.Close()
		return fmt.Errorf("failed to write smtp body: %w", err)
	}
	if err := w.Close(); err != nil {
		return classify(fmt.Errorf("smtp body rejected: %w", err))
	}

	return client.Quit()
}

// classify 5xx 应答视为永久失败
func classify(err error) error {
	var tpErr *textproto.Error
	if errors.As(err, &tpErr) && tpErr.Code >= 500 {
		return &PermanentError{Err: err}
	}
	return err
}

// BuildMessage 生成 RFC 5322 格式的纯文本邮件
func BuildMessage(from string, msg Message, now time.Time) []byte {
	var buf bytes.Buffer
	buf.WriteString("From: " + from + "\r\n")
	buf.WriteString("To: " + msg.To + "\r\n")
	buf.WriteString("Subject: " + mime.QEncoding.Encode("utf-8", msg.Subject) + "\r\n")
	buf.WriteString("Date: " + now.Format(time.RFC1123Z) + "\r\n")
	buf.WriteString("MIME-Version: 1.0\r\n")
	buf.WriteString("Content-Type: text/plain; charset=utf-8\r\n")
	buf.WriteString("Content-Transfer-Encoding: 8bit\r\n")
	buf.WriteString("\r\n")
	buf.Write(bytes.ReplaceAll([]byte(msg.Body), []byte("\n"), []byte("\r\n")))
	return buf.Bytes()
}
