package mailer

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"CoParent/config"
	"CoParent/pkg/logger"
)

// Message 一封纯文本邮件
type Message struct {
	To       string
	Subject  string
	Body     string
	Template string // 仅用于日志与指标
}

// Client 邮件发送接口
type Client interface {
	Send(ctx context.Context, msg Message) error
	Provider() string
}

// PermanentError 标记无需重试的发送失败，例如收件人被拒
type PermanentError struct {
	Err error
}

func (e *PermanentError) Error() string { return "permanent mail failure: " + e.Err.Error() }

func (e *PermanentError) Unwrap() error { return e.Err }

var (
	mailClient Client
	mailOnce   sync.Once
	mailErr    error
)

// Init 按 MAILER_PROVIDER 初始化客户端
func Init() error {
	mailOnce.Do(func() {
		cfg := config.Cfg

		switch cfg.MailerProvider {
		case "log":
			mailClient = NewLogClient()
		case "smtp":
			mailClient = NewSMTPClient(SMTPConfig{
				Addr:     cfg.GetSMTPAddr(),
				Host:     cfg.SMTPHost,
				Username: cfg.SMTPUsername,
				Password: cfg.SMTPPassword,
				From:     cfg.MailFrom,
			})
		default:
			mailErr = fmt.Errorf("unsupported mailer provider: %s", cfg.MailerProvider)
		}

		if mailErr != nil {
			logger.Logger.Error("Failed to initialize mailer", zap.Error(mailErr))
			return
		}

		logger.Logger.Info("Mailer initialized",
			zap.String("provider", cfg.MailerProvider),
		)
	})

	return mailErr
}

func GetClient() Client {
	if mailClient == nil {
		panic("mailer not initialized, call mailer.Init() first")
	}
	return mailClient
}
