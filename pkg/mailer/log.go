package mailer

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"CoParent/pkg/logger"
)

// LogClient 只写日志，用于本地开发
type LogClient struct{}

func NewLogClient() *LogClient { return &LogClient{} }

func (LogClient) Provider() string { return "log" }

func (LogClient) Send(_ context.Context, msg Message) error {
	logger.Logger.Info("Mail delivered to log",
		zap.String("to", MaskAddress(msg.To)),
		zap.String("subject", msg.Subject),
		zap.String("template", msg.Template),
		zap.Int("body_bytes", len(msg.Body)),
	)
	return nil
}

// MaskAddress 日志中只保留邮箱首字母和域名
func MaskAddress(addr string) string {
	at := strings.LastIndex(addr, "@")
	if at <= 0 {
		return "***"
	}
	return addr[:1] + "***" + addr[at:]
}
