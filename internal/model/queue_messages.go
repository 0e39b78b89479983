package model

// OnboardingCompletedMessage 引导完成消息，worker 据此发送欢迎邮件
type OnboardingCompletedMessage struct {
	MessageID    string `json:"message_id"` // 消息唯一ID，用于幂等性检查
	SessionID    string `json:"session_id"`
	Email        string `json:"email"`
	Name         string `json:"name"`
	CompletedAt  string `json:"completed_at"`
	UserPublicID int64  `json:"user_public_id"`
}
