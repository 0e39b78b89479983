package handler

import (
	"time"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/hertz-contrib/sessions"
	"go.uber.org/zap"

	"CoParent/internal/model"
	"CoParent/pkg/logger"
)

// 断点续答 cookie 中的字段；cookie 只是提示，读取后仍以存储中的会话为准
const (
	cookieSessionID    = "session_id"
	cookieAnswered     = "answered"
	cookieTotal        = "total"
	cookieCurrentKey   = "current_question_key"
	cookieLastActivity = "last_activity_at"
)

func resumeSession(c *app.RequestContext) sessions.Session {
	if _, ok := c.Get(sessions.DefaultKey); !ok {
		return nil
	}
	return sessions.Default(c)
}

// resolveSessionID 显式传入的 id 优先，其次读取 cookie；第二个返回值表示来自 cookie
func resolveSessionID(c *app.RequestContext, explicit string) (string, bool) {
	if explicit != "" {
		return explicit, false
	}
	sess := resumeSession(c)
	if sess == nil {
		return "", false
	}
	if id, ok := sess.Get(cookieSessionID).(string); ok && id != "" {
		return id, true
	}
	return "", false
}

// saveResumeCookie 需在响应头发出前调用
func saveResumeCookie(c *app.RequestContext, sessionID, currentKey string, p model.Progress) {
	sess := resumeSession(c)
	if sess == nil || sessionID == "" {
		return
	}

	sess.Set(cookieSessionID, sessionID)
	sess.Set(cookieAnswered, p.Answered)
	sess.Set(cookieTotal, p.Total)
	sess.Set(cookieCurrentKey, currentKey)
	sess.Set(cookieLastActivity, time.Now().UTC().Format(time.RFC3339))

	if err := sess.Save(); err != nil {
		logger.Logger.Warn("Failed to save resume cookie",
			logger.SessionID(sessionID),
			zap.Error(err),
		)
	}
}
