package middleware

import (
	"github.com/cloudwego/hertz/pkg/app"
	"github.com/hertz-contrib/sessions"
	"github.com/hertz-contrib/sessions/cookie"

	"CoParent/config"
)

// ResumeCookieMiddleware 挂载签名 cookie 会话，保存断点续答信息
func ResumeCookieMiddleware() app.HandlerFunc {
	cfg := config.Cfg
	store := cookie.NewStore([]byte(cfg.SessionSecret))
	store.Options(sessions.Options{
		Path:     "/",
		MaxAge:   cfg.SessionCookieMaxAge,
		Secure:   cfg.SessionCookieSecure,
		HttpOnly: true,
	})
	return sessions.New(cfg.SessionCookieName, store)
}
