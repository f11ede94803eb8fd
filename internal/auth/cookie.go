package auth

import (
	"net/http"

	"github.com/ghasnhhz/chat-app/internal/config"
	"github.com/gin-gonic/gin"
)

// RefreshCookieName 承载 refresh token 的 HttpOnly cookie 名。
const RefreshCookieName = "refreshToken"

// SetRefreshCookie 下发 refresh cookie：HttpOnly、SameSite=Strict，
// 生产环境额外要求 Secure。
func SetRefreshCookie(c *gin.Context, cfg config.Config, token string) {
	maxAge := cfg.RefreshTokenTTLDays * 24 * 60 * 60
	c.SetSameSite(http.SameSiteStrictMode)
	c.SetCookie(RefreshCookieName, token, maxAge, "/", "", cfg.Env == "prod", true)
}

// ClearRefreshCookie 清除 refresh cookie。
func ClearRefreshCookie(c *gin.Context, cfg config.Config) {
	c.SetSameSite(http.SameSiteStrictMode)
	c.SetCookie(RefreshCookieName, "", -1, "/", "", cfg.Env == "prod", true)
}
