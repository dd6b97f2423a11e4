package http

import (
	"net/http"
	"time"

	"github.com/jmehdipour/clipgate/internal/config"
	"github.com/jmehdipour/clipgate/internal/http/middleware"
	echo "github.com/labstack/echo/v4"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

const defaultCookieName = "clipgate_session"

func cookieName(cfg config.AdminConfig) string {
	if cfg.CookieName == "" {
		return defaultCookieName
	}
	return cfg.CookieName
}

type loginReq struct {
	Password string `json:"password" form:"password" validate:"required"`
}

func loginHandler(sessions Sessions, cfg config.AdminConfig, log *zap.Logger) echo.HandlerFunc {
	hash := []byte(cfg.PasswordHash)
	if len(hash) == 0 {
		log.Warn("admin.password_hash is empty; admin login is disabled")
	}
	return func(c echo.Context) error {
		var req loginReq
		if err := c.Bind(&req); err != nil {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid body"})
		}
		if err := c.Validate(&req); err != nil {
			return validationError(c, err)
		}

		if len(hash) == 0 || bcrypt.CompareHashAndPassword(hash, []byte(req.Password)) != nil {
			log.Info("admin login rejected", zap.String("ip", c.RealIP()))
			return errorJSON(c, http.StatusUnauthorized, codeUnauthorized)
		}

		token, err := sessions.Create(c.Request().Context())
		if err != nil {
			return serviceError(c, err)
		}
		c.SetCookie(sessionCookie(cfg, token, sessions.TTL()))
		return c.JSON(http.StatusOK, map[string]any{"expires_in": int(sessions.TTL().Seconds())})
	}
}

func logoutHandler(sessions Sessions, cfg config.AdminConfig) echo.HandlerFunc {
	return func(c echo.Context) error {
		token, _ := middleware.SessionTokenFromCtx(c)
		if err := sessions.Drop(c.Request().Context(), token); err != nil {
			return serviceError(c, err)
		}
		c.SetCookie(sessionCookie(cfg, "", -1))
		return c.NoContent(http.StatusNoContent)
	}
}

// sessionCookie builds the admin cookie; a negative ttl expires it.
func sessionCookie(cfg config.AdminConfig, token string, ttl time.Duration) *http.Cookie {
	ck := &http.Cookie{
		Name:     cookieName(cfg),
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		Secure:   cfg.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	}
	if ttl < 0 {
		ck.MaxAge = -1
		ck.Expires = time.Unix(0, 0)
	} else {
		ck.MaxAge = int(ttl.Seconds())
	}
	return ck
}
