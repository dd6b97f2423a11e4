package middleware

import (
	"context"
	"net/http"

	echo "github.com/labstack/echo/v4"
)

const ctxSessionToken = "session_token"

// SessionValidator answers whether a session token is live.
type SessionValidator interface {
	Valid(ctx context.Context, token string) (bool, error)
}

// SessionTokenFromCtx returns the token accepted by SessionMiddleware.
func SessionTokenFromCtx(c echo.Context) (string, bool) {
	token, ok := c.Get(ctxSessionToken).(string)
	return token, ok && token != ""
}

// SessionMiddleware admits requests carrying a live admin session cookie.
func SessionMiddleware(sessions SessionValidator, cookieName string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			cookie, err := c.Cookie(cookieName)
			if err != nil || cookie.Value == "" {
				return c.JSON(http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
			}
			ok, err := sessions.Valid(c.Request().Context(), cookie.Value)
			if err != nil {
				c.Logger().Errorf("session lookup failed: %v", err)
				return c.JSON(http.StatusInternalServerError, map[string]string{"error": "auth error"})
			}
			if !ok {
				return c.JSON(http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
			}
			c.Set(ctxSessionToken, cookie.Value)
			return next(c)
		}
	}
}
