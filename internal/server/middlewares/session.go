package middlewares

import (
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/ticketboard/ticketboard/internal/model"
	"github.com/ticketboard/ticketboard/internal/server/session"
	"github.com/ticketboard/ticketboard/internal/tberror"
)

const (
	// CurrentUserContextKey is the key to retrieve the current_user from echo.Context.
	CurrentUserContextKey = "current_user"
	// CurrentSessionContextKey is the key to retrieve the current_session from echo.Context.
	CurrentSessionContextKey = "current_session"
)

// Session returns a Session auth middleware.
// It stores current_user and current_session into echo.Context
func Session(m session.Manager) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			authorization := c.Request().Header.Get(echo.HeaderAuthorization)
			token := token(authorization)

			if token == "" {
				return tberror.Unauthorized("Invalid login credentials.")
			}

			session, user, err := m.Authenticate(token)
			if err != nil {
				return err
			}

			// Store current_session and current_user for handlers.
			c.Set(CurrentSessionContextKey, session)
			c.Set(CurrentUserContextKey, user)
			return next(c)
		}
	}
}

// CurrentUser returns the authenticated user.
func CurrentUser(c echo.Context) *model.User {
	return c.Get(CurrentUserContextKey).(*model.User)
}

// CurrentSession returns the session of the authenticated user.
func CurrentSession(c echo.Context) *model.Session {
	return c.Get(CurrentSessionContextKey).(*model.Session)
}

func token(authorization string) string {
	parts := strings.Split(authorization, " ")
	if strings.ToLower(parts[0]) != "bearer" {
		return ""
	}

	if len(parts) < 2 {
		return ""
	}
	return parts[1]
}
