package server

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/ticketboard/ticketboard/internal/database"
	"github.com/ticketboard/ticketboard/internal/server/service"
	"github.com/ticketboard/ticketboard/internal/server/session"
	"github.com/ticketboard/ticketboard/internal/sso"
	"github.com/ticketboard/ticketboard/internal/tberror"
)

// StateCookie holds the OAuth state between the redirect and the callback.
const StateCookie = "ticketboard_oauth_state"

// auth contains all authentication handlers.
type auth struct {
	db       database.Client
	users    *service.UserService
	provider sso.Provider
	logger   logrus.FieldLogger
}

///// Login
////
//

// Login handler is used to login a user with a password.
func (h *auth) Login(c echo.Context) error {
	// Filter params
	var params service.LoginParams
	if err := c.Bind(&params); err != nil {
		return tberror.Unauthorized("Could not get credentials.")
	}
	params.UserAgent = c.Request().UserAgent()

	if params.Email == "" {
		return tberror.Unauthorized("No email provided.")
	}
	if params.Password == "" {
		return tberror.Unauthorized("No password provided.")
	}

	login, err := h.users.Login(params)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, login)
}

///// Microsoft
////
//

// Microsoft redirects to the Microsoft sign in page.
func (h *auth) Microsoft(c echo.Context) error {
	if h.provider == nil {
		return tberror.NewWithTagCode(http.StatusServiceUnavailable, tberror.TagNotConfigured, "Microsoft sign in is not configured.")
	}

	state := sso.NewState()
	c.SetCookie(&http.Cookie{
		Name:     StateCookie,
		Value:    state,
		Path:     "/auth/microsoft",
		Expires:  time.Now().Add(10 * time.Minute),
		HttpOnly: true,
		Secure:   c.IsTLS(),
		SameSite: http.SameSiteLaxMode,
	})

	return c.Redirect(http.StatusFound, h.provider.AuthCodeURL(state))
}

// MicrosoftCallback signs in the user returned by Microsoft.
// The user is created on its first sign in and its name and admin flag are refreshed on each sign in.
func (h *auth) MicrosoftCallback(c echo.Context) error {
	if h.provider == nil {
		return tberror.NewWithTagCode(http.StatusServiceUnavailable, tberror.TagNotConfigured, "Microsoft sign in is not configured.")
	}

	if reason := c.QueryParam("error"); reason != "" {
		h.logger.WithFields(logrus.Fields{
			"error":       reason,
			"description": c.QueryParam("error_description"),
		}).Warn("microsoft sign in refused")
		return tberror.Unauthorized("Microsoft sign in failed.")
	}

	cookie, err := c.Cookie(StateCookie)
	if err != nil || cookie.Value == "" || !session.SecureCompare(cookie.Value, c.QueryParam("state")) {
		return tberror.Unauthorized("Invalid sign in state.")
	}
	c.SetCookie(&http.Cookie{
		Name:     StateCookie,
		Path:     "/auth/microsoft",
		MaxAge:   -1,
		HttpOnly: true,
	})

	code := c.QueryParam("code")
	if code == "" {
		return tberror.Invalid("The code field is required.")
	}

	profile, err := h.provider.Authenticate(c.Request().Context(), code)
	if err != nil {
		h.logger.WithError(err).Warn("microsoft sign in failed")
		return tberror.Unauthorized("Microsoft sign in failed.")
	}

	signin, err := h.users.SignIn(profile, service.Params{UserAgent: c.Request().UserAgent()})
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, signin)
}

///// Sign out
////
//

// SignOut terminates the current session.
func (h *auth) SignOut(c echo.Context) error {
	if err := h.db.Delete(currentSession(c)); err != nil {
		return errors.Wrap(err, "could not delete session")
	}
	return c.NoContent(http.StatusNoContent)
}
