package server

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"github.com/ticketboard/ticketboard/internal/database"
	"github.com/ticketboard/ticketboard/internal/server/serializer"
	"github.com/ticketboard/ticketboard/internal/tberror"
)

type sess struct {
	db database.Client
}

// List lists all active sessions for the current user.
func (s *sess) List(c echo.Context) error {
	session := currentSession(c)
	user := currentUser(c)

	sessions, err := s.db.FindActiveSessionsByUserID(user.ID)
	if err != nil && !s.db.IsNotFound(err) {
		return errors.Wrap(err, "could not get active sessions")
	}

	for _, s := range sessions {
		if s.ID == session.ID {
			s.Current = true
			break
		}
	}

	return c.JSON(http.StatusOK, serializer.Sessions(sessions))
}

// Delete terminates the specified session by UUID.
func (s *sess) Delete(c echo.Context) error {
	id := c.Param("id")
	if id == currentSession(c).ID {
		return tberror.Invalid("You can not delete your current session.")
	}

	// Retrieve session
	session, err := s.db.FindSessionByUserID(id, currentUser(c).ID)
	if err != nil {
		if s.db.IsNotFound(err) {
			return tberror.NotFound("No session exists with the provided identifier.")
		}
		return errors.Wrap(err, "could not get user session")
	}

	if err = s.db.Delete(session); err != nil {
		return errors.Wrap(err, "could not delete session")
	}
	return c.NoContent(http.StatusNoContent)
}

// DeleteAll terminates all sessions, except the current one.
func (s *sess) DeleteAll(c echo.Context) error {
	sessions, err := s.db.FindSessionsByUserID(currentUser(c).ID)
	if err != nil && !s.db.IsNotFound(err) {
		return errors.Wrap(err, "could not get sessions")
	}

	current := currentSession(c)
	for _, session := range sessions {
		if session.ID == current.ID {
			continue
		}

		if err = s.db.Delete(session); err != nil {
			return errors.Wrap(err, "could not delete session")
		}
	}

	return c.NoContent(http.StatusNoContent)
}
