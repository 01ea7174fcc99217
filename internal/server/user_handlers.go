package server

import (
	"fmt"
	"net/http"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/ticketboard/ticketboard/internal/database"
	"github.com/ticketboard/ticketboard/internal/server/serializer"
	"github.com/ticketboard/ticketboard/internal/server/service"
	"github.com/ticketboard/ticketboard/internal/tberror"
)

// PhotoTTL is how long profile photos are cached.
const PhotoTTL = time.Hour

type (
	user struct {
		db         database.Client
		boards     *service.BoardService
		photos     PhotoFinder
		photoCache *expirable.LRU[string, photo]
		logger     logrus.FieldLogger
	}

	photo struct {
		content     []byte
		contentType string
	}

	setMembersParams struct {
		UserIDs []string `json:"user_ids"`
	}
)

// Management renders the boards with their members and the assignable users.
func (h *user) Management(c echo.Context) error {
	summaries, users, err := h.boards.Members(currentUser(c))
	if err != nil {
		return err
	}

	boards := make([]map[string]any, len(summaries))
	for i, s := range summaries {
		boards[i] = serializer.Board(s.Board)
		boards[i]["members"] = s.Members
		boards[i]["members_count"] = len(s.Members)
	}

	return c.JSON(http.StatusOK, echo.Map{
		"boards": boards,
		"users":  serializer.Users(users),
	})
}

// SetMembers replaces the members of a board.
func (h *user) SetMembers(c echo.Context) error {
	var params setMembersParams
	if err := c.Bind(&params); err != nil {
		return tberror.Invalid("Could not get members' params.")
	}
	if params.UserIDs == nil {
		params.UserIDs = []string{}
	}

	board := currentBoard(c)
	if err := h.boards.SetMembers(currentUser(c), board, params.UserIDs); err != nil {
		return err
	}

	members, err := h.db.FindMembers(board.ID)
	if err != nil {
		return errors.Wrap(err, "could not get members")
	}

	r := serializer.Board(board)
	r["members"] = members
	r["members_count"] = len(members)
	return c.JSON(http.StatusOK, r)
}

// Photo serves the profile photo of a user.
// Photos and missing photos are cached, failures are not.
func (h *user) Photo(c echo.Context) error {
	if h.photos == nil {
		return tberror.NotFound("Photo not found.")
	}

	u, err := h.db.FindUser(c.Param("user"))
	if err != nil {
		if h.db.IsNotFound(err) {
			return tberror.NotFound("User not found.")
		}
		return errors.Wrap(err, "could not get user")
	}
	if u.Email == "" {
		return tberror.NotFound("Photo not found.")
	}

	key := u.ID + ":" + u.Email
	p, ok := h.photoCache.Get(key)
	if !ok {
		p.content, p.contentType, err = h.photos.Photo(c.Request().Context(), u.Email)
		if err != nil {
			h.logger.WithError(err).WithField("user_id", u.ID).Warn("could not get profile photo")
			return tberror.NotFound("Photo not found.")
		}
		h.photoCache.Add(key, p)
	}

	if p.content == nil {
		return tberror.NotFound("Photo not found.")
	}
	c.Response().Header().Set("Cache-Control", fmt.Sprintf("private, max-age=%d", int(PhotoTTL.Seconds())))
	return c.Blob(http.StatusOK, p.contentType, p.content)
}
