package server

import (
	"net/http"
	"strconv"

	"github.com/araddon/dateparse"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"github.com/ticketboard/ticketboard/internal/model"
	"github.com/ticketboard/ticketboard/internal/server/serializer"
	"github.com/ticketboard/ticketboard/internal/server/service"
	"github.com/ticketboard/ticketboard/internal/tberror"
)

type (
	item struct {
		items    *service.ItemService
		comments *service.CommentService
	}

	removeAttachmentParams struct {
		Path string `json:"path"`
	}
)

// Show renders the ticket with its comments and activities.
// The optional since query parameter keeps the activities created after the given date.
func (h *item) Show(c echo.Context) error {
	item, err := h.find(c)
	if err != nil {
		return err
	}

	comments, activities, users, err := h.comments.Thread(item)
	if err != nil {
		return err
	}

	if since := c.QueryParam("since"); since != "" {
		t, err := dateparse.ParseAny(since)
		if err != nil {
			return tberror.Invalid("The since parameter is not a valid date.")
		}

		recent := activities[:0]
		for _, a := range activities {
			if a.CreatedAt != nil && a.CreatedAt.After(t) {
				recent = append(recent, a)
			}
		}
		activities = recent
	}

	return c.JSON(http.StatusOK, echo.Map{
		"item":       serializer.Item(item),
		"comments":   serializer.Comments(comments, users),
		"activities": serializer.Activities(activities, users),
	})
}

// Create creates an item on the board.
func (h *item) Create(c echo.Context) error {
	var params service.CreateItemParams
	if err := c.Bind(&params); err != nil {
		return tberror.Invalid("Could not get item's params.")
	}

	item, err := h.items.Create(currentUser(c), currentBoard(c), params)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, serializer.Item(item))
}

// Update applies a partial update on the item.
func (h *item) Update(c echo.Context) error {
	item, err := h.find(c)
	if err != nil {
		return err
	}

	var patch service.ItemPatch
	if err = c.Bind(&patch); err != nil {
		return tberror.Invalid("Could not get item's params.")
	}

	return h.render(c, func() (*service.ItemUpdate, error) {
		return h.items.Update(currentUser(c), currentBoard(c), item, patch)
	})
}

// Move drops the item in a group.
func (h *item) Move(c echo.Context) error {
	item, err := h.find(c)
	if err != nil {
		return err
	}

	var params service.MoveItemParams
	if err = c.Bind(&params); err != nil {
		return tberror.Invalid("Could not get item's params.")
	}

	return h.render(c, func() (*service.ItemUpdate, error) {
		return h.items.Move(currentUser(c), currentBoard(c), item, params)
	})
}

// Delete deletes the item.
func (h *item) Delete(c echo.Context) error {
	item, err := h.find(c)
	if err != nil {
		return err
	}

	if err = h.items.Delete(currentUser(c), item); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

// CreateComment comments the item.
func (h *item) CreateComment(c echo.Context) error {
	item, err := h.find(c)
	if err != nil {
		return err
	}

	var params service.CreateCommentParams
	if err = c.Bind(&params); err != nil {
		return tberror.Invalid("Could not get comment's params.")
	}

	user := currentUser(c)
	comment, err := h.comments.Create(user, currentBoard(c), item, params)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, serializer.Comment(comment, map[string]*model.User{user.ID: user}))
}

// DeleteComment deletes a comment of the item.
func (h *item) DeleteComment(c echo.Context) error {
	item, err := h.find(c)
	if err != nil {
		return err
	}

	if err = h.comments.Delete(currentUser(c), item, c.Param("comment")); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

// AddAttachment uploads the image field as a new attachment of the item.
func (h *item) AddAttachment(c echo.Context) error {
	item, err := h.find(c)
	if err != nil {
		return err
	}

	fh, err := c.FormFile("image")
	if err != nil {
		return tberror.Invalid("The image field is required.")
	}
	f, err := fh.Open()
	if err != nil {
		return errors.Wrap(err, "could not open upload")
	}
	defer f.Close()

	item, p, err := h.items.AddAttachment(currentUser(c), item, f)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusCreated, echo.Map{
		"item": serializer.Item(item),
		"path": p,
	})
}

// Attachment serves an attachment of the item.
func (h *item) Attachment(c echo.Context) error {
	item, err := h.find(c)
	if err != nil {
		return err
	}

	content, contentType, err := h.items.Attachment(item, c.Param("name"))
	if err != nil {
		return err
	}
	return c.Blob(http.StatusOK, contentType, content)
}

// RemoveAttachment deletes an attachment of the item.
func (h *item) RemoveAttachment(c echo.Context) error {
	item, err := h.find(c)
	if err != nil {
		return err
	}

	var params removeAttachmentParams
	if err = c.Bind(&params); err != nil {
		return tberror.Invalid("Could not get attachment's params.")
	}

	item, err = h.items.RemoveAttachment(currentUser(c), item, params.Path)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, serializer.Item(item))
}

func (h *item) find(c echo.Context) (*model.Item, error) {
	number, err := strconv.Atoi(c.Param("number"))
	if err != nil {
		return nil, tberror.NotFound("Item not found.")
	}
	return h.items.Find(currentBoard(c), number)
}

func (h *item) render(c echo.Context, update func() (*service.ItemUpdate, error)) error {
	result, err := update()
	if err != nil {
		return err
	}

	user := currentUser(c)
	return c.JSON(http.StatusOK, echo.Map{
		"item":       serializer.Item(result.Item),
		"activities": serializer.Activities(result.Activities, map[string]*model.User{user.ID: user}),
	})
}
