package service

import (
	"strings"

	"github.com/pkg/errors"
	"github.com/ticketboard/ticketboard/internal/database"
	"github.com/ticketboard/ticketboard/internal/model"
	"github.com/ticketboard/ticketboard/internal/notification"
	"github.com/ticketboard/ticketboard/internal/tberror"
)

type (
	// A CommentService manages item comments.
	CommentService struct {
		db       database.Client
		notifier *notification.Dispatcher
	}

	// CreateCommentParams are used to comment an item.
	CreateCommentParams struct {
		Body string `json:"body"`
	}
)

// NewComment returns a new CommentService.
func NewComment(db database.Client, notifier *notification.Dispatcher) *CommentService {
	return &CommentService{
		db:       db,
		notifier: notifier,
	}
}

// Create adds a comment on the item and notifies the mentioned users.
func (s *CommentService) Create(actor *model.User, board *model.Board, item *model.Item, params CreateCommentParams) (*model.ItemComment, error) {
	if strings.TrimSpace(params.Body) == "" {
		return nil, tberror.Invalid("The body field is required.")
	}
	if err := validateText("body", params.Body, MaxCommentLength); err != nil {
		return nil, err
	}

	comment := &model.ItemComment{
		ItemID: item.ID,
		UserID: actor.ID,
		Body:   params.Body,
	}
	if err := s.db.Save(comment); err != nil {
		return nil, errors.Wrap(err, "could not persist comment")
	}

	s.notifier.Dispatch(notification.MentionEvent(actor, board, item, notification.SourceComment, comment.Body))
	return comment, nil
}

// Delete deletes a comment of the item.
func (s *CommentService) Delete(actor *model.User, item *model.Item, id string) error {
	comment, err := s.db.FindComment(id)
	if err != nil {
		if s.db.IsNotFound(err) {
			return tberror.NotFound("Comment not found.")
		}
		return errors.Wrap(err, "could not get comment")
	}
	if comment.ItemID != item.ID {
		return tberror.NotFound("Comment not found.")
	}

	return errors.Wrap(s.db.Delete(comment), "could not delete comment")
}

// Thread returns the comments and the activities of the item with their authors.
func (s *CommentService) Thread(item *model.Item) ([]*model.ItemComment, []*model.ItemActivity, map[string]*model.User, error) {
	comments, err := s.db.FindCommentsByItemID(item.ID)
	if err != nil {
		return nil, nil, nil, errors.Wrap(err, "could not get comments")
	}

	activities, err := s.db.FindActivitiesByItemID(item.ID)
	if err != nil {
		return nil, nil, nil, errors.Wrap(err, "could not get activities")
	}

	ids := make([]string, 0, len(comments)+len(activities))
	for _, c := range comments {
		ids = append(ids, c.UserID)
	}
	for _, a := range activities {
		ids = append(ids, a.UserID)
	}

	users, err := s.db.FindUsersByIDs(ids)
	if err != nil {
		return nil, nil, nil, errors.Wrap(err, "could not get users")
	}
	return comments, activities, UsersByID(users), nil
}
