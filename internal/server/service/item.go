package service

import (
	"io"
	"net/http"
	"strings"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/ticketboard/ticketboard/internal/attachment"
	"github.com/ticketboard/ticketboard/internal/database"
	"github.com/ticketboard/ticketboard/internal/model"
	"github.com/ticketboard/ticketboard/internal/notification"
	"github.com/ticketboard/ticketboard/internal/tberror"
	"github.com/ticketboard/ticketboard/pkg/optional"
)

type (
	// An ItemService applies the mutations of items.
	// Every tracked change is recorded as an activity and notifications are dispatched once the write committed.
	ItemService struct {
		db       database.Client
		notifier *notification.Dispatcher
		store    *attachment.Store
		logger   logrus.FieldLogger
	}

	// CreateItemParams are used to create an item.
	CreateItemParams struct {
		Name       string                 `json:"name"`
		GroupID    optional.Value[string] `json:"group_id"`
		ItemType   optional.Value[string] `json:"item_type"`
		AssigneeID optional.Value[string] `json:"assignee_id"`
	}

	// MoveItemParams are used to drag and drop an item.
	MoveItemParams struct {
		GroupID  string `json:"group_id"`
		Position *int   `json:"position"`
	}

	// An ItemUpdate is the outcome of an update.
	ItemUpdate struct {
		Item       *model.Item
		Activities []*model.ItemActivity
	}
)

// NewItem returns a new ItemService.
func NewItem(db database.Client, notifier *notification.Dispatcher, store *attachment.Store, logger logrus.FieldLogger) *ItemService {
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	return &ItemService{
		db:       db,
		notifier: notifier,
		store:    store,
		logger:   logger,
	}
}

// Find returns the item of the board for the given number.
func (s *ItemService) Find(board *model.Board, number int) (*model.Item, error) {
	item, err := s.db.FindItemByNumber(board.ID, number)
	if err != nil {
		if s.db.IsNotFound(err) {
			return nil, tberror.NotFound("Item not found.")
		}
		return nil, errors.Wrap(err, "could not get item")
	}
	return item, nil
}

// Create creates an item at the end of its group.
// The group defaults to the first group of the board.
func (s *ItemService) Create(actor *model.User, board *model.Board, params CreateItemParams) (*model.Item, error) {
	if err := validateName(params.Name); err != nil {
		return nil, err
	}

	kind := model.ItemTask
	if v, ok := params.ItemType.Get(); ok && v != "" {
		kind = v
	}
	if err := validateItemType(kind); err != nil {
		return nil, err
	}

	groupID := params.GroupID.OrZero()
	if groupID != "" {
		if err := s.checkGroup(board, groupID); err != nil {
			return nil, err
		}
	} else {
		groups, err := s.db.FindGroupsByBoardID(board.ID)
		if err != nil {
			return nil, errors.Wrap(err, "could not get groups")
		}
		if len(groups) > 0 {
			groupID = groups[0].ID
		}
	}

	assigneeID := params.AssigneeID.OrZero()
	if assigneeID != "" {
		if err := s.checkUser(assigneeID); err != nil {
			return nil, err
		}
	}

	item := &model.Item{
		BoardID:     board.ID,
		Name:        params.Name,
		ItemType:    kind,
		GroupID:     groupID,
		AssigneeID:  assigneeID,
		Attachments: []string{},
		CreatedBy:   actor.ID,
		UpdatedBy:   actor.ID,
	}
	activity := &model.ItemActivity{
		UserID: actor.ID,
		Type:   model.ActivityCreated,
	}

	if err := s.db.CreateItem(item, activity); err != nil {
		return nil, errors.Wrap(err, "could not create item")
	}

	if item.AssigneeID != "" {
		s.notifier.Dispatch(notification.AssignmentEvent(actor, board, item, item.AssigneeID))
	}
	return item, nil
}

// Update applies the partial update on the item.
// Nothing is written when no tracked field changes.
func (s *ItemService) Update(actor *model.User, board *model.Board, item *model.Item, patch ItemPatch) (*ItemUpdate, error) {
	if patch.IsEmpty() {
		return &ItemUpdate{Item: item}, nil
	}

	if err := s.validate(board, patch); err != nil {
		return nil, err
	}

	return s.apply(actor, board, item, patch, nil)
}

// Move changes the group and optionally the position of the item.
// A group change is recorded like any other status change.
func (s *ItemService) Move(actor *model.User, board *model.Board, item *model.Item, params MoveItemParams) (*ItemUpdate, error) {
	if params.GroupID == "" {
		return nil, tberror.Invalid("The group id field is required.")
	}
	if params.Position != nil && *params.Position < 0 {
		return nil, tberror.Invalid("The position must be at least 0.")
	}

	patch := ItemPatch{GroupID: optional.Of(params.GroupID)}
	if err := s.validate(board, patch); err != nil {
		return nil, err
	}

	return s.apply(actor, board, item, patch, params.Position)
}

func (s *ItemService) apply(actor *model.User, board *model.Board, item *model.Item, patch ItemPatch, position *int) (*ItemUpdate, error) {
	next, changes := Detect(SnapshotOf(item), patch)

	updated := *item
	next.Apply(&updated)

	_, moved := Changed(changes, FieldGroupID)
	switch {
	case position != nil:
		updated.Position = *position
	case moved:
		// Dropped at the end of its new group.
		p, err := s.nextPosition(board, updated.GroupID, updated.ID)
		if err != nil {
			return nil, err
		}
		updated.Position = p
	}

	if len(changes) == 0 && updated.Position == item.Position {
		return &ItemUpdate{Item: item}, nil
	}

	activities := make([]*model.ItemActivity, len(changes))
	for i, c := range changes {
		activity := &model.ItemActivity{
			UserID:   actor.ID,
			Type:     c.Kind,
			Field:    c.Field,
			OldValue: c.Old,
			NewValue: c.New,
		}

		switch c.Field {
		case FieldGroupID:
			activity.OldValue = s.groupName(c.Old)
			activity.NewValue = s.groupName(c.New)
		case FieldAssigneeID:
			activity.OldValue = s.userName(c.Old)
			activity.NewValue = s.userName(c.New)
		}
		activities[i] = activity
	}

	updated.UpdatedBy = actor.ID
	if position != nil {
		// The stored position is the clamped index within the group.
		if err := s.db.MoveItem(&updated, *position, activities); err != nil {
			return nil, errors.Wrap(err, "could not move item")
		}
	} else if err := s.db.UpdateItem(&updated, activities); err != nil {
		return nil, errors.Wrap(err, "could not update item")
	}

	s.notifier.Dispatch(events(actor, board, &updated, changes)...)
	return &ItemUpdate{Item: &updated, Activities: activities}, nil
}

// events returns the notifications triggered by the given changes.
func events(actor *model.User, board *model.Board, item *model.Item, changes []Change) []notification.Event {
	var evs []notification.Event

	if c, ok := Changed(changes, FieldAssigneeID); ok && c.New != "" {
		evs = append(evs, notification.AssignmentEvent(actor, board, item, c.New))
	}
	if c, ok := Changed(changes, FieldDescription); ok && c.New != "" {
		evs = append(evs, notification.MentionEvent(actor, board, item, notification.SourceDescription, c.New))
	}
	if c, ok := Changed(changes, FieldReproSteps); ok && c.New != "" {
		evs = append(evs, notification.MentionEvent(actor, board, item, notification.SourceReproSteps, c.New))
	}
	return evs
}

// Delete deletes the item with its activities, comments and attachments.
// Attachment removal is best effort.
func (s *ItemService) Delete(actor *model.User, item *model.Item) error {
	if err := s.db.DeleteItem(item.ID); err != nil {
		return errors.Wrap(err, "could not delete item")
	}

	if s.store != nil {
		if err := s.store.RemoveAll(item.ID); err != nil && !attachment.IsNotFound(err) {
			s.logger.WithError(err).WithFields(logrus.Fields{
				"item_id": item.ID,
				"user_id": actor.ID,
			}).Warn("could not remove item attachments")
		}
	}
	return nil
}

// AddAttachment stores the uploaded image and appends it to the item's attachments.
func (s *ItemService) AddAttachment(actor *model.User, item *model.Item, r io.Reader) (*model.Item, string, error) {
	if s.store == nil {
		return nil, "", tberror.NewWithTagCode(http.StatusServiceUnavailable, tberror.TagNotConfigured, "Attachments are not configured.")
	}

	p, err := s.store.Put(item.ID, r)
	if err != nil {
		switch errors.Cause(err) {
		case attachment.ErrTooLarge, attachment.ErrUnsupported:
			return nil, "", tberror.Invalid(errors.Cause(err).Error())
		}
		return nil, "", storageError(err)
	}

	updated := *item
	updated.Attachments = append(append([]string{}, item.Attachments...), p)
	updated.UpdatedBy = actor.ID

	if err = s.db.UpdateItem(&updated, nil); err != nil {
		if rerr := s.store.Remove(p); rerr != nil {
			s.logger.WithError(rerr).WithField("path", p).Warn("could not remove orphan attachment")
		}
		return nil, "", errors.Wrap(err, "could not update item attachments")
	}
	return &updated, p, nil
}

// RemoveAttachment deletes the attachment stored at p from the item.
func (s *ItemService) RemoveAttachment(actor *model.User, item *model.Item, p string) (*model.Item, error) {
	index := -1
	for i, a := range item.Attachments {
		if a == p {
			index = i
			break
		}
	}
	if index < 0 || strings.TrimSpace(p) == "" {
		return nil, tberror.Invalid("Invalid attachment.")
	}

	if s.store != nil {
		if err := s.store.Remove(p); err != nil && !attachment.IsNotFound(err) {
			return nil, storageError(err)
		}
	}

	updated := *item
	updated.Attachments = make([]string, 0, len(item.Attachments)-1)
	updated.Attachments = append(updated.Attachments, item.Attachments[:index]...)
	updated.Attachments = append(updated.Attachments, item.Attachments[index+1:]...)
	updated.UpdatedBy = actor.ID

	if err := s.db.UpdateItem(&updated, nil); err != nil {
		return nil, errors.Wrap(err, "could not update item attachments")
	}
	return &updated, nil
}

// Attachment returns the content of an attachment of the item.
func (s *ItemService) Attachment(item *model.Item, name string) ([]byte, string, error) {
	p := attachment.Directory + "/" + item.ID + "/" + name

	found := false
	for _, a := range item.Attachments {
		if a == p {
			found = true
			break
		}
	}
	if !found || s.store == nil {
		return nil, "", tberror.NotFound("Attachment not found.")
	}

	content, err := s.store.Open(p)
	if err != nil {
		if attachment.IsNotFound(err) {
			return nil, "", tberror.NotFound("Attachment not found.")
		}
		return nil, "", storageError(err)
	}
	return content, attachment.ContentType(p), nil
}

func (s *ItemService) validate(board *model.Board, patch ItemPatch) error {
	if patch.Name.IsSet() {
		if patch.Name.IsNull() {
			return tberror.Invalid("The name field is required.")
		}
		if err := validateName(patch.Name.OrZero()); err != nil {
			return err
		}
	}

	if patch.ItemType.IsSet() {
		if err := validateItemType(patch.ItemType.OrZero()); err != nil {
			return err
		}
	}

	if err := validateText(FieldDescription, patch.Description.OrZero(), MaxTextLength); err != nil {
		return err
	}
	if err := validateText(FieldReproSteps, patch.ReproSteps.OrZero(), MaxTextLength); err != nil {
		return err
	}

	if id := patch.GroupID.OrZero(); id != "" {
		if err := s.checkGroup(board, id); err != nil {
			return err
		}
	}

	if id := patch.AssigneeID.OrZero(); id != "" {
		if err := s.checkUser(id); err != nil {
			return err
		}
	}
	return nil
}

func (s *ItemService) checkGroup(board *model.Board, id string) error {
	group, err := s.db.FindGroup(id)
	if err != nil {
		if s.db.IsNotFound(err) {
			return tberror.Invalid("The selected group id is invalid.")
		}
		return errors.Wrap(err, "could not get group")
	}
	if group.BoardID != board.ID {
		return tberror.Invalid("The selected group id is invalid.")
	}
	return nil
}

func (s *ItemService) checkUser(id string) error {
	if _, err := s.db.FindUser(id); err != nil {
		if s.db.IsNotFound(err) {
			return tberror.Invalid("The selected assignee id is invalid.")
		}
		return errors.Wrap(err, "could not get user")
	}
	return nil
}

func (s *ItemService) nextPosition(board *model.Board, groupID, except string) (int, error) {
	items, err := s.db.FindItemsByBoardID(board.ID)
	if err != nil {
		return 0, errors.Wrap(err, "could not get items")
	}

	position := 0
	for _, item := range items {
		if item.GroupID == groupID && item.ID != except && item.Position >= position {
			position = item.Position + 1
		}
	}
	return position, nil
}

// groupName returns the display name of a group reference.
func (s *ItemService) groupName(id string) string {
	if id == "" {
		return model.Unassigned
	}
	group, err := s.db.FindGroup(id)
	if err != nil {
		return model.Unassigned
	}
	return group.Name
}

// userName returns the display name of a user reference.
func (s *ItemService) userName(id string) string {
	if id == "" {
		return model.Unassigned
	}
	user, err := s.db.FindUser(id)
	if err != nil {
		return model.Unassigned
	}
	return user.Name
}

func storageError(err error) error {
	return tberror.NewWithTagCode(http.StatusInternalServerError, tberror.TagStorage, "Attachment storage failed: "+errors.Cause(err).Error())
}
