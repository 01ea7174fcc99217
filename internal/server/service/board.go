package service

import (
	"strings"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/ticketboard/ticketboard/internal/attachment"
	"github.com/ticketboard/ticketboard/internal/database"
	"github.com/ticketboard/ticketboard/internal/mention"
	"github.com/ticketboard/ticketboard/internal/model"
	"github.com/ticketboard/ticketboard/internal/tberror"
)

// MaxBoards is the maximum number of boards listed.
const MaxBoards = 50

// MaxDescriptionLength is the maximum length of a board description.
const MaxDescriptionLength = 1000

// AssigneeUnassigned is the filter value selecting items without assignee.
const AssigneeUnassigned = "unassigned"

type (
	// A BoardService manages boards and their access.
	BoardService struct {
		db     database.Client
		store  *attachment.Store
		logger logrus.FieldLogger
	}

	// CreateBoardParams are used to create a board.
	CreateBoardParams struct {
		Name        string `json:"name"`
		Description string `json:"description"`
	}

	// FilterParams are the kanban and table filters.
	// Nil fields are not supplied.
	FilterParams struct {
		Assignee *string `json:"assignee" query:"assignee"`
		Type     *string `json:"type"     query:"type"`
	}

	// A BoardSummary is a listed board.
	BoardSummary struct {
		Board *model.Board
		Items int
	}

	// A BoardContent is a board with its structure and its filtered items.
	BoardContent struct {
		Board   *model.Board
		Groups  []*model.Group
		Columns []*model.Column
		Items   []*model.Item
		Filter  *model.BoardFilter
	}

	// A MemberSummary is a board with its non-admin member count.
	MemberSummary struct {
		Board   *model.Board
		Members []string
	}
)

// NewBoard returns a new BoardService.
// store may be nil when attachments are disabled.
func NewBoard(db database.Client, store *attachment.Store, logger logrus.FieldLogger) *BoardService {
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	return &BoardService{
		db:     db,
		store:  store,
		logger: logger,
	}
}

// List returns the boards visible by actor with their item counts.
// Admins see every board.
func (s *BoardService) List(actor *model.User) ([]BoardSummary, error) {
	var boards []*model.Board
	var err error
	if actor.Admin {
		boards, err = s.db.FindBoards()
	} else {
		boards, err = s.db.FindBoardsByUserID(actor.ID)
	}
	if err != nil {
		return nil, errors.Wrap(err, "could not get boards")
	}

	if len(boards) > MaxBoards {
		boards = boards[:MaxBoards]
	}

	summaries := make([]BoardSummary, len(boards))
	for i, b := range boards {
		n, err := s.db.CountItemsByBoardID(b.ID)
		if err != nil {
			return nil, errors.Wrap(err, "could not count items")
		}
		summaries[i] = BoardSummary{Board: b, Items: n}
	}
	return summaries, nil
}

// Create creates a kanban board with the default groups, a status column and a name column.
func (s *BoardService) Create(actor *model.User, params CreateBoardParams) (*model.Board, error) {
	if !actor.Admin {
		return nil, tberror.Forbidden("Only administrators can create boards.")
	}
	if err := validateName(params.Name); err != nil {
		return nil, err
	}
	if err := validateText("description", params.Description, MaxDescriptionLength); err != nil {
		return nil, err
	}

	board := &model.Board{
		Name:        params.Name,
		Description: params.Description,
		ViewType:    model.ViewKanban,
		CreatedBy:   actor.ID,
	}

	groups := make([]*model.Group, len(model.DefaultGroups))
	for i, name := range model.DefaultGroups {
		groups[i] = &model.Group{Name: name, Position: i}
	}

	columns := []*model.Column{
		{
			Name:     "Status",
			Type:     model.ColumnStatus,
			Position: 0,
			Settings: model.ColumnSettings{Options: append([]string{}, model.DefaultGroups...)},
		},
		{
			Name:     "Name",
			Type:     model.ColumnText,
			Position: 1,
		},
	}

	if err := s.db.CreateBoard(board, groups, columns); err != nil {
		return nil, errors.Wrap(err, "could not create board")
	}
	return board, nil
}

// Delete deletes the board and everything it contains.
func (s *BoardService) Delete(actor *model.User, board *model.Board) error {
	if !actor.Admin {
		return tberror.Forbidden("Only administrators can delete boards.")
	}

	items, err := s.db.FindItemsByBoardID(board.ID)
	if err != nil {
		return errors.Wrap(err, "could not get items")
	}

	if err = s.db.DeleteBoard(board.ID); err != nil {
		return errors.Wrap(err, "could not delete board")
	}

	// Attachment removal is best effort.
	if s.store != nil {
		for _, item := range items {
			if err := s.store.RemoveAll(item.ID); err != nil && !attachment.IsNotFound(err) {
				s.logger.WithError(err).WithFields(logrus.Fields{
					"board_id": board.ID,
					"item_id":  item.ID,
				}).Warn("could not remove item attachments")
			}
		}
	}
	return nil
}

// Filter returns the effective filter of actor on the board.
// Supplied params override the saved filter.
func (s *BoardService) Filter(actor *model.User, board *model.Board, params FilterParams) (*model.BoardFilter, error) {
	filter, err := s.db.FindBoardFilter(actor.ID, board.ID)
	if err != nil {
		if !s.db.IsNotFound(err) {
			return nil, errors.Wrap(err, "could not get board filter")
		}
		filter = &model.BoardFilter{UserID: actor.ID, BoardID: board.ID}
	}

	effective := *filter
	if params.Assignee != nil {
		effective.AssigneeID, effective.FilterUnassigned = assignee(*params.Assignee)
	}
	if params.Type != nil {
		effective.ItemType = itemType(*params.Type)
	}
	return &effective, nil
}

// SaveFilter stores the filter of actor on the board.
func (s *BoardService) SaveFilter(actor *model.User, board *model.Board, params FilterParams) (*model.BoardFilter, error) {
	filter, err := s.db.FindBoardFilter(actor.ID, board.ID)
	if err != nil {
		if !s.db.IsNotFound(err) {
			return nil, errors.Wrap(err, "could not get board filter")
		}
		filter = &model.BoardFilter{UserID: actor.ID, BoardID: board.ID}
	}

	filter.AssigneeID, filter.FilterUnassigned = "", false
	if params.Assignee != nil {
		filter.AssigneeID, filter.FilterUnassigned = assignee(*params.Assignee)
	}
	filter.ItemType = ""
	if params.Type != nil {
		filter.ItemType = itemType(*params.Type)
	}

	if err = s.db.Save(filter); err != nil {
		return nil, errors.Wrap(err, "could not save board filter")
	}
	return filter, nil
}

// Content returns the board structure and the items matching the filter.
func (s *BoardService) Content(board *model.Board, filter *model.BoardFilter) (*BoardContent, error) {
	groups, err := s.db.FindGroupsByBoardID(board.ID)
	if err != nil {
		return nil, errors.Wrap(err, "could not get groups")
	}

	columns, err := s.db.FindColumnsByBoardID(board.ID)
	if err != nil {
		return nil, errors.Wrap(err, "could not get columns")
	}

	items, err := s.db.FindItemsByBoardID(board.ID)
	if err != nil {
		return nil, errors.Wrap(err, "could not get items")
	}

	return &BoardContent{
		Board:   board,
		Groups:  groups,
		Columns: columns,
		Items:   FilterItems(items, filter),
		Filter:  filter,
	}, nil
}

// MentionableUsers returns the autocomplete entries of the board filtered by query.
func (s *BoardService) MentionableUsers(board *model.Board, query string) ([]mention.Mentionable, error) {
	users, err := s.db.FindMentionableUsers(board.ID)
	if err != nil {
		return nil, errors.Wrap(err, "could not get mentionable users")
	}
	return mention.Search(mention.Mentionables(users), query), nil
}

// Members returns every board with its non-admin members and the non-admin users.
func (s *BoardService) Members(actor *model.User) ([]MemberSummary, []*model.User, error) {
	if !actor.Admin {
		return nil, nil, tberror.Forbidden("Only administrators can access user management.")
	}

	users, err := s.db.FindUsers()
	if err != nil {
		return nil, nil, errors.Wrap(err, "could not get users")
	}

	regular := make([]*model.User, 0, len(users))
	for _, u := range users {
		if !u.Admin {
			regular = append(regular, u)
		}
	}
	index := UsersByID(regular)

	boards, err := s.db.FindBoards()
	if err != nil {
		return nil, nil, errors.Wrap(err, "could not get boards")
	}

	summaries := make([]MemberSummary, len(boards))
	for i, b := range boards {
		ids, err := s.db.FindMembers(b.ID)
		if err != nil {
			return nil, nil, errors.Wrap(err, "could not get members")
		}

		members := make([]string, 0, len(ids))
		for _, id := range ids {
			if _, ok := index[id]; ok {
				members = append(members, id)
			}
		}
		summaries[i] = MemberSummary{Board: b, Members: members}
	}
	return summaries, regular, nil
}

// SetMembers replaces the members of the board.
func (s *BoardService) SetMembers(actor *model.User, board *model.Board, userIDs []string) error {
	if !actor.Admin {
		return tberror.Forbidden("Only administrators can manage board assignments.")
	}

	users, err := s.db.FindUsersByIDs(userIDs)
	if err != nil {
		return errors.Wrap(err, "could not get users")
	}
	known := UsersByID(users)
	for _, id := range userIDs {
		if _, ok := known[id]; !ok {
			return tberror.Invalid("The selected user ids are invalid.")
		}
	}

	return errors.Wrap(s.db.SetMembers(board.ID, userIDs), "could not update board members")
}

// FilterItems returns the items matching the assignee and type of the filter.
func FilterItems(items []*model.Item, filter *model.BoardFilter) []*model.Item {
	if filter == nil {
		return items
	}

	filtered := make([]*model.Item, 0, len(items))
	for _, item := range items {
		switch {
		case filter.FilterUnassigned && item.AssigneeID != "":
			continue
		case !filter.FilterUnassigned && filter.AssigneeID != "" && item.AssigneeID != filter.AssigneeID:
			continue
		case filter.ItemType != "" && item.ItemType != filter.ItemType:
			continue
		}
		filtered = append(filtered, item)
	}
	return filtered
}

func assignee(v string) (id string, unassigned bool) {
	v = strings.TrimSpace(v)
	if v == AssigneeUnassigned {
		return "", true
	}
	return v, false
}

func itemType(v string) string {
	if v == model.ItemTask || v == model.ItemBug {
		return v
	}
	return ""
}
