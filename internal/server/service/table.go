package service

import (
	"sort"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/ticketboard/ticketboard/internal/model"
)

// PerPage is the number of items of a table page.
const PerPage = 20

// Table sort keys.
const (
	SortPosition  = "position"
	SortNumber    = "number"
	SortName      = "name"
	SortStatus    = "status"
	SortType      = "type"
	SortAssignee  = "assignee"
	SortUpdatedAt = "updated_at"
)

type (
	// TableParams are the search, sort and page of the table view.
	TableParams struct {
		Query     string `query:"q"`
		Sort      string `query:"sort"`
		Direction string `query:"direction"`
		Page      int    `query:"page"`
	}

	// A TablePage is one page of the table view.
	TablePage struct {
		Items     []*model.Item
		Groups    map[string]*model.Group
		Users     map[string]*model.User
		Sort      string
		Direction string
		Total     int
		Page      int
		LastPage  int
		// Paginated is false when all the matching items fit in one page.
		Paginated bool
	}
)

// Table returns the table view of the board.
func (s *BoardService) Table(board *model.Board, filter *model.BoardFilter, params TableParams) (*TablePage, error) {
	items, groups, users, err := s.tableData(board)
	if err != nil {
		return nil, err
	}
	return Table(FilterItems(items, filter), groups, users, params), nil
}

// tableData returns the items of the board with the groups and users they reference.
func (s *BoardService) tableData(board *model.Board) ([]*model.Item, map[string]*model.Group, map[string]*model.User, error) {
	items, err := s.db.FindItemsByBoardID(board.ID)
	if err != nil {
		return nil, nil, nil, errors.Wrap(err, "could not get items")
	}

	groups, err := s.db.FindGroupsByBoardID(board.ID)
	if err != nil {
		return nil, nil, nil, errors.Wrap(err, "could not get groups")
	}

	ids := make([]string, 0, len(items))
	for _, item := range items {
		if item.AssigneeID != "" {
			ids = append(ids, item.AssigneeID)
		}
		ids = append(ids, item.CreatedBy, item.UpdatedBy)
	}
	users, err := s.db.FindUsersByIDs(ids)
	if err != nil {
		return nil, nil, nil, errors.Wrap(err, "could not get users")
	}

	index := make(map[string]*model.Group, len(groups))
	for _, g := range groups {
		index[g.ID] = g
	}
	return items, index, UsersByID(users), nil
}

// Table searches, sorts and paginates items.
// Items without status or assignee sort last in both directions.
func Table(items []*model.Item, groups map[string]*model.Group, users map[string]*model.User, params TableParams) *TablePage {
	query := strings.ToLower(strings.TrimSpace(params.Query))

	matching := make([]*model.Item, 0, len(items))
	for _, item := range items {
		if query != "" && !strings.Contains(strings.ToLower(item.Name), query) {
			continue
		}
		matching = append(matching, item)
	}

	desc := strings.ToLower(params.Direction) == "desc"
	direction := "asc"
	if desc {
		direction = "desc"
	}

	key := params.Sort
	switch key {
	case SortNumber, SortName, SortStatus, SortType, SortAssignee, SortUpdatedAt:
	default:
		key = SortPosition
		direction = "asc"
		desc = false
	}

	groupName := func(item *model.Item) (string, bool) {
		g, ok := groups[item.GroupID]
		if !ok {
			return "", false
		}
		return strings.ToLower(g.Name), true
	}
	userName := func(item *model.Item) (string, bool) {
		u, ok := users[item.AssigneeID]
		if !ok || item.AssigneeID == "" {
			return "", false
		}
		return strings.ToLower(u.Name), true
	}

	// compare returns -1, 0 or 1 in ascending order; nulls is set when only one side is null.
	compare := func(a, b *model.Item) (c int, nulls bool) {
		switch key {
		case SortNumber:
			return cmpInt(a.Number, b.Number), false
		case SortName:
			return strings.Compare(strings.ToLower(a.Name), strings.ToLower(b.Name)), false
		case SortType:
			return strings.Compare(a.ItemType, b.ItemType), false
		case SortUpdatedAt:
			switch {
			case before(a.UpdatedAt, b.UpdatedAt):
				return -1, false
			case before(b.UpdatedAt, a.UpdatedAt):
				return 1, false
			}
			return 0, false
		case SortStatus, SortAssignee:
			name := groupName
			if key == SortAssignee {
				name = userName
			}
			na, oka := name(a)
			nb, okb := name(b)
			switch {
			case oka && !okb:
				return -1, true
			case !oka && okb:
				return 1, true
			}
			return strings.Compare(na, nb), false
		default:
			return cmpInt(a.Position, b.Position), false
		}
	}

	sort.SliceStable(matching, func(i, j int) bool {
		c, nulls := compare(matching[i], matching[j])
		if c == 0 {
			return matching[i].Number < matching[j].Number
		}
		if desc && !nulls {
			c = -c
		}
		return c < 0
	})

	page := &TablePage{
		Items:     matching,
		Groups:    groups,
		Users:     users,
		Sort:      key,
		Direction: direction,
		Total:     len(matching),
		Page:      1,
		LastPage:  1,
	}

	if page.Total <= PerPage {
		return page
	}

	page.Paginated = true
	page.LastPage = (page.Total + PerPage - 1) / PerPage
	page.Page = params.Page
	if page.Page < 1 {
		page.Page = 1
	}
	if page.Page > page.LastPage {
		page.Page = page.LastPage
	}

	start := (page.Page - 1) * PerPage
	end := start + PerPage
	if end > page.Total {
		end = page.Total
	}
	page.Items = matching[start:end]
	return page
}

func cmpInt(a, b int) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

// before orders nil dates first.
func before(a, b *time.Time) bool {
	if a == nil {
		return b != nil
	}
	if b == nil {
		return false
	}
	return a.Before(*b)
}
