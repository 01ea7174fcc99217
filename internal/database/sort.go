package database

import (
	"sort"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/ticketboard/ticketboard/internal/model"
)

// ErrUnknownDriver returns the error raised for an unsupported database driver.
func ErrUnknownDriver(driver string) error {
	return errors.Errorf("unknown database driver %q", driver)
}

// sequenced spreads the timestamps of records written in the same unit of work
// so their insertion order is kept by date ordering.
func sequenced(t time.Time, i int) time.Time {
	return t.Add(time.Duration(i) * time.Microsecond)
}

func sortUsers(users []*model.User) {
	sort.SliceStable(users, func(i, j int) bool {
		ni, nj := strings.ToLower(users[i].Name), strings.ToLower(users[j].Name)
		if ni != nj {
			return ni < nj
		}
		return users[i].ID < users[j].ID
	})
}

func sortBoards(boards []*model.Board) {
	sort.SliceStable(boards, func(i, j int) bool {
		ni, nj := strings.ToLower(boards[i].Name), strings.ToLower(boards[j].Name)
		if ni != nj {
			return ni < nj
		}
		return boards[i].ID < boards[j].ID
	})
}

func sortItems(items []*model.Item) {
	sort.SliceStable(items, func(i, j int) bool {
		if items[i].GroupID != items[j].GroupID {
			return items[i].GroupID < items[j].GroupID
		}
		if items[i].Position != items[j].Position {
			return items[i].Position < items[j].Position
		}
		return items[i].Number < items[j].Number
	})
}

func sortActivities(activities []*model.ItemActivity) {
	sort.SliceStable(activities, func(i, j int) bool {
		ti, tj := activities[i].CreatedAt, activities[j].CreatedAt
		if !equal(ti, tj) {
			return before(tj, ti)
		}
		return activities[i].ID > activities[j].ID
	})
}

func before(a, b *time.Time) bool {
	switch {
	case a == nil:
		return b != nil
	case b == nil:
		return false
	default:
		return a.Before(*b)
	}
}

func equal(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Equal(*b)
}

func nextPosition(items []*model.Item) int {
	position := -1
	for _, item := range items {
		if item.Position > position {
			position = item.Position
		}
	}
	return position + 1
}

// reposition inserts item at the given index of its group, clamped to the group bounds,
// and renumbers the group from 0. It returns the other items whose position changed.
func reposition(group []*model.Item, item *model.Item, index int) []*model.Item {
	ordered := make([]*model.Item, 0, len(group)+1)
	for _, it := range group {
		if it.ID != item.ID {
			ordered = append(ordered, it)
		}
	}
	sortItems(ordered)

	if index < 0 {
		index = 0
	}
	if index > len(ordered) {
		index = len(ordered)
	}
	ordered = append(ordered, nil)
	copy(ordered[index+1:], ordered[index:])
	ordered[index] = item

	var shifted []*model.Item
	for i, it := range ordered {
		if it.Position == i {
			continue
		}
		it.Position = i
		if it != item {
			shifted = append(shifted, it)
		}
	}
	return shifted
}

func unique(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	result := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		result = append(result, id)
	}
	return result
}
