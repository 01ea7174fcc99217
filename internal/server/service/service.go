// Package service holds the business rules of boards, items and users.
// The acting user is always passed explicitly.
package service

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/ticketboard/ticketboard/internal/model"
	"github.com/ticketboard/ticketboard/internal/tberror"
)

// Field limits.
const (
	MaxNameLength    = 255
	MaxTextLength    = 10000
	MaxCommentLength = 5000
)

type (
	// M is an arbitrary map.
	M map[string]any

	// A Render is an arbitrary payload serializable in JSON by the API.
	Render any

	// Params are the basic fields used in requests.
	Params struct {
		UserAgent string `json:"-"`
	}
)

func validateName(name string) error {
	if strings.TrimSpace(name) == "" {
		return tberror.Invalid("The name field is required.")
	}
	if utf8.RuneCountInString(name) > MaxNameLength {
		return tberror.Invalid(fmt.Sprintf("The name may not be greater than %d characters.", MaxNameLength))
	}
	return nil
}

func validateText(field, text string, max int) error {
	if utf8.RuneCountInString(text) > max {
		return tberror.Invalid(fmt.Sprintf("The %s may not be greater than %d characters.", strings.ReplaceAll(field, "_", " "), max))
	}
	return nil
}

func validateItemType(kind string) error {
	switch kind {
	case model.ItemTask, model.ItemBug:
		return nil
	default:
		return tberror.Invalid("The selected item type is invalid.")
	}
}

// UsersByID indexes the given users by id.
func UsersByID(users []*model.User) map[string]*model.User {
	index := make(map[string]*model.User, len(users))
	for _, u := range users {
		index[u.ID] = u
	}
	return index
}
