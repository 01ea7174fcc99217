// Package mention resolves @name tokens found in free text to board users.
package mention

import (
	"regexp"
	"strings"

	"github.com/pkg/errors"
	"github.com/sahilm/fuzzy"
	"github.com/ticketboard/ticketboard/internal/model"
)

var pattern = regexp.MustCompile(`@(\w+)`)

type (
	// A Finder fetches the users that can be mentioned on a board.
	Finder interface {
		FindMentionableUsers(boardID string) ([]*model.User, error)
	}

	// A Mentionable is a user offered by the mention autocomplete.
	Mentionable struct {
		ID     string `json:"id"`
		Name   string `json:"name"`
		Email  string `json:"email"`
		Search string `json:"search"`
	}
)

// Tokens returns the distinct mention tokens of text, in order of first appearance.
func Tokens(text string) []string {
	matches := pattern.FindAllStringSubmatch(text, -1)

	seen := make(map[string]bool, len(matches))
	tokens := make([]string, 0, len(matches))
	for _, m := range matches {
		if seen[m[1]] {
			continue
		}
		seen[m[1]] = true
		tokens = append(tokens, m[1])
	}
	return tokens
}

// Normalize returns the mention form of a display name: lowercased without spaces.
func Normalize(name string) string {
	return strings.ToLower(strings.ReplaceAll(name, " ", ""))
}

// Match returns the user the token refers to, or nil.
// An exact match on the normalized name wins over a substring match in either direction.
// Among several substring matches, the first candidate wins.
func Match(token string, candidates []*model.User) *model.User {
	search := strings.ToLower(token)

	for _, u := range candidates {
		if Normalize(u.Name) == search {
			return u
		}
	}

	for _, u := range candidates {
		name := Normalize(u.Name)
		if name == "" {
			continue
		}
		if strings.Contains(name, search) || strings.Contains(search, name) {
			return u
		}
	}
	return nil
}

// Resolve returns the distinct ids of the candidates mentioned in text.
func Resolve(text string, candidates []*model.User) []string {
	return resolve(Tokens(text), candidates)
}

func resolve(tokens []string, candidates []*model.User) []string {
	seen := make(map[string]bool, len(tokens))
	ids := make([]string, 0, len(tokens))
	for _, token := range tokens {
		u := Match(token, candidates)
		if u == nil || seen[u.ID] {
			continue
		}
		seen[u.ID] = true
		ids = append(ids, u.ID)
	}
	return ids
}

// Extract returns the distinct ids of the board users mentioned in text.
// Candidates are fetched once, and only when text contains at least one token.
func Extract(finder Finder, text, boardID string) ([]string, error) {
	tokens := Tokens(text)
	if len(tokens) == 0 {
		return []string{}, nil
	}

	candidates, err := finder.FindMentionableUsers(boardID)
	if err != nil {
		return nil, errors.Wrap(err, "could not fetch mentionable users")
	}
	return resolve(tokens, candidates), nil
}

// Mentionables returns the autocomplete entries of the given users.
func Mentionables(users []*model.User) []Mentionable {
	list := make([]Mentionable, len(users))
	for i, u := range users {
		list[i] = Mentionable{
			ID:     u.ID,
			Name:   u.Name,
			Email:  u.Email,
			Search: Normalize(u.Name),
		}
	}
	return list
}

type mentionables []Mentionable

func (m mentionables) String(i int) string {
	return m[i].Search
}

func (m mentionables) Len() int {
	return len(m)
}

// Search filters the autocomplete entries with a fuzzy match on the search key, best matches first.
// An empty query returns list unchanged.
func Search(list []Mentionable, query string) []Mentionable {
	query = Normalize(strings.TrimPrefix(query, "@"))
	if query == "" {
		return list
	}

	matches := fuzzy.FindFrom(query, mentionables(list))
	result := make([]Mentionable, len(matches))
	for i, m := range matches {
		result[i] = list[m.Index]
	}
	return result
}
