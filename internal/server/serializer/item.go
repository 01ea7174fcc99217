package serializer

import (
	"github.com/dustin/go-humanize"
	"github.com/ticketboard/ticketboard/internal/model"
)

// Item serializes the render of an item.
// Null references are rendered as JSON null.
func Item(m *model.Item) map[string]any {
	attachments := m.Attachments
	if attachments == nil {
		attachments = []string{}
	}

	updatedBy := m.UpdatedBy
	if updatedBy == "" {
		updatedBy = m.CreatedBy
	}

	return map[string]any{
		"id":          m.ID,
		"created_at":  m.CreatedAt,
		"updated_at":  m.UpdatedAt,
		"board_id":    m.BoardID,
		"number":      m.Number,
		"name":        m.Name,
		"item_type":   m.ItemType,
		"kind":        m.Kind(),
		"description": nullable(m.Description),
		"repro_steps": nullable(m.ReproSteps),
		"group_id":    nullable(m.GroupID),
		"assignee_id": nullable(m.AssigneeID),
		"position":    m.Position,
		"attachments": attachments,
		"created_by":  m.CreatedBy,
		"updated_by":  updatedBy,
	}
}

// Items serializes the render of items.
func Items(m []*model.Item) []map[string]any {
	items := make([]map[string]any, len(m))
	for i, item := range m {
		items[i] = Item(item)
	}
	return items
}

// Activity serializes the render of an activity.
// users resolves the acting user's name.
func Activity(m *model.ItemActivity, users map[string]*model.User) map[string]any {
	r := map[string]any{
		"id":         m.ID,
		"created_at": m.CreatedAt,
		"user_id":    m.UserID,
		"user_name":  nil,
		"type":       m.Type,
		"field":      nullable(m.Field),
		"old_value":  nullable(m.OldValue),
		"new_value":  nullable(m.NewValue),
		"ago":        "",
	}
	if u, ok := users[m.UserID]; ok {
		r["user_name"] = u.Name
	}
	if m.CreatedAt != nil {
		r["ago"] = humanize.Time(*m.CreatedAt)
	}
	return r
}

// Activities serializes the render of activities.
func Activities(m []*model.ItemActivity, users map[string]*model.User) []map[string]any {
	activities := make([]map[string]any, len(m))
	for i, a := range m {
		activities[i] = Activity(a, users)
	}
	return activities
}

// Comment serializes the render of a comment.
func Comment(m *model.ItemComment, users map[string]*model.User) map[string]any {
	r := map[string]any{
		"id":         m.ID,
		"created_at": m.CreatedAt,
		"user_id":    m.UserID,
		"user_name":  nil,
		"body":       m.Body,
		"ago":        "",
	}
	if u, ok := users[m.UserID]; ok {
		r["user_name"] = u.Name
	}
	if m.CreatedAt != nil {
		r["ago"] = humanize.Time(*m.CreatedAt)
	}
	return r
}

// Comments serializes the render of comments.
func Comments(m []*model.ItemComment, users map[string]*model.User) []map[string]any {
	comments := make([]map[string]any, len(m))
	for i, c := range m {
		comments[i] = Comment(c, users)
	}
	return comments
}
