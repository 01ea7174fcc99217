package serializer

import "github.com/ticketboard/ticketboard/internal/model"

// Board serializes the render of a board.
func Board(m *model.Board) map[string]any {
	return map[string]any{
		"id":          m.ID,
		"created_at":  m.CreatedAt,
		"updated_at":  m.UpdatedAt,
		"name":        m.Name,
		"description": m.Description,
		"view_type":   m.ViewType,
		"created_by":  m.CreatedBy,
	}
}

// Group serializes the render of a group.
func Group(m *model.Group) map[string]any {
	return map[string]any{
		"id":       m.ID,
		"name":     m.Name,
		"position": m.Position,
	}
}

// Groups serializes the render of groups.
func Groups(m []*model.Group) []map[string]any {
	groups := make([]map[string]any, len(m))
	for i, g := range m {
		groups[i] = Group(g)
	}
	return groups
}

// Column serializes the render of a column.
func Column(m *model.Column) map[string]any {
	return map[string]any{
		"id":       m.ID,
		"name":     m.Name,
		"type":     m.Type,
		"position": m.Position,
		"settings": m.Settings,
	}
}

// Columns serializes the render of columns.
func Columns(m []*model.Column) []map[string]any {
	columns := make([]map[string]any, len(m))
	for i, c := range m {
		columns[i] = Column(c)
	}
	return columns
}

// Filter serializes the render of the effective board filter.
func Filter(m *model.BoardFilter) map[string]any {
	assignee := any(nullable(m.AssigneeID))
	if m.FilterUnassigned {
		assignee = "unassigned"
	}

	return map[string]any{
		"assignee": assignee,
		"type":     nullable(m.ItemType),
	}
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
