package serializer

import "github.com/ticketboard/ticketboard/internal/model"

// User serializes the render of a user.
func User(m *model.User) map[string]any {
	return map[string]any{
		"id":         m.ID,
		"created_at": m.CreatedAt,
		"updated_at": m.UpdatedAt,
		"name":       m.Name,
		"email":      m.Email,
		"is_admin":   m.Admin,
	}
}

// Users serializes the render of users.
func Users(m []*model.User) []map[string]any {
	users := make([]map[string]any, len(m))
	for i, u := range m {
		users[i] = User(u)
	}
	return users
}
