package serializer

import "github.com/ticketboard/ticketboard/internal/model"

// Session serializes the render of a session.
func Session(m *model.Session) map[string]any {
	return map[string]any{
		"id":         m.ID,
		"created_at": m.CreatedAt,
		"updated_at": m.UpdatedAt,
		"expire_at":  m.ExpireAt.UTC(),
		"user_agent": m.UserAgent,
		"current":    m.Current,
	}
}

// Sessions serializes the render of sessions.
func Sessions(m []*model.Session) []map[string]any {
	sessions := make([]map[string]any, len(m))
	for i, s := range m {
		sessions[i] = Session(s)
	}
	return sessions
}
