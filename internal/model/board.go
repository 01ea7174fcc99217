package model

// Board view types.
const (
	ViewKanban = "kanban"
	ViewTable  = "table"
)

// DefaultGroups are the groups created alongside a new board.
var DefaultGroups = []string{
	"New",
	"In Progress",
	"Ready for Stage",
	"Ready for QA",
	"Rejected by QA",
	"Closed",
}

// A Board represents a database record.
type Board struct {
	Base `msgpack:",inline" storm:"inline"`

	Name         string `json:"name"        msgpack:"name"          storm:"index"`
	Description  string `json:"description" msgpack:"description"`
	ViewType     string `json:"view_type"   msgpack:"view_type"`
	CreatedBy    string `json:"created_by"  msgpack:"created_by"    storm:"index"`
	ItemSequence int    `json:"-"           msgpack:"item_sequence" cbor:"item_sequence"`
}

// A Group represents a database record.
// Groups are the status columns of a kanban board.
type Group struct {
	Base `msgpack:",inline" storm:"inline"`

	BoardID  string `json:"board_id" msgpack:"board_id" storm:"index"`
	Name     string `json:"name"     msgpack:"name"`
	Position int    `json:"position" msgpack:"position"`
}

// Column types.
const (
	ColumnStatus = "status"
	ColumnText   = "text"
)

// A Column represents a database record.
// Columns describe the table view schema.
type Column struct {
	Base `msgpack:",inline" storm:"inline"`

	BoardID  string         `json:"board_id" msgpack:"board_id" storm:"index"`
	Name     string         `json:"name"     msgpack:"name"`
	Type     string         `json:"type"     msgpack:"type"`
	Position int            `json:"position" msgpack:"position"`
	Settings ColumnSettings `json:"settings" msgpack:"settings"`
}

// ColumnSettings holds the column type specific settings.
type ColumnSettings struct {
	Options []string `json:"options,omitempty" msgpack:"options,omitempty"`
}

// A Membership represents a database record.
// It grants a user access to a board.
type Membership struct {
	Base `msgpack:",inline" storm:"inline"`

	BoardID string `json:"board_id" msgpack:"board_id" storm:"index"`
	UserID  string `json:"user_id"  msgpack:"user_id"  storm:"index"`
}

// A BoardFilter represents a database record.
// It is the saved kanban/table filter of a user for a board.
type BoardFilter struct {
	Base `msgpack:",inline" storm:"inline"`

	UserID           string `json:"user_id"           msgpack:"user_id"           storm:"index"`
	BoardID          string `json:"board_id"          msgpack:"board_id"          storm:"index"`
	AssigneeID       string `json:"assignee_id"       msgpack:"assignee_id"`
	FilterUnassigned bool   `json:"filter_unassigned" msgpack:"filter_unassigned"`
	ItemType         string `json:"item_type"         msgpack:"item_type"`
}
