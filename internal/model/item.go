package model

// Item types.
const (
	ItemTask = "task"
	ItemBug  = "bug"
)

// An Item represents a database record.
// Nullable references (GroupID, AssigneeID) are stored as empty strings.
type Item struct {
	Base `msgpack:",inline" storm:"inline"`

	BoardID     string   `json:"board_id"    msgpack:"board_id"    storm:"index"`
	Number      int      `json:"number"      msgpack:"number"      storm:"index"`
	Name        string   `json:"name"        msgpack:"name"`
	ItemType    string   `json:"item_type"   msgpack:"item_type"`
	Description string   `json:"description" msgpack:"description"`
	ReproSteps  string   `json:"repro_steps" msgpack:"repro_steps"`
	GroupID     string   `json:"group_id"    msgpack:"group_id"    storm:"index"`
	AssigneeID  string   `json:"assignee_id" msgpack:"assignee_id" storm:"index"`
	Position    int      `json:"position"    msgpack:"position"`
	Attachments []string `json:"attachments" msgpack:"attachments"`
	CreatedBy   string   `json:"created_by"  msgpack:"created_by"`
	UpdatedBy   string   `json:"updated_by"  msgpack:"updated_by"`
}

// IsBug returns true if the item is a bug.
func (m *Item) IsBug() bool {
	return m.ItemType == ItemBug
}

// Kind returns the display kind of the item.
func (m *Item) Kind() string {
	if m.IsBug() {
		return "Bug"
	}
	return "Task"
}
