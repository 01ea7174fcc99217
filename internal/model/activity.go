package model

// Activity kinds.
const (
	ActivityCreated            = "created"
	ActivityUpdated            = "updated"
	ActivityStatusChanged      = "status_changed"
	ActivityAssigned           = "assigned"
	ActivityDescriptionChanged = "description_changed"
	ActivityReproStepsChanged  = "repro_steps_changed"
)

// Unassigned is the display value of a null group or assignee reference.
const Unassigned = "Unassigned"

// An ItemActivity represents a database record.
// Activities are immutable and only removed alongside their item.
type ItemActivity struct {
	Base `msgpack:",inline" storm:"inline"`

	ItemID   string `json:"item_id"   msgpack:"item_id"   storm:"index"`
	UserID   string `json:"user_id"   msgpack:"user_id"   storm:"index"`
	Type     string `json:"type"      msgpack:"type"`
	Field    string `json:"field"     msgpack:"field"`
	OldValue string `json:"old_value" msgpack:"old_value"`
	NewValue string `json:"new_value" msgpack:"new_value"`
}

// An ItemComment represents a database record.
type ItemComment struct {
	Base `msgpack:",inline" storm:"inline"`

	ItemID string `json:"item_id" msgpack:"item_id" storm:"index"`
	UserID string `json:"user_id" msgpack:"user_id" storm:"index"`
	Body   string `json:"body"    msgpack:"body"`
}
