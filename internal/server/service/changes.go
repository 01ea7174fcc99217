package service

import (
	"github.com/ticketboard/ticketboard/internal/model"
	"github.com/ticketboard/ticketboard/pkg/optional"
)

// Tracked fields of an item.
const (
	FieldName        = "name"
	FieldGroupID     = "group_id"
	FieldItemType    = "item_type"
	FieldDescription = "description"
	FieldReproSteps  = "repro_steps"
	FieldAssigneeID  = "assignee_id"
)

type (
	// A Snapshot holds the tracked fields of an item.
	// Null references and null texts are empty strings.
	Snapshot struct {
		Name        string
		GroupID     string
		ItemType    string
		Description string
		ReproSteps  string
		AssigneeID  string
	}

	// An ItemPatch is a partial update of an item.
	// Absent fields are left untouched, fields supplied as null are cleared.
	ItemPatch struct {
		Name        optional.Value[string] `json:"name"`
		GroupID     optional.Value[string] `json:"group_id"`
		ItemType    optional.Value[string] `json:"item_type"`
		Description optional.Value[string] `json:"description"`
		ReproSteps  optional.Value[string] `json:"repro_steps"`
		AssigneeID  optional.Value[string] `json:"assignee_id"`
	}

	// A Change is a tracked field whose value differs after a patch.
	Change struct {
		Field string
		Kind  string
		Old   string
		New   string
	}
)

// SnapshotOf returns the tracked fields of item.
func SnapshotOf(item *model.Item) Snapshot {
	return Snapshot{
		Name:        item.Name,
		GroupID:     item.GroupID,
		ItemType:    item.ItemType,
		Description: item.Description,
		ReproSteps:  item.ReproSteps,
		AssigneeID:  item.AssigneeID,
	}
}

// Apply copies the tracked fields into item.
func (s Snapshot) Apply(item *model.Item) {
	item.Name = s.Name
	item.GroupID = s.GroupID
	item.ItemType = s.ItemType
	item.Description = s.Description
	item.ReproSteps = s.ReproSteps
	item.AssigneeID = s.AssigneeID
}

// IsEmpty returns true if no field is supplied.
func (p ItemPatch) IsEmpty() bool {
	return !p.Name.IsSet() &&
		!p.GroupID.IsSet() &&
		!p.ItemType.IsSet() &&
		!p.Description.IsSet() &&
		!p.ReproSteps.IsSet() &&
		!p.AssigneeID.IsSet()
}

// Detect applies patch on old and returns the resulting snapshot with one change per tracked field
// whose value actually differs, in field order: name, group_id, item_type, description, repro_steps, assignee_id.
//
// Switching a task to a bug copies the description into the repro steps unless repro_steps is supplied,
// and switching a bug to a task copies the repro steps into the description unless description is supplied.
// The copy is diffed like any supplied value.
func Detect(old Snapshot, patch ItemPatch) (Snapshot, []Change) {
	if kind, ok := patch.ItemType.Get(); ok && kind != old.ItemType {
		switch kind {
		case model.ItemBug:
			if !patch.ReproSteps.IsSet() {
				patch.ReproSteps = optional.Of(old.Description)
			}
		case model.ItemTask:
			if !patch.Description.IsSet() {
				patch.Description = optional.Of(old.ReproSteps)
			}
		}
	}

	next := old
	changes := make([]Change, 0, 6)
	track := func(field, kind string, value optional.Value[string], current *string) {
		if !value.IsSet() {
			return
		}

		v := value.OrZero() // null and "" are the same value
		if v == *current {
			return
		}

		changes = append(changes, Change{
			Field: field,
			Kind:  kind,
			Old:   *current,
			New:   v,
		})
		*current = v
	}

	track(FieldName, model.ActivityUpdated, patch.Name, &next.Name)
	track(FieldGroupID, model.ActivityStatusChanged, patch.GroupID, &next.GroupID)
	track(FieldItemType, model.ActivityUpdated, patch.ItemType, &next.ItemType)
	track(FieldDescription, model.ActivityDescriptionChanged, patch.Description, &next.Description)
	track(FieldReproSteps, model.ActivityReproStepsChanged, patch.ReproSteps, &next.ReproSteps)
	track(FieldAssigneeID, model.ActivityAssigned, patch.AssigneeID, &next.AssigneeID)

	return next, changes
}

// Changed returns the change of the given field, if any.
func Changed(changes []Change, field string) (Change, bool) {
	for _, c := range changes {
		if c.Field == field {
			return c, true
		}
	}
	return Change{}, false
}
