package service_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/ticketboard/ticketboard/internal/model"
	"github.com/ticketboard/ticketboard/internal/server/service"
	"github.com/ticketboard/ticketboard/pkg/optional"
)

func snapshot() service.Snapshot {
	return service.Snapshot{
		Name:        "Login broken",
		GroupID:     "g1",
		ItemType:    model.ItemTask,
		Description: "Steps: open the page",
		AssigneeID:  "a",
	}
}

func fields(changes []service.Change) []string {
	f := make([]string, len(changes))
	for i, c := range changes {
		f[i] = c.Field
	}
	return f
}

func TestDetect_NoChange(t *testing.T) {
	old := snapshot()

	next, changes := service.Detect(old, service.ItemPatch{})
	assert.Equal(t, old, next)
	assert.Empty(t, changes)

	next, changes = service.Detect(old, service.ItemPatch{
		Name:       optional.Of("Login broken"),
		AssigneeID: optional.Of("a"),
		ReproSteps: optional.Null[string](), // null equals ""
	})
	assert.Equal(t, old, next)
	assert.Empty(t, changes)
}

func TestDetect_FieldOrderAndKinds(t *testing.T) {
	old := snapshot()
	patch := service.ItemPatch{
		AssigneeID:  optional.Of("b"),
		Description: optional.Of("new description"),
		GroupID:     optional.Of("g2"),
		Name:        optional.Of("Login fixed"),
	}

	next, changes := service.Detect(old, patch)
	assert.Equal(t, []string{"name", "group_id", "description", "assignee_id"}, fields(changes))
	assert.Equal(t, []service.Change{
		{Field: "name", Kind: model.ActivityUpdated, Old: "Login broken", New: "Login fixed"},
		{Field: "group_id", Kind: model.ActivityStatusChanged, Old: "g1", New: "g2"},
		{Field: "description", Kind: model.ActivityDescriptionChanged, Old: "Steps: open the page", New: "new description"},
		{Field: "assignee_id", Kind: model.ActivityAssigned, Old: "a", New: "b"},
	}, changes)
	assert.Equal(t, "Login fixed", next.Name)
	assert.Equal(t, "b", next.AssigneeID)

	// Same update twice is idempotent.
	_, changes = service.Detect(next, patch)
	assert.Empty(t, changes)
}

func TestDetect_NullClearsReference(t *testing.T) {
	next, changes := service.Detect(snapshot(), service.ItemPatch{
		AssigneeID: optional.Null[string](),
		GroupID:    optional.Of(""),
	})
	assert.Equal(t, "", next.AssigneeID)
	assert.Equal(t, "", next.GroupID)
	assert.Equal(t, []service.Change{
		{Field: "group_id", Kind: model.ActivityStatusChanged, Old: "g1", New: ""},
		{Field: "assignee_id", Kind: model.ActivityAssigned, Old: "a", New: ""},
	}, changes)
}

func TestDetect_TaskToBugCopiesDescription(t *testing.T) {
	next, changes := service.Detect(snapshot(), service.ItemPatch{
		ItemType: optional.Of(model.ItemBug),
	})
	assert.Equal(t, "Steps: open the page", next.ReproSteps)
	assert.Equal(t, "Steps: open the page", next.Description)
	assert.Equal(t, []service.Change{
		{Field: "item_type", Kind: model.ActivityUpdated, Old: "task", New: "bug"},
		{Field: "repro_steps", Kind: model.ActivityReproStepsChanged, Old: "", New: "Steps: open the page"},
	}, changes)
}

func TestDetect_BugToTaskCopiesReproSteps(t *testing.T) {
	old := snapshot()
	old.ItemType = model.ItemBug
	old.Description = ""
	old.ReproSteps = "1. click"

	next, changes := service.Detect(old, service.ItemPatch{
		ItemType: optional.Of(model.ItemTask),
	})
	assert.Equal(t, "1. click", next.Description)
	assert.Equal(t, []string{"item_type", "description"}, fields(changes))
}

func TestDetect_TypeSwitchCopyIsNotAChangeWhenEqual(t *testing.T) {
	old := snapshot()
	old.ReproSteps = old.Description

	_, changes := service.Detect(old, service.ItemPatch{
		ItemType: optional.Of(model.ItemBug),
	})
	assert.Equal(t, []string{"item_type"}, fields(changes))
}

func TestDetect_TypeSwitchKeepsSuppliedValue(t *testing.T) {
	next, changes := service.Detect(snapshot(), service.ItemPatch{
		ItemType:   optional.Of(model.ItemBug),
		ReproSteps: optional.Of("explicit"),
	})
	assert.Equal(t, "explicit", next.ReproSteps)
	assert.Equal(t, []string{"item_type", "repro_steps"}, fields(changes))

	// An explicit null is a supplied value too.
	next, changes = service.Detect(snapshot(), service.ItemPatch{
		ItemType:   optional.Of(model.ItemBug),
		ReproSteps: optional.Null[string](),
	})
	assert.Equal(t, "", next.ReproSteps)
	assert.Equal(t, []string{"item_type"}, fields(changes))
}

func TestDetect_SameTypeNoCopy(t *testing.T) {
	next, changes := service.Detect(snapshot(), service.ItemPatch{
		ItemType: optional.Of(model.ItemTask),
	})
	assert.Equal(t, "", next.ReproSteps)
	assert.Empty(t, changes)
}

func TestChanged(t *testing.T) {
	_, changes := service.Detect(snapshot(), service.ItemPatch{Description: optional.Of("cc @alice")})

	c, ok := service.Changed(changes, service.FieldDescription)
	assert.True(t, ok)
	assert.Equal(t, "cc @alice", c.New)

	_, ok = service.Changed(changes, service.FieldAssigneeID)
	assert.False(t, ok)
}
