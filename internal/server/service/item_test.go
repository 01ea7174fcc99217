package service_test

import (
	"bytes"
	"image"
	"image/png"
	"strings"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ticketboard/ticketboard/internal/model"
	"github.com/ticketboard/ticketboard/internal/server/service"
	"github.com/ticketboard/ticketboard/internal/tberror"
	"github.com/ticketboard/ticketboard/pkg/optional"
)

func TestItemService_Create(t *testing.T) {
	e := setup(t)
	groups := e.groups(t)

	first := e.create(t, e.alice, "First")
	assert.Equal(t, 1, first.Number)
	assert.Equal(t, model.ItemTask, first.ItemType)
	assert.Equal(t, groups[0].ID, first.GroupID)
	assert.Equal(t, 0, first.Position)
	assert.Equal(t, e.alice.ID, first.CreatedBy)

	second := e.create(t, e.alice, "Second")
	assert.Equal(t, 2, second.Number)
	assert.Equal(t, 1, second.Position)

	activities := e.activities(t, first)
	require.Len(t, activities, 1)
	assert.Equal(t, model.ActivityCreated, activities[0].Type)
	assert.Equal(t, e.alice.ID, activities[0].UserID)

	bug, err := e.items.Create(e.alice, e.board, service.CreateItemParams{
		Name:     "Crash",
		ItemType: optional.Of(model.ItemBug),
		GroupID:  optional.Of(groups[2].ID),
	})
	require.NoError(t, err)
	assert.Equal(t, 3, bug.Number)
	assert.Equal(t, groups[2].ID, bug.GroupID)
	assert.Equal(t, 0, bug.Position)

	// Numbers are never reused.
	require.NoError(t, e.items.Delete(e.alice, bug))
	next := e.create(t, e.alice, "Next")
	assert.Equal(t, 4, next.Number)

	e.notifier.Wait()
	assert.Empty(t, e.mailer.Sent())
}

func TestItemService_Create_Invalid(t *testing.T) {
	e := setup(t)
	other, err := e.boards.Create(e.admin, service.CreateBoardParams{Name: "Other"})
	require.NoError(t, err)
	otherGroups, err := e.db.FindGroupsByBoardID(other.ID)
	require.NoError(t, err)

	cases := []service.CreateItemParams{
		{Name: "  "},
		{Name: strings.Repeat("é", 256)},
		{Name: "Kind", ItemType: optional.Of("epic")},
		{Name: "Group", GroupID: optional.Of(otherGroups[0].ID)},
		{Name: "Assignee", AssigneeID: optional.Of("ghost")},
	}
	for _, params := range cases {
		_, err := e.items.Create(e.alice, e.board, params)
		require.Error(t, err)
		assert.Equal(t, 422, tberror.StatusCode(err))
	}

	n, err := e.db.CountItemsByBoardID(e.board.ID)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestItemService_Create_AssignmentNotification(t *testing.T) {
	e := setup(t)

	item, err := e.items.Create(e.alice, e.board, service.CreateItemParams{
		Name:       "Review",
		AssigneeID: optional.Of(e.bob.ID),
	})
	require.NoError(t, err)

	_, err = e.items.Create(e.alice, e.board, service.CreateItemParams{
		Name:       "Mine",
		AssigneeID: optional.Of(e.alice.ID),
	})
	require.NoError(t, err)

	e.notifier.Wait()
	sent := e.mailer.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, "bob@example.com", sent[0].To)
	assert.Equal(t, "You were assigned to Task #1", sent[0].Subject)
	assert.Contains(t, sent[0].HTML, "/boards/"+e.board.ID+"/ticket/1?view=kanban")
	assert.Equal(t, 1, item.Number)
}

func TestItemService_Update_MentionEndToEnd(t *testing.T) {
	e := setup(t)
	item := e.create(t, e.admin, "Ticket")

	update, err := e.items.Update(e.admin, e.board, item, service.ItemPatch{
		Description: optional.Of("cc @alice"),
	})
	require.NoError(t, err)
	require.Len(t, update.Activities, 1)
	assert.Equal(t, model.ActivityDescriptionChanged, update.Activities[0].Type)
	assert.Equal(t, "description", update.Activities[0].Field)
	assert.Equal(t, "", update.Activities[0].OldValue)
	assert.Equal(t, "cc @alice", update.Activities[0].NewValue)
	assert.Equal(t, e.admin.ID, update.Item.UpdatedBy)

	stored, err := e.db.FindItem(item.ID)
	require.NoError(t, err)
	assert.Equal(t, "cc @alice", stored.Description)

	e.notifier.Wait()
	sent := e.mailer.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, "alice@example.com", sent[0].To)
	assert.Equal(t, "You were mentioned in Task #1", sent[0].Subject)
	assert.Contains(t, sent[0].HTML, "cc @alice")
	assert.Contains(t, sent[0].HTML, "https://tickets.example.com/boards/"+e.board.ID+"/ticket/1?view=kanban")
	assert.Contains(t, sent[0].HTML, "Admin User")
	assert.Contains(t, sent[0].HTML, "Sprint")
}

func TestItemService_Update_Idempotent(t *testing.T) {
	e := setup(t)
	item := e.create(t, e.alice, "Ticket")
	patch := service.ItemPatch{
		Name:        optional.Of("Renamed"),
		Description: optional.Of("text"),
	}

	update, err := e.items.Update(e.alice, e.board, item, patch)
	require.NoError(t, err)
	assert.Len(t, update.Activities, 2)

	update, err = e.items.Update(e.alice, e.board, update.Item, patch)
	require.NoError(t, err)
	assert.Empty(t, update.Activities)

	// created + 2 updates
	assert.Len(t, e.activities(t, item), 3)
}

func TestItemService_Update_TypeSwitchCopy(t *testing.T) {
	e := setup(t)
	item := e.create(t, e.alice, "Ticket")

	update, err := e.items.Update(e.alice, e.board, item, service.ItemPatch{Description: optional.Of("open the page")})
	require.NoError(t, err)

	update, err = e.items.Update(e.alice, e.board, update.Item, service.ItemPatch{ItemType: optional.Of(model.ItemBug)})
	require.NoError(t, err)
	assert.Equal(t, model.ItemBug, update.Item.ItemType)
	assert.Equal(t, "open the page", update.Item.ReproSteps)
	require.Len(t, update.Activities, 2)
	assert.Equal(t, "item_type", update.Activities[0].Field)
	assert.Equal(t, "repro_steps", update.Activities[1].Field)
	assert.Equal(t, model.ActivityReproStepsChanged, update.Activities[1].Type)

	activities := e.activities(t, item)
	assert.Equal(t, "repro_steps", activities[0].Field, "newest first")
	assert.Equal(t, "item_type", activities[1].Field)

	// Back to task with explicit description: no copy.
	update, err = e.items.Update(e.alice, e.board, update.Item, service.ItemPatch{
		ItemType:    optional.Of(model.ItemTask),
		Description: optional.Of("open the page"),
	})
	require.NoError(t, err)
	require.Len(t, update.Activities, 1)
	assert.Equal(t, "item_type", update.Activities[0].Field)
}

func TestItemService_Update_Assignment(t *testing.T) {
	e := setup(t)
	groups := e.groups(t)
	item, err := e.items.Create(e.alice, e.board, service.CreateItemParams{
		Name:       "Ticket",
		AssigneeID: optional.Of(e.alice.ID),
	})
	require.NoError(t, err)

	// A -> A
	update, err := e.items.Update(e.bob, e.board, item, service.ItemPatch{AssigneeID: optional.Of(e.alice.ID)})
	require.NoError(t, err)
	assert.Empty(t, update.Activities)

	// A -> Carol by Bob
	update, err = e.items.Update(e.bob, e.board, update.Item, service.ItemPatch{
		AssigneeID: optional.Of(e.carol.ID),
		GroupID:    optional.Of(groups[1].ID),
	})
	require.NoError(t, err)
	require.Len(t, update.Activities, 2)
	assert.Equal(t, model.ActivityStatusChanged, update.Activities[0].Type)
	assert.Equal(t, "New", update.Activities[0].OldValue)
	assert.Equal(t, "In Progress", update.Activities[0].NewValue)
	assert.Equal(t, model.ActivityAssigned, update.Activities[1].Type)
	assert.Equal(t, "Alice Liddell", update.Activities[1].OldValue)
	assert.Equal(t, "Carol Danvers", update.Activities[1].NewValue)

	// Self assignment
	update, err = e.items.Update(e.bob, e.board, update.Item, service.ItemPatch{AssigneeID: optional.Of(e.bob.ID)})
	require.NoError(t, err)
	require.Len(t, update.Activities, 1)

	// Unassign
	update, err = e.items.Update(e.bob, e.board, update.Item, service.ItemPatch{AssigneeID: optional.Null[string]()})
	require.NoError(t, err)
	require.Len(t, update.Activities, 1)
	assert.Equal(t, "Bob Martin", update.Activities[0].OldValue)
	assert.Equal(t, model.Unassigned, update.Activities[0].NewValue)
	assert.Equal(t, "", update.Item.AssigneeID)

	e.notifier.Wait()
	sent := e.mailer.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, "carol@example.com", sent[0].To)
	assert.Equal(t, "You were assigned to Task #1", sent[0].Subject)
}

func TestItemService_Update_Invalid(t *testing.T) {
	e := setup(t)
	other, err := e.boards.Create(e.admin, service.CreateBoardParams{Name: "Other"})
	require.NoError(t, err)
	otherGroups, err := e.db.FindGroupsByBoardID(other.ID)
	require.NoError(t, err)

	item := e.create(t, e.alice, "Ticket")

	cases := []service.ItemPatch{
		{Name: optional.Null[string]()},
		{Name: optional.Of(""), Description: optional.Of("valid")},
		{ItemType: optional.Of("story")},
		{ItemType: optional.Null[string]()},
		{Description: optional.Of(strings.Repeat("x", 10001))},
		{ReproSteps: optional.Of(strings.Repeat("x", 10001))},
		{GroupID: optional.Of(otherGroups[0].ID)},
		{GroupID: optional.Of("missing")},
		{Description: optional.Of("@bob"), AssigneeID: optional.Of("missing")},
	}
	for _, patch := range cases {
		_, err := e.items.Update(e.alice, e.board, item, patch)
		require.Error(t, err)
		assert.Equal(t, 422, tberror.StatusCode(err))
	}

	stored, err := e.db.FindItem(item.ID)
	require.NoError(t, err)
	assert.Equal(t, item.Name, stored.Name)
	assert.Equal(t, "", stored.Description)
	assert.Len(t, e.activities(t, item), 1)

	e.notifier.Wait()
	assert.Empty(t, e.mailer.Sent())
}

func TestItemService_Update_MentionFailureIsolated(t *testing.T) {
	e := setup(t)
	e.mailer.fail["bob@example.com"] = true
	require.NoError(t, e.boards.SetMembers(e.admin, e.board, []string{e.alice.ID, e.bob.ID, e.carol.ID}))

	item := e.create(t, e.admin, "Ticket")
	update, err := e.items.Update(e.admin, e.board, item, service.ItemPatch{
		ReproSteps: optional.Of("@alice @bob @carol please check"),
	})
	require.NoError(t, err)
	require.Len(t, update.Activities, 1)

	e.notifier.Wait()
	sent := e.mailer.Sent()
	require.Len(t, sent, 2)
	recipients := []string{sent[0].To, sent[1].To}
	assert.ElementsMatch(t, []string{"alice@example.com", "carol@example.com"}, recipients)

	failed := false
	for _, entry := range e.logs.AllEntries() {
		if entry.Message == "could not send notification" && entry.Data["to"] == "bob@example.com" {
			failed = true
		}
	}
	assert.True(t, failed, "the failed send is logged")
}

func TestItemService_Update_NoSelfMention(t *testing.T) {
	e := setup(t)
	item := e.create(t, e.alice, "Ticket")

	_, err := e.items.Update(e.alice, e.board, item, service.ItemPatch{
		Description: optional.Of("note to self @alice, ping @zzz"),
	})
	require.NoError(t, err)

	e.notifier.Wait()
	assert.Empty(t, e.mailer.Sent())
}

func TestItemService_Move(t *testing.T) {
	e := setup(t)
	groups := e.groups(t)

	a := e.create(t, e.alice, "A")
	b := e.create(t, e.alice, "B")

	update, err := e.items.Move(e.alice, e.board, a, service.MoveItemParams{GroupID: groups[3].ID})
	require.NoError(t, err)
	assert.Equal(t, groups[3].ID, update.Item.GroupID)
	assert.Equal(t, 0, update.Item.Position)
	require.Len(t, update.Activities, 1)
	assert.Equal(t, model.ActivityStatusChanged, update.Activities[0].Type)
	assert.Equal(t, "New", update.Activities[0].OldValue)
	assert.Equal(t, "Ready for QA", update.Activities[0].NewValue)

	update, err = e.items.Move(e.alice, e.board, b, service.MoveItemParams{GroupID: groups[3].ID})
	require.NoError(t, err)
	assert.Equal(t, 1, update.Item.Position)

	// Reorder inside the same group: no activity, clamped to the group bounds.
	position := 5
	update, err = e.items.Move(e.alice, e.board, update.Item, service.MoveItemParams{GroupID: groups[3].ID, Position: &position})
	require.NoError(t, err)
	assert.Equal(t, 1, update.Item.Position)
	assert.Empty(t, update.Activities)

	_, err = e.items.Move(e.alice, e.board, a, service.MoveItemParams{})
	assert.Equal(t, 422, tberror.StatusCode(err))
}

func TestItemService_MoveReorder(t *testing.T) {
	e := setup(t)
	groups := e.groups(t)

	e.create(t, e.alice, "A")
	e.create(t, e.alice, "B")
	c := e.create(t, e.alice, "C")

	order := func() (names []string, positions []int) {
		items, err := e.db.FindItemsByBoardID(e.board.ID)
		require.NoError(t, err)
		for _, item := range items {
			if item.GroupID == groups[0].ID {
				names = append(names, item.Name)
				positions = append(positions, item.Position)
			}
		}
		return names, positions
	}

	top := 0
	update, err := e.items.Move(e.alice, e.board, c, service.MoveItemParams{GroupID: groups[0].ID, Position: &top})
	require.NoError(t, err)
	assert.Equal(t, 0, update.Item.Position)

	names, positions := order()
	assert.Equal(t, []string{"C", "A", "B"}, names)
	assert.Equal(t, []int{0, 1, 2}, positions)

	b, err := e.db.FindItemByNumber(e.board.ID, 2)
	require.NoError(t, err)
	middle := 1
	_, err = e.items.Move(e.alice, e.board, b, service.MoveItemParams{GroupID: groups[0].ID, Position: &middle})
	require.NoError(t, err)

	names, positions = order()
	assert.Equal(t, []string{"C", "B", "A"}, names)
	assert.Equal(t, []int{0, 1, 2}, positions)

	// Dropped between the items of another group.
	a, err := e.db.FindItemByNumber(e.board.ID, 1)
	require.NoError(t, err)
	update, err = e.items.Move(e.alice, e.board, a, service.MoveItemParams{GroupID: groups[1].ID, Position: &middle})
	require.NoError(t, err)
	assert.Equal(t, 0, update.Item.Position)
	require.Len(t, update.Activities, 1)
	assert.Equal(t, model.ActivityStatusChanged, update.Activities[0].Type)

	names, _ = order()
	assert.Equal(t, []string{"C", "B"}, names)
}

func pngUpload(t *testing.T) *bytes.Reader {
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 8, 8))))
	return bytes.NewReader(buf.Bytes())
}

func TestItemService_Attachments(t *testing.T) {
	e := setup(t)
	item := e.create(t, e.alice, "Screenshot")

	updated, p, err := e.items.AddAttachment(e.alice, item, pngUpload(t))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(p, "item-attachments/"+item.ID+"/"))
	assert.Equal(t, []string{p}, updated.Attachments)

	content, contentType, err := e.items.Attachment(updated, p[strings.LastIndex(p, "/")+1:])
	require.NoError(t, err)
	assert.Equal(t, "image/png", contentType)
	assert.NotEmpty(t, content)

	_, _, err = e.items.Attachment(updated, "unknown.png")
	assert.Equal(t, 404, tberror.StatusCode(err))

	_, _, err = e.items.AddAttachment(e.alice, updated, strings.NewReader("not an image"))
	assert.Equal(t, 422, tberror.StatusCode(err))

	_, err = e.items.RemoveAttachment(e.alice, updated, "item-attachments/other/file.png")
	assert.Equal(t, 422, tberror.StatusCode(err))

	updated, err = e.items.RemoveAttachment(e.alice, updated, p)
	require.NoError(t, err)
	assert.Empty(t, updated.Attachments)

	exists, err := afero.Exists(e.fs, p)
	require.NoError(t, err)
	assert.False(t, exists)

	// No activity is recorded for attachments.
	assert.Len(t, e.activities(t, item), 1)
}

func TestItemService_Delete(t *testing.T) {
	e := setup(t)
	item := e.create(t, e.alice, "Doomed")

	updated, p, err := e.items.AddAttachment(e.alice, item, pngUpload(t))
	require.NoError(t, err)
	_, err = e.comments.Create(e.bob, e.board, updated, service.CreateCommentParams{Body: "bye"})
	require.NoError(t, err)

	require.NoError(t, e.items.Delete(e.alice, updated))

	_, err = e.db.FindItem(item.ID)
	assert.True(t, e.db.IsNotFound(err))
	assert.Empty(t, e.activities(t, item))
	comments, err := e.db.FindCommentsByItemID(item.ID)
	require.NoError(t, err)
	assert.Empty(t, comments)

	exists, err := afero.Exists(e.fs, p)
	require.NoError(t, err)
	assert.False(t, exists)

	_, err = e.items.Find(e.board, item.Number)
	assert.Equal(t, 404, tberror.StatusCode(err))
}
