package model_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/ticketboard/ticketboard/internal/model"
)

func TestStamp(t *testing.T) {
	item := &model.Item{}
	created := time.Date(2026, 2, 5, 10, 0, 0, 0, time.UTC)

	model.Stamp(item, created)
	assert.NotEmpty(t, item.ID)
	assert.Equal(t, created, *item.CreatedAt)
	assert.Equal(t, created, *item.UpdatedAt)

	id := item.ID
	updated := created.Add(time.Hour)
	model.Stamp(item, updated)
	assert.Equal(t, id, item.ID)
	assert.Equal(t, created, *item.CreatedAt)
	assert.Equal(t, updated, *item.UpdatedAt)
}

func TestItemKind(t *testing.T) {
	assert.Equal(t, "Task", (&model.Item{ItemType: model.ItemTask}).Kind())
	assert.Equal(t, "Bug", (&model.Item{ItemType: model.ItemBug}).Kind())
	assert.True(t, (&model.Item{ItemType: model.ItemBug}).IsBug())
}

func TestNormalizeEmail(t *testing.T) {
	assert.Equal(t, "alice@example.com", model.NormalizeEmail(" Alice@Example.COM "))
}
