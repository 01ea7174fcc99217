package model

import (
	"time"

	"github.com/gofrs/uuid"
)

type (
	// A Model defines a record persisted by a database backend.
	Model interface {
		GetID() string
		SetID(string)
		GetCreatedAt() *time.Time
		SetCreatedAt(time.Time)
		GetUpdatedAt() *time.Time
		SetUpdatedAt(time.Time)
	}

	// A Base contains the fields shared by all records.
	Base struct {
		ID        string     `json:"id"         msgpack:"id"         storm:"id"`
		CreatedAt *time.Time `json:"created_at" msgpack:"created_at" storm:"index"`
		UpdatedAt *time.Time `json:"updated_at" msgpack:"updated_at" storm:"index"`
	}
)

// Stamp prepares m for being written at t.
// It assigns an ID and a creation date to new records and always refreshes the update date.
func Stamp(m Model, t time.Time) {
	t = t.UTC()
	m.SetUpdatedAt(t)

	if m.GetID() == "" {
		m.SetID(uuid.Must(uuid.NewV4()).String())
	}
	if m.GetCreatedAt() == nil {
		m.SetCreatedAt(t)
	}
}

// GetID returns the record's ID.
func (m *Base) GetID() string {
	return m.ID
}

// SetID defines the record's ID.
func (m *Base) SetID(id string) {
	m.ID = id
}

// GetCreatedAt returns the record's creation date.
func (m *Base) GetCreatedAt() *time.Time {
	return m.CreatedAt
}

// SetCreatedAt defines the record's creation date.
func (m *Base) SetCreatedAt(t time.Time) {
	m.CreatedAt = &t
}

// GetUpdatedAt returns the record's last update date.
func (m *Base) GetUpdatedAt() *time.Time {
	return m.UpdatedAt
}

// SetUpdatedAt defines the record's last update date.
func (m *Base) SetUpdatedAt(t time.Time) {
	m.UpdatedAt = &t
}
