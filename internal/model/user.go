package model

import (
	"strings"
)

// A User represents a database record.
type User struct {
	Base `msgpack:",inline" storm:"inline"`

	Name     string `json:"name"     msgpack:"name"     storm:"index"`
	Email    string `json:"email"    msgpack:"email"    storm:"unique"`
	Password string `json:"-"        msgpack:"password,omitempty" cbor:"password,omitempty"`
	Admin    bool   `json:"is_admin" msgpack:"admin"    storm:"index"`
}

// NormalizeEmail returns the stored form of an email address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
