package optional

import (
	"bytes"
	"encoding/json"
)

var null = []byte("null")

// A Value is a field of a partial update.
// It makes the difference between a field that has not been supplied,
// a field supplied as null and a field supplied with a value.
//
// The zero Value is "not supplied". When used as a struct field, encoding/json
// only calls UnmarshalJSON for keys present in the payload, so absent keys stay unset.
type Value[T any] struct {
	set   bool
	null  bool
	value T
}

// Of returns a supplied Value holding v.
func Of[T any](v T) Value[T] {
	return Value[T]{set: true, value: v}
}

// Null returns a Value supplied as null.
func Null[T any]() Value[T] {
	return Value[T]{set: true, null: true}
}

// IsSet returns true if the value has been supplied (even as null).
func (v Value[T]) IsSet() bool {
	return v.set
}

// IsNull returns true if the value has been supplied as null.
func (v Value[T]) IsNull() bool {
	return v.set && v.null
}

// Get returns the value and true if it has been supplied with a non-null value.
func (v Value[T]) Get() (T, bool) {
	return v.value, v.set && !v.null
}

// OrZero returns the value or the zero value of T when unset or null.
func (v Value[T]) OrZero() T {
	return v.value
}

// UnmarshalJSON implements json.Unmarshaler.
func (v *Value[T]) UnmarshalJSON(b []byte) error {
	v.set = true
	if bytes.Equal(bytes.TrimSpace(b), null) {
		var zero T
		v.null = true
		v.value = zero
		return nil
	}

	v.null = false
	return json.Unmarshal(b, &v.value)
}

// MarshalJSON implements json.Marshaler.
// An unset value is rendered as null; use omitempty-aware wrappers if needed.
func (v Value[T]) MarshalJSON() ([]byte, error) {
	if !v.set || v.null {
		return null, nil
	}
	return json.Marshal(v.value)
}
