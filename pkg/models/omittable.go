package models

import (
	"bytes"
	"encoding/json"
)

// Omittable is a three-state optional used by PATCH payloads, distinguishing
// a field that was absent from the body, one explicitly set to null, and one
// set to a value.
//
// Merge semantics on edit endpoints depend on the distinction: absent means
// "leave unchanged", null means "clear", value means "replace". A plain
// pointer cannot represent all three, so edit payloads use Omittable fields
// and the handlers consult IsSet/IsNull before applying.
type Omittable[T any] struct {
	present bool
	null    bool
	value   T
}

// Some returns an Omittable holding a value.
func Some[T any](v T) Omittable[T] {
	return Omittable[T]{present: true, value: v}
}

// Null returns an Omittable representing an explicit JSON null.
func Null[T any]() Omittable[T] {
	return Omittable[T]{present: true, null: true}
}

// IsSet reports whether the field appeared in the body at all.
func (o Omittable[T]) IsSet() bool { return o.present }

// IsNull reports whether the field was an explicit null.
func (o Omittable[T]) IsNull() bool { return o.present && o.null }

// Value returns the held value and whether one is present (set and non-null).
func (o Omittable[T]) Value() (T, bool) {
	if !o.present || o.null {
		var zero T
		return zero, false
	}
	return o.value, true
}

// UnmarshalJSON is only invoked when the key is present, so any call marks
// the field as set.
func (o *Omittable[T]) UnmarshalJSON(data []byte) error {
	o.present = true
	if bytes.Equal(data, []byte("null")) {
		o.null = true
		return nil
	}
	o.null = false
	return json.Unmarshal(data, &o.value)
}

// MarshalJSON renders null for unset or null states. Callers that need
// absent-vs-null on output must pair this with omitzero semantics; edit
// payloads are only ever decoded, so this is not a concern in practice.
func (o Omittable[T]) MarshalJSON() ([]byte, error) {
	if !o.present || o.null {
		return []byte("null"), nil
	}
	return json.Marshal(o.value)
}
