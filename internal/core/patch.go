package core

import (
	"bytes"
	"encoding/json"
)

// Nullable is an optional field of an update body. Set tells an absent key
// from an explicit null, which clears the field.
type Nullable[T any] struct {
	Set   bool
	Value *T
}

// Some is a Nullable holding v.
func Some[T any](v T) Nullable[T] { return Nullable[T]{Set: true, Value: &v} }

// Null is a Nullable that clears its field.
func Null[T any]() Nullable[T] { return Nullable[T]{Set: true} }

func (n *Nullable[T]) UnmarshalJSON(b []byte) error {
	n.Set = true
	if bytes.Equal(bytes.TrimSpace(b), []byte("null")) {
		n.Value = nil
		return nil
	}
	var v T
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	n.Value = &v
	return nil
}

func (n Nullable[T]) MarshalJSON() ([]byte, error) {
	if n.Value == nil {
		return []byte("null"), nil
	}
	return json.Marshal(*n.Value)
}

func (n Nullable[T]) applyTo(dst **T) {
	if !n.Set {
		return
	}
	if n.Value == nil {
		*dst = nil
		return
	}
	c := *n.Value
	*dst = &c
}

func setIf[T any](dst *T, v *T) {
	if v != nil {
		*dst = *v
	}
}
