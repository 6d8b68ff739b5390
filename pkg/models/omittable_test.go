package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOmittable(t *testing.T) {
	type body struct {
		Name Omittable[string] `json:"name"`
		Age  Omittable[int]    `json:"age"`
	}

	t.Run("AbsentFieldIsUnset", func(t *testing.T) {
		var b body
		require.NoError(t, json.Unmarshal([]byte(`{}`), &b))
		assert.False(t, b.Name.IsSet())
		assert.False(t, b.Name.IsNull())
		_, ok := b.Name.Value()
		assert.False(t, ok)
	})

	t.Run("NullFieldIsSetAndNull", func(t *testing.T) {
		var b body
		require.NoError(t, json.Unmarshal([]byte(`{"name":null}`), &b))
		assert.True(t, b.Name.IsSet())
		assert.True(t, b.Name.IsNull())
		_, ok := b.Name.Value()
		assert.False(t, ok)
	})

	t.Run("ValueFieldCarriesValue", func(t *testing.T) {
		var b body
		require.NoError(t, json.Unmarshal([]byte(`{"name":"uwu","age":3}`), &b))
		name, ok := b.Name.Value()
		require.True(t, ok)
		assert.Equal(t, "uwu", name)
		age, ok := b.Age.Value()
		require.True(t, ok)
		assert.Equal(t, 3, age)
	})

	t.Run("ZeroValueIsStillAValue", func(t *testing.T) {
		var b body
		require.NoError(t, json.Unmarshal([]byte(`{"name":"","age":0}`), &b))
		assert.True(t, b.Name.IsSet())
		assert.False(t, b.Name.IsNull())
		name, ok := b.Name.Value()
		require.True(t, ok)
		assert.Empty(t, name)
	})

	t.Run("Constructors", func(t *testing.T) {
		some := Some(42)
		v, ok := some.Value()
		require.True(t, ok)
		assert.Equal(t, 42, v)

		null := Null[int]()
		assert.True(t, null.IsSet())
		assert.True(t, null.IsNull())
	})

	t.Run("MarshalsNullForUnsetAndNull", func(t *testing.T) {
		raw, err := json.Marshal(body{Name: Some("a")})
		require.NoError(t, err)
		assert.JSONEq(t, `{"name":"a","age":null}`, string(raw))
	})
}
