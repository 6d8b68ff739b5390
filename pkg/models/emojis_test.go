package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func uint64Ptr(v uint64) *uint64 { return &v }

func TestReactionEmojiValidate(t *testing.T) {
	t.Run("CustomOnly", func(t *testing.T) {
		e := ReactionEmoji{CustomID: uint64Ptr(1)}
		assert.Nil(t, e.Validate())
	})

	t.Run("UnicodeOnly", func(t *testing.T) {
		e := ReactionEmoji{Unicode: strPtr("😀")}
		assert.Nil(t, e.Validate())
	})

	t.Run("RejectsNeither", func(t *testing.T) {
		var e ReactionEmoji
		assert.NotNil(t, e.Validate())
	})

	t.Run("RejectsBoth", func(t *testing.T) {
		e := ReactionEmoji{CustomID: uint64Ptr(1), Unicode: strPtr("😀")}
		assert.NotNil(t, e.Validate())
	})
}

func TestReactionEmojiRef(t *testing.T) {
	t.Run("CustomRoundTrip", func(t *testing.T) {
		e := ReactionEmoji{CustomID: uint64Ptr(1234)}
		require.Equal(t, "c:1234", e.Ref())

		parsed, err := ReactionEmojiFromRef(e.Ref())
		require.NoError(t, err)
		assert.Equal(t, e, parsed)
	})

	t.Run("UnicodeRoundTrip", func(t *testing.T) {
		e := ReactionEmoji{Unicode: strPtr("😀")}
		require.Equal(t, "u:😀", e.Ref())

		parsed, err := ReactionEmojiFromRef(e.Ref())
		require.NoError(t, err)
		assert.Equal(t, e, parsed)
	})

	t.Run("RejectsUnknownPrefix", func(t *testing.T) {
		_, err := ReactionEmojiFromRef("x:whatever")
		assert.Error(t, err)
	})

	t.Run("RejectsMalformedCustomID", func(t *testing.T) {
		_, err := ReactionEmojiFromRef("c:not-a-number")
		assert.Error(t, err)
	})
}

func TestValidUnicodeEmoji(t *testing.T) {
	t.Run("KnownEmoji", func(t *testing.T) {
		assert.True(t, ValidUnicodeEmoji("😀"))
		assert.True(t, ValidUnicodeEmoji("👍"))
	})

	t.Run("VariationSelectorIsIgnored", func(t *testing.T) {
		// The table holds the bare heart; the common keyboard form carries
		// U+FE0F.
		assert.True(t, ValidUnicodeEmoji("❤️"))
	})

	t.Run("UnknownSequences", func(t *testing.T) {
		assert.False(t, ValidUnicodeEmoji("a"))
		assert.False(t, ValidUnicodeEmoji(""))
		assert.False(t, ValidUnicodeEmoji("not an emoji"))
	})
}

func TestEmojiCreateValidate(t *testing.T) {
	t.Run("TrimsName", func(t *testing.T) {
		e := EmojiCreate{Name: "  blobcat  ", FileID: 1}
		require.Nil(t, e.Validate())
		assert.Equal(t, "blobcat", e.Name)
	})

	t.Run("RejectsShortName", func(t *testing.T) {
		e := EmojiCreate{Name: "a", FileID: 1}
		err := e.Validate()
		require.NotNil(t, err)
		assert.Equal(t, "name", err.ValueName)
	})
}
