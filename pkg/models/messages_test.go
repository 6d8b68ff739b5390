package models

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testMessageLimit = 2048

func TestMessageCreateValidate(t *testing.T) {
	t.Run("TrimsContent", func(t *testing.T) {
		m := MessageCreate{Content: strPtr("  hello  ")}
		require.Nil(t, m.Validate(testMessageLimit))
		assert.Equal(t, "hello", *m.Content)
	})

	t.Run("WhitespaceOnlyContentIsEmpty", func(t *testing.T) {
		m := MessageCreate{Content: strPtr("   ")}
		err := m.Validate(testMessageLimit)
		require.NotNil(t, err)
		assert.Equal(t, "content", err.ValueName)
	})

	t.Run("AttachmentOnlyMessageIsValid", func(t *testing.T) {
		m := MessageCreate{Attachments: []Attachment{{FileID: 1}}}
		assert.Nil(t, m.Validate(testMessageLimit))
	})

	t.Run("RejectsOversizedContent", func(t *testing.T) {
		m := MessageCreate{Content: strPtr(strings.Repeat("a", testMessageLimit+1))}
		assert.NotNil(t, m.Validate(testMessageLimit))
	})

	t.Run("RejectsTooManyAttachments", func(t *testing.T) {
		m := MessageCreate{Attachments: make([]Attachment, MaxMessageAttachments+1)}
		err := m.Validate(testMessageLimit)
		require.NotNil(t, err)
		assert.Equal(t, "attachments", err.ValueName)
	})

	t.Run("RejectsLongAttachmentDescription", func(t *testing.T) {
		m := MessageCreate{Attachments: []Attachment{
			{FileID: 1, Description: strPtr(strings.Repeat("a", 257))},
		}}
		assert.NotNil(t, m.Validate(testMessageLimit))
	})

	t.Run("RejectsNonCustomEmbeds", func(t *testing.T) {
		m := MessageCreate{Embeds: []Embed{{Type: EmbedTypeWebsite}}}
		err := m.Validate(testMessageLimit)
		require.NotNil(t, err)
		assert.Equal(t, "embeds", err.ValueName)
	})

	t.Run("AcceptsCustomEmbed", func(t *testing.T) {
		m := MessageCreate{Embeds: []Embed{{Type: EmbedTypeCustom, Title: strPtr("hi")}}}
		assert.Nil(t, m.Validate(testMessageLimit))
	})
}

func TestMessageEditValidate(t *testing.T) {
	t.Run("RejectsEmptyEdit", func(t *testing.T) {
		var m MessageEdit
		err := m.Validate(testMessageLimit)
		require.NotNil(t, err)
		assert.Equal(t, "body", err.ValueName)
	})

	t.Run("RejectsOversizedContent", func(t *testing.T) {
		m := MessageEdit{Content: Some(strings.Repeat("a", testMessageLimit+1))}
		assert.NotNil(t, m.Validate(testMessageLimit))
	})

	t.Run("NullContentIsValid", func(t *testing.T) {
		m := MessageEdit{Content: Null[string]()}
		assert.Nil(t, m.Validate(testMessageLimit))
	})
}

func TestMessageEditApply(t *testing.T) {
	base := func() Message {
		return Message{
			ID:        1,
			ChannelID: 2,
			Content:   strPtr("original"),
			Attachments: []Attachment{
				{FileID: 10},
			},
		}
	}

	t.Run("AbsentFieldsAreUnchanged", func(t *testing.T) {
		msg := base()
		edit := MessageEdit{Content: Some("edited")}
		require.Nil(t, edit.Apply(&msg))
		assert.Equal(t, "edited", *msg.Content)
		assert.Len(t, msg.Attachments, 1)
	})

	t.Run("NullClearsContent", func(t *testing.T) {
		msg := base()
		edit := MessageEdit{Content: Null[string]()}
		require.Nil(t, edit.Apply(&msg))
		assert.Nil(t, msg.Content)
	})

	t.Run("EmptyStringClearsContent", func(t *testing.T) {
		msg := base()
		edit := MessageEdit{Content: Some("   ")}
		require.Nil(t, edit.Apply(&msg))
		assert.Nil(t, msg.Content)
	})

	t.Run("AttachmentsReplaceTheSet", func(t *testing.T) {
		msg := base()
		edit := MessageEdit{Attachments: Some([]Attachment{{FileID: 20}, {FileID: 21}})}
		require.Nil(t, edit.Apply(&msg))
		require.Len(t, msg.Attachments, 2)
		assert.Equal(t, uint64(20), msg.Attachments[0].FileID)
	})

	t.Run("RejectsEditThatEmptiesTheMessage", func(t *testing.T) {
		msg := base()
		edit := MessageEdit{
			Content:     Null[string](),
			Attachments: Null[[]Attachment](),
		}
		err := edit.Apply(&msg)
		require.NotNil(t, err)
		assert.Equal(t, "content", err.ValueName)
	})

	t.Run("DecodedEditRoundTrip", func(t *testing.T) {
		var edit MessageEdit
		require.NoError(t, json.Unmarshal([]byte(`{"content":"new","attachments":[]}`), &edit))
		msg := base()
		err := edit.Apply(&msg)
		require.Nil(t, err)
		assert.Equal(t, "new", *msg.Content)
		assert.Empty(t, msg.Attachments)
	})
}
