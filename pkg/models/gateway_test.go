package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestServerPayloadRoundTrip(t *testing.T) {
	content := "hello"
	payloads := []ServerPayload{
		{Op: OpPong},
		{Op: OpRateLimit, D: &RateLimitData{Wait: 1500}},
		{Op: OpMessageCreate, D: &Message{
			ID:          10,
			ChannelID:   20,
			Content:     &content,
			Attachments: []Attachment{},
			Embeds:      []Embed{},
			Reactions:   []Reaction{},
		}},
		{Op: OpMessageUpdate, D: &MessageUpdateData{
			ChannelID: 20,
			MessageID: 10,
			Data: Message{
				ID:          10,
				ChannelID:   20,
				Content:     &content,
				Attachments: []Attachment{},
				Embeds:      []Embed{},
				Reactions:   []Reaction{},
			},
		}},
		{Op: OpMessageDelete, D: &MessageDeleteData{ChannelID: 20, MessageID: 10}},
		{Op: OpMessageReactionClear, D: &MessageReactionClearData{ChannelID: 20, MessageID: 10}},
		{Op: OpPresenceUpdate, D: &PresenceUpdateData{UserID: 7, Status: Status{Type: StatusOnline}}},
		{Op: OpSphereMemberLeave, D: &SphereMemberLeaveData{UserID: 7, SphereID: 9}},
		{Op: OpSphereChannelDelete, D: &SphereChannelDeleteData{ChannelID: 1, SphereID: 2, CategoryID: 3}},
		{Op: OpCategoryDelete, D: &CategoryDeleteData{CategoryID: 4, SphereID: 2}},
		{Op: OpEmojiDelete, D: &EmojiDeleteData{EmojiID: 5, SphereID: 2}},
	}

	for _, payload := range payloads {
		t.Run(payload.Op, func(t *testing.T) {
			raw, err := json.Marshal(payload)
			require.NoError(t, err)

			var decoded ServerPayload
			require.NoError(t, json.Unmarshal(raw, &decoded))
			assert.Equal(t, payload, decoded)
		})
	}
}

func TestServerPayloadDecoding(t *testing.T) {
	t.Run("RejectsUnknownOp", func(t *testing.T) {
		var p ServerPayload
		err := json.Unmarshal([]byte(`{"op":"NOT_AN_OP"}`), &p)
		assert.Error(t, err)
	})

	t.Run("RejectsMissingData", func(t *testing.T) {
		var p ServerPayload
		err := json.Unmarshal([]byte(`{"op":"MESSAGE_DELETE"}`), &p)
		assert.Error(t, err)
	})

	t.Run("MessageUpdateUsesTheAddressedEnvelope", func(t *testing.T) {
		// Edits are delivered as {channel_id, message_id, data}, not as a
		// bare message.
		raw := `{"op":"MESSAGE_UPDATE","d":{"channel_id":20,"message_id":10,
			"data":{"id":10,"channel_id":20,"content":"edited",
			"attachments":[],"embeds":[],"reactions":[]}}}`
		var p ServerPayload
		require.NoError(t, json.Unmarshal([]byte(raw), &p))

		data, ok := p.D.(*MessageUpdateData)
		require.True(t, ok)
		assert.Equal(t, uint64(20), data.ChannelID)
		assert.Equal(t, uint64(10), data.MessageID)
		require.NotNil(t, data.Data.Content)
		assert.Equal(t, "edited", *data.Data.Content)
	})

	t.Run("DecodesTypedData", func(t *testing.T) {
		var p ServerPayload
		require.NoError(t, json.Unmarshal([]byte(`{"op":"RATE_LIMIT","d":{"wait":2000}}`), &p))
		data, ok := p.D.(*RateLimitData)
		require.True(t, ok)
		assert.Equal(t, int64(2000), data.Wait)
	})
}

func TestClientPayload(t *testing.T) {
	t.Run("Ping", func(t *testing.T) {
		var p ClientPayload
		require.NoError(t, json.Unmarshal([]byte(`{"op":"PING"}`), &p))
		assert.Equal(t, OpPing, p.Op)
		assert.Empty(t, p.Token())
	})

	t.Run("AuthenticateCarriesToken", func(t *testing.T) {
		var p ClientPayload
		require.NoError(t, json.Unmarshal([]byte(`{"op":"AUTHENTICATE","d":"tok-123"}`), &p))
		assert.Equal(t, "tok-123", p.Token())
	})

	t.Run("RejectsServerOps", func(t *testing.T) {
		var p ClientPayload
		err := json.Unmarshal([]byte(`{"op":"PONG"}`), &p)
		assert.Error(t, err)
	})
}
