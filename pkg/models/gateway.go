package models

import (
	"encoding/json"
	"fmt"
)

// Server → client opcodes.
const (
	OpPong                  = "PONG"
	OpRateLimit             = "RATE_LIMIT"
	OpHello                 = "HELLO"
	OpAuthenticated         = "AUTHENTICATED"
	OpMessageCreate         = "MESSAGE_CREATE"
	OpMessageUpdate         = "MESSAGE_UPDATE"
	OpMessageDelete         = "MESSAGE_DELETE"
	OpMessageReactionCreate = "MESSAGE_REACTION_CREATE"
	OpMessageReactionDelete = "MESSAGE_REACTION_DELETE"
	OpMessageReactionClear  = "MESSAGE_REACTION_CLEAR"
	OpMessageEmbedPopulate  = "MESSAGE_EMBED_POPULATE"
	OpUserUpdate            = "USER_UPDATE"
	OpPresenceUpdate        = "PRESENCE_UPDATE"
	OpSphereMemberJoin      = "SPHERE_MEMBER_JOIN"
	OpSphereMemberLeave     = "SPHERE_MEMBER_LEAVE"
	OpSphereUpdate          = "SPHERE_UPDATE"
	OpSphereChannelCreate   = "SPHERE_CHANNEL_CREATE"
	OpSphereChannelUpdate   = "SPHERE_CHANNEL_UPDATE"
	OpSphereChannelDelete   = "SPHERE_CHANNEL_DELETE"
	OpCategoryCreate        = "CATEGORY_CREATE"
	OpCategoryEdit          = "CATEGORY_EDIT"
	OpCategoryDelete        = "CATEGORY_DELETE"
	OpEmojiCreate           = "EMOJI_CREATE"
	OpEmojiUpdate           = "EMOJI_UPDATE"
	OpEmojiDelete           = "EMOJI_DELETE"
)

// Client → server opcodes.
const (
	OpPing         = "PING"
	OpAuthenticate = "AUTHENTICATE"
)

// RateLimitData tells a rate limited gateway client how long to wait, in
// milliseconds.
type RateLimitData struct {
	Wait int64 `json:"wait"`
}

// HelloRateLimit describes the gateway's per-IP rate limit to clients.
type HelloRateLimit struct {
	Limit      int `json:"limit"`
	ResetAfter int `json:"reset_after"`
}

// HelloData is the first frame on every connection. Clients are expected to
// send their first PING after rand(0,1)*HeartbeatInterval ms to spread
// reconnect storms.
type HelloData struct {
	HeartbeatInterval int64          `json:"heartbeat_interval"`
	InstanceInfo      InstanceInfo   `json:"instance_info"`
	RateLimit         HelloRateLimit `json:"rate_limit"`
}

// AuthenticatedData confirms a successful AUTHENTICATE, carrying the bearer
// and the spheres they belong to.
type AuthenticatedData struct {
	User    User     `json:"user"`
	Spheres []Sphere `json:"spheres"`
}

// MessageUpdateData carries an edited message's new state alongside its
// addressing.
type MessageUpdateData struct {
	ChannelID uint64  `json:"channel_id"`
	MessageID uint64  `json:"message_id"`
	Data      Message `json:"data"`
}

// MessageDeleteData identifies a deleted message.
type MessageDeleteData struct {
	ChannelID uint64 `json:"channel_id"`
	MessageID uint64 `json:"message_id"`
}

// MessageReactionData carries a reaction add or remove.
type MessageReactionData struct {
	ChannelID uint64        `json:"channel_id"`
	MessageID uint64        `json:"message_id"`
	UserID    uint64        `json:"user_id"`
	Emoji     ReactionEmoji `json:"emoji"`
}

// MessageReactionClearData identifies a cleared message.
type MessageReactionClearData struct {
	ChannelID uint64 `json:"channel_id"`
	MessageID uint64 `json:"message_id"`
}

// MessageEmbedPopulateData delivers asynchronously generated embeds.
type MessageEmbedPopulateData struct {
	ChannelID uint64  `json:"channel_id"`
	MessageID uint64  `json:"message_id"`
	Embeds    []Embed `json:"embeds"`
}

// PresenceUpdateData announces a user's presence transition.
type PresenceUpdateData struct {
	UserID uint64 `json:"user_id"`
	Status Status `json:"status"`
}

// SphereMemberJoinData announces a member joining a sphere.
type SphereMemberJoinData struct {
	User     User   `json:"user"`
	SphereID uint64 `json:"sphere_id"`
}

// SphereMemberLeaveData announces a member leaving a sphere.
type SphereMemberLeaveData struct {
	UserID   uint64 `json:"user_id"`
	SphereID uint64 `json:"sphere_id"`
}

// SphereUpdateData carries an edited sphere.
type SphereUpdateData struct {
	Data     Sphere `json:"data"`
	SphereID uint64 `json:"sphere_id"`
}

// SphereChannelDeleteData identifies a deleted channel.
type SphereChannelDeleteData struct {
	ChannelID  uint64 `json:"channel_id"`
	SphereID   uint64 `json:"sphere_id"`
	CategoryID uint64 `json:"category_id"`
}

// CategoryDeleteData identifies a deleted category.
type CategoryDeleteData struct {
	CategoryID uint64 `json:"category_id"`
	SphereID   uint64 `json:"sphere_id"`
}

// EmojiDeleteData identifies a deleted emoji.
type EmojiDeleteData struct {
	EmojiID  uint64 `json:"emoji_id"`
	SphereID uint64 `json:"sphere_id"`
}

// ServerPayload is a server → client gateway frame. D holds the typed data
// for the op, or nil for data-less ops like PONG.
type ServerPayload struct {
	Op string `json:"op"`
	D  any    `json:"d,omitempty"`
}

// envelope is the raw wire form used during decoding.
type envelope struct {
	Op string          `json:"op"`
	D  json.RawMessage `json:"d,omitempty"`
}

// UnmarshalJSON decodes the envelope and the op-specific data shape.
func (p *ServerPayload) UnmarshalJSON(data []byte) error {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return err
	}
	p.Op = env.Op
	p.D = nil

	var dst any
	switch env.Op {
	case OpPong:
		return nil
	case OpRateLimit:
		dst = &RateLimitData{}
	case OpHello:
		dst = &HelloData{}
	case OpAuthenticated:
		dst = &AuthenticatedData{}
	case OpMessageCreate:
		dst = &Message{}
	case OpMessageUpdate:
		dst = &MessageUpdateData{}
	case OpMessageDelete:
		dst = &MessageDeleteData{}
	case OpMessageReactionCreate, OpMessageReactionDelete:
		dst = &MessageReactionData{}
	case OpMessageReactionClear:
		dst = &MessageReactionClearData{}
	case OpMessageEmbedPopulate:
		dst = &MessageEmbedPopulateData{}
	case OpUserUpdate:
		dst = &User{}
	case OpPresenceUpdate:
		dst = &PresenceUpdateData{}
	case OpSphereMemberJoin:
		dst = &SphereMemberJoinData{}
	case OpSphereMemberLeave:
		dst = &SphereMemberLeaveData{}
	case OpSphereUpdate:
		dst = &SphereUpdateData{}
	case OpSphereChannelCreate, OpSphereChannelUpdate:
		dst = &SphereChannel{}
	case OpSphereChannelDelete:
		dst = &SphereChannelDeleteData{}
	case OpCategoryCreate, OpCategoryEdit:
		dst = &Category{}
	case OpCategoryDelete:
		dst = &CategoryDeleteData{}
	case OpEmojiCreate, OpEmojiUpdate:
		dst = &Emoji{}
	case OpEmojiDelete:
		dst = &EmojiDeleteData{}
	default:
		return fmt.Errorf("unknown server op %q", env.Op)
	}

	if len(env.D) == 0 {
		return fmt.Errorf("missing data for op %q", env.Op)
	}
	if err := json.Unmarshal(env.D, dst); err != nil {
		return fmt.Errorf("invalid data for op %q: %w", env.Op, err)
	}
	p.D = dst
	return nil
}

// ClientPayload is a client → server gateway frame: PING or
// AUTHENTICATE(token).
type ClientPayload struct {
	Op string `json:"op"`
	D  any    `json:"d,omitempty"`
}

// Token returns the AUTHENTICATE token, or "" for other ops.
func (p ClientPayload) Token() string {
	if p.Op != OpAuthenticate {
		return ""
	}
	token, _ := p.D.(string)
	return token
}

// UnmarshalJSON decodes the envelope, accepting only the client ops.
func (p *ClientPayload) UnmarshalJSON(data []byte) error {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return err
	}
	p.Op = env.Op
	p.D = nil

	switch env.Op {
	case OpPing:
		return nil
	case OpAuthenticate:
		var token string
		if err := json.Unmarshal(env.D, &token); err != nil {
			return fmt.Errorf("invalid AUTHENTICATE data: %w", err)
		}
		p.D = token
		return nil
	}
	return fmt.Errorf("unknown client op %q", env.Op)
}
