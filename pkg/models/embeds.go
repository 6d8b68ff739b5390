package models

// EmbedType discriminates the embed variants.
type EmbedType string

const (
	EmbedTypeCustom       EmbedType = "CUSTOM"
	EmbedTypeWebsite      EmbedType = "WEBSITE"
	EmbedTypeImage        EmbedType = "IMAGE"
	EmbedTypeVideo        EmbedType = "VIDEO"
	EmbedTypeYouTubeVideo EmbedType = "YOUTUBE_VIDEO"
	EmbedTypeSpotify      EmbedType = "SPOTIFY"
)

// EmbedImage is a resolved image inside a website embed.
type EmbedImage struct {
	URL    string `json:"url"`
	Width  *int   `json:"width,omitempty"`
	Height *int   `json:"height,omitempty"`
}

// Embed is a structured preview attached to a message. CUSTOM embeds are
// author-supplied; the remaining variants are populated asynchronously from
// URLs found in the message content.
//
// The variants share one struct with a type discriminator rather than a Go
// interface so they survive JSON round-trips through the database and the
// gateway without bespoke decoding at every hop.
type Embed struct {
	Type EmbedType `json:"type"`

	// Shared by CUSTOM, WEBSITE, IMAGE, VIDEO, YOUTUBE_VIDEO, SPOTIFY.
	URL *string `json:"url,omitempty"`

	// CUSTOM and WEBSITE.
	Title       *string     `json:"title,omitempty"`
	Description *string     `json:"description,omitempty"`
	Color       *int        `json:"color,omitempty"`
	Image       *EmbedImage `json:"image,omitempty"`

	// WEBSITE only.
	SiteName *string `json:"site_name,omitempty"`

	// IMAGE and VIDEO.
	Width  *int `json:"width,omitempty"`
	Height *int `json:"height,omitempty"`

	// YOUTUBE_VIDEO only.
	VideoID   *string `json:"video_id,omitempty"`
	Author    *string `json:"author,omitempty"`
	Thumbnail *string `json:"thumbnail,omitempty"`
}

// Validate checks an author-supplied embed. Only CUSTOM embeds may be
// provided by users; every other variant is system-populated.
func (e *Embed) Validate() *APIError {
	if e.Type != EmbedTypeCustom {
		return ErrValidation("embeds", "Only CUSTOM embeds may be provided by message authors")
	}
	if e.Title != nil && len(*e.Title) > 256 {
		return ErrValidation("embeds", "A custom embed's title must be at most 256 characters in length")
	}
	if e.Description != nil && len(*e.Description) > 4096 {
		return ErrValidation("embeds", "A custom embed's description must be at most 4096 characters in length")
	}
	return nil
}
