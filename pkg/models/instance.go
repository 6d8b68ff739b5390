package models

// RateLimitConf is one bucket's configuration as exposed by the instance
// info endpoint.
type RateLimitConf struct {
	Limit      int `json:"limit"`
	ResetAfter int `json:"reset_after"`

	// FileSizeLimit extends the counter with an additive byte cost for the
	// Effis buckets; zero means the bucket is request-counted only.
	FileSizeLimit uint64 `json:"file_size_limit,omitempty"`
}

// InstanceRateLimits is the full rate limit table, returned when the
// instance info endpoint is asked for it.
type InstanceRateLimits struct {
	Oprish      map[string]RateLimitConf `json:"oprish"`
	Pandemonium RateLimitConf            `json:"pandemonium"`
	Effis       map[string]RateLimitConf `json:"effis"`
}

// InstanceInfo describes this Eludris instance to clients.
type InstanceInfo struct {
	InstanceName   string  `json:"instance_name"`
	Description    *string `json:"description,omitempty"`
	Version        string  `json:"version"`
	MessageLimit   int     `json:"message_limit"`
	BioLimit       int     `json:"bio_limit"`
	OprishURL      string  `json:"oprish_url"`
	PandemoniumURL string  `json:"pandemonium_url"`
	EffisURL       string  `json:"effis_url"`
	FileSize       uint64  `json:"file_size"`
	AttachmentFileSize uint64 `json:"attachment_file_size"`
	EmailAddress   *string `json:"email_address,omitempty"`

	RateLimits *InstanceRateLimits `json:"rate_limits,omitempty"`
}
