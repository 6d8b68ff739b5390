package config

import (
	"github.com/eludris/eludris/pkg/models"
	"github.com/eludris/eludris/pkg/ratelimit"
)

// Version is the instance version reported to clients.
const Version = "0.4.0"

// Bucket converts the bucket configuration to the limiter's shape.
func (r RateLimitConfig) Bucket(name string) ratelimit.Bucket {
	return ratelimit.Bucket{
		Name:          name,
		Limit:         r.Limit,
		ResetAfter:    r.Window(),
		FileSizeLimit: r.FileSizeLimit,
	}
}

// InstanceInfo builds the public description of this instance. The rate
// limit table is included only when asked for.
func (c *Config) InstanceInfo(withRateLimits bool) models.InstanceInfo {
	info := models.InstanceInfo{
		InstanceName:       c.InstanceName,
		Description:        c.Description,
		Version:            Version,
		MessageLimit:       c.Oprish.MessageLimit,
		BioLimit:           c.Oprish.BioLimit,
		OprishURL:          c.Oprish.URL,
		PandemoniumURL:     c.Pandemonium.URL,
		EffisURL:           c.Effis.URL,
		FileSize:           c.Effis.FileSize,
		AttachmentFileSize: c.Effis.AttachmentFileSize,
	}
	if c.Email != nil {
		address := c.Email.Address
		info.EmailAddress = &address
	}
	if withRateLimits {
		info.RateLimits = &models.InstanceRateLimits{
			Oprish:      confTable(c.Oprish.RateLimits.Table()),
			Pandemonium: c.Pandemonium.RateLimit.conf(),
			Effis:       confTable(c.Effis.RateLimits.Table()),
		}
	}
	return info
}

func (r RateLimitConfig) conf() models.RateLimitConf {
	return models.RateLimitConf{
		Limit:         r.Limit,
		ResetAfter:    r.ResetAfter,
		FileSizeLimit: r.FileSizeLimit,
	}
}

func confTable(table map[string]RateLimitConfig) map[string]models.RateLimitConf {
	out := make(map[string]models.RateLimitConf, len(table))
	for name, rl := range table {
		out[name] = rl.conf()
	}
	return out
}
