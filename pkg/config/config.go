// Package config loads and validates the Eludris configuration.
//
// Configuration sources, in order of precedence:
//  1. CLI flags (bound by the cobra commands)
//  2. Environment variables (ELUDRIS_*)
//  3. Configuration file (YAML or TOML)
//  4. Defaults
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"

	"github.com/eludris/eludris/pkg/cache"
)

// Config is the full instance configuration shared by the three services.
type Config struct {
	// InstanceName is how this instance introduces itself to clients.
	InstanceName string  `mapstructure:"instance_name" validate:"required,min=1,max=32"`
	Description  *string `mapstructure:"description" validate:"omitempty,min=1,max=2048"`

	// Secret signs session tokens. Required, never logged.
	Secret string `mapstructure:"secret" validate:"required,min=16"`

	// WorkerID stamps generated snowflakes. Operators give each process a
	// distinct value; collisions across processes are otherwise possible.
	WorkerID uint8 `mapstructure:"worker_id"`

	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"gt=0"`

	Logging     LoggingConfig     `mapstructure:"logging"`
	Database    DatabaseConfig    `mapstructure:"database"`
	Redis       cache.Config      `mapstructure:"redis"`
	Oprish      OprishConfig      `mapstructure:"oprish"`
	Pandemonium PandemoniumConfig `mapstructure:"pandemonium"`
	Effis       EffisConfig       `mapstructure:"effis"`
	Email       *EmailConfig      `mapstructure:"email"`
}

// LoggingConfig controls log output.
type LoggingConfig struct {
	Level  string `mapstructure:"level" validate:"omitempty,oneof=DEBUG INFO WARN ERROR debug info warn error"`
	Format string `mapstructure:"format" validate:"omitempty,oneof=text json"`
	Output string `mapstructure:"output"`
}

// DatabaseConfig selects the Postgres entity store.
type DatabaseConfig struct {
	URL         string `mapstructure:"url" validate:"required"`
	MaxConns    int32  `mapstructure:"max_conns"`
	AutoMigrate bool   `mapstructure:"auto_migrate"`
}

// RateLimitConfig configures one limiter bucket. ResetAfter is in seconds on
// the wire, matching the instance info shape.
type RateLimitConfig struct {
	Limit      int `mapstructure:"limit" validate:"gt=0"`
	ResetAfter int `mapstructure:"reset_after" validate:"gt=0"`

	// FileSizeLimit adds a per-window byte budget (Effis buckets only).
	FileSizeLimit uint64 `mapstructure:"file_size_limit"`
}

// Window returns the bucket's window as a duration.
func (r RateLimitConfig) Window() time.Duration {
	return time.Duration(r.ResetAfter) * time.Second
}

// OprishRateLimits enumerates the REST API buckets.
type OprishRateLimits struct {
	GetInstanceInfo    RateLimitConfig `mapstructure:"get_instance_info"`
	CreateUser         RateLimitConfig `mapstructure:"create_user"`
	VerifyUser         RateLimitConfig `mapstructure:"verify_user"`
	GetUser            RateLimitConfig `mapstructure:"get_user"`
	EditUser           RateLimitConfig `mapstructure:"edit_user"`
	DeleteUser         RateLimitConfig `mapstructure:"delete_user"`
	ResetPassword      RateLimitConfig `mapstructure:"reset_password"`
	CreateSession      RateLimitConfig `mapstructure:"create_session"`
	GetSessions        RateLimitConfig `mapstructure:"get_sessions"`
	DeleteSession      RateLimitConfig `mapstructure:"delete_session"`
	CreateSphere       RateLimitConfig `mapstructure:"create_sphere"`
	GetSphere          RateLimitConfig `mapstructure:"get_sphere"`
	EditSphere         RateLimitConfig `mapstructure:"edit_sphere"`
	JoinSphere         RateLimitConfig `mapstructure:"join_sphere"`
	EditCategory       RateLimitConfig `mapstructure:"edit_category"`
	EditChannel        RateLimitConfig `mapstructure:"edit_channel"`
	GetMember          RateLimitConfig `mapstructure:"get_member"`
	EditMember         RateLimitConfig `mapstructure:"edit_member"`
	CreateMessage      RateLimitConfig `mapstructure:"create_message"`
	GetMessages        RateLimitConfig `mapstructure:"get_messages"`
	EditMessage        RateLimitConfig `mapstructure:"edit_message"`
	DeleteMessage      RateLimitConfig `mapstructure:"delete_message"`
	React              RateLimitConfig `mapstructure:"react"`
	CreateEmoji        RateLimitConfig `mapstructure:"create_emoji"`
	GetEmoji           RateLimitConfig `mapstructure:"get_emoji"`
	EditEmoji          RateLimitConfig `mapstructure:"edit_emoji"`
}

// Table returns the buckets keyed by name for the instance info endpoint.
func (o OprishRateLimits) Table() map[string]RateLimitConfig {
	return map[string]RateLimitConfig{
		"get_instance_info": o.GetInstanceInfo,
		"create_user":       o.CreateUser,
		"verify_user":       o.VerifyUser,
		"get_user":          o.GetUser,
		"edit_user":         o.EditUser,
		"delete_user":       o.DeleteUser,
		"reset_password":    o.ResetPassword,
		"create_session":    o.CreateSession,
		"get_sessions":      o.GetSessions,
		"delete_session":    o.DeleteSession,
		"create_sphere":     o.CreateSphere,
		"get_sphere":        o.GetSphere,
		"edit_sphere":       o.EditSphere,
		"join_sphere":       o.JoinSphere,
		"edit_category":     o.EditCategory,
		"edit_channel":      o.EditChannel,
		"get_member":        o.GetMember,
		"edit_member":       o.EditMember,
		"create_message":    o.CreateMessage,
		"get_messages":      o.GetMessages,
		"edit_message":      o.EditMessage,
		"delete_message":    o.DeleteMessage,
		"react":             o.React,
		"create_emoji":      o.CreateEmoji,
		"get_emoji":         o.GetEmoji,
		"edit_emoji":        o.EditEmoji,
	}
}

// OprishConfig configures the REST API service.
type OprishConfig struct {
	URL          string           `mapstructure:"url" validate:"required,url"`
	Port         int              `mapstructure:"port" validate:"gt=0,lte=65535"`
	MessageLimit int              `mapstructure:"message_limit" validate:"gte=1024"`
	BioLimit     int              `mapstructure:"bio_limit" validate:"gte=128"`
	RateLimits   OprishRateLimits `mapstructure:"rate_limits"`
}

// PandemoniumConfig configures the gateway service.
type PandemoniumConfig struct {
	URL       string          `mapstructure:"url" validate:"required"`
	Port      int             `mapstructure:"port" validate:"gt=0,lte=65535"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
}

// EffisRateLimits enumerates the file service buckets.
type EffisRateLimits struct {
	Assets      RateLimitConfig `mapstructure:"assets"`
	Attachments RateLimitConfig `mapstructure:"attachments"`
	FetchFile   RateLimitConfig `mapstructure:"fetch_file"`
	ProxyFile   RateLimitConfig `mapstructure:"proxy_file"`
}

// Table returns the buckets keyed by name for the instance info endpoint.
func (e EffisRateLimits) Table() map[string]RateLimitConfig {
	return map[string]RateLimitConfig{
		"assets":      e.Assets,
		"attachments": e.Attachments,
		"fetch_file":  e.FetchFile,
		"proxy_file":  e.ProxyFile,
	}
}

// EffisConfig configures the file service.
type EffisConfig struct {
	URL  string `mapstructure:"url" validate:"required,url"`
	Port int    `mapstructure:"port" validate:"gt=0,lte=65535"`

	// Path is the root of the on-disk blob store.
	Path string `mapstructure:"path" validate:"required"`

	// FileSize bounds uploads to asset buckets, AttachmentFileSize bounds
	// uploads to the attachments bucket, ProxyFileSize bounds proxied
	// downloads. All in bytes.
	FileSize           uint64 `mapstructure:"file_size" validate:"gt=0"`
	AttachmentFileSize uint64 `mapstructure:"attachment_file_size" validate:"gt=0"`
	ProxyFileSize      uint64 `mapstructure:"proxy_file_size" validate:"gt=0"`

	RateLimits EffisRateLimits `mapstructure:"rate_limits"`
}

// EmailCredentials authenticate against the SMTP relay.
type EmailCredentials struct {
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
}

// EmailConfig enables the verification and password reset mail flows. When
// absent, those endpoints answer MISDIRECTED.
type EmailConfig struct {
	Relay       string            `mapstructure:"relay" validate:"required"`
	Port        int               `mapstructure:"port"`
	Name        string            `mapstructure:"name" validate:"required"`
	Address     string            `mapstructure:"address" validate:"required,email"`
	Credentials *EmailCredentials `mapstructure:"credentials"`
	Subjects    map[string]string `mapstructure:"subjects"`
}

// Load reads configuration from the optional file path, the environment and
// defaults, then validates it.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("ELUDRIS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %q: %w", path, err)
		}
	} else {
		v.SetConfigName("eludris")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/eludris")
		if err := v.ReadInConfig(); err != nil {
			// A missing file is fine; env and defaults still apply.
			var notFound viper.ConfigFileNotFoundError
			if ok := isNotFound(err, &notFound); !ok {
				return nil, fmt.Errorf("failed to read config: %w", err)
			}
		}
	}

	var cfg Config
	decodeHook := mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	)
	if err := v.Unmarshal(&cfg, viper.DecodeHook(decodeHook)); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	if err := validator.New().Struct(&cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

func isNotFound(err error, target *viper.ConfigFileNotFoundError) bool {
	return errors.As(err, target)
}
