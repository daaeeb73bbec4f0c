package config

import (
	"fmt"
	"time"

	"github.com/dmitrijs2005/sessionkeeper/internal/client/policy"
	"github.com/go-playground/validator/v10"
)

const (
	BackendMemory   = "memory"
	BackendSQLite   = "sqlite"
	BackendRedis    = "redis"
	BackendPostgres = "postgres"
)

// Config holds runtime settings for the session CLI and proxy.
type Config struct {
	APIBaseURL  string        `validate:"required,url"`
	AppOrigin   string        `validate:"omitempty,url"`
	HTTPTimeout time.Duration `validate:"gt=0"`

	StoreBackend   string `validate:"oneof=memory sqlite redis postgres"`
	StoreDSN       string `validate:"required_if=StoreBackend sqlite,required_if=StoreBackend postgres"`
	RedisAddr      string `validate:"required_if=StoreBackend redis"`
	RedisKey       string `validate:"required"`
	SealPassphrase string

	RefreshBuffer      time.Duration `validate:"gte=0"`
	BackgroundInterval time.Duration `validate:"gt=0"`
	BackgroundBuffer   time.Duration `validate:"gte=0"`

	ShortInactivity time.Duration `validate:"gt=0"`
	ShortWarning    time.Duration `validate:"gt=0,ltfield=ShortInactivity"`
	LongInactivity  time.Duration `validate:"gt=0"`
	LongWarning     time.Duration `validate:"gt=0,ltfield=LongInactivity"`
	IdlePoll        time.Duration `validate:"gt=0,ltfield=ShortWarning,ltfield=LongWarning"`

	ProxyListen string `validate:"required,hostname_port"`
	LogLevel    string `validate:"oneof=debug info warn error"`
}

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	c.APIBaseURL = "http://127.0.0.1:8080"
	c.HTTPTimeout = 30 * time.Second

	c.StoreBackend = BackendSQLite
	c.StoreDSN = "sessionkeeper.db"
	c.RedisKey = "sessionkeeper:session"

	c.RefreshBuffer = time.Minute
	c.BackgroundInterval = time.Minute
	c.BackgroundBuffer = 2 * time.Minute

	p := policy.DefaultProfiles()
	c.ShortInactivity = p.Short.InactivityLimit
	c.ShortWarning = p.Short.WarningLead
	c.LongInactivity = p.Long.InactivityLimit
	c.LongWarning = p.Long.WarningLead
	c.IdlePoll = 30 * time.Second

	c.ProxyListen = "127.0.0.1:8081"
	c.LogLevel = "info"
}

// Origin is the application origin, falling back to the API base URL.
func (c *Config) Origin() string {
	if c.AppOrigin != "" {
		return c.AppOrigin
	}
	return c.APIBaseURL
}

// Profiles returns the two inactivity profiles.
func (c *Config) Profiles() policy.Profiles {
	return policy.Profiles{
		Short: policy.Profile{InactivityLimit: c.ShortInactivity, WarningLead: c.ShortWarning},
		Long:  policy.Profile{InactivityLimit: c.LongInactivity, WarningLead: c.LongWarning},
	}
}

var validate = validator.New(validator.WithRequiredStructEnabled())

func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// LoadConfig constructs a Config, applies defaults, then overlays values from
// the config file (if any) and command-line flags found in args. Later
// sources take precedence over earlier ones. The result is validated.
func LoadConfig(args []string) (*Config, error) {
	cfg := &Config{}
	cfg.LoadDefaults()
	if err := parseFile(cfg, args); err != nil {
		return nil, err
	}
	if err := parseFlags(cfg, args); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
