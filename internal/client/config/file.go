package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dmitrijs2005/sessionkeeper/internal/flagx"
	"github.com/dmitrijs2005/sessionkeeper/internal/timex"
	"gopkg.in/yaml.v3"
)

// FileConfig is a DTO used exclusively for file unmarshalling. Zero values
// leave the corresponding defaults untouched.
type FileConfig struct {
	APIBaseURL  string         `json:"api_base_url" yaml:"api_base_url"`
	AppOrigin   string         `json:"app_origin" yaml:"app_origin"`
	HTTPTimeout timex.Duration `json:"http_timeout" yaml:"http_timeout"`
	ProxyListen string         `json:"proxy_listen" yaml:"proxy_listen"`
	LogLevel    string         `json:"log_level" yaml:"log_level"`

	Store struct {
		Backend        string `json:"backend" yaml:"backend"`
		DSN            string `json:"dsn" yaml:"dsn"`
		RedisAddr      string `json:"redis_addr" yaml:"redis_addr"`
		RedisKey       string `json:"redis_key" yaml:"redis_key"`
		SealPassphrase string `json:"seal_passphrase" yaml:"seal_passphrase"`
	} `json:"store" yaml:"store"`

	Refresh struct {
		Buffer             timex.Duration `json:"buffer" yaml:"buffer"`
		BackgroundInterval timex.Duration `json:"background_interval" yaml:"background_interval"`
		BackgroundBuffer   timex.Duration `json:"background_buffer" yaml:"background_buffer"`
	} `json:"refresh" yaml:"refresh"`

	Session struct {
		Short    fileProfile    `json:"short" yaml:"short"`
		Long     fileProfile    `json:"long" yaml:"long"`
		IdlePoll timex.Duration `json:"idle_poll" yaml:"idle_poll"`
	} `json:"session" yaml:"session"`
}

type fileProfile struct {
	InactivityLimit timex.Duration `json:"inactivity_limit" yaml:"inactivity_limit"`
	WarningLead     timex.Duration `json:"warning_lead" yaml:"warning_lead"`
}

// parseFile overlays cfg with the file named by -c/-config in args. No file
// flag means no changes.
func parseFile(cfg *Config, args []string) error {
	path := flagx.ConfigPath(args)
	if path == "" {
		return nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}

	var fc FileConfig
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &fc)
	default:
		err = json.Unmarshal(data, &fc)
	}
	if err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}

	fc.apply(cfg)
	return nil
}

func (fc *FileConfig) apply(cfg *Config) {
	setString(&cfg.APIBaseURL, fc.APIBaseURL)
	setString(&cfg.AppOrigin, fc.AppOrigin)
	setDuration(&cfg.HTTPTimeout, fc.HTTPTimeout)
	setString(&cfg.ProxyListen, fc.ProxyListen)
	setString(&cfg.LogLevel, fc.LogLevel)

	setString(&cfg.StoreBackend, fc.Store.Backend)
	setString(&cfg.StoreDSN, fc.Store.DSN)
	setString(&cfg.RedisAddr, fc.Store.RedisAddr)
	setString(&cfg.RedisKey, fc.Store.RedisKey)
	setString(&cfg.SealPassphrase, fc.Store.SealPassphrase)

	setDuration(&cfg.RefreshBuffer, fc.Refresh.Buffer)
	setDuration(&cfg.BackgroundInterval, fc.Refresh.BackgroundInterval)
	setDuration(&cfg.BackgroundBuffer, fc.Refresh.BackgroundBuffer)

	setDuration(&cfg.ShortInactivity, fc.Session.Short.InactivityLimit)
	setDuration(&cfg.ShortWarning, fc.Session.Short.WarningLead)
	setDuration(&cfg.LongInactivity, fc.Session.Long.InactivityLimit)
	setDuration(&cfg.LongWarning, fc.Session.Long.WarningLead)
	setDuration(&cfg.IdlePoll, fc.Session.IdlePoll)
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setDuration(dst *time.Duration, v timex.Duration) {
	if v.Duration != 0 {
		*dst = v.Duration
	}
}
