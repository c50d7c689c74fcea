package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	envPrefix            = "NOTEMIRROR"
	defaultHTTPAddress   = "0.0.0.0:8080"
	defaultDatabasePath  = "notemirror.db"
	defaultLogLevel      = "info"
	defaultRemoteBaseURL = "https://www.evernote.com"
	defaultPageSize      = 50
	defaultPageInterval  = 250 * time.Millisecond
)

// AppConfig captures runtime configuration for the sync service.
type AppConfig struct {
	HTTPAddress   string
	DatabasePath  string
	LogLevel      string
	RemoteBaseURL string
	SyncPageSize  int
	PageInterval  time.Duration
}

// NewViper returns a viper instance with defaults and env bindings configured.
func NewViper() *viper.Viper {
	configViper := viper.New()
	ApplyDefaults(configViper)
	return configViper
}

// ApplyDefaults configures defaults and env bindings on the provided viper instance.
func ApplyDefaults(configViper *viper.Viper) {
	configViper.SetEnvPrefix(envPrefix)
	configViper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	configViper.AutomaticEnv()

	configViper.SetDefault("http.address", defaultHTTPAddress)
	configViper.SetDefault("database.path", defaultDatabasePath)
	configViper.SetDefault("log.level", defaultLogLevel)
	configViper.SetDefault("remote.base_url", defaultRemoteBaseURL)
	configViper.SetDefault("sync.page_size", defaultPageSize)
	configViper.SetDefault("sync.page_interval", defaultPageInterval)
}

// Load parses runtime configuration from viper.
func Load(configViper *viper.Viper) (AppConfig, error) {
	cfg := AppConfig{
		HTTPAddress:   configViper.GetString("http.address"),
		DatabasePath:  configViper.GetString("database.path"),
		LogLevel:      configViper.GetString("log.level"),
		RemoteBaseURL: configViper.GetString("remote.base_url"),
		SyncPageSize:  configViper.GetInt("sync.page_size"),
		PageInterval:  configViper.GetDuration("sync.page_interval"),
	}

	if err := cfg.validate(); err != nil {
		return AppConfig{}, err
	}

	return cfg, nil
}

func (c AppConfig) validate() error {
	if strings.TrimSpace(c.DatabasePath) == "" {
		return fmt.Errorf("database.path is required")
	}
	if strings.TrimSpace(c.RemoteBaseURL) == "" {
		return fmt.Errorf("remote.base_url is required")
	}
	if c.SyncPageSize <= 0 {
		return fmt.Errorf("sync.page_size must be positive")
	}
	return nil
}
