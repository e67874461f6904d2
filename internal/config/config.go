package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

// EnvPrefix scopes environment overrides: MEET_PORT, MEET_BACKEND_URL, ...
const EnvPrefix = "MEET"

type Config struct {
	Mode       string        `mapstructure:"mode"`
	Port       int           `mapstructure:"port"`
	StaticPath string        `mapstructure:"static_path"`
	ReadLimit  int64         `mapstructure:"read_limit"`
	PingPeriod time.Duration `mapstructure:"ping_period"`
	Secret     string        `mapstructure:"secret"`

	UserSigTTL   time.Duration `mapstructure:"usersig_ttl"`
	JoinLimit    int           `mapstructure:"join_limit"`
	JoinInterval time.Duration `mapstructure:"join_interval"`

	// ControlPort serves the local session API of the meet client.
	ControlPort int           `mapstructure:"control_port"`
	Backend     BackendConfig `mapstructure:"backend"`
	Session     SessionConfig `mapstructure:"session"`
	Media       MediaConfig   `mapstructure:"media"`
}

type BackendConfig struct {
	URL         string        `mapstructure:"url"`
	DialTimeout time.Duration `mapstructure:"dial_timeout"`
}

type SessionConfig struct {
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	InboxSize      int           `mapstructure:"inbox_size"`
}

type MediaConfig struct {
	Enabled  bool     `mapstructure:"enabled"`
	STUNURLs []string `mapstructure:"stun_urls"`
}

// New returns a viper instance with every default set and env overrides bound.
// Callers may bind flags to it before Load.
func New() *viper.Viper {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("mode", "release")
	v.SetDefault("port", 8080)
	v.SetDefault("static_path", "./web")
	v.SetDefault("read_limit", 32768)
	v.SetDefault("ping_period", "54s")
	v.SetDefault("secret", "")
	v.SetDefault("usersig_ttl", "24h")
	v.SetDefault("join_limit", 10)
	v.SetDefault("join_interval", "1m")

	v.SetDefault("control_port", 8090)
	v.SetDefault("backend.url", "ws://localhost:8080/api/ws/signal")
	v.SetDefault("backend.dial_timeout", "5s")
	v.SetDefault("session.request_timeout", "10s")
	v.SetDefault("session.inbox_size", 256)
	v.SetDefault("media.enabled", false)
	v.SetDefault("media.stun_urls", []string{"stun:stun.l.google.com:19302"})
	return v
}

// Load reads file into v and decodes the result. An empty file falls back to
// config/config.<CONFIG_ENV>.yaml; a missing file is not an error.
func Load(v *viper.Viper, file string) (*Config, error) {
	if file == "" {
		env := os.Getenv("CONFIG_ENV")
		if env == "" {
			env = "dev"
		}
		file = fmt.Sprintf("config/config.%s.yaml", env)
	}
	v.SetConfigFile(file)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("read config %s: %w", file, err)
		}
		log.Warn().Str("module", "config").Str("file", file).Msg("config file not found, using defaults")
	} else {
		log.Info().Str("module", "config").Str("file", file).Msg("config loaded")
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	log.Info().Str("module", "config").Str("mode", cfg.Mode).Int("port", cfg.Port).
		Str("backend", cfg.Backend.URL).Dur("request_timeout", cfg.Session.RequestTimeout).Msg("config ready")
	return &cfg, nil
}

func (c *Config) Validate() error {
	switch {
	case c.Port <= 0 || c.Port > 65535:
		return fmt.Errorf("port %d out of range", c.Port)
	case c.Session.RequestTimeout <= 0:
		return errors.New("session.request_timeout must be positive")
	case c.Session.InboxSize <= 0:
		return errors.New("session.inbox_size must be positive")
	}
	return nil
}
