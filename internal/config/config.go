// Package config holds the typed configuration for the whisperchat backend.
// Values come from built-in defaults, then an optional YAML file, then
// WHISPER_* environment variables (a .env file is loaded first if present).
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// EnvPrefix is the prefix of every environment override.
const EnvPrefix = "WHISPER"

// Audit modes.
const (
	AuditNone     = "none"
	AuditConsole  = "console"
	AuditFile     = "file"
	AuditDatabase = "database"
	AuditRedis    = "redis"
)

const (
	DefaultPublicPrefix  = "!"
	DefaultSessionTTL    = 30 * time.Minute
	DefaultSweepInterval = time.Minute
	DefaultGroupLifetime = 24 * time.Hour
	DefaultWordListPath  = "nounlist.txt"
	DefaultWordListURL   = "https://www.desiquintans.com/downloads/nounlist/nounlist.txt"
	DefaultFetchTimeout  = 10 * time.Second
	DefaultTokenTTL      = 72 * time.Hour
)

// Config is resolved once at startup and read-only afterwards.
type Config struct {
	// PublicPrefix redirects a line back to public chat while a conversation is focused.
	PublicPrefix string `yaml:"public_prefix" split_words:"true" validate:"required"`

	Sessions SessionsConfig `yaml:"sessions" split_words:"true"`
	Groups   GroupsConfig   `yaml:"groups" split_words:"true"`
	Audit    AuditConfig    `yaml:"audit" split_words:"true"`
	Server   ServerConfig   `yaml:"server" split_words:"true"`
	Database DatabaseConfig `yaml:"database" split_words:"true"`
	Redis    RedisConfig    `yaml:"redis" split_words:"true"`
	Telegram TelegramConfig `yaml:"telegram" split_words:"true"`
	Log      LogConfig      `yaml:"log" split_words:"true"`

	// Formats are chat line templates keyed by message kind (whisper, reply, dm, group, public).
	Formats map[string]string `yaml:"formats" ignored:"true"`
	// Messages are notice templates keyed by identifiers such as "dm-start".
	Messages map[string]string `yaml:"messages" ignored:"true"`
	// Help is the list of lines printed by "dm help".
	Help []string `yaml:"help" ignored:"true"`
}

// SessionsConfig controls direct conversation expiry.
type SessionsConfig struct {
	TTL           time.Duration `yaml:"ttl" split_words:"true" validate:"gt=0"`
	SweepInterval time.Duration `yaml:"sweep_interval" split_words:"true" validate:"gt=0"`
}

// GroupsConfig controls group lifetime and name generation.
type GroupsConfig struct {
	Lifetime time.Duration  `yaml:"lifetime" split_words:"true" validate:"gt=0"`
	WordList WordListConfig `yaml:"wordlist" split_words:"true"`
}

// WordListConfig names the sources tried, in order, for group name words.
type WordListConfig struct {
	Path         string        `yaml:"path" split_words:"true"`
	URL          string        `yaml:"url" split_words:"true" validate:"omitempty,url"`
	FetchTimeout time.Duration `yaml:"fetch_timeout" split_words:"true" validate:"gte=0"`
}

// AuditConfig selects the social spy sink.
type AuditConfig struct {
	Mode  string   `yaml:"mode" split_words:"true" validate:"oneof=none console file database redis"`
	Dir   string   `yaml:"dir" split_words:"true"`
	Kinds []string `yaml:"kinds" split_words:"true" validate:"dive,oneof=dm whisper reply group"`
}

type ServerConfig struct {
	HTTPAddr  string        `yaml:"http_addr" split_words:"true" validate:"required"`
	JWTSecret string        `yaml:"jwt_secret" split_words:"true"`
	TokenTTL  time.Duration `yaml:"token_ttl" split_words:"true" validate:"gt=0"`
	// AdminToken guards the /api/admin routes. They are disabled when empty.
	AdminToken string `yaml:"admin_token" split_words:"true"`
}

type DatabaseConfig struct {
	DSN string `yaml:"dsn" split_words:"true"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr" split_words:"true"`
	Password string `yaml:"password" split_words:"true"`
	DB       int    `yaml:"db" split_words:"true" validate:"gte=0"`
}

type TelegramConfig struct {
	Token string `yaml:"token" split_words:"true"`
}

type LogConfig struct {
	Level  string `yaml:"level" split_words:"true" validate:"oneof=debug info warn error"`
	Format string `yaml:"format" split_words:"true" validate:"oneof=text json"`
}

// Default returns a configuration where every field carries its documented default.
func Default() *Config {
	return &Config{
		PublicPrefix: DefaultPublicPrefix,
		Sessions: SessionsConfig{
			TTL:           DefaultSessionTTL,
			SweepInterval: DefaultSweepInterval,
		},
		Groups: GroupsConfig{
			Lifetime: DefaultGroupLifetime,
			WordList: WordListConfig{
				Path:         DefaultWordListPath,
				URL:          DefaultWordListURL,
				FetchTimeout: DefaultFetchTimeout,
			},
		},
		Audit: AuditConfig{
			Mode:  AuditNone,
			Dir:   "socialspy",
			Kinds: []string{"dm"},
		},
		Server:   ServerConfig{HTTPAddr: ":8080", TokenTTL: DefaultTokenTTL},
		Log:      LogConfig{Level: "info", Format: "text"},
		Formats:  map[string]string{},
		Messages: map[string]string{},
	}
}

// Load builds the configuration. path may be empty, in which case only
// defaults and the environment are used. A missing .env file is not an error.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("loading .env: %w", err)
	}

	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	if err := envconfig.Process(EnvPrefix, cfg); err != nil {
		return nil, fmt.Errorf("reading environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return cfg, nil
}

// Validate checks field constraints and cross-field requirements of the audit mode.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return err
	}

	switch c.Audit.Mode {
	case AuditFile:
		if c.Audit.Dir == "" {
			return fmt.Errorf("audit.dir is required for audit mode %q", c.Audit.Mode)
		}
	case AuditDatabase:
		if c.Database.DSN == "" {
			return fmt.Errorf("database.dsn is required for audit mode %q", c.Audit.Mode)
		}
	case AuditRedis:
		if c.Database.DSN == "" || c.Redis.Addr == "" {
			return fmt.Errorf("database.dsn and redis.addr are required for audit mode %q", c.Audit.Mode)
		}
	}
	return nil
}
