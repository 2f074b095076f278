// Package config loads settings for the cart server and the cartctl client.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const envPrefix = "VIORMART_"

// Slot drivers for the client-side cart slot.
const (
	SlotSQLite = "sqlite"
	SlotRedis  = "redis"
	SlotMemory = "memory"
)

type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Storage StorageConfig `yaml:"storage"`
	Catalog CatalogConfig `yaml:"catalog"`
	Auth    AuthConfig    `yaml:"auth"`
	Client  ClientConfig  `yaml:"client"`
	Logging LoggingConfig `yaml:"logging"`
}

type ServerConfig struct {
	Addr              string        `yaml:"addr"`
	ReadHeaderTimeout time.Duration `yaml:"read_header_timeout"`
	ShutdownTimeout   time.Duration `yaml:"shutdown_timeout"`
	AllowedOrigins    []string      `yaml:"allowed_origins"`
}

type StorageConfig struct {
	SQLitePath string `yaml:"sqlite_path"`
}

type CatalogConfig struct {
	// SeedFile is a YAML product list upserted at startup. Optional.
	SeedFile string `yaml:"seed_file"`
}

// AuthConfig covers bearer tokens, the optional OIDC browser login, and a
// development user that signs every request in.
type AuthConfig struct {
	TokenSecret  string        `yaml:"token_secret"`
	TokenTTL     time.Duration `yaml:"token_ttl"`
	IssuerURL    string        `yaml:"issuer_url"`
	ClientID     string        `yaml:"client_id"`
	ClientSecret string        `yaml:"client_secret"`
	RedirectURL  string        `yaml:"redirect_url"`
	SessionKey   string        `yaml:"session_key"`
	SessionTTL   time.Duration `yaml:"session_ttl"`
	CookieSecure bool          `yaml:"cookie_secure"`
	DevUser      string        `yaml:"dev_user"`
}

// OIDCEnabled reports whether the browser login routes should be mounted.
func (a AuthConfig) OIDCEnabled() bool {
	return a.IssuerURL != ""
}

type ClientConfig struct {
	BaseURL string        `yaml:"base_url"`
	Token   string        `yaml:"token"`
	Timeout time.Duration `yaml:"timeout"`
	Slot    SlotConfig    `yaml:"slot"`
}

type SlotConfig struct {
	Driver   string `yaml:"driver"`
	Path     string `yaml:"path"`
	RedisURL string `yaml:"redis_url"`
	Key      string `yaml:"key"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, console
}

func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:              ":8080",
			ReadHeaderTimeout: 5 * time.Second,
			ShutdownTimeout:   10 * time.Second,
		},
		Storage: StorageConfig{
			SQLitePath: "viormart.db",
		},
		Auth: AuthConfig{
			TokenTTL:   24 * time.Hour,
			SessionTTL: 7 * 24 * time.Hour,
		},
		Client: ClientConfig{
			BaseURL: "http://localhost:8080/api/shop",
			Timeout: 15 * time.Second,
			Slot: SlotConfig{
				Driver: SlotSQLite,
				Path:   "cartctl.db",
				Key:    "viormart_cart",
			},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load reads path (a missing file means defaults), then .env, then the
// environment. An empty path skips the file.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("read config: %w", err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse config: %w", err)
			}
		}
	}

	// Load never overrides variables that are already set.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	if err := cfg.applyEnvOverrides(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnvOverrides() error {
	text := map[string]*string{
		"ADDR":               &c.Server.Addr,
		"SQLITE_PATH":        &c.Storage.SQLitePath,
		"CATALOG_SEED_FILE":  &c.Catalog.SeedFile,
		"TOKEN_SECRET":       &c.Auth.TokenSecret,
		"OIDC_ISSUER_URL":    &c.Auth.IssuerURL,
		"OIDC_CLIENT_ID":     &c.Auth.ClientID,
		"OIDC_CLIENT_SECRET": &c.Auth.ClientSecret,
		"OIDC_REDIRECT_URL":  &c.Auth.RedirectURL,
		"SESSION_KEY":        &c.Auth.SessionKey,
		"DEV_USER":           &c.Auth.DevUser,
		"API_URL":            &c.Client.BaseURL,
		"TOKEN":              &c.Client.Token,
		"SLOT_DRIVER":        &c.Client.Slot.Driver,
		"SLOT_PATH":          &c.Client.Slot.Path,
		"REDIS_URL":          &c.Client.Slot.RedisURL,
		"LOG_LEVEL":          &c.Logging.Level,
		"LOG_FORMAT":         &c.Logging.Format,
	}
	for name, target := range text {
		if value, ok := os.LookupEnv(envPrefix + name); ok {
			*target = value
		}
	}

	durations := map[string]*time.Duration{
		"TOKEN_TTL":      &c.Auth.TokenTTL,
		"SESSION_TTL":    &c.Auth.SessionTTL,
		"CLIENT_TIMEOUT": &c.Client.Timeout,
	}
	for name, target := range durations {
		value, ok := os.LookupEnv(envPrefix + name)
		if !ok {
			continue
		}
		parsed, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("%s%s: %w", envPrefix, name, err)
		}
		*target = parsed
	}

	if value, ok := os.LookupEnv(envPrefix + "COOKIE_SECURE"); ok {
		parsed, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("%sCOOKIE_SECURE: %w", envPrefix, err)
		}
		c.Auth.CookieSecure = parsed
	}
	if value, ok := os.LookupEnv(envPrefix + "ALLOWED_ORIGINS"); ok {
		c.Server.AllowedOrigins = splitList(value)
	}

	// PORT is what hosting platforms set; it wins over the configured addr.
	if port := os.Getenv("PORT"); port != "" {
		c.Server.Addr = ":" + strings.TrimPrefix(port, ":")
	}
	return nil
}

func (c *Config) Validate() error {
	if c.Storage.SQLitePath == "" {
		return errors.New("storage.sqlite_path is required")
	}
	if c.Auth.TokenTTL <= 0 {
		return errors.New("auth.token_ttl must be positive")
	}
	switch c.Client.Slot.Driver {
	case SlotSQLite:
		if c.Client.Slot.Path == "" {
			return errors.New("client.slot.path is required for the sqlite driver")
		}
	case SlotRedis:
		if c.Client.Slot.RedisURL == "" {
			return errors.New("client.slot.redis_url is required for the redis driver")
		}
	case SlotMemory:
	default:
		return fmt.Errorf("unknown client.slot.driver %q", c.Client.Slot.Driver)
	}
	return nil
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
