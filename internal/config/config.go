// Package config loads client and server settings from YAML files.
package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// EnvJWTSecret overrides ServerConfig.JWTSecret.
const EnvJWTSecret = "PACKSYNC_JWT_SECRET"

// ServerConfig настройки хаба
type ServerConfig struct {
	Addr            string          `yaml:"addr"`
	DBPath          string          `yaml:"db_path"`
	JWTSecret       string          `yaml:"jwt_secret"`
	LogLevel        string          `yaml:"log_level"`
	AllowedOrigins  []string        `yaml:"allowed_origins"`
	Hub             HubConfig       `yaml:"hub"`
	RateLimit       RateLimitConfig `yaml:"rate_limit"`
	TokenTTL        time.Duration   `yaml:"token_ttl"`
	ShutdownTimeout time.Duration   `yaml:"shutdown_timeout"`
}

// HubConfig настройки websocket-соединений
type HubConfig struct {
	SendBuffer     int           `yaml:"send_buffer"`
	MaxMessageSize int64         `yaml:"max_message_size"`
	WriteWait      time.Duration `yaml:"write_wait"`
	PongWait       time.Duration `yaml:"pong_wait"`
	PingPeriod     time.Duration `yaml:"ping_period"`
}

// RateLimitConfig ограничение попыток подключения по IP. Rate 0 выключает лимит
type RateLimitConfig struct {
	Rate   int           `yaml:"rate"`
	Window time.Duration `yaml:"window"`
}

// ClientConfig настройки CLI-клиента
type ClientConfig struct {
	ServerURL     string        `yaml:"server_url"`
	DBPath        string        `yaml:"db_path"`
	LogLevel      string        `yaml:"log_level"`
	SyncInterval  time.Duration `yaml:"sync_interval"`
	ProbeInterval time.Duration `yaml:"probe_interval"`
}

// DefaultServerConfig returns a ServerConfig with sensible defaults
func DefaultServerConfig() *ServerConfig {
	return &ServerConfig{
		Addr:     ":8080",
		DBPath:   "packsync.db",
		LogLevel: "info",
		Hub: HubConfig{
			SendBuffer:     64,
			MaxMessageSize: 64 << 10,
			WriteWait:      10 * time.Second,
			PongWait:       60 * time.Second,
			PingPeriod:     54 * time.Second,
		},
		RateLimit: RateLimitConfig{
			Rate:   30,
			Window: time.Minute,
		},
		TokenTTL:        30 * 24 * time.Hour,
		ShutdownTimeout: 10 * time.Second,
	}
}

// DefaultClientConfig returns a ClientConfig with sensible defaults
func DefaultClientConfig() *ClientConfig {
	return &ClientConfig{
		ServerURL:     "http://localhost:8080",
		DBPath:        "packsync-client.db",
		LogLevel:      "warn",
		SyncInterval:  30 * time.Second,
		ProbeInterval: 15 * time.Second,
	}
}

// LoadServerConfig reads path over the defaults and applies environment overrides.
// An empty path yields the defaults.
func LoadServerConfig(path string) (*ServerConfig, error) {
	cfg := DefaultServerConfig()
	if err := loadFile(path, cfg); err != nil {
		return nil, err
	}
	if secret := os.Getenv(EnvJWTSecret); secret != "" {
		cfg.JWTSecret = secret
	}
	return cfg, nil
}

// LoadClientConfig reads path over the defaults. An empty path yields the defaults.
func LoadClientConfig(path string) (*ClientConfig, error) {
	cfg := DefaultClientConfig()
	if err := loadFile(path, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func loadFile(path string, dst any) error {
	if path == "" {
		return nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}
	return nil
}

// Validate checks that the configuration is valid
func (c *ServerConfig) Validate() error {
	var errs []error
	if c.Addr == "" {
		errs = append(errs, errors.New("addr is required"))
	}
	if c.DBPath == "" {
		errs = append(errs, errors.New("db_path is required"))
	}
	if len(c.JWTSecret) < 16 {
		errs = append(errs, fmt.Errorf("jwt_secret must be at least 16 characters (set it in the file or %s)", EnvJWTSecret))
	}
	if c.TokenTTL <= 0 {
		errs = append(errs, errors.New("token_ttl must be positive"))
	}
	if c.Hub.PingPeriod >= c.Hub.PongWait {
		errs = append(errs, errors.New("hub.ping_period must be shorter than hub.pong_wait"))
	}
	if c.RateLimit.Rate < 0 {
		errs = append(errs, errors.New("rate_limit.rate must not be negative"))
	}
	if c.RateLimit.Rate > 0 && c.RateLimit.Window <= 0 {
		errs = append(errs, errors.New("rate_limit.window must be positive"))
	}
	if _, err := ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// Validate checks that the configuration is valid
func (c *ClientConfig) Validate() error {
	var errs []error
	if u, err := url.Parse(c.ServerURL); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		errs = append(errs, fmt.Errorf("server_url %q must be an http(s) URL", c.ServerURL))
	}
	if c.DBPath == "" {
		errs = append(errs, errors.New("db_path is required"))
	}
	if c.SyncInterval <= 0 {
		errs = append(errs, errors.New("sync_interval must be positive"))
	}
	if c.ProbeInterval <= 0 {
		errs = append(errs, errors.New("probe_interval must be positive"))
	}
	if _, err := ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// SaveToFile saves configuration to a YAML file
func (c *ClientConfig) SaveToFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// WebsocketURL converts the http(s) server URL into the hub endpoint.
func (c *ClientConfig) WebsocketURL() (string, error) {
	u, err := url.Parse(c.ServerURL)
	if err != nil {
		return "", fmt.Errorf("failed to parse server url: %w", err)
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path = "/api/v1/ws"
	u.RawQuery = ""
	return u.String(), nil
}

// ParseLevel maps debug|info|warn|error onto slog levels.
func ParseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("invalid log_level %q", s)
	}
	return level, nil
}

// NewLogger создает текстовый slog.Logger с уровнем из конфигурации
func NewLogger(w io.Writer, level string) *slog.Logger {
	lvl, err := ParseLevel(level)
	if err != nil {
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: lvl}))
}
