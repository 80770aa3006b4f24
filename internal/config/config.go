// Package config resolves clockify-mcp settings from defaults, an optional
// YAML file and the environment, in that order.
package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/alanbuscaglia/clockify-mcp/internal/clockify"

	"gopkg.in/yaml.v3"
)

const (
	projectConfigName = "clockify-mcp.yaml"
	homeConfigName    = "config.yaml"

	DefaultBaseURL     = clockify.DefaultBaseURL
	DefaultHTTPTimeout = 30 * time.Second
	DefaultHTTPPort    = 7438
)

// Config is the full runtime configuration.
type Config struct {
	APIKey      string        `yaml:"api_key"`
	BaseURL     string        `yaml:"base_url"`
	Timezone    string        `yaml:"timezone"`
	HTTPTimeout time.Duration `yaml:"http_timeout"`
	Tools       []string      `yaml:"tools"`

	Log       LogConfig       `yaml:"log"`
	HTTP      HTTPConfig      `yaml:"http"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// HTTPConfig applies to the `serve` transport only.
type HTTPConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

type TelemetryConfig struct {
	OTLPEndpoint string `yaml:"otlp_endpoint"`
	ServiceName  string `yaml:"service_name"`
}

func Default() Config {
	return Config{
		BaseURL:     DefaultBaseURL,
		HTTPTimeout: DefaultHTTPTimeout,
		Log:         LogConfig{Level: "info", Format: "text"},
		HTTP:        HTTPConfig{Host: "127.0.0.1", Port: DefaultHTTPPort},
		Telemetry:   TelemetryConfig{ServiceName: "clockify-mcp"},
	}
}

// Load resolves the configuration for the current process. It returns the
// file that was read, or "" when only defaults and environment applied.
func Load(explicitPath string) (Config, string, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return Config{}, "", fmt.Errorf("resolve working directory: %w", err)
	}
	home, _ := os.UserHomeDir()
	return LoadFrom(explicitPath, cwd, home, os.Getenv)
}

// LoadFrom is the testable core of Load.
func LoadFrom(explicitPath, cwd, home string, getenv func(string) string) (Config, string, error) {
	cfg := Default()

	path, err := discover(explicitPath, cwd, home)
	if err != nil {
		return Config{}, "", err
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, "", fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, "", fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	applyEnv(&cfg, getenv)

	if err := cfg.Validate(); err != nil {
		return Config{}, "", err
	}
	return cfg, path, nil
}

// discover uses first-match semantics. A missing explicit path is an error;
// missing default locations are not.
func discover(explicitPath, cwd, home string) (string, error) {
	var candidates []string
	explicit := strings.TrimSpace(explicitPath)
	if explicit != "" {
		candidates = append(candidates, filepath.Clean(explicit))
	} else {
		candidates = append(candidates, filepath.Join(cwd, projectConfigName))
		if home != "" {
			candidates = append(candidates, filepath.Join(home, ".config", "clockify-mcp", homeConfigName))
		}
	}

	for _, candidate := range candidates {
		info, err := os.Stat(candidate)
		if err == nil && !info.IsDir() {
			return candidate, nil
		}
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			return "", fmt.Errorf("checking config path %q: %w", candidate, err)
		}
		if explicit != "" {
			return "", fmt.Errorf("config file %q not found", candidate)
		}
	}
	return "", nil
}

func applyEnv(cfg *Config, getenv func(string) string) {
	set := func(dst *string, key string) {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			*dst = v
		}
	}
	set(&cfg.APIKey, "CLOCKIFY_API_KEY")
	set(&cfg.BaseURL, "CLOCKIFY_BASE_URL")
	set(&cfg.Timezone, "CLOCKIFY_TIMEZONE")
	set(&cfg.Log.Level, "CLOCKIFY_MCP_LOG_LEVEL")
	set(&cfg.Log.Format, "CLOCKIFY_MCP_LOG_FORMAT")
	set(&cfg.Telemetry.OTLPEndpoint, "OTEL_EXPORTER_OTLP_ENDPOINT")

	if v := strings.TrimSpace(getenv("CLOCKIFY_MCP_TOOLS")); v != "" {
		cfg.Tools = SplitList(v)
	}
}

// Validate checks everything except the API key, whose absence is reported
// per call instead of at startup.
func (c Config) Validate() error {
	if _, err := parseLevel(c.Log.Level); err != nil {
		return err
	}
	switch strings.ToLower(c.Log.Format) {
	case "", "text", "json":
	default:
		return fmt.Errorf("config: unknown log format %q (want text or json)", c.Log.Format)
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	u, err := url.Parse(c.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("config: invalid base_url %q", c.BaseURL)
	}
	if c.HTTPTimeout < 0 {
		return fmt.Errorf("config: http_timeout must not be negative")
	}
	if c.HTTP.Port < 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("config: invalid http port %d", c.HTTP.Port)
	}
	return nil
}

// Location is the zone used to read local start/end times.
func (c Config) Location() (*time.Location, error) {
	tz := strings.TrimSpace(c.Timezone)
	if tz == "" || strings.EqualFold(tz, "local") {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("config: invalid timezone %q: %w", tz, err)
	}
	return loc, nil
}

// Logger builds the process logger. Output must not be stdout when the
// stdio transport is in use.
func (c Config) Logger(w io.Writer) *slog.Logger {
	level, _ := parseLevel(c.Log.Level)
	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(c.Log.Format, "json") {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

func parseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("config: unknown log level %q", s)
	}
}

// SplitList splits a comma separated value, dropping blanks.
func SplitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
