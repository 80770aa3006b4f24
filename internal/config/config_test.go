package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/alanbuscaglia/clockify-mcp/internal/clockify"
)

func envFrom(m map[string]string) func(string) string {
	return func(k string) string { return m[k] }
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func TestLoadFromDefaultsWithoutFile(t *testing.T) {
	cfg, path, err := LoadFrom("", t.TempDir(), t.TempDir(), envFrom(nil))
	if err != nil {
		t.Fatalf("LoadFrom: %v", err)
	}
	if path != "" {
		t.Fatalf("expected no config file, got %q", path)
	}
	if cfg.BaseURL != DefaultBaseURL || cfg.HTTPTimeout != DefaultHTTPTimeout {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	if cfg.APIKey != "" {
		t.Fatalf("expected empty api key")
	}
}

func TestDefaultBaseURLMatchesGateway(t *testing.T) {
	if Default().BaseURL != clockify.DefaultBaseURL {
		t.Fatalf("default base url %q differs from gateway default %q", Default().BaseURL, clockify.DefaultBaseURL)
	}
}

func TestLoadFromMissingAPIKeyIsNotAnError(t *testing.T) {
	if _, _, err := LoadFrom("", t.TempDir(), "", envFrom(nil)); err != nil {
		t.Fatalf("missing api key must not fail startup: %v", err)
	}
}

func TestLoadFromProjectFileBeatsHome(t *testing.T) {
	cwd := t.TempDir()
	home := t.TempDir()
	writeFile(t, filepath.Join(cwd, "clockify-mcp.yaml"), "timezone: Europe/Madrid\n")
	writeFile(t, filepath.Join(home, ".config", "clockify-mcp", "config.yaml"), "timezone: America/Lima\n")

	cfg, path, err := LoadFrom("", cwd, home, envFrom(nil))
	if err != nil {
		t.Fatalf("LoadFrom: %v", err)
	}
	if path != filepath.Join(cwd, "clockify-mcp.yaml") {
		t.Fatalf("path = %q", path)
	}
	if cfg.Timezone != "Europe/Madrid" {
		t.Fatalf("timezone = %q", cfg.Timezone)
	}
}

func TestLoadFromHomeFile(t *testing.T) {
	home := t.TempDir()
	writeFile(t, filepath.Join(home, ".config", "clockify-mcp", "config.yaml"), `
api_key: from-file
http_timeout: 5s
tools: [read]
log:
  level: debug
  format: json
http:
  port: 9000
`)

	cfg, _, err := LoadFrom("", t.TempDir(), home, envFrom(nil))
	if err != nil {
		t.Fatalf("LoadFrom: %v", err)
	}
	if cfg.APIKey != "from-file" || cfg.HTTPTimeout != 5*time.Second {
		t.Fatalf("unexpected file values: %+v", cfg)
	}
	if len(cfg.Tools) != 1 || cfg.Tools[0] != "read" {
		t.Fatalf("tools = %v", cfg.Tools)
	}
	if cfg.Log.Level != "debug" || cfg.Log.Format != "json" {
		t.Fatalf("log = %+v", cfg.Log)
	}
	if cfg.HTTP.Port != 9000 || cfg.HTTP.Host != "127.0.0.1" {
		t.Fatalf("http = %+v", cfg.HTTP)
	}
}

func TestLoadFromEnvOverridesFile(t *testing.T) {
	cwd := t.TempDir()
	writeFile(t, filepath.Join(cwd, "clockify-mcp.yaml"), "api_key: from-file\nbase_url: https://file.example/api\n")

	cfg, _, err := LoadFrom("", cwd, "", envFrom(map[string]string{
		"CLOCKIFY_API_KEY":            "  from-env  ",
		"CLOCKIFY_MCP_TOOLS":          "get-clockify-user, ,write",
		"OTEL_EXPORTER_OTLP_ENDPOINT": "http://collector:4318",
	}))
	if err != nil {
		t.Fatalf("LoadFrom: %v", err)
	}
	if cfg.APIKey != "from-env" {
		t.Fatalf("api key = %q", cfg.APIKey)
	}
	if cfg.BaseURL != "https://file.example/api" {
		t.Fatalf("base url = %q", cfg.BaseURL)
	}
	if strings.Join(cfg.Tools, "|") != "get-clockify-user|write" {
		t.Fatalf("tools = %v", cfg.Tools)
	}
	if cfg.Telemetry.OTLPEndpoint != "http://collector:4318" {
		t.Fatalf("otlp endpoint = %q", cfg.Telemetry.OTLPEndpoint)
	}
}

func TestLoadFromExplicitPath(t *testing.T) {
	dir := t.TempDir()
	explicit := filepath.Join(dir, "custom.yaml")
	writeFile(t, explicit, "timezone: UTC\n")

	cfg, path, err := LoadFrom(explicit, t.TempDir(), "", envFrom(nil))
	if err != nil {
		t.Fatalf("LoadFrom: %v", err)
	}
	if path != explicit || cfg.Timezone != "UTC" {
		t.Fatalf("path=%q cfg=%+v", path, cfg)
	}
}

func TestLoadFromExplicitPathMissing(t *testing.T) {
	_, _, err := LoadFrom(filepath.Join(t.TempDir(), "nope.yaml"), t.TempDir(), "", envFrom(nil))
	if err == nil || !strings.Contains(err.Error(), "not found") {
		t.Fatalf("expected not found error, got %v", err)
	}
}

func TestLoadFromInvalidYAML(t *testing.T) {
	cwd := t.TempDir()
	writeFile(t, filepath.Join(cwd, "clockify-mcp.yaml"), "log: [unclosed\n")
	if _, _, err := LoadFrom("", cwd, "", envFrom(nil)); err == nil {
		t.Fatalf("expected parse error")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{name: "defaults", mutate: func(*Config) {}},
		{name: "bad level", mutate: func(c *Config) { c.Log.Level = "loud" }, want: "log level"},
		{name: "bad format", mutate: func(c *Config) { c.Log.Format = "xml" }, want: "log format"},
		{name: "bad timezone", mutate: func(c *Config) { c.Timezone = "Mars/Olympus" }, want: "timezone"},
		{name: "relative base url", mutate: func(c *Config) { c.BaseURL = "/api/v1" }, want: "base_url"},
		{name: "negative timeout", mutate: func(c *Config) { c.HTTPTimeout = -time.Second }, want: "http_timeout"},
		{name: "bad port", mutate: func(c *Config) { c.HTTP.Port = 70000 }, want: "port"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(&cfg)
			err := cfg.Validate()
			if tc.want == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("error = %v, want containing %q", err, tc.want)
			}
		})
	}
}

func TestLocation(t *testing.T) {
	cfg := Default()
	loc, err := cfg.Location()
	if err != nil || loc != time.Local {
		t.Fatalf("empty timezone should be local, got %v %v", loc, err)
	}

	cfg.Timezone = "UTC"
	loc, err = cfg.Location()
	if err != nil || loc.String() != "UTC" {
		t.Fatalf("got %v %v", loc, err)
	}
}

func TestSplitList(t *testing.T) {
	got := SplitList(" a, b ,,c ")
	if strings.Join(got, "|") != "a|b|c" {
		t.Fatalf("SplitList = %v", got)
	}
	if SplitList("") != nil {
		t.Fatalf("expected nil for empty input")
	}
}

func TestLoggerHonorsLevelAndFormat(t *testing.T) {
	var buf strings.Builder
	cfg := Default()
	cfg.Log = LogConfig{Level: "warn", Format: "json"}

	logger := cfg.Logger(&buf)
	logger.Info("hidden")
	logger.Warn("shown", "tool", "get-clockify-user")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Fatalf("info line should be filtered at warn level: %s", out)
	}
	if !strings.Contains(out, `"msg":"shown"`) || !strings.Contains(out, `"tool":"get-clockify-user"`) {
		t.Fatalf("expected json warn line, got %s", out)
	}
}
