package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing %s: %v", name, err)
	}
	return path
}

func lookupFrom(env map[string]string) func(string) (string, bool) {
	return func(key string) (string, bool) {
		v, ok := env[key]
		return v, ok
	}
}

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	if cfg.Sandbox.Balance().Fixed() != "100.00" {
		t.Errorf("expected start balance 100.00, got %s", cfg.Sandbox.Balance().Fixed())
	}
}

func TestLoadFileOverlays(t *testing.T) {
	path := writeFile(t, "sejem.yaml", `
api_url: https://market.example.com
timeout: 5s
sandbox:
  start_balance: "42.50"
`)

	cfg := Default()
	if err := cfg.LoadFile(path); err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if cfg.APIURL != "https://market.example.com" {
		t.Errorf("expected api url from file, got %q", cfg.APIURL)
	}
	if cfg.Timeout != 5*time.Second {
		t.Errorf("expected 5s timeout, got %s", cfg.Timeout)
	}
	if cfg.StatePath != "sejem.sqlite3" {
		t.Errorf("expected default state path to survive, got %q", cfg.StatePath)
	}
	if cfg.Sandbox.Addr != "localhost:8090" || cfg.Sandbox.Balance().Fixed() != "42.50" {
		t.Errorf("unexpected sandbox config %+v", cfg.Sandbox)
	}
}

func TestLoadFileErrors(t *testing.T) {
	cfg := Default()
	if err := cfg.LoadFile(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
	bad := writeFile(t, "bad.yaml", "api_url: [unclosed")
	if err := cfg.LoadFile(bad); err == nil {
		t.Error("expected parse error")
	}
}

func TestApplyEnv(t *testing.T) {
	cfg := Default()
	err := cfg.ApplyEnv(lookupFrom(map[string]string{
		"SEJEM_API_URL":    "http://10.0.0.5:9000",
		"SEJEM_TIMEOUT":    "1m",
		"SEJEM_RATE_LIMIT": "2.5",
		"SEJEM_SANDBOX_DB": ":memory:",
	}))
	if err != nil {
		t.Fatalf("ApplyEnv: %v", err)
	}
	if cfg.APIURL != "http://10.0.0.5:9000" || cfg.Timeout != time.Minute || cfg.RateLimit != 2.5 {
		t.Errorf("unexpected config %+v", cfg)
	}
	if cfg.Sandbox.DBPath != ":memory:" {
		t.Errorf("expected sandbox db override, got %q", cfg.Sandbox.DBPath)
	}

	if err := cfg.ApplyEnv(lookupFrom(map[string]string{"SEJEM_TIMEOUT": "soon"})); err == nil {
		t.Error("expected invalid duration error")
	}
	if err := cfg.ApplyEnv(lookupFrom(map[string]string{"SEJEM_RATE_LIMIT": "fast"})); err == nil {
		t.Error("expected invalid rate error")
	}
}

func TestLoadPrecedence(t *testing.T) {
	path := writeFile(t, "custom.yaml", "api_url: https://from-file.example\naddr: 0.0.0.0:9999\n")
	envFile := writeFile(t, ".env", "SEJEM_ADDR=127.0.0.1:7000\nSEJEM_LOG=from-dotenv.log\n")

	// A variable already in the environment wins over .env.
	t.Setenv("SEJEM_LOG", "from-env.log")
	// godotenv sets variables process-wide; restore them after the test.
	t.Setenv("SEJEM_ADDR", "")
	os.Unsetenv("SEJEM_ADDR")

	cfg, err := Load(path, envFile)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.APIURL != "https://from-file.example" {
		t.Errorf("expected api url from file, got %q", cfg.APIURL)
	}
	if cfg.Addr != "127.0.0.1:7000" {
		t.Errorf("expected .env to override file, got %q", cfg.Addr)
	}
	if cfg.LogPath != "from-env.log" {
		t.Errorf("expected environment to win over .env, got %q", cfg.LogPath)
	}
}

func TestLoadMissingFiles(t *testing.T) {
	dir := t.TempDir()

	if _, err := Load(filepath.Join(dir, "nope.yaml"), ""); err == nil {
		t.Error("expected error for explicit missing config")
	}

	// A missing .env is fine.
	path := writeFile(t, "ok.yaml", "timeout: 2s\n")
	if _, err := Load(path, filepath.Join(dir, ".env")); err != nil {
		t.Errorf("expected missing .env to be ignored, got %v", err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"empty api url", func(c *Config) { c.APIURL = "" }, "api_url is required"},
		{"bad scheme", func(c *Config) { c.APIURL = "ftp://x" }, "http or https"},
		{"no host", func(c *Config) { c.APIURL = "http://" }, "http or https"},
		{"zero timeout", func(c *Config) { c.Timeout = 0 }, "timeout"},
		{"negative rate", func(c *Config) { c.RateLimit = -1 }, "rate_limit"},
		{"empty state", func(c *Config) { c.StatePath = "" }, "state_path"},
		{"negative balance", func(c *Config) { c.Sandbox.StartBalance = "-5" }, "start_balance"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("expected error containing %q, got %v", tt.want, err)
			}
		})
	}
}
