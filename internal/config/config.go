// Package config resolves the client and sandbox configuration from
// defaults, a YAML file, a .env file and SEJEM_* environment variables.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/erazemk/sejem/internal/model"
)

// DefaultFile is read when no config path is given and it exists.
const DefaultFile = "sejem.yaml"

// Config is the resolved configuration.
type Config struct {
	// APIURL is the marketplace API root.
	APIURL string `yaml:"api_url"`
	// StatePath is the local SQLite file holding the session.
	StatePath string `yaml:"state_path"`
	// Addr is the listen address of the local web UI.
	Addr      string        `yaml:"addr"`
	Timeout   time.Duration `yaml:"timeout"`
	RateLimit float64       `yaml:"rate_limit"`
	LogPath   string        `yaml:"log_path"`
	Sandbox   Sandbox       `yaml:"sandbox"`
}

// Sandbox configures the local test double of the API.
type Sandbox struct {
	DBPath       string `yaml:"db_path"`
	Addr         string `yaml:"addr"`
	StartBalance string `yaml:"start_balance"`
}

// Balance returns the starting balance for new sandbox accounts.
func (s Sandbox) Balance() model.Amount {
	return model.ParseAmount(s.StartBalance)
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		APIURL:    "http://localhost:8090",
		StatePath: "sejem.sqlite3",
		Addr:      "localhost:8080",
		Timeout:   30 * time.Second,
		RateLimit: 10,
		Sandbox: Sandbox{
			DBPath:       "sandbox.sqlite3",
			Addr:         "localhost:8090",
			StartBalance: "100",
		},
	}
}

// Load resolves the configuration. path names the YAML file; when empty,
// DefaultFile is used if present. envFile is loaded into the process
// environment without overriding variables that are already set.
func Load(path, envFile string) (Config, error) {
	cfg := Default()

	explicit := path != ""
	if !explicit {
		path = DefaultFile
	}
	if err := cfg.LoadFile(path); err != nil {
		if explicit || !errors.Is(err, fs.ErrNotExist) {
			return cfg, err
		}
	}

	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return cfg, fmt.Errorf("loading %s: %w", envFile, err)
		}
	}

	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// LoadFile overlays the YAML file at path. Keys missing from the file keep
// their current values.
func (c *Config) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading config: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parsing config %s: %w", path, err)
	}
	return nil
}

// ApplyEnv overlays SEJEM_* variables found through lookup.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	strs := map[string]*string{
		"SEJEM_API_URL":               &c.APIURL,
		"SEJEM_STATE":                 &c.StatePath,
		"SEJEM_ADDR":                  &c.Addr,
		"SEJEM_LOG":                   &c.LogPath,
		"SEJEM_SANDBOX_DB":            &c.Sandbox.DBPath,
		"SEJEM_SANDBOX_ADDR":          &c.Sandbox.Addr,
		"SEJEM_SANDBOX_START_BALANCE": &c.Sandbox.StartBalance,
	}
	for key, dst := range strs {
		if v, ok := lookup(key); ok {
			*dst = v
		}
	}

	if v, ok := lookup("SEJEM_TIMEOUT"); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("SEJEM_TIMEOUT: %w", err)
		}
		c.Timeout = d
	}
	if v, ok := lookup("SEJEM_RATE_LIMIT"); ok {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("SEJEM_RATE_LIMIT: %w", err)
		}
		c.RateLimit = f
	}
	return nil
}

// Validate checks the resolved configuration.
func (c *Config) Validate() error {
	if c.APIURL == "" {
		return errors.New("api_url is required")
	}
	u, err := url.Parse(c.APIURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("api_url %q must be an http or https URL", c.APIURL)
	}
	if c.StatePath == "" {
		return errors.New("state_path is required")
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive, got %s", c.Timeout)
	}
	if c.RateLimit < 0 {
		return fmt.Errorf("rate_limit cannot be negative, got %g", c.RateLimit)
	}
	if c.Sandbox.Balance().IsNegative() {
		return fmt.Errorf("sandbox start_balance cannot be negative, got %s", c.Sandbox.StartBalance)
	}
	return nil
}
