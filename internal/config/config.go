package config

import (
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Environment variables that override file settings
const (
	EnvAddr      = "MAILBRIDGE_ADDR"
	EnvMailRoot  = "MAILBRIDGE_MAIL_ROOT"
	EnvDraftsDir = "MAILBRIDGE_DRAFTS_DIR"
)

// HostConfig represents the configuration for the mail host
type HostConfig struct {
	// Addr is the loopback address the transport server listens on
	Addr string `yaml:"addr"`

	// MailRoot is the directory holding accounts.yaml and the account trees
	MailRoot string `yaml:"mail_root"`

	// DraftsDir is where staged drafts are written. Empty means
	// <mail_root>/drafts.
	DraftsDir string `yaml:"drafts_dir,omitempty"`

	// Server is reported in initialize responses
	Server ServerInfo `yaml:"server"`
}

// ServerInfo names the server in protocol handshakes
type ServerInfo struct {
	Name    string `yaml:"name"`
	Version string `yaml:"version"`
}

// DefaultConfig returns a configuration listening on 127.0.0.1:8765 and
// reading mail from ./mail
func DefaultConfig() *HostConfig {
	return &HostConfig{
		Addr:     "127.0.0.1:8765",
		MailRoot: "./mail",
		Server: ServerInfo{
			Name:    "mailbridge",
			Version: "dev",
		},
	}
}

// LoadFile loads configuration from a file. A missing file yields the
// defaults.
func LoadFile(path string) (*HostConfig, error) {
	if path == "" {
		return DefaultConfig(), nil
	}

	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultConfig(), nil
		}
		return nil, fmt.Errorf("error opening config file: %w", err)
	}
	defer f.Close()

	return Load(f)
}

// Load loads configuration from an io.Reader
func Load(r io.Reader) (*HostConfig, error) {
	config := DefaultConfig()

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("error reading config data: %w", err)
	}

	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("error parsing config YAML: %w", err)
	}

	return config, nil
}

// LoadEnvFile loads variables from a dotenv file into the process
// environment. Variables already set are kept.
func LoadEnvFile(path string) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("error loading env file: %w", err)
	}
	return nil
}

// ApplyEnv overrides settings from the environment using lookup, which has
// the signature of os.LookupEnv
func (c *HostConfig) ApplyEnv(lookup func(string) (string, bool)) {
	if v, ok := lookup(EnvAddr); ok && v != "" {
		c.Addr = v
	}
	if v, ok := lookup(EnvMailRoot); ok && v != "" {
		c.MailRoot = v
	}
	if v, ok := lookup(EnvDraftsDir); ok && v != "" {
		c.DraftsDir = v
	}
}

// DraftsPath returns the drafts directory, defaulting to <mail_root>/drafts
func (c *HostConfig) DraftsPath() string {
	if c.DraftsDir != "" {
		return c.DraftsDir
	}
	return filepath.Join(c.MailRoot, "drafts")
}

// Validate checks that the configuration can be served. The transport is
// unauthenticated, so only loopback addresses are accepted.
func (c *HostConfig) Validate() error {
	host, _, err := net.SplitHostPort(c.Addr)
	if err != nil {
		return fmt.Errorf("invalid addr %q: %w", c.Addr, err)
	}
	if host != "localhost" {
		ip := net.ParseIP(host)
		if ip == nil || !ip.IsLoopback() {
			return fmt.Errorf("addr %q is not a loopback address", c.Addr)
		}
	}
	if c.MailRoot == "" {
		return fmt.Errorf("mail_root must be set")
	}
	return nil
}

// Save writes the configuration to a file
func (c *HostConfig) Save(path string) error {
	// Create parent directories if they don't exist
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("error creating config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("error marshaling config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("error writing config file: %w", err)
	}

	return nil
}
