package config

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Addr != "127.0.0.1:8765" {
		t.Errorf("Addr = %q, want 127.0.0.1:8765", cfg.Addr)
	}
	if cfg.MailRoot != "./mail" {
		t.Errorf("MailRoot = %q, want ./mail", cfg.MailRoot)
	}
	if cfg.DraftsPath() != filepath.Join("mail", "drafts") {
		t.Errorf("DraftsPath() = %q, want mail/drafts", cfg.DraftsPath())
	}
	if cfg.Server.Name != "mailbridge" {
		t.Errorf("Server.Name = %q, want mailbridge", cfg.Server.Name)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should be valid: %v", err)
	}
}

func TestLoad(t *testing.T) {
	yamlConfig := `
addr: "[::1]:9000"
mail_root: /var/mail/me
drafts_dir: /tmp/drafts
server:
  name: test-host
  version: 1.0.0
`

	cfg, err := Load(bytes.NewBufferString(yamlConfig))
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.Addr != "[::1]:9000" {
		t.Errorf("Addr = %q", cfg.Addr)
	}
	if cfg.MailRoot != "/var/mail/me" {
		t.Errorf("MailRoot = %q", cfg.MailRoot)
	}
	if cfg.DraftsPath() != "/tmp/drafts" {
		t.Errorf("DraftsPath() = %q", cfg.DraftsPath())
	}
	if cfg.Server.Name != "test-host" || cfg.Server.Version != "1.0.0" {
		t.Errorf("Server = %+v", cfg.Server)
	}
}

func TestLoad_PartialKeepsDefaults(t *testing.T) {
	cfg, err := Load(bytes.NewBufferString("mail_root: /srv/mail\n"))
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.Addr != "127.0.0.1:8765" {
		t.Errorf("Addr should keep its default, got %q", cfg.Addr)
	}
	if cfg.DraftsPath() != "/srv/mail/drafts" {
		t.Errorf("DraftsPath() = %q", cfg.DraftsPath())
	}
}

func TestLoad_Invalid(t *testing.T) {
	if _, err := Load(bytes.NewBufferString("addr: [unterminated")); err == nil {
		t.Error("expected an error for invalid YAML")
	}
}

func TestLoadFile_Missing(t *testing.T) {
	cfg, err := LoadFile(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("missing file should not be an error: %v", err)
	}
	if cfg.Addr != DefaultConfig().Addr {
		t.Errorf("expected defaults, got %+v", cfg)
	}
}

func TestApplyEnv(t *testing.T) {
	env := map[string]string{
		EnvAddr:     "localhost:7000",
		EnvMailRoot: "/env/mail",
	}
	lookup := func(key string) (string, bool) {
		v, ok := env[key]
		return v, ok
	}

	cfg := DefaultConfig()
	cfg.ApplyEnv(lookup)

	if cfg.Addr != "localhost:7000" {
		t.Errorf("Addr = %q", cfg.Addr)
	}
	if cfg.MailRoot != "/env/mail" {
		t.Errorf("MailRoot = %q", cfg.MailRoot)
	}
	if cfg.DraftsDir != "" {
		t.Errorf("DraftsDir should be unset, got %q", cfg.DraftsDir)
	}
}

func TestLoadEnvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	if err := os.WriteFile(path, []byte("MAILBRIDGE_DRAFTS_DIR=/env/drafts\n"), 0644); err != nil {
		t.Fatal(err)
	}
	t.Setenv(EnvDraftsDir, "")
	os.Unsetenv(EnvDraftsDir)

	if err := LoadEnvFile(path); err != nil {
		t.Fatalf("LoadEnvFile: %v", err)
	}

	cfg := DefaultConfig()
	cfg.ApplyEnv(os.LookupEnv)
	if cfg.DraftsPath() != "/env/drafts" {
		t.Errorf("DraftsPath() = %q", cfg.DraftsPath())
	}

	if err := LoadEnvFile(filepath.Join(t.TempDir(), "missing.env")); err == nil {
		t.Error("expected an error for a missing env file")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		addr    string
		wantErr bool
	}{
		{"127.0.0.1:8765", false},
		{"localhost:8765", false},
		{"[::1]:8765", false},
		{"0.0.0.0:8765", true},
		{"192.168.1.10:8765", true},
		{"example.com:80", true},
		{"no-port", true},
	}

	for _, tt := range tests {
		cfg := DefaultConfig()
		cfg.Addr = tt.addr
		err := cfg.Validate()
		if (err != nil) != tt.wantErr {
			t.Errorf("Validate(%q) error = %v, wantErr %v", tt.addr, err, tt.wantErr)
		}
	}
}

func TestSave(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "mailhost.yaml")

	cfg := DefaultConfig()
	cfg.MailRoot = "/saved/mail"
	if err := cfg.Save(path); err != nil {
		t.Fatalf("Failed to save config: %v", err)
	}

	loaded, err := LoadFile(path)
	if err != nil {
		t.Fatalf("Failed to load saved config: %v", err)
	}
	if loaded.MailRoot != "/saved/mail" {
		t.Errorf("MailRoot = %q", loaded.MailRoot)
	}
	if loaded.Addr != cfg.Addr {
		t.Errorf("Addr = %q", loaded.Addr)
	}
}
