package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Addr == "" {
		t.Fatal("empty addr")
	}
	if cfg.Auth.Mode != "dev" && os.Getenv("AUTH_MODE") == "" {
		t.Fatalf("auth mode %q", cfg.Auth.Mode)
	}
}

func TestLoadYAMLAndEnvOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	data := []byte("addr: \":9090\"\nallowOrigins:\n  - https://app.example.com\nrate:\n  rps: 5\n  burst: 20\n")
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Rate.RPS != 5 || cfg.Rate.Burst != 20 {
		t.Fatalf("rate: %+v", cfg.Rate)
	}
	if len(cfg.AllowOrigins) != 1 {
		t.Fatalf("origins: %v", cfg.AllowOrigins)
	}

	t.Setenv("PORT", "7777")
	t.Setenv("ALLOW_ORIGINS", "https://a.example.com, https://b.example.com")
	cfg, err = Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Addr != ":7777" {
		t.Fatalf("addr %q, env should win", cfg.Addr)
	}
	if len(cfg.AllowOrigins) != 2 {
		t.Fatalf("origins: %v", cfg.AllowOrigins)
	}
}

func TestMissingFileIsFine(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err != nil {
		t.Fatalf("missing file should not error: %v", err)
	}
}

func TestOriginAllowed(t *testing.T) {
	cfg := &Config{}
	if !cfg.OriginAllowed("https://anywhere.example.com") {
		t.Fatal("empty allow-list must permit everything")
	}
	cfg.AllowOrigins = []string{"https://app.example.com"}
	if !cfg.OriginAllowed("https://APP.example.com") {
		t.Fatal("origin match should be case-insensitive")
	}
	if cfg.OriginAllowed("https://evil.example.com") {
		t.Fatal("unlisted origin allowed")
	}
	cfg.AllowOrigins = []string{"*"}
	if !cfg.OriginAllowed("https://anywhere.example.com") {
		t.Fatal("wildcard should permit everything")
	}
}
