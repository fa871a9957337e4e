package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadProjectConfigDefaultsWhenMissing(t *testing.T) {
	workDir := t.TempDir()
	deskDir := filepath.Join(workDir, DeskDir)
	if err := os.MkdirAll(deskDir, 0o755); err != nil {
		t.Fatal(err)
	}
	c := &Config{WorkDir: workDir, DeskDir: deskDir, Project: defaultProjectConfig()}
	if err := c.loadProjectConfig(); err != nil {
		t.Fatalf("loadProjectConfig returned error: %v", err)
	}
	if c.Project.Version != 1 {
		t.Fatalf("expected default version == 1, got %d", c.Project.Version)
	}
	if c.BaseURL() != DefaultBaseURL {
		t.Fatalf("expected default base url %q, got %q", DefaultBaseURL, c.BaseURL())
	}
	if c.Project.API.CSRFCookie != "csrftoken" || c.Project.API.CSRFHeader != "X-CSRFToken" {
		t.Fatalf("unexpected csrf defaults: %+v", c.Project.API)
	}
	if c.RequestTimeout() != 0 {
		t.Fatalf("expected no request timeout by default, got %s", c.RequestTimeout())
	}
}

func TestInitDeskDirWritesParsableDefault(t *testing.T) {
	workDir := t.TempDir()
	if err := InitDeskDir(workDir); err != nil {
		t.Fatalf("init desk dir: %v", err)
	}
	if _, err := os.Stat(filepath.Join(workDir, DeskDir, "logs")); err != nil {
		t.Fatalf("logs dir missing: %v", err)
	}
	cfg, err := NewConfig(workDir)
	if err != nil {
		t.Fatalf("new config: %v", err)
	}
	if cfg.BaseURL() != DefaultBaseURL {
		t.Fatalf("base url = %q, want %q", cfg.BaseURL(), DefaultBaseURL)
	}
}

func TestLoadProjectConfigParsesYaml(t *testing.T) {
	workDir := t.TempDir()
	deskDir := filepath.Join(workDir, DeskDir)
	if err := os.MkdirAll(deskDir, 0o755); err != nil {
		t.Fatal(err)
	}
	configYAML := strings.TrimSpace(`
version: 1
api:
  base_url: https://ecommerce.example.com/
  request_timeout: 45s
session:
  cookies:
    sessionid: abc123
    " csrftoken ": " tok "
`)
	if err := os.WriteFile(filepath.Join(deskDir, "config.yaml"), []byte(configYAML), 0o644); err != nil {
		t.Fatal(err)
	}
	c := &Config{WorkDir: workDir, DeskDir: deskDir, Project: defaultProjectConfig()}
	if err := c.loadProjectConfig(); err != nil {
		t.Fatalf("loadProjectConfig returned error: %v", err)
	}
	if c.BaseURL() != "https://ecommerce.example.com" {
		t.Fatalf("expected trailing slash trimmed, got %s", c.BaseURL())
	}
	if c.RequestTimeout() != 45*time.Second {
		t.Fatalf("request timeout = %s, want 45s", c.RequestTimeout())
	}
	if c.Project.API.CSRFCookie != DefaultCSRFCookie {
		t.Fatalf("expected csrf cookie default to fill in, got %q", c.Project.API.CSRFCookie)
	}
	cookies := c.SessionCookies()
	if cookies["sessionid"] != "abc123" || cookies["csrftoken"] != "tok" {
		t.Fatalf("unexpected cookies: %#v", cookies)
	}
}

func TestLoadProjectConfigValidation(t *testing.T) {
	workDir := t.TempDir()
	deskDir := filepath.Join(workDir, DeskDir)
	if err := os.MkdirAll(deskDir, 0o755); err != nil {
		t.Fatal(err)
	}
	configYAML := strings.TrimSpace(`
version: 1
api:
  base_url: ftp://ecommerce.example.com
`)
	if err := os.WriteFile(filepath.Join(deskDir, "config.yaml"), []byte(configYAML), 0o644); err != nil {
		t.Fatal(err)
	}
	c := &Config{WorkDir: workDir, DeskDir: deskDir, Project: defaultProjectConfig()}
	if err := c.loadProjectConfig(); err == nil {
		t.Fatalf("expected validation error but got none")
	}
}

func TestNewConfigHonorsEnv(t *testing.T) {
	t.Setenv("FULFILLMENT_API_URL", "http://127.0.0.1:9000/")
	t.Setenv("FULFILLMENT_SESSION_ID", "sess-1")
	t.Setenv("FULFILLMENT_CSRF_TOKEN", "csrf-1")
	cfg, err := NewConfig(t.TempDir())
	if err != nil {
		t.Fatalf("new config: %v", err)
	}
	if cfg.BaseURL() != "http://127.0.0.1:9000" {
		t.Fatalf("base url = %s", cfg.BaseURL())
	}
	cookies := cfg.SessionCookies()
	if cookies["sessionid"] != "sess-1" {
		t.Fatalf("sessionid = %q", cookies["sessionid"])
	}
	if cookies["csrftoken"] != "csrf-1" {
		t.Fatalf("csrftoken = %q", cookies["csrftoken"])
	}
}
