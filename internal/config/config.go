// internal/config/config.go
//
// This package handles configuration and the .fulfillment directory structure.
// Every working directory the desk is launched from gets a .fulfillment/
// folder holding config.yaml and the log files.

package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	// DeskDir is the name of the directory we create in the working directory
	DeskDir = ".fulfillment"

	DefaultBaseURL    = "http://localhost:8002"
	DefaultCSRFCookie = "csrftoken"
	DefaultCSRFHeader = "X-CSRFToken"

	sessionCookieName = "sessionid"
)

const defaultProjectConfigYAML = `# fulfillment desk configuration
version: 1

api:
  # Root of the ecommerce service. Orders are read from /api/v1/orders/.
  base_url: http://localhost:8002
  csrf_cookie: csrftoken
  csrf_header: X-CSRFToken
  # Leave empty to rely on the transport's defaults.
  # request_timeout: 30s

# Cookies seeded into the client jar before the first request.
# FULFILLMENT_SESSION_ID and FULFILLMENT_CSRF_TOKEN override these.
session:
  cookies: {}
`

// Duration is a time.Duration that reads "30s"-style strings from YAML.
type Duration time.Duration

// UnmarshalYAML parses a Go duration string.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var raw string
	if err := node.Decode(&raw); err != nil {
		return err
	}
	raw = strings.TrimSpace(raw)
	if raw == "" {
		*d = 0
		return nil
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML writes the duration back as a string.
func (d Duration) MarshalYAML() (any, error) {
	if d == 0 {
		return "", nil
	}
	return time.Duration(d).String(), nil
}

// APIConfig describes the ecommerce order API.
type APIConfig struct {
	BaseURL        string   `yaml:"base_url"`
	CSRFCookie     string   `yaml:"csrf_cookie"`
	CSRFHeader     string   `yaml:"csrf_header"`
	RequestTimeout Duration `yaml:"request_timeout,omitempty"`
}

// SessionConfig carries cookies the desk presents to the API.
type SessionConfig struct {
	Cookies map[string]string `yaml:"cookies"`
}

// ProjectConfig models .fulfillment/config.yaml.
type ProjectConfig struct {
	Version int           `yaml:"version"`
	API     APIConfig     `yaml:"api"`
	Session SessionConfig `yaml:"session"`
}

// Config holds the runtime configuration for the desk.
type Config struct {
	// WorkDir is the directory where the desk was launched
	WorkDir string

	// DeskDir is WorkDir/.fulfillment
	DeskDir string

	Project ProjectConfig
}

// InitDeskDir creates the .fulfillment directory structure in workDir.
//
// Structure created:
// .fulfillment/
// ├── config.yaml
// └── logs/      <- desk.log and journey.log
func InitDeskDir(workDir string) error {
	deskDir := filepath.Join(workDir, DeskDir)
	if err := os.MkdirAll(filepath.Join(deskDir, "logs"), 0o755); err != nil {
		return err
	}
	return ensureProjectConfig(filepath.Join(deskDir, "config.yaml"))
}

// NewConfig loads .fulfillment/config.yaml (if present) and applies
// environment overrides.
func NewConfig(workDir string) (*Config, error) {
	cfg := &Config{
		WorkDir: workDir,
		DeskDir: filepath.Join(workDir, DeskDir),
		Project: defaultProjectConfig(),
	}
	if err := cfg.loadProjectConfig(); err != nil {
		return nil, err
	}
	cfg.applyEnv()
	if err := cfg.Project.validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

// LogsDir returns the path to the logs directory
func (c *Config) LogsDir() string {
	return filepath.Join(c.DeskDir, "logs")
}

// ProjectConfigPath returns the on-disk location for the config file.
func (c *Config) ProjectConfigPath() string {
	return filepath.Join(c.DeskDir, "config.yaml")
}

// BaseURL returns the API root without a trailing slash.
func (c *Config) BaseURL() string {
	return c.Project.API.BaseURL
}

// SetBaseURL overrides the API root for this run, e.g. from a flag.
func (c *Config) SetBaseURL(raw string) error {
	c.Project.API.BaseURL = normalizeBaseURL(raw)
	return c.Project.validate()
}

// RequestTimeout returns the configured per-request timeout; zero means none.
func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.Project.API.RequestTimeout)
}

// SessionCookies returns the cookies to seed into the HTTP client jar.
func (c *Config) SessionCookies() map[string]string {
	out := make(map[string]string, len(c.Project.Session.Cookies))
	for k, v := range c.Project.Session.Cookies {
		out[k] = v
	}
	return out
}

func (c *Config) loadProjectConfig() error {
	path := c.ProjectConfigPath()
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("config: read %s: %w", path, err)
	}

	var parsed ProjectConfig
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return fmt.Errorf("config: parse %s: %w", path, err)
	}

	parsed.applyDefaults()
	parsed.normalize()
	if err := parsed.validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}

	c.Project = parsed
	return nil
}

func (c *Config) applyEnv() {
	if v := strings.TrimSpace(os.Getenv("FULFILLMENT_API_URL")); v != "" {
		c.Project.API.BaseURL = normalizeBaseURL(v)
	}
	if v := strings.TrimSpace(os.Getenv("FULFILLMENT_SESSION_ID")); v != "" {
		c.Project.Session.Cookies[sessionCookieName] = v
	}
	if v := strings.TrimSpace(os.Getenv("FULFILLMENT_CSRF_TOKEN")); v != "" {
		c.Project.Session.Cookies[c.Project.API.CSRFCookie] = v
	}
}

func defaultProjectConfig() ProjectConfig {
	return ProjectConfig{
		Version: 1,
		API: APIConfig{
			BaseURL:    DefaultBaseURL,
			CSRFCookie: DefaultCSRFCookie,
			CSRFHeader: DefaultCSRFHeader,
		},
		Session: SessionConfig{Cookies: map[string]string{}},
	}
}

func (pc *ProjectConfig) applyDefaults() {
	if pc.Version == 0 {
		pc.Version = 1
	}
	if strings.TrimSpace(pc.API.BaseURL) == "" {
		pc.API.BaseURL = DefaultBaseURL
	}
	if strings.TrimSpace(pc.API.CSRFCookie) == "" {
		pc.API.CSRFCookie = DefaultCSRFCookie
	}
	if strings.TrimSpace(pc.API.CSRFHeader) == "" {
		pc.API.CSRFHeader = DefaultCSRFHeader
	}
	if pc.Session.Cookies == nil {
		pc.Session.Cookies = map[string]string{}
	}
}

func (pc *ProjectConfig) normalize() {
	pc.API.BaseURL = normalizeBaseURL(pc.API.BaseURL)
	pc.API.CSRFCookie = strings.TrimSpace(pc.API.CSRFCookie)
	pc.API.CSRFHeader = strings.TrimSpace(pc.API.CSRFHeader)
	cookies := make(map[string]string, len(pc.Session.Cookies))
	for name, value := range pc.Session.Cookies {
		cookies[strings.TrimSpace(name)] = strings.TrimSpace(value)
	}
	pc.Session.Cookies = cookies
}

func (pc *ProjectConfig) validate() error {
	if pc.Version < 1 {
		return fmt.Errorf("config version must be >= 1")
	}
	u, err := url.Parse(pc.API.BaseURL)
	if err != nil {
		return fmt.Errorf("api.base_url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("api.base_url must be an absolute http(s) URL")
	}
	if u.Host == "" {
		return fmt.Errorf("api.base_url is missing a host")
	}
	if pc.API.CSRFCookie == "" {
		return fmt.Errorf("api.csrf_cookie is required")
	}
	if pc.API.CSRFHeader == "" {
		return fmt.Errorf("api.csrf_header is required")
	}
	if pc.API.RequestTimeout < 0 {
		return fmt.Errorf("api.request_timeout must not be negative")
	}
	for name := range pc.Session.Cookies {
		if name == "" {
			return fmt.Errorf("session.cookies: cookie name is required")
		}
	}
	return nil
}

func normalizeBaseURL(raw string) string {
	return strings.TrimRight(strings.TrimSpace(raw), "/")
}

func ensureProjectConfig(path string) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	} else if !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return os.WriteFile(path, []byte(defaultProjectConfigYAML), 0o644)
}
