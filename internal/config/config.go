// internal/config/config.go
//
// Configuration and the .curator directory structure. Every project
// that uses curator gets a .curator/ folder in its root holding the
// staging area, persisted pipeline state and logs.

package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	// CuratorDir is the name of the directory created in each project.
	CuratorDir = ".curator"

	// EnvAccessKey names the environment variable holding the image
	// search provider credential.
	EnvAccessKey = "UNSPLASH_ACCESS_KEY"
)

// Defaults applied when config.yaml leaves a field unset.
const (
	defaultMaxRequests = 45
	defaultWindow      = Duration(time.Hour)
	defaultPerPage     = 30
	defaultMinLikes    = 10
	defaultMinWidth    = 2000
	defaultAssetsDir   = "Assets.xcassets"
)

const defaultConfigYAML = `# curator project configuration
version: 1

# Directory (relative to the project root) where published asset
# bundles are written. One <name>.imageset folder per asset.
assets_dir: Assets.xcassets

provider:
  # Requests allowed inside the trailing window, shared across runs.
  # Keep a few requests of headroom under the real provider limit.
  max_requests: 45
  window: 1h
  per_page: 30

quality:
  min_likes: 10
  min_width: 2000

# Named image slots to fill. Query terms are tried in order until one
# yields a qualifying candidate.
assets:
  - name: hero_today
    query_terms: ["fitness motivation sunrise", "morning workout energy"]
    orientation: landscape
    category: hero
    description: Hero image for the today dashboard
`

// AssetRequest is one configured named image slot. Immutable once
// loaded; the pipeline never mutates the request list.
type AssetRequest struct {
	Name        string   `yaml:"name"`
	QueryTerms  []string `yaml:"query_terms"`
	Orientation string   `yaml:"orientation"`
	Color       string   `yaml:"color,omitempty"`
	Category    string   `yaml:"category,omitempty"`
	Description string   `yaml:"description,omitempty"`
}

// Duration wraps time.Duration so "1h"-style strings parse from YAML.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	parsed, err := time.ParseDuration(strings.TrimSpace(value.Value))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", value.Value, err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

// ProviderConfig tunes the search provider and its shared quota.
type ProviderConfig struct {
	MaxRequests int      `yaml:"max_requests"`
	Window      Duration `yaml:"window"`
	PerPage     int      `yaml:"per_page"`
}

// QualityConfig holds the candidate filter thresholds.
type QualityConfig struct {
	MinLikes int `yaml:"min_likes"`
	MinWidth int `yaml:"min_width"`
}

// ProjectConfig models .curator/config.yaml.
type ProjectConfig struct {
	Version   int            `yaml:"version"`
	AssetsDir string         `yaml:"assets_dir"`
	Provider  ProviderConfig `yaml:"provider"`
	Quality   QualityConfig  `yaml:"quality"`
	Assets    []AssetRequest `yaml:"assets"`
}

// Config holds the runtime configuration for curator.
type Config struct {
	// ProjectDir is the directory where the user ran `curator` from.
	ProjectDir string

	// CuratorProjectDir is ProjectDir/.curator.
	CuratorProjectDir string

	// AccessKey is the provider credential, read from the environment
	// (optionally via a .env file in the project directory).
	AccessKey string

	Project ProjectConfig
}

// InitCuratorDir creates the .curator directory structure in the given
// project directory.
//
// Structure created:
// .curator/
// ├── staging/   <- downloaded-but-not-yet-published binaries
// ├── state/     <- rate-limit, checkpoint and review documents
// └── logs/      <- session logs
func InitCuratorDir(projectDir string) error {
	curatorDir := filepath.Join(projectDir, CuratorDir)

	dirs := []string{
		filepath.Join(curatorDir, "staging"),
		filepath.Join(curatorDir, "state"),
		filepath.Join(curatorDir, "logs"),
	}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}

	return ensureProjectConfig(filepath.Join(curatorDir, "config.yaml"))
}

// NewConfig loads the project configuration and provider credentials.
func NewConfig(projectDir string) (*Config, error) {
	// .env files are optional; a missing file is not an error.
	_ = godotenv.Load(filepath.Join(projectDir, ".env"))

	cfg := &Config{
		ProjectDir:        projectDir,
		CuratorProjectDir: filepath.Join(projectDir, CuratorDir),
		AccessKey:         os.Getenv(EnvAccessKey),
		Project:           defaultProjectConfig(),
	}

	if err := cfg.loadProjectConfig(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// StagingDir returns the path to the staging area.
func (c *Config) StagingDir() string {
	return filepath.Join(c.CuratorProjectDir, "staging")
}

// StateDir returns the path to the persisted state directory.
func (c *Config) StateDir() string {
	return filepath.Join(c.CuratorProjectDir, "state")
}

// LogsDir returns the path to the logs directory.
func (c *Config) LogsDir() string {
	return filepath.Join(c.CuratorProjectDir, "logs")
}

// AssetsDir returns the absolute path to the target asset store.
func (c *Config) AssetsDir() string {
	dir := c.Project.AssetsDir
	if filepath.IsAbs(dir) {
		return filepath.Clean(dir)
	}
	return filepath.Join(c.ProjectDir, dir)
}

// RateLimitPath returns the rate-window log location.
func (c *Config) RateLimitPath() string {
	return filepath.Join(c.StateDir(), "rate-limit.json")
}

// CheckpointPath returns the acquisition checkpoint document location.
func (c *Config) CheckpointPath() string {
	return filepath.Join(c.StateDir(), "checkpoints.json")
}

// ReviewLogPath returns the review decision document location.
func (c *Config) ReviewLogPath() string {
	return filepath.Join(c.StateDir(), "review-log.json")
}

// StatusPath returns the acquisition run summary location.
func (c *Config) StatusPath() string {
	return filepath.Join(c.StateDir(), "status.json")
}

// MetadataPath returns the staging metadata sidecar location.
func (c *Config) MetadataPath() string {
	return filepath.Join(c.StagingDir(), "download-metadata.json")
}

// AttributionsPath returns the applied-image attribution manifest
// location.
func (c *Config) AttributionsPath() string {
	return filepath.Join(c.StateDir(), "attributions.json")
}

// ProjectConfigPath returns the on-disk location for the config file.
func (c *Config) ProjectConfigPath() string {
	return filepath.Join(c.CuratorProjectDir, "config.yaml")
}

// Requests returns the configured asset request list in file order.
func (c *Config) Requests() []AssetRequest {
	return c.Project.Assets
}

// Request looks up a configured asset request by name.
func (c *Config) Request(name string) (AssetRequest, bool) {
	for _, req := range c.Project.Assets {
		if req.Name == name {
			return req, true
		}
	}
	return AssetRequest{}, false
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

func defaultProjectConfig() ProjectConfig {
	return ProjectConfig{
		Version:   1,
		AssetsDir: defaultAssetsDir,
		Provider: ProviderConfig{
			MaxRequests: defaultMaxRequests,
			Window:      defaultWindow,
			PerPage:     defaultPerPage,
		},
		Quality: QualityConfig{
			MinLikes: defaultMinLikes,
			MinWidth: defaultMinWidth,
		},
	}
}

func (pc *ProjectConfig) applyDefaults() {
	if pc.Version == 0 {
		pc.Version = 1
	}
	if strings.TrimSpace(pc.AssetsDir) == "" {
		pc.AssetsDir = defaultAssetsDir
	}
	if pc.Provider.MaxRequests == 0 {
		pc.Provider.MaxRequests = defaultMaxRequests
	}
	if pc.Provider.Window == 0 {
		pc.Provider.Window = defaultWindow
	}
	if pc.Provider.PerPage == 0 {
		pc.Provider.PerPage = defaultPerPage
	}
	if pc.Quality.MinLikes == 0 {
		pc.Quality.MinLikes = defaultMinLikes
	}
	if pc.Quality.MinWidth == 0 {
		pc.Quality.MinWidth = defaultMinWidth
	}
}

func (pc *ProjectConfig) normalize() {
	pc.AssetsDir = strings.TrimSpace(pc.AssetsDir)
	for i := range pc.Assets {
		pc.Assets[i].normalize()
	}
}

func (pc *ProjectConfig) validate() error {
	if pc.Version < 1 {
		return fmt.Errorf("config version must be >= 1")
	}
	if pc.Provider.MaxRequests < 1 {
		return fmt.Errorf("provider.max_requests must be >= 1")
	}
	if time.Duration(pc.Provider.Window) < time.Minute {
		return fmt.Errorf("provider.window must be >= 1m")
	}
	seen := map[string]bool{}
	for i := range pc.Assets {
		if err := pc.Assets[i].validate(); err != nil {
			return fmt.Errorf("assets[%d]: %w", i, err)
		}
		name := pc.Assets[i].Name
		if seen[name] {
			return fmt.Errorf("assets[%d]: duplicate name %q", i, name)
		}
		seen[name] = true
	}
	return nil
}

func (r *AssetRequest) normalize() {
	r.Name = strings.TrimSpace(r.Name)
	r.Orientation = strings.ToLower(strings.TrimSpace(r.Orientation))
	if r.Orientation == "" {
		r.Orientation = "landscape"
	}
	r.Color = strings.ToLower(strings.TrimSpace(r.Color))
	r.Category = strings.TrimSpace(r.Category)
	terms := r.QueryTerms[:0]
	for _, term := range r.QueryTerms {
		if t := strings.TrimSpace(term); t != "" {
			terms = append(terms, t)
		}
	}
	r.QueryTerms = terms
}

func (r AssetRequest) validate() error {
	if r.Name == "" {
		return fmt.Errorf("name is required")
	}
	if strings.ContainsAny(r.Name, `/\`) {
		return fmt.Errorf("name must not contain path separators")
	}
	if len(r.QueryTerms) == 0 {
		return fmt.Errorf("at least one query term is required")
	}
	switch r.Orientation {
	case "landscape", "portrait", "squarish":
	default:
		return fmt.Errorf("orientation must be 'landscape', 'portrait' or 'squarish'")
	}
	return nil
}

func ensureProjectConfig(path string) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	} else if !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return os.WriteFile(path, []byte(defaultConfigYAML), 0o644)
}
