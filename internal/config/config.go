package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"

	"mediafold/internal/media"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains filesystem locations.
type Paths struct {
	StorageRoot string `toml:"storage_root"`
	DataDir     string `toml:"data_dir"`
	LogDir      string `toml:"log_dir"`
}

// Site describes how the storage root is published.
type Site struct {
	URL               string   `toml:"url"`
	UploadsPath       string   `toml:"uploads_path"`
	LegacyHostAliases []string `toml:"legacy_host_aliases"`
}

// Layout controls the canonical directory layout.
type Layout struct {
	IncludeContentType bool   `toml:"include_content_type"`
	GroupingTaxonomy   string `toml:"grouping_taxonomy"`
	UseDateFolders     bool   `toml:"use_date_folders"`
	PostIdentifier     string `toml:"post_identifier"`
	URLStyle           string `toml:"url_style"`
}

// Orphans controls attachment cleanup on permanent content deletion.
type Orphans struct {
	DeleteOnContentDelete bool `toml:"delete_on_content_delete"`
	// SweepMinAgeHours is the minimum age of an unknown file before the
	// storage sweep may delete it.
	SweepMinAgeHours int `toml:"sweep_min_age_hours"`
}

// Localize controls remote image localisation.
type Localize struct {
	Enabled               bool    `toml:"enabled"`
	FetchTimeoutSeconds   int     `toml:"fetch_timeout_seconds"`
	MaxBytes              int64   `toml:"max_bytes"`
	RequestsPerSecond     float64 `toml:"requests_per_second"`
	BreakerMaxFailures    int     `toml:"breaker_max_failures"`
	BreakerTimeoutSeconds int     `toml:"breaker_timeout_seconds"`
	UserAgent             string  `toml:"user_agent"`
}

// Locking controls the per-item single-flight guard.
type Locking struct {
	RetryMilliseconds int `toml:"retry_milliseconds"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Metrics controls prometheus textfile export.
type Metrics struct {
	TextfilePath string `toml:"textfile_path"`
}

// Config encapsulates all configuration values for mediafold.
//
// Configuration sections by subsystem:
//   - Paths: storage root, catalog database directory, log directory
//   - Site: public URL, uploads URL path, and legacy host aliases
//   - Layout: canonical directory layout policy
//   - Orphans: cleanup on permanent deletion and sweep safety age
//   - Localize: remote image fetch limits
//   - Locking: single-flight lock polling
//   - Logging: log format and level
//   - Metrics: prometheus textfile export
type Config struct {
	Paths    Paths    `toml:"paths"`
	Site     Site     `toml:"site"`
	Layout   Layout   `toml:"layout"`
	Orphans  Orphans  `toml:"orphans"`
	Localize Localize `toml:"localize"`
	Locking  Locking  `toml:"locking"`
	Logging  Logging  `toml:"logging"`
	Metrics  Metrics  `toml:"metrics"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/mediafold/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("mediafold.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the directories the CLI writes to.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.StorageRoot, c.Paths.DataDir, c.Paths.LogDir, c.LockDir()} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// CatalogPath returns the sqlite catalog database location.
func (c *Config) CatalogPath() string {
	return filepath.Join(c.Paths.DataDir, "catalog.db")
}

// LockDir returns the directory holding per-item lock files.
func (c *Config) LockDir() string {
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		return ""
	}
	return filepath.Join(c.Paths.DataDir, "locks")
}

// FetchTimeout returns the remote fetch timeout.
func (c *Config) FetchTimeout() time.Duration {
	return time.Duration(c.Localize.FetchTimeoutSeconds) * time.Second
}

// SweepMinAge returns the minimum file age for storage sweeps.
func (c *Config) SweepMinAge() time.Duration {
	return time.Duration(c.Orphans.SweepMinAgeHours) * time.Hour
}

// Settings projects the file configuration onto the explicit struct consumed
// by the core components. Load has already validated the enum values.
func (c *Config) Settings() media.Settings {
	identifier, _ := media.ParsePostIdentifier(c.Layout.PostIdentifier)
	style, _ := media.ParseURLStyle(c.Layout.URLStyle)
	aliases := make([]string, len(c.Site.LegacyHostAliases))
	copy(aliases, c.Site.LegacyHostAliases)
	return media.Settings{
		IncludeContentType:           c.Layout.IncludeContentType,
		GroupingTaxonomy:             c.Layout.GroupingTaxonomy,
		UseDateFolders:               c.Layout.UseDateFolders,
		PostIdentifier:               identifier,
		URLStyle:                     style,
		LegacyHostAliases:            aliases,
		DeleteOrphansOnContentDelete: c.Orphans.DeleteOnContentDelete,
		StorageRoot:                  c.Paths.StorageRoot,
		SiteURL:                      c.Site.URL,
		UploadsPath:                  c.Site.UploadsPath,
	}
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
