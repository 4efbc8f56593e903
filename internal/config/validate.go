package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"mediafold/internal/media"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateSite(); err != nil {
		return err
	}
	if err := c.validateLayout(); err != nil {
		return err
	}
	if err := c.validateLocalize(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validatePaths() error {
	if strings.TrimSpace(c.Paths.StorageRoot) == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			defaultPath = "~/.config/mediafold/config.toml"
		}
		return fmt.Errorf("paths.storage_root is required. Set MEDIAFOLD_STORAGE_ROOT or edit %s (create with 'mediafold config init')", defaultPath)
	}
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		return errors.New("paths.data_dir must be set")
	}
	return nil
}

func (c *Config) validateSite() error {
	if strings.TrimSpace(c.Site.URL) == "" {
		return errors.New("site.url is required (or set MEDIAFOLD_SITE_URL)")
	}
	parsed, err := url.Parse(c.Site.URL)
	if err != nil {
		return fmt.Errorf("site.url: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("site.url must use http or https, got %q", c.Site.URL)
	}
	if parsed.Host == "" {
		return fmt.Errorf("site.url must include a host, got %q", c.Site.URL)
	}
	if strings.ContainsAny(c.Site.UploadsPath, "?#") {
		return errors.New("site.uploads_path must be a plain URL path")
	}
	return nil
}

func (c *Config) validateLayout() error {
	if _, err := media.ParsePostIdentifier(c.Layout.PostIdentifier); err != nil {
		return fmt.Errorf("layout.post_identifier: %w", err)
	}
	if _, err := media.ParseURLStyle(c.Layout.URLStyle); err != nil {
		return fmt.Errorf("layout.url_style: %w", err)
	}
	if strings.ContainsAny(c.Layout.GroupingTaxonomy, "/\\") {
		return errors.New("layout.grouping_taxonomy must not contain path separators")
	}
	return nil
}

func (c *Config) validateLocalize() error {
	if err := ensurePositiveMap(map[string]int{
		"localize.fetch_timeout_seconds":   c.Localize.FetchTimeoutSeconds,
		"localize.breaker_timeout_seconds": c.Localize.BreakerTimeoutSeconds,
	}); err != nil {
		return err
	}
	if c.Localize.MaxBytes <= 0 {
		return errors.New("localize.max_bytes must be positive")
	}
	if c.Localize.RequestsPerSecond < 0 {
		return errors.New("localize.requests_per_second must be >= 0 (0 disables rate limiting)")
	}
	if c.Localize.BreakerMaxFailures < 0 {
		return errors.New("localize.breaker_max_failures must be >= 0 (0 disables the breaker)")
	}
	return nil
}

func ensurePositiveMap(values map[string]int) error {
	for key, value := range values {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}
