package config

import (
	"fmt"
	"net/url"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeSite()
	c.normalizeLayout()
	c.normalizeLocalize()
	c.normalizeLogging()
	if c.Locking.RetryMilliseconds <= 0 {
		c.Locking.RetryMilliseconds = defaultLockRetryMilliseconds
	}
	if c.Orphans.SweepMinAgeHours < 0 {
		c.Orphans.SweepMinAgeHours = 0
	}
	return nil
}

func (c *Config) normalizePaths() error {
	if value, ok := os.LookupEnv("MEDIAFOLD_STORAGE_ROOT"); ok && strings.TrimSpace(value) != "" {
		c.Paths.StorageRoot = strings.TrimSpace(value)
	}
	var err error
	if c.Paths.StorageRoot, err = expandPath(c.Paths.StorageRoot); err != nil {
		return fmt.Errorf("paths.storage_root: %w", err)
	}
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		c.Paths.DataDir = defaultDataDir
	}
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if c.Metrics.TextfilePath = strings.TrimSpace(c.Metrics.TextfilePath); c.Metrics.TextfilePath != "" {
		if c.Metrics.TextfilePath, err = expandPath(c.Metrics.TextfilePath); err != nil {
			return fmt.Errorf("metrics.textfile_path: %w", err)
		}
	}
	return nil
}

func (c *Config) normalizeSite() {
	if value, ok := os.LookupEnv("MEDIAFOLD_SITE_URL"); ok && strings.TrimSpace(value) != "" {
		c.Site.URL = value
	}
	c.Site.URL = strings.TrimRight(strings.TrimSpace(c.Site.URL), "/")

	uploads := strings.Trim(strings.TrimSpace(c.Site.UploadsPath), "/")
	if uploads == "" {
		c.Site.UploadsPath = "/"
	} else {
		c.Site.UploadsPath = "/" + uploads
	}

	aliases := make([]string, 0, len(c.Site.LegacyHostAliases))
	seen := make(map[string]struct{}, len(c.Site.LegacyHostAliases))
	for _, alias := range c.Site.LegacyHostAliases {
		host := normalizeHost(alias)
		if host == "" {
			continue
		}
		if _, ok := seen[host]; ok {
			continue
		}
		seen[host] = struct{}{}
		aliases = append(aliases, host)
	}
	c.Site.LegacyHostAliases = aliases
}

// normalizeHost accepts either a bare host or a URL and returns the lowercase host.
func normalizeHost(value string) string {
	value = strings.ToLower(strings.TrimSpace(value))
	if value == "" {
		return ""
	}
	if strings.Contains(value, "://") {
		if parsed, err := url.Parse(value); err == nil {
			return parsed.Host
		}
	}
	return strings.Trim(value, "/")
}

func (c *Config) normalizeLayout() {
	c.Layout.GroupingTaxonomy = strings.ToLower(strings.TrimSpace(c.Layout.GroupingTaxonomy))
	if c.Layout.GroupingTaxonomy == "none" {
		c.Layout.GroupingTaxonomy = ""
	}
	c.Layout.PostIdentifier = strings.ToLower(strings.TrimSpace(c.Layout.PostIdentifier))
	if c.Layout.PostIdentifier == "" {
		c.Layout.PostIdentifier = "none"
	}
	c.Layout.URLStyle = strings.ToLower(strings.TrimSpace(c.Layout.URLStyle))
	if c.Layout.URLStyle == "" {
		c.Layout.URLStyle = defaultURLStyle
	}
}

func (c *Config) normalizeLocalize() {
	if c.Localize.FetchTimeoutSeconds <= 0 {
		c.Localize.FetchTimeoutSeconds = defaultFetchTimeoutSeconds
	}
	if c.Localize.MaxBytes <= 0 {
		c.Localize.MaxBytes = defaultFetchMaxBytes
	}
	if c.Localize.BreakerTimeoutSeconds <= 0 {
		c.Localize.BreakerTimeoutSeconds = defaultBreakerTimeoutSeconds
	}
	c.Localize.UserAgent = strings.TrimSpace(c.Localize.UserAgent)
	if c.Localize.UserAgent == "" {
		c.Localize.UserAgent = defaultLocalizeUserAgent
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
