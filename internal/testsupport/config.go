package testsupport

import (
	"path/filepath"
	"testing"

	"mediafold/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.StorageRoot = filepath.Join(base, "uploads")
	cfgVal.Paths.DataDir = filepath.Join(base, "data")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Site.URL = "https://example.com"
	cfgVal.Site.LegacyHostAliases = []string{"old.example.com"}
	cfgVal.Locking.RetryMilliseconds = 5

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	if err := builder.cfg.EnsureDirectories(); err != nil {
		t.Fatalf("ensure directories: %v", err)
	}
	return builder.cfg
}

// WithLayout overrides the layout policy.
func WithLayout(layout config.Layout) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Layout = layout
	}
}

// WithAbsoluteURLs makes rewritten references absolute.
func WithAbsoluteURLs() ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Layout.URLStyle = "absolute"
	}
}

// WithoutOrphanDeletion disables reaping on permanent deletion.
func WithoutOrphanDeletion() ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Orphans.DeleteOnContentDelete = false
	}
}

// WithMetricsTextfile points the textfile exporter into the temp dir.
func WithMetricsTextfile() ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Metrics.TextfilePath = filepath.Join(b.baseDir, "metrics", "mediafold.prom")
	}
}

// BaseDir returns the temp directory backing cfg's paths.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.StorageRoot)
}
