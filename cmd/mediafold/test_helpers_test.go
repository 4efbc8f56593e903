package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pelletier/go-toml/v2"

	"mediafold/internal/config"
	"mediafold/internal/store"
	"mediafold/internal/testsupport"
)

const uploads = "/wp-content/uploads/"

type cliTestEnv struct {
	cfg        *config.Config
	configPath string
	baseDir    string
}

func setupCLITestEnv(t *testing.T) *cliTestEnv {
	t.Helper()

	cfg := testsupport.NewConfig(t, testsupport.WithMetricsTextfile())
	cfg.Localize.Enabled = false
	base := testsupport.BaseDir(cfg)

	configPath := filepath.Join(base, "config.toml")
	writeTestConfig(t, configPath, cfg)

	return &cliTestEnv{cfg: cfg, configPath: configPath, baseDir: base}
}

func writeTestConfig(t *testing.T, path string, cfg *config.Config) {
	t.Helper()
	data, err := toml.Marshal(cfg)
	if err != nil {
		t.Fatalf("marshal config: %v", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func runCLI(t *testing.T, args []string, configPath string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	var flags []string
	if configPath != "" {
		flags = append(flags, "--config", configPath)
	}
	cmd.SetArgs(append(flags, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

// withStore opens the catalog for seeding or inspection and closes it before
// the next command runs.
func withStore(t *testing.T, cfg *config.Config, fn func(*store.Store)) {
	t.Helper()
	st, err := store.Open(cfg)
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	defer st.Close()
	fn(st)
}

// writeCatalog writes a catalog with post 42 in category travel owning
// photo.jpg, and post 99 embedding its thumbnail.
func writeCatalog(t *testing.T, env *cliTestEnv) string {
	t.Helper()
	catalog := `{
  "terms": [{"id": 1, "taxonomy": "category", "slug": "travel"}],
  "content": [
    {"id": 42, "type": "post", "slug": "my-story", "status": "publish", "term_ids": [1],
     "body": "<img src=\"` + uploads + `2020/09/photo.jpg\">"},
    {"id": 99, "type": "post", "slug": "other", "status": "publish",
     "body": "<img src=\"` + uploads + `2020/09/photo-150x150.jpg\">"}
  ],
  "media": [
    {"id": 7, "parent_id": 42, "rel_path": "2020/09/photo.jpg",
     "sizes": {"thumbnail": "photo-150x150.jpg"}, "mime_type": "image/jpeg"}
  ]
}`
	path := filepath.Join(env.baseDir, "catalog.json")
	testsupport.WriteContent(t, path, []byte(catalog))
	testsupport.WriteContent(t, testsupport.StoragePath(env.cfg, "2020/09/photo.jpg"), []byte("main"))
	testsupport.WriteContent(t, testsupport.StoragePath(env.cfg, "2020/09/photo-150x150.jpg"), []byte("thumb"))
	return path
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected %q to contain %q", output, substr)
	}
}
