package main

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"mediafold/internal/media"
	"mediafold/internal/store"
	"mediafold/internal/testsupport"
)

func TestConfigInitAndValidate(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"config", "validate"}, env.configPath)
	if err != nil {
		t.Fatalf("config validate: %v", err)
	}
	requireContains(t, out, "Configuration valid")

	target := filepath.Join(t.TempDir(), "config.toml")
	out, _, err = runCLI(t, []string{"config", "init", "--path", target}, "")
	if err != nil {
		t.Fatalf("config init: %v", err)
	}
	requireContains(t, out, "Wrote sample configuration")
	testsupport.AssertExists(t, target)

	if _, _, err := runCLI(t, []string{"config", "init", "--path", target}, ""); err == nil {
		t.Fatal("expected init to refuse overwriting without --overwrite")
	}

	out, _, err = runCLI(t, []string{"config", "show"}, env.configPath)
	if err != nil {
		t.Fatalf("config show: %v", err)
	}
	requireContains(t, out, env.cfg.Paths.StorageRoot)
}

func TestPlanSyncAndListRoundTrip(t *testing.T) {
	env := setupCLITestEnv(t)
	catalogPath := writeCatalog(t, env)

	out, _, err := runCLI(t, []string{"catalog", "import", catalogPath}, env.configPath)
	if err != nil {
		t.Fatalf("catalog import: %v", err)
	}
	requireContains(t, out, "Imported 1 term(s), 2 content item(s), 1 media item(s)")

	planned := "post/category/travel/my-story/photo.jpg"
	out, _, err = runCLI(t, []string{"plan", "42", "--json"}, env.configPath)
	if err != nil {
		t.Fatalf("plan: %v", err)
	}
	var rows []planRow
	if err := json.Unmarshal([]byte(out), &rows); err != nil {
		t.Fatalf("decode plan: %v\n%s", err, out)
	}
	if len(rows) != 1 || rows[0].Current != "2020/09/photo.jpg" || rows[0].Planned != planned || rows[0].Canonical {
		t.Fatalf("unexpected plan %+v", rows)
	}
	testsupport.AssertExists(t, testsupport.StoragePath(env.cfg, "2020/09/photo.jpg"))

	out, _, err = runCLI(t, []string{"sync", "42"}, env.configPath)
	if err != nil {
		t.Fatalf("sync: %v\n%s", err, out)
	}
	requireContains(t, out, "Moved 1, skipped 0, failed 0")
	requireContains(t, out, "Documents rewritten 2")
	testsupport.AssertExists(t, testsupport.StoragePath(env.cfg, planned))
	testsupport.AssertExists(t, testsupport.StoragePath(env.cfg, "post/category/travel/my-story/photo-150x150.jpg"))
	testsupport.AssertMissing(t, testsupport.StoragePath(env.cfg, "2020/09/photo.jpg"))

	withStore(t, env.cfg, func(st *store.Store) {
		other, err := st.GetContent(context.Background(), 99)
		if err != nil || other == nil {
			t.Fatalf("GetContent: %v", err)
		}
		requireContains(t, other.Body, uploads+"post/category/travel/my-story/photo-150x150.jpg")
	})

	out, _, err = runCLI(t, []string{"plan", "42"}, env.configPath)
	if err != nil {
		t.Fatalf("plan after sync: %v", err)
	}
	requireContains(t, out, "yes")

	out, _, err = runCLI(t, []string{"catalog", "list"}, env.configPath)
	if err != nil {
		t.Fatalf("catalog list: %v", err)
	}
	requireContains(t, out, planned)

	exported := filepath.Join(env.baseDir, "export.json")
	if _, _, err := runCLI(t, []string{"catalog", "export", "-o", exported}, env.configPath); err != nil {
		t.Fatalf("catalog export: %v", err)
	}
	requireContains(t, testsupport.ReadFile(t, exported), `"rel_path": "`+planned+`"`)

	data, err := os.ReadFile(env.cfg.Metrics.TextfilePath)
	if err != nil {
		t.Fatalf("read metrics textfile: %v", err)
	}
	requireContains(t, string(data), "mediafold_")
}

func TestSyncJSONReportsFailures(t *testing.T) {
	env := setupCLITestEnv(t)
	withStore(t, env.cfg, func(st *store.Store) {
		testsupport.SeedContent(t, st, media.ContentItem{ID: 5, Type: "page", Slug: "about", Status: media.StatusPublish})
		if err := st.CreateMedia(context.Background(), &media.MediaItem{ID: 11, ParentID: 5, RelPath: "2021/01/missing.png"}); err != nil {
			t.Fatalf("CreateMedia: %v", err)
		}
	})

	out, _, err := runCLI(t, []string{"sync", "5", "404", "--json"}, env.configPath)
	if err == nil {
		t.Fatal("expected sync to report failures")
	}
	var view summaryView
	if err := json.Unmarshal([]byte(out), &view); err != nil {
		t.Fatalf("decode summary: %v\n%s", err, out)
	}
	if view.Failed != 1 || len(view.Items) != 1 || view.Items[0].Outcome != "failed" || view.Items[0].Error == "" {
		t.Fatalf("unexpected summary %+v", view)
	}
	if len(view.Errors) < 2 {
		t.Fatalf("expected the missing content to be reported too, got %v", view.Errors)
	}
}

func TestSyncRequiresTarget(t *testing.T) {
	env := setupCLITestEnv(t)
	if _, _, err := runCLI(t, []string{"sync"}, env.configPath); err == nil {
		t.Fatal("expected error without ids or --all")
	}
	if _, _, err := runCLI(t, []string{"sync", "--all", "3"}, env.configPath); err == nil {
		t.Fatal("expected error with both ids and --all")
	}
	if _, _, err := runCLI(t, []string{"sync", "abc"}, env.configPath); err == nil {
		t.Fatal("expected error for a non-numeric id")
	}
}

func TestTrashThenDeleteReapsMedia(t *testing.T) {
	env := setupCLITestEnv(t)
	catalogPath := writeCatalog(t, env)
	if _, _, err := runCLI(t, []string{"catalog", "import", catalogPath}, env.configPath); err != nil {
		t.Fatalf("catalog import: %v", err)
	}
	// Post 99 embeds the thumbnail, so unlink it first to make photo.jpg an orphan.
	withStore(t, env.cfg, func(st *store.Store) {
		if err := st.SaveBody(context.Background(), 99, "<p>nothing here</p>"); err != nil {
			t.Fatalf("SaveBody: %v", err)
		}
	})

	if _, _, err := runCLI(t, []string{"delete", "42"}, env.configPath); err == nil {
		t.Fatal("expected delete to require trash")
	}
	out, _, err := runCLI(t, []string{"trash", "42"}, env.configPath)
	if err != nil {
		t.Fatalf("trash: %v", err)
	}
	requireContains(t, out, "moved to trash")

	out, _, err = runCLI(t, []string{"delete", "42"}, env.configPath)
	if err != nil {
		t.Fatalf("delete: %v\n%s", err, out)
	}
	requireContains(t, out, "media deleted 1, retained 0")
	testsupport.AssertMissing(t, testsupport.StoragePath(env.cfg, "2020/09/photo.jpg"))
	testsupport.AssertMissing(t, testsupport.StoragePath(env.cfg, "2020/09/photo-150x150.jpg"))
	testsupport.AssertMissing(t, testsupport.StoragePath(env.cfg, "2020"))

	withStore(t, env.cfg, func(st *store.Store) {
		item, err := st.GetMedia(context.Background(), 7)
		if err != nil {
			t.Fatalf("GetMedia: %v", err)
		}
		if item != nil {
			t.Fatalf("expected media 7 to be deleted, got %+v", item)
		}
	})
}

func TestSweepListsThenDeletesUnknownFiles(t *testing.T) {
	env := setupCLITestEnv(t)
	catalogPath := writeCatalog(t, env)
	if _, _, err := runCLI(t, []string{"catalog", "import", catalogPath}, env.configPath); err != nil {
		t.Fatalf("catalog import: %v", err)
	}
	stray := testsupport.StoragePath(env.cfg, "2019/01/stray.jpg")
	testsupport.WriteFile(t, stray, 2048)

	out, _, err := runCLI(t, []string{"sweep", "--min-age", "0s"}, env.configPath)
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	requireContains(t, out, "2019/01/stray.jpg")
	requireContains(t, out, "Dry run")
	testsupport.AssertExists(t, stray)

	out, _, err = runCLI(t, []string{"sweep", "--min-age", "0s", "--apply"}, env.configPath)
	if err != nil {
		t.Fatalf("sweep --apply: %v", err)
	}
	requireContains(t, out, "Deleted 1 file(s)")
	testsupport.AssertMissing(t, stray)
	testsupport.AssertExists(t, testsupport.StoragePath(env.cfg, "2020/09/photo.jpg"))
	if strings.Contains(out, "photo.jpg") {
		t.Fatalf("known media listed as unknown: %s", out)
	}
}
