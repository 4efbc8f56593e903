package pipeline_test

import (
	"context"
	"errors"
	"os"
	"strings"
	"testing"

	"mediafold/internal/config"
	"mediafold/internal/media"
	"mediafold/internal/metrics"
	"mediafold/internal/pipeline"
	"mediafold/internal/services"
	"mediafold/internal/store"
	"mediafold/internal/testsupport"
)

const uploads = "/wp-content/uploads/"

type fixture struct {
	cfg   *config.Config
	store *store.Store
	pipe  *pipeline.Pipeline
	rec   *metrics.Recorder
}

func newFixture(t *testing.T, opts ...testsupport.ConfigOption) fixture {
	t.Helper()
	opts = append([]testsupport.ConfigOption{testsupport.WithLayout(config.Layout{
		IncludeContentType: true,
		GroupingTaxonomy:   "category",
		UseDateFolders:     false,
		PostIdentifier:     "slug",
		URLStyle:           "relative",
	})}, opts...)
	cfg := testsupport.NewConfig(t, opts...)
	cfg.Localize.Enabled = false
	st := testsupport.MustOpenStore(t, cfg)
	rec := metrics.New()
	return fixture{cfg: cfg, store: st, pipe: pipeline.NewFromConfig(cfg, st, nil, rec), rec: rec}
}

// seedStory builds post 42 in category travel with photo.jpg at 2020/09,
// plus post 99 embedding the same file by URL.
func seedStory(t *testing.T, f fixture) *media.MediaItem {
	t.Helper()
	testsupport.SeedTerm(t, f.store, media.Term{ID: 1, Taxonomy: "category", Slug: "travel"})
	testsupport.SeedContent(t, f.store, media.ContentItem{ID: 42, Type: "post", Slug: "my-story",
		Body: `<p>Trip</p><img src="` + uploads + `2020/09/photo.jpg" alt="x">`}, 1)
	testsupport.SeedContent(t, f.store, media.ContentItem{ID: 99, Type: "post", Slug: "unrelated",
		Body: `<img src="` + uploads + `2020/09/photo-150x150.jpg"><img src="https://example.com` + uploads + `2020/09/photo.jpg">`})
	return testsupport.SeedMedia(t, f.cfg, f.store, media.MediaItem{
		ParentID: 42,
		RelPath:  "2020/09/photo.jpg",
		Sizes:    map[string]string{"thumbnail": "photo-150x150.jpg", "full": "photo.jpg"},
	})
}

func TestSyncContentMovesFilesAndRewritesCorpus(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	item := seedStory(t, f)

	summary, err := f.pipe.SyncContent(ctx, 42)
	if err != nil {
		t.Fatalf("SyncContent failed: %v", err)
	}
	if summary.Moved != 1 || summary.Failed != 0 || summary.DocumentsRewritten != 2 {
		t.Fatalf("unexpected summary %+v", summary)
	}
	if summary.RequestID == "" {
		t.Fatal("expected request id")
	}

	dir := "post/category/travel/my-story/"
	testsupport.AssertExists(t, testsupport.StoragePath(f.cfg, dir+"photo.jpg"))
	testsupport.AssertExists(t, testsupport.StoragePath(f.cfg, dir+"photo-150x150.jpg"))
	testsupport.AssertMissing(t, testsupport.StoragePath(f.cfg, "2020/09/photo.jpg"))

	moved, _ := f.store.GetMedia(ctx, item.ID)
	if moved.RelPath != dir+"photo.jpg" || moved.Sizes["thumbnail"] != "photo-150x150.jpg" || moved.Sizes["full"] != "photo.jpg" {
		t.Fatalf("unexpected metadata %#v", moved)
	}
	own, _ := f.store.GetContent(ctx, 42)
	if !strings.Contains(own.Body, uploads+dir+"photo.jpg") || strings.Contains(own.Body, "2020/09") {
		t.Fatalf("own body not rewritten: %s", own.Body)
	}
	other, _ := f.store.GetContent(ctx, 99)
	if strings.Contains(other.Body, "2020/09") {
		t.Fatalf("other body still references old path: %s", other.Body)
	}
	if !strings.Contains(other.Body, uploads+dir+"photo-150x150.jpg") {
		t.Fatalf("variant reference not rewritten: %s", other.Body)
	}

	again, err := f.pipe.SyncContent(ctx, 42)
	if err != nil {
		t.Fatalf("second SyncContent failed: %v", err)
	}
	if again.Moved != 0 || again.Skipped != 1 || again.DocumentsRewritten != 0 {
		t.Fatalf("second run must be a no-op, got %+v", again)
	}
	if after, _ := f.store.GetContent(ctx, 99); after.Body != other.Body {
		t.Fatal("second run changed another document")
	}
}

func TestSyncContentFallsBackToMiscOnLoopingTerms(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	testsupport.SeedTerm(t, f.store, media.Term{ID: 1, Taxonomy: "category", Slug: "travel", ParentID: 2})
	testsupport.SeedTerm(t, f.store, media.Term{ID: 2, Taxonomy: "category", Slug: "europe", ParentID: 1})
	testsupport.SeedContent(t, f.store, media.ContentItem{ID: 42, Type: "post", Slug: "my-story",
		Body: `<img src="` + uploads + `2020/09/photo.jpg">`}, 1)
	testsupport.SeedMedia(t, f.cfg, f.store, media.MediaItem{ParentID: 42, RelPath: "2020/09/photo.jpg"})

	summary, err := f.pipe.SyncContent(ctx, 42)
	if err != nil {
		t.Fatalf("SyncContent failed: %v", err)
	}
	if summary.Moved != 1 || summary.Failed != 0 {
		t.Fatalf("unexpected summary %+v", summary)
	}
	testsupport.AssertExists(t, testsupport.StoragePath(f.cfg, "post/misc/my-story/photo.jpg"))
	own, _ := f.store.GetContent(ctx, 42)
	if !strings.Contains(own.Body, uploads+"post/misc/my-story/photo.jpg") {
		t.Fatalf("own body not rewritten: %s", own.Body)
	}
}

func TestSyncContentAvoidsOverwritingExistingFile(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	item := seedStory(t, f)
	occupant := testsupport.StoragePath(f.cfg, "post/category/travel/my-story/photo.jpg")
	testsupport.WriteContent(t, occupant, []byte("occupant"))

	summary, err := f.pipe.SyncContent(ctx, 42)
	if err != nil {
		t.Fatalf("SyncContent failed: %v", err)
	}
	if summary.Moved != 1 {
		t.Fatalf("unexpected summary %+v", summary)
	}
	if got := testsupport.ReadFile(t, occupant); got != "occupant" {
		t.Fatalf("existing file overwritten: %q", got)
	}
	moved, _ := f.store.GetMedia(ctx, item.ID)
	if moved.RelPath != "post/category/travel/my-story/photo-1.jpg" {
		t.Fatalf("unexpected rel path %q", moved.RelPath)
	}
	if moved.Sizes["thumbnail"] != "photo-1-150x150.jpg" || moved.Sizes["full"] != "photo-1.jpg" {
		t.Fatalf("variants should follow the new stem: %#v", moved.Sizes)
	}
	own, _ := f.store.GetContent(ctx, 42)
	if !strings.Contains(own.Body, "my-story/photo-1.jpg") {
		t.Fatalf("own body not pointing at renamed file: %s", own.Body)
	}

	again, err := f.pipe.SyncContent(ctx, 42)
	if err != nil || again.Moved != 0 {
		t.Fatalf("renamed file must be stable, got %+v err %v", again, err)
	}
}

func TestSyncContentContinuesPastFailedItem(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	seedStory(t, f)
	missing := &media.MediaItem{ParentID: 42, RelPath: "2020/09/missing.jpg"}
	if err := f.store.CreateMedia(ctx, missing); err != nil {
		t.Fatalf("CreateMedia failed: %v", err)
	}

	summary, err := f.pipe.SyncContent(ctx, 42)
	if err != nil {
		t.Fatalf("SyncContent failed: %v", err)
	}
	if summary.Moved != 1 || summary.Failed != 1 {
		t.Fatalf("expected one moved and one failed, got %+v", summary)
	}
	if !errors.Is(summary.Err(), services.ErrRelocation) {
		t.Fatalf("expected relocation error in summary, got %v", summary.Err())
	}
	untouched, _ := f.store.GetMedia(ctx, missing.ID)
	if untouched.RelPath != "2020/09/missing.jpg" {
		t.Fatalf("failed item metadata must be unchanged, got %q", untouched.RelPath)
	}
}

func TestDeleteContentRequiresTrashAndReapsOrphans(t *testing.T) {
	f := newFixture(t, testsupport.WithMetricsTextfile())
	ctx := context.Background()
	item := seedStory(t, f)
	if _, err := f.pipe.SyncContent(ctx, 42); err != nil {
		t.Fatalf("SyncContent failed: %v", err)
	}
	// Post 99 embeds the file, so unlink it first to make it an orphan.
	if err := f.store.SaveBody(ctx, 99, "<p>no images</p>"); err != nil {
		t.Fatalf("SaveBody failed: %v", err)
	}
	keep := testsupport.StoragePath(f.cfg, "post/category/travel/keep.jpg")
	testsupport.WriteFile(t, keep, 10)

	if _, err := f.pipe.DeleteContent(ctx, 42); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error for untrashed content, got %v", err)
	}
	if err := f.pipe.TrashContent(ctx, 42); err != nil {
		t.Fatalf("TrashContent failed: %v", err)
	}
	testsupport.AssertExists(t, testsupport.StoragePath(f.cfg, "post/category/travel/my-story/photo.jpg"))

	summary, err := f.pipe.DeleteContent(ctx, 42)
	if err != nil {
		t.Fatalf("DeleteContent failed: %v", err)
	}
	if summary.Deleted != 1 || summary.Retained != 0 {
		t.Fatalf("unexpected reap summary %+v", summary)
	}
	testsupport.AssertMissing(t, testsupport.StoragePath(f.cfg, "post/category/travel/my-story"))
	testsupport.AssertExists(t, keep)
	if got, _ := f.store.GetMedia(ctx, item.ID); got != nil {
		t.Fatalf("expected media metadata removed, got %#v", got)
	}
	if got, _ := f.store.GetContent(ctx, 42); got != nil {
		t.Fatal("expected content removed")
	}

	if err := f.rec.WriteTextfile(f.cfg.Metrics.TextfilePath); err != nil {
		t.Fatalf("WriteTextfile failed: %v", err)
	}
	data, err := os.ReadFile(f.cfg.Metrics.TextfilePath)
	if err != nil || !strings.Contains(string(data), `mediafold_orphans_total{verdict="deleted"} 1`) {
		t.Fatalf("expected orphan metric, err %v:\n%s", err, data)
	}
}

func TestDeleteContentRetainsSharedMedia(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	item := seedStory(t, f)
	if err := f.pipe.TrashContent(ctx, 42); err != nil {
		t.Fatalf("TrashContent failed: %v", err)
	}

	summary, err := f.pipe.DeleteContent(ctx, 42)
	if err != nil {
		t.Fatalf("DeleteContent failed: %v", err)
	}
	if summary.Retained != 1 {
		t.Fatalf("expected shared media retained, got %+v", summary)
	}
	kept, _ := f.store.GetMedia(ctx, item.ID)
	if kept == nil || kept.ParentID != 0 {
		t.Fatalf("expected retained media to become unattached, got %#v", kept)
	}
	testsupport.AssertExists(t, testsupport.StoragePath(f.cfg, "2020/09/photo.jpg"))
}

func TestDeleteContentKeepsMediaWhenOrphanDeletionDisabled(t *testing.T) {
	f := newFixture(t, testsupport.WithoutOrphanDeletion())
	ctx := context.Background()
	testsupport.SeedContent(t, f.store, media.ContentItem{ID: 5, Type: "post", Status: media.StatusTrash})
	item := testsupport.SeedMedia(t, f.cfg, f.store, media.MediaItem{ParentID: 5, RelPath: "a/solo.jpg"})

	summary, err := f.pipe.DeleteContent(ctx, 5)
	if err != nil {
		t.Fatalf("DeleteContent failed: %v", err)
	}
	if len(summary.Verdicts) != 0 {
		t.Fatalf("expected no reaping, got %+v", summary)
	}
	testsupport.AssertExists(t, testsupport.StoragePath(f.cfg, item.RelPath))
}

func TestSyncTermPlacesUnattachedMedia(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	testsupport.SeedTerm(t, f.store, media.Term{ID: 3, Taxonomy: "category", Slug: "travel"})
	testsupport.SeedContent(t, f.store, media.ContentItem{ID: 8, Type: "page", Slug: "about"})
	cover := testsupport.SeedMedia(t, f.cfg, f.store, media.MediaItem{RelPath: "2021/01/upload.png"})
	owned := testsupport.SeedMedia(t, f.cfg, f.store, media.MediaItem{ParentID: 8, RelPath: "2021/01/owned.png"})
	for key, id := range map[string]int64{"cover": cover.ID, "icon": owned.ID} {
		if err := f.store.AttachTermMedia(ctx, 3, key, id); err != nil {
			t.Fatalf("AttachTermMedia failed: %v", err)
		}
	}

	summary, err := f.pipe.SyncTerm(ctx, 3)
	if err != nil {
		t.Fatalf("SyncTerm failed: %v", err)
	}
	if summary.Moved != 1 || summary.Skipped != 1 {
		t.Fatalf("unexpected summary %+v", summary)
	}
	placed, _ := f.store.GetMedia(ctx, cover.ID)
	if placed.RelPath != "taxonomy/category/cover/travel.png" {
		t.Fatalf("unexpected term attachment path %q", placed.RelPath)
	}

	again, err := f.pipe.SyncTerm(ctx, 3)
	if err != nil || again.Moved != 0 {
		t.Fatalf("term sync must be idempotent, got %+v err %v", again, err)
	}
}

func TestSyncAllSkipsTrashAndReportsMissingContent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	seedStory(t, f)
	testsupport.SeedContent(t, f.store, media.ContentItem{ID: 7, Type: "post", Slug: "gone", Status: media.StatusTrash})
	trashed := testsupport.SeedMedia(t, f.cfg, f.store, media.MediaItem{ParentID: 7, RelPath: "2019/05/trash.jpg"})

	summary, err := f.pipe.SyncAll(ctx)
	if err != nil {
		t.Fatalf("SyncAll failed: %v", err)
	}
	if summary.Moved != 1 {
		t.Fatalf("unexpected summary %+v", summary)
	}
	still, _ := f.store.GetMedia(ctx, trashed.ID)
	if still.RelPath != "2019/05/trash.jpg" {
		t.Fatalf("trashed content media must not move, got %q", still.RelPath)
	}

	if _, err := f.pipe.SyncContent(ctx, 12345); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}
