package store_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"mediafold/internal/media"
	"mediafold/internal/store"
	"mediafold/internal/testsupport"
)

func TestOpenAppliesMigrations(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	if st.Path() != cfg.CatalogPath() {
		t.Fatalf("unexpected path %q", st.Path())
	}
	got, err := st.GetContent(ctx, 1)
	if err != nil {
		t.Fatalf("GetContent failed: %v", err)
	}
	if got != nil {
		t.Fatalf("expected nil for missing content, got %#v", got)
	}

	version, err := st.SchemaVersion(ctx)
	if err != nil {
		t.Fatalf("SchemaVersion failed: %v", err)
	}
	if version != "001_init" {
		t.Fatalf("unexpected schema version %q", version)
	}

	// Reopening must not re-apply migrations.
	st.Close()
	reopened := testsupport.MustOpenStore(t, cfg)
	if _, err := reopened.ListContent(ctx, store.ListOptions{}); err != nil {
		t.Fatalf("ListContent after reopen failed: %v", err)
	}
}

func TestGetContentLoadsTermChains(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	testsupport.SeedTerm(t, st, media.Term{ID: 1, Taxonomy: "category", Slug: "travel"})
	testsupport.SeedTerm(t, st, media.Term{ID: 2, Taxonomy: "category", Slug: "europe", ParentID: 1})
	testsupport.SeedTerm(t, st, media.Term{ID: 3, Taxonomy: "post_tag", Slug: "food"})
	created := time.Date(2020, 9, 14, 10, 0, 0, 0, time.UTC)
	testsupport.SeedContent(t, st, media.ContentItem{
		ID: 42, Type: "post", Slug: "my-story", Body: "<p>hi</p>", CreatedAt: created,
	}, 2, 3)

	item, err := st.GetContent(ctx, 42)
	if err != nil {
		t.Fatalf("GetContent failed: %v", err)
	}
	if item.Status != media.StatusPublish {
		t.Fatalf("expected default publish status, got %q", item.Status)
	}
	if !item.CreatedAt.Equal(created) {
		t.Fatalf("unexpected created at %v", item.CreatedAt)
	}
	if len(item.Terms) != 2 {
		t.Fatalf("expected 2 term chains, got %d", len(item.Terms))
	}
	if got := strings.Join(item.Terms[0].Slugs(), "/"); got != "travel/europe" {
		t.Fatalf("unexpected chain %q", got)
	}
}

func TestTermChainDetectsCycles(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)

	testsupport.SeedTerm(t, st, media.Term{ID: 1, Taxonomy: "category", Slug: "a", ParentID: 2})
	testsupport.SeedTerm(t, st, media.Term{ID: 2, Taxonomy: "category", Slug: "b", ParentID: 1})
	if _, err := st.TermChain(context.Background(), 1); !errors.Is(err, store.ErrBrokenTermChain) {
		t.Fatalf("expected broken chain error, got %v", err)
	}
}

func TestGetContentSkipsBrokenTermChains(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	testsupport.SeedTerm(t, st, media.Term{ID: 1, Taxonomy: "category", Slug: "a", ParentID: 2})
	testsupport.SeedTerm(t, st, media.Term{ID: 2, Taxonomy: "category", Slug: "b", ParentID: 1})
	testsupport.SeedTerm(t, st, media.Term{ID: 3, Taxonomy: "category", Slug: "travel"})
	testsupport.SeedContent(t, st, media.ContentItem{ID: 42, Type: "post", Slug: "my-story"}, 1, 3)

	item, err := st.GetContent(ctx, 42)
	if err != nil {
		t.Fatalf("GetContent failed: %v", err)
	}
	if len(item.Terms) != 1 || item.Terms[0].Leaf().Slug != "travel" {
		t.Fatalf("expected only the travel chain, got %+v", item.Terms)
	}
	if len(item.BrokenTerms) != 1 || item.BrokenTerms[0] != 1 {
		t.Fatalf("expected term 1 reported broken, got %v", item.BrokenTerms)
	}
}

func TestMediaRoundTripAndLocationUpdate(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	testsupport.SeedContent(t, st, media.ContentItem{ID: 42, Type: "post", Slug: "my-story"})
	item := &media.MediaItem{
		ParentID:      42,
		RelPath:       "2020/09/photo.jpg",
		Sizes:         map[string]string{"thumbnail": "photo-150x150.jpg"},
		OriginalImage: "photo-original.jpg",
		MimeType:      "image/jpeg",
	}
	if err := st.CreateMedia(ctx, item); err != nil {
		t.Fatalf("CreateMedia failed: %v", err)
	}
	if item.ID == 0 {
		t.Fatal("expected id to be assigned")
	}

	attached, err := st.ListMediaByParent(ctx, 42)
	if err != nil {
		t.Fatalf("ListMediaByParent failed: %v", err)
	}
	if len(attached) != 1 || attached[0].Sizes["thumbnail"] != "photo-150x150.jpg" {
		t.Fatalf("unexpected attached media %#v", attached)
	}

	item.RelPath = "post/my-story/photo.jpg"
	item.Sizes = map[string]string{"thumbnail": "photo-150x150-1.jpg"}
	if err := st.SaveMediaLocation(ctx, item); err != nil {
		t.Fatalf("SaveMediaLocation failed: %v", err)
	}
	got, err := st.GetMedia(ctx, item.ID)
	if err != nil {
		t.Fatalf("GetMedia failed: %v", err)
	}
	if got.RelPath != "post/my-story/photo.jpg" || got.Sizes["thumbnail"] != "photo-150x150-1.jpg" {
		t.Fatalf("location not saved: %#v", got)
	}

	if err := st.UpdateMediaPath(ctx, 999, "x.jpg"); !errors.Is(err, store.ErrNoRows) {
		t.Fatalf("expected ErrNoRows, got %v", err)
	}
}

func TestFindMediaByFileMatchesVariants(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	item := &media.MediaItem{
		RelPath: "2020/09/photo.jpg",
		Sizes:   map[string]string{"medium": "photo-300x200.jpg"},
	}
	other := &media.MediaItem{RelPath: "2020/09/other.jpg"}
	underscore := &media.MediaItem{RelPath: "2020_09/photo.jpg"}
	for _, m := range []*media.MediaItem{item, other, underscore} {
		if err := st.CreateMedia(ctx, m); err != nil {
			t.Fatalf("CreateMedia failed: %v", err)
		}
	}

	found, err := st.FindMediaByFile(ctx, "2020/09/photo-300x200.jpg")
	if err != nil {
		t.Fatalf("FindMediaByFile failed: %v", err)
	}
	if len(found) != 1 || found[0].ID != item.ID {
		t.Fatalf("expected variant owner %d, got %#v", item.ID, found)
	}
	found, err = st.FindMediaByFile(ctx, "2020/09/missing.jpg")
	if err != nil || len(found) != 0 {
		t.Fatalf("expected no owner, got %#v err %v", found, err)
	}
}

func TestSearchBodiesExcludesTriggeringItem(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	url := "/wp-content/uploads/2020/09/photo.jpg"
	testsupport.SeedContent(t, st, media.ContentItem{ID: 42, Type: "post", Body: `<img src="` + url + `">`})
	testsupport.SeedContent(t, st, media.ContentItem{ID: 99, Type: "post", Body: `<img src="` + url + `">`})
	testsupport.SeedContent(t, st, media.ContentItem{ID: 100, Type: "page", Body: `<img src="` + url + `">`, Status: media.StatusTrash})
	testsupport.SeedContent(t, st, media.ContentItem{ID: 101, Type: "post", Body: "<p>nothing</p>"})

	matches, err := st.SearchBodies(ctx, url, store.SearchOptions{ExcludeID: 42})
	if err != nil {
		t.Fatalf("SearchBodies failed: %v", err)
	}
	if len(matches) != 2 || matches[0].ID != 99 || matches[1].ID != 100 {
		t.Fatalf("unexpected matches %#v", matches)
	}
	count, err := st.CountBodies(ctx, url, store.SearchOptions{ExcludeID: 42, Types: []string{"post"}})
	if err != nil {
		t.Fatalf("CountBodies failed: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected 1 post match, got %d", count)
	}
}

func TestDeleteMediaClearsFeaturedReferences(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	item := &media.MediaItem{RelPath: "photo.jpg"}
	if err := st.CreateMedia(ctx, item); err != nil {
		t.Fatalf("CreateMedia failed: %v", err)
	}
	testsupport.SeedContent(t, st, media.ContentItem{ID: 7, Type: "post", FeaturedMediaID: item.ID})
	if n, err := st.CountFeaturedUsers(ctx, item.ID, 0); err != nil || n != 1 {
		t.Fatalf("expected one featured user, got %d err %v", n, err)
	}
	if err := st.DeleteMedia(ctx, item.ID); err != nil {
		t.Fatalf("DeleteMedia failed: %v", err)
	}
	content, err := st.GetContent(ctx, 7)
	if err != nil {
		t.Fatalf("GetContent failed: %v", err)
	}
	if content.FeaturedMediaID != 0 {
		t.Fatalf("expected featured media cleared, got %d", content.FeaturedMediaID)
	}
}

func TestDeleteContentDetachesMedia(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	testsupport.SeedContent(t, st, media.ContentItem{ID: 42, Type: "post"})
	item := &media.MediaItem{ParentID: 42, RelPath: "photo.jpg"}
	if err := st.CreateMedia(ctx, item); err != nil {
		t.Fatalf("CreateMedia failed: %v", err)
	}
	if err := st.DeleteContent(ctx, 42); err != nil {
		t.Fatalf("DeleteContent failed: %v", err)
	}
	got, err := st.GetMedia(ctx, item.ID)
	if err != nil {
		t.Fatalf("GetMedia failed: %v", err)
	}
	if got == nil || got.ParentID != 0 {
		t.Fatalf("expected unattached media, got %#v", got)
	}
}

func TestCatalogImportExport(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	raw := `{
  "terms": [{"id": 1, "taxonomy": "category", "slug": "travel"}],
  "content": [{"id": 42, "type": "post", "slug": "my-story", "body": "<img src=\"/wp-content/uploads/2020/09/photo.jpg\">", "term_ids": [1], "featured_media_id": 5}],
  "media": [{"id": 5, "parent_id": 42, "rel_path": "2020/09/photo.jpg", "sizes": {"thumbnail": "photo-150x150.jpg"}}],
  "term_media": [{"term_id": 1, "meta_key": "cover", "media_id": 5}]
}`
	catalog, err := store.DecodeCatalog(strings.NewReader(raw))
	if err != nil {
		t.Fatalf("DecodeCatalog failed: %v", err)
	}
	stats, err := st.Import(ctx, catalog)
	if err != nil {
		t.Fatalf("Import failed: %v", err)
	}
	if stats != (store.ImportStats{Terms: 1, Content: 1, Media: 1, TermMedia: 1}) {
		t.Fatalf("unexpected stats %+v", stats)
	}

	exported, err := st.Export(ctx)
	if err != nil {
		t.Fatalf("Export failed: %v", err)
	}
	if len(exported.Content) != 1 || len(exported.Content[0].TermIDs) != 1 {
		t.Fatalf("unexpected exported content %#v", exported.Content)
	}
	if len(exported.Media) != 1 || exported.Media[0].Sizes["thumbnail"] != "photo-150x150.jpg" {
		t.Fatalf("unexpected exported media %#v", exported.Media)
	}
	attachments, err := st.TermAttachments(ctx, 1)
	if err != nil {
		t.Fatalf("TermAttachments failed: %v", err)
	}
	if len(attachments) != 1 || attachments[0].MetaKey != "cover" || attachments[0].Term.Slug != "travel" {
		t.Fatalf("unexpected attachments %#v", attachments)
	}
	if n, err := st.CountTermUsers(ctx, 5); err != nil || n != 1 {
		t.Fatalf("expected one term user, got %d err %v", n, err)
	}
}

func TestDecodeCatalogRejectsUnknownFields(t *testing.T) {
	if _, err := store.DecodeCatalog(strings.NewReader(`{"posts": []}`)); err == nil {
		t.Fatal("expected unknown field error")
	}
}
