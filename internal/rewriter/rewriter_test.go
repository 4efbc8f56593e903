package rewriter_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"mediafold/internal/logging"
	"mediafold/internal/media"
	"mediafold/internal/rewriter"
	"mediafold/internal/services"
	"mediafold/internal/testsupport"
)

const uploads = "/wp-content/uploads/"

func TestRewriteOwnBodyPointsMovedFilesAtNewLocation(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	settings := cfg.Settings()

	body := `<p>Trip</p><img class="hero" src="` + uploads + `2020/09/photo.jpg">` +
		`<a href="https://old.example.com` + uploads + `2020/09/photo-300x200.jpg">thumb</a>` +
		`<img src="https://cdn.other.net/x.jpg">`
	content := testsupport.SeedContent(t, st, media.ContentItem{ID: 42, Type: "post", Body: body})
	move := media.Move{
		MediaID:  1,
		Old:      media.NewPathSpec(settings, "2020/09", "photo.jpg"),
		New:      media.NewPathSpec(settings, "post/category/travel/my-story", "photo.jpg"),
		Variants: map[string]string{"photo-300x200.jpg": "photo-300x200.jpg"},
	}

	rw := rewriter.New(st, settings, logging.NewNop())
	report, err := rw.RewriteOwnBody(context.Background(), content, move)
	if err != nil {
		t.Fatalf("RewriteOwnBody failed: %v", err)
	}
	if !report.Changed || report.Rewritten != 2 {
		t.Fatalf("unexpected report %+v", report)
	}
	want := `<p>Trip</p><img class="hero" src="` + uploads + `post/category/travel/my-story/photo.jpg">` +
		`<a href="` + uploads + `post/category/travel/my-story/photo-300x200.jpg">thumb</a>` +
		`<img src="https://cdn.other.net/x.jpg">`
	if content.Body != want {
		t.Fatalf("unexpected body:\n got %s\nwant %s", content.Body, want)
	}
	stored, err := st.GetContent(context.Background(), 42)
	if err != nil {
		t.Fatalf("GetContent failed: %v", err)
	}
	if stored.Body != want {
		t.Fatalf("body not saved: %s", stored.Body)
	}

	// A second pass with no moves changes nothing.
	again, err := rw.RewriteOwnBody(context.Background(), content)
	if err != nil {
		t.Fatalf("second RewriteOwnBody failed: %v", err)
	}
	if again.Changed {
		t.Fatalf("expected no change on second pass, got %+v", again)
	}
}

func TestRewriteOwnBodyUsesAbsoluteURLs(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithAbsoluteURLs())
	st := testsupport.MustOpenStore(t, cfg)
	settings := cfg.Settings()

	content := testsupport.SeedContent(t, st, media.ContentItem{ID: 1, Type: "post",
		Body: `<img src="` + uploads + `a.jpg">`})
	move := media.Move{
		Old: media.NewPathSpec(settings, "", "a.jpg"),
		New: media.NewPathSpec(settings, "post", "a.jpg"),
	}
	if _, err := rewriter.New(st, settings, nil).RewriteOwnBody(context.Background(), content, move); err != nil {
		t.Fatalf("RewriteOwnBody failed: %v", err)
	}
	if !strings.Contains(content.Body, `src="https://example.com`+uploads+`post/a.jpg"`) {
		t.Fatalf("expected absolute url, got %s", content.Body)
	}
}

func TestRewriteOwnBodyResolvesMissingFileByName(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	settings := cfg.Settings()

	found := testsupport.SeedMedia(t, cfg, st, media.MediaItem{RelPath: "page/about/portrait.jpg"})
	content := testsupport.SeedContent(t, st, media.ContentItem{ID: 5, Type: "post",
		Body: `<img src="` + uploads + `2019/01/portrait.jpg"><img src="` + uploads + `2019/01/gone.jpg">`})

	report, err := rewriter.New(st, settings, nil).RewriteOwnBody(context.Background(), content)
	if err != nil {
		t.Fatalf("RewriteOwnBody failed: %v", err)
	}
	if report.Resolved != 1 || len(report.Unresolved) != 1 {
		t.Fatalf("unexpected report %+v", report)
	}
	if !errors.Is(report.Unresolved[0].Err, services.ErrReferenceResolution) {
		t.Fatalf("expected resolution error, got %v", report.Unresolved[0].Err)
	}
	if !strings.Contains(content.Body, uploads+found.RelPath) {
		t.Fatalf("expected reference to %s, got %s", found.RelPath, content.Body)
	}
	if !strings.Contains(content.Body, uploads+"2019/01/gone.jpg") {
		t.Fatalf("unresolved reference must be kept, got %s", content.Body)
	}
	testsupport.AssertExists(t, testsupport.StoragePath(cfg, found.RelPath))
}

func TestRewriteOwnBodyLeavesAmbiguousMatchesUnresolved(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)

	testsupport.SeedMedia(t, cfg, st, media.MediaItem{RelPath: "a/photo.jpg"})
	testsupport.SeedMedia(t, cfg, st, media.MediaItem{RelPath: "b/photo.jpg"})
	body := `<img src="` + uploads + `old/photo.jpg">`
	content := testsupport.SeedContent(t, st, media.ContentItem{ID: 5, Type: "post", Body: body})

	report, err := rewriter.New(st, cfg.Settings(), nil).RewriteOwnBody(context.Background(), content)
	if err != nil {
		t.Fatalf("RewriteOwnBody failed: %v", err)
	}
	if report.Changed || len(report.Unresolved) != 1 {
		t.Fatalf("unexpected report %+v", report)
	}
	if content.Body != body {
		t.Fatalf("body must be untouched, got %s", content.Body)
	}
}

func TestRewriteOtherReferencesUpdatesCorpus(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	settings := cfg.Settings()
	ctx := context.Background()

	old := uploads + "2020/09/photo.jpg"
	testsupport.SeedContent(t, st, media.ContentItem{ID: 42, Type: "post", Body: `<img src="` + old + `">`})
	testsupport.SeedContent(t, st, media.ContentItem{ID: 99, Type: "post", Body: `<p><img src="` + old + `" alt="x"></p>`})
	testsupport.SeedContent(t, st, media.ContentItem{ID: 100, Type: "page", Body: `<p>see ` + old + ` in text</p>`})

	move := media.Move{
		Old: media.NewPathSpec(settings, "2020/09", "photo.jpg"),
		New: media.NewPathSpec(settings, "post/category/travel/my-story", "photo-1.jpg"),
	}
	count, err := rewriter.New(st, settings, nil).RewriteOtherReferences(ctx, 42, move)
	if err != nil {
		t.Fatalf("RewriteOtherReferences failed: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected 1 document written, got %d", count)
	}

	other, _ := st.GetContent(ctx, 99)
	if strings.Contains(other.Body, old) || !strings.Contains(other.Body, "my-story/photo-1.jpg") {
		t.Fatalf("post 99 not rewritten: %s", other.Body)
	}
	own, _ := st.GetContent(ctx, 42)
	if !strings.Contains(own.Body, old) {
		t.Fatalf("excluded item must not be touched: %s", own.Body)
	}
	text, _ := st.GetContent(ctx, 100)
	if !strings.Contains(text.Body, old) {
		t.Fatalf("plain text mention must not be rewritten: %s", text.Body)
	}
}

func TestRewriteOtherReferencesMatchesEitherURLForm(t *testing.T) {
	tests := []struct {
		name     string
		filename string
		src      string
		want     string
	}{
		{"raw space", "my photo.jpg", uploads + "2020/09/my photo.jpg", "my-story/my%20photo.jpg"},
		{"escaped space", "my photo.jpg", uploads + "2020/09/my%20photo.jpg", "my-story/my%20photo.jpg"},
		{"raw non-ascii", "café.jpg", uploads + "2020/09/café.jpg", "my-story/caf%C3%A9.jpg"},
		{"escaped non-ascii", "café.jpg", uploads + "2020/09/caf%C3%A9.jpg", "my-story/caf%C3%A9.jpg"},
		{"raw percent", "100%.jpg", uploads + "2020/09/100%.jpg", "my-story/100%25.jpg"},
		{"escaped percent", "100%.jpg", uploads + "2020/09/100%25.jpg", "my-story/100%25.jpg"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := testsupport.NewConfig(t)
			st := testsupport.MustOpenStore(t, cfg)
			settings := cfg.Settings()
			ctx := context.Background()

			testsupport.SeedContent(t, st, media.ContentItem{ID: 42, Type: "post"})
			testsupport.SeedContent(t, st, media.ContentItem{ID: 99, Type: "post", Body: `<img src="` + tc.src + `">`})
			move := media.Move{
				Old: media.NewPathSpec(settings, "2020/09", tc.filename),
				New: media.NewPathSpec(settings, "post/category/travel/my-story", tc.filename),
			}
			count, err := rewriter.New(st, settings, nil).RewriteOtherReferences(ctx, 42, move)
			if err != nil {
				t.Fatalf("RewriteOtherReferences failed: %v", err)
			}
			if count != 1 {
				t.Fatalf("expected 1 document written, got %d", count)
			}
			other, _ := st.GetContent(ctx, 99)
			if strings.Contains(other.Body, tc.src) || !strings.Contains(other.Body, tc.want) {
				t.Fatalf("post 99 not rewritten: %s", other.Body)
			}
		})
	}
}
