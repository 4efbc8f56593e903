package testsupport

import (
	"context"
	"path/filepath"
	"testing"

	"mediafold/internal/config"
	"mediafold/internal/media"
	"mediafold/internal/store"
)

// MustOpenStore opens a store.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *store.Store {
	t.Helper()

	st, err := store.Open(cfg)
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() {
		st.Close()
	})
	return st
}

// SeedTerm inserts a term.
func SeedTerm(t testing.TB, st *store.Store, term media.Term) media.Term {
	t.Helper()

	if err := st.UpsertTerm(context.Background(), term); err != nil {
		t.Fatalf("UpsertTerm: %v", err)
	}
	return term
}

// SeedContent inserts a content item assigned to termIDs.
func SeedContent(t testing.TB, st *store.Store, item media.ContentItem, termIDs ...int64) *media.ContentItem {
	t.Helper()

	if err := st.UpsertContent(context.Background(), &item, termIDs); err != nil {
		t.Fatalf("UpsertContent: %v", err)
	}
	return &item
}

// SeedMedia inserts a media record and writes a file for the main path,
// every variant, and the original under cfg's storage root.
func SeedMedia(t testing.TB, cfg *config.Config, st *store.Store, item media.MediaItem) *media.MediaItem {
	t.Helper()

	if err := st.CreateMedia(context.Background(), &item); err != nil {
		t.Fatalf("CreateMedia: %v", err)
	}
	for _, rel := range item.Files() {
		WriteContent(t, filepath.Join(cfg.Paths.StorageRoot, filepath.FromSlash(rel)), []byte(rel))
	}
	return &item
}

// StoragePath joins a slash-separated relative path onto cfg's storage root.
func StoragePath(cfg *config.Config, rel string) string {
	return filepath.Join(cfg.Paths.StorageRoot, filepath.FromSlash(rel))
}
