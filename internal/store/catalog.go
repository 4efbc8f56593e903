package store

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"mediafold/internal/media"
)

// Catalog is the portable JSON form of the host collaborator's records.
type Catalog struct {
	Terms     []CatalogTerm       `json:"terms,omitempty"`
	Content   []CatalogContent    `json:"content,omitempty"`
	Media     []CatalogMedia      `json:"media,omitempty"`
	TermMedia []CatalogAttachment `json:"term_media,omitempty"`
}

// CatalogTerm is a taxonomy term record.
type CatalogTerm struct {
	ID       int64  `json:"id"`
	Taxonomy string `json:"taxonomy"`
	Slug     string `json:"slug"`
	Name     string `json:"name,omitempty"`
	ParentID int64  `json:"parent_id,omitempty"`
}

// CatalogContent is a content item record.
type CatalogContent struct {
	ID              int64     `json:"id"`
	Type            string    `json:"type"`
	Slug            string    `json:"slug,omitempty"`
	Title           string    `json:"title,omitempty"`
	Body            string    `json:"body,omitempty"`
	Status          string    `json:"status,omitempty"`
	FeaturedMediaID int64     `json:"featured_media_id,omitempty"`
	CreatedAt       time.Time `json:"created_at,omitzero"`
	ModifiedAt      time.Time `json:"modified_at,omitzero"`
	TermIDs         []int64   `json:"term_ids,omitempty"`
}

// CatalogMedia is a media item record.
type CatalogMedia struct {
	ID            int64             `json:"id"`
	ParentID      int64             `json:"parent_id,omitempty"`
	RelPath       string            `json:"rel_path"`
	Sizes         map[string]string `json:"sizes,omitempty"`
	OriginalImage string            `json:"original_image,omitempty"`
	MimeType      string            `json:"mime_type,omitempty"`
	SourceURL     string            `json:"source_url,omitempty"`
	CreatedAt     time.Time         `json:"created_at,omitzero"`
	ModifiedAt    time.Time         `json:"modified_at,omitzero"`
}

// CatalogAttachment anchors a media item to a term.
type CatalogAttachment struct {
	TermID  int64  `json:"term_id"`
	MetaKey string `json:"meta_key,omitempty"`
	MediaID int64  `json:"media_id"`
}

// ImportStats counts the records an import wrote.
type ImportStats struct {
	Terms     int
	Content   int
	Media     int
	TermMedia int
}

// DecodeCatalog reads a JSON catalog, rejecting unknown fields.
func DecodeCatalog(r io.Reader) (*Catalog, error) {
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	var catalog Catalog
	if err := dec.Decode(&catalog); err != nil {
		return nil, fmt.Errorf("decode catalog: %w", err)
	}
	return &catalog, nil
}

// Import upserts every record of the catalog. Records are written in
// dependency order: terms, content, media, then term attachments.
func (s *Store) Import(ctx context.Context, catalog *Catalog) (ImportStats, error) {
	var stats ImportStats
	if catalog == nil {
		return stats, nil
	}
	for _, term := range catalog.Terms {
		if err := s.UpsertTerm(ctx, media.Term{
			ID:       term.ID,
			Taxonomy: term.Taxonomy,
			Slug:     term.Slug,
			Name:     term.Name,
			ParentID: term.ParentID,
		}); err != nil {
			return stats, err
		}
		stats.Terms++
	}
	for _, c := range catalog.Content {
		item := &media.ContentItem{
			ID:              c.ID,
			Type:            c.Type,
			Slug:            c.Slug,
			Title:           c.Title,
			Body:            c.Body,
			Status:          media.Status(c.Status),
			FeaturedMediaID: c.FeaturedMediaID,
			CreatedAt:       c.CreatedAt,
			ModifiedAt:      c.ModifiedAt,
		}
		if err := s.UpsertContent(ctx, item, c.TermIDs); err != nil {
			return stats, err
		}
		stats.Content++
	}
	for _, m := range catalog.Media {
		if m.ID == 0 {
			return stats, fmt.Errorf("import media %q: id is required", m.RelPath)
		}
		item := &media.MediaItem{
			ID:            m.ID,
			ParentID:      m.ParentID,
			RelPath:       m.RelPath,
			Sizes:         m.Sizes,
			OriginalImage: m.OriginalImage,
			MimeType:      m.MimeType,
			SourceURL:     m.SourceURL,
			CreatedAt:     m.CreatedAt,
			ModifiedAt:    m.ModifiedAt,
		}
		if err := s.CreateMedia(ctx, item); err != nil {
			return stats, err
		}
		stats.Media++
	}
	for _, a := range catalog.TermMedia {
		if err := s.AttachTermMedia(ctx, a.TermID, a.MetaKey, a.MediaID); err != nil {
			return stats, err
		}
		stats.TermMedia++
	}
	return stats, nil
}

// Export returns the whole catalog, trashed content included.
func (s *Store) Export(ctx context.Context) (*Catalog, error) {
	var catalog Catalog
	terms, err := s.ListTerms(ctx)
	if err != nil {
		return nil, err
	}
	for _, t := range terms {
		catalog.Terms = append(catalog.Terms, CatalogTerm{
			ID: t.ID, Taxonomy: t.Taxonomy, Slug: t.Slug, Name: t.Name, ParentID: t.ParentID,
		})
	}
	contents, err := s.ListContent(ctx, ListOptions{IncludeTrash: true})
	if err != nil {
		return nil, err
	}
	for _, c := range contents {
		termIDs, err := s.contentTermIDs(ensureContext(ctx), c.ID)
		if err != nil {
			return nil, err
		}
		catalog.Content = append(catalog.Content, CatalogContent{
			ID:              c.ID,
			Type:            c.Type,
			Slug:            c.Slug,
			Title:           c.Title,
			Body:            c.Body,
			Status:          string(c.Status),
			FeaturedMediaID: c.FeaturedMediaID,
			CreatedAt:       c.CreatedAt,
			ModifiedAt:      c.ModifiedAt,
			TermIDs:         termIDs,
		})
	}
	items, err := s.ListMedia(ctx)
	if err != nil {
		return nil, err
	}
	for _, m := range items {
		catalog.Media = append(catalog.Media, CatalogMedia{
			ID:            m.ID,
			ParentID:      m.ParentID,
			RelPath:       m.RelPath,
			Sizes:         m.Sizes,
			OriginalImage: m.OriginalImage,
			MimeType:      m.MimeType,
			SourceURL:     m.SourceURL,
			CreatedAt:     m.CreatedAt,
			ModifiedAt:    m.ModifiedAt,
		})
	}
	attachments, err := s.ListTermAttachments(ctx)
	if err != nil {
		return nil, err
	}
	for _, a := range attachments {
		catalog.TermMedia = append(catalog.TermMedia, CatalogAttachment{
			TermID: a.Term.ID, MetaKey: a.MetaKey, MediaID: a.MediaID,
		})
	}
	return &catalog, nil
}
