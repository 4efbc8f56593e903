package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"mediafold/internal/media"
)

// maxTermDepth guards against parent cycles in imported term data.
const maxTermDepth = 32

// ErrBrokenTermChain marks a term whose parent chain loops or runs deeper
// than maxTermDepth.
var ErrBrokenTermChain = errors.New("parent chain loops or is too deep")

// GetTerm fetches a term. A missing term returns nil, nil.
func (s *Store) GetTerm(ctx context.Context, id int64) (*media.Term, error) {
	var (
		term   media.Term
		parent sql.NullInt64
	)
	err := s.db.QueryRowContext(ensureContext(ctx),
		"SELECT id, taxonomy, slug, name, parent_id FROM terms WHERE id = ?", id,
	).Scan(&term.ID, &term.Taxonomy, &term.Slug, &term.Name, &parent)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get term %d: %w", id, err)
	}
	term.ParentID = parent.Int64
	return &term, nil
}

// TermChain returns the ancestor chain of a term, root first. A parent cycle
// or a chain deeper than maxTermDepth is an error.
func (s *Store) TermChain(ctx context.Context, termID int64) (media.TermPath, error) {
	var chain media.TermPath
	seen := make(map[int64]struct{})
	for id := termID; id != 0; {
		if _, ok := seen[id]; ok || len(chain) >= maxTermDepth {
			return nil, fmt.Errorf("term %d: %w (limit %d levels)", termID, ErrBrokenTermChain, maxTermDepth)
		}
		seen[id] = struct{}{}
		term, err := s.GetTerm(ctx, id)
		if err != nil {
			return nil, err
		}
		if term == nil {
			break
		}
		chain = append(media.TermPath{*term}, chain...)
		id = term.ParentID
	}
	return chain, nil
}

// UpsertTerm inserts or replaces a term.
func (s *Store) UpsertTerm(ctx context.Context, term media.Term) error {
	if term.ID == 0 {
		return errors.New("upsert term: id is required")
	}
	_, err := s.execWithRetry(ctx, `INSERT INTO terms (id, taxonomy, slug, name, parent_id) VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET taxonomy = excluded.taxonomy, slug = excluded.slug,
			name = excluded.name, parent_id = excluded.parent_id`,
		term.ID, term.Taxonomy, term.Slug, term.Name, nullableID(term.ParentID),
	)
	if err != nil {
		return fmt.Errorf("upsert term %d: %w", term.ID, err)
	}
	return nil
}

// AttachTermMedia anchors mediaID to a term under metaKey, replacing any
// previous media for that key.
func (s *Store) AttachTermMedia(ctx context.Context, termID int64, metaKey string, mediaID int64) error {
	_, err := s.execWithRetry(ctx, `INSERT INTO term_media (term_id, meta_key, media_id) VALUES (?, ?, ?)
		ON CONFLICT(term_id, meta_key) DO UPDATE SET media_id = excluded.media_id`,
		termID, metaKey, mediaID,
	)
	if err != nil {
		return fmt.Errorf("attach term media: %w", err)
	}
	return nil
}

// TermAttachments lists the media anchored to a term.
func (s *Store) TermAttachments(ctx context.Context, termID int64) ([]media.TermAttachment, error) {
	ctx = ensureContext(ctx)
	term, err := s.GetTerm(ctx, termID)
	if err != nil || term == nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, "SELECT meta_key, media_id FROM term_media WHERE term_id = ? ORDER BY meta_key", termID)
	if err != nil {
		return nil, fmt.Errorf("list term media: %w", err)
	}
	defer rows.Close()
	var out []media.TermAttachment
	for rows.Next() {
		attachment := media.TermAttachment{Term: *term}
		if err := rows.Scan(&attachment.MetaKey, &attachment.MediaID); err != nil {
			return nil, fmt.Errorf("scan term media: %w", err)
		}
		out = append(out, attachment)
	}
	return out, rows.Err()
}

// ListTermAttachments lists every term attachment in the catalog.
func (s *Store) ListTermAttachments(ctx context.Context) ([]media.TermAttachment, error) {
	ctx = ensureContext(ctx)
	rows, err := s.db.QueryContext(ctx, `SELECT t.id, t.taxonomy, t.slug, t.name, t.parent_id, tm.meta_key, tm.media_id
		FROM term_media tm JOIN terms t ON t.id = tm.term_id ORDER BY t.id, tm.meta_key`)
	if err != nil {
		return nil, fmt.Errorf("list term attachments: %w", err)
	}
	defer rows.Close()
	var out []media.TermAttachment
	for rows.Next() {
		var (
			a      media.TermAttachment
			parent sql.NullInt64
		)
		if err := rows.Scan(&a.Term.ID, &a.Term.Taxonomy, &a.Term.Slug, &a.Term.Name, &parent, &a.MetaKey, &a.MediaID); err != nil {
			return nil, fmt.Errorf("scan term attachment: %w", err)
		}
		a.Term.ParentID = parent.Int64
		out = append(out, a)
	}
	return out, rows.Err()
}

// ListTerms returns every term ordered by id.
func (s *Store) ListTerms(ctx context.Context) ([]media.Term, error) {
	rows, err := s.db.QueryContext(ensureContext(ctx), "SELECT id, taxonomy, slug, name, parent_id FROM terms ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("list terms: %w", err)
	}
	defer rows.Close()
	var out []media.Term
	for rows.Next() {
		var (
			term   media.Term
			parent sql.NullInt64
		)
		if err := rows.Scan(&term.ID, &term.Taxonomy, &term.Slug, &term.Name, &parent); err != nil {
			return nil, fmt.Errorf("scan term: %w", err)
		}
		term.ParentID = parent.Int64
		out = append(out, term)
	}
	return out, rows.Err()
}
