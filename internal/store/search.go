package store

import (
	"context"
	"fmt"
	"strings"

	"mediafold/internal/media"
)

// SearchOptions scopes a body search.
type SearchOptions struct {
	Types     []string
	ExcludeID int64
}

func searchClauses(substr string, opts SearchOptions) (string, []any) {
	clauses := []string{"instr(body, ?) > 0"}
	args := []any{substr}
	if opts.ExcludeID != 0 {
		clauses = append(clauses, "id != ?")
		args = append(args, opts.ExcludeID)
	}
	if len(opts.Types) > 0 {
		clauses = append(clauses, "type IN ("+makePlaceholders(len(opts.Types))+")")
		for _, typ := range opts.Types {
			args = append(args, typ)
		}
	}
	return strings.Join(clauses, " AND "), args
}

// SearchBodies returns every content item whose body contains substr,
// trashed items included. The match is a literal, case-sensitive substring.
func (s *Store) SearchBodies(ctx context.Context, substr string, opts SearchOptions) ([]*media.ContentItem, error) {
	if substr == "" {
		return nil, nil
	}
	where, args := searchClauses(substr, opts)
	return s.queryContent(ensureContext(ctx), "SELECT "+contentColumns+" FROM content_items WHERE "+where+" ORDER BY id", args...)
}

// CountBodies counts the items SearchBodies would return.
func (s *Store) CountBodies(ctx context.Context, substr string, opts SearchOptions) (int, error) {
	if substr == "" {
		return 0, nil
	}
	where, args := searchClauses(substr, opts)
	var count int
	if err := s.db.QueryRowContext(ensureContext(ctx), "SELECT COUNT(1) FROM content_items WHERE "+where, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("count bodies: %w", err)
	}
	return count, nil
}

// CountFeaturedUsers counts content items other than excludeID that use
// mediaID as their featured media.
func (s *Store) CountFeaturedUsers(ctx context.Context, mediaID, excludeID int64) (int, error) {
	var count int
	err := s.db.QueryRowContext(ensureContext(ctx),
		"SELECT COUNT(1) FROM content_items WHERE featured_media_id = ? AND id != ?", mediaID, excludeID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count featured users: %w", err)
	}
	return count, nil
}

// CountTermUsers counts term attachments referencing mediaID.
func (s *Store) CountTermUsers(ctx context.Context, mediaID int64) (int, error) {
	var count int
	if err := s.db.QueryRowContext(ensureContext(ctx), "SELECT COUNT(1) FROM term_media WHERE media_id = ?", mediaID).Scan(&count); err != nil {
		return 0, fmt.Errorf("count term users: %w", err)
	}
	return count, nil
}
