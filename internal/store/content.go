package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"mediafold/internal/media"
)

const contentColumns = "id, type, slug, title, body, status, featured_media_id, created_at, modified_at"

func scanContent(scanner interface{ Scan(dest ...any) error }) (*media.ContentItem, error) {
	var (
		item        media.ContentItem
		status      string
		featured    sql.NullInt64
		createdRaw  sql.NullString
		modifiedRaw sql.NullString
	)
	if err := scanner.Scan(
		&item.ID,
		&item.Type,
		&item.Slug,
		&item.Title,
		&item.Body,
		&status,
		&featured,
		&createdRaw,
		&modifiedRaw,
	); err != nil {
		return nil, err
	}
	item.Status = media.Status(status)
	item.FeaturedMediaID = featured.Int64
	item.CreatedAt = parseTimeOrZero(createdRaw.String)
	item.ModifiedAt = parseTimeOrZero(modifiedRaw.String)
	return &item, nil
}

// GetContent fetches a content item with its term chains. A missing item
// returns nil, nil. Terms whose chain is broken are listed in BrokenTerms
// instead of failing the load.
func (s *Store) GetContent(ctx context.Context, id int64) (*media.ContentItem, error) {
	ctx = ensureContext(ctx)
	row := s.db.QueryRowContext(ctx, "SELECT "+contentColumns+" FROM content_items WHERE id = ?", id)
	item, err := scanContent(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get content %d: %w", id, err)
	}
	termIDs, err := s.contentTermIDs(ctx, id)
	if err != nil {
		return nil, err
	}
	for _, termID := range termIDs {
		chain, err := s.TermChain(ctx, termID)
		if errors.Is(err, ErrBrokenTermChain) {
			item.BrokenTerms = append(item.BrokenTerms, termID)
			continue
		}
		if err != nil {
			return nil, err
		}
		if len(chain) > 0 {
			item.Terms = append(item.Terms, chain)
		}
	}
	return item, nil
}

func (s *Store) contentTermIDs(ctx context.Context, contentID int64) ([]int64, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT term_id FROM content_terms WHERE content_id = ? ORDER BY term_id", contentID)
	if err != nil {
		return nil, fmt.Errorf("list content terms: %w", err)
	}
	defer rows.Close()
	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// ListOptions filters ListContent.
type ListOptions struct {
	Types        []string
	IncludeTrash bool
}

// ListContent returns content items ordered by id. Term chains are not
// loaded; use GetContent for a fully populated item.
func (s *Store) ListContent(ctx context.Context, opts ListOptions) ([]*media.ContentItem, error) {
	ctx = ensureContext(ctx)
	clauses := []string{"1 = 1"}
	var args []any
	if len(opts.Types) > 0 {
		clauses = append(clauses, "type IN ("+makePlaceholders(len(opts.Types))+")")
		for _, typ := range opts.Types {
			args = append(args, typ)
		}
	}
	if !opts.IncludeTrash {
		clauses = append(clauses, "status != ?")
		args = append(args, string(media.StatusTrash))
	}
	query := "SELECT " + contentColumns + " FROM content_items WHERE " + strings.Join(clauses, " AND ") + " ORDER BY id"
	return s.queryContent(ctx, query, args...)
}

func (s *Store) queryContent(ctx context.Context, query string, args ...any) ([]*media.ContentItem, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query content: %w", err)
	}
	defer rows.Close()
	var items []*media.ContentItem
	for rows.Next() {
		item, err := scanContent(rows)
		if err != nil {
			return nil, fmt.Errorf("scan content: %w", err)
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// UpsertContent inserts or replaces a content item and its term assignments.
func (s *Store) UpsertContent(ctx context.Context, item *media.ContentItem, termIDs []int64) error {
	if item == nil || item.ID == 0 {
		return errors.New("upsert content: id is required")
	}
	status := item.Status
	if status == "" {
		status = media.StatusPublish
	}
	return s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `INSERT INTO content_items (`+contentColumns+`)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				type = excluded.type, slug = excluded.slug, title = excluded.title,
				body = excluded.body, status = excluded.status,
				featured_media_id = excluded.featured_media_id,
				created_at = excluded.created_at, modified_at = excluded.modified_at`,
			item.ID, item.Type, item.Slug, item.Title, item.Body, string(status),
			nullableID(item.FeaturedMediaID), nullableTime(item.CreatedAt), nullableTime(item.ModifiedAt),
		); err != nil {
			return fmt.Errorf("upsert content %d: %w", item.ID, err)
		}
		if _, err := tx.ExecContext(ctx, "DELETE FROM content_terms WHERE content_id = ?", item.ID); err != nil {
			return fmt.Errorf("clear content terms: %w", err)
		}
		for _, termID := range termIDs {
			if _, err := tx.ExecContext(ctx, "INSERT OR IGNORE INTO content_terms (content_id, term_id) VALUES (?, ?)", item.ID, termID); err != nil {
				return fmt.Errorf("assign term %d: %w", termID, err)
			}
		}
		return nil
	})
}

// SaveBody writes a rewritten body. It is the terminal step of a pipeline
// run: nothing observes this write, so it can never re-trigger a sync.
func (s *Store) SaveBody(ctx context.Context, id int64, body string) error {
	res, err := s.execWithRetry(ctx, "UPDATE content_items SET body = ? WHERE id = ?", body, id)
	if err != nil {
		return fmt.Errorf("save body %d: %w", id, err)
	}
	return requireRow(res, "content", id)
}

// SetFeaturedMedia updates a content item's primary media reference.
func (s *Store) SetFeaturedMedia(ctx context.Context, id, mediaID int64) error {
	res, err := s.execWithRetry(ctx, "UPDATE content_items SET featured_media_id = ? WHERE id = ?", nullableID(mediaID), id)
	if err != nil {
		return fmt.Errorf("set featured media %d: %w", id, err)
	}
	return requireRow(res, "content", id)
}

// SetStatus changes a content item's publishing state.
func (s *Store) SetStatus(ctx context.Context, id int64, status media.Status) error {
	res, err := s.execWithRetry(ctx, "UPDATE content_items SET status = ? WHERE id = ?", string(status), id)
	if err != nil {
		return fmt.Errorf("set status %d: %w", id, err)
	}
	return requireRow(res, "content", id)
}

// DeleteContent removes a content item permanently. Media still attached
// to it become unattached.
func (s *Store) DeleteContent(ctx context.Context, id int64) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, "UPDATE media_items SET parent_id = NULL WHERE parent_id = ?", id); err != nil {
			return fmt.Errorf("detach media: %w", err)
		}
		res, err := tx.ExecContext(ctx, "DELETE FROM content_items WHERE id = ?", id)
		if err != nil {
			return fmt.Errorf("delete content %d: %w", id, err)
		}
		return requireRow(res, "content", id)
	})
}

// ErrNoRows is returned when an update targets a missing record.
var ErrNoRows = errors.New("record not found")

func requireRow(res sql.Result, kind string, id int64) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%s %d: %w", kind, id, ErrNoRows)
	}
	return nil
}
