package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path"

	"mediafold/internal/media"
)

const mediaColumns = "id, parent_id, rel_path, original_image, mime_type, source_url, created_at, modified_at"

func scanMedia(scanner interface{ Scan(dest ...any) error }) (*media.MediaItem, error) {
	var (
		item        media.MediaItem
		parent      sql.NullInt64
		original    sql.NullString
		mimeType    sql.NullString
		sourceURL   sql.NullString
		createdRaw  sql.NullString
		modifiedRaw sql.NullString
	)
	if err := scanner.Scan(
		&item.ID,
		&parent,
		&item.RelPath,
		&original,
		&mimeType,
		&sourceURL,
		&createdRaw,
		&modifiedRaw,
	); err != nil {
		return nil, err
	}
	item.ParentID = parent.Int64
	item.OriginalImage = original.String
	item.MimeType = mimeType.String
	item.SourceURL = sourceURL.String
	item.CreatedAt = parseTimeOrZero(createdRaw.String)
	item.ModifiedAt = parseTimeOrZero(modifiedRaw.String)
	return &item, nil
}

// GetMedia fetches a media item with its size variants. A missing item
// returns nil, nil.
func (s *Store) GetMedia(ctx context.Context, id int64) (*media.MediaItem, error) {
	items, err := s.queryMedia(ensureContext(ctx), "SELECT "+mediaColumns+" FROM media_items WHERE id = ?", id)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, nil
	}
	return items[0], nil
}

// ListMediaByParent returns the media attached to a content item.
func (s *Store) ListMediaByParent(ctx context.Context, parentID int64) ([]*media.MediaItem, error) {
	return s.queryMedia(ensureContext(ctx), "SELECT "+mediaColumns+" FROM media_items WHERE parent_id = ? ORDER BY id", parentID)
}

// ListMedia returns every media item.
func (s *Store) ListMedia(ctx context.Context) ([]*media.MediaItem, error) {
	return s.queryMedia(ensureContext(ctx), "SELECT "+mediaColumns+" FROM media_items ORDER BY id")
}

// FindMediaBySourceURL returns the item previously localised from url, or nil.
func (s *Store) FindMediaBySourceURL(ctx context.Context, url string) (*media.MediaItem, error) {
	if url == "" {
		return nil, nil
	}
	items, err := s.queryMedia(ensureContext(ctx), "SELECT "+mediaColumns+" FROM media_items WHERE source_url = ? ORDER BY id LIMIT 1", url)
	if err != nil || len(items) == 0 {
		return nil, err
	}
	return items[0], nil
}

// FindMediaByFile returns the items owning rel, a storage-relative path that
// may name a main file, a size variant, or a preserved original.
func (s *Store) FindMediaByFile(ctx context.Context, rel string) ([]*media.MediaItem, error) {
	rel = media.CleanSubdir(rel)
	if rel == "" {
		return nil, nil
	}
	dir := path.Dir(rel)
	query := "SELECT " + mediaColumns + " FROM media_items WHERE rel_path = ?"
	args := []any{rel}
	if dir != "." {
		query += ` OR rel_path LIKE ? ESCAPE '\'`
		args = append(args, likePrefix(dir+"/"))
	} else {
		query += " OR instr(rel_path, '/') = 0"
	}
	candidates, err := s.queryMedia(ensureContext(ctx), query+" ORDER BY id", args...)
	if err != nil {
		return nil, err
	}
	var out []*media.MediaItem
	for _, item := range candidates {
		for _, file := range item.Files() {
			if file == rel {
				out = append(out, item)
				break
			}
		}
	}
	return out, nil
}

func (s *Store) queryMedia(ctx context.Context, query string, args ...any) ([]*media.MediaItem, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query media: %w", err)
	}
	var items []*media.MediaItem
	for rows.Next() {
		item, err := scanMedia(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan media: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()
	if err := s.loadSizes(ctx, items); err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) loadSizes(ctx context.Context, items []*media.MediaItem) error {
	if len(items) == 0 {
		return nil
	}
	byID := make(map[int64]*media.MediaItem, len(items))
	args := make([]any, 0, len(items))
	for _, item := range items {
		byID[item.ID] = item
		args = append(args, item.ID)
	}
	rows, err := s.db.QueryContext(ctx,
		"SELECT media_id, name, file FROM media_sizes WHERE media_id IN ("+makePlaceholders(len(args))+")", args...)
	if err != nil {
		return fmt.Errorf("query media sizes: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			id         int64
			name, file string
		)
		if err := rows.Scan(&id, &name, &file); err != nil {
			return fmt.Errorf("scan media size: %w", err)
		}
		item := byID[id]
		if item.Sizes == nil {
			item.Sizes = make(map[string]string)
		}
		item.Sizes[name] = file
	}
	return rows.Err()
}

// CreateMedia inserts a media record. A zero ID is assigned by the database
// and written back to item.
func (s *Store) CreateMedia(ctx context.Context, item *media.MediaItem) error {
	if item == nil || media.CleanSubdir(item.RelPath) == "" {
		return errors.New("create media: rel_path is required")
	}
	return s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `INSERT INTO media_items (`+mediaColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				parent_id = excluded.parent_id, rel_path = excluded.rel_path,
				original_image = excluded.original_image, mime_type = excluded.mime_type,
				source_url = excluded.source_url, created_at = excluded.created_at,
				modified_at = excluded.modified_at`,
			nullableID(item.ID), nullableID(item.ParentID), media.CleanSubdir(item.RelPath),
			nullableString(item.OriginalImage), nullableString(item.MimeType), nullableString(item.SourceURL),
			nullableTime(item.CreatedAt), nullableTime(item.ModifiedAt),
		)
		if err != nil {
			return fmt.Errorf("insert media: %w", err)
		}
		if item.ID == 0 {
			id, err := res.LastInsertId()
			if err != nil {
				return fmt.Errorf("media id: %w", err)
			}
			item.ID = id
		}
		return replaceSizes(ctx, tx, item.ID, item.Sizes)
	})
}

// SaveMediaLocation persists a relocated item's path, sizes, original, and
// dates in one transaction.
func (s *Store) SaveMediaLocation(ctx context.Context, item *media.MediaItem) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `UPDATE media_items
			SET rel_path = ?, original_image = ?, created_at = ?, modified_at = ?
			WHERE id = ?`,
			media.CleanSubdir(item.RelPath), nullableString(item.OriginalImage),
			nullableTime(item.CreatedAt), nullableTime(item.ModifiedAt), item.ID,
		)
		if err != nil {
			return fmt.Errorf("update media %d: %w", item.ID, err)
		}
		if err := requireRow(res, "media", item.ID); err != nil {
			return err
		}
		return replaceSizes(ctx, tx, item.ID, item.Sizes)
	})
}

// UpdateMediaPath persists only the main file path.
func (s *Store) UpdateMediaPath(ctx context.Context, id int64, relPath string) error {
	res, err := s.execWithRetry(ctx, "UPDATE media_items SET rel_path = ? WHERE id = ?", media.CleanSubdir(relPath), id)
	if err != nil {
		return fmt.Errorf("update media path %d: %w", id, err)
	}
	return requireRow(res, "media", id)
}

// DeleteMedia removes a media record, its sizes, its term attachments, and
// any featured references to it.
func (s *Store) DeleteMedia(ctx context.Context, id int64) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, "UPDATE content_items SET featured_media_id = NULL WHERE featured_media_id = ?", id); err != nil {
			return fmt.Errorf("clear featured media: %w", err)
		}
		res, err := tx.ExecContext(ctx, "DELETE FROM media_items WHERE id = ?", id)
		if err != nil {
			return fmt.Errorf("delete media %d: %w", id, err)
		}
		return requireRow(res, "media", id)
	})
}

// AllMediaFiles maps every file any media record claims to its owner id.
func (s *Store) AllMediaFiles(ctx context.Context) (map[string]int64, error) {
	items, err := s.ListMedia(ctx)
	if err != nil {
		return nil, err
	}
	files := make(map[string]int64, len(items)*4)
	for _, item := range items {
		for _, file := range item.Files() {
			files[file] = item.ID
		}
	}
	return files, nil
}

func replaceSizes(ctx context.Context, tx *sql.Tx, mediaID int64, sizes map[string]string) error {
	if _, err := tx.ExecContext(ctx, "DELETE FROM media_sizes WHERE media_id = ?", mediaID); err != nil {
		return fmt.Errorf("clear media sizes: %w", err)
	}
	for name, file := range sizes {
		if file == "" {
			continue
		}
		if _, err := tx.ExecContext(ctx, "INSERT INTO media_sizes (media_id, name, file) VALUES (?, ?, ?)", mediaID, name, file); err != nil {
			return fmt.Errorf("insert media size %s: %w", name, err)
		}
	}
	return nil
}
