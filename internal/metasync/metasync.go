// Package metasync records a completed relocation on the media item's
// metadata record.
package metasync

import (
	"context"
	"log/slog"

	"mediafold/internal/logging"
	"mediafold/internal/media"
	"mediafold/internal/relocator"
	"mediafold/internal/services"
)

// Store is the subset of the catalog the synchronizer writes to.
type Store interface {
	// SaveMediaLocation persists path, sizes, original, and dates as one unit.
	SaveMediaLocation(ctx context.Context, item *media.MediaItem) error
	// UpdateMediaPath persists only the main relative path.
	UpdateMediaPath(ctx context.Context, id int64, relPath string) error
}

// Synchronizer applies relocation results to metadata.
type Synchronizer struct {
	store  Store
	logger *slog.Logger
}

// New constructs a Synchronizer.
func New(store Store, logger *slog.Logger) *Synchronizer {
	return &Synchronizer{store: store, logger: logging.NewComponentLogger(logger, "metasync")}
}

// Apply records result on item. Only moved results change anything. The
// main path is the one field that must match disk: if the full update fails,
// Apply retries with the path alone before reporting the error. On success
// item is updated in place.
func (s *Synchronizer) Apply(ctx context.Context, item *media.MediaItem, result relocator.Result, owner *media.ContentItem) error {
	if item == nil || result.Outcome != relocator.OutcomeMoved {
		return nil
	}
	logger := logging.WithContext(ctx, s.logger)
	updated := Updated(item, result, owner)

	if err := s.store.SaveMediaLocation(ctx, updated); err != nil {
		if pathErr := s.store.UpdateMediaPath(ctx, item.ID, updated.RelPath); pathErr != nil {
			wrapped := services.Wrap(services.ErrRelocation, "metasync", "update path",
				"main path metadata does not match disk: "+updated.RelPath, pathErr)
			logging.ErrorWithContext(logger, "media path update failed", "metadata_diverged",
				logging.String("rel_path", updated.RelPath),
				logging.Error(wrapped),
				logging.String(logging.FieldErrorHint, "run sync again once the catalog is writable"),
			)
			return wrapped
		}
		item.RelPath = updated.RelPath
		wrapped := services.Wrap(services.ErrTransient, "metasync", "save location",
			"variant and date metadata not saved", err)
		logging.WarnWithContext(logger, "media metadata partially updated", "metadata_partial",
			logging.String("rel_path", updated.RelPath),
			logging.Error(err),
			logging.String(logging.FieldImpact, "variant names still point at pre-move files"),
		)
		return wrapped
	}

	*item = *updated
	logger.Debug("media metadata updated",
		logging.String("rel_path", item.RelPath),
		logging.Int("sizes_updated", len(result.MovedSizes)),
	)
	return nil
}

// Updated returns a copy of item reflecting result. Sizes that named the
// main file follow its new name; sizes that failed to move keep their old
// name. Dates follow the owning content item when it has them.
func Updated(item *media.MediaItem, result relocator.Result, owner *media.ContentItem) *media.MediaItem {
	updated := item.Clone()
	updated.RelPath = result.New.RelPath()
	if updated.Sizes == nil && len(result.MovedSizes) > 0 {
		updated.Sizes = make(map[string]string, len(result.MovedSizes))
	}
	oldMain := result.Old.Filename
	for size, name := range updated.Sizes {
		if name == oldMain {
			updated.Sizes[size] = result.New.Filename
		}
	}
	for size, name := range result.MovedSizes {
		updated.Sizes[size] = name
	}
	if result.OriginalMoved != "" {
		updated.OriginalImage = result.OriginalMoved
	} else if item.OriginalImage == oldMain {
		updated.OriginalImage = result.New.Filename
	}
	if owner != nil {
		if !owner.CreatedAt.IsZero() {
			updated.CreatedAt = owner.CreatedAt
		}
		if !owner.ModifiedAt.IsZero() {
			updated.ModifiedAt = owner.ModifiedAt
		}
	}
	return updated
}
