package reaper

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"mediafold/internal/fileutil"
	"mediafold/internal/logging"
	"mediafold/internal/media"
	"mediafold/internal/services"
	"mediafold/internal/store"
)

// Store is the subset of the catalog the reaper consults and mutates.
type Store interface {
	CountBodies(ctx context.Context, substr string, opts store.SearchOptions) (int, error)
	CountFeaturedUsers(ctx context.Context, mediaID, excludeID int64) (int, error)
	CountTermUsers(ctx context.Context, mediaID int64) (int, error)
	DeleteMedia(ctx context.Context, id int64) error
	AllMediaFiles(ctx context.Context) (map[string]int64, error)
}

// Decision is the reaper's verdict on one media item.
type Decision string

const (
	DecisionDeleted  Decision = "deleted"
	DecisionRetained Decision = "retained"
)

// Verdict explains a decision.
type Verdict struct {
	MediaID  int64
	Decision Decision
	Reason   string
	// Removed lists the storage-relative files deleted.
	Removed []string
	// Pruned lists the directories removed after they became empty.
	Pruned []string
	// Err is set when usage could not be confirmed absent.
	Err error
}

// Reaper deletes orphaned media.
type Reaper struct {
	store    Store
	settings media.Settings
	logger   *slog.Logger
}

// New constructs a Reaper.
func New(st Store, settings media.Settings, logger *slog.Logger) *Reaper {
	return &Reaper{store: st, settings: settings, logger: logging.NewComponentLogger(logger, "reaper")}
}

// ReapIfOrphaned deletes item when nothing other than deletedContentID uses
// it. The returned error is reserved for failures after deletion started;
// inconclusive checks are reported as a retained verdict with Err set.
func (r *Reaper) ReapIfOrphaned(ctx context.Context, item *media.MediaItem, deletedContentID int64) (Verdict, error) {
	verdict := Verdict{Decision: DecisionRetained}
	if item == nil {
		verdict.Reason = "no media item"
		return verdict, nil
	}
	verdict.MediaID = item.ID
	logger := logging.WithContext(services.WithMediaID(ctx, item.ID), r.logger)

	reason, err := r.usage(ctx, item, deletedContentID)
	if err != nil {
		verdict.Reason = "usage check failed"
		verdict.Err = services.Wrap(services.ErrOrphanCheckInconclusive, "reap", "usage",
			fmt.Sprintf("media %d", item.ID), err)
		logging.WarnWithContext(logger, "orphan check inconclusive; media retained", "orphan_check_inconclusive",
			logging.Error(verdict.Err),
			logging.String(logging.FieldImpact, "files kept until a later check succeeds"),
		)
		return verdict, nil
	}
	if reason != "" {
		verdict.Reason = reason
		logger.Info("media retained", logging.Args(logging.DecisionAttrs("orphan", string(DecisionRetained), reason)...)...)
		return verdict, nil
	}

	spec := item.Spec(r.settings)
	files := item.Files()
	var removeErrs []error
	// Variants and the original go before the main file.
	for i := len(files) - 1; i >= 0; i-- {
		rel := files[i]
		target := filepath.Join(r.settings.StorageRoot, filepath.FromSlash(rel))
		inside, err := fileutil.WithinRoot(r.settings.StorageRoot, target)
		if err != nil || !inside {
			removeErrs = append(removeErrs, fmt.Errorf("%s is outside the storage root", rel))
			continue
		}
		removed, err := fileutil.RemoveIfExists(target)
		if err != nil {
			removeErrs = append(removeErrs, err)
			continue
		}
		if removed {
			verdict.Removed = append(verdict.Removed, rel)
		}
	}
	if len(removeErrs) > 0 {
		verdict.Reason = "file removal failed"
		err := services.Wrap(services.ErrTransient, "reap", "remove files",
			fmt.Sprintf("media %d", item.ID), errors.Join(removeErrs...))
		logging.ErrorWithContext(logger, "orphan file removal failed", "orphan_remove_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "metadata kept so the item can be reaped again"),
		)
		return verdict, err
	}
	if err := r.store.DeleteMedia(ctx, item.ID); err != nil && !errors.Is(err, store.ErrNoRows) {
		verdict.Reason = "metadata removal failed"
		return verdict, services.Wrap(services.ErrTransient, "reap", "delete metadata",
			fmt.Sprintf("media %d", item.ID), err)
	}
	verdict.Decision = DecisionDeleted
	verdict.Reason = "unreferenced"
	verdict.Pruned = PruneEmptyDirs(r.settings.StorageRoot, spec.DirPath())
	logger.Info("orphaned media deleted",
		logging.Args(append(logging.DecisionAttrs("orphan", string(DecisionDeleted), verdict.Reason),
			logging.Int("files_removed", len(verdict.Removed)),
			logging.Int("dirs_pruned", len(verdict.Pruned)),
		)...)...,
	)
	return verdict, nil
}

// usage returns a non-empty reason when item is still in use.
func (r *Reaper) usage(ctx context.Context, item *media.MediaItem, deletedContentID int64) (string, error) {
	for _, rel := range item.Files() {
		for _, url := range media.SpecForRelPath(r.settings, rel).SearchURLs() {
			count, err := r.store.CountBodies(ctx, url, store.SearchOptions{ExcludeID: deletedContentID})
			if err != nil {
				return "", err
			}
			if count > 0 {
				return fmt.Sprintf("%s embedded in %d other document(s)", url, count), nil
			}
		}
	}
	featured, err := r.store.CountFeaturedUsers(ctx, item.ID, deletedContentID)
	if err != nil {
		return "", err
	}
	if featured > 0 {
		return fmt.Sprintf("featured media of %d other document(s)", featured), nil
	}
	terms, err := r.store.CountTermUsers(ctx, item.ID)
	if err != nil {
		return "", err
	}
	if terms > 0 {
		return fmt.Sprintf("attached to %d term(s)", terms), nil
	}
	return "", nil
}

// PruneEmptyDirs removes dir and then each parent while they are empty and
// strictly inside root. It returns the directories removed.
func PruneEmptyDirs(root, dir string) []string {
	var pruned []string
	for {
		inside, err := fileutil.WithinRoot(root, dir)
		if err != nil || !inside {
			return pruned
		}
		empty, err := fileutil.IsDirEmptyRecursive(dir)
		if err != nil || !empty {
			return pruned
		}
		// os.Remove refuses non-empty directories, so a file created since
		// the check survives.
		if err := os.Remove(dir); err != nil {
			return pruned
		}
		pruned = append(pruned, dir)
		dir = filepath.Dir(dir)
	}
}
