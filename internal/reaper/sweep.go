package reaper

import (
	"context"
	"fmt"
	"io/fs"
	"path/filepath"
	"time"

	"mediafold/internal/fileutil"
	"mediafold/internal/logging"
)

// SweepFile is a file under the storage root that no media record claims.
type SweepFile struct {
	RelPath string
	Size    int64
	ModTime time.Time
	// Young files are newer than the safety age and never deleted.
	Young   bool
	Deleted bool
}

// SweepReport summarises one sweep.
type SweepReport struct {
	RunAt          time.Time
	FilesScanned   int
	Unknown        []SweepFile
	FilesDeleted   int
	BytesReclaimed int64
	Pruned         []string
	Duration       time.Duration
	Errors         []string
}

// Sweep lists files under the storage root that no media record claims.
// With apply set, unknown files older than minAge are deleted and the
// directories they leave empty are pruned.
func (r *Reaper) Sweep(ctx context.Context, minAge time.Duration, apply bool) (SweepReport, error) {
	start := time.Now()
	report := SweepReport{RunAt: start}
	logger := logging.WithContext(ctx, r.logger)

	known, err := r.store.AllMediaFiles(ctx)
	if err != nil {
		return report, fmt.Errorf("list media files: %w", err)
	}

	root := r.settings.StorageRoot
	walkErr := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if p == root {
				return err
			}
			report.Errors = append(report.Errors, "walk error: "+p+": "+err.Error())
			return nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if d.IsDir() {
			return nil
		}
		report.FilesScanned++
		rel, err := filepath.Rel(root, p)
		if err != nil {
			return nil
		}
		rel = filepath.ToSlash(rel)
		if _, ok := known[rel]; ok {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			report.Errors = append(report.Errors, "stat error: "+rel+": "+err.Error())
			return nil
		}
		report.Unknown = append(report.Unknown, SweepFile{
			RelPath: rel,
			Size:    info.Size(),
			ModTime: info.ModTime(),
			Young:   start.Sub(info.ModTime()) < minAge,
		})
		return nil
	})
	if walkErr != nil {
		return report, fmt.Errorf("walk storage root: %w", walkErr)
	}

	if apply {
		for i := range report.Unknown {
			file := &report.Unknown[i]
			if file.Young {
				continue
			}
			target := filepath.Join(root, filepath.FromSlash(file.RelPath))
			if _, err := fileutil.RemoveIfExists(target); err != nil {
				report.Errors = append(report.Errors, "delete error: "+file.RelPath+": "+err.Error())
				continue
			}
			file.Deleted = true
			report.FilesDeleted++
			report.BytesReclaimed += file.Size
			report.Pruned = append(report.Pruned, PruneEmptyDirs(root, filepath.Dir(target))...)
		}
	}

	report.Duration = time.Since(start)
	logger.Info("storage sweep completed",
		logging.Int("scanned", report.FilesScanned),
		logging.Int("unknown", len(report.Unknown)),
		logging.Int("deleted", report.FilesDeleted),
		logging.Int64("bytes_reclaimed", report.BytesReclaimed),
		logging.Duration("duration", report.Duration),
		logging.Int("errors", len(report.Errors)),
	)
	return report, nil
}
