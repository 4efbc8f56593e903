package relocator

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"

	"mediafold/internal/fileutil"
	"mediafold/internal/logging"
	"mediafold/internal/media"
	"mediafold/internal/services"
)

// maxAttempts bounds the collision suffix search.
const maxAttempts = 10000

// Outcome classifies a relocation.
type Outcome string

const (
	OutcomeMoved        Outcome = "moved"
	OutcomeNoOpSamePath Outcome = "noop_same_path"
	OutcomeFailed       Outcome = "failed"
)

// Result is the structured outcome of Relocate.
type Result struct {
	Outcome Outcome
	Old     media.PathSpec
	// New is where the main file landed; its filename reflects any collision suffix.
	New media.PathSpec
	// Variants maps every moved variant/original old filename to its new filename.
	Variants map[string]string
	// MovedSizes maps size names to their new filenames, for moved variants only.
	MovedSizes map[string]string
	// OriginalMoved is the new original filename, "" when none moved.
	OriginalMoved   string
	VariantFailures int
	VariantErrors   []error
	Err             error
}

// Move converts a successful result into the mapping the reference rewriter consumes.
func (r Result) Move(mediaID int64) media.Move {
	return media.Move{MediaID: mediaID, Old: r.Old, New: r.New, Variants: r.Variants}
}

// Relocator moves media files.
type Relocator struct {
	logger *slog.Logger
	move   func(src, dst string) error
}

// New returns a Relocator that logs through logger (nil means silent).
func New(logger *slog.Logger) *Relocator {
	return &Relocator{
		logger: logging.NewComponentLogger(logger, "relocator"),
		move:   fileutil.MoveNoReplace,
	}
}

// Relocate moves item from oldSpec to newSpec.
func (r *Relocator) Relocate(ctx context.Context, item *media.MediaItem, oldSpec, newSpec media.PathSpec) Result {
	result := Result{Old: oldSpec, New: newSpec}
	if oldSpec.FilePath() == newSpec.FilePath() {
		result.Outcome = OutcomeNoOpSamePath
		return result
	}
	logger := logging.WithContext(ctx, r.logger)

	fail := func(operation string, err error) Result {
		result.Outcome = OutcomeFailed
		result.New = oldSpec
		result.Err = services.Wrap(services.ErrRelocation, "relocate", operation,
			fmt.Sprintf("%s -> %s", oldSpec.RelPath(), newSpec.RelPath()), err)
		logging.WarnWithContext(logger, "media relocation failed", "relocation_failed",
			logging.String("from", oldSpec.RelPath()),
			logging.String("to", newSpec.RelPath()),
			logging.Error(result.Err),
			logging.String(logging.FieldErrorHint, "check the file exists and the storage root is writable"),
			logging.String(logging.FieldImpact, "file, metadata, and references left unchanged"),
		)
		return result
	}

	if err := ctx.Err(); err != nil {
		return fail("context", err)
	}
	info, err := os.Stat(oldSpec.FilePath())
	if err != nil {
		return fail("stat source", err)
	}
	if info.IsDir() {
		return fail("stat source", fmt.Errorf("%s is a directory", oldSpec.FilePath()))
	}
	if err := os.MkdirAll(newSpec.DirPath(), 0o755); err != nil {
		return fail("create destination", err)
	}

	mainName, err := r.moveUnique(oldSpec.FilePath(), newSpec.DirPath(), newSpec.Filename)
	if err != nil {
		return fail("move main file", err)
	}
	result.Outcome = OutcomeMoved
	result.New = newSpec.WithFilename(mainName)
	result.Variants = make(map[string]string)
	result.MovedSizes = make(map[string]string)

	oldStem := stem(oldSpec.Filename)
	newStem := stem(mainName)
	derive := func(name string) string {
		if oldStem == newStem || !strings.HasPrefix(name, oldStem) {
			return name
		}
		rest := strings.TrimPrefix(name, oldStem)
		if rest == "" || strings.ContainsRune("-_.", rune(rest[0])) {
			return newStem + rest
		}
		return name
	}

	moveSibling := func(kind, name string) (string, bool) {
		if newName, done := result.Variants[name]; done {
			return newName, true
		}
		src := filepath.Join(oldSpec.DirPath(), name)
		if _, err := os.Stat(src); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				logger.Info("variant missing on disk; skipped",
					logging.String("kind", kind),
					logging.String("file", name),
				)
				return "", false
			}
		}
		newName, err := r.moveUnique(src, result.New.DirPath(), derive(name))
		if err != nil {
			wrapped := services.Wrap(services.ErrVariantRelocation, "relocate", kind, name, err)
			result.VariantFailures++
			result.VariantErrors = append(result.VariantErrors, wrapped)
			logging.WarnWithContext(logger, "variant relocation failed", "variant_relocation_failed",
				logging.String("kind", kind),
				logging.String("file", name),
				logging.Error(err),
				logging.String(logging.FieldImpact, "variant metadata keeps its old name"),
			)
			return "", false
		}
		result.Variants[name] = newName
		return newName, true
	}

	for _, size := range item.SizeNames() {
		name := item.Sizes[size]
		if name == "" || name == oldSpec.Filename {
			continue
		}
		if newName, ok := moveSibling("size:"+size, name); ok {
			result.MovedSizes[size] = newName
		}
	}
	if name := item.OriginalImage; name != "" && name != oldSpec.Filename {
		if newName, ok := moveSibling("original", name); ok {
			result.OriginalMoved = newName
		}
	}

	logger.Info("media relocated",
		logging.String("from", oldSpec.RelPath()),
		logging.String("to", result.New.RelPath()),
		logging.Int("variants_moved", len(result.Variants)),
		logging.Int("variant_failures", result.VariantFailures),
	)
	return result
}

// moveUnique moves src into dir under name, or the first free "-N" variant
// of it, and returns the name used.
func (r *Relocator) moveUnique(src, dir, name string) (string, error) {
	for attempt := 0; attempt < maxAttempts; attempt++ {
		candidate := UniqueName(name, attempt)
		target := filepath.Join(dir, candidate)
		if target == src {
			return candidate, nil
		}
		err := r.move(src, target)
		if err == nil {
			return candidate, nil
		}
		if !errors.Is(err, fs.ErrExist) {
			return "", err
		}
	}
	return "", fmt.Errorf("no free name for %s in %s after %d attempts", name, dir, maxAttempts)
}

// UniqueName returns name for attempt 0 and "stem-N.ext" for attempt N.
func UniqueName(name string, attempt int) string {
	if attempt <= 0 {
		return name
	}
	ext := path.Ext(name)
	return strings.TrimSuffix(name, ext) + "-" + strconv.Itoa(attempt) + ext
}

func stem(name string) string {
	return strings.TrimSuffix(name, path.Ext(name))
}
