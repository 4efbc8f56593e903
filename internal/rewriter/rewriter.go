package rewriter

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"path"
	"path/filepath"
	"sort"

	"mediafold/internal/fileutil"
	"mediafold/internal/logging"
	"mediafold/internal/media"
	"mediafold/internal/scanner"
	"mediafold/internal/services"
	"mediafold/internal/store"
)

// Store is the subset of the catalog the rewriter reads and writes.
type Store interface {
	SaveBody(ctx context.Context, id int64, body string) error
	SearchBodies(ctx context.Context, substr string, opts store.SearchOptions) ([]*media.ContentItem, error)
	FindMediaByFile(ctx context.Context, rel string) ([]*media.MediaItem, error)
}

// Unresolved is a reference left untouched because no owner could be found.
type Unresolved struct {
	Value string
	Err   error
}

// Report summarises one body rewrite.
type Report struct {
	Changed bool
	// Rewritten counts references pointed at a moved file.
	Rewritten int
	// Resolved counts missing-file references repaired by filename search.
	Resolved   int
	Unresolved []Unresolved
}

// Rewriter rewrites body references.
type Rewriter struct {
	store    Store
	settings media.Settings
	scanner  *scanner.Scanner
	logger   *slog.Logger
}

// New constructs a Rewriter.
func New(st Store, settings media.Settings, logger *slog.Logger) *Rewriter {
	return &Rewriter{
		store:    st,
		settings: settings,
		scanner:  scanner.NewFromSettings(settings),
		logger:   logging.NewComponentLogger(logger, "rewriter"),
	}
}

// RewriteOwnBody rewrites the triggering content item's body. content.Body
// is updated in place when the body changes.
func (r *Rewriter) RewriteOwnBody(ctx context.Context, content *media.ContentItem, moves ...media.Move) (Report, error) {
	var report Report
	if content == nil {
		return report, nil
	}
	logger := logging.WithContext(ctx, r.logger)
	mapping := mergeMappings(moves)
	doc := scanner.Parse(content.Body)
	index := &fileIndex{root: r.settings.StorageRoot}

	for _, ref := range doc.Refs() {
		classified := r.scanner.Classify(ref.ElementRef)
		if !classified.Local || classified.StoragePath == "" {
			continue
		}
		if target, ok := mapping[classified.StoragePath]; ok {
			ref.Set(target.URL(r.settings.URLStyle))
			report.Rewritten++
			continue
		}
		exists, err := fileutil.Exists(filepath.Join(r.settings.StorageRoot, filepath.FromSlash(classified.StoragePath)))
		if err != nil || exists {
			continue
		}
		target, err := r.resolveMissing(ctx, index, classified.StoragePath)
		if err != nil {
			report.Unresolved = append(report.Unresolved, Unresolved{Value: classified.Value, Err: err})
			logging.WarnWithContext(logger, "reference left unresolved", "reference_unresolved",
				logging.String("value", classified.Value),
				logging.Error(err),
				logging.String(logging.FieldImpact, "reference kept as written"),
			)
			continue
		}
		ref.Set(target.URL(r.settings.URLStyle))
		report.Resolved++
		logger.Info("missing reference resolved by filename",
			logging.String("value", classified.Value),
			logging.String("resolved", target.RelPath()),
		)
	}

	if !doc.Changed() {
		return report, nil
	}
	body := doc.Render()
	if err := r.store.SaveBody(ctx, content.ID, body); err != nil {
		return report, services.Wrap(services.ErrTransient, "rewrite", "save own body",
			fmt.Sprintf("content %d", content.ID), err)
	}
	content.Body = body
	report.Changed = true
	return report, nil
}

// RewriteOtherReferences rewrites every document except excludeID that
// embeds a file the moves invalidated. It returns the number of documents
// written. A failure on one document does not stop the others; all failures
// are joined into the returned error.
func (r *Rewriter) RewriteOtherReferences(ctx context.Context, excludeID int64, moves ...media.Move) (int, error) {
	mapping := mergeMappings(moves)
	if len(mapping) == 0 {
		return 0, nil
	}
	logger := logging.WithContext(ctx, r.logger)

	candidates := make(map[int64]*media.ContentItem)
	var errs []error
	for _, oldRel := range sortedKeys(mapping) {
		for _, oldURL := range media.SpecForRelPath(r.settings, oldRel).SearchURLs() {
			matches, err := r.store.SearchBodies(ctx, oldURL, store.SearchOptions{ExcludeID: excludeID})
			if err != nil {
				errs = append(errs, services.Wrap(services.ErrTransient, "rewrite", "search corpus", oldURL, err))
				continue
			}
			for _, item := range matches {
				candidates[item.ID] = item
			}
		}
	}

	ids := make([]int64, 0, len(candidates))
	for id := range candidates {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	written := 0
	for _, id := range ids {
		item := candidates[id]
		doc := scanner.Parse(item.Body)
		for _, ref := range doc.Refs() {
			classified := r.scanner.Classify(ref.ElementRef)
			if !classified.Local {
				continue
			}
			if target, ok := mapping[classified.StoragePath]; ok {
				ref.Set(target.URL(r.settings.URLStyle))
			}
		}
		if !doc.Changed() {
			continue
		}
		if err := r.store.SaveBody(ctx, item.ID, doc.Render()); err != nil {
			errs = append(errs, services.Wrap(services.ErrTransient, "rewrite", "save body",
				fmt.Sprintf("content %d", item.ID), err))
			continue
		}
		written++
		logger.Info("document references rewritten", logging.Int64(logging.FieldContentID, item.ID))
	}
	return written, errors.Join(errs...)
}

// resolveMissing finds rel's filename elsewhere under the storage root and
// maps it to the media record owning that file.
func (r *Rewriter) resolveMissing(ctx context.Context, index *fileIndex, rel string) (media.PathSpec, error) {
	name := path.Base(rel)
	fail := func(message string, err error) (media.PathSpec, error) {
		return media.PathSpec{}, services.Wrap(services.ErrReferenceResolution, "rewrite", "resolve", message, err)
	}
	hits, err := index.lookup(name)
	if err != nil {
		return fail("scan storage root", err)
	}
	var (
		found string
		owner int64
	)
	for _, hit := range hits {
		owners, err := r.store.FindMediaByFile(ctx, hit)
		if err != nil {
			return fail("look up "+hit, err)
		}
		for _, item := range owners {
			if owner != 0 && (owner != item.ID || found != hit) {
				return fail(fmt.Sprintf("%s matches more than one media file", name), nil)
			}
			found, owner = hit, item.ID
		}
	}
	if owner == 0 {
		return fail(fmt.Sprintf("%s not found under storage root", rel), nil)
	}
	return media.SpecForRelPath(r.settings, found), nil
}

// fileIndex lists storage files by base name, built on first use.
type fileIndex struct {
	root   string
	byName map[string][]string
	err    error
	built  bool
}

func (f *fileIndex) lookup(name string) ([]string, error) {
	if !f.built {
		f.built = true
		f.byName = make(map[string][]string)
		f.err = filepath.WalkDir(f.root, func(p string, d fs.DirEntry, err error) error {
			if err != nil {
				if p == f.root {
					return err
				}
				return nil
			}
			if d.IsDir() {
				return nil
			}
			rel, relErr := filepath.Rel(f.root, p)
			if relErr != nil {
				return nil
			}
			rel = filepath.ToSlash(rel)
			f.byName[d.Name()] = append(f.byName[d.Name()], rel)
			return nil
		})
	}
	return f.byName[name], f.err
}

func mergeMappings(moves []media.Move) map[string]media.PathSpec {
	out := make(map[string]media.PathSpec)
	for _, move := range moves {
		for oldRel, spec := range move.Mapping() {
			if oldRel == spec.RelPath() {
				continue
			}
			out[oldRel] = spec
		}
	}
	return out
}

func sortedKeys(m map[string]media.PathSpec) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
