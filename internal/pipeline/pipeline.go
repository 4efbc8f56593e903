package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"mediafold/internal/config"
	"mediafold/internal/localizer"
	"mediafold/internal/lockset"
	"mediafold/internal/logging"
	"mediafold/internal/media"
	"mediafold/internal/metasync"
	"mediafold/internal/metrics"
	"mediafold/internal/planner"
	"mediafold/internal/reaper"
	"mediafold/internal/relocator"
	"mediafold/internal/rewriter"
	"mediafold/internal/services"
	"mediafold/internal/store"
)

// Options wires optional collaborators.
type Options struct {
	// Localizer copies remote images before planning; nil disables it.
	Localizer *localizer.Localizer
	// Locks guards each media item; nil uses an in-process guard.
	Locks   *lockset.Set
	Metrics *metrics.Recorder
}

// Pipeline orchestrates the save and delete events.
type Pipeline struct {
	store     *store.Store
	settings  media.Settings
	relocator *relocator.Relocator
	metasync  *metasync.Synchronizer
	rewriter  *rewriter.Rewriter
	reaper    *reaper.Reaper
	localizer *localizer.Localizer
	locks     *lockset.Set
	metrics   *metrics.Recorder
	logger    *slog.Logger
}

// New constructs a Pipeline over st.
func New(st *store.Store, settings media.Settings, logger *slog.Logger, opts Options) *Pipeline {
	locks := opts.Locks
	if locks == nil {
		locks = lockset.New("", 0)
	}
	return &Pipeline{
		store:     st,
		settings:  settings,
		relocator: relocator.New(logger),
		metasync:  metasync.New(st, logger),
		rewriter:  rewriter.New(st, settings, logger),
		reaper:    reaper.New(st, settings, logger),
		localizer: opts.Localizer,
		locks:     locks,
		metrics:   opts.Metrics,
		logger:    logging.NewComponentLogger(logger, "pipeline"),
	}
}

// NewFromConfig builds a Pipeline with every collaborator configured from cfg.
func NewFromConfig(cfg *config.Config, st *store.Store, logger *slog.Logger, rec *metrics.Recorder) *Pipeline {
	settings := cfg.Settings()
	opts := Options{
		Locks:   lockset.New(cfg.LockDir(), time.Duration(cfg.Locking.RetryMilliseconds)*time.Millisecond),
		Metrics: rec,
	}
	if cfg.Localize.Enabled {
		opts.Localizer = localizer.New(st, settings, localizer.OptionsFromConfig(cfg), logger)
	}
	return New(st, settings, logger, opts)
}

// Settings returns the settings the pipeline plans with.
func (p *Pipeline) Settings() media.Settings {
	return p.settings
}

func (p *Pipeline) begin(ctx context.Context, stage string) (context.Context, string) {
	requestID, ok := services.RequestIDFromContext(ctx)
	if !ok || requestID == "" {
		requestID = uuid.NewString()
		ctx = services.WithRequestID(ctx, requestID)
	}
	return services.WithStage(ctx, stage), requestID
}

// SyncContent runs the save event for one content item.
func (p *Pipeline) SyncContent(ctx context.Context, contentID int64) (Summary, error) {
	ctx, requestID := p.begin(ctx, "sync")
	ctx = services.WithContentID(ctx, contentID)
	summary := Summary{RequestID: requestID}
	logger := logging.WithContext(ctx, p.logger)
	started := time.Now()
	defer func() { p.metrics.SyncFinished(time.Since(started)) }()

	content, err := p.store.GetContent(ctx, contentID)
	if err != nil {
		return summary, services.Wrap(services.ErrTransient, "sync", "load content", fmt.Sprintf("content %d", contentID), err)
	}
	if content == nil {
		return summary, services.Wrap(services.ErrNotFound, "sync", "load content", fmt.Sprintf("content %d", contentID), nil)
	}
	if len(content.BrokenTerms) > 0 {
		logging.WarnWithContext(logger, "term chain unresolved; planning without it", "term_chain_broken",
			logging.String("term_ids", fmt.Sprint(content.BrokenTerms)),
			logging.String(logging.FieldErrorHint, "fix the parent of the listed terms"),
			logging.String(logging.FieldImpact, "media filed by the remaining terms or misc"),
		)
	}
	if content.Trashed() {
		logger.Info("trashed content not synced", logging.Args(logging.DecisionAttrs("sync", "skipped", "content is in trash")...)...)
		return summary, nil
	}

	if p.localizer != nil {
		report, err := p.localizer.Localize(ctx, content)
		for _, o := range report.Outcomes {
			p.metrics.Localized(string(o.Result))
			switch o.Result {
			case localizer.ResultLocalized:
				summary.Localized++
			case localizer.ResultFailed:
				summary.LocalizeFailed++
			}
		}
		if err != nil {
			summary.Errors = append(summary.Errors, err)
		}
	}

	items, err := p.store.ListMediaByParent(ctx, content.ID)
	if err != nil {
		return summary, services.Wrap(services.ErrTransient, "sync", "list media", fmt.Sprintf("content %d", contentID), err)
	}

	var moves []media.Move
	for _, item := range items {
		outcome, move := p.syncItem(ctx, item.ID, content, itemPlan{
			plan: func(m *media.MediaItem) media.PathSpec {
				return planner.Plan(content, m, p.settings)
			},
			canonical: func(m *media.MediaItem) bool {
				return planner.IsCanonicalPath(m, content, p.settings)
			},
		})
		outcome.ContentID = content.ID
		summary.record(outcome)
		if outcome.Err != nil {
			summary.Errors = append(summary.Errors, outcome.Err)
		}
		if move != nil {
			moves = append(moves, *move)
		}
	}

	report, err := p.rewriter.RewriteOwnBody(ctx, content, moves...)
	if err != nil {
		summary.Errors = append(summary.Errors, err)
	}
	if report.Changed {
		summary.DocumentsRewritten++
	}
	summary.Unresolved += len(report.Unresolved)

	if len(moves) > 0 {
		written, err := p.rewriter.RewriteOtherReferences(ctx, content.ID, moves...)
		summary.DocumentsRewritten += written
		if err != nil {
			summary.Errors = append(summary.Errors, err)
		}
	}

	p.metrics.DocumentsRewritten(summary.DocumentsRewritten)
	p.metrics.Unresolved(summary.Unresolved)
	logger.Info("content synced",
		logging.Int("moved", summary.Moved),
		logging.Int("skipped", summary.Skipped),
		logging.Int("failed", summary.Failed),
		logging.Int("documents_rewritten", summary.DocumentsRewritten),
		logging.Int("unresolved", summary.Unresolved),
	)
	return summary, nil
}

// SyncAll syncs every non-trashed content item and then every term
// attachment. One failing item never stops the rest.
func (p *Pipeline) SyncAll(ctx context.Context) (Summary, error) {
	ctx, requestID := p.begin(ctx, "sync")
	summary := Summary{RequestID: requestID}

	contents, err := p.store.ListContent(ctx, store.ListOptions{})
	if err != nil {
		return summary, services.Wrap(services.ErrTransient, "sync", "list content", "", err)
	}
	for _, content := range contents {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		one, err := p.SyncContent(ctx, content.ID)
		summary.Merge(one)
		if err != nil {
			summary.Errors = append(summary.Errors, err)
		}
	}

	attachments, err := p.store.ListTermAttachments(ctx)
	if err != nil {
		return summary, services.Wrap(services.ErrTransient, "sync", "list term attachments", "", err)
	}
	seen := make(map[int64]struct{})
	for _, a := range attachments {
		if _, ok := seen[a.Term.ID]; ok {
			continue
		}
		seen[a.Term.ID] = struct{}{}
		one, err := p.SyncTerm(ctx, a.Term.ID)
		summary.Merge(one)
		if err != nil {
			summary.Errors = append(summary.Errors, err)
		}
	}
	return summary, nil
}

// SyncTerm places the media anchored to a term. Items that belong to a
// content item follow their owner instead and are skipped here.
func (p *Pipeline) SyncTerm(ctx context.Context, termID int64) (Summary, error) {
	ctx, requestID := p.begin(ctx, "sync_term")
	summary := Summary{RequestID: requestID}
	logger := logging.WithContext(ctx, p.logger)

	attachments, err := p.store.TermAttachments(ctx, termID)
	if err != nil {
		return summary, services.Wrap(services.ErrTransient, "sync_term", "load attachments", fmt.Sprintf("term %d", termID), err)
	}
	var moves []media.Move
	for _, attachment := range attachments {
		outcome, move := p.syncItem(ctx, attachment.MediaID, nil, itemPlan{
			plan: func(m *media.MediaItem) media.PathSpec {
				return planner.PlanTermAttachment(attachment.Term, attachment.MetaKey, m, p.settings)
			},
			canonical: func(m *media.MediaItem) bool {
				return planner.IsCanonicalTermPath(m, attachment, p.settings)
			},
			skip: func(m *media.MediaItem) string {
				if m.Attached() {
					return fmt.Sprintf("owned by content %d", m.ParentID)
				}
				return ""
			},
		})
		outcome.TermID = termID
		summary.record(outcome)
		if outcome.Err != nil {
			summary.Errors = append(summary.Errors, outcome.Err)
		}
		if move != nil {
			moves = append(moves, *move)
		}
	}
	if len(moves) > 0 {
		written, err := p.rewriter.RewriteOtherReferences(ctx, 0, moves...)
		summary.DocumentsRewritten += written
		p.metrics.DocumentsRewritten(written)
		if err != nil {
			summary.Errors = append(summary.Errors, err)
		}
	}
	logger.Info("term attachments synced",
		logging.Int64("term_id", termID),
		logging.Int("moved", summary.Moved),
		logging.Int("skipped", summary.Skipped),
		logging.Int("failed", summary.Failed),
	)
	return summary, nil
}

type itemPlan struct {
	plan      func(*media.MediaItem) media.PathSpec
	canonical func(*media.MediaItem) bool
	// skip returns a reason to leave the item alone, or "".
	skip func(*media.MediaItem) string
}

// syncItem relocates one media item under its lock. The item is re-read
// after the lock is taken so a concurrent winner's move is observed.
func (p *Pipeline) syncItem(ctx context.Context, mediaID int64, owner *media.ContentItem, how itemPlan) (ItemOutcome, *media.Move) {
	ctx = services.WithMediaID(ctx, mediaID)
	logger := logging.WithContext(ctx, p.logger)
	outcome := ItemOutcome{MediaID: mediaID}

	release, err := p.locks.Acquire(ctx, lockset.MediaKey(mediaID))
	if err != nil {
		outcome.Outcome = OutcomeFailed
		outcome.Err = services.Wrap(services.ErrTimeout, "sync", "lock", fmt.Sprintf("media %d", mediaID), err)
		p.metrics.Relocation(string(OutcomeFailed))
		return outcome, nil
	}
	defer release()

	item, err := p.store.GetMedia(ctx, mediaID)
	if err != nil {
		outcome.Outcome = OutcomeFailed
		outcome.Err = services.Wrap(services.ErrTransient, "sync", "load media", fmt.Sprintf("media %d", mediaID), err)
		p.metrics.Relocation(string(OutcomeFailed))
		return outcome, nil
	}
	if item == nil {
		outcome.Outcome = OutcomeSkipped
		outcome.Reason = "media deleted"
		return outcome, nil
	}
	outcome.From = item.RelPath

	if how.skip != nil {
		if reason := how.skip(item); reason != "" {
			outcome.Outcome = OutcomeSkipped
			outcome.Reason = reason
			return outcome, nil
		}
	}
	if how.canonical(item) {
		outcome.Outcome = OutcomeSkipped
		outcome.Reason = "already canonical"
		outcome.To = item.RelPath
		logger.Debug("media already canonical", logging.Args(logging.DecisionAttrs("fast_path", "skip", "already canonical")...)...)
		p.metrics.Relocation(string(relocator.OutcomeNoOpSamePath))
		return outcome, nil
	}

	oldSpec := item.Spec(p.settings)
	result := p.relocator.Relocate(ctx, item, oldSpec, how.plan(item))
	p.metrics.Relocation(string(result.Outcome))
	p.metrics.VariantFailures(result.VariantFailures)
	outcome.VariantFailures = result.VariantFailures
	outcome.To = result.New.RelPath()

	switch result.Outcome {
	case relocator.OutcomeNoOpSamePath:
		outcome.Outcome = OutcomeSkipped
		outcome.Reason = "same path"
		return outcome, nil
	case relocator.OutcomeFailed:
		outcome.Outcome = OutcomeFailed
		outcome.Err = result.Err
		return outcome, nil
	}

	move := result.Move(item.ID)
	outcome.Outcome = OutcomeMoved
	if err := p.metasync.Apply(ctx, item, result, owner); err != nil {
		outcome.Err = err
		// The file moved but its path was not recorded; references still
		// follow the file so they resolve on disk.
		if errors.Is(err, services.ErrRelocation) {
			outcome.Outcome = OutcomeFailed
			outcome.Reason = "metadata diverged from disk"
		}
	}
	if len(result.VariantErrors) > 0 && outcome.Err == nil {
		outcome.Err = errors.Join(result.VariantErrors...)
	}
	return outcome, &move
}

// TrashContent soft-deletes a content item. Media are untouched.
func (p *Pipeline) TrashContent(ctx context.Context, contentID int64) error {
	if err := p.store.SetStatus(ctx, contentID, media.StatusTrash); err != nil {
		if errors.Is(err, store.ErrNoRows) {
			return services.Wrap(services.ErrNotFound, "trash", "set status", fmt.Sprintf("content %d", contentID), err)
		}
		return services.Wrap(services.ErrTransient, "trash", "set status", fmt.Sprintf("content %d", contentID), err)
	}
	return nil
}

// RestoreContent moves a trashed content item back to published.
func (p *Pipeline) RestoreContent(ctx context.Context, contentID int64) error {
	if err := p.store.SetStatus(ctx, contentID, media.StatusPublish); err != nil {
		return services.Wrap(services.ErrTransient, "restore", "set status", fmt.Sprintf("content %d", contentID), err)
	}
	return nil
}

// DeleteContent permanently deletes a trashed content item. Its media are
// reaped first when orphan deletion is enabled; survivors become unattached.
func (p *Pipeline) DeleteContent(ctx context.Context, contentID int64) (ReapSummary, error) {
	ctx, requestID := p.begin(ctx, "delete")
	ctx = services.WithContentID(ctx, contentID)
	summary := ReapSummary{RequestID: requestID, ContentID: contentID}
	logger := logging.WithContext(ctx, p.logger)

	content, err := p.store.GetContent(ctx, contentID)
	if err != nil {
		return summary, services.Wrap(services.ErrTransient, "delete", "load content", fmt.Sprintf("content %d", contentID), err)
	}
	if content == nil {
		return summary, services.Wrap(services.ErrNotFound, "delete", "load content", fmt.Sprintf("content %d", contentID), nil)
	}
	if !content.Trashed() {
		return summary, services.Wrap(services.ErrValidation, "delete", "check status",
			fmt.Sprintf("content %d must be trashed before permanent deletion", contentID), nil)
	}

	if p.settings.DeleteOrphansOnContentDelete {
		items, err := p.store.ListMediaByParent(ctx, contentID)
		if err != nil {
			return summary, services.Wrap(services.ErrTransient, "delete", "list media", fmt.Sprintf("content %d", contentID), err)
		}
		for _, listed := range items {
			verdict, err := p.reapItem(ctx, listed.ID, contentID)
			p.metrics.Orphan(string(verdict.Decision))
			summary.record(verdict, err)
			if verdict.Err != nil {
				summary.Errors = append(summary.Errors, verdict.Err)
			}
		}
	}

	if err := p.store.DeleteContent(ctx, contentID); err != nil {
		return summary, services.Wrap(services.ErrTransient, "delete", "delete content", fmt.Sprintf("content %d", contentID), err)
	}
	logger.Info("content deleted",
		logging.Int("media_deleted", summary.Deleted),
		logging.Int("media_retained", summary.Retained),
	)
	return summary, nil
}

func (p *Pipeline) reapItem(ctx context.Context, mediaID, contentID int64) (reaper.Verdict, error) {
	ctx = services.WithMediaID(ctx, mediaID)
	release, err := p.locks.Acquire(ctx, lockset.MediaKey(mediaID))
	if err != nil {
		return reaper.Verdict{MediaID: mediaID, Decision: reaper.DecisionRetained, Reason: "lock unavailable"},
			services.Wrap(services.ErrTimeout, "delete", "lock", fmt.Sprintf("media %d", mediaID), err)
	}
	defer release()
	item, err := p.store.GetMedia(ctx, mediaID)
	if err != nil {
		verdict := reaper.Verdict{MediaID: mediaID, Decision: reaper.DecisionRetained, Reason: "media unreadable"}
		verdict.Err = services.Wrap(services.ErrOrphanCheckInconclusive, "delete", "load media", fmt.Sprintf("media %d", mediaID), err)
		return verdict, nil
	}
	if item == nil {
		return reaper.Verdict{MediaID: mediaID, Decision: reaper.DecisionRetained, Reason: "media already gone"}, nil
	}
	return p.reaper.ReapIfOrphaned(ctx, item, contentID)
}

// Sweep reports, and with apply deletes, storage files no media record claims.
func (p *Pipeline) Sweep(ctx context.Context, minAge time.Duration, apply bool) (reaper.SweepReport, error) {
	ctx, _ = p.begin(ctx, "sweep")
	return p.reaper.Sweep(ctx, minAge, apply)
}
