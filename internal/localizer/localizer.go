package localizer

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"io/fs"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path"
	"strings"
	"time"

	"github.com/sony/gobreaker"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
	"golang.org/x/time/rate"

	"mediafold/internal/config"
	"mediafold/internal/fileutil"
	"mediafold/internal/logging"
	"mediafold/internal/media"
	"mediafold/internal/planner"
	"mediafold/internal/relocator"
	"mediafold/internal/scanner"
	"mediafold/internal/services"
	"mediafold/internal/textutil"
)

const maxNameAttempts = 1000

// Store is the subset of the catalog the localizer uses.
type Store interface {
	FindMediaBySourceURL(ctx context.Context, url string) (*media.MediaItem, error)
	CreateMedia(ctx context.Context, item *media.MediaItem) error
	SaveBody(ctx context.Context, id int64, body string) error
}

// Options bounds remote fetches.
type Options struct {
	Enabled            bool
	Timeout            time.Duration
	MaxBytes           int64
	RequestsPerSecond  float64
	BreakerMaxFailures int
	BreakerTimeout     time.Duration
	UserAgent          string
	// Client overrides the HTTP client; Timeout is applied when it has none.
	Client *http.Client
}

// OptionsFromConfig maps the [localize] section onto Options.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		Enabled:            cfg.Localize.Enabled,
		Timeout:            cfg.FetchTimeout(),
		MaxBytes:           cfg.Localize.MaxBytes,
		RequestsPerSecond:  cfg.Localize.RequestsPerSecond,
		BreakerMaxFailures: cfg.Localize.BreakerMaxFailures,
		BreakerTimeout:     time.Duration(cfg.Localize.BreakerTimeoutSeconds) * time.Second,
		UserAgent:          cfg.Localize.UserAgent,
	}
}

// Result classifies one remote reference.
type Result string

const (
	ResultLocalized Result = "localized"
	ResultReused    Result = "reused"
	ResultFailed    Result = "failed"
)

// Outcome is the fate of one remote reference.
type Outcome struct {
	URL     string
	Result  Result
	MediaID int64
	Err     error
}

// Report summarises one Localize call.
type Report struct {
	Changed  bool
	Outcomes []Outcome
}

// Count returns how many outcomes had result r.
func (r Report) Count(result Result) int {
	n := 0
	for _, o := range r.Outcomes {
		if o.Result == result {
			n++
		}
	}
	return n
}

// Localizer fetches and stores remote images.
type Localizer struct {
	store    Store
	settings media.Settings
	opts     Options
	scanner  *scanner.Scanner
	client   *http.Client
	limiter  *rate.Limiter
	breaker  *gobreaker.CircuitBreaker
	logger   *slog.Logger
	now      func() time.Time
}

// New constructs a Localizer.
func New(st Store, settings media.Settings, opts Options, logger *slog.Logger) *Localizer {
	logger = logging.NewComponentLogger(logger, "localizer")
	client := opts.Client
	if client == nil {
		client = &http.Client{}
	}
	if client.Timeout == 0 && opts.Timeout > 0 {
		cp := *client
		cp.Timeout = opts.Timeout
		client = &cp
	}
	limit := rate.Inf
	if opts.RequestsPerSecond > 0 {
		limit = rate.Limit(opts.RequestsPerSecond)
	}
	maxFailures := opts.BreakerMaxFailures
	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "remote-image-fetch",
		MaxRequests: 1,
		Timeout:     opts.BreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return maxFailures > 0 && counts.ConsecutiveFailures >= uint32(maxFailures)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Info("fetch circuit breaker state changed",
				logging.String("breaker", name),
				logging.String("from", from.String()),
				logging.String("to", to.String()),
			)
		},
	})
	return &Localizer{
		store:    st,
		settings: settings,
		opts:     opts,
		scanner:  scanner.NewFromSettings(settings),
		client:   client,
		limiter:  rate.NewLimiter(limit, 1),
		breaker:  breaker,
		logger:   logger,
		now:      time.Now,
	}
}

// Localize copies every remote image in content's body and rewrites the
// references. content.Body is updated in place when the body changes. One
// failed image never stops the others; failures are reported per outcome.
func (l *Localizer) Localize(ctx context.Context, content *media.ContentItem) (Report, error) {
	var report Report
	if content == nil || !l.opts.Enabled {
		return report, nil
	}
	logger := logging.WithContext(ctx, l.logger)
	doc := scanner.Parse(content.Body)

	// Repeated URLs in one body are fetched once.
	done := make(map[string]*media.MediaItem)
	for _, ref := range doc.Refs() {
		classified := l.scanner.Classify(ref.ElementRef)
		if !l.scanner.IsRemoteImage(classified) {
			continue
		}
		source := normalizeURL(classified.Value)
		if item, ok := done[source]; ok {
			ref.Set(item.Spec(l.settings).URL(l.settings.URLStyle))
			continue
		}

		existing, err := l.store.FindMediaBySourceURL(ctx, source)
		if err != nil {
			report.Outcomes = append(report.Outcomes, l.failed(logger, source,
				services.Wrap(services.ErrTransient, "localize", "lookup", source, err)))
			continue
		}
		if existing != nil {
			done[source] = existing
			ref.Set(existing.Spec(l.settings).URL(l.settings.URLStyle))
			report.Outcomes = append(report.Outcomes, Outcome{URL: source, Result: ResultReused, MediaID: existing.ID})
			logger.Debug("remote image already localized", logging.String("url", source), logging.Int64(logging.FieldMediaID, existing.ID))
			continue
		}

		item, err := l.localize(ctx, content, source)
		if err != nil {
			report.Outcomes = append(report.Outcomes, l.failed(logger, source, err))
			continue
		}
		done[source] = item
		ref.Set(item.Spec(l.settings).URL(l.settings.URLStyle))
		report.Outcomes = append(report.Outcomes, Outcome{URL: source, Result: ResultLocalized, MediaID: item.ID})
		logger.Info("remote image localized",
			logging.String("url", source),
			logging.Int64(logging.FieldMediaID, item.ID),
			logging.String("rel_path", item.RelPath),
		)
	}

	if !doc.Changed() {
		return report, nil
	}
	body := doc.Render()
	if err := l.store.SaveBody(ctx, content.ID, body); err != nil {
		return report, services.Wrap(services.ErrTransient, "localize", "save body",
			fmt.Sprintf("content %d", content.ID), err)
	}
	content.Body = body
	report.Changed = true
	return report, nil
}

func (l *Localizer) failed(logger *slog.Logger, source string, err error) Outcome {
	logging.WarnWithContext(logger, "remote image not localized", "localize_failed",
		logging.String("url", source),
		logging.Error(err),
		logging.String(logging.FieldImpact, "reference keeps pointing at the remote host"),
	)
	return Outcome{URL: source, Result: ResultFailed, Err: err}
}

func (l *Localizer) localize(ctx context.Context, content *media.ContentItem, source string) (*media.MediaItem, error) {
	data, err := l.fetch(ctx, source)
	if err != nil {
		return nil, err
	}
	_, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, services.Wrap(services.ErrValidation, "localize", "decode", source+" is not a supported image", err)
	}

	now := l.now()
	item := &media.MediaItem{
		ParentID:   content.ID,
		RelPath:    fileName(source, format),
		MimeType:   "image/" + format,
		SourceURL:  source,
		CreatedAt:  now,
		ModifiedAt: now,
	}
	if !content.CreatedAt.IsZero() {
		item.CreatedAt = content.CreatedAt
		item.ModifiedAt = content.CreatedAt
	}
	spec := planner.Plan(content, item, l.settings)
	if err := os.MkdirAll(spec.DirPath(), 0o755); err != nil {
		return nil, services.Wrap(services.ErrTransient, "localize", "create directory", spec.Subdir, err)
	}
	name, err := writeUnique(spec, data, l.opts.MaxBytes)
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "localize", "write", spec.RelPath(), err)
	}
	spec = spec.WithFilename(name)
	item.RelPath = spec.RelPath()
	if err := l.store.CreateMedia(ctx, item); err != nil {
		_ = os.Remove(spec.FilePath())
		return nil, services.Wrap(services.ErrTransient, "localize", "create media", spec.RelPath(), err)
	}
	return item, nil
}

type fetchResult struct {
	data []byte
	err  error
}

func (l *Localizer) fetch(ctx context.Context, source string) ([]byte, error) {
	if err := l.limiter.Wait(ctx); err != nil {
		return nil, services.Wrap(services.ErrTimeout, "localize", "rate limit", source, err)
	}
	if l.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, l.opts.Timeout)
		defer cancel()
	}
	out, err := l.breaker.Execute(func() (interface{}, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, source, nil)
		if err != nil {
			return fetchResult{err: err}, nil
		}
		if l.opts.UserAgent != "" {
			req.Header.Set("User-Agent", l.opts.UserAgent)
		}
		resp, err := l.client.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()
		if resp.StatusCode >= 500 {
			return nil, fmt.Errorf("remote returned %s", resp.Status)
		}
		// Client errors are the image's fault, not the host's; they do not trip the breaker.
		if resp.StatusCode != http.StatusOK {
			return fetchResult{err: fmt.Errorf("remote returned %s", resp.Status)}, nil
		}
		data, err := readLimited(resp.Body, l.opts.MaxBytes)
		return fetchResult{data: data, err: err}, nil
	})
	if err != nil {
		marker := services.ErrExternalTool
		switch {
		case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
			marker = services.ErrTransient
		case errors.Is(err, context.DeadlineExceeded):
			marker = services.ErrTimeout
		}
		return nil, services.Wrap(marker, "localize", "fetch", source, err)
	}
	result := out.(fetchResult)
	if result.err != nil {
		marker := services.ErrValidation
		if errors.Is(result.err, context.DeadlineExceeded) {
			marker = services.ErrTimeout
		}
		return nil, services.Wrap(marker, "localize", "fetch", source, result.err)
	}
	return result.data, nil
}

func readLimited(r io.Reader, limit int64) ([]byte, error) {
	if limit <= 0 {
		return io.ReadAll(r)
	}
	data, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > limit {
		return nil, fmt.Errorf("%w: more than %d bytes", fileutil.ErrTooLarge, limit)
	}
	return data, nil
}

// writeUnique stores data under spec's filename or its first free "-N" form.
func writeUnique(spec media.PathSpec, data []byte, limit int64) (string, error) {
	if limit <= 0 {
		limit = int64(len(data))
	}
	for attempt := 0; attempt < maxNameAttempts; attempt++ {
		name := relocator.UniqueName(spec.Filename, attempt)
		_, err := fileutil.WriteNew(spec.WithFilename(name).FilePath(), bytes.NewReader(data), limit)
		if err == nil {
			return name, nil
		}
		if !errors.Is(err, fs.ErrExist) {
			return "", err
		}
	}
	return "", fmt.Errorf("no free name for %s after %d attempts", spec.Filename, maxNameAttempts)
}

// normalizeURL gives protocol-relative references an explicit scheme.
func normalizeURL(value string) string {
	value = strings.TrimSpace(value)
	if strings.HasPrefix(value, "//") {
		return "https:" + value
	}
	return value
}

var formatExt = map[string]string{
	"jpeg": ".jpg",
	"png":  ".png",
	"gif":  ".gif",
	"webp": ".webp",
	"bmp":  ".bmp",
	"tiff": ".tif",
}

// fileName derives a local filename from the URL's last path segment with
// the extension of the decoded format.
func fileName(source, format string) string {
	ext := formatExt[format]
	if ext == "" {
		ext = "." + format
	}
	stem := ""
	if parsed, err := url.Parse(source); err == nil {
		base := path.Base(parsed.Path)
		if unescaped, err := url.PathUnescape(base); err == nil {
			base = unescaped
		}
		if base != "/" && base != "." {
			stem = strings.TrimSuffix(base, path.Ext(base))
		}
	}
	if strings.TrimSpace(strings.Trim(stem, ".")) == "" {
		return "remote-image" + ext
	}
	name := textutil.SanitizeFileName(stem + ext)
	if path.Ext(name) != ext || name == ext {
		return "remote-image" + ext
	}
	return name
}
