package planner

import (
	"fmt"
	"strconv"
	"strings"

	"mediafold/internal/media"
	"mediafold/internal/services"
	"mediafold/internal/textutil"
)

// MiscSegment replaces a taxonomy or date segment that cannot be resolved.
const MiscSegment = "misc"

// TaxonomyRoot is the first segment of every term attachment directory.
const TaxonomyRoot = "taxonomy"

// Plan computes the canonical location of item when owned by content.
// Unresolvable segments fall back to MiscSegment; use Explain to see why.
func Plan(content *media.ContentItem, item *media.MediaItem, s media.Settings) media.PathSpec {
	spec, _ := Explain(content, item, s)
	return spec
}

// Explain is Plan plus the planning fallbacks it applied. Each returned error
// wraps services.ErrPlanning; none of them prevent a usable spec.
func Explain(content *media.ContentItem, item *media.MediaItem, s media.Settings) (media.PathSpec, []error) {
	segments, problems := Segments(content, item, s)
	return media.NewPathSpec(s, strings.Join(segments, "/"), item.Filename()), problems
}

// Segments returns the subdirectory segments in their fixed order: content
// type, taxonomy path, date folders, identifier. Omitted segments contribute
// nothing.
func Segments(content *media.ContentItem, item *media.MediaItem, s media.Settings) ([]string, []error) {
	var (
		segments []string
		problems []error
	)
	if content == nil {
		return nil, []error{planningError("content", "no owning content item", content)}
	}

	if s.IncludeContentType {
		if typ := textutil.Slugify(content.Type); typ != "" {
			segments = append(segments, typ)
		} else {
			problems = append(problems, planningError("content_type", "content type is empty", content))
		}
	}

	if taxonomy := strings.TrimSpace(s.GroupingTaxonomy); taxonomy != "" {
		chain, ok := MostSpecificTerm(content, taxonomy)
		if ok {
			segments = append(segments, textutil.Slugify(taxonomy))
			segments = append(segments, termSegments(chain)...)
		} else {
			segments = append(segments, MiscSegment)
			problems = append(problems, planningError("taxonomy", fmt.Sprintf("no %s term assigned", taxonomy), content))
		}
	}

	if s.UseDateFolders {
		switch {
		case !content.CreatedAt.IsZero():
			segments = append(segments, content.CreatedAt.UTC().Format("2006/01"))
		case item != nil && !item.CreatedAt.IsZero():
			segments = append(segments, item.CreatedAt.UTC().Format("2006/01"))
			problems = append(problems, planningError("date", "content has no creation date; used media date", content))
		default:
			segments = append(segments, MiscSegment)
			problems = append(problems, planningError("date", "no creation date available", content))
		}
	}

	switch s.PostIdentifier {
	case media.IdentifierSlug:
		if slug := textutil.Slugify(content.Slug); slug != "" {
			segments = append(segments, slug)
			break
		}
		if content.ID != 0 {
			segments = append(segments, strconv.FormatInt(content.ID, 10))
			problems = append(problems, planningError("identifier", "content slug is empty; used id", content))
		}
	case media.IdentifierID:
		if content.ID != 0 {
			segments = append(segments, strconv.FormatInt(content.ID, 10))
		}
	}

	return segments, problems
}

// termSegments slugifies a chain, falling back to the term id for a term
// whose slug normalises to nothing.
func termSegments(chain media.TermPath) []string {
	out := make([]string, 0, len(chain))
	for _, term := range chain {
		slug := textutil.Slugify(term.Slug)
		if slug == "" {
			slug = strconv.FormatInt(term.ID, 10)
		}
		out = append(out, slug)
	}
	return out
}

// MostSpecificTerm picks the deepest assigned chain in taxonomy. Ties go to the
// lowest leaf term id so the choice never depends on assignment order.
func MostSpecificTerm(content *media.ContentItem, taxonomy string) (media.TermPath, bool) {
	if content == nil {
		return nil, false
	}
	var best media.TermPath
	for _, chain := range content.Terms {
		if len(chain) == 0 || chain.Leaf().Taxonomy != taxonomy {
			continue
		}
		switch {
		case best == nil, len(chain) > len(best):
			best = chain
		case len(chain) == len(best) && chain.Leaf().ID < best.Leaf().ID:
			best = chain
		}
	}
	return best, best != nil
}

// IsCanonicalPath reports whether item already sits at its planned location.
// Hosts call it before running the full pipeline.
func IsCanonicalPath(item *media.MediaItem, content *media.ContentItem, s media.Settings) bool {
	if item == nil || content == nil {
		return false
	}
	return item.Spec(s) == Plan(content, item, s)
}

func planningError(operation, message string, content *media.ContentItem) error {
	if content != nil && content.ID != 0 {
		message = fmt.Sprintf("%s (content %d)", message, content.ID)
	}
	return services.Wrap(services.ErrPlanning, "plan", operation, message, nil)
}
