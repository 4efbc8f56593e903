package planner

import (
	"path"
	"strconv"
	"strings"

	"mediafold/internal/media"
	"mediafold/internal/textutil"
)

// PlanTermAttachment computes the location of media anchored to a taxonomy
// term: taxonomy/<taxonomy>[/<metaKey>]/<term-slug><ext>. The filename takes
// the term's slug so a term's cover image is recognisable on disk.
func PlanTermAttachment(term media.Term, metaKey string, item *media.MediaItem, s media.Settings) media.PathSpec {
	segments := []string{TaxonomyRoot}
	if taxonomy := textutil.Slugify(term.Taxonomy); taxonomy != "" {
		segments = append(segments, taxonomy)
	}
	if key := textutil.Slugify(metaKey); key != "" {
		segments = append(segments, key)
	}

	filename := item.Filename()
	if stem := textutil.Slugify(term.Slug); stem != "" {
		filename = textutil.ReplaceStem(filename, stem)
	} else if term.ID != 0 {
		filename = textutil.ReplaceStem(filename, strconv.FormatInt(term.ID, 10))
	}
	return media.NewPathSpec(s, strings.Join(segments, "/"), filename)
}

// IsCanonicalTermPath is the term-attachment counterpart of IsCanonicalPath.
// Because the filename is replaced, an earlier collision may have left the
// file under a suffixed name (travel-1.jpg); that still counts as canonical so
// repeated runs do not keep renaming it.
func IsCanonicalTermPath(item *media.MediaItem, attachment media.TermAttachment, s media.Settings) bool {
	if item == nil {
		return false
	}
	current := item.Spec(s)
	planned := PlanTermAttachment(attachment.Term, attachment.MetaKey, item, s)
	if current.Subdir != planned.Subdir {
		return false
	}
	return current.Filename == planned.Filename || IsCollisionVariant(current.Filename, planned.Filename)
}

// IsCollisionVariant reports whether name is planned with a "-N" suffix as
// produced by collision avoidance.
func IsCollisionVariant(name, planned string) bool {
	ext := path.Ext(planned)
	if path.Ext(name) != ext {
		return false
	}
	prefix := strings.TrimSuffix(planned, ext) + "-"
	stem := strings.TrimSuffix(name, ext)
	if !strings.HasPrefix(stem, prefix) {
		return false
	}
	digits := stem[len(prefix):]
	if digits == "" || digits[0] == '0' {
		return false
	}
	_, err := strconv.Atoi(digits)
	return err == nil
}
