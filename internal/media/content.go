package media

import "time"

// Status is the publishing state of a content item.
type Status string

const (
	StatusPublish Status = "publish"
	StatusDraft   Status = "draft"
	StatusTrash   Status = "trash"
)

// ContentItem is a document whose body may embed media references.
type ContentItem struct {
	ID              int64
	Type            string
	Slug            string
	Title           string
	Body            string
	Status          Status
	FeaturedMediaID int64
	CreatedAt       time.Time
	ModifiedAt      time.Time
	// Terms holds one ancestor-to-leaf chain per assigned term.
	Terms []TermPath
	// BrokenTerms lists assigned terms left out of Terms because their
	// parent chain loops.
	BrokenTerms []int64
}

// Trashed reports whether the item is pending permanent deletion.
func (c *ContentItem) Trashed() bool {
	return c != nil && c.Status == StatusTrash
}

// Term is a taxonomy term. ParentID is zero for top-level terms.
type Term struct {
	ID       int64
	Taxonomy string
	Slug     string
	Name     string
	ParentID int64
}

// TermPath is a term's ancestor chain ordered root first, leaf last.
type TermPath []Term

// Leaf returns the most specific term of the chain.
func (p TermPath) Leaf() Term {
	if len(p) == 0 {
		return Term{}
	}
	return p[len(p)-1]
}

// Slugs returns the chain's slugs in root-to-leaf order.
func (p TermPath) Slugs() []string {
	out := make([]string, 0, len(p))
	for _, t := range p {
		out = append(out, t.Slug)
	}
	return out
}

// TermAttachment anchors a media item to a taxonomy term under an optional
// meta key (for example a term's cover image).
type TermAttachment struct {
	Term    Term
	MetaKey string
	MediaID int64
}
