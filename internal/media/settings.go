package media

import (
	"fmt"
	"strings"
)

// PostIdentifier selects the trailing per-content folder segment.
type PostIdentifier string

const (
	IdentifierNone PostIdentifier = "none"
	IdentifierSlug PostIdentifier = "slug"
	IdentifierID   PostIdentifier = "id"
)

// URLStyle selects how rewritten references are written into bodies.
type URLStyle string

const (
	URLRelative URLStyle = "relative"
	URLAbsolute URLStyle = "absolute"
)

// Settings is the configuration surface consumed by the core. It is passed
// explicitly into every component; nothing reads it from global state.
type Settings struct {
	IncludeContentType           bool
	GroupingTaxonomy             string
	UseDateFolders               bool
	PostIdentifier               PostIdentifier
	URLStyle                     URLStyle
	LegacyHostAliases            []string
	DeleteOrphansOnContentDelete bool

	// StorageRoot is the absolute filesystem directory holding every media file.
	StorageRoot string
	// SiteURL is the scheme and host of the public site, e.g. https://example.com.
	SiteURL string
	// UploadsPath is the URL path the storage root is served under.
	UploadsPath string
}

// ParsePostIdentifier validates a post identifier option.
func ParsePostIdentifier(value string) (PostIdentifier, error) {
	switch id := PostIdentifier(strings.ToLower(strings.TrimSpace(value))); id {
	case IdentifierNone, IdentifierSlug, IdentifierID:
		return id, nil
	case "":
		return IdentifierNone, nil
	default:
		return "", fmt.Errorf("unsupported post identifier %q (want none, slug, or id)", value)
	}
}

// ParseURLStyle validates a URL style option.
func ParseURLStyle(value string) (URLStyle, error) {
	switch style := URLStyle(strings.ToLower(strings.TrimSpace(value))); style {
	case URLRelative, URLAbsolute:
		return style, nil
	case "":
		return URLRelative, nil
	default:
		return "", fmt.Errorf("unsupported url style %q (want relative or absolute)", value)
	}
}
