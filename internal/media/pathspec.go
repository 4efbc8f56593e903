package media

import (
	"net/url"
	"path"
	"path/filepath"
	"strings"
)

// PathSpec is a planned storage location: a slash-separated subdirectory
// below the storage root plus a filename. Derived paths and URLs are computed
// on demand so two specs compare equal with == when they name the same place.
type PathSpec struct {
	Root        string
	SiteURL     string
	UploadsPath string
	Subdir      string
	Filename    string
}

// NewPathSpec builds a spec for subdir/filename under the configured root.
func NewPathSpec(s Settings, subdir, filename string) PathSpec {
	return PathSpec{
		Root:        s.StorageRoot,
		SiteURL:     s.SiteURL,
		UploadsPath: s.UploadsPath,
		Subdir:      CleanSubdir(subdir),
		Filename:    filename,
	}
}

// SpecForRelPath builds a spec from a slash-separated path relative to the
// storage root.
func SpecForRelPath(s Settings, rel string) PathSpec {
	rel = CleanSubdir(rel)
	dir, file := path.Split(rel)
	return NewPathSpec(s, dir, file)
}

// CleanSubdir normalises a relative directory: forward slashes, no leading or
// trailing slash, no empty or dot segments.
func CleanSubdir(subdir string) string {
	subdir = strings.ReplaceAll(strings.TrimSpace(subdir), "\\", "/")
	if subdir == "" {
		return ""
	}
	cleaned := path.Clean("/" + subdir)
	cleaned = strings.Trim(cleaned, "/")
	if cleaned == "." {
		return ""
	}
	return cleaned
}

// RelPath returns subdir/filename relative to the storage root.
func (p PathSpec) RelPath() string {
	if p.Subdir == "" {
		return p.Filename
	}
	return p.Subdir + "/" + p.Filename
}

// FilePath returns the absolute filesystem path of the file.
func (p PathSpec) FilePath() string {
	return filepath.Join(p.Root, filepath.FromSlash(p.RelPath()))
}

// DirPath returns the absolute filesystem path of the containing directory.
func (p PathSpec) DirPath() string {
	return filepath.Join(p.Root, filepath.FromSlash(p.Subdir))
}

// WithFilename returns a copy of the spec pointing at another file in the
// same directory.
func (p PathSpec) WithFilename(name string) PathSpec {
	p.Filename = name
	return p
}

// RelativeURL returns the root-relative URL of the file, e.g.
// /uploads/post/travel/photo.jpg.
func (p PathSpec) RelativeURL() string {
	segments := make([]string, 0, 8)
	for _, part := range strings.Split(strings.Trim(p.UploadsPath, "/"), "/") {
		if part != "" {
			segments = append(segments, url.PathEscape(part))
		}
	}
	for _, part := range strings.Split(p.RelPath(), "/") {
		if part != "" {
			segments = append(segments, url.PathEscape(part))
		}
	}
	return "/" + strings.Join(segments, "/")
}

// RawRelativeURL is RelativeURL without percent-escaping, the form editors
// usually paste into bodies.
func (p PathSpec) RawRelativeURL() string {
	uploads := strings.Trim(p.UploadsPath, "/")
	if uploads == "" {
		return "/" + p.RelPath()
	}
	return "/" + uploads + "/" + p.RelPath()
}

// SearchURLs returns the distinct root-relative forms a body may embed the
// file under: escaped first, then raw.
func (p PathSpec) SearchURLs() []string {
	escaped, raw := p.RelativeURL(), p.RawRelativeURL()
	if escaped == raw {
		return []string{escaped}
	}
	return []string{escaped, raw}
}

// AbsoluteURL returns the fully qualified URL of the file.
func (p PathSpec) AbsoluteURL() string {
	return strings.TrimRight(p.SiteURL, "/") + p.RelativeURL()
}

// URL renders the file's URL in the requested style.
func (p PathSpec) URL(style URLStyle) string {
	if style == URLAbsolute && strings.TrimSpace(p.SiteURL) != "" {
		return p.AbsoluteURL()
	}
	return p.RelativeURL()
}

// SameFile reports whether both specs resolve to the same filesystem path.
func (p PathSpec) SameFile(other PathSpec) bool {
	return p.FilePath() == other.FilePath()
}
