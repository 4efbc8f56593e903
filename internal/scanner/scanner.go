package scanner

import (
	"net/url"
	"path"
	"strings"

	"mediafold/internal/media"
)

// Scanner classifies references against the site's own hosts.
type Scanner struct {
	hosts       map[string]struct{}
	uploadsPath string
	uploadsHead string
}

// New builds a scanner for siteURL plus any legacy host aliases. Aliases may
// be bare hosts or full URLs.
func New(siteURL string, aliases []string, uploadsPath string) *Scanner {
	s := &Scanner{hosts: make(map[string]struct{}, len(aliases)+1)}
	s.addHost(siteURL)
	for _, alias := range aliases {
		s.addHost(alias)
	}
	uploads := strings.Trim(uploadsPath, "/")
	if uploads == "" {
		s.uploadsPath = "/"
	} else {
		s.uploadsPath = "/" + uploads + "/"
		s.uploadsHead, _, _ = strings.Cut(uploads, "/")
	}
	return s
}

// NewFromSettings builds a scanner from the core settings.
func NewFromSettings(settings media.Settings) *Scanner {
	return New(settings.SiteURL, settings.LegacyHostAliases, settings.UploadsPath)
}

func (s *Scanner) addHost(value string) {
	value = strings.ToLower(strings.TrimSpace(value))
	if value == "" {
		return
	}
	if strings.Contains(value, "//") {
		if parsed, err := url.Parse(value); err == nil && parsed.Host != "" {
			value = parsed.Host
		}
	}
	value = strings.Trim(value, "/")
	if value != "" {
		s.hosts[value] = struct{}{}
	}
}

// IsLocalHost reports whether host belongs to the site.
func (s *Scanner) IsLocalHost(host string) bool {
	_, ok := s.hosts[strings.ToLower(host)]
	return ok
}

// FindReferences parses body and classifies every media reference in it.
func (s *Scanner) FindReferences(body string) []media.Reference {
	refs := Parse(body).Refs()
	out := make([]media.Reference, 0, len(refs))
	for _, ref := range refs {
		out = append(out, s.Classify(ref.ElementRef))
	}
	return out
}

// Classify resolves one reference. A value is local when it is root-relative
// or names one of the site's hosts; local values get a cleaned site path and,
// when they point below the uploads path, a storage-relative path.
func (s *Scanner) Classify(ref ElementRef) media.Reference {
	out := media.Reference{Element: ref.Element, Attribute: ref.Attribute, Value: ref.Value}
	sitePath, ok := s.localPath(ref.Value)
	if !ok {
		return out
	}
	out.Local = true
	out.Path = sitePath
	out.StoragePath = s.StoragePath(sitePath)
	return out
}

// StoragePath maps a cleaned site path to a path relative to the storage
// root, or "" when it lies outside the uploads path.
func (s *Scanner) StoragePath(sitePath string) string {
	if !strings.HasPrefix(sitePath, s.uploadsPath) {
		return ""
	}
	rel := strings.TrimPrefix(sitePath, s.uploadsPath)
	if rel == "" || strings.HasSuffix(rel, "/") {
		return ""
	}
	return rel
}

// localPath strips any local host prefix (repeatedly, so concatenation
// artifacts like https://site//https://site/x collapse) and returns the
// cleaned, unescaped path.
func (s *Scanner) localPath(value string) (string, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return "", false
	}
	if i := strings.IndexAny(value, "?#"); i >= 0 {
		value = value[:i]
	}

	matchedHost := false
	for {
		rest, ok := s.stripHost(value)
		if !ok {
			break
		}
		matchedHost = true
		value = rest
	}
	if !strings.HasPrefix(value, "/") {
		return "", false
	}
	if strings.HasPrefix(value, "//") && !matchedHost && !s.gluedUploadsPath(value) {
		// Protocol-relative URL on a foreign host.
		return "", false
	}

	unescaped, err := url.PathUnescape(value)
	if err != nil {
		unescaped = value
	}
	cleaned := path.Clean("/" + strings.TrimLeft(unescaped, "/"))
	return cleaned, true
}

// stripHost removes one leading scheme+host (or protocol-relative host) when
// the host is local, tolerating slashes left over from concatenation.
func (s *Scanner) stripHost(value string) (string, bool) {
	trimmed := value
	lower := strings.ToLower(trimmed)
	switch {
	case strings.HasPrefix(lower, "https://"):
		trimmed = trimmed[len("https://"):]
	case strings.HasPrefix(lower, "http://"):
		trimmed = trimmed[len("http://"):]
	case strings.HasPrefix(lower, "//"):
		trimmed = strings.TrimLeft(trimmed, "/")
	default:
		// "/https://site/..." left behind when a root-relative prefix was glued on.
		inner := strings.TrimLeft(trimmed, "/")
		if inner != trimmed && hasScheme(inner) {
			return s.stripHost(inner)
		}
		return "", false
	}
	host := trimmed
	rest := ""
	if i := strings.IndexByte(trimmed, '/'); i >= 0 {
		host, rest = trimmed[:i], trimmed[i:]
	}
	if !s.IsLocalHost(host) {
		return "", false
	}
	if rest == "" {
		rest = "/"
	}
	return rest, true
}

// gluedUploadsPath reports whether a "//x/..." value is really the uploads
// path with a doubled slash rather than a host named x.
func (s *Scanner) gluedUploadsPath(value string) bool {
	if s.uploadsHead == "" {
		return false
	}
	head, _, _ := strings.Cut(strings.TrimLeft(value, "/"), "/")
	return head == s.uploadsHead
}

func hasScheme(value string) bool {
	lower := strings.ToLower(value)
	return strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://")
}

// IsRemoteImage reports whether ref is an img pointing at a foreign http(s) host.
func (s *Scanner) IsRemoteImage(ref media.Reference) bool {
	if ref.Local || ref.Element != "img" {
		return false
	}
	value := strings.TrimSpace(ref.Value)
	if strings.HasPrefix(value, "//") {
		value = "https:" + value
	}
	parsed, err := url.Parse(value)
	if err != nil || parsed.Host == "" {
		return false
	}
	return (parsed.Scheme == "http" || parsed.Scheme == "https") && !s.IsLocalHost(parsed.Host)
}
