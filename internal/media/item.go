package media

import (
	"path"
	"sort"
	"time"
)

// MediaItem is one stored file plus its metadata record. Size variants and
// the preserved original live in the same directory as the main file.
type MediaItem struct {
	ID       int64
	ParentID int64
	// RelPath is the main file, slash-separated, relative to the storage root.
	RelPath string
	// Sizes maps a size name to a variant filename in the main file's directory.
	Sizes map[string]string
	// OriginalImage is the pre-scaling filename, empty when none was kept.
	OriginalImage string
	MimeType      string
	// SourceURL records the remote URL a localised copy was fetched from.
	SourceURL  string
	CreatedAt  time.Time
	ModifiedAt time.Time
}

// Attached reports whether the item has an owning content item.
func (m *MediaItem) Attached() bool {
	return m != nil && m.ParentID != 0
}

// Filename returns the main file's base name.
func (m *MediaItem) Filename() string {
	return path.Base(CleanSubdir(m.RelPath))
}

// Subdir returns the main file's directory relative to the storage root.
func (m *MediaItem) Subdir() string {
	dir := path.Dir(CleanSubdir(m.RelPath))
	if dir == "." {
		return ""
	}
	return dir
}

// Spec returns the item's current location.
func (m *MediaItem) Spec(s Settings) PathSpec {
	return NewPathSpec(s, m.Subdir(), m.Filename())
}

// SizeNames returns the variant names in stable order.
func (m *MediaItem) SizeNames() []string {
	names := make([]string, 0, len(m.Sizes))
	for name := range m.Sizes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Files returns the distinct relative paths of every file the item owns: the
// main file first, then variants in size-name order, then the original.
func (m *MediaItem) Files() []string {
	dir := m.Subdir()
	seen := make(map[string]struct{}, len(m.Sizes)+2)
	out := make([]string, 0, len(m.Sizes)+2)
	add := func(name string) {
		if name == "" {
			return
		}
		rel := name
		if dir != "" {
			rel = dir + "/" + name
		}
		if _, ok := seen[rel]; ok {
			return
		}
		seen[rel] = struct{}{}
		out = append(out, rel)
	}
	add(m.Filename())
	for _, name := range m.SizeNames() {
		add(m.Sizes[name])
	}
	add(m.OriginalImage)
	return out
}

// Clone returns a deep copy.
func (m *MediaItem) Clone() *MediaItem {
	if m == nil {
		return nil
	}
	cp := *m
	if m.Sizes != nil {
		cp.Sizes = make(map[string]string, len(m.Sizes))
		for k, v := range m.Sizes {
			cp.Sizes[k] = v
		}
	}
	return &cp
}
