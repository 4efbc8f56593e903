package media

import "path"

// Reference is one media-bearing attribute found in a body.
type Reference struct {
	Element   string
	Attribute string
	Value     string
	// Local is true for root-relative values and URLs on the site's own hosts.
	Local bool
	// Path is the cleaned, unescaped site path of a local value.
	Path string
	// StoragePath is Path relative to the storage root, empty when the value
	// does not point inside the uploads path.
	StoragePath string
}

// Move describes one applied relocation: the main file's old and new
// location plus renamed variant and original files keyed by old filename.
type Move struct {
	MediaID  int64
	Old      PathSpec
	New      PathSpec
	Variants map[string]string
}

// Mapping returns every old relative path the move invalidated and the spec
// it now lives at.
func (m Move) Mapping() map[string]PathSpec {
	out := make(map[string]PathSpec, len(m.Variants)+1)
	out[m.Old.RelPath()] = m.New
	for oldName, newName := range m.Variants {
		oldRel := oldName
		if m.Old.Subdir != "" {
			oldRel = path.Join(m.Old.Subdir, oldName)
		}
		out[oldRel] = m.New.WithFilename(newName)
	}
	return out
}
