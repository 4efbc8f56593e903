package textutil

import (
	"path"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var lower = cases.Lower(language.Und)

// stripMarks decomposes text and drops combining marks so "Café" becomes "Cafe".
func stripMarks(value string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, value)
	if err != nil {
		return value
	}
	return out
}

// Slugify converts text into a lowercase URL- and filesystem-safe segment.
// Runs of anything other than letters and digits collapse to a single dash.
// Returns "" when nothing usable remains.
func Slugify(value string) string {
	value = lower.String(stripMarks(strings.TrimSpace(value)))
	var b strings.Builder
	b.Grow(len(value))
	dash := false
	for _, r := range value {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_':
			// Non-Latin letters survive as-is; CMS slugs are often percent-encoded UTF-8.
			b.WriteRune(r)
			dash = false
		default:
			if !dash && b.Len() > 0 {
				b.WriteByte('-')
				dash = true
			}
		}
	}
	return strings.Trim(b.String(), "-_")
}

// fileNameReplacer replaces filesystem-unsafe characters with safe alternatives.
var fileNameReplacer = strings.NewReplacer(
	"/", "-",
	"\\", "-",
	":", "-",
	"*", "-",
	"?", "",
	"\"", "",
	"<", "",
	">", "",
	"|", "",
	"%", "",
	"#", "",
)

// SanitizeFileName makes a filename safe to create under the storage root.
// The extension is lowercased and the stem is stripped of accents, unsafe
// characters, and whitespace runs. Leading dots are removed so the result can
// never name a hidden file or a parent directory.
func SanitizeFileName(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return ""
	}
	name = strings.TrimLeft(fileNameReplacer.Replace(stripMarks(name)), ".")
	ext := path.Ext(name)
	stem := strings.TrimSuffix(name, ext)
	stem = strings.Join(strings.Fields(stem), "-")
	if stem == "" {
		return ""
	}
	return stem + strings.ToLower(ext)
}

// ReplaceStem swaps the stem of name for stem, preserving the extension.
func ReplaceStem(name, stem string) string {
	return stem + path.Ext(name)
}
