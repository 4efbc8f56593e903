package scanner

import (
	"strings"

	"golang.org/x/net/html"
)

// mediaAttrs lists the element/attribute pairs that carry media references.
var mediaAttrs = map[string]string{
	"img": "src",
	"a":   "href",
}

// ElementRef is one element/attribute/value triple found in a body.
type ElementRef struct {
	Element   string
	Attribute string
	Value     string
}

// Document is a parsed body that can be mutated in place and re-rendered.
type Document struct {
	segments []segment
	refs     []*Ref
}

type segment struct {
	raw   string
	token *html.Token
	dirty bool
}

// Ref is a mutable media reference inside a Document.
type Ref struct {
	ElementRef
	doc     *Document
	segment int
	attr    int
}

// Parse tokenizes body. It never fails: malformed markup yields whatever
// tags the tokenizer recognises and the rest is kept verbatim.
func Parse(body string) *Document {
	doc := &Document{}
	z := html.NewTokenizer(strings.NewReader(body))
	consumed := 0
	for {
		tt := z.Next()
		if tt == html.ErrorToken {
			// Whatever the tokenizer gave up on is kept verbatim.
			if consumed < len(body) {
				doc.segments = append(doc.segments, segment{raw: body[consumed:]})
			}
			break
		}
		raw := string(z.Raw())
		consumed += len(raw)
		seg := segment{raw: raw}
		if tt == html.StartTagToken || tt == html.SelfClosingTagToken {
			token := z.Token()
			if attrName, ok := mediaAttrs[token.Data]; ok {
				seg.token = &token
				for i, attr := range token.Attr {
					if attr.Namespace != "" || attr.Key != attrName {
						continue
					}
					doc.refs = append(doc.refs, &Ref{
						ElementRef: ElementRef{Element: token.Data, Attribute: attr.Key, Value: attr.Val},
						doc:        doc,
						segment:    len(doc.segments),
						attr:       i,
					})
				}
			}
		}
		doc.segments = append(doc.segments, seg)
	}
	return doc
}

// Refs returns the media references in document order.
func (d *Document) Refs() []*Ref {
	return d.refs
}

// Set replaces the attribute value. Setting the current value is a no-op.
func (r *Ref) Set(value string) {
	if r.Value == value {
		return
	}
	seg := &r.doc.segments[r.segment]
	seg.token.Attr[r.attr].Val = value
	seg.dirty = true
	r.Value = value
}

// Changed reports whether any reference was modified.
func (d *Document) Changed() bool {
	for _, seg := range d.segments {
		if seg.dirty {
			return true
		}
	}
	return false
}

// Render serialises the document. Untouched segments are emitted byte for
// byte; modified tags are re-rendered from their tokens.
func (d *Document) Render() string {
	var b strings.Builder
	for _, seg := range d.segments {
		if seg.dirty && seg.token != nil {
			b.WriteString(seg.token.String())
			continue
		}
		b.WriteString(seg.raw)
	}
	return b.String()
}

// FindMediaReferences lists every img[src] and a[href] pair in body.
func FindMediaReferences(body string) []ElementRef {
	refs := Parse(body).Refs()
	out := make([]ElementRef, 0, len(refs))
	for _, ref := range refs {
		out = append(out, ref.ElementRef)
	}
	return out
}
