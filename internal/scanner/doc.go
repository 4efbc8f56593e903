// Package scanner finds media references in HTML-like content bodies.
//
// Parsing is tolerant: bodies come from editors and imports and are often
// malformed, so the scanner never fails and returns whatever elements the
// tokenizer can extract. Document keeps every untouched byte of the original
// body so a rewrite only re-renders the tags whose attributes changed.
package scanner
