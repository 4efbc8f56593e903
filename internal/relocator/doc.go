// Package relocator moves a media item's files to a planned location.
//
// The main file moves first; if that fails nothing else is touched. Size
// variants and the preserved original then move independently and
// best-effort. No move ever replaces an existing file: a taken name gets a
// "-N" suffix instead.
package relocator
