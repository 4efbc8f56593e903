// Package main hosts the mediafold CLI.
//
// Commands open the catalog database, build the sync pipeline from the
// loaded configuration, and render per-item outcomes as tables or JSON. The
// save and delete events live in internal/pipeline; this package only turns
// terminal invocations into calls on it.
package main
