// Package planner computes canonical storage locations for media items.
//
// Every function here is pure: the same content metadata, media record, and
// settings always produce the same PathSpec. The relocation pipeline relies on
// that determinism for its "already canonical" fast path, so planner code must
// never consult the clock, the filesystem, or any other ambient state.
package planner
