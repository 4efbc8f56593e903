// Package reaper removes media that no content references any more.
//
// ReapIfOrphaned runs when a trashed content item is deleted permanently. A
// media item is deleted only when no other body embeds any of its files, no
// other content uses it as featured media, and no term anchors it. Any
// failed usage query keeps the item. Empty directories left behind are
// pruned bottom-up, never at or above the storage root.
//
// Sweep is the storage-level counterpart: it reports files under the root
// that no media record claims, optionally deleting those older than a safety
// age.
package reaper
