// Package media defines the domain records shared by every relocation
// component: stored files (MediaItem), the documents that embed them
// (ContentItem, Term), planned locations (PathSpec), body references, and the
// explicit Settings struct that replaces ambient configuration lookups.
//
// Relative storage paths are always slash-separated and relative to the
// storage root; conversion to host filesystem paths happens only through
// PathSpec.FilePath and PathSpec.DirPath.
package media
