// Package rewriter repairs media references in content bodies after files
// move.
//
// RewriteOwnBody handles the triggering content item: references to moved
// files are pointed at their new location, and references to files missing
// from disk are resolved by a filename search of the storage root. When the
// search finds exactly one file owned by a media record the reference is
// rewritten to it; anything else is reported unresolved and left untouched.
//
// RewriteOtherReferences fans out across the corpus using substring search
// on the old URLs and rewrites every other document that embeds a moved
// file. Bodies are only written back when a reference actually changed, and
// the write is terminal: it never re-enters the sync pipeline.
package rewriter
