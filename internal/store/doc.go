// Package store persists the content catalog mediafold operates on.
//
// It plays the host content repository: content items with their bodies and
// taxonomy terms, media records with size variants, and term attachments.
// The store is backed by SQLite (modernc.org/sqlite, no cgo) with embedded
// migrations, WAL journaling, and retry on SQLITE_BUSY so a CLI run and a
// long sync can share the file.
//
// Body search is a plain substring match (instr), which is what the
// reference rewriter and orphan reaper rely on to find documents that embed a
// file by URL outside the formal attachment relation.
package store
