// Package pipeline runs the content events end to end.
//
// A save event (SyncContent) localises remote images, then for every media
// item the content owns: takes the item's single-flight lock, re-reads it,
// skips it when it already sits at its planned location, relocates it, and
// records the move. The owning body is then repaired, followed by every other
// document embedding a moved file. A permanent delete event (DeleteContent)
// reaps the content's media when nothing else uses them.
//
// Every per-item failure is recorded in the Summary; the batch never stops
// early. Body writes are terminal and never re-enter the pipeline.
package pipeline
