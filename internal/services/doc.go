// Package services defines shared utilities consumed by the relocation
// pipeline and its components.
//
// Key responsibilities:
//   - Context helpers that stamp media item IDs, content IDs, stage names, and
//     correlation identifiers for logging and tracing.
//   - Structured error markers plus the Wrap helper that classify failures
//     into the outcome kinds reported in run summaries (planning, relocation,
//     variant relocation, reference resolution, inconclusive orphan checks).
//
// Use these helpers when wiring new pipeline logic so operational behaviour
// (error classification, observability) stays uniform across components.
package services
