// Package services defines shared utilities consumed by the evaluation
// pipeline and its external integrations.
//
// Key responsibilities:
//   - Context helpers that stamp call IDs, pipeline stage names, and
//     correlation identifiers for logging.
//   - Structured error markers plus the Wrap helper that translate boundary
//     failures into consistent API responses.
//
// Use these helpers when wiring new pipeline stages so operational behaviour
// (error handling, observability) stays uniform across the evaluator.
package services
