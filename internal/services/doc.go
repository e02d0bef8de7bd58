// Package services defines shared utilities consumed by the pipeline stages
// and external provider integrations.
//
// Key responsibilities:
//   - Context helpers that stamp run IDs, stage names, and correlation
//     identifiers for logging and request tracking.
//   - Structured error markers plus the Wrap helper that translate failures
//     into a consistent taxonomy the recovery coordinator understands.
//   - ErrorInfo, the structured failure record appended to the request log.
//
// Use these helpers when wiring new stage logic so operational behaviour
// (error handling, observability, retries) stays uniform across the pipeline.
package services
