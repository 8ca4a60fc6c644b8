// Package services defines shared utilities consumed by the pipeline stages and
// the external integrations.
//
// Key responsibilities:
//   - Context helpers that stamp run IDs, subject IDs, stage names, and catalog
//     source names for logging.
//   - Structured error markers plus the Wrap helper. Integrations tag failures as
//     transient, fatal, or conflict so the retry executor and the pipeline can
//     decide whether to repeat a call, skip a subject, or abort the run.
//
// Use these helpers when wiring a new source or notifier so failure handling
// stays uniform across the pipeline.
package services
