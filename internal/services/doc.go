// Package services defines the error taxonomy and context helpers shared by
// the workflow controller, the detection backend, and the export runner.
//
// Key responsibilities:
//   - Sentinel markers (invalid selection, rejected job start, duplicate
//     export, invalid output target, backend failure) plus the Wrap helper
//     that attaches scope and operation to a failure.
//   - Details, which recovers the marker, scope, and operation from a wrapped
//     error so the daemon can map failures to HTTP statuses and log them
//     consistently.
//   - Context helpers that stamp run IDs, export job IDs, format IDs, and
//     correlation identifiers for logging.
package services
