// Package detection runs detectors over a dataset folder and reports
// progress while doing so.
//
// A Backend acknowledges a Request by returning a Run, then works in the
// background: it publishes an initial "Loading detector..." report, one
// "Processing" report per image (throttled), and a final "Processing
// Complete" report once the records are available. Per-image failures become
// records with Error set; only setup failures or cancellation fail the run.
//
// Two detectors are provided. MegaDetector replays a batch output JSON file
// produced elsewhere, and Ollama asks a local vision model for boxes.
package detection
