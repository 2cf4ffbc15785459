// Package daemon runs the long-lived camtrapd process.
//
// A Daemon owns one workflow.Controller and the run ledger, guarded by a
// flock-based lock so that a host has a single workflow at a time. It
// exposes the controller over a local HTTP API: dataset selection,
// detection start, progress polling and server-sent events, export
// submission, reset, and run history.
//
// Keep orchestration here. Workflow rules live in internal/workflow and
// export rules in internal/exportjob.
package daemon
