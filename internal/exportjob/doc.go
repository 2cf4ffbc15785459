// Package exportjob runs export requests asynchronously, at most one per
// format at a time, and keeps the terminal job records until Reset.
//
// Each job is independent: a failing format never affects jobs for other
// formats, and nothing is retried. Completion hooks observe every job that
// finishes within the current generation; jobs that finish after a Reset
// are dropped silently.
package exportjob
