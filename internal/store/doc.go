// Package store keeps a SQLite ledger of detection runs and the export jobs
// issued against them. The ledger is history only: the workflow never reads
// it back to decide anything, so a missing or stale ledger cannot change
// workflow behaviour.
package store
