// Package api defines the wire-format types shared by the camtrapd HTTP
// server and its clients.
//
// Internal models (store.Run, store.ExportRecord, workflow.Status) are
// converted into DTOs with camelCase JSON tags so consumers never depend on
// internal packages. Timestamps use RFC3339 with milliseconds.
//
// Client is a small HTTP client for the daemon API used by the camtrap CLI.
package api
