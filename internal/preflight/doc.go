// Package preflight provides readiness checks for the filesystem paths and
// detector backends camtrap depends on.
//
// The CLI "camtrap status" command prints RunAll results, and "camtrap run"
// calls CheckDataset and CheckOutputParent before it starts a detection so a
// bad path fails before the detector loads.
package preflight
