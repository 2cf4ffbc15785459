// Package exports holds the export format registry and the writers behind
// it.
//
// Record formats (csv, json) serialise every detection record with paths
// relative to the dataset root. The image-dir format copies the images that
// pass a criteria.Filter into an output directory, drawing boxes for the
// categories enabled in a criteria.Draw.
package exports
