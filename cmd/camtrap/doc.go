// Command camtrap processes camera-trap datasets from the terminal.
//
// `camtrap run <dir>` selects a dataset, runs detection with the configured
// backend, prints a per-category summary, and writes the requested exports.
// Other commands list export formats, show the run ledger, check the
// environment, manage the configuration file, and talk to a running
// camtrapd over its HTTP API.
package main
