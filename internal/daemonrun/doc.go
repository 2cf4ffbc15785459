// Package daemonrun assembles the camtrap runtime from configuration: the
// detector backend, the export writer, the workflow controller, and the
// daemon process loop used by camtrapd.
package daemonrun
