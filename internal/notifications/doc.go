// Package notifications delivers completion notices via ntfy.
//
// The ntfy topic URL comes from config.toml. Without a topic the service is a
// no-op, and each event family (detection, exports, errors) can be switched
// off on its own. Callers depend only on the Service interface.
package notifications
