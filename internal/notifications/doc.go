// Package notifications pushes station alerts to ntfy.
//
// Submission failures and capture device errors are the events a supervisor
// away from the packing station needs to hear about; each can be toggled in
// the [notifications] config section. When no topic is configured the service
// is a no-op, so callers never need to check whether alerts are enabled.
package notifications
