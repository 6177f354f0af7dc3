// Package notifications publishes run outcomes to ntfy.
//
// NewService returns a noop when no topic is configured, so callers never
// need to check whether notifications are enabled.
package notifications
