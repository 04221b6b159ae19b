// Package notifications publishes job outcomes to ntfy.
//
// NewService returns a no-op implementation when no topic is configured, so
// callers never branch on whether notifications are enabled. Each job emits
// exactly one terminal notification: completed or failed.
package notifications
