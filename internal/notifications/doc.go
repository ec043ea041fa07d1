// Package notifications publishes session lifecycle events to an ntfy topic.
// With no topic configured every notification is a no-op.
package notifications
