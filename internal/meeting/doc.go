// Package meeting handles joining video calls. It detects the platform from
// the meeting URL, launches the configured bot process, and exposes a live
// Handle the recording stage consumes. A Handle is never persisted; a join
// interrupted by a daemon restart cannot be resumed.
package meeting
