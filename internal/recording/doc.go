// Package recording captures meeting audio while the bot is in the call.
// Recording holds a live meeting.Handle, so like joining it runs under a
// typed contract driven by the workflow runner instead of the uniform stage
// interface. The concurrency slot a session occupies is tied to this stage:
// the runner releases it as soon as recording finishes.
package recording
