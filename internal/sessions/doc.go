// Package sessions defines the persisted session model and its SQLite store.
//
// A session is one meeting-processing job tracked from creation through the
// pipeline to a terminal state. The store is the single source of truth for
// session state; the workflow manager owns all forward transitions while
// cancellation requests flip an out-of-band flag observed cooperatively.
package sessions
