// Package daemon hosts the long-running sunnyd process: it enforces
// single-instance execution, sweeps sessions interrupted by a previous crash,
// runs the workflow manager and ingest watcher, and serves the HTTP API.
package daemon
