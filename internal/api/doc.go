// Package api defines the transport representations shared by the daemon's
// HTTP surface and the CLI client. Conversions isolate persistence types from
// wire payloads so store changes do not leak into the protocol.
package api
