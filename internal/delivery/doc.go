// Package delivery emails the finished report to the session recipient.
// The stage only runs for sessions that requested email; the workflow skips
// it entirely otherwise.
package delivery
