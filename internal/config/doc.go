// Package config loads, validates, and defaults the TOML configuration used
// by the daemon and CLI.
package config
