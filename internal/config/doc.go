// Package config loads, validates, and normalizes calldesk configuration
// from TOML files, providing defaults suitable for a fresh install.
package config
