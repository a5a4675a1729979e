// Package config loads, normalizes, and validates dispatchscan configuration.
//
// It supplies station defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// DISPATCH_API_TOKEN. The Config type centralizes every knob the scanning
// session and CLI need: backend API location, station identity, capture
// source selection, notifications, and logging.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical enum values, and clear validation errors.
package config
