// Package config loads, normalizes, and validates mediafold configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// MEDIAFOLD_SITE_URL. The Config type centralizes every knob the CLI and the
// relocation pipeline need; Settings projects it onto the explicit struct the
// core components consume.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical enum values, and clear validation errors.
package config
