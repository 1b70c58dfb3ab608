// Package config loads, normalizes, and validates coursepull configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// COURSEPULL_COOKIE. The Config type centralizes every knob the pipeline and
// CLI need, so the download root, external binaries, and cleanup behaviour are
// discovered in one pass.
//
// Always obtain settings through this package so downstream code receives
// absolute paths, canonical log formats, and clear validation errors.
package config
