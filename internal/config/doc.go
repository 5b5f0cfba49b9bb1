// Package config loads, normalizes, and validates webar configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// WEBAR_API_TOKEN and BLENDER_BIN. The Config type centralizes every knob the
// daemon and CLI need so blob storage, the conversion tool and the external
// asset backend are discovered in one pass.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
