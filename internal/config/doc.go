// Package config loads, normalizes, and validates reelsync configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), loads an optional .env file, reads TOML files, and honours
// environment fallbacks such as HF_TOKEN and REELSYNC_NTFY_TOPIC.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
