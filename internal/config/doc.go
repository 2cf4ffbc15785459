// Package config loads, normalizes, and validates camtrap configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// CAMTRAP_API_TOKEN and OLLAMA_HOST. Always obtain settings through this
// package so downstream code receives expanded paths, canonical log formats,
// and clear validation errors.
package config
