// Package config loads, normalizes, and validates GARP Shipping Connector
// configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and substitutes ${ENV_VAR} references so
// credentials can live outside the file. The Config type centralizes every
// knob the daemon and CLI need: watch/terminal directories, sender details,
// carrier API credentials, printer queues, SMTP settings, and pipeline
// timing.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
