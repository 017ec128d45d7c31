// Package config loads, normalizes, and validates callqa configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// CALLQA_LLM_API_KEY and HF_TOKEN. The Config type centralizes every knob the
// evaluator, API server, and CLI need so data directories, rule files, and
// external service credentials are discovered in one pass.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
