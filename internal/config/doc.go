// Package config loads, normalizes, and validates lingocast configuration.
//
// Configuration is TOML. Load resolves the file (explicit path, then
// ~/.config/lingocast/config.toml, then ./lingocast.toml), decodes it over
// Default(), expands paths, fills secrets from the environment, and validates
// the result. Callers receive a fully expanded *Config and should not apply
// their own defaults.
package config
