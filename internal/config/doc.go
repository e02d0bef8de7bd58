// Package config loads, validates, and normalizes overdub configuration.
//
// Configuration lives in a TOML file (default ~/.config/overdub/config.toml,
// overridable via OVERDUB_CONFIG or a project-local overdub.toml). Load applies
// defaults for missing keys, expands ~ in path fields, folds in environment
// credentials, and validates the result so downstream code can rely on a
// well-formed Config without re-checking invariants.
package config
