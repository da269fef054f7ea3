// Package config loads engine settings for the oxidation CLI from a TOML
// file and OXIDATION_* environment variables.
package config
