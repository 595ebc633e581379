// Package config loads, validates, and normalizes the picshrink TOML
// configuration. Defaults are defined in defaults.go and a documented sample
// file is embedded for `picshrink config init`.
package config
