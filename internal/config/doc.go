// Package config defines the settings of one managed binary and provides
// helpers to load and validate them.
//
// Settings are read from YAML with environment overrides (cleanenv), checked
// with validator struct tags and then completed with defaults by Validate.
package config
