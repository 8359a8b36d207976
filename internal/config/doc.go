// Package config provides YAML configuration loading for muse-gateway
// with environment variable expansion and duration parsing.
package config
