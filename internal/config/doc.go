// Package config provides YAML configuration loading and validation for the
// capture service, plus optional hot reload of tunable thresholds.
package config
