// Package config loads process configuration from the environment.
package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

// EnvPrefix namespaces every environment variable read by sessionstore
// commands.
const EnvPrefix = "SESSIONSTORE_"

// ParseEnv loads configuration from environment variables into target.
//
// Fields are declared with their full variable names (including EnvPrefix) so
// a grep for the variable finds the struct that consumes it.
func ParseEnv(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}
