// Package config holds the shared configuration helpers for the
// service commands: env-tag parsing and the fatal-exit pattern their
// mains use.
package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

// FromEnv populates target from environment variables using its env
// struct tags, applying envDefault values for unset variables.
func FromEnv(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("env config: %w", err)
	}
	return nil
}
