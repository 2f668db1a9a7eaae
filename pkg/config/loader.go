package config

import (
	"fmt"
	"slices"
	"strings"

	"github.com/caarlos0/env/v10"
)

// Load fills cfg from the process environment using its `env` struct tags.
func Load(cfg any) error {
	if err := env.Parse(cfg); err != nil {
		return fmt.Errorf("parse config: %w", err)
	}
	return nil
}

// OneOf returns an error naming the variable when value is not in allowed.
// Comparison is case-insensitive.
func OneOf(name, value string, allowed ...string) error {
	if slices.ContainsFunc(allowed, func(a string) bool { return strings.EqualFold(a, value) }) {
		return nil
	}
	return fmt.Errorf("%s must be one of [%s], got %q", name, strings.Join(allowed, ", "), value)
}
