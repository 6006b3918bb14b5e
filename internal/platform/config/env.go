// Package config loads process configuration from DESIGNO_* environment
// variables.
package config

import (
	"fmt"
	"sort"

	"github.com/caarlos0/env/v11"
)

// EnvPrefix is prepended to every env tag, so a field tagged
// `env:"RELAY_HTTP_ADDR"` reads DESIGNO_RELAY_HTTP_ADDR.
const EnvPrefix = "DESIGNO_"

// Variable is one environment variable read by a config struct.
type Variable struct {
	Name     string
	Default  string
	Required bool
}

func options() env.Options {
	return env.Options{Prefix: EnvPrefix}
}

// ParseEnv loads configuration from environment variables.
func ParseEnv(target any) error {
	if err := env.ParseWithOptions(target, options()); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// Variables lists the environment variables target reads, sorted by name.
func Variables(target any) ([]Variable, error) {
	params, err := env.GetFieldParamsWithOptions(target, options())
	if err != nil {
		return nil, fmt.Errorf("describe env: %w", err)
	}
	vars := make([]Variable, 0, len(params))
	for _, p := range params {
		vars = append(vars, Variable{Name: p.Key, Default: p.DefaultValue, Required: p.Required})
	}
	sort.Slice(vars, func(i, j int) bool { return vars[i].Name < vars[j].Name })
	return vars, nil
}
