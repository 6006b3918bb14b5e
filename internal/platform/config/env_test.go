package config

import (
	"strings"
	"testing"
)

type envTestConfig struct {
	Port int    `env:"TEST_PORT" envDefault:"123"`
	Name string `env:"TEST_NAME,required"`
}

func TestParseEnvAppliesPrefix(t *testing.T) {
	t.Setenv("DESIGNO_TEST_PORT", "9000")
	t.Setenv("DESIGNO_TEST_NAME", "scene")
	var cfg envTestConfig

	if err := ParseEnv(&cfg); err != nil {
		t.Fatalf("parse env: %v", err)
	}
	if cfg.Port != 9000 {
		t.Fatalf("port = %d, want 9000", cfg.Port)
	}
	if cfg.Name != "scene" {
		t.Fatalf("name = %q, want %q", cfg.Name, "scene")
	}
}

func TestParseEnvIgnoresUnprefixedNames(t *testing.T) {
	t.Setenv("TEST_PORT", "9000")
	t.Setenv("DESIGNO_TEST_NAME", "scene")
	var cfg envTestConfig

	if err := ParseEnv(&cfg); err != nil {
		t.Fatalf("parse env: %v", err)
	}
	if cfg.Port != 123 {
		t.Fatalf("port = %d, want default 123", cfg.Port)
	}
}

func TestParseEnvError(t *testing.T) {
	t.Setenv("DESIGNO_TEST_PORT", "not-an-int")
	t.Setenv("DESIGNO_TEST_NAME", "scene")
	var cfg envTestConfig

	err := ParseEnv(&cfg)
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "parse env:") {
		t.Fatalf("expected parse env prefix, got %v", err)
	}
}

func TestVariablesListsPrefixedNames(t *testing.T) {
	vars, err := Variables(&envTestConfig{})
	if err != nil {
		t.Fatalf("variables: %v", err)
	}
	if len(vars) != 2 {
		t.Fatalf("variables = %d, want 2", len(vars))
	}
	if vars[0].Name != "DESIGNO_TEST_NAME" || !vars[0].Required {
		t.Fatalf("vars[0] = %+v, want required DESIGNO_TEST_NAME", vars[0])
	}
	if vars[1].Name != "DESIGNO_TEST_PORT" || vars[1].Default != "123" {
		t.Fatalf("vars[1] = %+v, want DESIGNO_TEST_PORT default 123", vars[1])
	}
}
