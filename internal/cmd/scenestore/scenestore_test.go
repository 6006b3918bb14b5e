package scenestore

import (
	"flag"
	"testing"
)

func TestParseConfigDefaults(t *testing.T) {
	fs := flag.NewFlagSet("scenestore", flag.ContinueOnError)
	cfg, err := ParseConfig(fs, nil)
	if err != nil {
		t.Fatalf("parse config: %v", err)
	}
	if cfg.Port != 8092 {
		t.Fatalf("port = %d, want 8092", cfg.Port)
	}
}

func TestParseConfigOverrides(t *testing.T) {
	t.Setenv("DESIGNO_SCENESTORE_PORT", "9000")

	fs := flag.NewFlagSet("scenestore", flag.ContinueOnError)
	cfg, err := ParseConfig(fs, nil)
	if err != nil {
		t.Fatalf("parse config: %v", err)
	}
	if cfg.Port != 9000 {
		t.Fatalf("env port = %d, want 9000", cfg.Port)
	}

	fs = flag.NewFlagSet("scenestore", flag.ContinueOnError)
	cfg, err = ParseConfig(fs, []string{"-port", "9100"})
	if err != nil {
		t.Fatalf("parse config: %v", err)
	}
	if cfg.Port != 9100 {
		t.Fatalf("flag port = %d, want 9100", cfg.Port)
	}
}
