package cmd

import (
	"bytes"
	"context"
	"errors"
	"flag"
	"strings"
	"testing"
)

type testConfig struct {
	Address string `env:"CMD_TEST_ADDRESS" envDefault:"127.0.0.1:8080"`
	Mode    string `env:"CMD_TEST_MODE" envDefault:"server"`
	Token   string `env:"CMD_TEST_TOKEN"`
}

func TestParseConfigReadsEnvAndFlags(t *testing.T) {
	t.Setenv("DESIGNO_CMD_TEST_ADDRESS", "env:9000")
	t.Setenv("DESIGNO_CMD_TEST_MODE", "env-mode")

	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	cfg := testConfig{}
	if err := ParseConfig(&cfg); err != nil {
		t.Fatalf("load config defaults: %v", err)
	}
	fs.StringVar(&cfg.Address, "address", cfg.Address, "address")
	fs.StringVar(&cfg.Mode, "mode", cfg.Mode, "mode")

	if err := ParseArgs(fs, []string{"-address", "flag:9001"}, &cfg); err != nil {
		t.Fatalf("parse flags: %v", err)
	}
	if cfg.Address != "flag:9001" {
		t.Fatalf("address = %q, want %q", cfg.Address, "flag:9001")
	}
	if cfg.Mode != "env-mode" {
		t.Fatalf("mode = %q, want %q", cfg.Mode, "env-mode")
	}
}

func TestParseConfigRejectsNilTarget(t *testing.T) {
	if err := ParseConfig[testConfig](nil); err == nil {
		t.Fatal("expected nil target error")
	}
}

func TestParseArgsRejectsNilParser(t *testing.T) {
	if err := ParseArgs(nil, []string{}); err == nil {
		t.Fatal("expected parse args to reject nil parser")
	}
}

func TestParseArgsUsageListsEnvironment(t *testing.T) {
	var out bytes.Buffer
	cfg := testConfig{}
	fs := flag.NewFlagSet("relay", flag.ContinueOnError)
	fs.SetOutput(&out)
	fs.StringVar(&cfg.Address, "address", "", "listen address")

	err := ParseArgs(fs, []string{"-h"}, &cfg)
	if !errors.Is(err, flag.ErrHelp) {
		t.Fatalf("err = %v, want flag.ErrHelp", err)
	}
	usage := out.String()
	for _, want := range []string{
		"Usage of relay:",
		"-address",
		"Environment:",
		`DESIGNO_CMD_TEST_ADDRESS (default "127.0.0.1:8080")`,
		"DESIGNO_CMD_TEST_TOKEN\n",
		"DESIGNO_OTEL_ENDPOINT",
	} {
		if !strings.Contains(usage, want) {
			t.Fatalf("usage missing %q:\n%s", want, usage)
		}
	}
}

func TestRunWithTelemetryRejectsMissingInputs(t *testing.T) {
	if err := RunWithTelemetry(context.Background(), "", func(context.Context) error { return nil }); err == nil {
		t.Fatal("expected missing service error")
	}
	if err := RunWithTelemetry(context.Background(), ServiceRelay, nil); err == nil {
		t.Fatal("expected missing run function error")
	}
}

func TestRunWithTelemetryReturnsRunError(t *testing.T) {
	t.Setenv("DESIGNO_OTEL_ENDPOINT", "")
	boom := errors.New("boom")
	called := false
	err := RunWithTelemetry(context.Background(), ServiceSceneStore, func(context.Context) error {
		called = true
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want %v", err, boom)
	}
	if !called {
		t.Fatal("expected run function to be called")
	}
}
