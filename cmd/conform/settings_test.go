package main

import (
	"os"
	"testing"
)

func TestToInt(t *testing.T) {
	cases := []struct {
		in   any
		want int
		ok   bool
	}{
		{42, 42, true},
		{int64(7), 7, true},
		{float64(3), 3, true},
		{"9", 9, true},
		{"not-a-number", 0, false},
		{true, 0, false},
	}
	for _, c := range cases {
		got, ok := toInt(c.in)
		if ok != c.ok || got != c.want {
			t.Fatalf("toInt(%v) = (%d, %v), want (%d, %v)", c.in, got, ok, c.want, c.ok)
		}
	}
}

func TestApplyLayeredSettingsOverridesFlags(t *testing.T) {
	saved := flags
	defer func() { flags = saved }()

	flags = cliFlags{workers: 1, maxExamples: 10, continueOnFailure: false}
	applyLayeredSettings(map[string]any{
		"workers":             "auto",
		"phases":              []any{"examples", "fuzzing"},
		"max-response-time":   500,
		"continue-on-failure": true,
		"max-examples":        250,
	})

	if flags.workers != 0 {
		t.Fatalf("expected \"auto\" to resolve to 0 workers, got %d", flags.workers)
	}
	if len(flags.phases) != 2 || flags.phases[0] != "examples" || flags.phases[1] != "fuzzing" {
		t.Fatalf("unexpected phases: %v", flags.phases)
	}
	if flags.maxResponseTime != 500 {
		t.Fatalf("expected max-response-time 500, got %d", flags.maxResponseTime)
	}
	if !flags.continueOnFailure {
		t.Fatal("expected continue-on-failure to be true")
	}
	if flags.maxExamples != 250 {
		t.Fatalf("expected max-examples 250, got %d", flags.maxExamples)
	}
}

func TestApplyLayeredSettingsLeavesFlagsAloneWhenKeysMissing(t *testing.T) {
	saved := flags
	defer func() { flags = saved }()

	flags = cliFlags{workers: 4, maxExamples: 10}
	applyLayeredSettings(map[string]any{})

	if flags.workers != 4 || flags.maxExamples != 10 {
		t.Fatalf("expected flags to be left untouched, got %+v", flags)
	}
}

func TestExplicitConfigLayerReadsNamedFile(t *testing.T) {
	path := t.TempDir() + "/settings.yaml"
	if err := os.WriteFile(path, []byte("workers: 8\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	layer, err := explicitConfigLayer(path)
	if err != nil {
		t.Fatalf("explicitConfigLayer: %v", err)
	}
	if n, ok := toInt(layer.Values["workers"]); !ok || n != 8 {
		t.Fatalf("expected workers=8, got %v", layer.Values["workers"])
	}
}
