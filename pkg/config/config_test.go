package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestResolveLayerPrecedence(t *testing.T) {
	defaults := Layer{Name: "defaults", Values: map[string]any{"workers": "auto", "mode": "all"}}
	project := Layer{Name: "project", Values: map[string]any{"workers": 4}}
	cli := Layer{Name: "cli", Values: map[string]any{"mode": "positive"}}

	out := Resolve(defaults, project, cli)

	if out["workers"] != 4 {
		t.Fatalf("expected project layer to override defaults, got %v", out["workers"])
	}
	if out["mode"] != "positive" {
		t.Fatalf("expected cli layer to override defaults, got %v", out["mode"])
	}
}

func TestResolveDeepMergesNestedMaps(t *testing.T) {
	base := Layer{Name: "defaults", Values: map[string]any{
		"phases": map[string]any{"fuzzing": map[string]any{"seed": 1, "max-examples": 100}},
	}}
	override := Layer{Name: "operation:getPet", Values: map[string]any{
		"phases": map[string]any{"fuzzing": map[string]any{"seed": 42}},
	}}

	out := Resolve(base, override)
	want := map[string]any{
		"phases": map[string]any{"fuzzing": map[string]any{"seed": 42, "max-examples": 100}},
	}
	if diff := cmp.Diff(want, out); diff != "" {
		t.Fatalf("merged settings mismatch (-want +got):\n%s", diff)
	}
}

func TestResolveExpandsEnvReferences(t *testing.T) {
	os.Setenv("CONFORM_TEST_TOKEN", "secret123")
	defer os.Unsetenv("CONFORM_TEST_TOKEN")

	out := Resolve(Layer{Name: "cli", Values: map[string]any{
		"auth": map[string]any{"bearer": "${CONFORM_TEST_TOKEN}"},
	}})

	bearer, ok := At(out, "auth.bearer")
	if !ok || bearer != "secret123" {
		t.Fatalf("expected expanded env var, got %v (ok=%v)", bearer, ok)
	}
}

func TestResolveLeavesUnknownEnvReferenceAlone(t *testing.T) {
	os.Unsetenv("CONFORM_TEST_UNSET_VAR")
	out := Resolve(Layer{Name: "cli", Values: map[string]any{"token": "${CONFORM_TEST_UNSET_VAR}"}})
	if out["token"] != "${CONFORM_TEST_UNSET_VAR}" {
		t.Fatalf("expected unresolved reference to be left verbatim, got %v", out["token"])
	}
}

func TestAtMissingKeyReturnsFalse(t *testing.T) {
	out := Resolve(Layer{Name: "defaults", Values: map[string]any{"workers": "auto"}})
	if _, ok := At(out, "phases.fuzzing.seed"); ok {
		t.Fatal("expected missing dotted key to report ok=false")
	}
}

func TestProjectLayerMissingFileIsNotAnError(t *testing.T) {
	dir := t.TempDir()
	layer, err := ProjectLayer(dir)
	if err != nil {
		t.Fatalf("expected a missing project config to not be an error, got %v", err)
	}
	if len(layer.Values) != 0 {
		t.Fatalf("expected an empty layer, got %v", layer.Values)
	}
}

func TestProjectLayerReadsBootstrappedConfig(t *testing.T) {
	dir := t.TempDir()
	if err := Bootstrap(dir); err != nil {
		t.Fatalf("bootstrap: %v", err)
	}
	layer, err := ProjectLayer(dir)
	if err != nil {
		t.Fatalf("project layer: %v", err)
	}
	if layer.Values["mode"] != "all" {
		t.Fatalf("expected bootstrapped default mode 'all', got %v", layer.Values["mode"])
	}
}

func TestLoadDotEnvMissingFileIsNotAnError(t *testing.T) {
	dir := t.TempDir()
	if err := LoadDotEnv(dir); err != nil {
		t.Fatalf("expected missing .env to be a no-op, got %v", err)
	}
}

func TestLoadDotEnvLoadsVariables(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, ".env"), []byte("CONFORM_TEST_DOTENV=fromfile\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	defer os.Unsetenv("CONFORM_TEST_DOTENV")

	if err := LoadDotEnv(dir); err != nil {
		t.Fatalf("load dotenv: %v", err)
	}
	if got := os.Getenv("CONFORM_TEST_DOTENV"); got != "fromfile" {
		t.Fatalf("expected .env value to be loaded into the environment, got %q", got)
	}
}
