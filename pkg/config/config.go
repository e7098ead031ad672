// Package config implements hierarchical configuration resolution and the
// operation filter language (spec section 4.K): the project-folder layout
// a run reads its defaults from, the six-layer precedence chain CLI flags
// sit atop, and the include/exclude selector syntax pkg/engine.Options is
// built from.
//
// Grounded on cmd/falcon/main.go's initConfig/Viper wiring (AddConfigPath,
// SetConfigType, SetConfigName, AutomaticEnv) and on the project-folder
// bootstrap shape of pkg/core/init.go's InitializeZapFolder, generalized
// from a single flat config file into spec section 4.K's layered
// precedence. Library: github.com/spf13/viper (file/env loading),
// github.com/joho/godotenv (.env loading, same ordering the teacher uses:
// dotenv first, then Viper reads config), gopkg.in/yaml.v3 (config file
// format, already a direct teacher dependency per pkg/genvalue/serialize.go).
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// ProjectFolderName is the direct analogue of the teacher's ".falcon"
// folder: a per-project directory holding the resolved config, the
// fuzzing example database, and run reports.
const ProjectFolderName = ".conform"

// envSubstitution expands "${NAME}" references against the process
// environment (spec section 4.K: "Environment variables substitute via
// ${NAME} syntax at load time"). Applied once, after every layer is
// merged, rather than per-layer, so a CLI-supplied "${NAME}" overrides a
// config-file literal the same way any other CLI value would.
var envSubstitutionPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

func substituteEnv(s string) string {
	return envSubstitutionPattern.ReplaceAllStringFunc(s, func(m string) string {
		name := envSubstitutionPattern.FindStringSubmatch(m)[1]
		if v, ok := os.LookupEnv(name); ok {
			return v
		}
		return m
	})
}

// Layer is one precedence level of spec section 4.K's resolution chain:
// "CLI -> phase-specific operation override -> phase-level config ->
// operation-level override -> project config -> global defaults". Layers
// are supplied low-to-high and merged in that order so a later layer's
// keys win.
type Layer struct {
	Name   string
	Values map[string]any
}

// Resolve merges layers low-to-high into one settings tree, then expands
// every string leaf's "${NAME}" references. The returned map is ready for
// Viper-style dotted-key lookups (At below) or for
// mapstructure-decoding into a typed struct.
func Resolve(layers ...Layer) map[string]any {
	out := map[string]any{}
	for _, layer := range layers {
		mergeInto(out, layer.Values)
	}
	return expandStrings(out).(map[string]any)
}

// mergeInto deep-merges src into dst, src's values winning on conflict.
// Grounded on the teacher's own "layers of overrides" shape in
// shared/session_log.go's environment-variable resolution, generalized
// from a flat key=value overlay into a recursive map merge since config
// layers here are YAML documents, not single environment files.
func mergeInto(dst, src map[string]any) {
	for k, v := range src {
		if srcMap, ok := v.(map[string]any); ok {
			if dstMap, ok := dst[k].(map[string]any); ok {
				mergeInto(dstMap, srcMap)
				continue
			}
			merged := map[string]any{}
			mergeInto(merged, srcMap)
			dst[k] = merged
			continue
		}
		dst[k] = v
	}
}

func expandStrings(v any) any {
	switch val := v.(type) {
	case string:
		return substituteEnv(val)
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, e := range val {
			out[k] = expandStrings(e)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, e := range val {
			out[i] = expandStrings(e)
		}
		return out
	default:
		return v
	}
}

// LoadDotEnv loads a ".env" file from dir if present, matching the
// teacher's godotenv.Load() call ahead of any Viper read — a missing
// file is not an error, a malformed one is reported but not fatal (spec
// section 7 bucket 2: recoverable, continue).
func LoadDotEnv(dir string) error {
	path := filepath.Join(dir, ".env")
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("config: load .env: %w", err)
	}
	return nil
}

// ProjectLayer reads <dir>/.conform/config.yaml into a Layer named
// "project", the fifth link of spec section 4.K's precedence chain. A
// missing file yields an empty, harmless layer rather than an error —
// the project folder is optional until Bootstrap creates it.
func ProjectLayer(dir string) (Layer, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetConfigName("config")
	v.AddConfigPath(filepath.Join(dir, ProjectFolderName))

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return Layer{Name: "project", Values: map[string]any{}}, nil
		}
		return Layer{}, fmt.Errorf("config: read project config: %w", err)
	}
	return Layer{Name: "project", Values: v.AllSettings()}, nil
}

// DefaultsLayer is spec section 4.K's lowest-precedence "global defaults"
// link.
func DefaultsLayer() Layer {
	return Layer{Name: "defaults", Values: map[string]any{
		"workers":             "auto",
		"phases":              []any{"examples", "coverage", "fuzzing"},
		"max-response-time":   0,
		"continue-on-failure": true,
		"mode":                "all",
		"max-examples":        100,
	}}
}

// CLILayer wraps already-parsed CLI flag values (cmd/conform) as the
// highest-precedence layer.
func CLILayer(values map[string]any) Layer {
	return Layer{Name: "cli", Values: values}
}

// OperationLayer and PhaseLayer wrap spec section 4.K's middle two links:
// a named operation's own override block, and a phase's own config block
// (each optionally further overridden by a phase-specific-operation
// block the caller merges in between the two via a second OperationLayer
// call keyed under the phase).
func OperationLayer(name string, values map[string]any) Layer {
	return Layer{Name: "operation:" + name, Values: values}
}

func PhaseLayer(phase string, values map[string]any) Layer {
	return Layer{Name: "phase:" + phase, Values: values}
}

// At resolves a dotted key path ("phases.fuzzing.seed") against a merged
// settings tree, the same lookup style Viper's own Get exposes but over
// our own merged map rather than Viper's internal store.
func At(settings map[string]any, dottedKey string) (any, bool) {
	parts := strings.Split(dottedKey, ".")
	var cur any = settings
	for _, p := range parts {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		cur, ok = m[p]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}
