package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/blackcoderx/conform/pkg/config"
)

// settingsKeys maps cliFlags fields to the dotted config keys spec section
// 4.K's precedence chain resolves (CLI -> project config -> global
// defaults), the subset of flags DefaultsLayer/the project config.yaml
// actually seed: workers, phases, max-response-time,
// continue-on-failure, max-examples. Every other flag has no sensible
// project-wide default and is left CLI-only.
var settingsKeys = []string{"workers", "phases", "max-response-time", "continue-on-failure", "max-examples"}

// resolveLayeredSettings runs spec section 4.K's resolution chain (minus
// the operation/phase-level override links cmd/conform has no per-
// operation config surface for yet): global defaults, then the project's
// .conform/config.yaml, then whichever of settingsKeys the user actually
// passed on the CLI — cmd.Flags().Changed distinguishes "the user typed
// --workers 4" from "the flag carries its zero-value default", so an
// unset flag never shadows a project config value.
func resolveLayeredSettings(cmd *cobra.Command, workDir string) (map[string]any, error) {
	projectLayer, err := config.ProjectLayer(workDir)
	if err != nil {
		return nil, fmt.Errorf("resolve project config: %w", err)
	}
	if flags.configFile != "" {
		projectLayer, err = explicitConfigLayer(flags.configFile)
		if err != nil {
			return nil, fmt.Errorf("resolve --config file: %w", err)
		}
	}

	cli := map[string]any{}
	if cmd.Flags().Changed("workers") {
		cli["workers"] = flags.workers
	}
	if cmd.Flags().Changed("phases") {
		phases := make([]any, len(flags.phases))
		for i, p := range flags.phases {
			phases[i] = p
		}
		cli["phases"] = phases
	}
	if cmd.Flags().Changed("max-response-time") {
		cli["max-response-time"] = flags.maxResponseTime
	}
	if cmd.Flags().Changed("continue-on-failure") {
		cli["continue-on-failure"] = flags.continueOnFailure
	}
	if cmd.Flags().Changed("max-examples") {
		cli["max-examples"] = flags.maxExamples
	}

	return config.Resolve(config.DefaultsLayer(), projectLayer, config.CLILayer(cli)), nil
}

// applyLayeredSettings folds settings back into flags for the keys
// resolveLayeredSettings covers, so buildEngineOptions only ever reads
// flags and never has to know about the layering underneath it.
func applyLayeredSettings(settings map[string]any) {
	if v, ok := config.At(settings, "workers"); ok {
		if s, ok := v.(string); ok && s == "auto" {
			flags.workers = 0
		} else if n, ok := toInt(v); ok {
			flags.workers = n
		}
	}
	if v, ok := config.At(settings, "phases"); ok {
		if list, ok := v.([]any); ok {
			phases := make([]string, 0, len(list))
			for _, p := range list {
				if s, ok := p.(string); ok {
					phases = append(phases, s)
				}
			}
			flags.phases = phases
		}
	}
	if v, ok := config.At(settings, "max-response-time"); ok {
		if n, ok := toInt(v); ok {
			flags.maxResponseTime = n
		}
	}
	if v, ok := config.At(settings, "continue-on-failure"); ok {
		if b, ok := v.(bool); ok {
			flags.continueOnFailure = b
		}
	}
	if v, ok := config.At(settings, "max-examples"); ok {
		if n, ok := toInt(v); ok {
			flags.maxExamples = n
		}
	}
}

// explicitConfigLayer reads --config's file directly (viper infers the
// format from its extension) rather than the fixed .conform/config.yaml
// name/path ProjectLayer looks for, for the user who keeps settings
// somewhere else.
func explicitConfigLayer(path string) (config.Layer, error) {
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return config.Layer{}, err
	}
	return config.Layer{Name: "project", Values: v.AllSettings()}, nil
}

func toInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		return int(n), true
	case string:
		parsed, err := strconv.Atoi(n)
		if err != nil {
			return 0, false
		}
		return parsed, true
	default:
		return 0, false
	}
}
