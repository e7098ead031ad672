package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// defaultConfigYAML seeds a freshly bootstrapped project folder's
// config.yaml with spec section 4.K's global-defaults layer, so the file
// on disk documents every value DefaultsLayer assumes silently.
var defaultConfigYAML = map[string]any{
	"workers":             "auto",
	"phases":              []string{"examples", "coverage", "fuzzing"},
	"max-response-time":   0,
	"continue-on-failure": true,
	"mode":                "all",
	"max-examples":        100,
}

// Bootstrap creates <dir>/.conform if it doesn't already exist: a
// config.yaml seeded with defaults, an empty fuzzing example database
// file, and a reports directory. Re-running Bootstrap on an already
// initialized project is a no-op (spec section 4.K treats the project
// folder as durable state across runs, not something to recreate).
//
// Grounded on pkg/core/init.go's InitializeZapFolder: "check if the
// folder exists, create it and its subdirectories, write default files"
// — with the first-run interactive setup wizard (framework/provider
// selection) dropped entirely, since this project folder has no chat
// agent to configure.
func Bootstrap(dir string) error {
	root := filepath.Join(dir, ProjectFolderName)
	if _, err := os.Stat(root); err == nil {
		return nil
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("config: stat project folder: %w", err)
	}

	if err := os.Mkdir(root, 0o755); err != nil {
		return fmt.Errorf("config: create project folder: %w", err)
	}

	if err := writeDefaultConfig(root); err != nil {
		return err
	}

	if err := ensureDir(filepath.Join(root, "reports")); err != nil {
		return err
	}

	examplesDB := filepath.Join(root, "examples.db")
	if _, err := os.Stat(examplesDB); os.IsNotExist(err) {
		if err := os.WriteFile(examplesDB, nil, 0o644); err != nil {
			return fmt.Errorf("config: create examples database: %w", err)
		}
	}

	return nil
}

func writeDefaultConfig(root string) error {
	out, err := yaml.Marshal(defaultConfigYAML)
	if err != nil {
		return fmt.Errorf("config: marshal default config: %w", err)
	}
	if err := os.WriteFile(filepath.Join(root, "config.yaml"), out, 0o644); err != nil {
		return fmt.Errorf("config: write default config: %w", err)
	}
	return nil
}

func ensureDir(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		if err := os.Mkdir(path, 0o755); err != nil {
			return fmt.Errorf("config: create directory %s: %w", path, err)
		}
	}
	return nil
}
