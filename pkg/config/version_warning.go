package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/blang/semver"
)

// lastVersionFile records the schema info.version seen on the previous
// run against a given project folder, the minimal persisted state a
// version-drift warning needs.
const lastVersionFile = "last-version"

// CheckVersionCompatibility compares schemaVersion against whatever
// version was recorded for dir's project folder on a previous run,
// persisting schemaVersion for next time either way. A non-empty
// returned string is a human-readable warning the caller should surface
// before the run starts; "" means no warning (first run, unparsable
// versions, or no major-version change).
//
// Grounded on pkg/core/tools/breaking_change_detector/tool.go: that tool
// diffs two full spec documents end-to-end via an LLM-driven narrative
// summary; this is the same "compare a stored baseline against the
// current one" shape reduced to a single deterministic semver
// comparison, with no LLM involved. Library: github.com/blang/semver —
// the teacher's go.mod declares it but nothing in pkg/core imports it.
func CheckVersionCompatibility(dir, schemaVersion string) (string, error) {
	root := filepath.Join(dir, ProjectFolderName)
	path := filepath.Join(root, lastVersionFile)

	previous, err := readLastVersion(path)
	if err != nil {
		return "", err
	}

	if err := writeLastVersion(path, schemaVersion); err != nil {
		return "", err
	}

	if previous == "" {
		return "", nil
	}

	prevVer, err := semver.ParseTolerant(previous)
	if err != nil {
		return "", nil // unparsable baseline: nothing to compare against
	}
	curVer, err := semver.ParseTolerant(schemaVersion)
	if err != nil {
		return "", nil
	}

	if curVer.Major != prevVer.Major {
		return fmt.Sprintf("schema version changed from %s to %s (major version drift) since the last run against this project", previous, schemaVersion), nil
	}
	return "", nil
}

func readLastVersion(path string) (string, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("config: read last schema version: %w", err)
	}
	return strings.TrimSpace(string(data)), nil
}

func writeLastVersion(path, version string) error {
	if version == "" {
		return nil
	}
	if err := ensureDir(filepath.Dir(path)); err != nil {
		return err
	}
	if err := os.WriteFile(path, []byte(version), 0o644); err != nil {
		return fmt.Errorf("config: write last schema version: %w", err)
	}
	return nil
}
