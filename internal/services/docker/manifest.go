package docker

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"gopkg.in/yaml.v3"
)

// composeManifest is the slice of a compose file this tool cares about.
type composeManifest struct {
	Services map[string]struct{} `yaml:"services"`
}

// manifestNames are tried in order inside a compose project directory.
var manifestNames = []string{"compose.yml", "compose.yaml", "docker-compose.yml", "docker-compose.yaml"}

// ServiceNames returns the sorted service names defined in the compose
// manifest found under composeDir.
func ServiceNames(composeDir string) ([]string, error) {
	var path string
	for _, name := range manifestNames {
		candidate := filepath.Join(composeDir, name)
		if _, err := os.Stat(candidate); err == nil {
			path = candidate
			break
		}
	}
	if path == "" {
		return nil, fmt.Errorf("no compose manifest found in %s", composeDir)
	}

	data, err := os.ReadFile(path) //nolint:gosec // path is derived from config
	if err != nil {
		return nil, fmt.Errorf("reading compose manifest: %w", err)
	}

	var manifest composeManifest
	if err := yaml.Unmarshal(data, &manifest); err != nil {
		return nil, fmt.Errorf("parsing compose manifest %s: %w", path, err)
	}

	names := make([]string, 0, len(manifest.Services))
	for name := range manifest.Services {
		names = append(names, name)
	}
	sort.Strings(names)

	return names, nil
}
