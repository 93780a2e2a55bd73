// FILE: lixenwraith/forgeconfig/discovery.go
package forgeconfig

import (
	"fmt"
	"os"
	"path/filepath"
)

// FindProjectRoot walks upward from start to the nearest directory containing
// the manifest. An empty manifestName means package.json. If no ancestor has a
// manifest, ErrManifestNotFound is returned.
func FindProjectRoot(start, manifestName string) (string, error) {
	if manifestName == "" {
		manifestName = DefaultManifestName
	}
	dir, err := filepath.Abs(start)
	if err != nil {
		return "", fmt.Errorf("failed to resolve '%s': %w", start, err)
	}

	for {
		if info, err := os.Stat(filepath.Join(dir, manifestName)); err == nil && !info.IsDir() {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf("%w: no %s in '%s' or its parents", ErrManifestNotFound, manifestName, start)
		}
		dir = parent
	}
}
