// Package uv implements the uv package-manager adapter.
package uv

import (
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"

	"github.com/bottles-dev/bottles/internal/pkgmanager"
)

// recognizedManifests lists the files DetectProject looks for.
var recognizedManifests = []string{"pyproject.toml", "uv.lock"}

// DetectProject implements pkgmanager.Adapter's detectProject for uv.
func DetectProject(dir string) (pkgmanager.DetectionResult, error) {
	var found []string
	var lockFiles []string
	for _, name := range recognizedManifests {
		if _, err := os.Stat(filepath.Join(dir, name)); err == nil {
			if name == "uv.lock" {
				lockFiles = append(lockFiles, name)
			} else {
				found = append(found, name)
			}
		}
	}
	if len(found) == 0 && len(lockFiles) == 0 {
		return pkgmanager.DetectionResult{Detected: false}, nil
	}

	confidence := 0.6
	if hasToolUV(dir) {
		confidence = 0.95
	}
	return pkgmanager.DetectionResult{
		Detected:      true,
		Confidence:    confidence,
		ManifestFiles: found,
		LockFiles:     lockFiles,
	}, nil
}

func hasToolUV(dir string) bool {
	data, err := os.ReadFile(filepath.Join(dir, "pyproject.toml"))
	if err != nil {
		return false
	}
	var doc struct {
		Tool struct {
			UV map[string]any `toml:"uv"`
		} `toml:"tool"`
	}
	if err := toml.Unmarshal(data, &doc); err != nil {
		return false
	}
	return doc.Tool.UV != nil
}

// lockPackage is one entry in uv.lock's [[package]] array. Each
// package's dependencies may appear as bare strings or tables with a
// name and optional marker, so they are decoded as plain TOML values
// (string or map[string]any); rawDependency below accepts both shapes.
type lockPackage struct {
	Name         string `toml:"name"`
	Version      string `toml:"version"`
	Dependencies []any  `toml:"dependencies"`
}

type lockDoc struct {
	Package []lockPackage `toml:"package"`
}

// rawDependency is built by UnmarshalTOML from one decoded lockPackage
// dependency value: either a bare TOML string ("requests") or a table
// ({name = "requests", marker = "..."}) — uv.lock mixes both shapes
// within the same dependency array.
type rawDependency struct {
	Name   string
	Marker string
}

func (r *rawDependency) UnmarshalTOML(value any) error {
	switch v := value.(type) {
	case string:
		r.Name = v
	case map[string]any:
		if name, ok := v["name"].(string); ok {
			r.Name = name
		}
		if marker, ok := v["marker"].(string); ok {
			r.Marker = marker
		}
	}
	return nil
}

// ParseLock reads uv.lock in dir. A missing lock file is not an error —
// ParseLock returns an empty dependency map so listing still works
// against a project that has never been locked.
func ParseLock(dir string) (map[string]string, error) {
	data, err := os.ReadFile(filepath.Join(dir, "uv.lock"))
	if os.IsNotExist(err) {
		return map[string]string{}, nil
	}
	if err != nil {
		return nil, err
	}

	var doc lockDoc
	if err := toml.Unmarshal(data, &doc); err != nil {
		return nil, err
	}

	deps := make(map[string]string, len(doc.Package))
	for _, pkg := range doc.Package {
		deps[pkgmanager.NormalizePackageName(pkg.Name)] = pkg.Version
	}
	return deps, nil
}
