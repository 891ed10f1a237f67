package uv

import (
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"

	"github.com/bottles-dev/bottles/internal/pkgmanager"
)

type pyprojectDoc struct {
	Project struct {
		Name           string   `toml:"name"`
		Version        string   `toml:"version"`
		RequiresPython string   `toml:"requires-python"`
		Dependencies   []string `toml:"dependencies"`
	} `toml:"project"`
	Tool struct {
		UV struct {
			DevDependencies []string `toml:"dev-dependencies"`
		} `toml:"uv"`
	} `toml:"tool"`
}

// ParseManifest reads pyproject.toml's [project]/[tool.uv] tables and
// uv.lock, merging them into a single pkgmanager.Manifest. Locked
// packages not declared in [project] dependencies are recorded in Extra
// as "locked:<name>" -> version. A missing pyproject.toml is not an
// error; the lock-derived Extra entries are still filled in.
func ParseManifest(dir string) (pkgmanager.Manifest, error) {
	manifest := pkgmanager.Manifest{
		Dependencies:    make(map[string]string),
		DevDependencies: make(map[string]string),
		Extra:           make(map[string]string),
	}

	if data, err := os.ReadFile(filepath.Join(dir, "pyproject.toml")); err == nil {
		var doc pyprojectDoc
		if err := toml.Unmarshal(data, &doc); err != nil {
			return manifest, err
		}
		manifest.Name = doc.Project.Name
		manifest.Version = doc.Project.Version
		manifest.PythonVersion = doc.Project.RequiresPython

		for _, dep := range doc.Project.Dependencies {
			vs := pkgmanager.ParseVersionSpec(dep)
			manifest.Dependencies[pkgmanager.NormalizePackageName(firstToken(dep))] = vs.Raw
		}
		for _, dep := range doc.Tool.UV.DevDependencies {
			vs := pkgmanager.ParseVersionSpec(dep)
			manifest.DevDependencies[pkgmanager.NormalizePackageName(firstToken(dep))] = vs.Raw
		}
	}

	locked, err := ParseLock(dir)
	if err != nil {
		return manifest, err
	}
	for name, version := range locked {
		if _, declared := manifest.Dependencies[name]; !declared {
			manifest.Extra["locked:"+name] = version
		}
	}

	return manifest, nil
}

func firstToken(spec string) string {
	for i, r := range spec {
		switch r {
		case '=', '!', '<', '>', '~', '^', ';', '[', ' ':
			return spec[:i]
		}
	}
	return spec
}
