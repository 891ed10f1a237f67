package pip

import (
	"bufio"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/pelletier/go-toml/v2"

	"github.com/bottles-dev/bottles/internal/pkgmanager"
)

// recognizedManifests lists the files DetectProject looks for, in
// priority order.
var recognizedManifests = []string{
	"requirements.txt",
	"pyproject.toml",
	"setup.cfg",
	"setup.py",
	"Pipfile",
}

// DetectProject implements pkgmanager.Adapter's detectProject for pip.
func DetectProject(dir string) (pkgmanager.DetectionResult, error) {
	var found []string
	for _, name := range recognizedManifests {
		if _, err := os.Stat(filepath.Join(dir, name)); err == nil {
			found = append(found, name)
		}
	}
	var lockFiles []string
	for _, name := range []string{"requirements-dev.txt", "requirements-test.txt"} {
		if _, err := os.Stat(filepath.Join(dir, name)); err == nil {
			lockFiles = append(lockFiles, name)
		}
	}

	if len(found) == 0 {
		return pkgmanager.DetectionResult{Detected: false}, nil
	}

	confidence := 0.5
	if found[0] == "requirements.txt" || found[0] == "pyproject.toml" {
		confidence = 0.9
	}
	return pkgmanager.DetectionResult{
		Detected:      true,
		Confidence:    confidence,
		ManifestFiles: found,
		LockFiles:     lockFiles,
	}, nil
}

// ParseManifest reads whichever of pyproject.toml, setup.cfg, setup.py,
// requirements.txt and requirements-dev.txt are present in dir and merges
// them into a single pkgmanager.Manifest. A Pipfile is not read.
func ParseManifest(dir string) (pkgmanager.Manifest, error) {
	fsys := os.DirFS(dir)
	manifest := pkgmanager.Manifest{
		Dependencies:    make(map[string]string),
		DevDependencies: make(map[string]string),
		Extra:           make(map[string]string),
	}

	if data, err := fs.ReadFile(fsys, "pyproject.toml"); err == nil {
		if err := mergePyproject(data, &manifest); err != nil {
			return manifest, fmt.Errorf("pip: parsing pyproject.toml: %w", err)
		}
	}
	if data, err := fs.ReadFile(fsys, "setup.cfg"); err == nil {
		mergeSetupCfg(data, &manifest)
	}
	if data, err := fs.ReadFile(fsys, "setup.py"); err == nil {
		mergeSetupPy(data, &manifest)
	}
	if reqs, err := ParseRequirementsFile(fsys, "requirements.txt", nil); err == nil {
		for _, r := range reqs {
			if r.Name == "" {
				continue
			}
			manifest.Dependencies[r.Name] = r.Spec.Raw
		}
	}
	if reqs, err := ParseRequirementsFile(fsys, "requirements-dev.txt", nil); err == nil {
		for _, r := range reqs {
			if r.Name == "" {
				continue
			}
			manifest.DevDependencies[r.Name] = r.Spec.Raw
		}
	}

	return manifest, nil
}

// pyprojectDoc mirrors the subset of the PEP 621 [project] table this
// adapter cares about. [tool.setuptools] is not read.
type pyprojectDoc struct {
	Project struct {
		Name            string   `toml:"name"`
		Version         string   `toml:"version"`
		RequiresPython  string   `toml:"requires-python"`
		Dependencies    []string `toml:"dependencies"`
		OptionalDeps    map[string][]string `toml:"optional-dependencies"`
	} `toml:"project"`
}

func mergePyproject(data []byte, manifest *pkgmanager.Manifest) error {
	var doc pyprojectDoc
	if err := toml.Unmarshal(data, &doc); err != nil {
		return err
	}
	if doc.Project.Name != "" {
		manifest.Name = doc.Project.Name
	}
	if doc.Project.Version != "" {
		manifest.Version = doc.Project.Version
	}
	if doc.Project.RequiresPython != "" {
		manifest.PythonVersion = doc.Project.RequiresPython
	}
	for _, dep := range doc.Project.Dependencies {
		vs := pkgmanager.ParseVersionSpec(dep)
		name := pkgmanager.NormalizePackageName(firstToken(dep))
		manifest.Dependencies[name] = vs.Raw
	}
	for group, deps := range doc.Project.OptionalDeps {
		for _, dep := range deps {
			vs := pkgmanager.ParseVersionSpec(dep)
			name := pkgmanager.NormalizePackageName(firstToken(dep))
			manifest.Extra["optional:"+group+":"+name] = vs.Raw
		}
	}
	return nil
}

var iniSectionHeader = regexp.MustCompile(`^\[([^\]]+)\]$`)

// mergeSetupCfg applies INI semantics by hand. setup.cfg's
// [options] install_requires is the only field this adapter needs from
// it, and a full INI library would buy nothing over a small scanner.
func mergeSetupCfg(data []byte, manifest *pkgmanager.Manifest) {
	scanner := bufio.NewScanner(strings.NewReader(string(data)))
	section := ""
	inInstallRequires := false
	for scanner.Scan() {
		line := scanner.Text()
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "#") || strings.HasPrefix(trimmed, ";") {
			continue
		}
		if m := iniSectionHeader.FindStringSubmatch(trimmed); m != nil {
			section = m[1]
			inInstallRequires = false
			continue
		}
		if section != "options" {
			continue
		}

		if strings.HasPrefix(trimmed, "install_requires") {
			inInstallRequires = true
			if idx := strings.Index(trimmed, "="); idx >= 0 {
				rest := strings.TrimSpace(trimmed[idx+1:])
				if rest != "" {
					addCfgDependency(rest, manifest)
				}
			}
			continue
		}
		if strings.HasPrefix(line, " ") || strings.HasPrefix(line, "\t") {
			if inInstallRequires {
				addCfgDependency(trimmed, manifest)
			}
			continue
		}
		inInstallRequires = false
	}
}

func addCfgDependency(line string, manifest *pkgmanager.Manifest) {
	if line == "" {
		return
	}
	vs := pkgmanager.ParseVersionSpec(line)
	name := pkgmanager.NormalizePackageName(firstToken(line))
	if name == "" {
		return
	}
	manifest.Dependencies[name] = vs.Raw
}

var setupInstallRequires = regexp.MustCompile(`install_requires\s*=\s*\[([^\]]*)\]`)
var setupNameField = regexp.MustCompile(`name\s*=\s*["']([^"']+)["']`)
var setupVersionField = regexp.MustCompile(`version\s*=\s*["']([^"']+)["']`)
var stringLiteral = regexp.MustCompile(`["']([^"']+)["']`)

// mergeSetupPy extracts literal setup(...) kwargs via regex. Function
// calls or variables that aren't string literals leave the field empty;
// setup.py is never executed to get at them.
func mergeSetupPy(data []byte, manifest *pkgmanager.Manifest) {
	text := string(data)
	if m := setupNameField.FindStringSubmatch(text); m != nil && manifest.Name == "" {
		manifest.Name = m[1]
	}
	if m := setupVersionField.FindStringSubmatch(text); m != nil && manifest.Version == "" {
		manifest.Version = m[1]
	}
	if m := setupInstallRequires.FindStringSubmatch(text); m != nil {
		for _, lit := range stringLiteral.FindAllStringSubmatch(m[1], -1) {
			addCfgDependency(lit[1], manifest)
		}
	}
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
