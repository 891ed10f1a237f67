// Package pip implements the pip/venv package-manager adapter.
package pip

import (
	"bufio"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"

	"github.com/bottles-dev/bottles/internal/pkgmanager"
)

// Requirement is one parsed line of a requirements.txt file.
type Requirement struct {
	Name    string
	Spec    pkgmanager.VersionSpec
	Extras  []string
	Marker  string
	Raw     string
}

// ParseRequirementsFile parses a requirements.txt-family file rooted at
// dir, following "-r other.txt" includes recursively. seen guards against
// include cycles; callers pass nil and a fresh set is allocated.
func ParseRequirementsFile(fsys fs.FS, path string, seen map[string]bool) ([]Requirement, error) {
	if seen == nil {
		seen = make(map[string]bool)
	}
	clean := filepath.Clean(path)
	if seen[clean] {
		return nil, nil
	}
	seen[clean] = true

	f, err := fsys.Open(clean)
	if err != nil {
		return nil, fmt.Errorf("pip: opening %s: %w", clean, err)
	}
	defer f.Close()

	var reqs []Requirement
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		if rest, ok := cutPrefix(line, "-r "); ok {
			includePath := filepath.Join(filepath.Dir(clean), strings.TrimSpace(rest))
			included, err := ParseRequirementsFile(fsys, includePath, seen)
			if err != nil {
				return nil, err
			}
			reqs = append(reqs, included...)
			continue
		}
		if rest, ok := cutPrefix(line, "--requirement "); ok {
			includePath := filepath.Join(filepath.Dir(clean), strings.TrimSpace(rest))
			included, err := ParseRequirementsFile(fsys, includePath, seen)
			if err != nil {
				return nil, err
			}
			reqs = append(reqs, included...)
			continue
		}

		reqs = append(reqs, parseRequirementLine(line))
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("pip: scanning %s: %w", clean, err)
	}
	return reqs, nil
}

func parseRequirementLine(line string) Requirement {
	raw := line
	editable := false
	if rest, ok := cutPrefix(line, "-e "); ok {
		editable = true
		line = strings.TrimSpace(rest)
	}

	spec := pkgmanager.ParseVersionSpec(line)
	if editable || spec.IsOpaque {
		return Requirement{Raw: raw, Spec: spec}
	}

	name := spec.Raw
	if idx := strings.IndexAny(name, "=!<>~^;["); idx >= 0 {
		name = name[:idx]
	}
	name = strings.TrimSpace(name)

	return Requirement{
		Name:   pkgmanager.NormalizePackageName(name),
		Spec:   spec,
		Extras: spec.Extras,
		Marker: spec.Marker,
		Raw:    raw,
	}
}

func cutPrefix(s, prefix string) (string, bool) {
	if strings.HasPrefix(s, prefix) {
		return s[len(prefix):], true
	}
	return "", false
}
