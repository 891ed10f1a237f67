package pkgmanager

import (
	"regexp"
	"strings"
)

var pep503Separator = regexp.MustCompile(`[-_.]+`)

// NormalizePackageName canonicalizes a Python package name per PEP 503:
// lowercase, with runs of "-", "_", "." collapsed to a single "-". Both
// pip and uv adapters use this so "My_Package.Name" and "my-package-name"
// compare equal.
func NormalizePackageName(name string) string {
	lower := strings.ToLower(strings.TrimSpace(name))
	return pep503Separator.ReplaceAllString(lower, "-")
}

var versionSpecPattern = regexp.MustCompile(`^([a-zA-Z0-9][a-zA-Z0-9._-]*)(\[[^\]]*\])?\s*((?:[=!<>~^]=?|\^)[^;]*)?\s*(?:;\s*(.*))?$`)

// ParseVersionSpec parses a dependency specifier of the form
// "name[extra1,extra2]>=1.0,<2.0; python_version >= \"3.10\"" into its
// structured parts. VCS/URL/file specifiers (anything not matching the
// plain name[extras]op-version shape) are kept as an opaque raw string
// rather than rejected.
func ParseVersionSpec(spec string) VersionSpec {
	raw := strings.TrimSpace(spec)
	if isOpaqueSpecifier(raw) {
		return VersionSpec{Raw: raw, IsOpaque: true}
	}

	m := versionSpecPattern.FindStringSubmatch(raw)
	if m == nil {
		return VersionSpec{Raw: raw, IsOpaque: true}
	}

	vs := VersionSpec{Raw: raw, Marker: strings.TrimSpace(m[4])}
	if m[2] != "" {
		vs.Extras = splitExtras(m[2])
	}
	if m[3] != "" {
		vs.Operator, vs.Version = splitOperator(strings.TrimSpace(m[3]))
	}
	return vs
}

func isOpaqueSpecifier(raw string) bool {
	for _, prefix := range []string{"git+", "http://", "https://", "file://", "-e ", "./", "../"} {
		if strings.HasPrefix(raw, prefix) {
			return true
		}
	}
	return strings.Contains(raw, "://")
}

func splitExtras(bracketed string) []string {
	inner := strings.Trim(bracketed, "[]")
	if inner == "" {
		return nil
	}
	parts := strings.Split(inner, ",")
	extras := make([]string, 0, len(parts))
	for _, p := range parts {
		extras = append(extras, strings.TrimSpace(p))
	}
	return extras
}

var operatorPrefixes = []string{"==", "!=", ">=", "<=", "~=", "^"}

func splitOperator(spec string) (op, version string) {
	for _, p := range operatorPrefixes {
		if strings.HasPrefix(spec, p) {
			return p, strings.TrimSpace(strings.TrimPrefix(spec, p))
		}
	}
	if strings.HasPrefix(spec, ">") || strings.HasPrefix(spec, "<") {
		return spec[:1], strings.TrimSpace(spec[1:])
	}
	return "", spec
}
