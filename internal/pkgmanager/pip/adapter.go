package pip

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/bottles-dev/bottles/internal/environment"
	"github.com/bottles-dev/bottles/internal/pkgmanager"
	"github.com/bottles-dev/bottles/internal/shellrpc"
	"github.com/bottles-dev/bottles/internal/volume"
)

// progressPatterns resets the idle timer whenever pip reports forward
// progress, so a slow download never trips the timeout on its own.
var progressPatterns = regexp.MustCompile(`(?i)^(Collecting|Downloading|Installing|Building wheel)\b`)

// errorPatterns ends the command immediately on a line pip only emits
// once it has already given up, rather than waiting out the full timeout.
var errorPatterns = regexp.MustCompile(`(?i)(ERROR:|Could not find a version|Failed building wheel)`)

func installTimeoutPatterns() []shellrpc.PatternAction {
	return []shellrpc.PatternAction{
		{Regex: progressPatterns, Stream: shellrpc.StreamBoth, Action: shellrpc.ActionReset},
		{Regex: errorPatterns, Stream: shellrpc.StreamBoth, Action: shellrpc.ActionTerminate},
	}
}

// Adapter is the pip/venv package-manager adapter. It embeds
// pkgmanager.Base for the shared command-execution path rather than
// reimplementing it.
type Adapter struct {
	pkgmanager.Base
}

var _ pkgmanager.Adapter = (*Adapter)(nil)

// New wires a pip Adapter from an already-acquired shell, volume
// controller, and environment snapshot.
func New(shell pkgmanager.Runner, vol *volume.Controller, env environment.Info, projectDir string) *Adapter {
	return &Adapter{Base: pkgmanager.NewBase("pip", shell, vol, env, projectDir)}
}

func (a *Adapter) DetectProject(dir string) (pkgmanager.DetectionResult, error) {
	return DetectProject(dir)
}

func (a *Adapter) ParseManifest(dir string) (pkgmanager.Manifest, error) {
	return ParseManifest(dir)
}

// CreateEnvironment runs `python -m venv .venv` under the venv-create
// profile.
func (a *Adapter) CreateEnvironment(ctx context.Context, dir string, opts pkgmanager.InstallOptions) error {
	python := "python3"
	if tool := a.Env.Tool("python3"); !tool.Available {
		python = "python"
	}
	_, err := a.runWithPatterns(ctx, fmt.Sprintf("%s -m venv .venv", python), shellrpc.ProfileVenvCreate, false, nil)
	return err
}

// InstallPackages runs `pip install <spec...>` under activation. Never
// retried — installs are not idempotent.
func (a *Adapter) InstallPackages(ctx context.Context, packages []string, dir string, opts pkgmanager.InstallOptions) error {
	if len(packages) == 0 {
		return nil
	}
	cmd := fmt.Sprintf("pip install %s", strings.Join(packages, " "))
	_, err := a.runWithPatterns(ctx, cmd, shellrpc.ProfileInstall, true, installTimeoutPatterns())
	return err
}

func (a *Adapter) UninstallPackages(ctx context.Context, packages []string, dir string) error {
	if len(packages) == 0 {
		return nil
	}
	cmd := fmt.Sprintf("pip uninstall -y %s", strings.Join(packages, " "))
	_, err := a.runWithPatterns(ctx, cmd, shellrpc.ProfileInstall, true, installTimeoutPatterns())
	return err
}

type pipListEntry struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// GetInstalledPackages runs `pip list --format=json` under the quick
// profile and maps results through NormalizePackageName so they compare
// consistently with manifest entries.
func (a *Adapter) GetInstalledPackages(ctx context.Context, dir string) ([]pkgmanager.InstalledPackage, error) {
	return pkgmanager.RetryIdempotent(ctx, func() ([]pkgmanager.InstalledPackage, error) {
		res, err := a.runWithPatterns(ctx, "pip list --format=json", shellrpc.ProfileQuick, true, nil)
		if err != nil {
			return nil, err
		}

		var entries []pipListEntry
		if err := json.Unmarshal([]byte(res.Stdout), &entries); err != nil {
			return nil, &pkgmanager.Error{Kind: pkgmanager.ErrInvalidManifest, Manager: "pip", Cause: err}
		}

		venvPath, _ := a.FindVenv()
		pkgs := make([]pkgmanager.InstalledPackage, 0, len(entries))
		for _, e := range entries {
			pkgs = append(pkgs, pkgmanager.InstalledPackage{
				Name:     pkgmanager.NormalizePackageName(e.Name),
				Version:  e.Version,
				Location: sitePackagesPath(venvPath),
			})
		}
		return pkgs, nil
	})
}

func sitePackagesPath(venvPath string) string {
	if venvPath == "" {
		return ""
	}
	return venvPath + "/lib/site-packages"
}

// runWithPatterns is Base.Exec plus an install/uninstall-specific pattern
// override, since Base.Exec's shellrpc.Resolve call carries no patterns
// of its own — pattern lists are tool-specific, so they live with the
// adapter rather than the generic timeout profile. When patterns are
// given, a shell error is returned as is, not translated into
// *pkgmanager.Error the way Exec does.
func (a *Adapter) runWithPatterns(ctx context.Context, command string, profile shellrpc.Profile, activate bool, patterns []shellrpc.PatternAction) (shellrpc.CommandResult, error) {
	if patterns == nil {
		return a.Exec(ctx, command, profile, activate)
	}

	full := command
	if activate {
		if venvPath, ok := a.FindVenv(); ok {
			full = a.ActivationPrefix(venvPath) + command
		}
	}
	cfg := shellrpc.Resolve(profile, 1.0)
	cfg.Patterns = patterns

	req := shellrpc.CommandRequest{
		Command: full,
		Dir:     a.ProjectDir,
		Env:     a.EnvVars(),
		Timeout: cfg,
	}
	return a.Shell.Run(ctx, req)
}
