package uv

import (
	"context"
	"encoding/json"
	"regexp"
	"strings"

	"github.com/bottles-dev/bottles/internal/environment"
	"github.com/bottles-dev/bottles/internal/pkgmanager"
	"github.com/bottles-dev/bottles/internal/shellrpc"
	"github.com/bottles-dev/bottles/internal/volume"
)

// progressPatterns resets the idle timer whenever uv reports forward
// progress, the same shape pip's patterns use for its own progress lines.
var progressPatterns = regexp.MustCompile(`(?i)^(Resolved|Downloading|Installed)\b`)

// errorPatterns ends the command immediately on uv's own error line
// rather than waiting out the full timeout.
var errorPatterns = regexp.MustCompile(`^error:`)

func installTimeoutPatterns() []shellrpc.PatternAction {
	return []shellrpc.PatternAction{
		{Regex: progressPatterns, Stream: shellrpc.StreamBoth, Action: shellrpc.ActionReset},
		{Regex: errorPatterns, Stream: shellrpc.StreamBoth, Action: shellrpc.ActionTerminate},
	}
}

// Adapter is the uv package-manager adapter.
type Adapter struct {
	pkgmanager.Base
}

var _ pkgmanager.Adapter = (*Adapter)(nil)

// New wires a uv Adapter from an already-acquired shell, volume
// controller, and environment snapshot.
func New(shell pkgmanager.Runner, vol *volume.Controller, env environment.Info, projectDir string) *Adapter {
	return &Adapter{Base: pkgmanager.NewBase("uv", shell, vol, env, projectDir)}
}

func (a *Adapter) DetectProject(dir string) (pkgmanager.DetectionResult, error) {
	return DetectProject(dir)
}

func (a *Adapter) ParseManifest(dir string) (pkgmanager.Manifest, error) {
	return ParseManifest(dir)
}

// CreateEnvironment runs `uv venv` under the venv-create profile.
func (a *Adapter) CreateEnvironment(ctx context.Context, dir string, opts pkgmanager.InstallOptions) error {
	_, err := a.run(ctx, "uv venv", shellrpc.ProfileVenvCreate, false, nil)
	return err
}

// InstallPackages runs `uv add <spec...>` under the install profile.
// Never retried.
func (a *Adapter) InstallPackages(ctx context.Context, packages []string, dir string, opts pkgmanager.InstallOptions) error {
	if len(packages) == 0 {
		return nil
	}
	cmd := "uv add " + strings.Join(packages, " ")
	_, err := a.run(ctx, cmd, shellrpc.ProfileInstall, true, installTimeoutPatterns())
	return err
}

func (a *Adapter) UninstallPackages(ctx context.Context, packages []string, dir string) error {
	if len(packages) == 0 {
		return nil
	}
	cmd := "uv remove " + strings.Join(packages, " ")
	_, err := a.run(ctx, cmd, shellrpc.ProfileInstall, true, installTimeoutPatterns())
	return err
}

// Sync runs `uv sync` under the sync profile. Not part of the Adapter
// interface (sync has no pip equivalent) but exposed for callers that
// know they are talking to uv.
func (a *Adapter) Sync(ctx context.Context, dir string) error {
	_, err := a.run(ctx, "uv sync", shellrpc.ProfileSync, true, installTimeoutPatterns())
	return err
}

type uvListEntry struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// GetInstalledPackages runs `uv pip list --format=json` under the quick
// profile. It reads no manifest, so a project without pyproject.toml or
// uv.lock is listed like any other. Output that is not a JSON array (for
// instance when uv exits with an error) fails with ErrInvalidManifest
// rather than yielding an empty list.
func (a *Adapter) GetInstalledPackages(ctx context.Context, dir string) ([]pkgmanager.InstalledPackage, error) {
	return pkgmanager.RetryIdempotent(ctx, func() ([]pkgmanager.InstalledPackage, error) {
		res, err := a.run(ctx, "uv pip list --format=json", shellrpc.ProfileQuick, true, nil)
		if err != nil {
			return nil, err
		}

		var entries []uvListEntry
		if err := json.Unmarshal([]byte(res.Stdout), &entries); err != nil {
			return nil, &pkgmanager.Error{Kind: pkgmanager.ErrInvalidManifest, Manager: "uv", Cause: err}
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

func (a *Adapter) run(ctx context.Context, command string, profile shellrpc.Profile, activate bool, patterns []shellrpc.PatternAction) (shellrpc.CommandResult, error) {
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
