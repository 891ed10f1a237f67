// Package pkgmanager provides the shared scaffolding every package-manager
// adapter composes: command execution with venv activation and the volume
// cache env-vars merged in, manifest-reading utilities, and the typed
// error taxonomy. Exec does not touch PATH: commands see whatever PATH the
// shell already has, not one rebuilt from the detected tool paths.
// Concrete adapters (pip, uv) embed Base, so Base's methods (Manager,
// GetCachePaths, FindVenv, Exec, ...) are promoted onto each adapter,
// which adds its own tool-specific methods alongside them.
package pkgmanager

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/bottles-dev/bottles/internal/environment"
	"github.com/bottles-dev/bottles/internal/shellrpc"
	"github.com/bottles-dev/bottles/internal/volume"
)

// Runner is the subset of *shellrpc.Shell adapters depend on. Narrowed to
// an interface so tests can substitute a fake without spawning a shell.
type Runner interface {
	Run(ctx context.Context, req shellrpc.CommandRequest) (shellrpc.CommandResult, error)
}

// Adapter is the public contract every package manager satisfies.
type Adapter interface {
	Manager() string
	DetectProject(dir string) (DetectionResult, error)
	ParseManifest(dir string) (Manifest, error)
	CreateEnvironment(ctx context.Context, dir string, opts InstallOptions) error
	InstallPackages(ctx context.Context, packages []string, dir string, opts InstallOptions) error
	UninstallPackages(ctx context.Context, packages []string, dir string) error
	GetInstalledPackages(ctx context.Context, dir string) ([]InstalledPackage, error)
	GetCachePaths() map[string]string
}

// venvDirs is the order virtualenv directories are probed in: ".venv",
// "venv", "env".
var venvDirs = []string{".venv", "venv", "env"}

// Base is embedded by pip.Adapter and uv.Adapter. It owns the injected
// triple (shell, volume, environment) and the shared command-execution
// path; it never constructs its own shell, volume controller, or
// environment info — all three are handed to it by the factory that
// builds the adapter.
type Base struct {
	ManagerName string
	Shell       Runner
	Volume      *volume.Controller
	Env         environment.Info
	ProjectDir  string
}

// NewBase wires the injected triple. All four fields are required; the
// factory in internal/bottle is responsible for erroring if any is absent
// before calling this.
func NewBase(manager string, shell Runner, vol *volume.Controller, env environment.Info, projectDir string) Base {
	return Base{ManagerName: manager, Shell: shell, Volume: vol, Env: env, ProjectDir: projectDir}
}

func (b Base) Manager() string { return b.ManagerName }

func (b Base) GetCachePaths() map[string]string {
	if b.Volume == nil {
		return map[string]string{}
	}
	return b.Volume.CachePaths()
}

// FindVenv returns the absolute path of the project's virtualenv
// directory, trying .venv, venv, env in order, and whether one was found.
func (b Base) FindVenv() (string, bool) {
	for _, name := range venvDirs {
		path := filepath.Join(b.ProjectDir, name)
		if info, err := os.Stat(path); err == nil && info.IsDir() {
			return path, true
		}
	}
	return "", false
}

// ActivationPrefix returns the shell fragment that activates venvPath.
// Commands needing the project's virtualenv are prefixed with activation
// rather than invoked against a resolved binary path, since activation
// alone sets VIRTUAL_ENV and adjusts PATH the way the tool itself expects.
func (b Base) ActivationPrefix(venvPath string) string {
	if runtime.GOOS == "windows" {
		return fmt.Sprintf(". %s ; ", filepath.Join(venvPath, "Scripts", "Activate.ps1"))
	}
	return fmt.Sprintf("source %s && ", filepath.Join(venvPath, "bin", "activate"))
}

// Exec runs command through the injected shell, merging in the volume
// controller's cache env-vars before any command, and prefixing venv
// activation when one exists and activate is true.
func (b Base) Exec(ctx context.Context, command string, profile shellrpc.Profile, activate bool) (shellrpc.CommandResult, error) {
	full := command
	if activate {
		if venvPath, ok := b.FindVenv(); ok {
			full = b.ActivationPrefix(venvPath) + command
		}
	}

	req := shellrpc.CommandRequest{
		Command: full,
		Dir:     b.ProjectDir,
		Env:     b.EnvVars(),
		Timeout: shellrpc.Resolve(profile, 1.0),
	}
	res, err := b.Shell.Run(ctx, req)
	if err != nil {
		return shellrpc.CommandResult{}, b.translate(err)
	}
	return res, nil
}

// EnvVars returns the volume controller's env-var contributions
// (PIP_CACHE_DIR, UV_CACHE_DIR, ...), empty if no volume is mounted for
// this bottle.
func (b Base) EnvVars() map[string]string {
	if b.Volume == nil {
		return nil
	}
	return b.Volume.GetEnvironmentVariables()
}

// translate maps a *shellrpc.Error into the adapter-facing *pkgmanager.Error
// taxonomy so callers never need to reach past this package for the
// underlying shell error kind.
func (b Base) translate(err error) error {
	shErr, _ := err.(*shellrpc.Error)
	if shErr == nil {
		return &Error{Kind: ErrUnknown, Manager: b.ManagerName, Cause: err}
	}

	switch shErr.Kind {
	case shellrpc.ErrTimeout:
		return &Error{Kind: ErrTimeout, Manager: b.ManagerName, Cause: err}
	case shellrpc.ErrShellDead, shellrpc.ErrSpawnFailed:
		return &Error{Kind: ErrToolMissing, Manager: b.ManagerName, Cause: err}
	default:
		return &Error{Kind: ErrUnknown, Manager: b.ManagerName, Cause: err}
	}
}
