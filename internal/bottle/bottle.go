// Package bottle implements the Bottle Factory: a Bottle, realized as a
// struct owning a borrowed shell handle and an owned volume controller,
// bound to a package-manager adapter.
package bottle

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/bottles-dev/bottles/internal/environment"
	"github.com/bottles-dev/bottles/internal/pkgmanager"
	"github.com/bottles-dev/bottles/internal/pkgmanager/pip"
	"github.com/bottles-dev/bottles/internal/pkgmanager/uv"
	"github.com/bottles-dev/bottles/internal/shellrpc"
	"github.com/bottles-dev/bottles/internal/volume"
)

// Manager names a supported package manager.
type Manager string

const (
	ManagerPip Manager = "pip"
	ManagerUV  Manager = "uv"
)

// Dependencies is the triple a Bottle is built from. Create errors if any
// field is the zero value rather than silently constructing its own —
// the factory never guesses at a missing dependency.
type Dependencies struct {
	Shell      pkgmanager.Runner
	Volume     *volume.Controller
	Env        environment.Info
	ProjectDir string
}

// Bottle ties a bottle id, project dir, and manager to the adapter bound
// to the injected triple, plus the resources this bottle must release
// on Dispose.
type Bottle struct {
	ID         string
	ProjectDir string
	Manager    Manager
	Adapter    pkgmanager.Adapter

	pool   *shellrpc.Pool
	volume *volume.Controller
}

// Create wires an Adapter from an explicitly supplied Dependencies value.
// If any dependency is absent the factory errors; it never silently
// constructs its own shell, volume controller, or environment info.
func Create(manager Manager, deps Dependencies) (*Bottle, error) {
	if deps.Shell == nil {
		return nil, fmt.Errorf("bottle: create(%s): Shell dependency is required", manager)
	}
	if deps.Volume == nil {
		return nil, fmt.Errorf("bottle: create(%s): Volume dependency is required", manager)
	}
	if deps.ProjectDir == "" {
		return nil, fmt.Errorf("bottle: create(%s): ProjectDir is required", manager)
	}
	if deps.Env.OS == "" && deps.Env.Shell == "" && len(deps.Env.Tools) == 0 {
		return nil, fmt.Errorf("bottle: create(%s): Env dependency is required", manager)
	}

	adapter, err := newAdapter(manager, deps.Shell, deps.Volume, deps.Env, deps.ProjectDir)
	if err != nil {
		return nil, err
	}

	return &Bottle{
		ID:         uuid.NewString(),
		ProjectDir: deps.ProjectDir,
		Manager:    manager,
		Adapter:    adapter,
	}, nil
}

// CreateWithDefaults is the convenience constructor: it acquires a shell
// from the process-wide pool, instantiates a volume controller rooted at
// volume.DefaultCacheRoot, and asks the Environment Manager for cached
// info, then wires an Adapter exactly as Create does.
func CreateWithDefaults(ctx context.Context, manager Manager, projectDir string) (*Bottle, error) {
	id := uuid.NewString()

	sh, err := shellrpc.Default().Acquire(id)
	if err != nil {
		return nil, fmt.Errorf("bottle: acquiring shell for %s: %w", id, err)
	}

	vol := volume.NewController(volume.DefaultCacheRoot, id)
	if err := vol.Initialize(); err != nil {
		_ = shellrpc.Default().Release(id)
		return nil, fmt.Errorf("bottle: initializing volume for %s: %w", id, err)
	}
	if _, err := vol.Mount(string(manager)); err != nil {
		_ = shellrpc.Default().Release(id)
		return nil, fmt.Errorf("bottle: mounting %s cache: %w", manager, err)
	}

	env, err := environment.Default.GetEnvironment(ctx, sh)
	if err != nil {
		_ = shellrpc.Default().Release(id)
		return nil, fmt.Errorf("bottle: detecting environment: %w", err)
	}

	adapter, err := newAdapter(manager, sh, vol, env, projectDir)
	if err != nil {
		_ = shellrpc.Default().Release(id)
		return nil, err
	}

	return &Bottle{
		ID:         id,
		ProjectDir: projectDir,
		Manager:    manager,
		Adapter:    adapter,
		pool:       shellrpc.Default(),
		volume:     vol,
	}, nil
}

// Dispose hands the shell to Pool.Release, which closes it and evicts it
// from the pool (it is not kept for reuse), and unmounts the bottle's
// volumes, leaving their directories on disk. Safe to call on a Bottle created via Create, where pool/volume
// cleanup ownership was never taken — Dispose is then a no-op beyond the
// caller's own resources.
func (b *Bottle) Dispose() error {
	var firstErr error
	if b.volume != nil {
		if err := b.volume.Cleanup(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if b.pool != nil {
		if err := b.pool.Release(b.ID); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func newAdapter(manager Manager, shell pkgmanager.Runner, vol *volume.Controller, env environment.Info, projectDir string) (pkgmanager.Adapter, error) {
	switch manager {
	case ManagerPip:
		return pip.New(shell, vol, env, projectDir), nil
	case ManagerUV:
		return uv.New(shell, vol, env, projectDir), nil
	default:
		return nil, fmt.Errorf("bottle: unknown package manager %q", manager)
	}
}
