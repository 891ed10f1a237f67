// Package volume manages the per-bottle cache directories that give pip
// and uv a warm, persistent cache across bottle lifecycles: a cache root
// subdivided by bottle id and then by manager.
package volume

import (
	"os"
	"path/filepath"
	"sync"
)

// Mount is a manager-tagged cache directory plus the environment variable
// it contributes to the shell.
type Mount struct {
	Manager  string
	Path     string
	Mounted  bool
	EnvKey   string
	EnvValue string
}

// envKeys maps a package manager name to the environment variable its
// cache directory is injected under.
var envKeys = map[string]string{
	"pip": "PIP_CACHE_DIR",
	"uv":  "UV_CACHE_DIR",
}

// DefaultCacheRoot is the on-disk layout root used when no cache root is
// supplied explicitly.
const DefaultCacheRoot = ".bottles-cache"

// Controller is the per-bottle Volume Controller. It is single-writer
// within a bottle; cross-bottle sharing of CacheRoot is safe because each
// bottle gets a unique BottleID subdirectory.
type Controller struct {
	mu        sync.Mutex
	cacheRoot string
	bottleID  string
	mounts    map[string]*Mount
}

// NewController creates a Controller rooted at cacheRoot/bottleID. If
// cacheRoot is empty, DefaultCacheRoot is used. Managers are never
// auto-detected here; callers pass the set of managers they intend to
// mount.
func NewController(cacheRoot, bottleID string) *Controller {
	if cacheRoot == "" {
		cacheRoot = DefaultCacheRoot
	}
	return &Controller{
		cacheRoot: cacheRoot,
		bottleID:  bottleID,
		mounts:    make(map[string]*Mount),
	}
}

// Initialize idempotently creates the bottle's cache root directory.
func (c *Controller) Initialize() error {
	root := c.bottleRoot()
	if err := os.MkdirAll(root, 0o755); err != nil {
		return &Error{Kind: ErrPermissionDenied, Path: root, Cause: err}
	}
	return nil
}

// Mount creates (if absent) <cacheRoot>/<bottleId>/<manager> and records
// the mount. Calling Mount twice for the same manager returns the existing
// Mount rather than erroring — mounting is idempotent by design.
func (c *Controller) Mount(manager string) (Mount, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if existing, ok := c.mounts[manager]; ok {
		existing.Mounted = true
		return *existing, nil
	}

	path := filepath.Join(c.bottleRoot(), manager)
	if err := os.MkdirAll(path, 0o755); err != nil {
		return Mount{}, &Error{Kind: ErrPermissionDenied, Path: path, Cause: err}
	}

	envKey := envKeys[manager]
	mount := &Mount{
		Manager:  manager,
		Path:     path,
		Mounted:  true,
		EnvKey:   envKey,
		EnvValue: path,
	}
	c.mounts[manager] = mount
	return *mount, nil
}

// Unmount marks the manager's mount as unmounted without deleting the
// directory — cache warmth survives across bottle lifecycles.
func (c *Controller) Unmount(manager string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	mount, ok := c.mounts[manager]
	if !ok {
		return &Error{Kind: ErrNotFound, Path: manager}
	}
	mount.Mounted = false
	return nil
}

// Clear removes the on-disk contents of a single manager's cache
// directory, recreating an empty directory in its place.
func (c *Controller) Clear(manager string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	mount, ok := c.mounts[manager]
	if !ok {
		return &Error{Kind: ErrNotFound, Path: manager}
	}
	if err := os.RemoveAll(mount.Path); err != nil {
		return &Error{Kind: ErrPermissionDenied, Path: mount.Path, Cause: err}
	}
	return os.MkdirAll(mount.Path, 0o755)
}

// ClearAll clears every mounted manager's cache directory.
func (c *Controller) ClearAll() error {
	c.mu.Lock()
	managers := make([]string, 0, len(c.mounts))
	for m := range c.mounts {
		managers = append(managers, m)
	}
	c.mu.Unlock()

	for _, m := range managers {
		if err := c.Clear(m); err != nil {
			return err
		}
	}
	return nil
}

// Cleanup unmounts every manager. Directories are left on disk for warm
// reuse by a future bottle bound to the same bottleID.
func (c *Controller) Cleanup() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, mount := range c.mounts {
		mount.Mounted = false
	}
	return nil
}

// GetEnvironmentVariables returns the union of env-var contributions
// across all currently-mounted managers, for the adapter to merge into the
// shell environment before any command. After Cleanup() this returns an
// empty map.
func (c *Controller) GetEnvironmentVariables() map[string]string {
	c.mu.Lock()
	defer c.mu.Unlock()

	vars := make(map[string]string)
	for _, mount := range c.mounts {
		if mount.Mounted && mount.EnvKey != "" {
			vars[mount.EnvKey] = mount.EnvValue
		}
	}
	return vars
}

// CachePaths returns manager -> cache directory path for every mount,
// regardless of mounted state, backing Adapter.getCachePaths().
func (c *Controller) CachePaths() map[string]string {
	c.mu.Lock()
	defer c.mu.Unlock()

	paths := make(map[string]string, len(c.mounts))
	for manager, mount := range c.mounts {
		paths[manager] = mount.Path
	}
	return paths
}

func (c *Controller) bottleRoot() string {
	return filepath.Join(c.cacheRoot, c.bottleID)
}
