package environment

import (
	"context"
	"fmt"
	"runtime"
	"strings"
	"sync"

	"code.cloudfoundry.org/lager/v3"
	gocache "github.com/patrickmn/go-cache"
)

// CommandRunner is the minimal shell contract Environment Manager needs to
// probe for tools. shellrpc.Shell satisfies this without either package
// importing the other — detection is injected, never self-acquired.
type CommandRunner interface {
	Execute(ctx context.Context, command string) (stdout, stderr string, exitCode int, err error)
}

const cacheKey = "environment-info"

// Manager is the process-wide Environment Manager singleton. Tests obtain
// a fresh one via NewManager and call Reset to force re-detection; the
// package-level Default is what production code shares.
type Manager struct {
	logger lager.Logger
	cache  *gocache.Cache
	mu     sync.Mutex
}

// NewManager constructs a Manager. logger may be nil, in which case a
// no-op logger is used.
func NewManager(logger lager.Logger) *Manager {
	if logger == nil {
		logger = lager.NewLogger("environment")
	}
	return &Manager{
		logger: logger,
		cache:  gocache.New(gocache.NoExpiration, gocache.NoExpiration),
	}
}

// Default is the process-wide Environment Manager singleton: detection
// runs once per process and the result is cached for every caller after.
var Default = NewManager(nil)

// GetEnvironment returns the cached Info, running detection on first call.
// runner is used to issue `which`/`where` and version-probe commands; it is
// injected by the caller and never constructed here.
func (m *Manager) GetEnvironment(ctx context.Context, runner CommandRunner) (Info, error) {
	if cached, ok := m.cache.Get(cacheKey); ok {
		return cached.(Info), nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	// Another goroutine may have populated the cache while we waited on mu.
	if cached, ok := m.cache.Get(cacheKey); ok {
		return cached.(Info), nil
	}

	info, err := m.detect(ctx, runner)
	if err != nil {
		return Info{}, err
	}

	m.cache.Set(cacheKey, info, gocache.NoExpiration)
	return info, nil
}

// Reset clears the cached Info, forcing the next GetEnvironment call to
// re-detect. Production code never calls this; it exists for tests.
func (m *Manager) Reset() {
	m.cache.Flush()
}

func (m *Manager) detect(ctx context.Context, runner CommandRunner) (Info, error) {
	logger := m.logger.Session("detect")

	os := hostOS()
	info := Info{
		OS:    os,
		Shell: defaultShellPath(os),
		Tools: make(map[string]ToolInfo, len(DefaultTools)),
	}

	var wg sync.WaitGroup
	var mu sync.Mutex
	for _, tool := range DefaultTools {
		wg.Add(1)
		go func(tool string) {
			defer wg.Done()
			ti := m.probe(ctx, runner, logger, tool)
			mu.Lock()
			info.Tools[tool] = ti
			mu.Unlock()
		}(tool)
	}
	wg.Wait()

	// python3 and python are two names for the same interpreter on POSIX
	// systems; if only python3 resolved, mirror it under "python" so
	// adapters can look up a single canonical key.
	if py, ok := info.Tools["python"]; !ok || !py.Available {
		if py3, ok := info.Tools["python3"]; ok && py3.Available {
			info.Tools["python"] = py3
		}
	}

	return info, nil
}

// probe resolves a single tool's path and version. Failures are logged and
// recorded as unavailable — never returned as an error.
func (m *Manager) probe(ctx context.Context, runner CommandRunner, logger lager.Logger, tool string) ToolInfo {
	which := whichCommand(tool)
	stdout, _, exitCode, err := runner.Execute(ctx, which)
	if err != nil || exitCode != 0 {
		if err != nil {
			logger.Info("tool-not-found", lager.Data{"tool": tool, "error": err.Error()})
		}
		return ToolInfo{Available: false}
	}

	path := strings.TrimSpace(firstLine(stdout))
	if path == "" {
		return ToolInfo{Available: false}
	}

	version := ""
	verStdout, _, verExit, verErr := runner.Execute(ctx, fmt.Sprintf("%s --version", tool))
	if verErr == nil && verExit == 0 {
		version = strings.TrimSpace(firstLine(verStdout))
	}

	return ToolInfo{Available: true, Path: path, Version: version}
}

func firstLine(s string) string {
	if i := strings.IndexAny(s, "\r\n"); i >= 0 {
		return s[:i]
	}
	return s
}

func whichCommand(tool string) string {
	if hostOS() == OSWindows {
		return "where " + tool
	}
	return "which " + tool
}

func defaultShellPath(os OS) string {
	if os == OSWindows {
		return "powershell.exe"
	}
	return "/bin/bash"
}

func hostOS() OS {
	switch runtime.GOOS {
	case "windows":
		return OSWindows
	case "darwin":
		return OSMacOS
	default:
		return OSLinux
	}
}

