package shellrpc

import (
	"sync"

	"code.cloudfoundry.org/lager/v3"

	"github.com/bottles-dev/bottles/internal/config"
)

// DefaultPoolSize is the maximum number of live shells a Pool holds before
// Acquire for a new key must wait for a Release.
const DefaultPoolSize = 5

// Pool hands out Shells keyed by an arbitrary caller-chosen string
// (typically a bottle id). Acquiring the same key twice returns the same
// Shell — bottle.CreateWithDefaults keys by bottle id, so everything
// wired into one bottle shares one shell rather than spawning one per
// call.
type Pool struct {
	logger  lager.Logger
	maxSize int
	spawnFn func(key string, logger lager.Logger) (*Shell, error)

	mu      sync.Mutex
	shells  map[string]*Shell
	waiters []chan struct{}
}

var (
	defaultPoolOnce sync.Once
	defaultPool     *Pool
)

// Default returns the process-wide Pool, created lazily with the size
// from SHELL_POOL_SIZE (DefaultPoolSize when unset or unparsable). Tests
// that need a clean pool should construct their own via NewPool rather
// than mutating Default.
func Default() *Pool {
	defaultPoolOnce.Do(func() {
		size := DefaultPoolSize
		if settings, err := config.Load(); err == nil {
			size = settings.ShellPoolSize
		}
		defaultPool = NewPool(size, nil)
	})
	return defaultPool
}

// NewPool creates a Pool capped at maxSize concurrent shells. A nil logger
// defaults to a no-op-sink lager.Logger named "shellrpc".
func NewPool(maxSize int, logger lager.Logger) *Pool {
	if maxSize <= 0 {
		maxSize = DefaultPoolSize
	}
	if logger == nil {
		logger = lager.NewLogger("shellrpc")
	}
	return &Pool{
		logger:  logger,
		maxSize: maxSize,
		spawnFn: spawn,
		shells:  make(map[string]*Shell),
	}
}

// Acquire returns the Shell registered under key, spawning one if none
// exists yet. If the pool is already at maxSize and key is new, Acquire
// blocks until a slot frees via Release/Clear.
func (p *Pool) Acquire(key string) (*Shell, error) {
	p.mu.Lock()
	for {
		if sh, ok := p.shells[key]; ok {
			p.mu.Unlock()
			return sh, nil
		}
		if len(p.shells) < p.maxSize {
			break
		}
		wait := make(chan struct{})
		p.waiters = append(p.waiters, wait)
		p.mu.Unlock()
		<-wait
		p.mu.Lock()
	}

	sh, err := p.spawnFn(key, p.logger.Session("shell", lager.Data{"key": key}))
	if err != nil {
		p.mu.Unlock()
		return nil, err
	}
	p.shells[key] = sh
	p.mu.Unlock()
	return sh, nil
}

// Release closes and evicts the shell registered under key, if any, and
// wakes one waiter blocked in Acquire.
func (p *Pool) Release(key string) error {
	p.mu.Lock()
	sh, ok := p.shells[key]
	if ok {
		delete(p.shells, key)
	}
	p.notifyOneWaiterLocked()
	p.mu.Unlock()

	if !ok {
		return nil
	}
	return sh.Close()
}

// Clear closes and evicts every shell in the pool.
func (p *Pool) Clear() error {
	p.mu.Lock()
	shells := p.shells
	p.shells = make(map[string]*Shell)
	waiters := p.waiters
	p.waiters = nil
	p.mu.Unlock()

	for _, w := range waiters {
		close(w)
	}

	var firstErr error
	for _, sh := range shells {
		if err := sh.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Size reports the number of shells currently held.
func (p *Pool) Size() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.shells)
}

func (p *Pool) notifyOneWaiterLocked() {
	if len(p.waiters) == 0 {
		return
	}
	w := p.waiters[0]
	p.waiters = p.waiters[1:]
	close(w)
}
