package environment_test

import (
	"context"
	"fmt"
	"sync"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/bottles-dev/bottles/internal/environment"
)

// fakeRunner answers `which`/`where` and `--version` probes from a fixed
// table, counting how many times each distinct command was executed.
type fakeRunner struct {
	mu    sync.Mutex
	calls map[string]int
	paths map[string]string
}

func newFakeRunner(paths map[string]string) *fakeRunner {
	return &fakeRunner{calls: map[string]int{}, paths: paths}
}

func (f *fakeRunner) Execute(_ context.Context, command string) (string, string, int, error) {
	f.mu.Lock()
	f.calls[command]++
	f.mu.Unlock()

	for tool, path := range f.paths {
		if command == "which "+tool || command == "where "+tool {
			return path, "", 0, nil
		}
		if command == fmt.Sprintf("%s --version", tool) {
			return tool + " 1.2.3", "", 0, nil
		}
	}
	return "", "not found", 1, nil
}

func (f *fakeRunner) count(command string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[command]
}

var _ = Describe("Manager", func() {
	It("marks undetected tools unavailable instead of erroring", func() {
		manager := environment.NewManager(nil)
		runner := newFakeRunner(map[string]string{"python3": "/usr/bin/python3"})

		info, err := manager.GetEnvironment(context.Background(), runner)
		Expect(err).NotTo(HaveOccurred())
		Expect(info.Tool("uv").Available).To(BeFalse())
		Expect(info.Tool("uv").Path).To(BeEmpty())
	})

	It("mirrors a resolved python3 under the python key", func() {
		manager := environment.NewManager(nil)
		runner := newFakeRunner(map[string]string{"python3": "/usr/bin/python3"})

		info, err := manager.GetEnvironment(context.Background(), runner)
		Expect(err).NotTo(HaveOccurred())
		Expect(info.Tool("python").Available).To(BeTrue())
		Expect(info.Tool("python").Path).To(Equal("/usr/bin/python3"))
	})

	It("caches the result across calls within a process", func() {
		manager := environment.NewManager(nil)
		runner := newFakeRunner(map[string]string{"pip": "/usr/bin/pip"})

		_, err := manager.GetEnvironment(context.Background(), runner)
		Expect(err).NotTo(HaveOccurred())
		firstCount := runner.count("which pip")

		_, err = manager.GetEnvironment(context.Background(), runner)
		Expect(err).NotTo(HaveOccurred())
		Expect(runner.count("which pip")).To(Equal(firstCount), "second call must not re-detect")
	})

	It("re-detects after Reset", func() {
		manager := environment.NewManager(nil)
		runner := newFakeRunner(map[string]string{"pip": "/usr/bin/pip"})

		_, err := manager.GetEnvironment(context.Background(), runner)
		Expect(err).NotTo(HaveOccurred())

		manager.Reset()

		_, err = manager.GetEnvironment(context.Background(), runner)
		Expect(err).NotTo(HaveOccurred())
		Expect(runner.count("which pip")).To(Equal(2))
	})

	It("is safe to call concurrently without detecting twice", func() {
		manager := environment.NewManager(nil)
		runner := newFakeRunner(map[string]string{"node": "/usr/bin/node"})

		var wg sync.WaitGroup
		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, _ = manager.GetEnvironment(context.Background(), runner)
			}()
		}
		wg.Wait()

		Expect(runner.count("which node")).To(Equal(1))
	})
})
