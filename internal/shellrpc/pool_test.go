package shellrpc

import (
	"io"
	"sync/atomic"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"code.cloudfoundry.org/lager/v3"
	"code.cloudfoundry.org/lager/v3/lagertest"
)

var _ = Describe("Pool", func() {
	It("returns the same Shell for repeated Acquire calls with the same key", func() {
		var spawnCount int32
		p := NewPool(2, lagertest.NewTestLogger("pool-test"))
		p.spawnFn = func(key string, logger lager.Logger) (*Shell, error) {
			atomic.AddInt32(&spawnCount, 1)
			fp := newFakePty(func(written string, out *io.PipeWriter) { go out.Close() })
			return newShell(key, fp, logger, false), nil
		}

		first, err := p.Acquire("bottle-a")
		Expect(err).NotTo(HaveOccurred())
		second, err := p.Acquire("bottle-a")
		Expect(err).NotTo(HaveOccurred())

		Expect(first).To(BeIdenticalTo(second))
		Expect(atomic.LoadInt32(&spawnCount)).To(Equal(int32(1)))
	})

	It("wakes a waiter once a slot frees via Release", func() {
		p := NewPool(1, lagertest.NewTestLogger("pool-test"))
		p.spawnFn = func(key string, logger lager.Logger) (*Shell, error) {
			fp := newFakePty(func(written string, out *io.PipeWriter) { go out.Close() })
			return newShell(key, fp, logger, false), nil
		}

		_, err := p.Acquire("a")
		Expect(err).NotTo(HaveOccurred())

		acquired := make(chan struct{})
		go func() {
			defer GinkgoRecover()
			_, err := p.Acquire("b")
			Expect(err).NotTo(HaveOccurred())
			close(acquired)
		}()

		Consistently(acquired, "30ms").ShouldNot(BeClosed())
		Expect(p.Release("a")).To(Succeed())
		Eventually(acquired, "200ms").Should(BeClosed())
	})

	It("reports current size and clears all shells", func() {
		p := NewPool(3, lagertest.NewTestLogger("pool-test"))
		p.spawnFn = func(key string, logger lager.Logger) (*Shell, error) {
			fp := newFakePty(func(written string, out *io.PipeWriter) { go out.Close() })
			return newShell(key, fp, logger, false), nil
		}

		_, _ = p.Acquire("a")
		_, _ = p.Acquire("b")
		Expect(p.Size()).To(Equal(2))

		Expect(p.Clear()).To(Succeed())
		Expect(p.Size()).To(Equal(0))
	})
})
