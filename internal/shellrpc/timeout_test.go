package shellrpc

import (
	"regexp"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("resilientTimeout", func() {
	It("expires via the silence path after base + grace with no activity", func() {
		rt := newResilientTimeout(TimeoutConfig{
			BaseTimeoutMs: 20,
			GraceMs:       20,
			AbsoluteMaxMs: 5_000,
		})
		defer rt.Stop()

		Eventually(rt.Done(), "500ms").Should(Receive(Equal(TimeoutResult{TimedOut: true, Reason: ReasonSilence})))
	})

	It("is rescued back to ACTIVE by activity observed during GRACE", func() {
		rt := newResilientTimeout(TimeoutConfig{
			BaseTimeoutMs:       20,
			ActivityExtensionMs: 200,
			GraceMs:             30,
			AbsoluteMaxMs:       5_000,
		})
		defer rt.Stop()

		// Wait for GRACE to begin, then feed activity before grace expires.
		time.Sleep(25 * time.Millisecond)
		rt.Observe(chunk{data: "still working", stream: StreamStdout})

		Consistently(rt.Done(), "40ms").ShouldNot(Receive())
	})

	It("terminates immediately when a terminate pattern matches", func() {
		rt := newResilientTimeout(TimeoutConfig{
			BaseTimeoutMs: 5_000,
			GraceMs:       5_000,
			AbsoluteMaxMs: 10_000,
			Patterns: []PatternAction{
				{Regex: regexp.MustCompile(`FATAL`), Stream: StreamBoth, Action: ActionTerminate},
			},
		})
		defer rt.Stop()

		rt.Observe(chunk{data: "FATAL: cannot continue", stream: StreamStderr})

		var result TimeoutResult
		Eventually(rt.Done()).Should(Receive(&result))
		Expect(result.Reason).To(Equal(ReasonPattern))
		Expect(result.Pattern).To(Equal("FATAL"))
	})

	It("fires via the absolute ceiling even under continuous activity", func() {
		rt := newResilientTimeout(TimeoutConfig{
			BaseTimeoutMs:       5_000,
			ActivityExtensionMs: 5_000,
			GraceMs:             5_000,
			AbsoluteMaxMs:       30,
		})
		defer rt.Stop()

		stop := make(chan struct{})
		defer close(stop)
		go func() {
			ticker := time.NewTicker(5 * time.Millisecond)
			defer ticker.Stop()
			for {
				select {
				case <-stop:
					return
				case <-ticker.C:
					rt.Observe(chunk{data: "progress", stream: StreamStdout})
				}
			}
		}()

		var result TimeoutResult
		Eventually(rt.Done(), "500ms").Should(Receive(&result))
		Expect(result.Reason).To(Equal(ReasonAbsolute))
	})

	It("never sends on Done after Stop", func() {
		rt := newResilientTimeout(TimeoutConfig{BaseTimeoutMs: 10, GraceMs: 10, AbsoluteMaxMs: 5_000})
		rt.Stop()
		Consistently(rt.Done(), "60ms").ShouldNot(Receive())
	})

	It("treats a merged chunk as matching a stream-specific pattern", func() {
		Expect(streamMatches(StreamStdout, StreamBoth)).To(BeTrue())
		Expect(streamMatches(StreamBoth, StreamStderr)).To(BeTrue())
		Expect(streamMatches(StreamStdout, StreamStderr)).To(BeFalse())
	})
})
