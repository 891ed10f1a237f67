package shellrpc

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Resolve", func() {
	It("returns the spec'd quick profile budgets", func() {
		cfg := Resolve(ProfileQuick, 1.0)
		Expect(cfg.BaseTimeoutMs).To(Equal(5_000))
		Expect(cfg.GraceMs).To(Equal(2_000))
		Expect(cfg.AbsoluteMaxMs).To(Equal(15_000))
	})

	It("scales every budget by the multiplier", func() {
		cfg := Resolve(ProfileInstall, 3.0)
		Expect(cfg.BaseTimeoutMs).To(Equal(90_000))
		Expect(cfg.AbsoluteMaxMs).To(Equal(1_800_000))
	})

	It("falls back to the quick profile for an unknown name", func() {
		cfg := Resolve(Profile("bogus"), 1.0)
		Expect(cfg).To(Equal(Resolve(ProfileQuick, 1.0)))
	})

	DescribeTable("CIMultiplier applies the empirically-discovered per-tool factor",
		func(tool string, expected float64) {
			Expect(CIMultiplier(true, tool, nil)).To(Equal(expected))
		},
		Entry("pip", "pip", 3.0),
		Entry("uv", "uv", 1.0),
	)

	It("ignores the tool multiplier outside CI", func() {
		Expect(CIMultiplier(false, "pip", nil)).To(Equal(1.0))
	})

	It("honors an explicit override", func() {
		Expect(CIMultiplier(true, "pip", map[string]float64{"pip": 5.0})).To(Equal(5.0))
	})
})
