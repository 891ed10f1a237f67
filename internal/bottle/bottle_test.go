package bottle_test

import (
	"context"
	"os"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/bottles-dev/bottles/internal/bottle"
	"github.com/bottles-dev/bottles/internal/environment"
	"github.com/bottles-dev/bottles/internal/shellrpc"
	"github.com/bottles-dev/bottles/internal/volume"
)

type fakeRunner struct{}

func (fakeRunner) Run(ctx context.Context, req shellrpc.CommandRequest) (shellrpc.CommandResult, error) {
	return shellrpc.CommandResult{ExitCode: 0}, nil
}

var _ = Describe("Create", func() {
	var dir string

	BeforeEach(func() {
		var err error
		dir, err = os.MkdirTemp("", "bottle-")
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		os.RemoveAll(dir)
	})

	It("errors when no Shell dependency is supplied", func() {
		_, err := bottle.Create(bottle.ManagerPip, bottle.Dependencies{
			Volume:     volume.NewController(dir, "b1"),
			ProjectDir: dir,
		})
		Expect(err).To(HaveOccurred())
		Expect(err.Error()).To(ContainSubstring("Shell"))
	})

	It("errors when no Volume dependency is supplied", func() {
		_, err := bottle.Create(bottle.ManagerPip, bottle.Dependencies{
			Shell:      fakeRunner{},
			ProjectDir: dir,
		})
		Expect(err).To(HaveOccurred())
		Expect(err.Error()).To(ContainSubstring("Volume"))
	})

	It("errors on an unknown manager", func() {
		_, err := bottle.Create(bottle.Manager("conda"), bottle.Dependencies{
			Shell:      fakeRunner{},
			Volume:     volume.NewController(dir, "b1"),
			Env:        environment.Info{OS: environment.OSLinux},
			ProjectDir: dir,
		})
		Expect(err).To(HaveOccurred())
	})

	It("wires a pip Adapter end to end given a full Dependencies value", func() {
		b, err := bottle.Create(bottle.ManagerPip, bottle.Dependencies{
			Shell:      fakeRunner{},
			Volume:     volume.NewController(dir, "b1"),
			Env:        environment.Info{OS: environment.OSLinux},
			ProjectDir: dir,
		})
		Expect(err).NotTo(HaveOccurred())
		Expect(b.Adapter).NotTo(BeNil())
		Expect(b.Manager).To(Equal(bottle.ManagerPip))
		Expect(b.ID).NotTo(BeEmpty())
	})
})
