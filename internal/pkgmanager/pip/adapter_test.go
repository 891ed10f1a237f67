package pip_test

import (
	"context"
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/bottles-dev/bottles/internal/environment"
	"github.com/bottles-dev/bottles/internal/pkgmanager"
	"github.com/bottles-dev/bottles/internal/pkgmanager/pip"
	"github.com/bottles-dev/bottles/internal/shellrpc"
)

// fakeRunner records every command it was asked to run and returns a
// pre-scripted CommandResult, so adapter tests exercise command
// construction without a real shell.
type fakeRunner struct {
	commands []string
	result   shellrpc.CommandResult
	err      error
}

func (f *fakeRunner) Run(ctx context.Context, req shellrpc.CommandRequest) (shellrpc.CommandResult, error) {
	f.commands = append(f.commands, req.Command)
	return f.result, f.err
}

var _ = Describe("Adapter", func() {
	var (
		dir     string
		runner  *fakeRunner
		adapter *pip.Adapter
	)

	BeforeEach(func() {
		var err error
		dir, err = os.MkdirTemp("", "pip-adapter-")
		Expect(err).NotTo(HaveOccurred())
		runner = &fakeRunner{}
		adapter = pip.New(runner, nil, environment.Info{Tools: map[string]environment.ToolInfo{
			"python3": {Available: true, Path: "/usr/bin/python3"},
		}}, dir)
	})

	AfterEach(func() {
		os.RemoveAll(dir)
	})

	It("creates a venv with python -m venv .venv", func() {
		Expect(adapter.CreateEnvironment(context.Background(), dir, pkgmanager.InstallOptions{})).To(Succeed())
		Expect(runner.commands).To(HaveLen(1))
		Expect(runner.commands[0]).To(ContainSubstring("python3 -m venv .venv"))
	})

	It("activates the venv before pip install when one exists", func() {
		Expect(os.MkdirAll(filepath.Join(dir, ".venv", "bin"), 0o755)).To(Succeed())

		Expect(adapter.InstallPackages(context.Background(), []string{"requests"}, dir, pkgmanager.InstallOptions{})).To(Succeed())
		Expect(runner.commands).To(HaveLen(1))
		Expect(runner.commands[0]).To(ContainSubstring("source"))
		Expect(runner.commands[0]).To(ContainSubstring("pip install requests"))
	})

	It("parses pip list --format=json output", func() {
		runner.result = shellrpc.CommandResult{Stdout: `[{"name":"Requests","version":"2.31.0"}]`}

		pkgs, err := adapter.GetInstalledPackages(context.Background(), dir)
		Expect(err).NotTo(HaveOccurred())
		Expect(pkgs).To(HaveLen(1))
		Expect(pkgs[0].Name).To(Equal("requests"))
		Expect(pkgs[0].Version).To(Equal("2.31.0"))
	})

	It("does nothing for an empty install list", func() {
		Expect(adapter.InstallPackages(context.Background(), nil, dir, pkgmanager.InstallOptions{})).To(Succeed())
		Expect(runner.commands).To(BeEmpty())
	})
})
