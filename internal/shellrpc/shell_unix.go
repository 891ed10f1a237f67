//go:build !windows

package shellrpc

import (
	"io"
	"os"
	"os/exec"
	"syscall"

	"code.cloudfoundry.org/lager/v3"
	"github.com/creack/pty"
)

// unixPty backs a Shell with a bash process attached to a pseudo-terminal,
// matching interactive tool behavior (progress bars, color output) that
// pip and uv adjust based on isatty checks.
type unixPty struct {
	cmd *exec.Cmd
	f   *os.File
}

func spawn(key string, logger lager.Logger) (*Shell, error) {
	cmd := exec.Command("bash", "--noprofile", "--norc", "-i")
	f, err := pty.Start(cmd)
	if err != nil {
		return nil, &Error{Kind: ErrSpawnFailed, Cause: err}
	}

	up := &unixPty{cmd: cmd, f: f}
	return newShell(key, up, logger, false), nil
}

func (u *unixPty) Write(p []byte) (int, error) { return u.f.Write(p) }
func (u *unixPty) Stdout() io.Reader            { return u.f }
func (u *unixPty) Stderr() io.Reader            { return u.f } // pty merges stdout/stderr onto one fd

func (u *unixPty) Alive() bool {
	if u.cmd.ProcessState != nil {
		return false
	}
	if u.cmd.Process == nil {
		return false
	}
	return u.cmd.Process.Signal(syscall.Signal(0)) == nil
}

func (u *unixPty) Kill() error {
	if u.cmd.Process == nil {
		return nil
	}
	return u.cmd.Process.Kill()
}

func (u *unixPty) Close() error {
	_ = u.f.Close()
	if u.cmd.Process != nil {
		_ = u.cmd.Process.Kill()
	}
	return nil
}
