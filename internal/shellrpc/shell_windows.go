//go:build windows

package shellrpc

import (
	"io"
	"os/exec"

	"code.cloudfoundry.org/lager/v3"
)

// windowsPipes backs a Shell with a powershell.exe process wired through
// plain stdio pipes — Windows has no pty equivalent cheap enough to depend
// on here, so progress bars that rely on isatty render in their
// non-interactive fallback form, which the install/sync timeout patterns
// in the pip and uv adapters are written to tolerate either way.
type windowsPipes struct {
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stdout io.ReadCloser
	stderr io.ReadCloser
}

func spawn(key string, logger lager.Logger) (*Shell, error) {
	cmd := exec.Command("powershell.exe", "-NoLogo", "-NoProfile", "-Command", "-")

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, &Error{Kind: ErrSpawnFailed, Cause: err}
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, &Error{Kind: ErrSpawnFailed, Cause: err}
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, &Error{Kind: ErrSpawnFailed, Cause: err}
	}
	if err := cmd.Start(); err != nil {
		return nil, &Error{Kind: ErrSpawnFailed, Cause: err}
	}

	wp := &windowsPipes{cmd: cmd, stdin: stdin, stdout: stdout, stderr: stderr}
	return newShell(key, wp, logger, true), nil
}

func (w *windowsPipes) Write(p []byte) (int, error) { return w.stdin.Write(p) }
func (w *windowsPipes) Stdout() io.Reader           { return w.stdout }
func (w *windowsPipes) Stderr() io.Reader           { return w.stderr }

func (w *windowsPipes) Alive() bool {
	return w.cmd.ProcessState == nil
}

func (w *windowsPipes) Kill() error {
	if w.cmd.Process == nil {
		return nil
	}
	return w.cmd.Process.Kill()
}

func (w *windowsPipes) Close() error {
	_ = w.stdin.Close()
	if w.cmd.Process != nil {
		_ = w.cmd.Process.Kill()
	}
	return nil
}
