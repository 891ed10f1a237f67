package shellrpc

import (
	"fmt"

	"github.com/google/uuid"
)

// CommandRequest is one unit of work submitted to a Shell.
type CommandRequest struct {
	Command string
	Timeout TimeoutConfig
	Env     map[string]string
	Dir     string
}

// CommandResult is what Run returns for a command that ran to
// completion (as opposed to one that errored via *Error).
type CommandResult struct {
	Stdout   string
	Stderr   string
	ExitCode int
	Marker   string
}

// marker holds the unique start/end framing tokens for one command
// invocation. Using a fresh uuid per command (rather than a static
// sentinel) means a previous command's stray output, or output the target
// program itself happens to print, can never be mistaken for our
// delimiter.
type marker struct {
	id    string
	start string
	end   string
}

func newMarker() marker {
	id := uuid.NewString()
	return marker{
		id:    id,
		start: fmt.Sprintf("__BOTTLES_START_%s__", id),
		end:   fmt.Sprintf("__BOTTLES_END_%s__", id),
	}
}

// frame wraps command in echoes of the start/end markers and an exit-code
// capture, so the reader side can recognize exactly where this command's
// output begins and ends regardless of what the command itself prints.
// The exit code is echoed after the end marker so a truncated read never
// yields a result with a bogus exit code attached to the wrong command.
func (m marker) frame(command string) string {
	return fmt.Sprintf(
		"echo %s; %s; __bottles_ec=$?; echo %s; echo $__bottles_ec\n",
		m.start, command, m.end,
	)
}

// frameWindows is the PowerShell equivalent framing, used by shell_windows.go.
func (m marker) frameWindows(command string) string {
	return fmt.Sprintf(
		"Write-Output '%s'; %s; $__bottles_ec = $LASTEXITCODE; Write-Output '%s'; Write-Output $__bottles_ec\r\n",
		m.start, command, m.end,
	)
}
