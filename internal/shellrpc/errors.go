package shellrpc

import "fmt"

// ErrorKind discriminates ShellRPCError failure modes.
type ErrorKind string

const (
	ErrSpawnFailed ErrorKind = "SpawnFailed"
	ErrWriteFailed ErrorKind = "WriteFailed"
	ErrMarkerLost  ErrorKind = "MarkerLost"
	ErrTimeout     ErrorKind = "Timeout"
	ErrShellDead   ErrorKind = "ShellDead"
)

// TimeoutReason names which stage of the resilient timeout fired.
type TimeoutReason string

const (
	ReasonBase     TimeoutReason = "base"
	ReasonSilence  TimeoutReason = "silence"
	ReasonAbsolute TimeoutReason = "absolute"
	ReasonPattern  TimeoutReason = "pattern"
)

// Error is the typed ShellRPCError every Shell method fails with. Shell-RPC
// never swallows a failure: every Execute either completes with an exit
// code or fails with an Error carrying an actionable, component-prefixed
// message — a typed wrapper plus Unwrap() so errors.As/errors.Is work
// across package boundaries.
type Error struct {
	Kind    ErrorKind
	Reason  TimeoutReason // only set when Kind == ErrTimeout
	Pattern string        // the terminating pattern, when Reason == ReasonPattern
	Cause   error
}

func (e *Error) Error() string {
	prefix := "[ShellRPC]"
	switch e.Kind {
	case ErrTimeout:
		if e.Pattern != "" {
			return fmt.Sprintf("%s timeout (%s): matched pattern %q", prefix, e.Reason, e.Pattern)
		}
		return fmt.Sprintf("%s timeout (%s)", prefix, e.Reason)
	default:
		if e.Cause != nil {
			return fmt.Sprintf("%s %s: %v", prefix, e.Kind, e.Cause)
		}
		return fmt.Sprintf("%s %s", prefix, e.Kind)
	}
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// IsRetryable reports whether the failure is one an infrastructure-level
// retry (spawning a fresh shell, not re-running the command) may recover
// from.
func (e *Error) IsRetryable() bool {
	switch e.Kind {
	case ErrSpawnFailed, ErrShellDead:
		return true
	default:
		return false
	}
}
