package shellrpc

import (
	"regexp"
	"sync"
	"time"
)

// Stream identifies which of a command's output streams a PatternAction
// watches.
type Stream string

const (
	StreamStdout Stream = "stdout"
	StreamStderr Stream = "stderr"
	StreamBoth   Stream = "both"
)

// ActionKind is the effect a matched PatternAction has on the timeout
// state machine.
type ActionKind string

const (
	ActionReset     ActionKind = "reset"
	ActionExtend    ActionKind = "extend"
	ActionTerminate ActionKind = "terminate"
	ActionIgnore    ActionKind = "ignore"
	ActionLog       ActionKind = "log"
)

// PatternAction is one entry in a TimeoutConfig's ordered pattern list.
// The first match wins.
type PatternAction struct {
	Regex     *regexp.Regexp
	Stream    Stream
	Action    ActionKind
	ExtendyMs int // used when Action == ActionExtend
}

// TimeoutConfig is the immutable per-invocation timeout configuration.
type TimeoutConfig struct {
	BaseTimeoutMs       int
	ActivityExtensionMs int
	GraceMs             int
	AbsoluteMaxMs        int
	Patterns            []PatternAction
}

func (t TimeoutConfig) base() time.Duration     { return time.Duration(t.BaseTimeoutMs) * time.Millisecond }
func (t TimeoutConfig) grace() time.Duration    { return time.Duration(t.GraceMs) * time.Millisecond }
func (t TimeoutConfig) absolute() time.Duration { return time.Duration(t.AbsoluteMaxMs) * time.Millisecond }
func (t TimeoutConfig) activity() time.Duration {
	return time.Duration(t.ActivityExtensionMs) * time.Millisecond
}

// state names the resilient timeout's current stage.
type state int

const (
	stateActive state = iota
	stateGrace
	stateExpired
)

// TimeoutResult is delivered when the state machine decides a command must
// be terminated, either because a timer expired or a terminate pattern
// matched.
type TimeoutResult struct {
	TimedOut bool
	Reason   TimeoutReason
	Pattern  string
}

// chunk is one observed slice of output fed into the state machine.
type chunk struct {
	data   string
	stream Stream
}

// resilientTimeout implements the two-stage ACTIVE -> GRACE -> EXPIRED
// state machine, plus the always-on absolute ceiling: a mutex-guarded
// loop that reacts to external events (output chunks and timer fires)
// and falls back to a terminal outcome after a bounded condition, rather
// than spinning forever.
type resilientTimeout struct {
	cfg TimeoutConfig

	mu              sync.Mutex
	st              state
	primary         *time.Timer
	primaryDeadline time.Time
	grace           *time.Timer
	absolute  *time.Timer
	done      chan TimeoutResult
	fired     bool
}

// newResilientTimeout starts all timers for a freshly-issued command.
func newResilientTimeout(cfg TimeoutConfig) *resilientTimeout {
	rt := &resilientTimeout{
		cfg:  cfg,
		st:   stateActive,
		done: make(chan TimeoutResult, 1),
	}
	rt.resetPrimaryLocked(cfg.base())
	rt.absolute = time.AfterFunc(cfg.absolute(), rt.onAbsoluteExpiry)
	return rt
}

// Done returns the channel that receives exactly one TimeoutResult if and
// only if the command is terminated by the timeout machinery. A command
// that completes normally (end-marker observed first) never reads from
// this channel; Stop() must still be called to clear the timers
// unconditionally.
func (rt *resilientTimeout) Done() <-chan TimeoutResult {
	return rt.done
}

// Observe feeds one output chunk into the state machine and evaluates the
// ordered PatternAction list against it (first match wins).
func (rt *resilientTimeout) Observe(c chunk) {
	rt.mu.Lock()
	defer rt.mu.Unlock()

	if rt.st == stateExpired {
		return
	}

	// Any activity in GRACE rescues the command back to ACTIVE, regardless
	// of whether a pattern matches.
	if rt.st == stateGrace {
		rt.transitionToActiveLocked()
	}

	action, pattern := rt.matchLocked(c)
	switch action {
	case ActionReset:
		rt.resetPrimaryLocked(rt.cfg.base())
	case ActionExtend:
		rt.extendPrimaryLocked(time.Duration(rt.firstExtendMs(c)) * time.Millisecond)
	case ActionTerminate:
		rt.terminateLocked(ReasonPattern, pattern)
	case ActionIgnore, ActionLog:
		// No timer impact.
	default:
		// No match: generic activity.
		rt.extendPrimaryLocked(rt.cfg.activity())
	}
}

// Stop unconditionally clears every timer. Callers must call this exactly
// once per command regardless of how the command ended.
func (rt *resilientTimeout) Stop() {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	rt.stopTimersLocked()
}

func (rt *resilientTimeout) stopTimersLocked() {
	if rt.primary != nil {
		rt.primary.Stop()
	}
	if rt.grace != nil {
		rt.grace.Stop()
	}
	if rt.absolute != nil {
		rt.absolute.Stop()
	}
}

// streamMatches reports whether a PatternAction registered for
// patternStream should fire against a chunk observed on chunkStream. A
// pattern registered for StreamBoth always matches; a chunk observed on a
// merged (pty) connection carries StreamBoth and matches any pattern,
// since stdout/stderr cannot be told apart once merged.
func streamMatches(patternStream, chunkStream Stream) bool {
	return patternStream == StreamBoth || chunkStream == StreamBoth || patternStream == chunkStream
}

func (rt *resilientTimeout) matchLocked(c chunk) (ActionKind, string) {
	for _, pa := range rt.cfg.Patterns {
		if !streamMatches(pa.Stream, c.stream) {
			continue
		}
		if pa.Regex.MatchString(c.data) {
			return pa.Action, pa.Regex.String()
		}
	}
	return "", ""
}

func (rt *resilientTimeout) firstExtendMs(c chunk) int {
	for _, pa := range rt.cfg.Patterns {
		if !streamMatches(pa.Stream, c.stream) {
			continue
		}
		if pa.Action == ActionExtend && pa.Regex.MatchString(c.data) {
			return pa.ExtendyMs
		}
	}
	return rt.cfg.ActivityExtensionMs
}

func (rt *resilientTimeout) resetPrimaryLocked(d time.Duration) {
	if rt.primary != nil {
		rt.primary.Stop()
	}
	rt.primary = time.AfterFunc(d, rt.onPrimaryExpiry)
	rt.primaryDeadline = time.Now().Add(d)
}

func (rt *resilientTimeout) extendPrimaryLocked(extra time.Duration) {
	// time.Timer has no "add duration" primitive; re-arm with the full
	// remaining-plus-extra window, i.e. "primary += extra".
	remaining := time.Until(rt.primaryDeadline)
	if remaining < 0 {
		remaining = 0
	}
	rt.resetPrimaryLocked(remaining + extra)
}

func (rt *resilientTimeout) transitionToActiveLocked() {
	rt.st = stateActive
	if rt.grace != nil {
		rt.grace.Stop()
		rt.grace = nil
	}
	rt.resetPrimaryLocked(rt.cfg.base())
}

func (rt *resilientTimeout) onPrimaryExpiry() {
	rt.mu.Lock()
	defer rt.mu.Unlock()

	if rt.st != stateActive {
		return
	}
	rt.st = stateGrace
	rt.grace = time.AfterFunc(rt.cfg.grace(), rt.onGraceExpiry)
}

func (rt *resilientTimeout) onGraceExpiry() {
	rt.mu.Lock()
	defer rt.mu.Unlock()

	if rt.st != stateGrace {
		return
	}
	rt.terminateLocked(ReasonSilence, "")
}

func (rt *resilientTimeout) onAbsoluteExpiry() {
	rt.mu.Lock()
	defer rt.mu.Unlock()

	if rt.st == stateExpired {
		return
	}
	rt.terminateLocked(ReasonAbsolute, "")
}

func (rt *resilientTimeout) terminateLocked(reason TimeoutReason, pattern string) {
	if rt.fired {
		return
	}
	rt.fired = true
	rt.st = stateExpired
	rt.stopTimersLocked()
	rt.done <- TimeoutResult{TimedOut: true, Reason: reason, Pattern: pattern}
}
