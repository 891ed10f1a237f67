// Package logging constructs the lager.Logger used throughout Bottles,
// following the same Session/Data/Error conventions as the rest of the
// worker components it runs alongside.
package logging

import (
	"os"
	"strings"

	"code.cloudfoundry.org/lager/v3"

	"github.com/bottles-dev/bottles/internal/config"
)

// New builds a "bottles" root logger sinked to stderr at the level named by
// settings.LogLevel ("error", "warn", or "info"). DebugShellRPC additionally
// lowers the Shell-RPC session to DEBUG regardless of LogLevel, for
// chasing down a timeout without turning up logging everywhere else.
func New(settings config.Settings) lager.Logger {
	logger := lager.NewLogger("bottles")
	logger.RegisterSink(lager.NewWriterSink(os.Stderr, minLevel(settings)))
	return logger
}

// ShellRPCSession returns the Session a Shell-RPC component should log
// through, forcing DEBUG level when DEBUG_SHELL_RPC is truthy.
func ShellRPCSession(logger lager.Logger, settings config.Settings) lager.Logger {
	session := logger.Session("shell-rpc")
	if settings.DebugShellRPC {
		session.RegisterSink(lager.NewWriterSink(os.Stderr, lager.DEBUG))
	}
	return session
}

func minLevel(settings config.Settings) lager.LogLevel {
	switch strings.ToLower(settings.LogLevel) {
	case "error":
		return lager.ERROR
	case "warn", "warning":
		return lager.INFO
	case "debug":
		return lager.DEBUG
	default:
		return lager.INFO
	}
}
