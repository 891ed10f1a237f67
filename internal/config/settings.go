// Package config loads the ambient process configuration Bottles reads
// from the host environment. Nothing in this package touches package
// managers, shells, or volumes directly — it exists so the rest of the
// core can be handed a single, already-validated Settings value instead of
// reaching for os.Getenv itself.
package config

import (
	"encoding/json"
	"fmt"

	"github.com/caarlos0/env/v11"
)

// Settings binds the environment variables recognized from the host.
// Load fills unset variables from their envDefault tags; the zero value
// has an empty LogLevel and a ShellPoolSize of 0.
type Settings struct {
	LogLevel      string `env:"BOTTLES_LOG_LEVEL" envDefault:"info"`
	ShellPoolSize int    `env:"SHELL_POOL_SIZE" envDefault:"5"`
	DebugShellRPC bool   `env:"DEBUG_SHELL_RPC"`
	EnvJSON       string `env:"BOTTLES_ENV_JSON"`
}

// Load reads Settings from the current process environment.
func Load() (Settings, error) {
	var s Settings
	if err := env.Parse(&s); err != nil {
		return Settings{}, fmt.Errorf("config: parsing environment: %w", err)
	}
	return s, nil
}

// PreinjectedEnvironment decodes the BOTTLES_ENV_JSON payload, if set, into
// the given target (normally *environment.Info). It is the CI fast-path
// that lets a pipeline skip live tool detection by shipping a frozen
// EnvironmentInfo alongside the job. Returns ok=false when EnvJSON is empty.
func (s Settings) PreinjectedEnvironment(target any) (ok bool, err error) {
	if s.EnvJSON == "" {
		return false, nil
	}
	if err := json.Unmarshal([]byte(s.EnvJSON), target); err != nil {
		return false, fmt.Errorf("config: decoding BOTTLES_ENV_JSON: %w", err)
	}
	return true, nil
}
