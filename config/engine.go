package config

import "time"

// EngineConfig controls the view resolution engine.
type EngineConfig struct {
	// BootTimeout bounds a whole resolution pass. When it elapses the engine
	// commits a fallback view instead of staying in loading.
	BootTimeout time.Duration `env:"BOOT_TIMEOUT" envDefault:"15s"`

	// CommitTimeout bounds the storage writes that follow a committed view,
	// which may run after the boot context has already ended.
	CommitTimeout time.Duration `env:"COMMIT_TIMEOUT" envDefault:"3s"`
}

// Sanitize applies guardrails to engine configuration values.
func (e *EngineConfig) Sanitize() {
	if e.BootTimeout < time.Second {
		e.BootTimeout = time.Second
	}
	if e.CommitTimeout < 100*time.Millisecond {
		e.CommitTimeout = 100 * time.Millisecond
	}
}
