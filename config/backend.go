package config

import (
	"strings"
	"time"
)

// BackendConfig points the engine at the workspace REST backend.
type BackendConfig struct {
	// BaseURL is the backend origin, e.g. "https://api.example.com".
	BaseURL string `env:"BASE_URL" envDefault:"http://localhost:9090"`

	// Timeout bounds every backend round trip.
	Timeout time.Duration `env:"TIMEOUT" envDefault:"10s"`

	// RetryLimit is the number of retries for the idempotent membership fetch.
	RetryLimit int `env:"RETRY_LIMIT" envDefault:"2"`
}

// Sanitize applies guardrails to backend configuration values.
func (b *BackendConfig) Sanitize() {
	b.BaseURL = strings.TrimRight(strings.TrimSpace(b.BaseURL), "/")
	if b.Timeout <= 0 {
		b.Timeout = 10 * time.Second
	}
	if b.RetryLimit < 0 {
		b.RetryLimit = 0
	}
	if b.RetryLimit > 5 {
		b.RetryLimit = 5
	}
}
