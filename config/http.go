package config

import "time"

// HTTPConfig contains HTTP server configuration.
type HTTPConfig struct {
	// Addr is the address to bind the HTTP server to.
	Addr string `env:"HTTP_ADDR" envDefault:":8080"`

	// BaseURL is the public URL of the shell (e.g., "https://app.example.com").
	// Used to derive the device cookie domain when CookieDomain is empty.
	BaseURL string `env:"APP_BASE_URL" envDefault:"http://localhost:8080"`

	// CookieDomain is the domain for device cookies.
	// Leave empty to derive it from BaseURL.
	CookieDomain string `env:"APP_COOKIE_DOMAIN" envDefault:""`

	ReadTimeout     time.Duration `env:"HTTP_READ_TIMEOUT"     envDefault:"15s"`
	WriteTimeout    time.Duration `env:"HTTP_WRITE_TIMEOUT"    envDefault:"30s"`
	ShutdownTimeout time.Duration `env:"HTTP_SHUTDOWN_TIMEOUT" envDefault:"10s"`
}

// Sanitize applies guardrails to HTTP configuration values.
func (h *HTTPConfig) Sanitize() {
	if h.ReadTimeout <= 0 {
		h.ReadTimeout = 15 * time.Second
	}
	if h.WriteTimeout <= 0 {
		h.WriteTimeout = 30 * time.Second
	}
	if h.ShutdownTimeout <= 0 {
		h.ShutdownTimeout = 10 * time.Second
	}
}
