package config

import (
	"fmt"
	"strings"
	"time"
)

// StorageDriver selects the backing store for persisted device state.
type StorageDriver string

const (
	// StorageDriverMemory keeps state in process memory (development and tests).
	StorageDriverMemory StorageDriver = "memory"
	// StorageDriverRedis keeps durable and session state in Redis.
	StorageDriverRedis StorageDriver = "redis"
	// StorageDriverPostgres keeps durable and session state in the device_state table.
	StorageDriverPostgres StorageDriver = "postgres"
)

// UnmarshalText implements encoding.TextUnmarshaler for StorageDriver.
func (d *StorageDriver) UnmarshalText(text []byte) error {
	v := strings.ToLower(strings.TrimSpace(string(text)))
	switch v {
	case "memory", "redis", "postgres":
		*d = StorageDriver(v)
		return nil
	default:
		return fmt.Errorf("invalid StorageDriver: %q (valid options: memory, redis, postgres)", v)
	}
}

// StorageConfig controls the persisted identity store.
type StorageConfig struct {
	Driver StorageDriver `env:"DRIVER" envDefault:"memory"`

	// KeyPrefix namespaces every key written by this service.
	KeyPrefix string `env:"KEY_PREFIX" envDefault:"wsd:"`

	// SessionTTL is how long session-scoped markers (handoff, discovered context) survive.
	SessionTTL time.Duration `env:"SESSION_TTL" envDefault:"12h"`

	// PurgeInterval is how often expired session rows are deleted (postgres driver only).
	PurgeInterval time.Duration `env:"PURGE_INTERVAL" envDefault:"10m"`

	// PurgeBatchSize caps the rows removed per delete statement.
	PurgeBatchSize int `env:"PURGE_BATCH_SIZE" envDefault:"500"`
}

// Sanitize applies guardrails to storage configuration values.
func (s *StorageConfig) Sanitize() {
	if s.Driver == "" {
		s.Driver = StorageDriverMemory
	}
	if s.SessionTTL < time.Minute {
		s.SessionTTL = time.Minute
	}
	s.KeyPrefix = strings.TrimSpace(s.KeyPrefix)
	if s.PurgeInterval < time.Minute {
		s.PurgeInterval = time.Minute
	}
	if s.PurgeBatchSize <= 0 {
		s.PurgeBatchSize = 500
	}
}
