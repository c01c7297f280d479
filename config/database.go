package config

import "time"

// DBConfig contains PostgreSQL configuration for the durable device_state store.
type DBConfig struct {
	Host     string `env:"HOST"     envDefault:"localhost"`
	Port     int    `env:"PORT"     envDefault:"5432"`
	User     string `env:"USER"     envDefault:"workspace"`
	Password string `env:"PASSWORD" envDefault:"workspace"`
	Name     string `env:"NAME"     envDefault:"workspace"`
	SSLMode  string `env:"SSL_MODE" envDefault:"disable"` // 'require' outside local dev

	MaxOpenConns    int           `env:"MAX_OPEN_CONNS"    envDefault:"10"`
	MaxIdleConns    int           `env:"MAX_IDLE_CONNS"    envDefault:"2"`
	ConnMaxLifetime time.Duration `env:"CONN_MAX_LIFETIME" envDefault:"5m"`
	ConnectTimeout  time.Duration `env:"CONNECT_TIMEOUT"   envDefault:"5s"`

	// RunMigrationsOnStart applies the schema before the server starts.
	RunMigrationsOnStart bool `env:"RUN_MIGRATIONS_ON_START" envDefault:"true"`
}

// Sanitize clamps pool settings to usable values.
func (c *DBConfig) Sanitize() {
	if c.MaxOpenConns <= 0 {
		c.MaxOpenConns = 10
	}
	if c.MaxIdleConns < 0 || c.MaxIdleConns > c.MaxOpenConns {
		c.MaxIdleConns = c.MaxOpenConns
	}
	if c.ConnMaxLifetime <= 0 {
		c.ConnMaxLifetime = 5 * time.Minute
	}
	if c.ConnectTimeout <= 0 {
		c.ConnectTimeout = 5 * time.Second
	}
}

// RedisConfig contains Redis configuration shared by the session store and
// the cross-instance auth bus.
type RedisConfig struct {
	URI                string        `env:"URI"                  envDefault:"localhost:6379"`
	Password           string        `env:"PASSWORD"             envDefault:""`
	DB                 int           `env:"DB"                   envDefault:"0"`
	PoolSize           int           `env:"POOL_SIZE"            envDefault:"0"` // 0 keeps the go-redis default
	DialTimeout        time.Duration `env:"DIAL_TIMEOUT"         envDefault:"5s"`
	SentinelNodes      []string      `env:"SENTINEL_NODES"       envDefault:"localhost:26379"`
	SentinelMasterName string        `env:"SENTINEL_MASTER_NAME" envDefault:"mymaster"`
	SentinelPassword   string        `env:"SENTINEL_PASSWORD"    envDefault:""`
	UseSentinel        bool          `env:"USE_SENTINEL"         envDefault:"false"`
	ClusterNodes       []string      `env:"CLUSTER_NODES"        envDefault:""`
	UseCluster         bool          `env:"USE_CLUSTER"          envDefault:"false"`
}

// Sanitize clamps Redis settings to usable values.
func (c *RedisConfig) Sanitize() {
	if c.DB < 0 {
		c.DB = 0
	}
	if c.PoolSize < 0 {
		c.PoolSize = 0
	}
	if c.DialTimeout <= 0 {
		c.DialTimeout = 5 * time.Second
	}
}
