package bootstrap

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"
	"github.com/tenantdesk/workspace-shell/config"
	"github.com/tenantdesk/workspace-shell/internal/adapters/postgres"
	redisadapter "github.com/tenantdesk/workspace-shell/internal/adapters/redis"
	"github.com/tenantdesk/workspace-shell/internal/ports"
	"github.com/tenantdesk/workspace-shell/internal/store"
)

// StorageDeps groups what BuildStorage may need for the configured driver.
type StorageDeps struct {
	Config      config.StorageConfig
	DB          *sql.DB
	RedisClient redis.UniversalClient
	Logger      *slog.Logger
}

// Storage is the persisted device state plus, for drivers that cannot expire
// entries on their own, the store the reaper purges.
type Storage struct {
	Factory  store.Factory
	Expiring ports.ExpiringStore
}

// BuildStorage selects the durable and session stores for the configured driver.
func BuildStorage(deps StorageDeps) (Storage, error) {
	cfg := deps.Config
	switch cfg.Driver {
	case config.StorageDriverRedis:
		if deps.RedisClient == nil {
			return Storage{}, errors.New("redis storage driver requires a redis client")
		}
		kv := redisadapter.NewKVStoreWithPrefix(deps.RedisClient, cfg.KeyPrefix)
		return Storage{Factory: store.Factory{Durable: kv, Session: kv, SessionTTL: cfg.SessionTTL}}, nil

	case config.StorageDriverPostgres:
		pg, err := postgres.NewKVStore(postgres.KVStoreOptions{DB: deps.DB, Prefix: cfg.KeyPrefix})
		if err != nil {
			return Storage{}, fmt.Errorf("postgres storage: %w", err)
		}
		return Storage{
			Factory:  store.Factory{Durable: pg, Session: pg, SessionTTL: cfg.SessionTTL},
			Expiring: pg,
		}, nil

	case config.StorageDriverMemory, "":
		if deps.Logger != nil {
			deps.Logger.Warn("using in-memory device state; state is lost on restart")
		}
		return Storage{Factory: store.Factory{
			Durable:    store.NewMemoryStore(),
			Session:    store.NewMemoryStore(),
			SessionTTL: cfg.SessionTTL,
		}}, nil

	default:
		return Storage{}, fmt.Errorf("unknown storage driver %q", cfg.Driver)
	}
}

// BuildAuthBus returns the auth-state bus: Redis pub/sub when a client is
// available so every instance hears sign-outs, otherwise an in-process bus.
//
//nolint:ireturn // the bus implementation is picked at runtime.
func BuildAuthBus(client redis.UniversalClient, prefix string, logger *slog.Logger) ports.AuthStateBus {
	if client == nil {
		return store.NewMemoryBus()
	}
	return redisadapter.NewAuthBus(redisadapter.AuthBusOptions{
		Client: client,
		Prefix: prefix,
		Logger: logger,
	})
}
