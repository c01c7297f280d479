package bootstrap

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/redis/go-redis/v9"
	"github.com/tenantdesk/workspace-shell/config"
)

// ConnectRedis builds a direct, sentinel or cluster client from cfg and pings it.
//
//nolint:ireturn // returning redis.UniversalClient lets us pick single, sentinel, or cluster clients at runtime.
func ConnectRedis(cfg DatabaseConfig) (redis.UniversalClient, error) {
	rc := cfg.RedisConfig
	rc.Sanitize()

	client, addrDesc, err := newRedisClient(rc)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), rc.DialTimeout)
	defer cancel()

	if pingErr := client.Ping(ctx).Err(); pingErr != nil {
		if closeErr := client.Close(); closeErr != nil {
			pingErr = errors.Join(pingErr, fmt.Errorf("close redis client: %w", closeErr))
		}
		return nil, fmt.Errorf("ping redis: %w", pingErr)
	}

	if cfg.Logger != nil {
		cfg.Logger.Info("redis connected", "addr", redactAddr(addrDesc))
	}
	return client, nil
}

//nolint:ireturn // returning redis.UniversalClient keeps client selection flexible.
func newRedisClient(cfg config.RedisConfig) (redis.UniversalClient, string, error) {
	switch {
	case cfg.UseCluster:
		return newClusterClient(cfg)
	case cfg.UseSentinel:
		return newSentinelClient(cfg)
	default:
		return newDirectClient(cfg)
	}
}

//nolint:ireturn // returning redis.UniversalClient keeps client selection flexible.
func newClusterClient(cfg config.RedisConfig) (redis.UniversalClient, string, error) {
	opts := &redis.ClusterOptions{
		Addrs:       normalizeAddrs(cfg.ClusterNodes),
		Password:    cfg.Password,
		PoolSize:    cfg.PoolSize,
		DialTimeout: cfg.DialTimeout,
	}

	// A single seed node may be given as a redis:// URI instead of a node list.
	if len(opts.Addrs) == 0 {
		seed, err := clusterSeedFromURI(cfg.URI)
		if err != nil {
			return nil, "", err
		}
		if seed.addr != "" {
			opts.Addrs = []string{seed.addr}
			opts.Username = seed.username
			if seed.password != "" {
				opts.Password = seed.password
			}
			opts.TLSConfig = seed.tls
		}
	}
	if len(opts.Addrs) == 0 {
		return nil, "", errors.New("redis cluster configuration requires at least one address")
	}

	return redis.NewClusterClient(opts), "cluster:" + strings.Join(opts.Addrs, ","), nil
}

//nolint:ireturn // returning redis.UniversalClient keeps client selection flexible.
func newSentinelClient(cfg config.RedisConfig) (redis.UniversalClient, string, error) {
	nodes := normalizeAddrs(cfg.SentinelNodes)
	if len(nodes) == 0 {
		return nil, "", errors.New("redis sentinel configuration requires at least one sentinel node")
	}
	if strings.TrimSpace(cfg.SentinelMasterName) == "" {
		return nil, "", errors.New("redis sentinel configuration requires a master name")
	}

	client := redis.NewFailoverClient(&redis.FailoverOptions{
		MasterName:       cfg.SentinelMasterName,
		SentinelAddrs:    nodes,
		Password:         cfg.Password,
		SentinelPassword: cfg.SentinelPassword,
		DB:               cfg.DB,
		PoolSize:         cfg.PoolSize,
		DialTimeout:      cfg.DialTimeout,
	})
	return client, "sentinel:" + cfg.SentinelMasterName, nil
}

//nolint:ireturn // returning redis.UniversalClient keeps client selection flexible.
func newDirectClient(cfg config.RedisConfig) (redis.UniversalClient, string, error) {
	uri := strings.TrimSpace(cfg.URI)
	if uri == "" {
		return nil, "", errors.New("redis direct configuration requires a URI")
	}

	opts := &redis.Options{Addr: uri, Password: cfg.Password, DB: cfg.DB}
	if isRedisURL(uri) {
		parsed, err := redis.ParseURL(uri)
		if err != nil {
			return nil, "", fmt.Errorf("parse redis url: %w", err)
		}
		opts = parsed
	}
	if cfg.PoolSize > 0 {
		opts.PoolSize = cfg.PoolSize
	}
	opts.DialTimeout = cfg.DialTimeout
	return redis.NewClient(opts), uri, nil
}

type clusterSeed struct {
	addr     string
	username string
	password string
	tls      *tls.Config
}

func clusterSeedFromURI(uri string) (clusterSeed, error) {
	trimmed := strings.TrimSpace(uri)
	if trimmed == "" {
		return clusterSeed{}, nil
	}
	if !isRedisURL(trimmed) {
		return clusterSeed{addr: trimmed}, nil
	}

	opt, err := redis.ParseURL(trimmed)
	if err != nil {
		return clusterSeed{}, fmt.Errorf("parse redis cluster url: %w", err)
	}
	return clusterSeed{
		addr:     opt.Addr,
		username: opt.Username,
		password: opt.Password,
		tls:      opt.TLSConfig,
	}, nil
}

func normalizeAddrs(raw []string) []string {
	result := make([]string, 0, len(raw))
	for _, addr := range raw {
		if trimmed := strings.TrimSpace(addr); trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

func isRedisURL(value string) bool {
	return strings.HasPrefix(value, "redis://") || strings.HasPrefix(value, "rediss://")
}

// redactAddr strips credentials from an address before it is logged.
func redactAddr(addr string) string {
	if u, err := url.Parse(addr); err == nil && u.User != nil {
		u.User = url.User("*")
		return u.Redacted()
	}
	if i := strings.LastIndex(addr, "@"); i > -1 {
		return addr[i+1:]
	}
	return addr
}
