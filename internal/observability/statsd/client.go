package statsd

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"
)

// Sink describes the minimal interface required to emit StatsD-style metrics.
type Sink interface {
	Count(name string, value int64, tags map[string]string)
	Timing(name string, value time.Duration, tags map[string]string)
}

// Config describes how to connect to a StatsD-compatible sink.
type Config struct {
	Enabled    bool
	Address    string
	Prefix     string
	Logger     *slog.Logger
	GlobalTags map[string]string
}

// Client emits metrics over UDP using the DogStatsD line protocol.
// It is safe for concurrent use. A disabled client drops every metric.
type Client struct {
	prefix     string
	globalTags map[string]string
	logger     *slog.Logger

	mu   sync.Mutex
	conn net.Conn
}

var _ Sink = (*Client)(nil)

// NewClient dials the configured StatsD endpoint unless disabled.
func NewClient(cfg Config) (*Client, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	client := &Client{
		prefix:     strings.Trim(strings.TrimSpace(cfg.Prefix), "."),
		globalTags: cfg.GlobalTags,
		logger:     logger,
	}

	address := strings.TrimSpace(cfg.Address)
	if !cfg.Enabled || address == "" {
		return client, nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, err := (&net.Dialer{}).DialContext(ctx, "udp", address)
	if err != nil {
		return nil, fmt.Errorf("statsd dial %s: %w", address, err)
	}
	client.conn = conn
	return client, nil
}

// Enabled reports whether the client actively emits metrics.
func (c *Client) Enabled() bool {
	if c == nil {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn != nil
}

// Count increments a counter metric.
func (c *Client) Count(name string, value int64, tags map[string]string) {
	c.write(name, strconv.FormatInt(value, 10)+"|c", tags)
}

// Timing records a timing metric using milliseconds.
func (c *Client) Timing(name string, value time.Duration, tags map[string]string) {
	ms := float64(value) / float64(time.Millisecond)
	c.write(name, strconv.FormatFloat(ms, 'f', -1, 64)+"|ms", tags)
}

// Close releases the underlying UDP connection if one was established.
func (c *Client) Close() error {
	if c == nil {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return nil
	}
	err := c.conn.Close()
	c.conn = nil
	return err
}

func (c *Client) write(name, payload string, tags map[string]string) {
	if c == nil {
		return
	}
	line := FormatLine(c.prefix, name, payload, c.globalTags, tags)
	if line == "" {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return
	}
	if _, err := c.conn.Write([]byte(line)); err != nil {
		c.logger.Debug("statsd write failed", "error", err)
	}
}

// FormatLine renders one metric in DogStatsD form: prefix.name:payload|#k:v,...
// Tags are merged (local wins) and sorted by key. Empty names yield "".
func FormatLine(prefix, name, payload string, global, local map[string]string) string {
	n := strings.Trim(strings.NewReplacer(" ", "_", "/", "_").Replace(strings.TrimSpace(name)), ".")
	if n == "" {
		return ""
	}
	if prefix != "" {
		n = prefix + "." + n
	}

	merged := make(map[string]string, len(global)+len(local))
	for _, src := range []map[string]string{global, local} {
		for k, v := range src {
			if key := strings.TrimSpace(k); key != "" {
				merged[key] = strings.TrimSpace(v)
			}
		}
	}
	if len(merged) == 0 {
		return n + ":" + payload
	}

	keys := make([]string, 0, len(merged))
	for k := range merged {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	pairs := make([]string, len(keys))
	for i, k := range keys {
		pairs[i] = k + ":" + merged[k]
	}
	return n + ":" + payload + "|#" + strings.Join(pairs, ",")
}
