package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"
	domainauth "github.com/tenantdesk/workspace-shell/internal/domain/auth"
	"github.com/tenantdesk/workspace-shell/internal/ports"
)

var _ ports.AuthStateBus = (*AuthBus)(nil)

// AuthBus carries auth-state changes between shell replicas over Redis pub/sub.
type AuthBus struct {
	client redis.UniversalClient
	prefix string
	logger *slog.Logger
}

// AuthBusOptions configures an AuthBus.
type AuthBusOptions struct {
	Client redis.UniversalClient
	Prefix string
	Logger *slog.Logger
}

// NewAuthBus creates a Redis pub/sub auth-state bus.
func NewAuthBus(opts AuthBusOptions) *AuthBus {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	prefix := opts.Prefix
	if prefix == "" {
		prefix = "wsd:"
	}
	return &AuthBus{
		client: opts.Client,
		prefix: prefix,
		logger: logger.With("component", "auth_bus"),
	}
}

func (b *AuthBus) channel(deviceID string) string {
	return b.prefix + "auth:" + deviceID
}

// wireState is the JSON payload published on the channel.
type wireState struct {
	SignedIn     bool   `json:"signedIn"`
	RefreshToken string `json:"refreshToken,omitempty"`
	DisplayName  string `json:"displayName,omitempty"`
}

func (b *AuthBus) Publish(ctx context.Context, deviceID string, state domainauth.AuthState) error {
	msg := wireState{}
	if state.User != nil {
		msg = wireState{SignedIn: true, RefreshToken: state.User.RefreshToken, DisplayName: state.User.DisplayName}
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal auth state: %w", err)
	}
	if pubErr := b.client.Publish(ctx, b.channel(deviceID), payload).Err(); pubErr != nil {
		return fmt.Errorf("redis publish: %w", pubErr)
	}
	return nil
}

// Subscribe returns once the subscription is confirmed by Redis, so no update
// published after it returns is missed.
func (b *AuthBus) Subscribe(ctx context.Context, deviceID string) (<-chan domainauth.AuthState, error) {
	ps := b.client.Subscribe(ctx, b.channel(deviceID))
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, fmt.Errorf("redis subscribe: %w", err)
	}

	out := make(chan domainauth.AuthState)
	go func() {
		defer close(out)
		defer func() { _ = ps.Close() }()

		msgs := ps.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				state, err := decodeState(msg.Payload)
				if err != nil {
					b.logger.WarnContext(ctx, "dropping malformed auth state", "device_id", deviceID, "error", err)
					continue
				}
				select {
				case out <- state:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}

func decodeState(payload string) (domainauth.AuthState, error) {
	var msg wireState
	if err := json.Unmarshal([]byte(payload), &msg); err != nil {
		return domainauth.AuthState{}, err
	}
	if !msg.SignedIn {
		return domainauth.AuthState{}, nil
	}
	return domainauth.AuthState{User: &domainauth.StreamUser{
		RefreshToken: msg.RefreshToken,
		DisplayName:  msg.DisplayName,
	}}, nil
}
