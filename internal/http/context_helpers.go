package httpx

import "context"

// deviceKey is an unexported context key type to avoid collisions across packages.
type deviceKey struct{}

// WithDevice returns a child context that carries the device id.
// If deviceID is empty, the original ctx is returned unchanged.
func WithDevice(ctx context.Context, deviceID string) context.Context {
	if deviceID == "" {
		return ctx
	}
	return context.WithValue(ctx, deviceKey{}, deviceID)
}

// DeviceFromContext returns the device id from context and whether it was present.
func DeviceFromContext(ctx context.Context) (string, bool) {
	if id, ok := ctx.Value(deviceKey{}).(string); ok && id != "" {
		return id, true
	}
	return "", false
}
