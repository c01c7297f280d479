package metrics

import (
	"time"

	obserrors "github.com/tenantdesk/workspace-shell/internal/observability/errors"
	"github.com/tenantdesk/workspace-shell/internal/observability/statsd"
)

// Result constants for metric tagging.
const (
	ResultSuccess   = "success"
	ResultError     = "error"
	ResultRecovered = "recovered"
	ResultNoop      = "noop"
)

// ResolutionMetric captures one committed resolution pass.
type ResolutionMetric struct {
	View     string
	Rule     string
	Duration time.Duration
	Err      error
}

// EmitResolution emits the outcome counter and duration timing for a resolution pass.
func EmitResolution(sink statsd.Sink, in ResolutionMetric) {
	if sink == nil {
		return
	}

	tags := map[string]string{
		"view": in.View,
		"rule": in.Rule,
	}
	if class := obserrors.Classify(in.Err); class != "" {
		tags["error_class"] = class
	}

	sink.Count("resolution.outcome", 1, tags)
	if in.Duration > 0 {
		sink.Timing("resolution.duration", in.Duration, CloneTags(tags))
	}
}

// EmitProvisioning counts an auto-provisioning attempt.
func EmitProvisioning(sink statsd.Sink, result string, err error) {
	emitResult(sink, "provisioning.result", result, err)
}

// EmitExchange counts a one-time credential exchange.
func EmitExchange(sink statsd.Sink, result string, err error) {
	emitResult(sink, "auth.exchange", result, err)
}

func emitResult(sink statsd.Sink, name, result string, err error) {
	if sink == nil {
		return
	}
	tags := map[string]string{"result": result}
	if class := obserrors.Classify(err); class != "" {
		tags["error_class"] = class
	}
	sink.Count(name, 1, tags)
}

// CloneTags creates a shallow copy of a tag map.
func CloneTags(src map[string]string) map[string]string {
	if len(src) == 0 {
		return nil
	}
	out := make(map[string]string, len(src))
	for k, v := range src {
		out[k] = v
	}
	return out
}
