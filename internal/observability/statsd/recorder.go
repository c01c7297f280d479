package statsd

import (
	"sync"
	"time"
)

// Recorded is one metric captured by a Recorder.
type Recorded struct {
	Name  string
	Value int64
	Took  time.Duration
	Tags  map[string]string
}

// Recorder is an in-memory Sink for tests and dry runs.
type Recorder struct {
	mu      sync.Mutex
	metrics []Recorded
}

var _ Sink = (*Recorder)(nil)

// Count records a counter increment.
func (r *Recorder) Count(name string, value int64, tags map[string]string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.metrics = append(r.metrics, Recorded{Name: name, Value: value, Tags: tags})
}

// Timing records a timing sample.
func (r *Recorder) Timing(name string, value time.Duration, tags map[string]string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.metrics = append(r.metrics, Recorded{Name: name, Took: value, Tags: tags})
}

// Named returns every recorded metric with the given name.
func (r *Recorder) Named(name string) []Recorded {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Recorded
	for _, m := range r.metrics {
		if m.Name == name {
			out = append(out, m)
		}
	}
	return out
}
