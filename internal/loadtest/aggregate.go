package loadtest

import (
	"fmt"
	"sync"
	"time"
)

// Observer receives every recorded result. Implementations must be safe for
// concurrent use.
type Observer interface {
	Observe(result RequestResult)
}

// Aggregate holds the shared results of one run. It is safe for concurrent use.
type Aggregate struct {
	mu        sync.Mutex
	samples   map[string][]time.Duration
	total     int
	succeeded int
	failed    int
	errors    []string
	observers []Observer
}

// NewAggregate creates an empty aggregate
func NewAggregate(observers ...Observer) *Aggregate {
	return &Aggregate{
		samples:   make(map[string][]time.Duration),
		observers: observers,
	}
}

// Record adds a request result. The sample append and the counter updates
// happen under one lock.
func (a *Aggregate) Record(result RequestResult) {
	a.mu.Lock()
	a.samples[result.Endpoint] = append(a.samples[result.Endpoint], result.Latency)
	a.total++
	if result.Success {
		a.succeeded++
	} else {
		a.failed++
	}
	if result.IsTransportFailure() && result.Error != "" {
		a.errors = append(a.errors, fmt.Sprintf("%s: %s", result.Endpoint, result.Error))
	}
	a.mu.Unlock()

	for _, o := range a.observers {
		o.Observe(result)
	}
}

// RecordError appends a message to the error log without touching counters
func (a *Aggregate) RecordError(msg string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.errors = append(a.errors, msg)
}

// Counts returns total, successful and failed request counts
func (a *Aggregate) Counts() (total, succeeded, failed int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.total, a.succeeded, a.failed
}

// Samples returns a copy of the latencies recorded for one endpoint key
func (a *Aggregate) Samples(endpoint string) []time.Duration {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]time.Duration, len(a.samples[endpoint]))
	copy(out, a.samples[endpoint])
	return out
}

// Errors returns a copy of the error log
func (a *Aggregate) Errors() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]string, len(a.errors))
	copy(out, a.errors)
	return out
}

// Snapshot is a consistent copy of an aggregate
type Snapshot struct {
	Samples   map[string][]time.Duration
	Total     int
	Succeeded int
	Failed    int
	Errors    []string
}

// Snapshot copies the aggregate state under a single lock
func (a *Aggregate) Snapshot() Snapshot {
	a.mu.Lock()
	defer a.mu.Unlock()

	s := Snapshot{
		Samples:   make(map[string][]time.Duration, len(a.samples)),
		Total:     a.total,
		Succeeded: a.succeeded,
		Failed:    a.failed,
		Errors:    make([]string, len(a.errors)),
	}
	for k, v := range a.samples {
		cp := make([]time.Duration, len(v))
		copy(cp, v)
		s.Samples[k] = cp
	}
	copy(s.Errors, a.errors)
	return s
}
