package loadtest

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingObserver struct {
	mu    sync.Mutex
	count int
}

func (o *countingObserver) Observe(RequestResult) {
	o.mu.Lock()
	o.count++
	o.mu.Unlock()
}

// TestAggregate_ConcurrentRecord tests that K writers recording M results each
// leave exactly K*M samples and a consistent counter state
func TestAggregate_ConcurrentRecord(t *testing.T) {
	const writers, perWriter = 50, 200

	observer := &countingObserver{}
	agg := NewAggregate(observer)

	var wg sync.WaitGroup
	for w := range writers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range perWriter {
				status := 200
				if i%10 == 0 {
					status = 500
				}
				agg.Record(RequestResult{
					Endpoint:   "/api/users/",
					Method:     MethodGet,
					StatusCode: status,
					Latency:    time.Duration(w*perWriter+i) * time.Microsecond,
					Success:    IsSuccessStatus(status),
				})

				total, succeeded, failed := agg.Counts()
				if total != succeeded+failed {
					t.Errorf("counter invariant broken: total=%d succeeded=%d failed=%d", total, succeeded, failed)
				}
			}
		}()
	}
	wg.Wait()

	total, succeeded, failed := agg.Counts()
	assert.Equal(t, writers*perWriter, total)
	assert.Equal(t, writers*perWriter/10, failed)
	assert.Equal(t, total, succeeded+failed)
	assert.Len(t, agg.Samples("/api/users/"), writers*perWriter)
	assert.Equal(t, writers*perWriter, observer.count)
}

// TestAggregate_ErrorLog tests that only transport failures reach the error log
func TestAggregate_ErrorLog(t *testing.T) {
	agg := NewAggregate()

	agg.Record(RequestResult{Endpoint: "/", StatusCode: 404})
	agg.Record(RequestResult{Endpoint: "/", StatusCode: 503})
	agg.Record(RequestResult{Endpoint: "/api/posts/ (POST)", Method: MethodPost, Error: "connection refused"})
	agg.RecordError("User 4: boom")

	assert.Equal(t, []string{"/api/posts/ (POST): connection refused", "User 4: boom"}, agg.Errors())

	total, succeeded, failed := agg.Counts()
	assert.Equal(t, 3, total)
	assert.Equal(t, 0, succeeded)
	assert.Equal(t, 3, failed)
}

func TestAggregate_SnapshotIsACopy(t *testing.T) {
	agg := NewAggregate()
	agg.Record(RequestResult{Endpoint: "/", StatusCode: 200, Success: true, Latency: time.Millisecond})

	snap := agg.Snapshot()
	snap.Samples["/"][0] = time.Hour
	snap.Errors = append(snap.Errors, "mutated")

	require.Equal(t, []time.Duration{time.Millisecond}, agg.Samples("/"))
	assert.Empty(t, agg.Errors())
}

func TestAggregate_SamplesPerEndpoint(t *testing.T) {
	agg := NewAggregate()
	for i := range 3 {
		agg.Record(RequestResult{Endpoint: fmt.Sprintf("/e%d/", i%2), StatusCode: 200, Success: true})
	}

	snap := agg.Snapshot()
	assert.Len(t, snap.Samples["/e0/"], 2)
	assert.Len(t, snap.Samples["/e1/"], 1)
	assert.Equal(t, 3, snap.Total)
}
