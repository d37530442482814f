package loadtest

import (
	"context"
	"errors"
	"math/rand/v2"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordingDoer captures requests instead of sending them
type recordingDoer struct {
	mu       sync.Mutex
	requests []Request
	status   int
	panicMsg string
}

func (d *recordingDoer) Execute(ctx context.Context, req Request) RequestResult {
	if d.panicMsg != "" {
		panic(d.panicMsg)
	}
	d.mu.Lock()
	d.requests = append(d.requests, req)
	d.mu.Unlock()

	status := d.status
	if status == 0 {
		status = 200
	}
	return RequestResult{Endpoint: req.key(), Method: req.Method, StatusCode: status, Success: IsSuccessStatus(status)}
}

func (d *recordingDoer) Requests() []Request {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]Request, len(d.requests))
	copy(out, d.requests)
	return out
}

// recordingSleeper returns immediately and remembers requested pauses
type recordingSleeper struct {
	pauses []time.Duration
}

func (s *recordingSleeper) Sleep(ctx context.Context, d time.Duration) error {
	s.pauses = append(s.pauses, d)
	return ctx.Err()
}

func noSleep(ctx context.Context, d time.Duration) error {
	return ctx.Err()
}

func newTestGenerator(doer RequestDoer, seed uint64, sleep Sleeper) *Generator {
	return NewGenerator(doer, rand.New(rand.NewPCG(seed, 1)), sleep, nil)
}

func paths(reqs []Request) []string {
	out := make([]string, len(reqs))
	for i, r := range reqs {
		out[i] = r.Path
	}
	return out
}

// TestGenerator_Browse tests that browse visits every page in order with think time after each
func TestGenerator_Browse(t *testing.T) {
	doer := &recordingDoer{}
	sleeper := &recordingSleeper{}
	gen := newTestGenerator(doer, 1, sleeper.Sleep)

	require.NoError(t, gen.Browse(context.Background(), 0))

	reqs := doer.Requests()
	assert.Equal(t, BrowseEndpoints, paths(reqs))
	for _, r := range reqs {
		assert.Equal(t, MethodGet, r.Method)
		assert.Equal(t, r.Path, r.Key)
	}

	require.Len(t, sleeper.pauses, len(BrowseEndpoints))
	for _, p := range sleeper.pauses {
		assert.GreaterOrEqual(t, p, 100*time.Millisecond)
		assert.Less(t, p, 500*time.Millisecond)
	}
}

// TestGenerator_Read tests the read request count and endpoint choice
func TestGenerator_Read(t *testing.T) {
	counts := map[int]bool{}
	for seed := range uint64(200) {
		doer := &recordingDoer{}
		gen := newTestGenerator(doer, seed, noSleep)
		require.NoError(t, gen.Read(context.Background(), 1))

		reqs := doer.Requests()
		assert.GreaterOrEqual(t, len(reqs), 3)
		assert.LessOrEqual(t, len(reqs), 8)
		counts[len(reqs)] = true

		for _, r := range reqs {
			assert.Equal(t, MethodGet, r.Method)
			assert.Contains(t, ReadEndpoints, r.Path)
		}
	}
	// Every count in [3, 8] shows up across seeds
	assert.Len(t, counts, 6)
}

// TestGenerator_Write tests that write makes exactly two POSTs sharing the user id
func TestGenerator_Write(t *testing.T) {
	doer := &recordingDoer{status: 201}
	sleeper := &recordingSleeper{}
	gen := newTestGenerator(doer, 7, sleeper.Sleep)
	gen.runID = "run-1"

	require.NoError(t, gen.Write(context.Background(), 42))

	reqs := doer.Requests()
	require.Len(t, reqs, 2)

	assert.Equal(t, MethodPost, reqs[0].Method)
	assert.Equal(t, UsersEndpoint, reqs[0].Path)
	assert.Equal(t, "/api/users/ (POST)", reqs[0].Key)
	user, ok := reqs[0].Body.(UserPayload)
	require.True(t, ok)
	assert.Equal(t, "LoadTest User 42", user.Name)
	assert.True(t, strings.HasPrefix(user.Email, "loadtest42-"), user.Email)
	assert.True(t, strings.HasSuffix(user.Email, "@example.com"), user.Email)
	assert.GreaterOrEqual(t, user.Age, 18)
	assert.LessOrEqual(t, user.Age, 65)

	assert.Equal(t, MethodPost, reqs[1].Method)
	assert.Equal(t, PostsEndpoint, reqs[1].Path)
	assert.Equal(t, "/api/posts/ (POST)", reqs[1].Key)
	post, ok := reqs[1].Body.(PostPayload)
	require.True(t, ok)
	assert.Equal(t, user.Name, post.Author)
	assert.Equal(t, 42, post.Metadata.UserID)
	assert.True(t, post.Metadata.LoadTest)
	assert.Equal(t, "run-1", post.Metadata.RunID)
	assert.Equal(t, []string{"loadtest", "performance", "testing"}, post.Tags)

	assert.Equal(t, []time.Duration{100 * time.Millisecond}, sleeper.pauses)
}

// TestGenerator_Tasks tests the task trigger count and payload shapes
func TestGenerator_Tasks(t *testing.T) {
	seenAdd, seenReport := false, false
	for seed := range uint64(100) {
		doer := &recordingDoer{}
		gen := newTestGenerator(doer, seed, noSleep)
		require.NoError(t, gen.Tasks(context.Background(), 3))

		reqs := doer.Requests()
		assert.GreaterOrEqual(t, len(reqs), 1)
		assert.LessOrEqual(t, len(reqs), 3)

		for _, r := range reqs {
			assert.Equal(t, TaskTriggerEndpoint, r.Path)
			assert.Equal(t, TaskTriggerEndpoint, r.Key)
			payload, ok := r.Body.(TaskPayload)
			require.True(t, ok)
			switch payload.TaskType {
			case "add":
				seenAdd = true
				assert.True(t, payload.X >= 1 && payload.X <= 100)
				assert.True(t, payload.Y >= 1 && payload.Y <= 100)
			case "report":
				seenReport = true
				assert.Equal(t, "daily", payload.ReportType)
			default:
				t.Errorf("unexpected task type %q", payload.TaskType)
			}
		}
	}
	assert.True(t, seenAdd)
	assert.True(t, seenReport)
}

// TestGenerator_MixedIsSeeded tests that the same seed picks the same patterns
func TestGenerator_MixedIsSeeded(t *testing.T) {
	run := func() []string {
		doer := &recordingDoer{}
		gen := newTestGenerator(doer, 99, noSleep)
		for range 20 {
			require.NoError(t, gen.Mixed(context.Background(), 5))
		}
		return paths(doer.Requests())
	}

	assert.Equal(t, run(), run())
}

// TestGenerator_ThinkStopsOnCancel tests that a cancelled context ends a pattern early
func TestGenerator_ThinkStopsOnCancel(t *testing.T) {
	doer := &recordingDoer{}
	gen := newTestGenerator(doer, 1, SleepContext)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := gen.Browse(ctx, 0)
	assert.True(t, errors.Is(err, context.Canceled))
	assert.Len(t, doer.Requests(), 1)
}

func TestGenerator_UnknownWorkload(t *testing.T) {
	gen := newTestGenerator(&recordingDoer{}, 1, noSleep)
	assert.Error(t, gen.Run(context.Background(), 0, Workload("soak")))
}

func TestEndpointKey(t *testing.T) {
	assert.Equal(t, "/api/users/", EndpointKey(MethodGet, UsersEndpoint))
	assert.Equal(t, "/api/users/ (POST)", EndpointKey(MethodPost, UsersEndpoint))
	assert.Equal(t, "/api/posts/ (POST)", EndpointKey(MethodPost, PostsEndpoint))
	assert.Equal(t, "/api/tasks/trigger/", EndpointKey(MethodPost, TaskTriggerEndpoint))
	assert.Equal(t, "/hello/", EndpointKey(MethodGet, "/hello/"))
}

func TestSleepContext(t *testing.T) {
	assert.NoError(t, SleepContext(context.Background(), time.Millisecond))
	assert.NoError(t, SleepContext(context.Background(), 0))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, SleepContext(ctx, time.Hour), context.Canceled)
}
