package loadtest

import (
	"context"
	"fmt"
	"math/rand/v2"
	"slices"
	"time"
)

// Demo application routes exercised by the workload patterns
const (
	UsersEndpoint       = "/api/users/"
	PostsEndpoint       = "/api/posts/"
	TaskTriggerEndpoint = "/api/tasks/trigger/"
)

var (
	// BrowseEndpoints are visited in order by the browse pattern
	BrowseEndpoints = []string{"/", "/hello/", "/sync/", "/async/", "/celery/"}
	// ReadEndpoints are sampled uniformly by the read pattern
	ReadEndpoints = []string{UsersEndpoint, PostsEndpoint}
)

// Think time ranges, [min, max)
var (
	browseThink = [2]time.Duration{100 * time.Millisecond, 500 * time.Millisecond}
	readThink   = [2]time.Duration{50 * time.Millisecond, 200 * time.Millisecond}
	tasksThink  = [2]time.Duration{500 * time.Millisecond, time.Second}
	writePause  = 100 * time.Millisecond
)

// EndpointKey returns the aggregation key for a request. POSTs to a path that
// is also read with GET get a " (POST)" suffix so the two are not conflated.
func EndpointKey(method Method, path string) string {
	if method == MethodPost && (slices.Contains(ReadEndpoints, path) || slices.Contains(BrowseEndpoints, path)) {
		return path + " (POST)"
	}
	return path
}

// RequestDoer executes a workload request
type RequestDoer interface {
	Execute(ctx context.Context, req Request) RequestResult
}

// Sleeper pauses for d or until ctx is done
type Sleeper func(ctx context.Context, d time.Duration) error

// SleepContext is the default Sleeper
func SleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// UserPayload is the body of a user create request
type UserPayload struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Age   int    `json:"age"`
}

// PostMetadata marks a post as generated by a load test
type PostMetadata struct {
	LoadTest bool   `json:"load_test"`
	UserID   int    `json:"user_id"`
	RunID    string `json:"run_id,omitempty"`
}

// PostPayload is the body of a post create request
type PostPayload struct {
	Title    string       `json:"title"`
	Content  string       `json:"content"`
	Author   string       `json:"author"`
	Tags     []string     `json:"tags"`
	Metadata PostMetadata `json:"metadata"`
}

// TaskPayload is the body of a background task trigger
type TaskPayload struct {
	TaskType   string `json:"task_type"`
	X          int    `json:"x,omitempty"`
	Y          int    `json:"y,omitempty"`
	ReportType string `json:"report_type,omitempty"`
}

// Generator runs workload patterns for one virtual user. It is not safe for
// concurrent use; each virtual user owns its own generator.
type Generator struct {
	doer  RequestDoer
	rng   *rand.Rand
	sleep Sleeper
	now   func() time.Time
	mix   *Sampler[Workload]
	runID string
}

// NewGenerator creates a generator. A nil sleeper uses SleepContext and a nil
// mix uses DefaultMix.
func NewGenerator(doer RequestDoer, rng *rand.Rand, sleep Sleeper, mix *Sampler[Workload]) *Generator {
	if sleep == nil {
		sleep = SleepContext
	}
	if mix == nil {
		mix, _ = NewSampler(DefaultMix...)
	}
	return &Generator{
		doer:  doer,
		rng:   rng,
		sleep: sleep,
		now:   time.Now,
		mix:   mix,
	}
}

// Run invokes the pattern selected by workload once
func (g *Generator) Run(ctx context.Context, userID int, workload Workload) error {
	switch workload {
	case WorkloadBrowse:
		return g.Browse(ctx, userID)
	case WorkloadRead:
		return g.Read(ctx, userID)
	case WorkloadWrite:
		return g.Write(ctx, userID)
	case WorkloadTasks:
		return g.Tasks(ctx, userID)
	case WorkloadMixed:
		return g.Mixed(ctx, userID)
	default:
		return fmt.Errorf("unknown workload %q", workload)
	}
}

// Browse visits every page endpoint in order
func (g *Generator) Browse(ctx context.Context, userID int) error {
	for _, path := range BrowseEndpoints {
		g.get(ctx, path)
		if err := g.think(ctx, browseThink); err != nil {
			return err
		}
	}
	return nil
}

// Read issues 3-8 GETs against the read endpoints
func (g *Generator) Read(ctx context.Context, userID int) error {
	n := 3 + g.rng.IntN(6)
	for range n {
		g.get(ctx, ReadEndpoints[g.rng.IntN(len(ReadEndpoints))])
		if err := g.think(ctx, readThink); err != nil {
			return err
		}
	}
	return nil
}

// Write creates a user, pauses, then creates a post authored by that user
func (g *Generator) Write(ctx context.Context, userID int) error {
	now := g.now()
	name := fmt.Sprintf("LoadTest User %d", userID)

	g.post(ctx, UsersEndpoint, UserPayload{
		Name:  name,
		Email: fmt.Sprintf("loadtest%d-%d@example.com", userID, now.UnixNano()),
		Age:   18 + g.rng.IntN(48),
	})

	if err := g.sleep(ctx, writePause); err != nil {
		return err
	}

	now = g.now()
	g.post(ctx, PostsEndpoint, PostPayload{
		Title:   fmt.Sprintf("Load Test Post %d - %s", userID, now.Format(time.RFC3339Nano)),
		Content: fmt.Sprintf("This is a load test post generated at %s", now.Format(time.DateTime)),
		Author:  name,
		Tags:    []string{"loadtest", "performance", "testing"},
		Metadata: PostMetadata{
			LoadTest: true,
			UserID:   userID,
			RunID:    g.runID,
		},
	})
	return nil
}

// Tasks triggers 1-3 background tasks
func (g *Generator) Tasks(ctx context.Context, userID int) error {
	n := 1 + g.rng.IntN(3)
	for range n {
		var payload TaskPayload
		if g.rng.IntN(2) == 0 {
			payload = TaskPayload{TaskType: "add", X: 1 + g.rng.IntN(100), Y: 1 + g.rng.IntN(100)}
		} else {
			payload = TaskPayload{TaskType: "report", ReportType: "daily"}
		}
		g.post(ctx, TaskTriggerEndpoint, payload)
		if err := g.think(ctx, tasksThink); err != nil {
			return err
		}
	}
	return nil
}

// Mixed samples one pattern from the mix table and runs it
func (g *Generator) Mixed(ctx context.Context, userID int) error {
	w := g.mix.Pick(g.rng)
	if w == WorkloadMixed {
		return fmt.Errorf("mixed workload cannot select itself")
	}
	return g.Run(ctx, userID, w)
}

func (g *Generator) get(ctx context.Context, path string) RequestResult {
	return g.doer.Execute(ctx, Request{Method: MethodGet, Path: path, Key: EndpointKey(MethodGet, path)})
}

func (g *Generator) post(ctx context.Context, path string, body any) RequestResult {
	return g.doer.Execute(ctx, Request{Method: MethodPost, Path: path, Body: body, Key: EndpointKey(MethodPost, path)})
}

// think sleeps a uniform random duration in [r[0], r[1])
func (g *Generator) think(ctx context.Context, r [2]time.Duration) error {
	return g.sleep(ctx, uniform(g.rng, r[0], r[1]))
}

// uniform returns a duration in [lo, hi)
func uniform(rng *rand.Rand, lo, hi time.Duration) time.Duration {
	if hi <= lo {
		return lo
	}
	return lo + time.Duration(rng.Float64()*float64(hi-lo))
}
