package loadtest

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

// steppingClock advances by step on every call
func steppingClock(step time.Duration) func() time.Time {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	return func() time.Time {
		t := now
		now = now.Add(step)
		return t
	}
}

// TestVirtualUser_RunsUntilDeadline tests that the loop ends only when the deadline passes
func TestVirtualUser_RunsUntilDeadline(t *testing.T) {
	doer := &recordingDoer{}
	agg := NewAggregate()
	user := NewVirtualUser(0, newTestGenerator(doer, 1, noSleep), agg, zap.NewNop())
	user.now = steppingClock(time.Second)

	// deadline = t0+5s; checks at t0+1s..t0+4s pass, t0+5s stops
	user.Run(context.Background(), 5*time.Second, WorkloadBrowse)

	assert.Equal(t, 4, user.Iterations())
	assert.Len(t, doer.Requests(), 4*len(BrowseEndpoints))
	assert.Empty(t, agg.Errors())
}

// TestVirtualUser_PanicIsRecorded tests that a failing iteration is logged and the loop continues
func TestVirtualUser_PanicIsRecorded(t *testing.T) {
	doer := &recordingDoer{panicMsg: "boom"}
	agg := NewAggregate()
	user := NewVirtualUser(3, newTestGenerator(doer, 1, noSleep), agg, nil)
	user.now = steppingClock(time.Second)

	user.Run(context.Background(), 4*time.Second, WorkloadRead)

	assert.Equal(t, 3, user.Iterations())
	errs := agg.Errors()
	assert.Len(t, errs, 3)
	for _, e := range errs {
		assert.Equal(t, "User 3: panic: boom", e)
	}
}

// TestVirtualUser_StopsOnCancel tests that an interrupt ends the loop before the deadline
func TestVirtualUser_StopsOnCancel(t *testing.T) {
	doer := &recordingDoer{}
	agg := NewAggregate()
	user := NewVirtualUser(1, newTestGenerator(doer, 1, SleepContext), agg, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	user.Run(ctx, time.Hour, WorkloadTasks)

	assert.Less(t, time.Since(start), 5*time.Second)
	assert.Empty(t, agg.Errors())
}

// TestVirtualUser_ZeroDuration tests that an expired deadline runs nothing
func TestVirtualUser_ZeroDuration(t *testing.T) {
	doer := &recordingDoer{}
	user := NewVirtualUser(0, newTestGenerator(doer, 1, noSleep), NewAggregate(), nil)

	user.Run(context.Background(), 0, WorkloadBrowse)

	assert.Zero(t, user.Iterations())
	assert.Empty(t, doer.Requests())
}
