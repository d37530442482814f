package loadtest

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// Think time after every pattern invocation, [min, max)
var userThink = [2]time.Duration{100 * time.Millisecond, time.Second}

// VirtualUser drives one simulated client until its deadline
type VirtualUser struct {
	ID        int
	generator *Generator
	aggregate *Aggregate
	logger    *zap.Logger
	now       func() time.Time

	iterations int
}

// NewVirtualUser creates a virtual user that reports iteration errors to agg
func NewVirtualUser(id int, gen *Generator, agg *Aggregate, logger *zap.Logger) *VirtualUser {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &VirtualUser{
		ID:        id,
		generator: gen,
		aggregate: agg,
		logger:    logger,
		now:       time.Now,
	}
}

// Run repeats the workload until duration has elapsed. Errors from a single
// iteration are recorded and the loop continues. ctx cancellation is only
// used for process interrupts.
func (u *VirtualUser) Run(ctx context.Context, duration time.Duration, workload Workload) {
	deadline := u.now().Add(duration)
	u.logger.Debug("virtual user started", zap.Int("user", u.ID), zap.Time("deadline", deadline))

	for u.now().Before(deadline) {
		if ctx.Err() != nil {
			break
		}

		if err := u.iterate(ctx, workload); err != nil && ctx.Err() == nil {
			u.aggregate.RecordError(fmt.Sprintf("User %d: %v", u.ID, err))
		}
		u.iterations++

		if err := u.generator.think(ctx, userThink); err != nil {
			break
		}
	}

	u.logger.Debug("virtual user finished", zap.Int("user", u.ID), zap.Int("iterations", u.iterations))
}

// Iterations returns how many pattern invocations the user completed
func (u *VirtualUser) Iterations() int {
	return u.iterations
}

// iterate runs one pattern invocation, converting a panic into an error
func (u *VirtualUser) iterate(ctx context.Context, workload Workload) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return u.generator.Run(ctx, u.ID, workload)
}
