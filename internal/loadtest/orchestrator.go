package loadtest

import (
	"context"
	"fmt"
	"io"
	"math/rand/v2"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Option configures an Orchestrator
type Option func(*Orchestrator)

// WithLogger sets the logger
func WithLogger(logger *zap.Logger) Option {
	return func(o *Orchestrator) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithMetrics publishes every result to m
func WithMetrics(m *Metrics) Option {
	return func(o *Orchestrator) { o.metrics = m }
}

// WithHTTPClient replaces the pooled client used for workload requests
func WithHTTPClient(client *http.Client) Option {
	return func(o *Orchestrator) { o.httpClient = client }
}

// WithSleeper replaces the think-time sleeper
func WithSleeper(s Sleeper) Option {
	return func(o *Orchestrator) { o.sleep = s }
}

// WithMix replaces the mixed workload distribution
func WithMix(mix *Sampler[Workload]) Option {
	return func(o *Orchestrator) { o.mix = mix }
}

// WithOutput sets where the start banner is written
func WithOutput(w io.Writer) Option {
	return func(o *Orchestrator) { o.out = w }
}

// Orchestrator runs a complete load test: probe, spawn, await, report.
// An Orchestrator runs once; its aggregate belongs to that run.
type Orchestrator struct {
	cfg        Config
	runID      string
	seed       uint64
	aggregate  *Aggregate
	executor   *Executor
	httpClient *http.Client
	logger     *zap.Logger
	metrics    *Metrics
	sleep      Sleeper
	mix        *Sampler[Workload]
	out        io.Writer
	now        func() time.Time
}

// NewOrchestrator validates cfg and prepares a run
func NewOrchestrator(cfg Config, opts ...Option) (*Orchestrator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	workload, err := ParseWorkload(string(cfg.Workload))
	if err != nil {
		return nil, err
	}
	cfg.Workload = workload

	o := &Orchestrator{
		cfg:    cfg,
		runID:  uuid.New().String(),
		logger: zap.NewNop(),
		sleep:  SleepContext,
		out:    io.Discard,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}

	o.seed = cfg.Seed
	if o.seed == 0 {
		o.seed = uint64(o.now().UnixNano())
	}
	if o.mix == nil {
		if o.mix, err = NewSampler(DefaultMix...); err != nil {
			return nil, err
		}
	}

	var observers []Observer
	if o.metrics != nil {
		observers = append(observers, o.metrics)
	}
	o.aggregate = NewAggregate(observers...)
	o.executor = NewExecutor(cfg, o.aggregate, o.httpClient, o.logger)
	return o, nil
}

// RunID returns the unique id of this run
func (o *Orchestrator) RunID() string {
	return o.runID
}

// Aggregate returns the run's shared results
func (o *Orchestrator) Aggregate() *Aggregate {
	return o.aggregate
}

// Preflight probes the base url once. A transport failure or a 5xx status
// returns a *PreflightError.
func (o *Orchestrator) Preflight(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, o.cfg.GetProbeTimeout())
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, o.cfg.BaseURL, nil)
	if err != nil {
		return &PreflightError{URL: o.cfg.BaseURL, Err: err}
	}

	resp, err := o.executor.httpClient.Do(req)
	if err != nil {
		o.logger.Warn("preflight probe failed",
			zap.String("url", o.cfg.BaseURL),
			zap.String("kind", string(ClassifyError(err))),
			zap.Error(err))
		return &PreflightError{URL: o.cfg.BaseURL, Err: err}
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if IsServerErrorStatus(resp.StatusCode) {
		o.logger.Warn("preflight probe returned server error",
			zap.String("url", o.cfg.BaseURL),
			zap.Int("status", resp.StatusCode))
		return &PreflightError{URL: o.cfg.BaseURL, Status: resp.StatusCode}
	}

	o.logger.Info("preflight probe ok", zap.String("url", o.cfg.BaseURL), zap.Int("status", resp.StatusCode))
	return nil
}

// Run executes the load test and returns its report. It blocks until every
// virtual user has reached its deadline. Cancelling ctx stops users early
// and marks the report as interrupted.
func (o *Orchestrator) Run(ctx context.Context) (*Report, error) {
	if err := o.Preflight(ctx); err != nil {
		return nil, err
	}

	startedAt := o.now()
	fmt.Fprint(o.out, Banner(o.cfg, o.runID, startedAt))
	o.logger.Info("load test started",
		zap.String("run_id", o.runID),
		zap.String("url", o.cfg.BaseURL),
		zap.Int("users", o.cfg.Users),
		zap.Duration("duration", o.cfg.Duration),
		zap.String("workload", string(o.cfg.Workload)),
		zap.Uint64("seed", o.seed))

	stopProgress := o.startProgress(startedAt)

	var g errgroup.Group
	for id := range o.cfg.Users {
		user := NewVirtualUser(id, o.newGenerator(id), o.aggregate, o.logger)
		g.Go(func() error {
			if o.metrics != nil {
				o.metrics.UserStarted()
				defer o.metrics.UserFinished()
			}
			user.Run(ctx, o.cfg.Duration, o.cfg.Workload)
			return nil
		})
	}
	_ = g.Wait()
	stopProgress()

	elapsed := o.now().Sub(startedAt)
	report := BuildReport(o.cfg, o.aggregate.Snapshot(), startedAt, elapsed)
	report.RunID = o.runID
	report.Interrupted = ctx.Err() != nil

	o.logger.Info("load test finished",
		zap.String("run_id", o.runID),
		zap.Duration("elapsed", elapsed),
		zap.Int("total", report.TotalRequests),
		zap.Int("failed", report.FailedRequests),
		zap.Bool("interrupted", report.Interrupted))
	return report, nil
}

// newGenerator builds the per-user generator with its own random stream
func (o *Orchestrator) newGenerator(userID int) *Generator {
	rng := rand.New(rand.NewPCG(o.seed, uint64(userID)))
	gen := NewGenerator(o.executor, rng, o.sleep, o.mix)
	gen.runID = o.runID
	return gen
}

// startProgress logs running totals until the returned stop func is called
func (o *Orchestrator) startProgress(startedAt time.Time) (stop func()) {
	if o.cfg.ProgressInterval <= 0 {
		return func() {}
	}

	done := make(chan struct{})
	finished := make(chan struct{})
	go func() {
		defer close(finished)
		ticker := time.NewTicker(o.cfg.ProgressInterval)
		defer ticker.Stop()

		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				total, succeeded, failed := o.aggregate.Counts()
				elapsed := o.now().Sub(startedAt)
				rps := 0.0
				if elapsed > 0 {
					rps = float64(total) / elapsed.Seconds()
				}
				o.logger.Info("progress",
					zap.Duration("elapsed", elapsed.Round(time.Second)),
					zap.Int("total", total),
					zap.Int("successful", succeeded),
					zap.Int("failed", failed),
					zap.Float64("rps", rps))
			}
		}
	}()

	return func() {
		close(done)
		<-finished
	}
}
