/*
Package loadtest provides concurrent HTTP load generation against a target service.

# Overview

The loadtest package simulates a population of virtual users hitting a web
application with named workload patterns:
  - Concurrent virtual users, one goroutine each
  - Think time between requests
  - Per-endpoint latency aggregation
  - Preflight health probe before a run commits
  - Text, JSON and YAML reports
  - Optional SQLite persistence of finished runs

# Architecture

The package consists of these components:

 1. Executor (executor.go): issues one HTTP request, measures it, records it
 2. Generator (workload.go, sampler.go): browse/read/write/tasks/mixed patterns
 3. VirtualUser (user.go): loops over patterns until its deadline
 4. Orchestrator (orchestrator.go): preflight, fan-out, fan-in, report
 5. Aggregate (aggregate.go): run-scoped shared results
 6. Report (report.go, stats.go): statistics and rendering
 7. Manager (manager.go): run history in SQLite

# Run lifecycle

	probe -> spawn users -> wait for every deadline -> report

A failed probe (transport error or status >= 500) aborts the run with a
*PreflightError before any virtual user is created.

# Statistics

For every endpoint key the report carries count, mean, min, max, p50 and p95.
Percentiles use a truncating index into the sorted samples: sorted[int(n*q)].

# Thread Safety

Aggregate is safe for concurrent use; a sample append and its counter
increments happen under a single lock, so total == successful + failed holds
after every recorded result.

# Example Usage

	cfg := loadtest.DefaultConfig()
	cfg.BaseURL = "http://localhost:8000"
	cfg.Users = 10
	cfg.Duration = 15 * time.Second

	orch, err := loadtest.NewOrchestrator(cfg, loadtest.WithLogger(logger))
	if err != nil {
		return err
	}

	report, err := orch.Run(ctx)
	if err != nil {
		return err
	}
	fmt.Print(report.Text())
*/
package loadtest
