package trust

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"Threadline/internal/metrics"
)

// Job runs the reputation pipeline (engine → sybil detector → behavioral
// heuristics) periodically per scope. Single-flight: at most one run per
// scope at a time; concurrent triggers share the in-flight run.
type Job struct {
	engine     *Engine
	detector   *Detector
	heuristics *Heuristics
	scopes     func(ctx context.Context) ([]string, error)
	interval   time.Duration

	group  singleflight.Group
	mu     sync.Mutex
	status map[string]*JobStatus
}

// NewJob creates the periodic reputation job. scopes lists the community ids
// to process each tick; the global scope is always processed as well.
func NewJob(
	engine *Engine,
	detector *Detector,
	heuristics *Heuristics,
	scopes func(ctx context.Context) ([]string, error),
	interval time.Duration,
) *Job {
	return &Job{
		engine:     engine,
		detector:   detector,
		heuristics: heuristics,
		scopes:     scopes,
		interval:   interval,
		status:     make(map[string]*JobStatus),
	}
}

// Start runs the job loop until ctx is cancelled. The first run happens
// immediately, then every interval.
func (j *Job) Start(ctx context.Context) {
	log.Printf("Starting reputation job (interval %s)", j.interval)

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	j.runAll(ctx)
	for {
		select {
		case <-ctx.Done():
			log.Println("Reputation job shutting down")
			return
		case <-ticker.C:
			j.runAll(ctx)
		}
	}
}

func (j *Job) runAll(ctx context.Context) {
	scopes := []string{GlobalScope}
	if j.scopes != nil {
		extra, err := j.scopes(ctx)
		if err != nil {
			log.Printf("Failed to list reputation scopes: %v", err)
		} else {
			scopes = append(scopes, extra...)
		}
	}

	for _, scope := range scopes {
		if err := j.RunScope(ctx, scope); err != nil && err != ErrJobRunning {
			log.Printf("Reputation run failed for scope %q: %v", scope, err)
		}
	}

	// Heuristics are scope-independent; run once per tick after the scopes.
	j.heuristics.Run(ctx)
}

// RunScope executes one reputation + sybil run for a scope. Returns
// ErrJobRunning when a run for the scope is already in flight.
func (j *Job) RunScope(ctx context.Context, scope string) error {
	if j.isRunning(scope) {
		return ErrJobRunning
	}

	_, err, _ := j.group.Do(scope, func() (interface{}, error) {
		j.setRunning(scope)
		started := time.Now()

		engineResult, err := j.engine.Run(ctx, scope)
		if err != nil {
			j.setFailed(scope, err)
			metrics.ReputationRuns.WithLabelValues(scopeLabel(scope), "error").Inc()
			return nil, fmt.Errorf("reputation engine: %w", err)
		}

		report, err := j.detector.Run(ctx, scope)
		if err != nil {
			j.setFailed(scope, err)
			metrics.ReputationRuns.WithLabelValues(scopeLabel(scope), "error").Inc()
			return nil, fmt.Errorf("sybil detector: %w", err)
		}

		j.setCompleted(scope)
		metrics.ReputationRuns.WithLabelValues(scopeLabel(scope), "ok").Inc()
		metrics.ReputationDuration.Observe(time.Since(started).Seconds())
		metrics.SybilClustersFlagged.Add(float64(report.ClustersDetected))
		log.Printf("✓ Reputation run for scope %q: %d nodes, %d iterations (converged=%t); %d sybil clusters over %d low-trust ids in %dms",
			scope, engineResult.Nodes, engineResult.Iterations, engineResult.Converged,
			report.ClustersDetected, report.TotalLowTrustDIDs, report.DurationMS)
		return report, nil
	})
	return err
}

// scopeLabel keeps the metric label readable for the empty global scope.
func scopeLabel(scope string) string {
	if scope == GlobalScope {
		return "global"
	}
	return scope
}

// Status returns a snapshot of the job state for a scope.
func (j *Job) Status(scope string) JobStatus {
	j.mu.Lock()
	defer j.mu.Unlock()
	if s, ok := j.status[scope]; ok {
		return *s
	}
	return JobStatus{State: JobIdle}
}

func (j *Job) isRunning(scope string) bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	s, ok := j.status[scope]
	return ok && s.State == JobRunning
}

func (j *Job) setRunning(scope string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	now := time.Now()
	j.status[scope] = &JobStatus{State: JobRunning, StartedAt: &now}
}

func (j *Job) setCompleted(scope string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	now := time.Now()
	if s, ok := j.status[scope]; ok {
		s.State = JobCompleted
		s.FinishedAt = &now
		s.LastError = ""
	}
}

func (j *Job) setFailed(scope string, err error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	now := time.Now()
	if s, ok := j.status[scope]; ok {
		s.State = JobFailed
		s.FinishedAt = &now
		s.LastError = err.Error()
	}
}
