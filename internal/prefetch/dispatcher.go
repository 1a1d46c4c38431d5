package prefetch

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// DispatcherConfig holds the concurrency budget and failure backoff
// parameters.
type DispatcherConfig struct {
	MaxConcurrentTypes int
	BaseRetryDelay     time.Duration
	BackoffMultiplier  float64
	MaxBackoff         time.Duration
}

// Dispatcher is the concurrency gate and fault-isolation boundary. It admits
// at most one in-flight job per type and at most MaxConcurrentTypes distinct
// types overall. Every executor failure, error or panic alike, is caught
// here, logged, and converted into the requeue-with-backoff path; nothing
// propagates out, so one provider's outage cannot block another's queue.
type Dispatcher struct {
	store     *Store
	stats     *Stats
	executors map[JobType]Executor
	cfg       DispatcherConfig

	mu         sync.Mutex
	processing map[JobType]bool
	stopped    bool
	wg         sync.WaitGroup

	log zerolog.Logger
}

// NewDispatcher creates a new dispatcher
func NewDispatcher(store *Store, stats *Stats, cfg DispatcherConfig, log zerolog.Logger) *Dispatcher {
	return &Dispatcher{
		store:      store,
		stats:      stats,
		executors:  make(map[JobType]Executor),
		cfg:        cfg,
		processing: make(map[JobType]bool),
		log:        log.With().Str("component", "dispatcher").Logger(),
	}
}

// RegisterExecutor binds an executor to a job type.
func (d *Dispatcher) RegisterExecutor(t JobType, ex Executor) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.executors[t] = ex
}

// Dispatch attempts to run the head job of a type's queue. It returns false
// without side effects when the type is already processing, the global
// ceiling is reached, the queue is empty, or the dispatcher is stopped; the
// type's next timer fire retries naturally.
func (d *Dispatcher) Dispatch(t JobType) bool {
	d.mu.Lock()

	if d.stopped {
		d.mu.Unlock()
		return false
	}
	if d.processing[t] {
		d.mu.Unlock()
		return false
	}
	if len(d.processing) >= d.cfg.MaxConcurrentTypes {
		d.mu.Unlock()
		d.log.Debug().
			Str("job_type", string(t)).
			Int("ceiling", d.cfg.MaxConcurrentTypes).
			Msg("Dispatch deferred, concurrency ceiling reached")
		return false
	}

	ex, ok := d.executors[t]
	if !ok {
		d.mu.Unlock()
		d.log.Warn().Str("job_type", string(t)).Msg("No executor registered")
		return false
	}

	job, ok := d.store.Take(t)
	if !ok {
		d.mu.Unlock()
		return false
	}

	d.processing[t] = true
	d.wg.Add(1)
	d.mu.Unlock()

	go d.run(job, ex)
	return true
}

// run drives a single job to completion and updates the queue and stats.
func (d *Dispatcher) run(job *Job, ex Executor) {
	defer d.wg.Done()

	start := time.Now()
	err := d.execute(job, ex)
	elapsed := time.Since(start)

	d.mu.Lock()
	delete(d.processing, job.Type)
	d.mu.Unlock()

	if err != nil {
		// Delay is computed with the post-increment attempt count that
		// RequeueFailure will assign.
		delay := d.backoffDelay(job.Attempts + 1)

		d.log.Error().
			Err(err).
			Str("job_id", job.ID).
			Str("job_type", string(job.Type)).
			Int("attempts", job.Attempts+1).
			Dur("retry_delay", delay).
			Msg("Job failed")

		d.store.RequeueFailure(job, delay)
		d.stats.RecordFailure()
		return
	}

	d.store.RequeueSuccess(job)
	d.stats.RecordSuccess(elapsed)

	d.log.Debug().
		Str("job_id", job.ID).
		Str("job_type", string(job.Type)).
		Dur("duration", elapsed).
		Msg("Job completed")
}

// execute invokes the executor with panic containment.
func (d *Dispatcher) execute(job *Job, ex Executor) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("executor panic: %v", r)
		}
	}()

	return ex.Execute(context.Background(), job)
}

// backoffDelay returns min(maxBackoff, base × multiplier^attempts).
func (d *Dispatcher) backoffDelay(attempts int) time.Duration {
	delay := time.Duration(float64(d.cfg.BaseRetryDelay) * math.Pow(d.cfg.BackoffMultiplier, float64(attempts)))
	if delay > d.cfg.MaxBackoff {
		return d.cfg.MaxBackoff
	}
	return delay
}

// Running reports whether the dispatcher still accepts work.
func (d *Dispatcher) Running() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return !d.stopped
}

// Processing returns the job types currently in flight, sorted.
func (d *Dispatcher) Processing() []JobType {
	d.mu.Lock()
	defer d.mu.Unlock()

	types := make([]JobType, 0, len(d.processing))
	for t := range d.processing {
		types = append(types, t)
	}
	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })
	return types
}

// Stop rejects new dispatches and waits for in-flight executors to finish.
// Results of jobs already running are still persisted and requeued.
func (d *Dispatcher) Stop() {
	d.mu.Lock()
	d.stopped = true
	d.mu.Unlock()

	d.wg.Wait()
	d.log.Info().Msg("Dispatcher stopped")
}
