package prefetch

import (
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Store owns one ordered queue per job type. FIFO for normal cycling: a
// succeeded job returns to the tail so every batch of a type is serviced
// fairly, while a failed job is reinserted at the head after its backoff
// delay so it is retried soon. Queue cardinality never exceeds the batch
// count computed at initialization.
type Store struct {
	mu          sync.Mutex
	queues      map[JobType][]*Job
	parked      map[JobType][]parkedJob
	pending     map[string]*time.Timer // job id -> reinsertion timer
	maxAttempts int
	stopped     bool
	log         zerolog.Logger
}

type parkedJob struct {
	job       *Job
	droppedAt time.Time
}

// NewStore creates a job queue store. maxAttempts is the consecutive-failure
// ceiling after which a job is parked instead of requeued.
func NewStore(maxAttempts int, log zerolog.Logger) *Store {
	return &Store{
		queues:      make(map[JobType][]*Job),
		parked:      make(map[JobType][]parkedJob),
		pending:     make(map[string]*time.Timer),
		maxAttempts: maxAttempts,
		log:         log.With().Str("component", "job_store").Logger(),
	}
}

// Initialize partitions identifiers into consecutive batches of at most
// batchSize and creates one job per batch. The batches cover the identifier
// set exactly once. metadata entries are distributed to the batch that owns
// their identifier.
func (s *Store) Initialize(t JobType, identifiers []string, batchSize int, metadata map[string]string) error {
	if batchSize < 1 {
		return fmt.Errorf("batch size for %s must be at least 1, got %d", t, batchSize)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.queues[t]) > 0 {
		return fmt.Errorf("queue for %s already initialized", t)
	}

	var jobs []*Job
	for start := 0; start < len(identifiers); start += batchSize {
		end := start + batchSize
		if end > len(identifiers) {
			end = len(identifiers)
		}

		batch := identifiers[start:end]
		var batchMeta map[string]string
		if metadata != nil {
			batchMeta = make(map[string]string, len(batch))
			for _, id := range batch {
				if v, ok := metadata[id]; ok {
					batchMeta[id] = v
				}
			}
		}

		jobs = append(jobs, NewJob(t, len(jobs), batch, batchMeta))
	}

	s.queues[t] = jobs

	s.log.Info().
		Str("job_type", string(t)).
		Int("identifiers", len(identifiers)).
		Int("batch_size", batchSize).
		Int("jobs", len(jobs)).
		Msg("Job queue initialized")

	return nil
}

// Take removes and returns the head job of a type's queue. The second return
// is false when the queue is empty.
func (s *Store) Take(t JobType) (*Job, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	queue := s.queues[t]
	if len(queue) == 0 {
		return nil, false
	}

	job := queue[0]
	s.queues[t] = queue[1:]
	return job, true
}

// Size returns the current depth of a type's queue.
func (s *Store) Size(t JobType) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.queues[t])
}

// Depths returns the current depth of every queue.
func (s *Store) Depths() map[JobType]int {
	s.mu.Lock()
	defer s.mu.Unlock()

	depths := make(map[JobType]int, len(s.queues))
	for t, queue := range s.queues {
		depths[t] = len(queue)
	}
	return depths
}

// ParkedCounts returns the number of dropped jobs awaiting re-admission per
// type.
func (s *Store) ParkedCounts() map[JobType]int {
	s.mu.Lock()
	defer s.mu.Unlock()

	counts := make(map[JobType]int, len(s.parked))
	for t, parked := range s.parked {
		if len(parked) > 0 {
			counts[t] = len(parked)
		}
	}
	return counts
}

// RequeueSuccess resets the attempt counter, stamps the job, and appends it
// to the tail of its queue to continue the polling cycle.
func (s *Store) RequeueSuccess(job *Job) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return
	}

	job.Attempts = 0
	job.CreatedAt = time.Now()
	s.queues[job.Type] = append(s.queues[job.Type], job)
}

// RequeueFailure increments the attempt counter. Below the ceiling, the job
// is reinserted at the head of its queue after delay; at the ceiling it is
// parked and only returns via ReadmitDropped.
func (s *Store) RequeueFailure(job *Job, delay time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return
	}

	job.Attempts++

	if job.Attempts >= s.maxAttempts {
		s.parked[job.Type] = append(s.parked[job.Type], parkedJob{
			job:       job,
			droppedAt: time.Now(),
		})
		s.log.Warn().
			Str("job_id", job.ID).
			Str("job_type", string(job.Type)).
			Int("attempts", job.Attempts).
			Int("batch_size", len(job.Batch)).
			Msg("Attempt ceiling reached, job parked; coverage reduced until re-admission")
		return
	}

	if delay <= 0 {
		s.reinsertHeadLocked(job)
		return
	}

	timer := time.AfterFunc(delay, func() {
		s.mu.Lock()
		defer s.mu.Unlock()

		delete(s.pending, job.ID)
		if s.stopped {
			return
		}
		s.reinsertHeadLocked(job)
	})
	s.pending[job.ID] = timer
}

// reinsertHeadLocked prepends a job to its queue. Caller holds the lock.
func (s *Store) reinsertHeadLocked(job *Job) {
	job.CreatedAt = time.Now()
	s.queues[job.Type] = append([]*Job{job}, s.queues[job.Type]...)
}

// ReadmitDropped returns parked jobs older than cooldown to the tail of
// their queues with a reset attempt counter, and reports how many were
// re-admitted.
func (s *Store) ReadmitDropped(cooldown time.Duration) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return 0
	}

	now := time.Now()
	readmitted := 0

	for t, parked := range s.parked {
		var remaining []parkedJob
		for _, p := range parked {
			if now.Sub(p.droppedAt) < cooldown {
				remaining = append(remaining, p)
				continue
			}

			p.job.Attempts = 0
			p.job.CreatedAt = now
			s.queues[t] = append(s.queues[t], p.job)
			readmitted++

			s.log.Info().
				Str("job_id", p.job.ID).
				Str("job_type", string(t)).
				Msg("Parked job re-admitted after cooldown")
		}
		s.parked[t] = remaining
	}

	return readmitted
}

// Stop cancels every pending reinsertion timer and rejects further requeues.
func (s *Store) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.stopped = true
	for id, timer := range s.pending {
		timer.Stop()
		delete(s.pending, id)
	}
}
