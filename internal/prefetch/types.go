// Package prefetch implements the adaptive multi-source ingestion scheduler:
// batched job queues per data source, independent per-type timers, a
// bounded-concurrency dispatcher, and executors with fallback chains. It
// keeps many heterogeneous polling streams alive concurrently under a global
// budget while absorbing partial failures from flaky upstreams.
package prefetch

import (
	"fmt"
	"time"
)

// JobType represents the type of prefetch job
type JobType string

const (
	JobTypeQuotes       JobType = "quotes"
	JobTypeNews         JobType = "news"
	JobTypeFundamentals JobType = "fundamentals"
	JobTypeInsightAlpha JobType = "insight_alpha"
	JobTypeInsightBeta  JobType = "insight_beta"
)

// AllJobTypes returns every job type in priority order (most urgent first).
func AllJobTypes() []JobType {
	return []JobType{
		JobTypeQuotes,
		JobTypeNews,
		JobTypeFundamentals,
		JobTypeInsightAlpha,
		JobTypeInsightBeta,
	}
}

// Priority is the urgency tier of a job type. Lower is more urgent. The tier
// is fixed per job type and passed through to the rate limiter on every
// outbound call.
type Priority int

var priorityTable = map[JobType]Priority{
	JobTypeQuotes:       1,
	JobTypeNews:         2,
	JobTypeFundamentals: 3,
	JobTypeInsightAlpha: 4,
	JobTypeInsightBeta:  5,
}

// PriorityFor returns the static priority tier for a job type.
func PriorityFor(t JobType) Priority {
	if p, ok := priorityTable[t]; ok {
		return p
	}
	return Priority(len(priorityTable) + 1)
}

// Job is a unit of scheduled work: one batch of resolved provider
// identifiers for one job type. Jobs are created once at initialization and
// cycle between queue head and tail for the lifetime of the process.
type Job struct {
	ID        string
	Type      JobType
	Batch     []string
	Metadata  map[string]string // identifier -> auxiliary resolved value
	Priority  Priority
	CreatedAt time.Time
	Attempts  int
}

// NewJob creates a job for the given batch index of a job type.
func NewJob(t JobType, index int, batch []string, metadata map[string]string) *Job {
	return &Job{
		ID:        fmt.Sprintf("%s-%03d", t, index),
		Type:      t,
		Batch:     batch,
		Metadata:  metadata,
		Priority:  PriorityFor(t),
		CreatedAt: time.Now(),
	}
}
