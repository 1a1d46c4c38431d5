package prefetch

import (
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// TypeSchedule describes one job type's timer.
type TypeSchedule struct {
	Type     JobType
	Interval time.Duration
	Enabled  bool
}

// Scheduler owns one timer goroutine per enabled job type. Timers only ask
// the dispatcher to run the type's head job; all admission decisions live in
// the dispatcher, so a deferred dispatch is simply retried on the next tick.
type Scheduler struct {
	dispatcher   *Dispatcher
	schedules    []TypeSchedule
	initialDelay time.Duration

	mu      sync.Mutex
	running bool
	stop    chan struct{}
	wg      sync.WaitGroup

	log zerolog.Logger
}

// NewScheduler creates a new scheduler
func NewScheduler(dispatcher *Dispatcher, schedules []TypeSchedule, initialDelay time.Duration, log zerolog.Logger) *Scheduler {
	return &Scheduler{
		dispatcher:   dispatcher,
		schedules:    schedules,
		initialDelay: initialDelay,
		log:          log.With().Str("component", "scheduler").Logger(),
	}
}

// Start launches the timer loops. The most urgent enabled type gets one
// extra dispatch after the initial delay so fresh data arrives before the
// first full interval elapses.
func (s *Scheduler) Start() {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return
	}
	s.running = true
	s.stop = make(chan struct{})
	s.mu.Unlock()

	started := 0
	for _, sched := range s.schedules {
		if !sched.Enabled || sched.Interval <= 0 {
			s.log.Info().
				Str("job_type", string(sched.Type)).
				Msg("Job type disabled, no timer started")
			continue
		}

		s.wg.Add(1)
		go s.loop(sched)
		started++
	}

	if first, ok := s.firstEnabled(); ok {
		s.wg.Add(1)
		go s.initialFire(first)
	}

	s.log.Info().Int("timers", started).Msg("Scheduler started")
}

// firstEnabled returns the most urgent enabled job type.
func (s *Scheduler) firstEnabled() (JobType, bool) {
	best := JobType("")
	bestPrio := Priority(0)
	for _, sched := range s.schedules {
		if !sched.Enabled {
			continue
		}
		if p := PriorityFor(sched.Type); best == "" || p < bestPrio {
			best = sched.Type
			bestPrio = p
		}
	}
	return best, best != ""
}

func (s *Scheduler) initialFire(t JobType) {
	defer s.wg.Done()

	timer := time.NewTimer(s.initialDelay)
	defer timer.Stop()

	select {
	case <-timer.C:
		s.log.Debug().Str("job_type", string(t)).Msg("Initial dispatch")
		s.dispatcher.Dispatch(t)
	case <-s.stop:
	}
}

func (s *Scheduler) loop(sched TypeSchedule) {
	defer s.wg.Done()

	ticker := time.NewTicker(sched.Interval)
	defer ticker.Stop()

	s.log.Debug().
		Str("job_type", string(sched.Type)).
		Dur("interval", sched.Interval).
		Msg("Timer loop started")

	for {
		select {
		case <-ticker.C:
			s.dispatcher.Dispatch(sched.Type)
		case <-s.stop:
			return
		}
	}
}

// Trigger dispatches a type immediately, outside its timer cadence. Used by
// the manual trigger endpoint. Returns false when the dispatch was deferred.
func (s *Scheduler) Trigger(t JobType) bool {
	return s.dispatcher.Dispatch(t)
}

// Stop halts all timer loops. In-flight jobs are the dispatcher's concern.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	close(s.stop)
	s.mu.Unlock()

	s.wg.Wait()
	s.log.Info().Msg("Scheduler stopped")
}
