package prefetch

import (
	"runtime"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/aristath/spyglass/internal/ratelimit"
)

// SnapshotSink persists encoded health snapshots.
type SnapshotSink interface {
	InsertSnapshot(takenAt time.Time, payload []byte) error
}

// LimiterObserver exposes provider budget state for snapshots.
type LimiterObserver interface {
	Snapshot() map[string]ratelimit.ProviderSnapshot
}

// HealthSnapshot is one periodic observation of the whole subsystem. It is
// msgpack-encoded into the snapshot history table.
type HealthSnapshot struct {
	TakenAt     time.Time                             `msgpack:"taken_at" json:"taken_at"`
	Running     bool                                  `msgpack:"running" json:"running"`
	QueueDepths map[JobType]int                       `msgpack:"queue_depths" json:"queue_depths"`
	Parked      map[JobType]int                       `msgpack:"parked" json:"parked"`
	Processing  []JobType                             `msgpack:"processing" json:"processing"`
	Stats       StatsSnapshot                         `msgpack:"stats" json:"stats"`
	Providers   map[string]ratelimit.ProviderSnapshot `msgpack:"providers" json:"providers"`
	System      SystemStats                           `msgpack:"system" json:"system"`
}

// SystemStats is the process environment portion of a health snapshot.
type SystemStats struct {
	MemUsedPercent float64 `msgpack:"mem_used_percent" json:"mem_used_percent"`
	CPUPercent     float64 `msgpack:"cpu_percent" json:"cpu_percent"`
	Goroutines     int     `msgpack:"goroutines" json:"goroutines"`
}

// Reporter periodically observes queue depths, dispatcher state, outcome
// stats, provider budgets, and system load, then logs a summary and appends
// an encoded snapshot to the history table. It is strictly read-only toward
// the scheduling state.
type Reporter struct {
	store      *Store
	dispatcher *Dispatcher
	stats      *Stats
	limiter    LimiterObserver
	sink       SnapshotSink
	interval   time.Duration

	mu      sync.Mutex
	running bool
	stop    chan struct{}
	wg      sync.WaitGroup

	log zerolog.Logger
}

// NewReporter creates a new health reporter
func NewReporter(store *Store, dispatcher *Dispatcher, stats *Stats, limiter LimiterObserver, sink SnapshotSink, interval time.Duration, log zerolog.Logger) *Reporter {
	return &Reporter{
		store:      store,
		dispatcher: dispatcher,
		stats:      stats,
		limiter:    limiter,
		sink:       sink,
		interval:   interval,
		log:        log.With().Str("component", "reporter").Logger(),
	}
}

// Start launches the snapshot loop.
func (r *Reporter) Start() {
	r.mu.Lock()
	if r.running {
		r.mu.Unlock()
		return
	}
	r.running = true
	r.stop = make(chan struct{})
	r.mu.Unlock()

	r.wg.Add(1)
	go r.loop()
	r.log.Info().Dur("interval", r.interval).Msg("Reporter started")
}

func (r *Reporter) loop() {
	defer r.wg.Done()

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			r.report()
		case <-r.stop:
			return
		}
	}
}

func (r *Reporter) report() {
	snap := r.Observe()

	totalDepth := 0
	for _, d := range snap.QueueDepths {
		totalDepth += d
	}

	r.log.Info().
		Int("queued", totalDepth).
		Interface("processing", snap.Processing).
		Uint64("processed", snap.Stats.Processed).
		Uint64("failed", snap.Stats.Failed).
		Float64("mem_pct", snap.System.MemUsedPercent).
		Int("goroutines", snap.System.Goroutines).
		Msg("Prefetch health")

	payload, err := msgpack.Marshal(snap)
	if err != nil {
		r.log.Error().Err(err).Msg("Failed to encode snapshot")
		return
	}

	if err := r.sink.InsertSnapshot(snap.TakenAt, payload); err != nil {
		r.log.Error().Err(err).Msg("Failed to persist snapshot")
	}
}

// Observe collects a point-in-time snapshot without persisting it. Also used
// by the stats endpoint.
func (r *Reporter) Observe() HealthSnapshot {
	snap := HealthSnapshot{
		TakenAt:     time.Now(),
		Running:     r.dispatcher.Running(),
		QueueDepths: r.store.Depths(),
		Parked:      r.store.ParkedCounts(),
		Processing:  r.dispatcher.Processing(),
		Stats:       r.stats.Snapshot(),
		System: SystemStats{
			Goroutines: runtime.NumGoroutine(),
		},
	}

	if r.limiter != nil {
		snap.Providers = r.limiter.Snapshot()
	}

	if vm, err := mem.VirtualMemory(); err == nil {
		snap.System.MemUsedPercent = vm.UsedPercent
	}
	if pcts, err := cpu.Percent(0, false); err == nil && len(pcts) > 0 {
		snap.System.CPUPercent = pcts[0]
	}

	return snap
}

// Stop halts the snapshot loop.
func (r *Reporter) Stop() {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return
	}
	r.running = false
	close(r.stop)
	r.mu.Unlock()

	r.wg.Wait()
	r.log.Info().Msg("Reporter stopped")
}
