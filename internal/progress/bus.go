// Package progress implements the process-wide, lossy progress and
// cancellation bus shared by every pipeline stage. Publication never
// blocks; only the latest event per job is retained.
package progress

import "sync"

// Status is the terminal/non-terminal state of a job's progress event.
type Status string

const (
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// Stage names used for the fraction-complete weighting convention.
const (
	StageLoad     = "load"
	StageCluster  = "cluster"
	StageCPSAT    = "cpsat"
	StageGA       = "ga"
	StageRL       = "rl"
	StageFinalize = "finalize"
)

// stageWeight is the fraction of total job progress each stage contributes,
// per spec §4.2: load=2%, cluster=3%, cpsat=10%, ga=75%, rl=7%, finalize=3%.
var stageWeight = map[string]float64{
	StageLoad:     0.02,
	StageCluster:  0.03,
	StageCPSAT:    0.10,
	StageGA:       0.75,
	StageRL:       0.07,
	StageFinalize: 0.03,
}

var stageOrder = []string{StageLoad, StageCluster, StageCPSAT, StageGA, StageRL, StageFinalize}

// Event is one progress tick for a job.
type Event struct {
	JobID           string
	Stage           string
	FractionComplete float64
	Message         string
	Status          Status
}

// StageFraction converts a stage-local completion fraction (0..1) into the
// job-global FractionComplete, accounting for every stage weight that comes
// before it.
func StageFraction(stage string, localFraction float64) float64 {
	if localFraction < 0 {
		localFraction = 0
	}
	if localFraction > 1 {
		localFraction = 1
	}
	done := 0.0
	for _, s := range stageOrder {
		if s == stage {
			return done + stageWeight[s]*localFraction
		}
		done += stageWeight[s]
	}
	return done
}

// Observer receives every published event for a subscribed job. Each call
// runs in its own goroutine, so calls may arrive out of publish order.
// Used by transports such as internal/progressws.
type Observer func(Event)

// Bus is the non-blocking, lossy publish/cancel bus. Latest event per job
// wins; a slow or absent observer never blocks a publishing stage.
type Bus struct {
	mu        sync.RWMutex
	latest    map[string]Event
	cancelled map[string]bool
	observers map[string][]Observer
}

// New returns an empty Bus.
func New() *Bus {
	return &Bus{
		latest:    make(map[string]Event),
		cancelled: make(map[string]bool),
		observers: make(map[string][]Observer),
	}
}

// Publish records the latest event for a job and fans it out to any
// subscribed observers. It never blocks on a slow observer: each observer
// is invoked in its own goroutine.
func (b *Bus) Publish(jobID string, e Event) {
	e.JobID = jobID
	b.mu.Lock()
	b.latest[jobID] = e
	obs := append([]Observer(nil), b.observers[jobID]...)
	b.mu.Unlock()

	for _, o := range obs {
		go o(e)
	}
}

// Latest returns the most recent event published for a job.
func (b *Bus) Latest(jobID string) (Event, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	e, ok := b.latest[jobID]
	return e, ok
}

// Subscribe registers an observer for every future event on a job. It
// returns an unsubscribe function.
func (b *Bus) Subscribe(jobID string, obs Observer) (unsubscribe func()) {
	b.mu.Lock()
	b.observers[jobID] = append(b.observers[jobID], obs)
	idx := len(b.observers[jobID]) - 1
	b.mu.Unlock()

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		list := b.observers[jobID]
		if idx < 0 || idx >= len(list) {
			return
		}
		b.observers[jobID] = append(list[:idx], list[idx+1:]...)
	}
}

// Cancel marks a job cancelled. Stages observe this via IsCancelled at
// every externalizable progress tick.
func (b *Bus) Cancel(jobID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.cancelled[jobID] = true
}

// IsCancelled is the cheap, non-blocking cancellation poll every stage
// checks between chunks, generations, or episodes.
func (b *Bus) IsCancelled(jobID string) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.cancelled[jobID]
}

// Forget drops all bus state for a job once it has terminated, so a
// long-lived process does not leak memory across jobs.
func (b *Bus) Forget(jobID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.latest, jobID)
	delete(b.cancelled, jobID)
	delete(b.observers, jobID)
}
