// Package tick runs the shared periodic-work dispatcher feeding zones and
// effect managers.
package tick

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

// Clock is the monotonic millisecond source shared by the whole
// simulation. Wall-clock adjustments never move it.
type Clock struct {
	start time.Time
}

func NewClock() *Clock {
	return &Clock{start: time.Now()}
}

// NowMS returns milliseconds since process start.
func (c *Clock) NowMS() int64 {
	return time.Since(c.start).Milliseconds()
}

// Job is one registered periodic callback. Fired with at most one
// outstanding invocation: if a tick overruns its period, the next firing
// is skipped rather than queued.
type job struct {
	id       uint64
	period   time.Duration
	nextFire int64 // clock ms
	running  bool
	fn       func(nowMS int64)
}

// Scheduler dispatches periodic work. One goroutine drives the timing
// wheel; job callbacks run on worker goroutines so a slow zone tick never
// stalls the other zones' cadence.
type Scheduler struct {
	mu      sync.Mutex
	clock   *Clock
	jobs    map[uint64]*job
	nextID  uint64
	stopCh  chan struct{}
	stopped sync.Once
	wg      sync.WaitGroup
	log     *zap.Logger

	// onSkip is invoked when a firing is skipped due to overrun. Metrics
	// hook; may be nil.
	onSkip func()
}

func NewScheduler(clock *Clock, log *zap.Logger) *Scheduler {
	return &Scheduler{
		clock:  clock,
		jobs:   make(map[uint64]*job),
		stopCh: make(chan struct{}),
		log:    log,
	}
}

// OnSkip registers a callback for overrun-skipped firings.
func (s *Scheduler) OnSkip(fn func()) {
	s.mu.Lock()
	s.onSkip = fn
	s.mu.Unlock()
}

// Add registers fn to fire every period. Returns the job ID for Remove.
func (s *Scheduler) Add(period time.Duration, fn func(nowMS int64)) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	id := s.nextID
	s.jobs[id] = &job{
		id:       id,
		period:   period,
		nextFire: s.clock.NowMS() + period.Milliseconds(),
		fn:       fn,
	}
	return id
}

// Remove cancels a job. A zone being torn down removes its tick job before
// releasing its entity set; an in-flight invocation finishes but no new
// one starts.
func (s *Scheduler) Remove(id uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.jobs, id)
}

// Run drives the scheduler until Stop. Call in its own goroutine.
func (s *Scheduler) Run() {
	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-s.stopCh:
			return
		case <-ticker.C:
			s.fireDue()
		}
	}
}

func (s *Scheduler) fireDue() {
	now := s.clock.NowMS()

	s.mu.Lock()
	var due []*job
	for _, j := range s.jobs {
		if now < j.nextFire {
			continue
		}
		if j.running {
			// Previous invocation still going: skip this window entirely.
			j.nextFire = now + j.period.Milliseconds()
			if s.onSkip != nil {
				s.onSkip()
			}
			continue
		}
		j.running = true
		j.nextFire = now + j.period.Milliseconds()
		due = append(due, j)
	}
	s.mu.Unlock()

	for _, j := range due {
		j := j
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			defer func() {
				if rec := recover(); rec != nil {
					s.log.Error("tick job panic recovered", zap.Uint64("job", j.id), zap.Any("panic", rec))
				}
				s.mu.Lock()
				j.running = false
				s.mu.Unlock()
			}()
			j.fn(now)
		}()
	}
}

// Stop halts dispatch and waits for in-flight invocations.
func (s *Scheduler) Stop() {
	s.stopped.Do(func() { close(s.stopCh) })
	s.wg.Wait()
}
