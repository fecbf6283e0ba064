package appointment

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ExpiryScheduler keeps one timer per pending appointment. When a timer fires
// the callback runs with the scheduler's context; Cancel and Stop make sure a
// disarmed timer never calls it.
type ExpiryScheduler struct {
	fire func(ctx context.Context, id uuid.UUID)

	mu      sync.Mutex
	timers  map[uuid.UUID]*time.Timer
	stopped bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewExpiryScheduler(fire func(ctx context.Context, id uuid.UUID)) *ExpiryScheduler {
	ctx, cancel := context.WithCancel(context.Background())
	return &ExpiryScheduler{
		fire:   fire,
		timers: make(map[uuid.UUID]*time.Timer),
		ctx:    ctx,
		cancel: cancel,
	}
}

// Schedule arms the sweep for id after delay, replacing any earlier timer.
func (e *ExpiryScheduler) Schedule(id uuid.UUID, delay time.Duration) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.stopped {
		return
	}
	if old, ok := e.timers[id]; ok {
		old.Stop()
	}

	var t *time.Timer
	t = time.AfterFunc(delay, func() {
		e.mu.Lock()
		if e.timers[id] != t {
			e.mu.Unlock()
			return
		}
		delete(e.timers, id)
		e.wg.Add(1)
		e.mu.Unlock()

		defer e.wg.Done()
		e.fire(e.ctx, id)
	})
	e.timers[id] = t
}

// Cancel disarms the sweep for id. Unknown ids are ignored.
func (e *ExpiryScheduler) Cancel(id uuid.UUID) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if t, ok := e.timers[id]; ok {
		t.Stop()
		delete(e.timers, id)
	}
}

// Pending reports how many sweeps are armed.
func (e *ExpiryScheduler) Pending() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.timers)
}

// Stop disarms every timer and waits for sweeps already running.
func (e *ExpiryScheduler) Stop() {
	e.mu.Lock()
	e.stopped = true
	for id, t := range e.timers {
		t.Stop()
		delete(e.timers, id)
	}
	e.mu.Unlock()

	e.wg.Wait()
	e.cancel()
}
