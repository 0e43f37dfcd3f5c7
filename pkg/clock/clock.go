// Package clock delivers the once-per-interval tick that drives a rotation
// countdown.
package clock

import (
	"sync"
	"time"
)

// Clock registers a single tick callback. Register replaces any previous
// registration. Deregister never blocks and may be called from inside the
// callback itself.
type Clock interface {
	Register(fn func())
	Deregister()
	Registered() bool
}

// Ticker is a Clock backed by time.Ticker, one goroutine per registration
type Ticker struct {
	interval time.Duration

	mu     sync.Mutex
	stopCh chan struct{}
}

// NewTicker creates a Ticker firing every interval (one second if interval <= 0)
func NewTicker(interval time.Duration) *Ticker {
	if interval <= 0 {
		interval = time.Second
	}
	return &Ticker{interval: interval}
}

func (t *Ticker) Register(fn func()) {
	t.mu.Lock()
	if t.stopCh != nil {
		close(t.stopCh)
	}
	stopCh := make(chan struct{})
	t.stopCh = stopCh
	t.mu.Unlock()

	go t.loop(stopCh, fn)
}

func (t *Ticker) Deregister() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.stopCh != nil {
		close(t.stopCh)
		t.stopCh = nil
	}
}

func (t *Ticker) Registered() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stopCh != nil
}

func (t *Ticker) loop(stopCh chan struct{}, fn func()) {
	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	for {
		select {
		case <-stopCh:
			return
		case <-ticker.C:
			// A deregistration racing the tick wins
			select {
			case <-stopCh:
				return
			default:
			}
			fn()
		}
	}
}

// Manual is a Clock driven explicitly by tests
type Manual struct {
	mu sync.Mutex
	fn func()
	// Registrations counts Register calls, for assertions
	Registrations int
}

// NewManual returns an unregistered manual clock
func NewManual() *Manual {
	return &Manual{}
}

func (m *Manual) Register(fn func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fn = fn
	m.Registrations++
}

func (m *Manual) Deregister() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fn = nil
}

// Callback returns the registered callback, or nil
func (m *Manual) Callback() func() {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.fn
}

func (m *Manual) Registered() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.fn != nil
}

// Tick fires the registered callback n times, stopping early once the
// callback deregisters. It returns the number of ticks delivered.
func (m *Manual) Tick(n int) int {
	delivered := 0
	for i := 0; i < n; i++ {
		m.mu.Lock()
		fn := m.fn
		m.mu.Unlock()
		if fn == nil {
			break
		}
		fn()
		delivered++
	}
	return delivered
}
