// Package rotation implements the countdown-driven photo rotation.
//
// An Engine owns one session.State. A Clock delivers ticks while the rotation
// is running; when the countdown reaches zero the engine advances to the next
// photo and asks a Dispatcher to resolve it in the background. Completed
// loads come back through HandleResult. Every mutation happens under one
// mutex, and observers are notified only after it is released, so they may
// call back into the engine.
package rotation

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"phototimer/internal/loader"
	"phototimer/pkg/clock"
	errs "phototimer/pkg/errors"
	"phototimer/pkg/logger"
	"phototimer/pkg/session"
)

// ErrInvalidDuration is returned by Start for a non-positive duration
var ErrInvalidDuration = errors.New("rotation duration must be positive")

// Dispatcher accepts image resolution jobs
type Dispatcher interface {
	Submit(job loader.Job) error
}

// Store persists session snapshots
type Store interface {
	Save(ctx context.Context, snap session.Snapshot) error
	Load(ctx context.Context) (session.Snapshot, error)
	Location() string
}

// Engine is the rotation state machine
type Engine struct {
	mu         sync.Mutex
	state      *session.State
	generation uint64
	// started is false until the first Start or a non-idle Restore
	started bool
	// tickToken identifies the current clock registration
	tickToken uint64

	clock      clock.Clock
	dispatcher Dispatcher
	observers  observers
	logger     logger.Logger
	now        func() time.Time
	newID      func() string
}

// Option configures an Engine
type Option func(*Engine)

func WithLogger(l logger.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// WithNow overrides the time source used for snapshot timestamps
func WithNow(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithIDGenerator overrides rotation ID generation
func WithIDGenerator(fn func() string) Option {
	return func(e *Engine) { e.newID = fn }
}

// New creates an idle engine with an empty session
func New(c clock.Clock, d Dispatcher, opts ...Option) *Engine {
	e := &Engine{
		state:      session.New(),
		clock:      c,
		dispatcher: d,
		logger:     logger.NewNopLogger(),
		now:        time.Now,
		newID:      func() string { return uuid.NewString() },
	}
	for _, opt := range opts {
		opt(e)
	}
	e.logger = e.logger.WithField("component", "rotation")
	return e
}

// Subscribe registers an observer and returns a function removing it
func (e *Engine) Subscribe(fn func(Event)) func() {
	return e.observers.add(fn)
}

// pending collects the side effects of one operation so they run after unlock
type pending struct {
	events []Event
	jobs   []loader.Job
}

func (e *Engine) raise(p *pending, kind EventKind, err error) {
	p.events = append(p.events, Event{Kind: kind, Err: err, View: e.state.View()})
}

// finish releases the lock, notifies observers and dispatches queued jobs
func (e *Engine) finish(p *pending) {
	e.mu.Unlock()

	e.observers.publish(p.events)
	for _, job := range p.jobs {
		if err := e.dispatcher.Submit(job); err != nil {
			e.HandleResult(loader.Result{
				Job: job,
				Err: &errs.ImageLoadError{URL: job.URL, Reason: err.Error()},
			})
		}
	}
}

func (e *Engine) log() logger.Logger {
	return e.logger.WithField("rotation_id", e.state.RotationID)
}

// Start begins a fresh rotation over photos, or stops the current one if it
// is running.
func (e *Engine) Start(durationSeconds int, photos []string) error {
	e.mu.Lock()
	var p pending

	if e.state.Status == session.StatusRunning {
		e.clock.Deregister()
		e.state.Status = session.StatusIdle
		e.log().InfoWithFields("rotation stopped", map[string]interface{}{
			"remaining_seconds": e.state.RemainingSeconds,
		})
		e.raise(&p, EventStateChanged, nil)
		e.finish(&p)
		return nil
	}

	if durationSeconds <= 0 {
		e.mu.Unlock()
		return fmt.Errorf("%w: %d seconds", ErrInvalidDuration, durationSeconds)
	}

	e.generation++
	e.started = true
	e.state.RotationID = e.newID()
	e.state.Photos = append(make([]string, 0, len(photos)), photos...)
	e.state.CurrentIndex = -1
	e.state.ClearImage()
	e.state.RemainingSeconds = durationSeconds
	e.state.DurationSeconds = durationSeconds
	e.state.Status = session.StatusRunning
	e.register()

	e.log().InfoWithFields("rotation started", map[string]interface{}{
		"duration_seconds": durationSeconds,
		"photos":           len(photos),
	})
	e.raise(&p, EventStateChanged, nil)
	e.finish(&p)
	return nil
}

// PauseOrResume toggles between Running and Paused. Other states are unaffected.
func (e *Engine) PauseOrResume() {
	e.mu.Lock()
	var p pending

	switch e.state.Status {
	case session.StatusRunning:
		e.clock.Deregister()
		e.state.Status = session.StatusPaused
		e.raise(&p, EventStateChanged, nil)
	case session.StatusPaused:
		e.state.Status = session.StatusRunning
		e.register()
		e.raise(&p, EventStateChanged, nil)
	}

	if len(p.events) > 0 {
		e.log().DebugWithFields("rotation toggled", map[string]interface{}{
			"status": string(e.state.Status),
		})
	}
	e.finish(&p)
}

// register hands the clock a tick callback bound to a fresh token, so ticks
// still in flight from an earlier registration are ignored. It must be called
// with e.mu held.
func (e *Engine) register() {
	e.tickToken++
	token := e.tickToken
	e.clock.Register(func() { e.tickFrom(token) })
}

func (e *Engine) tickFrom(token uint64) {
	e.mu.Lock()
	if token != e.tickToken {
		e.mu.Unlock()
		e.logger.Debug("dropping tick from a previous registration")
		return
	}
	e.tick()
}

// Tick counts down one second. It is a no-op unless the rotation is running.
func (e *Engine) Tick() {
	e.mu.Lock()
	e.tick()
}

// tick must be called with e.mu held; it releases it
func (e *Engine) tick() {
	var p pending

	if e.state.Status != session.StatusRunning {
		e.finish(&p)
		return
	}

	if e.state.RemainingSeconds > 0 {
		e.state.RemainingSeconds--
	}
	if e.state.RemainingSeconds > 0 {
		e.raise(&p, EventTick, nil)
		e.finish(&p)
		return
	}

	e.clock.Deregister()
	e.state.Status = session.StatusIdle
	e.log().Info("interval elapsed")
	e.advance(&p)
	e.raise(&p, EventIntervalElapsed, nil)
	e.finish(&p)
}

// Advance moves to the next photo immediately, without touching the countdown
func (e *Engine) Advance() {
	e.mu.Lock()
	var p pending
	e.advance(&p)
	e.finish(&p)
}

// advance must be called with e.mu held
func (e *Engine) advance(p *pending) {
	if !e.state.HasNext() {
		e.log().DebugWithFields("end of photo list", map[string]interface{}{
			"index":  e.state.CurrentIndex,
			"photos": len(e.state.Photos),
		})
		e.raise(p, EventEndOfList, nil)
		return
	}

	e.state.CurrentIndex++
	p.jobs = append(p.jobs, loader.Job{
		Generation: e.generation,
		Index:      e.state.CurrentIndex,
		URL:        e.state.Photos[e.state.CurrentIndex],
	})
	e.raise(p, EventStateChanged, nil)
}

// End stops the countdown, shows the next photo and marks the rotation
// ended. It does nothing if no rotation was ever started.
func (e *Engine) End() {
	e.mu.Lock()
	var p pending

	if !e.started {
		e.finish(&p)
		return
	}

	e.clock.Deregister()
	e.advance(&p)
	e.state.Status = session.StatusEnded
	e.log().Info("rotation ended")
	e.raise(&p, EventStateChanged, nil)
	e.finish(&p)
}

// SetPhotos replaces the photo list. The position resets and any image still
// loading for the old list is discarded; status and countdown are kept.
func (e *Engine) SetPhotos(photos []string) {
	e.mu.Lock()
	var p pending

	e.generation++
	e.state.Photos = append(make([]string, 0, len(photos)), photos...)
	e.state.CurrentIndex = -1
	e.state.ClearImage()

	e.log().InfoWithFields("photo list replaced", map[string]interface{}{
		"photos": len(photos),
	})
	e.raise(&p, EventStateChanged, nil)
	e.finish(&p)
}

// HandleResult applies a completed image load. Results for an older list,
// or for a position that is no longer current, are dropped.
func (e *Engine) HandleResult(r loader.Result) {
	e.mu.Lock()
	var p pending

	if r.Job.Generation != e.generation || r.Job.Index != e.state.CurrentIndex {
		e.log().DebugWithFields("dropping stale image result", map[string]interface{}{
			"job_generation": r.Job.Generation,
			"generation":     e.generation,
			"job_index":      r.Job.Index,
			"index":          e.state.CurrentIndex,
		})
		e.finish(&p)
		return
	}

	if r.Err != nil {
		e.log().WithError(r.Err).WarnWithFields("failed to load image", map[string]interface{}{
			"url":   r.Job.URL,
			"index": r.Job.Index,
		})
		e.raise(&p, EventImageLoadFailed, r.Err)
		e.finish(&p)
		return
	}

	e.state.CurrentImageURL = r.Job.URL
	e.state.Image = r.Image
	e.state.ImageFormat = r.Format
	e.raise(&p, EventImageLoaded, nil)
	e.finish(&p)
}

// View returns a copy of the session for rendering
func (e *Engine) View() session.View {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state.View()
}

// Snapshot returns the persistable form of the session
func (e *Engine) Snapshot() session.Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state.Snapshot(e.now())
}

// Restore replaces the session with snap. Ticks resume if snap was running
// and the displayed image is resolved again.
func (e *Engine) Restore(snap session.Snapshot) error {
	if err := snap.Validate(); err != nil {
		return err
	}

	e.mu.Lock()
	var p pending

	e.clock.Deregister()
	e.generation++
	e.state = snap.State()
	e.started = snap.Status != session.StatusIdle || snap.CurrentIndex >= 0
	if e.state.Status == session.StatusRunning {
		e.register()
	}
	if e.state.CurrentImageURL != "" {
		p.jobs = append(p.jobs, loader.Job{
			Generation: e.generation,
			Index:      e.state.CurrentIndex,
			URL:        e.state.CurrentImageURL,
		})
	}

	e.log().InfoWithFields("session restored", map[string]interface{}{
		"status": string(e.state.Status),
		"index":  e.state.CurrentIndex,
		"photos": len(e.state.Photos),
	})
	e.raise(&p, EventRestored, nil)
	e.finish(&p)
	return nil
}

// SaveTo writes the current session to store
func (e *Engine) SaveTo(ctx context.Context, store Store) error {
	return store.Save(ctx, e.Snapshot())
}

// LoadFrom restores the session saved in store. On any failure the current
// session is left untouched and a *errors.LoadError is returned.
func (e *Engine) LoadFrom(ctx context.Context, store Store) error {
	snap, err := store.Load(ctx)
	if err != nil {
		var loadErr *errs.LoadError
		if errors.As(err, &loadErr) {
			return err
		}
		return errs.NewLoadError(store.Location(), errs.ErrorTypeIO, err)
	}

	if err := e.Restore(snap); err != nil {
		return errs.NewLoadError(store.Location(), errs.ErrorTypeSchema, err)
	}
	return nil
}
