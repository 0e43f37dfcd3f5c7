package rotation

import (
	"context"
	"errors"
	"image"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"phototimer/internal/loader"
	"phototimer/pkg/clock"
	errs "phototimer/pkg/errors"
	"phototimer/pkg/logger"
	"phototimer/pkg/session"
)

// syncDispatcher resolves jobs immediately, failing URLs listed in fail
type syncDispatcher struct {
	engine *Engine
	fail   map[string]bool
	mu     sync.Mutex
	jobs   []loader.Job
}

func (d *syncDispatcher) Submit(job loader.Job) error {
	d.mu.Lock()
	d.jobs = append(d.jobs, job)
	d.mu.Unlock()

	result := loader.Result{Job: job}
	if d.fail[job.URL] {
		result.Err = &errs.ImageLoadError{URL: job.URL, Reason: "not found"}
	} else {
		result.Image = image.NewRGBA(image.Rect(0, 0, 4, 3))
		result.Format = "png"
	}
	d.engine.HandleResult(result)
	return nil
}

// heldDispatcher keeps jobs until the test completes them
type heldDispatcher struct {
	jobs []loader.Job
	err  error
}

func (d *heldDispatcher) Submit(job loader.Job) error {
	if d.err != nil {
		return d.err
	}
	d.jobs = append(d.jobs, job)
	return nil
}

type recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *recorder) observe(ev Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recorder) count(kind EventKind) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, ev := range r.events {
		if ev.Kind == kind {
			n++
		}
	}
	return n
}

func (r *recorder) last(kind EventKind) (Event, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := len(r.events) - 1; i >= 0; i-- {
		if r.events[i].Kind == kind {
			return r.events[i], true
		}
	}
	return Event{}, false
}

type fixture struct {
	engine   *Engine
	clock    *clock.Manual
	dispatch *syncDispatcher
	events   *recorder
	log      *logger.TestLogger
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		clock:    clock.NewManual(),
		dispatch: &syncDispatcher{fail: map[string]bool{}},
		events:   &recorder{},
		log:      logger.NewTestLogger(),
	}
	ids := 0
	f.engine = New(f.clock, f.dispatch,
		WithLogger(f.log),
		WithNow(func() time.Time { return time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC) }),
		WithIDGenerator(func() string {
			ids++
			return "rotation-" + string(rune('0'+ids))
		}),
	)
	f.dispatch.engine = f.engine
	f.engine.Subscribe(f.events.observe)
	return f
}

func TestStartRejectsNonPositiveDuration(t *testing.T) {
	f := newFixture(t)

	for _, d := range []int{0, -1} {
		err := f.engine.Start(d, []string{"a"})
		assert.ErrorIs(t, err, ErrInvalidDuration)
	}
	assert.Equal(t, session.StatusIdle, f.engine.View().Status)
	assert.False(t, f.clock.Registered())
	assert.Empty(t, f.events.events)
}

func TestStartBeginsFreshRotation(t *testing.T) {
	f := newFixture(t)

	require.NoError(t, f.engine.Start(300, []string{"a", "b", "c"}))

	v := f.engine.View()
	assert.Equal(t, session.StatusRunning, v.Status)
	assert.Equal(t, -1, v.CurrentIndex)
	assert.Equal(t, 300, v.RemainingSeconds)
	assert.Equal(t, "5 minutes 0 seconds", v.RemainingText)
	assert.Equal(t, "rotation-1", v.RotationID)
	assert.True(t, f.clock.Registered())
	assert.Equal(t, 1, f.events.count(EventStateChanged))
}

func TestStartWhileRunningStops(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.engine.Start(10, []string{"a"}))
	f.clock.Tick(3)

	require.NoError(t, f.engine.Start(10, []string{"x", "y"}))

	v := f.engine.View()
	assert.Equal(t, session.StatusIdle, v.Status)
	assert.Equal(t, 7, v.RemainingSeconds)
	assert.Equal(t, []string{"a"}, v.Photos)
	assert.False(t, f.clock.Registered())
}

func TestStartWithZeroDurationStopsRunningRotation(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.engine.Start(60, []string{"a"}))
	f.clock.Tick(5)

	require.NoError(t, f.engine.Start(0, nil))

	v := f.engine.View()
	assert.Equal(t, session.StatusIdle, v.Status)
	assert.Equal(t, 55, v.RemainingSeconds)
	assert.Equal(t, []string{"a"}, v.Photos)
	assert.False(t, f.clock.Registered())

	// Once stopped, the duration is checked again
	assert.ErrorIs(t, f.engine.Start(0, nil), ErrInvalidDuration)
}

func TestStaleTickIsIgnored(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.engine.Start(60, []string{"a"}))
	stale := f.clock.Callback()
	require.NotNil(t, stale)

	// Pause then resume registers a new callback
	f.engine.PauseOrResume()
	f.engine.PauseOrResume()
	stale()
	assert.Equal(t, 60, f.engine.View().RemainingSeconds)

	f.clock.Tick(1)
	assert.Equal(t, 59, f.engine.View().RemainingSeconds)

	// Stopping and starting again does the same
	current := f.clock.Callback()
	require.NoError(t, f.engine.Start(60, nil))
	require.NoError(t, f.engine.Start(30, []string{"b"}))
	current()
	assert.Equal(t, 30, f.engine.View().RemainingSeconds)
}

func TestStartWhilePausedRestarts(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.engine.Start(10, []string{"a"}))
	f.engine.Advance()
	f.engine.PauseOrResume()

	require.NoError(t, f.engine.Start(20, []string{"x", "y"}))

	v := f.engine.View()
	assert.Equal(t, session.StatusRunning, v.Status)
	assert.Equal(t, 20, v.RemainingSeconds)
	assert.Equal(t, -1, v.CurrentIndex)
	assert.Empty(t, v.CurrentImageURL)
	assert.Equal(t, "rotation-2", v.RotationID)
}

func TestTickCountsDownToOneAdvance(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.engine.Start(300, []string{"a", "b", "c"}))

	delivered := f.clock.Tick(299)
	assert.Equal(t, 299, delivered)
	v := f.engine.View()
	assert.Equal(t, 1, v.RemainingSeconds)
	assert.Equal(t, -1, v.CurrentIndex)
	assert.Equal(t, session.StatusRunning, v.Status)

	f.clock.Tick(1)

	v = f.engine.View()
	assert.Equal(t, 0, v.RemainingSeconds)
	assert.Equal(t, 0, v.CurrentIndex)
	assert.Equal(t, "a", v.CurrentImageURL)
	assert.True(t, v.HasImage)
	assert.Equal(t, session.StatusIdle, v.Status)
	assert.False(t, f.clock.Registered())
	assert.Equal(t, 1, f.events.count(EventIntervalElapsed))
	assert.Equal(t, 299, f.events.count(EventTick))

	// Ticks after the interval are no-ops
	assert.Equal(t, 0, f.clock.Tick(5))
	for i := 0; i < 5; i++ {
		f.engine.Tick()
	}
	v = f.engine.View()
	assert.Equal(t, 0, v.RemainingSeconds)
	assert.Equal(t, 0, v.CurrentIndex)
	assert.Equal(t, 1, f.events.count(EventIntervalElapsed))
	assert.Len(t, f.dispatch.jobs, 1)
}

func TestAdvanceAtLastIndexSignalsEndOfList(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.engine.Start(60, []string{"a", "b"}))

	f.engine.Advance()
	f.engine.Advance()
	assert.Equal(t, 1, f.engine.View().CurrentIndex)

	for i := 0; i < 3; i++ {
		f.engine.Advance()
	}

	v := f.engine.View()
	assert.Equal(t, 1, v.CurrentIndex)
	assert.Equal(t, "b", v.CurrentImageURL)
	assert.Equal(t, session.StatusRunning, v.Status)
	assert.Equal(t, 3, f.events.count(EventEndOfList))
	assert.Len(t, f.dispatch.jobs, 2)
}

func TestEmptyListCountdownEndsList(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.engine.Start(2, nil))

	f.clock.Tick(2)

	v := f.engine.View()
	assert.Equal(t, -1, v.CurrentIndex)
	assert.Empty(t, v.CurrentImageURL)
	assert.False(t, v.HasImage)
	assert.Equal(t, session.StatusIdle, v.Status)
	assert.Equal(t, 1, f.events.count(EventEndOfList))
	assert.Equal(t, 1, f.events.count(EventIntervalElapsed))
	assert.Empty(t, f.dispatch.jobs)
}

func TestPauseOrResume(t *testing.T) {
	f := newFixture(t)

	// Idle: no-op
	f.engine.PauseOrResume()
	assert.Equal(t, session.StatusIdle, f.engine.View().Status)
	assert.False(t, f.clock.Registered())

	require.NoError(t, f.engine.Start(10, []string{"a"}))
	f.clock.Tick(4)

	f.engine.PauseOrResume()
	assert.Equal(t, session.StatusPaused, f.engine.View().Status)
	assert.False(t, f.clock.Registered())

	// Ticks while paused change nothing
	f.engine.Tick()
	assert.Equal(t, 6, f.engine.View().RemainingSeconds)

	f.engine.PauseOrResume()
	assert.Equal(t, session.StatusRunning, f.engine.View().Status)
	assert.True(t, f.clock.Registered())

	f.clock.Tick(1)
	assert.Equal(t, 5, f.engine.View().RemainingSeconds)

	// Ended: no-op
	f.engine.End()
	f.engine.PauseOrResume()
	assert.Equal(t, session.StatusEnded, f.engine.View().Status)
	assert.False(t, f.clock.Registered())
}

func TestEnd(t *testing.T) {
	f := newFixture(t)

	// Never started: nothing happens
	f.engine.End()
	assert.Equal(t, session.StatusIdle, f.engine.View().Status)
	assert.Empty(t, f.events.events)

	require.NoError(t, f.engine.Start(120, []string{"a", "b"}))
	f.clock.Tick(30)
	f.engine.End()

	v := f.engine.View()
	assert.Equal(t, session.StatusEnded, v.Status)
	assert.Equal(t, 0, v.CurrentIndex)
	assert.Equal(t, "a", v.CurrentImageURL)
	assert.Empty(t, v.RemainingText)
	assert.False(t, f.clock.Registered())
}

func TestEndFromPausedAtLastPhoto(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.engine.Start(120, []string{"a"}))
	f.engine.Advance()
	f.engine.PauseOrResume()

	f.engine.End()

	v := f.engine.View()
	assert.Equal(t, session.StatusEnded, v.Status)
	assert.Equal(t, 0, v.CurrentIndex)
	assert.Equal(t, 1, f.events.count(EventEndOfList))
}

func TestImageLoadFailureStillAdvances(t *testing.T) {
	f := newFixture(t)
	f.dispatch.fail["b"] = true
	require.NoError(t, f.engine.Start(60, []string{"a", "b", "c"}))

	f.engine.Advance()
	f.engine.Advance()

	v := f.engine.View()
	assert.Equal(t, 1, v.CurrentIndex)
	assert.Equal(t, "b", v.CurrentPhoto)
	assert.Equal(t, "a", v.CurrentImageURL)

	ev, ok := f.events.last(EventImageLoadFailed)
	require.True(t, ok)
	var loadErr *errs.ImageLoadError
	require.ErrorAs(t, ev.Err, &loadErr)
	assert.Equal(t, "b", loadErr.URL)

	f.engine.Advance()
	assert.Equal(t, "c", f.engine.View().CurrentImageURL)
}

func TestSubmitFailureReportsLoadFailure(t *testing.T) {
	held := &heldDispatcher{err: loader.ErrQueueFull}
	e := New(clock.NewManual(), held)
	rec := &recorder{}
	e.Subscribe(rec.observe)

	require.NoError(t, e.Start(60, []string{"a"}))
	e.Advance()

	assert.Equal(t, 0, e.View().CurrentIndex)
	ev, ok := rec.last(EventImageLoadFailed)
	require.True(t, ok)
	assert.Contains(t, ev.Err.Error(), "queue is full")
}

func TestStaleResultsAreDropped(t *testing.T) {
	held := &heldDispatcher{}
	e := New(clock.NewManual(), held)

	require.NoError(t, e.Start(60, []string{"a", "b"}))
	e.Advance()
	e.Advance()
	require.Len(t, held.jobs, 2)

	// The load for index 0 completes after the engine moved on
	e.HandleResult(loader.Result{Job: held.jobs[0], Image: image.NewRGBA(image.Rect(0, 0, 1, 1))})
	assert.Empty(t, e.View().CurrentImageURL)

	// A new list invalidates the outstanding job for index 1
	e.SetPhotos([]string{"x", "y"})
	e.HandleResult(loader.Result{Job: held.jobs[1], Image: image.NewRGBA(image.Rect(0, 0, 1, 1))})
	v := e.View()
	assert.Empty(t, v.CurrentImageURL)
	assert.Equal(t, -1, v.CurrentIndex)

	e.Advance()
	require.Len(t, held.jobs, 3)
	e.HandleResult(loader.Result{Job: held.jobs[2], Image: image.NewRGBA(image.Rect(0, 0, 1, 1)), Format: "gif"})
	v = e.View()
	assert.Equal(t, "x", v.CurrentImageURL)
	assert.Equal(t, "gif", v.ImageFormat)
}

func TestSetPhotosKeepsCountdown(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.engine.Start(60, []string{"a"}))
	f.engine.Advance()
	f.clock.Tick(10)

	f.engine.SetPhotos([]string{"x", "y", "z"})

	v := f.engine.View()
	assert.Equal(t, []string{"x", "y", "z"}, v.Photos)
	assert.Equal(t, -1, v.CurrentIndex)
	assert.Empty(t, v.CurrentImageURL)
	assert.False(t, v.HasImage)
	assert.Equal(t, 50, v.RemainingSeconds)
	assert.Equal(t, session.StatusRunning, v.Status)
	assert.True(t, f.clock.Registered())
}

func TestPhotosAreCopied(t *testing.T) {
	f := newFixture(t)
	photos := []string{"a", "b"}
	require.NoError(t, f.engine.Start(60, photos))

	photos[0] = "mutated"
	assert.Equal(t, "a", f.engine.View().Photos[0])
}

func TestObserversMayCallBack(t *testing.T) {
	f := newFixture(t)
	var views []session.View
	f.engine.Subscribe(func(ev Event) {
		if ev.Kind == EventIntervalElapsed {
			views = append(views, f.engine.View())
		}
	})

	require.NoError(t, f.engine.Start(1, []string{"a"}))

	done := make(chan struct{})
	go func() {
		f.clock.Tick(1)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("observer calling back into the engine deadlocked")
	}
	require.Len(t, views, 1)
	assert.Equal(t, 0, views[0].CurrentIndex)
}

func TestUnsubscribe(t *testing.T) {
	f := newFixture(t)
	rec := &recorder{}
	unsubscribe := f.engine.Subscribe(rec.observe)

	require.NoError(t, f.engine.Start(5, nil))
	unsubscribe()
	f.engine.PauseOrResume()

	assert.Equal(t, 1, len(rec.events))
}

func TestConcurrentOperations(t *testing.T) {
	held := &heldDispatcher{}
	e := New(clock.NewTicker(time.Millisecond), &lockedDispatcher{inner: held})
	require.NoError(t, e.Start(1000, []string{"a", "b", "c", "d"}))

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				e.PauseOrResume()
				e.Advance()
				_ = e.View()
			}
		}()
	}
	wg.Wait()
	e.End()

	v := e.View()
	assert.Equal(t, session.StatusEnded, v.Status)
	assert.GreaterOrEqual(t, v.RemainingSeconds, 0)
	assert.Equal(t, 3, v.CurrentIndex)
}

type lockedDispatcher struct {
	mu    sync.Mutex
	inner Dispatcher
}

func (d *lockedDispatcher) Submit(job loader.Job) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.inner.Submit(job)
}

func TestErrInvalidDurationIsSentinel(t *testing.T) {
	err := New(clock.NewManual(), &heldDispatcher{}).Start(0, nil)
	assert.True(t, errors.Is(err, ErrInvalidDuration))
}

func TestLogsCarryRotationID(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.engine.Start(5, nil))

	msgs := f.log.GetMessages()
	require.NotEmpty(t, msgs)
	assert.Equal(t, "rotation started", msgs[0].Message)
	assert.Equal(t, "rotation-1", msgs[0].Fields["rotation_id"])
	assert.Equal(t, "rotation", msgs[0].Fields["component"])
}

type memStore struct {
	snap    session.Snapshot
	has     bool
	loadErr error
	saveErr error
}

func (s *memStore) Save(_ context.Context, snap session.Snapshot) error {
	if s.saveErr != nil {
		return s.saveErr
	}
	s.snap = snap
	s.has = true
	return nil
}

func (s *memStore) Load(_ context.Context) (session.Snapshot, error) {
	if s.loadErr != nil {
		return session.Snapshot{}, s.loadErr
	}
	if !s.has {
		return session.Snapshot{}, errs.NewLoadError(s.Location(), errs.ErrorTypeNotFound, errs.ErrNotFound)
	}
	return s.snap, nil
}

func (s *memStore) Location() string { return "memory" }

func TestSaveAndLoadRoundTrip(t *testing.T) {
	f := newFixture(t)
	store := &memStore{}
	require.NoError(t, f.engine.Start(90, []string{"a", "b", "c"}))
	f.engine.Advance()
	f.clock.Tick(15)
	f.engine.PauseOrResume()

	require.NoError(t, f.engine.SaveTo(context.Background(), store))
	saved := f.engine.Snapshot()

	g := newFixture(t)
	require.NoError(t, g.engine.LoadFrom(context.Background(), store))

	assert.True(t, saved.Equal(g.engine.Snapshot()))
	v := g.engine.View()
	assert.Equal(t, session.StatusPaused, v.Status)
	assert.Equal(t, 75, v.RemainingSeconds)
	assert.Equal(t, 0, v.CurrentIndex)
	assert.Equal(t, "a", v.CurrentImageURL)
	assert.True(t, v.HasImage, "image should be resolved again after restore")
	assert.False(t, g.clock.Registered())
	assert.Equal(t, 1, g.events.count(EventRestored))
}

func TestRestoreRunningReregistersClock(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.engine.Start(30, []string{"a", "b"}))
	f.clock.Tick(10)
	snap := f.engine.Snapshot()

	g := newFixture(t)
	require.NoError(t, g.engine.Restore(snap))

	assert.True(t, g.clock.Registered())
	g.clock.Tick(20)
	v := g.engine.View()
	assert.Equal(t, 0, v.CurrentIndex)
	assert.Equal(t, session.StatusIdle, v.Status)

	// Advance and End keep working after a restore
	g.engine.End()
	assert.Equal(t, 1, g.engine.View().CurrentIndex)
}

func TestRestoreKeepsTrailingImage(t *testing.T) {
	f := newFixture(t)
	f.dispatch.fail["b"] = true
	require.NoError(t, f.engine.Start(30, []string{"a", "b"}))
	f.engine.Advance()
	f.engine.Advance()
	snap := f.engine.Snapshot()
	require.Equal(t, "a", snap.CurrentImageURL)
	require.Equal(t, 1, snap.CurrentIndex)

	g := newFixture(t)
	require.NoError(t, g.engine.Restore(snap))

	v := g.engine.View()
	assert.Equal(t, 1, v.CurrentIndex)
	assert.Equal(t, "a", v.CurrentImageURL)
	assert.True(t, v.HasImage)
}

func TestLoadFailureLeavesStateUnchanged(t *testing.T) {
	corrupt := session.Snapshot{
		Kind:         session.SnapshotKind,
		Version:      session.SnapshotVersion,
		Photos:       []string{"a"},
		CurrentIndex: 4,
		Status:       session.StatusIdle,
	}

	tests := []struct {
		name     string
		store    *memStore
		wantType errs.ErrorType
	}{
		{
			name:     "missing",
			store:    &memStore{},
			wantType: errs.ErrorTypeNotFound,
		},
		{
			name:     "read failure",
			store:    &memStore{loadErr: errors.New("disk on fire")},
			wantType: errs.ErrorTypeIO,
		},
		{
			name:     "invalid snapshot",
			store:    &memStore{snap: corrupt, has: true},
			wantType: errs.ErrorTypeSchema,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			require.NoError(t, f.engine.Start(45, []string{"x", "y"}))
			f.engine.Advance()
			f.clock.Tick(5)
			before := f.engine.Snapshot()
			eventsBefore := len(f.events.events)

			err := f.engine.LoadFrom(context.Background(), tt.store)

			var loadErr *errs.LoadError
			require.ErrorAs(t, err, &loadErr)
			assert.Equal(t, tt.wantType, loadErr.Type)
			assert.Equal(t, "memory", loadErr.Location)
			assert.True(t, before.Equal(f.engine.Snapshot()))
			assert.True(t, f.clock.Registered())
			assert.Len(t, f.events.events, eventsBefore)
		})
	}
}

func TestSaveErrorIsReturned(t *testing.T) {
	f := newFixture(t)
	store := &memStore{saveErr: &errs.SaveError{Location: "memory", Err: errors.New("read-only")}}

	err := f.engine.SaveTo(context.Background(), store)

	var saveErr *errs.SaveError
	require.ErrorAs(t, err, &saveErr)
	assert.Equal(t, session.StatusIdle, f.engine.View().Status)
}
