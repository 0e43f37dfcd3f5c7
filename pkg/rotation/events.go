package rotation

import (
	"sync"

	"phototimer/pkg/session"
)

// EventKind identifies what happened
type EventKind string

const (
	// EventStateChanged follows any status, list or position change
	EventStateChanged EventKind = "state_changed"
	// EventTick follows every countdown decrement that did not finish the interval
	EventTick EventKind = "tick"
	// EventIntervalElapsed fires once when a countdown reaches zero
	EventIntervalElapsed EventKind = "interval_elapsed"
	// EventEndOfList fires when asked to advance past the last photo
	EventEndOfList       EventKind = "end_of_list"
	EventImageLoaded     EventKind = "image_loaded"
	EventImageLoadFailed EventKind = "image_load_failed"
	EventRestored        EventKind = "restored"
)

// Event is delivered to observers after the engine lock is released.
// View is the session as it was when the event was raised.
type Event struct {
	Kind EventKind
	Err  error
	View session.View
}

type observers struct {
	mu     sync.RWMutex
	nextID int
	fns    map[int]func(Event)
	order  []int
}

// add registers fn and returns a function that removes it
func (o *observers) add(fn func(Event)) func() {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.fns == nil {
		o.fns = make(map[int]func(Event))
	}
	id := o.nextID
	o.nextID++
	o.fns[id] = fn
	o.order = append(o.order, id)

	return func() {
		o.mu.Lock()
		defer o.mu.Unlock()
		delete(o.fns, id)
		for i, existing := range o.order {
			if existing == id {
				o.order = append(o.order[:i], o.order[i+1:]...)
				break
			}
		}
	}
}

func (o *observers) publish(events []Event) {
	if len(events) == 0 {
		return
	}

	o.mu.RLock()
	fns := make([]func(Event), 0, len(o.order))
	for _, id := range o.order {
		fns = append(fns, o.fns[id])
	}
	o.mu.RUnlock()

	for _, ev := range events {
		for _, fn := range fns {
			fn(ev)
		}
	}
}
