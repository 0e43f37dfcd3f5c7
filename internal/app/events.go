package app

import (
	"sync"

	"phototimer/pkg/rotation"
	"phototimer/pkg/session"
)

// EventKind identifies what happened
type EventKind string

// Rotation events are forwarded under their engine names
const (
	EventStateChanged    = EventKind(rotation.EventStateChanged)
	EventTick            = EventKind(rotation.EventTick)
	EventIntervalElapsed = EventKind(rotation.EventIntervalElapsed)
	EventEndOfList       = EventKind(rotation.EventEndOfList)
	EventImageLoaded     = EventKind(rotation.EventImageLoaded)
	EventImageLoadFailed = EventKind(rotation.EventImageLoadFailed)
	EventRestored        = EventKind(rotation.EventRestored)
)

const (
	EventFetchStarted EventKind = "fetch_started"
	EventListLoaded   EventKind = "list_loaded"
	EventFetchFailed  EventKind = "fetch_failed"
	EventSaved        EventKind = "saved"
	EventSaveFailed   EventKind = "save_failed"
	EventLoadFailed   EventKind = "load_failed"
)

// Event is delivered to App subscribers
type Event struct {
	Kind EventKind
	Err  error
	View session.View
	// URL is the page for fetch events
	URL string
	// Count is the number of photos for EventListLoaded
	Count int
}

type subscribers struct {
	mu  sync.RWMutex
	seq int
	fns map[int]func(Event)
}

func (s *subscribers) add(fn func(Event)) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fns == nil {
		s.fns = make(map[int]func(Event))
	}
	id := s.seq
	s.seq++
	s.fns[id] = fn
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.fns, id)
	}
}

func (s *subscribers) publish(ev Event) {
	s.mu.RLock()
	fns := make([]func(Event), 0, len(s.fns))
	for id := 0; id < s.seq; id++ {
		if fn, ok := s.fns[id]; ok {
			fns = append(fns, fn)
		}
	}
	s.mu.RUnlock()

	for _, fn := range fns {
		fn(ev)
	}
}
