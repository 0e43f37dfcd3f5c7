// Package app wires the rotation engine to its collaborators and exposes the
// operations a user interface triggers: toggle the timer, pause or resume,
// end the rotation, replace the photo list from a page URL, and save or load
// the session.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"
	"sync"

	"phototimer/internal/loader"
	"phototimer/pkg/clock"
	"phototimer/pkg/config"
	errs "phototimer/pkg/errors"
	"phototimer/pkg/extract"
	"phototimer/pkg/fetch"
	"phototimer/pkg/imageload"
	"phototimer/pkg/logger"
	"phototimer/pkg/ratelimit"
	"phototimer/pkg/retry"
	"phototimer/pkg/rotation"
	"phototimer/pkg/session"
	"phototimer/pkg/state"
	"phototimer/pkg/ui"
)

// Notifier alerts the user about rotation milestones and failures
type Notifier interface {
	TimesUp()
	EndOfList()
	FetchFailed(err error)
	ImageLoadFailed(err error)
}

// Deps are the collaborators an App drives
type Deps struct {
	Fetcher  fetch.Fetcher
	Loader   imageload.Loader
	Clock    clock.Clock
	Store    state.Store
	Notifier Notifier
	// Closer releases the store, if it needs releasing
	Closer io.Closer
}

// App is the composition root
type App struct {
	cfg      *config.Config
	logger   logger.Logger
	engine   *rotation.Engine
	pool     *loader.Pool
	clock    clock.Clock
	fetcher  fetch.Fetcher
	store    state.Store
	closer   io.Closer
	notifier Notifier

	subscribers subscribers

	ctx    context.Context
	cancel context.CancelFunc

	fetchMu  sync.Mutex
	fetchSeq uint64
	// applyMu serializes applying completed fetches to the engine
	applyMu sync.Mutex
	fetches sync.WaitGroup
	pump    sync.WaitGroup

	closeOnce sync.Once
}

// New builds an App from configuration using the HTTP fetcher and loader,
// a real one-second clock, the configured store and the desktop notifier.
func New(cfg *config.Config, log logger.Logger) (*App, error) {
	if log == nil {
		log = logger.GetLogger()
	}

	limiter := ratelimit.PerMinute(strings.ToLower(cfg.RateLimit.Strategy), cfg.RateLimit.RequestsPerMinute)
	retryCfg := retry.FromSettings(cfg.Retry, log)

	pageClient := fetch.NewClient(cfg.Fetch.Timeout, cfg.Fetch.UserAgent, logger.ForComponent(log, "fetch"),
		fetch.WithLimiter(limiter), fetch.WithRetry(retryCfg))
	imageClient := fetch.NewClient(cfg.Images.Timeout, cfg.Fetch.UserAgent, logger.ForComponent(log, "imageload"),
		fetch.WithLimiter(limiter), fetch.WithRetry(retryCfg),
		fetch.WithHeader("Accept", "image/jpeg,image/png,image/gif,image/*;q=0.8"))

	store, closer, err := state.Open(cfg.State, log)
	if err != nil {
		return nil, fmt.Errorf("failed to open session store: %w", err)
	}

	deps := Deps{
		Fetcher:  fetch.NewPageFetcher(pageClient, cfg.Fetch.MaxBodyBytes),
		Loader:   imageload.New(imageClient, cfg.Images.MaxBytes, log),
		Clock:    clock.NewTicker(cfg.Rotation.TickInterval),
		Store:    store,
		Notifier: ui.NewNotifier(cfg.Notifications),
		Closer:   closer,
	}
	return NewWithDeps(cfg, deps, log), nil
}

// NewWithDeps builds an App around explicit collaborators. Call Start before
// using it and Close when done.
func NewWithDeps(cfg *config.Config, deps Deps, log logger.Logger) *App {
	if log == nil {
		log = logger.NewNopLogger()
	}
	ctx, cancel := context.WithCancel(context.Background())

	a := &App{
		cfg:      cfg,
		logger:   logger.ForComponent(log, "app"),
		clock:    deps.Clock,
		fetcher:  deps.Fetcher,
		store:    deps.Store,
		closer:   deps.Closer,
		notifier: deps.Notifier,
		ctx:      ctx,
		cancel:   cancel,
	}
	a.pool = loader.NewPool(cfg.Images.Workers, deps.Loader, cfg.Images.Timeout, logger.ForComponent(log, "loader"))
	a.engine = rotation.New(deps.Clock, a.pool, rotation.WithLogger(log))
	a.engine.Subscribe(a.onEngineEvent)
	return a
}

// Start launches the image workers and the result pump
func (a *App) Start() {
	a.pool.Start()
	a.pump.Add(1)
	go func() {
		defer a.pump.Done()
		for result := range a.pool.Results() {
			a.engine.HandleResult(result)
		}
	}()
	logger.LogComponentStart(a.logger, "app", map[string]interface{}{
		"workers":        a.cfg.Images.Workers,
		"state_location": a.store.Location(),
	})
}

// Close stops the clock, abandons outstanding fetches and image loads, and
// releases the store.
func (a *App) Close() error {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	return a.Shutdown(ctx)
}

// Shutdown stops the clock and abandons outstanding fetches, then lets queued
// image loads finish until ctx is done before releasing the store. Only the
// first Close or Shutdown has any effect.
func (a *App) Shutdown(ctx context.Context) error {
	var err error
	a.closeOnce.Do(func() {
		a.clock.Deregister()
		a.cancel()
		a.fetches.Wait()

		drained := make(chan struct{})
		if ctx.Err() == nil {
			a.logger.DebugWithFields("Draining image loads", map[string]interface{}{"queued": a.pool.QueueSize()})
			go func() {
				defer close(drained)
				a.pool.Stop()
			}()
			select {
			case <-drained:
			case <-ctx.Done():
				a.pool.Shutdown()
				<-drained
			}
		} else {
			a.pool.Shutdown()
		}
		a.pump.Wait()

		if a.closer != nil {
			err = a.closer.Close()
		}
		logger.LogComponentStop(a.logger, "app", "closed")
	})
	return err
}

// Subscribe registers fn for every App event and returns a function removing it
func (a *App) Subscribe(fn func(Event)) func() {
	return a.subscribers.add(fn)
}

// View returns the current session for rendering
func (a *App) View() session.View {
	return a.engine.View()
}

// Config returns the configuration the App was built with
func (a *App) Config() *config.Config {
	return a.cfg
}

// SetNotifierOutput redirects terminal notifications when the notifier
// supports it. A full-screen UI passes io.Discard.
func (a *App) SetNotifierOutput(w io.Writer) {
	if n, ok := a.notifier.(interface{ SetOutput(io.Writer) }); ok {
		n.SetOutput(w)
	}
}

// Store returns the session store
func (a *App) Store() state.Store {
	return a.store
}

// ToggleTimer starts a rotation of minutes over the current photo list, or
// stops the running one.
func (a *App) ToggleTimer(minutes int) error {
	if a.engine.View().Status != session.StatusRunning {
		if err := a.cfg.ValidateDurationChoice(minutes); err != nil {
			return err
		}
	}
	return a.engine.Start(minutes*60, a.engine.View().Photos)
}

// PauseResume pauses a running rotation or resumes a paused one
func (a *App) PauseResume() {
	a.engine.PauseOrResume()
}

// EndTimer ends the rotation and shows the next photo
func (a *App) EndTimer() {
	a.engine.End()
}

// SetList fetches pageURL in the background and replaces the photo list with
// the images found on it. Only an invalid URL is reported directly; fetch
// failures arrive as EventFetchFailed and leave the list unchanged. When
// several fetches overlap, only the most recent one is applied.
func (a *App) SetList(pageURL string) error {
	if _, err := parsePageURL(pageURL); err != nil {
		return err
	}

	a.fetchMu.Lock()
	a.fetchSeq++
	seq := a.fetchSeq
	a.fetchMu.Unlock()

	a.publish(Event{Kind: EventFetchStarted, URL: pageURL, View: a.engine.View()})

	a.fetches.Add(1)
	go func() {
		defer a.fetches.Done()

		links, err := a.FetchList(a.ctx, pageURL)

		a.applyMu.Lock()
		if !a.isLatestFetch(seq) {
			a.applyMu.Unlock()
			a.logger.DebugWithFields("Discarding superseded fetch", map[string]interface{}{"url": pageURL})
			return
		}
		if err == nil {
			a.engine.SetPhotos(links)
		}
		a.applyMu.Unlock()

		if err != nil {
			a.logger.WithError(err).WarnWithFields("Failed to fetch photo list", map[string]interface{}{"url": pageURL})
			if a.notifier != nil {
				a.notifier.FetchFailed(err)
			}
			a.publish(Event{Kind: EventFetchFailed, URL: pageURL, Err: err, View: a.engine.View()})
			return
		}
		a.publish(Event{Kind: EventListLoaded, URL: pageURL, Count: len(links), View: a.engine.View()})
	}()
	return nil
}

func (a *App) isLatestFetch(seq uint64) bool {
	a.fetchMu.Lock()
	defer a.fetchMu.Unlock()
	return seq == a.fetchSeq
}

// WaitFetches blocks until every SetList fetch has finished
func (a *App) WaitFetches() {
	a.fetches.Wait()
}

// FetchList fetches pageURL and returns the absolute image URLs found on it
// in document order. An empty list is not an error.
func (a *App) FetchList(ctx context.Context, pageURL string) ([]string, error) {
	base, err := parsePageURL(pageURL)
	if err != nil {
		return nil, err
	}

	markup, err := a.fetcher.Fetch(ctx, pageURL)
	if err != nil {
		return nil, err
	}

	links := extract.Resolve(base, extract.Extract(markup))
	a.logger.InfoWithFields("Photo list fetched", map[string]interface{}{
		"url":    pageURL,
		"photos": len(links),
	})
	return links, nil
}

// Save writes the session to the store
func (a *App) Save(ctx context.Context) error {
	if err := a.engine.SaveTo(ctx, a.store); err != nil {
		a.logger.WithError(err).Error("Failed to save session")
		a.publish(Event{Kind: EventSaveFailed, Err: err, View: a.engine.View()})
		return err
	}
	a.logger.InfoWithFields("Session saved", map[string]interface{}{"location": a.store.Location()})
	a.publish(Event{Kind: EventSaved, View: a.engine.View()})
	return nil
}

// Load replaces the session with the saved one. On failure the current
// session is kept.
func (a *App) Load(ctx context.Context) error {
	if err := a.engine.LoadFrom(ctx, a.store); err != nil {
		var loadErr *errs.LoadError
		if errors.As(err, &loadErr) && loadErr.Type == errs.ErrorTypeNotFound {
			a.logger.Info("No saved session to load")
		} else {
			a.logger.WithError(err).Error("Failed to load session")
		}
		a.publish(Event{Kind: EventLoadFailed, Err: err, View: a.engine.View()})
		return err
	}
	return nil
}

// ClearSaved removes the saved session
func (a *App) ClearSaved(ctx context.Context) error {
	return a.store.Clear(ctx)
}

// onEngineEvent forwards engine events and raises notifications
func (a *App) onEngineEvent(ev rotation.Event) {
	switch ev.Kind {
	case rotation.EventIntervalElapsed:
		if a.notifier != nil {
			a.notifier.TimesUp()
		}
	case rotation.EventEndOfList:
		if a.notifier != nil {
			a.notifier.EndOfList()
		}
	case rotation.EventImageLoadFailed:
		if a.notifier != nil {
			a.notifier.ImageLoadFailed(ev.Err)
		}
	}
	a.publish(Event{Kind: EventKind(ev.Kind), Err: ev.Err, View: ev.View})
}

func (a *App) publish(ev Event) {
	a.subscribers.publish(ev)
}

func parsePageURL(pageURL string) (*url.URL, error) {
	u, err := url.Parse(pageURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, &errs.FetchError{
			URL:    pageURL,
			Reason: "not an http(s) URL",
			Err:    &errs.Error{Type: errs.ErrorTypeClient, Message: "invalid page URL"},
		}
	}
	return u, nil
}
