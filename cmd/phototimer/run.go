package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	"golang.org/x/term"

	"phototimer/internal/app"
	"phototimer/pkg/config"
	errs "phototimer/pkg/errors"
	"phototimer/pkg/logger"
	"phototimer/pkg/session"
	"phototimer/pkg/ui"
	"phototimer/pkg/ui/tui"
)

var (
	// Run command flags
	runMinutes   int
	runHeadless  bool
	runResume    bool
	stateBackend string
	statePath    string
	workers      int
	rateLimit    int
	limitMode    string
	notify       bool
)

// shutdownTimeout bounds how long queued image loads may finish on exit
const shutdownTimeout = 5 * time.Second

// runCmd represents the run command
var runCmd = &cobra.Command{
	Use:   "run [url]",
	Short: "Start a photo rotation",
	Long: `Start a photo rotation, optionally loading the photos linked from url.

In a terminal this opens the interactive UI. When stdout is not a terminal,
or with --headless, a one-line status is printed instead and commands are
read from stdin, one per line:

` + app.CommandHelp,
	Example: `  # Open the interactive UI with photos from a gallery page
  phototimer run https://example.com/gallery

  # Run a 10 minute rotation without the UI
  phototimer run https://example.com/gallery --minutes 10 --headless

  # Continue the last saved session
  phototimer run --resume`,
	Args: cobra.MaximumNArgs(1),
	RunE: runRun,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().IntVarP(&runMinutes, "minutes", "m", 0, "countdown length in minutes (5, 10, 15, 20 or 30)")
	runCmd.Flags().BoolVar(&runHeadless, "headless", false, "print a status line instead of the interactive UI")
	runCmd.Flags().BoolVar(&runResume, "resume", false, "load the saved session on start")
	runCmd.Flags().StringVar(&stateBackend, "state-backend", "", "session store backend (file, sqlite)")
	runCmd.Flags().StringVar(&statePath, "state-path", "", "session store location")
	runCmd.Flags().IntVar(&workers, "workers", 0, "number of image loading workers")
	runCmd.Flags().IntVar(&rateLimit, "rate-limit", 0, "requests per minute")
	runCmd.Flags().StringVar(&limitMode, "rate-limit-strategy", "", "rate limit strategy (sliding_window, token_bucket)")
	runCmd.Flags().BoolVar(&notify, "notifications", true, "enable notifications")
}

func runFlags(cmd *cobra.Command) map[string]interface{} {
	flags := make(map[string]interface{})
	if runMinutes > 0 {
		flags["minutes"] = runMinutes
	}
	if stateBackend != "" {
		flags["state-backend"] = stateBackend
	}
	if statePath != "" {
		flags["state-path"] = statePath
	}
	if workers > 0 {
		flags["workers"] = workers
	}
	if rateLimit > 0 {
		flags["requests-per-minute"] = rateLimit
	}
	if limitMode != "" {
		flags["rate-limit-strategy"] = limitMode
	}
	if cmd.Flags().Changed("notifications") {
		flags["notifications"] = notify
	}
	return flags
}

func runRun(cmd *cobra.Command, args []string) error {
	var pageURL string
	if len(args) > 0 {
		pageURL = args[0]
	}

	interactive := !runHeadless && term.IsTerminal(int(os.Stdout.Fd()))

	// The interactive UI owns the terminal, so console logs are dropped and
	// only a configured log file receives them.
	console := io.Writer(os.Stderr)
	if interactive {
		console = io.Discard
	}

	cfg, err := loadConfig(runFlags(cmd), console)
	if err != nil {
		return err
	}
	log := logger.GetLogger()
	log.WithFields(map[string]interface{}{
		"version":     version,
		"interactive": interactive,
	}).Info("Photo Timer starting")

	a, err := app.New(cfg, log)
	if err != nil {
		return err
	}
	a.Start()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := a.Shutdown(shutdownCtx); err != nil {
			log.WithError(err).Warn("Failed to close session store")
		}
	}()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Both front ends print their own notices; desktop notifications are
	// unaffected.
	a.SetNotifierOutput(io.Discard)

	if interactive {
		return runInteractive(ctx, a, cfg, pageURL, runResume)
	}

	if !quiet {
		ui.PrintLogo()
	}
	return runLineMode(ctx, a, lineOptions{
		pageURL:   pageURL,
		minutes:   cfg.Rotation.DefaultMinutes,
		autoStart: runMinutes > 0,
		resume:    runResume,
		debug:     strings.EqualFold(cfg.Logging.Level, "debug"),
	}, os.Stdin, os.Stdout)
}

// runInteractive drives the full-screen UI. App events are pumped into the
// program from a separate goroutine so that controller calls never wait on
// the UI loop.
func runInteractive(ctx context.Context, a *app.App, cfg *config.Config, pageURL string, resume bool) error {
	terminal := tui.NewTUI(a, cfg)

	events, unsubscribe := eventQueue(a)
	defer unsubscribe()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		defer cancel()
		return terminal.Start()
	})

	g.Go(func() error {
		for {
			select {
			case <-ctx.Done():
				terminal.Stop()
				return nil
			case ev := <-events:
				forwardEvent(terminal, ev)
			}
		}
	})

	g.Go(func() error {
		if resume {
			switch restored, err := resumeSession(ctx, a); {
			case err != nil:
				terminal.LogError(err.Error())
			case restored:
				terminal.LogSuccess(restoredNotice(a))
			}
		}
		if pageURL != "" {
			terminal.LogInfo("Fetching " + pageURL)
			if err := a.SetList(pageURL); err != nil {
				terminal.LogError(err.Error())
			}
		}
		terminal.UpdateState(a.View())
		return nil
	})

	return g.Wait()
}

func forwardEvent(terminal *tui.TUI, ev app.Event) {
	switch ev.Kind {
	case app.EventListLoaded:
		terminal.FetchDone(ev.Count, nil)
	case app.EventFetchFailed:
		terminal.FetchDone(0, ev.Err)
		return
	case app.EventIntervalElapsed:
		terminal.LogWarning(ui.TitleTimesUp)
	case app.EventEndOfList:
		terminal.LogInfo(ui.TitleEndOfList)
	case app.EventImageLoadFailed:
		terminal.LogError(ev.Err.Error())
	case app.EventFetchStarted, app.EventSaved, app.EventSaveFailed, app.EventLoadFailed:
		// the UI reports the outcome of its own actions
		return
	}
	terminal.UpdateState(ev.View)
}

// lineOptions configures line mode
type lineOptions struct {
	pageURL string
	minutes int
	// autoStart starts the countdown once the page's photos are loaded
	autoStart bool
	resume    bool
	debug     bool
}

// commandResult is the outcome of one command run on behalf of line mode
type commandResult struct {
	line string
	err  error
	// eof marks the end of input
	eof bool
	// autoStart marks the countdown started once the list loaded
	autoStart bool
}

// runLineMode prints a status line and executes commands read from in. When
// in is exhausted it keeps going until the rotation stops running.
//
// Commands run on their own goroutine: they publish App events, and those
// can wait for this loop to drain the event queue.
func runLineMode(ctx context.Context, a *app.App, opts lineOptions, in io.Reader, out io.Writer) error {
	display := ui.NewStatusDisplay(out, opts.debug)

	events, unsubscribe := eventQueue(a)
	defer unsubscribe()

	results := make(chan commandResult)
	stop := make(chan struct{})
	defer close(stop)
	report := func(r commandResult) bool {
		select {
		case results <- r:
			return true
		case <-stop:
			return false
		}
	}

	go func() {
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			line := scanner.Text()
			err := a.Exec(ctx, line, opts.minutes)
			if !report(commandResult{line: line, err: err}) || errors.Is(err, app.ErrQuit) {
				return
			}
		}
		report(commandResult{eof: true})
	}()

	if opts.resume {
		switch restored, err := resumeSession(ctx, a); {
		case err != nil:
			display.Notice(err.Error())
		case restored:
			display.Notice(restoredNotice(a))
		}
	}

	autoStart := opts.autoStart && opts.pageURL != ""
	if opts.pageURL != "" {
		fmt.Fprintf(out, "Fetching %s\n", opts.pageURL)
		if err := a.SetList(opts.pageURL); err != nil {
			return err
		}
	}
	display.Render(a.View())

	inputDone := false
	// starting is set while the auto start command is in flight
	starting := false
	finished := func() bool {
		return inputDone && !autoStart && !starting && a.View().Status != session.StatusRunning
	}

	for {
		select {
		case <-ctx.Done():
			display.Complete()
			return nil

		case ev := <-events:
			switch ev.Kind {
			case app.EventListLoaded:
				if ev.Count == 0 {
					display.Notice("No photos found on " + ev.URL)
				} else {
					display.Notice(fmt.Sprintf("Loaded %d photos", ev.Count))
				}
				if autoStart {
					autoStart = false
					starting = true
					go func() {
						report(commandResult{autoStart: true, err: a.ToggleTimer(opts.minutes)})
					}()
				}
			case app.EventFetchFailed:
				autoStart = false
				display.Notice(ev.Err.Error())
			case app.EventImageLoadFailed:
				// save and load failures come back as command errors
				display.Notice(ev.Err.Error())
			case app.EventSaved:
				display.Notice("Session saved to " + a.Store().Location())
			case app.EventIntervalElapsed:
				display.Notice(ui.TitleTimesUp)
			}
			display.Render(ev.View)
			if ev.Kind == app.EventEndOfList || finished() {
				display.Complete()
				if inputDone {
					return nil
				}
			}

		case r := <-results:
			switch {
			case r.eof:
				inputDone = true
			case r.autoStart:
				starting = false
				if r.err != nil {
					display.Notice(r.err.Error())
				}
			case errors.Is(r.err, app.ErrQuit):
				display.Complete()
				return nil
			case r.err != nil:
				display.Notice(r.err.Error())
			case isHelp(r.line):
				fmt.Fprintln(out, "\n"+app.CommandHelp)
			}
			if finished() {
				display.Complete()
				return nil
			}
		}
	}
}

// eventQueue buffers the App's events for a single consumer. Ticks are
// dropped while the buffer is full; other events wait for room until the
// returned function unsubscribes.
func eventQueue(a *app.App) (<-chan app.Event, func()) {
	events := make(chan app.Event, 256)
	done := make(chan struct{})
	unsubscribe := a.Subscribe(func(ev app.Event) {
		if ev.Kind == app.EventTick {
			select {
			case events <- ev:
			default:
			}
			return
		}
		select {
		case events <- ev:
		case <-done:
		}
	})

	var once sync.Once
	return events, func() {
		once.Do(func() {
			unsubscribe()
			close(done)
		})
	}
}

// resumeSession loads the saved session. A missing one is not an error.
func resumeSession(ctx context.Context, a *app.App) (bool, error) {
	if err := a.Load(ctx); err != nil {
		if isNotFound(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func restoredNotice(a *app.App) string {
	return "Session restored from " + a.Store().Location()
}

func isHelp(line string) bool {
	switch strings.TrimSpace(line) {
	case "?", "h", "help":
		return true
	}
	return false
}

func isNotFound(err error) bool {
	var loadErr *errs.LoadError
	return errors.As(err, &loadErr) && loadErr.Type == errs.ErrorTypeNotFound
}
