package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"phototimer/pkg/logger"
	"phototimer/pkg/session"
	"phototimer/pkg/state"
	"phototimer/pkg/ui"
)

var stateJSON bool

// stateCmd represents the state command
var stateCmd = &cobra.Command{
	Use:   "state",
	Short: "Inspect or remove the saved session",
	Long: `Inspect or remove the session saved with the "w" key or command.

The session is stored as a JSON file or in a SQLite database, depending on
the state.backend setting.`,
}

// stateShowCmd represents the state show command
var stateShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the saved session",
	Args:  cobra.NoArgs,
	RunE:  runStateShow,
}

// stateClearCmd represents the state clear command
var stateClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete the saved session",
	Args:  cobra.NoArgs,
	RunE:  runStateClear,
}

func init() {
	rootCmd.AddCommand(stateCmd)
	stateCmd.AddCommand(stateShowCmd)
	stateCmd.AddCommand(stateClearCmd)

	stateCmd.PersistentFlags().StringVar(&stateBackend, "state-backend", "", "session store backend (file, sqlite)")
	stateCmd.PersistentFlags().StringVar(&statePath, "state-path", "", "session store location")
	stateShowCmd.Flags().BoolVar(&stateJSON, "json", false, "print the raw snapshot as JSON")
}

func openStore() (state.Store, func(), error) {
	flags := make(map[string]interface{})
	if stateBackend != "" {
		flags["state-backend"] = stateBackend
	}
	if statePath != "" {
		flags["state-path"] = statePath
	}

	cfg, err := loadConfig(flags, os.Stderr)
	if err != nil {
		return nil, nil, err
	}

	log := logger.GetLogger()
	store, closer, err := state.Open(cfg.State, log)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open session store: %w", err)
	}
	return store, func() {
		if err := closer.Close(); err != nil {
			log.WithError(err).Warn("Failed to close session store")
		}
	}, nil
}

func runStateShow(cmd *cobra.Command, args []string) error {
	store, closeStore, err := openStore()
	if err != nil {
		return err
	}
	defer closeStore()

	ctx, cancel := contextWithTimeout(cmd, 10*time.Second)
	defer cancel()

	snap, err := store.Load(ctx)
	if err != nil {
		if isNotFound(err) {
			ui.PrintWarning("No saved session", store.Location())
			return nil
		}
		return err
	}

	out := cmd.OutOrStdout()
	if stateJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(snap)
	}

	printSnapshot(out, store.Location(), snap)
	return nil
}

func printSnapshot(out io.Writer, location string, snap session.Snapshot) {
	row := func(label, value string) {
		fmt.Fprintf(out, "%-12s %s\n", ui.Cyan(label+":"), value)
	}

	row("Location", location)
	row("Saved", snap.SavedAt.Local().Format(time.RFC1123))
	if snap.RotationID != "" {
		row("Rotation", snap.RotationID)
	}
	row("Status", snap.Status.Label())
	row("Duration", session.FormatRemaining(snap.DurationSeconds))
	if snap.Status == session.StatusRunning || snap.Status == session.StatusPaused {
		row("Remaining", session.FormatRemaining(snap.RemainingSeconds))
	}
	if len(snap.Photos) == 0 {
		row("Photos", "none")
		return
	}
	if snap.CurrentIndex < 0 {
		row("Photos", fmt.Sprintf("%d, none shown yet", len(snap.Photos)))
		return
	}
	row("Photo", fmt.Sprintf("%d/%d", snap.CurrentIndex+1, len(snap.Photos)))
	row("Current", snap.Photos[snap.CurrentIndex])
}

func runStateClear(cmd *cobra.Command, args []string) error {
	store, closeStore, err := openStore()
	if err != nil {
		return err
	}
	defer closeStore()

	ctx, cancel := contextWithTimeout(cmd, 10*time.Second)
	defer cancel()

	exists, err := store.Exists(ctx)
	if err != nil {
		return err
	}
	if !exists {
		ui.PrintWarning("No saved session", store.Location())
		return nil
	}
	if err := store.Clear(ctx); err != nil {
		return fmt.Errorf("failed to clear saved session: %w", err)
	}
	ui.PrintSuccess("Saved session removed: " + store.Location())
	return nil
}
