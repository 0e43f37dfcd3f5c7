package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"runtime"
	"time"

	"github.com/spf13/cobra"

	"phototimer/pkg/config"
	"phototimer/pkg/logger"
	"phototimer/pkg/ui"
)

var (
	// Version information
	version   = "1.0.0"
	gitCommit = "unknown"
	buildDate = "unknown"

	// Global flags
	configFile string
	logLevel   string
	logFile    string
	quiet      bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "phototimer",
	Short: "A timed photo rotation for drawing practice",
	Long: `Photo Timer shows the photos linked from a web page one at a time and
moves to the next one when a countdown runs out.

Features:
  - Load every image linked from a gallery page
  - Countdowns of 5, 10, 15, 20 or 30 minutes
  - Pause, resume or skip to the next photo at any time
  - Save the session and pick it up later
  - Terminal or desktop notifications when the time is up`,
	Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, gitCommit, buildDate),
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, ui.Red("Error: "+err.Error()))
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "config file (default is $HOME/.phototimer.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "", "write logs to this file")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "suppress all output except errors")

	rootCmd.SetVersionTemplate(`Photo Timer {{.Version}}
Go Version: ` + runtime.Version() + `
OS/Arch: ` + runtime.GOOS + `/` + runtime.GOARCH + `
`)

	// Disable default completion command
	rootCmd.CompletionOptions.DisableDefaultCmd = true
}

// globalFlags collects the persistent flags that override configuration
func globalFlags() map[string]interface{} {
	flags := make(map[string]interface{})
	if quiet {
		flags["log-level"] = "error"
	}
	if logLevel != "" {
		flags["log-level"] = logLevel
	}
	if logFile != "" {
		flags["log-file"] = logFile
	}
	return flags
}

// loadConfig loads configuration with the given command flags merged over
// the global ones, then initializes the global logger with console output
// going to console.
func loadConfig(flags map[string]interface{}, console io.Writer) (*config.Config, error) {
	merged := globalFlags()
	for k, v := range flags {
		merged[k] = v
	}

	cfg, err := config.Load(configFile, merged)
	if err != nil {
		return nil, err
	}

	if err := logger.InitializeWithConsole(&cfg.Logging, console); err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return cfg, nil
}

// contextWithTimeout derives a context with timeout d from the command's context
func contextWithTimeout(cmd *cobra.Command, d time.Duration) (context.Context, context.CancelFunc) {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithTimeout(ctx, d)
}
