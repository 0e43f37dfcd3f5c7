package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"phototimer/pkg/config"
	"phototimer/pkg/ui"
)

// configCmd represents the config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration files",
	Long: `Manage Photo Timer configuration files.

Configuration can be loaded from:
  - Command line flags (highest priority)
  - Environment variables (PHOTOTIMER_*)
  - .env files
  - Configuration file
  - Default values (lowest priority)`,
}

// configInitCmd represents the config init command
var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create an example configuration file",
	Long: `Create an example configuration file with all available options.

The file will be created in the current directory as '.phototimer.yaml'
unless a different path is specified with the --config flag.`,
	Args: cobra.NoArgs,
	RunE: runConfigInit,
}

// configShowCmd represents the config show command
var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	Long: `Show the configuration in effect, including values from flags,
environment variables, the configuration file and defaults.`,
	Args: cobra.NoArgs,
	RunE: runConfigShow,
}

// configValidateCmd represents the config validate command
var configValidateCmd = &cobra.Command{
	Use:   "validate [file]",
	Short: "Validate a configuration file",
	Long: `Validate a configuration file for syntax errors and invalid values.

This command checks:
  - YAML syntax
  - Duration choices and the default duration
  - Timeouts, worker counts, rate limits and the rate limit strategy
  - State backend, notification type and log level`,
	Args: cobra.MaximumNArgs(1),
	RunE: runConfigValidate,
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configValidateCmd)
}

const exampleConfig = `# Photo Timer Configuration File
#
# Every option can also be set with an environment variable prefixed with
# PHOTOTIMER_, for example PHOTOTIMER_MINUTES=10 or PHOTOTIMER_LOG_LEVEL=debug

# Countdown settings
rotation:
  # Minutes per photo when none is chosen; must be one of duration_choices
  default_minutes: 5

  # Durations the "d" key cycles through, in minutes
  duration_choices: [5, 10, 15, 20, 30]

  # How often the countdown advances by one second
  tick_interval: 1s

# Photo page fetching
fetch:
  timeout: 30s
  # Uncomment to replace the default browser user agent
  # user_agent: "Mozilla/5.0 ..."
  # Largest page accepted, in bytes
  max_body_bytes: 10485760

# Image loading
images:
  timeout: 30s
  # Number of images decoded in parallel
  # Range: 1-8
  workers: 2
  # Largest image accepted, in bytes
  max_bytes: 52428800

# Rate limiting for all outgoing requests
rate_limit:
  requests_per_minute: 60
  # Strategy: sliding_window spreads requests over any minute,
  # token_bucket allows the whole budget at once and refills every minute
  strategy: "sliding_window"

# Retry configuration for pages and images
retry:
  enabled: true
  max_attempts: 3
  base_delay: 1s
  max_delay: 30s
  multiplier: 2.0

# Saved session
state:
  # Storage backend: file, sqlite
  backend: "file"
  # Leave empty to use the platform data directory
  path: ""
  # Keep the previous snapshot as <path>.backup when saving to a file
  backup: true

# Notifications
notifications:
  enabled: true
  # Notify when a countdown runs out
  on_interval_end: true
  # Notify when a page or image fails to load
  on_error: true
  # Notification type: terminal, desktop, none
  notification_type: "terminal"

# Logging configuration
logging:
  # Log level: debug, info, warn, error, disabled
  level: "info"
  # Log file path (optional)
  # Required to see logs while the interactive UI is running
  file: ""
`

func runConfigInit(cmd *cobra.Command, args []string) error {
	configPath := configFile
	if configPath == "" {
		configPath = ".phototimer.yaml"
	}

	if _, err := os.Stat(configPath); err == nil {
		ui.PrintError("Configuration file already exists", configPath)
		fmt.Println("\nTo overwrite, first remove the existing file:")
		fmt.Printf("  rm %s\n", configPath)
		return fmt.Errorf("%s already exists", configPath)
	}

	if err := os.WriteFile(configPath, []byte(exampleConfig), 0644); err != nil {
		return fmt.Errorf("failed to create configuration file: %w", err)
	}

	ui.PrintSuccess("Configuration file created: " + configPath)
	fmt.Println("\nNext steps:")
	fmt.Println("1. Edit the configuration file to taste")
	fmt.Println("2. Run 'phototimer config validate' to check the configuration")
	fmt.Println("3. Start a rotation with 'phototimer run <url>'")
	return nil
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configFile, globalFlags())
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to format configuration: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, ui.Cyan("Current Configuration"))
	fmt.Fprintln(out)
	fmt.Fprint(out, string(data))
	return nil
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	configPath := configFile
	if len(args) > 0 {
		configPath = args[0]
	}
	if configPath == "" {
		configPath = ".phototimer.yaml"
	}

	if _, err := os.Stat(configPath); err != nil {
		return fmt.Errorf("configuration file not found: %s", configPath)
	}

	cfg := config.DefaultConfig()
	if err := cfg.LoadFromFile(configPath); err != nil {
		ui.PrintError("Invalid configuration", configPath)
		return err
	}
	if err := cfg.Validate(); err != nil {
		ui.PrintError("Invalid configuration", configPath)
		return err
	}

	ui.PrintSuccess("Configuration is valid: " + configPath)
	return nil
}
