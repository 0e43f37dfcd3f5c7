// Package logger provides structured logging for phototimer.
//
// It wraps zerolog behind a small Logger interface so components can take a
// Logger dependency and tests can pass NewNopLogger or NewTestLogger instead.
//
//	cfg := &config.LoggingConfig{Level: "info", File: "/tmp/phototimer.log"}
//	if err := logger.Initialize(cfg); err != nil {
//	    return err
//	}
//
//	log := logger.ForComponent(nil, "rotation").WithField("rotation_id", id)
//	log.InfoWithFields("Interval elapsed", map[string]interface{}{
//	    "index": 3,
//	})
//
// While the terminal UI is running the console belongs to bubbletea, so the
// CLI initializes the logger with InitializeWithConsole(cfg, io.Discard) and
// only the log file (if any) receives output.
package logger
