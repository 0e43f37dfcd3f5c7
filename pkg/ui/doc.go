// Package ui holds the terminal output helpers shared by the headless mode
// and the full-screen UI: colours, the countdown bar, the single-line status
// display and the Notifier for "Time's up!" style alerts.
package ui
