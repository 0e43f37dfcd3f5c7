package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"phototimer/pkg/session"
)

// Message types for the TUI

// StateMsg carries a fresh view of the rotation
type StateMsg struct {
	View session.View
}

// NoticeMsg is sent to add a log message
type NoticeMsg struct {
	Level   string
	Message string
}

// FetchDoneMsg is sent when a photo list fetch finishes
type FetchDoneMsg struct {
	Count int
	Err   error
}

// actionDoneMsg reports the outcome of a controller call run as a command
type actionDoneMsg struct {
	action string
	err    error
}

const actionTimeout = 10 * time.Second

// Update handles all messages and updates the model
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if m.urlInput.Focused() {
			return m.handleInputKey(msg)
		}
		return m.handleKeyPress(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.countdown.Width = max(m.width/2-16, 10)
		m.urlInput.Width = max(m.width-20, 20)
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case StateMsg:
		m.setView(msg.View)
		return m, nil

	case NoticeMsg:
		m.AddLogMessage(msg.Level, msg.Message)
		return m, nil

	case FetchDoneMsg:
		m.fetching = false
		if msg.Err != nil {
			m.AddLogMessage("ERROR", msg.Err.Error())
		} else if msg.Count == 0 {
			m.AddLogMessage("WARN", "No photos found on that page")
		} else {
			m.AddLogMessage("SUCCESS", fmt.Sprintf("Loaded %d photos", msg.Count))
		}
		return m, nil

	case actionDoneMsg:
		if msg.err != nil {
			if msg.action == "fetch" {
				m.fetching = false
			}
			m.AddLogMessage("ERROR", msg.err.Error())
			return m, nil
		}
		switch msg.action {
		case "save":
			m.AddLogMessage("SUCCESS", "Session saved")
		case "load":
			m.AddLogMessage("SUCCESS", "Session loaded")
		}
		return m, nil
	}

	return m, nil
}

// handleInputKey handles keys while the URL field has focus
func (m *Model) handleInputKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c":
		return m, tea.Quit

	case "esc":
		m.urlInput.Blur()
		return m, nil

	case "enter":
		url := strings.TrimSpace(m.urlInput.Value())
		m.urlInput.Blur()
		if url == "" {
			return m, nil
		}
		m.fetching = true
		m.AddLogMessage("INFO", "Fetching "+url)
		return m, m.run("fetch", func(context.Context) error { return m.ctrl.SetList(url) })
	}

	var cmd tea.Cmd
	m.urlInput, cmd = m.urlInput.Update(msg)
	return m, cmd
}

// handleKeyPress handles keyboard input
func (m *Model) handleKeyPress(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "Q", "ctrl+c":
		return m, tea.Quit

	case "u", "/":
		return m, m.urlInput.Focus()

	case "s", "S":
		minutes := m.minutes
		return m, m.run("start", func(context.Context) error { return m.ctrl.ToggleTimer(minutes) })

	case "p", "P":
		return m, m.run("pause", func(context.Context) error {
			m.ctrl.PauseResume()
			return nil
		})

	case "e", "E":
		return m, m.run("end", func(context.Context) error {
			m.ctrl.EndTimer()
			return nil
		})

	case "d", "D":
		m.minutes = m.cfg.NextDurationChoice(m.minutes)
		m.AddLogMessage("INFO", fmt.Sprintf("Duration set to %d minutes", m.minutes))
		return m, nil

	case "w", "W":
		return m, m.run("save", m.ctrl.Save)

	case "o", "O":
		return m, m.run("load", m.ctrl.Load)

	case "up", "k":
		m.moveCursor(-1)
		return m, nil

	case "down", "j":
		m.moveCursor(1)
		return m, nil

	case "?":
		m.showHelp = !m.showHelp
		return m, nil

	case "ctrl+l":
		m.logMessages = []LogMessage{}
		return m, nil
	}

	return m, nil
}

// run calls the controller off the UI goroutine. The controller publishes
// events that are sent back into the program, which must not happen from
// inside Update.
func (m *Model) run(action string, fn func(ctx context.Context) error) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), actionTimeout)
		defer cancel()
		return actionDoneMsg{action: action, err: fn(ctx)}
	}
}
