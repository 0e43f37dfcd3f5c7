package tui

import (
	"context"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"phototimer/pkg/config"
	"phototimer/pkg/session"
)

// Controller is the set of operations the UI can trigger
type Controller interface {
	ToggleTimer(minutes int) error
	PauseResume()
	EndTimer()
	SetList(pageURL string) error
	Save(ctx context.Context) error
	Load(ctx context.Context) error
	View() session.View
}

// Model represents the TUI model
type Model struct {
	ctrl Controller
	cfg  *config.Config

	// UI components
	spinner   spinner.Model
	urlInput  textinput.Model
	countdown progress.Model

	// Rotation state as last reported
	view    session.View
	minutes int

	// Photo list cursor, kept on the current photo unless the user scrolls
	cursor   int
	scrolled bool

	// UI state
	width          int
	height         int
	showHelp       bool
	fetching       bool
	logMessages    []LogMessage
	maxLogMessages int
}

// LogMessage represents a log entry
type LogMessage struct {
	Time    time.Time
	Level   string
	Message string
	Color   lipgloss.Color
}

// NewModel creates a new TUI model
func NewModel(ctrl Controller, cfg *config.Config) Model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(accentCyan)

	in := textinput.New()
	in.Placeholder = "https://example.com/gallery"
	in.Prompt = "URL › "
	in.CharLimit = 2048

	bar := progress.New(progress.WithDefaultGradient(), progress.WithoutPercentage())
	bar.Width = 40

	return Model{
		ctrl:           ctrl,
		cfg:            cfg,
		spinner:        s,
		urlInput:       in,
		countdown:      bar,
		view:           ctrl.View(),
		minutes:        cfg.Rotation.DefaultMinutes,
		logMessages:    []LogMessage{},
		maxLogMessages: 50,
	}
}

// Init initializes the model
func (m Model) Init() tea.Cmd {
	return m.spinner.Tick
}

// AddLogMessage adds a log message
func (m *Model) AddLogMessage(level, message string) {
	color := dimWhite
	switch level {
	case "ERROR":
		color = alertRed
	case "WARN":
		color = accentOrange
	case "SUCCESS":
		color = accentGreen
	case "INFO":
		color = accentCyan
	}

	m.logMessages = append(m.logMessages, LogMessage{
		Time:    time.Now(),
		Level:   level,
		Message: message,
		Color:   color,
	})

	if len(m.logMessages) > m.maxLogMessages {
		m.logMessages = m.logMessages[len(m.logMessages)-m.maxLogMessages:]
	}
}

// setView stores a new rotation view and moves the cursor to the current
// photo unless the user has scrolled away from it
func (m *Model) setView(v session.View) {
	listChanged := len(v.Photos) != len(m.view.Photos) || v.CurrentIndex != m.view.CurrentIndex
	m.view = v
	if listChanged {
		m.scrolled = false
	}
	if !m.scrolled && v.CurrentIndex >= 0 {
		m.cursor = v.CurrentIndex
	}
	if m.cursor >= len(v.Photos) {
		m.cursor = max(len(v.Photos)-1, 0)
	}
}

// moveCursor scrolls the photo list by delta
func (m *Model) moveCursor(delta int) {
	if len(m.view.Photos) == 0 {
		return
	}
	m.cursor = min(max(m.cursor+delta, 0), len(m.view.Photos)-1)
	m.scrolled = true
}

// listWindow returns the slice bounds of the photo list that fit in rows,
// keeping the cursor visible
func listWindow(cursor, total, rows int) (int, int) {
	if rows <= 0 || total <= rows {
		return 0, total
	}
	start := cursor - rows/2
	if start < 0 {
		start = 0
	}
	if start+rows > total {
		start = total - rows
	}
	return start, start + rows
}

// elapsedFraction is how much of the interval has passed
func elapsedFraction(v session.View) float64 {
	if v.DurationSeconds <= 0 {
		return 0
	}
	remaining := min(max(v.RemainingSeconds, 0), v.DurationSeconds)
	return float64(v.DurationSeconds-remaining) / float64(v.DurationSeconds)
}
