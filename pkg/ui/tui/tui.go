package tui

import (
	tea "github.com/charmbracelet/bubbletea"

	"phototimer/pkg/config"
	"phototimer/pkg/session"
)

// TUI represents the terminal user interface
type TUI struct {
	program *tea.Program
	model   *Model
}

// NewTUI creates a new TUI instance driving ctrl
func NewTUI(ctrl Controller, cfg *config.Config, opts ...tea.ProgramOption) *TUI {
	model := NewModel(ctrl, cfg)
	opts = append([]tea.ProgramOption{tea.WithAltScreen()}, opts...)
	program := tea.NewProgram(&model, opts...)

	return &TUI{
		program: program,
		model:   &model,
	}
}

// Start runs the TUI until the user quits
func (t *TUI) Start() error {
	_, err := t.program.Run()
	return err
}

// Stop stops the TUI gracefully
func (t *TUI) Stop() {
	t.program.Quit()
}

// Send sends a message to the TUI
func (t *TUI) Send(msg tea.Msg) {
	if t.program != nil {
		t.program.Send(msg)
	}
}

// UpdateState pushes a new rotation view
func (t *TUI) UpdateState(v session.View) {
	t.Send(StateMsg{View: v})
}

// FetchDone reports the end of a photo list fetch
func (t *TUI) FetchDone(count int, err error) {
	t.Send(FetchDoneMsg{Count: count, Err: err})
}

// LogInfo logs an info message
func (t *TUI) LogInfo(message string) {
	t.Send(NoticeMsg{Level: "INFO", Message: message})
}

// LogSuccess logs a success message
func (t *TUI) LogSuccess(message string) {
	t.Send(NoticeMsg{Level: "SUCCESS", Message: message})
}

// LogWarning logs a warning message
func (t *TUI) LogWarning(message string) {
	t.Send(NoticeMsg{Level: "WARN", Message: message})
}

// LogError logs an error message
func (t *TUI) LogError(message string) {
	t.Send(NoticeMsg{Level: "ERROR", Message: message})
}
