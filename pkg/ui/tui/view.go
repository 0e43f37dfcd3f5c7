package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

const logo = `┏━┓╻ ╻┏━┓╺┳╸┏━┓╺┳╸╻┏┳┓┏━╸┏━┓
┣━┛┣━┫┃ ┃ ┃ ┃ ┃ ┃ ┃┃┃┃┣╸ ┣┳┛
╹  ╹ ╹┗━┛ ╹ ┗━┛ ╹ ╹╹ ╹┗━╸╹┗╸`

// View renders the entire TUI
func (m Model) View() string {
	if m.width == 0 || m.height == 0 {
		return "Initializing..."
	}

	var sections []string

	sections = append(sections, logoStyle.Render(logo))
	sections = append(sections, m.renderInputPanel(m.width-2))

	half := (m.width - 4) / 2
	left := lipgloss.JoinVertical(lipgloss.Left,
		m.renderTimerPanel(half),
		m.renderPhotoPanel(half),
	)
	right := lipgloss.JoinVertical(lipgloss.Left,
		m.renderListPanel(half),
		m.renderLogsPanel(half),
	)
	sections = append(sections, lipgloss.JoinHorizontal(lipgloss.Top, left, "  ", right))

	if m.showHelp {
		sections = append(sections, m.renderHelp())
	} else {
		sections = append(sections, helpStyle.Render("s start/stop • p pause • e end • u url • d duration • w save • o load • ? help • q quit"))
	}

	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func (m Model) renderInputPanel(width int) string {
	line := m.urlInput.View()
	if m.fetching {
		line += "  " + m.spinner.View() + dimStyle.Render(" fetching")
	}
	return panelStyle.Width(width).Render(line)
}

func (m Model) renderTimerPanel(width int) string {
	title := titleStyle.Render(" TIMER ")
	v := m.view

	status := StatusStyle(v.Status).Render(strings.ToUpper(string(v.Status)))
	remaining := v.RemainingText
	if remaining == "" {
		remaining = "-"
	}

	rows := []string{
		fmt.Sprintf("%s %s", labelStyle.Render("Status:"), status),
		fmt.Sprintf("%s %s", labelStyle.Render("Remaining:"), valueStyle.Render(remaining)),
		m.countdown.ViewAs(elapsedFraction(v)),
		fmt.Sprintf("%s %s", labelStyle.Render("Duration:"), valueStyle.Render(fmt.Sprintf("%d minutes", m.minutes))),
	}

	return panelStyle.Width(width).Render(
		lipgloss.JoinVertical(lipgloss.Left, title, strings.Join(rows, "\n")),
	)
}

func (m Model) renderPhotoPanel(width int) string {
	title := titleStyle.Render(" PHOTO ")
	v := m.view

	var rows []string
	if v.CurrentImageURL == "" {
		rows = append(rows, dimStyle.Render("No photo shown yet"))
	} else {
		rows = append(rows, valueStyle.Render(truncate(v.CurrentImageURL, width-4)))
		if v.HasImage {
			rows = append(rows, dimStyle.Render(fmt.Sprintf("%d×%d %s", v.ImageWidth, v.ImageHeight, v.ImageFormat)))
		}
	}
	if v.CurrentIndex >= 0 && v.CurrentPhoto != v.CurrentImageURL {
		rows = append(rows, errorStyle.Render("Could not load "+truncate(v.CurrentPhoto, width-20)))
	}
	position := "-"
	if v.CurrentIndex >= 0 {
		position = fmt.Sprintf("%d", v.CurrentIndex+1)
	}
	rows = append(rows, fmt.Sprintf("%s %s", labelStyle.Render("Position:"),
		valueStyle.Render(fmt.Sprintf("%s of %d", position, len(v.Photos)))))

	return panelStyle.Width(width).Render(
		lipgloss.JoinVertical(lipgloss.Left, title, strings.Join(rows, "\n")),
	)
}

func (m Model) renderListPanel(width int) string {
	title := titleStyle.Render(" PHOTOS ")
	photos := m.view.Photos

	if len(photos) == 0 {
		return panelStyle.Width(width).Render(
			lipgloss.JoinVertical(lipgloss.Left, title, dimStyle.Render("Enter a page URL to load photos")),
		)
	}

	rows := max(m.height/3, 5)
	start, end := listWindow(m.cursor, len(photos), rows)

	var items []string
	for i := start; i < end; i++ {
		marker := "  "
		if i == m.view.CurrentIndex {
			marker = "▶ "
		}
		text := truncate(fmt.Sprintf("%s%3d. %s", marker, i+1, photos[i]), width-6)
		switch {
		case i == m.cursor:
			items = append(items, listCursorStyle.Render(text))
		case i == m.view.CurrentIndex:
			items = append(items, listCurrentStyle.Render(text))
		default:
			items = append(items, listItemStyle.Render(text))
		}
	}
	if end < len(photos) {
		items = append(items, dimStyle.Render(fmt.Sprintf("  ... and %d more", len(photos)-end)))
	}

	return panelStyle.Width(width).Render(
		lipgloss.JoinVertical(lipgloss.Left, title, strings.Join(items, "\n")),
	)
}

func (m Model) renderLogsPanel(width int) string {
	title := titleStyle.Render(" EVENTS ")

	start := max(len(m.logMessages)-8, 0)

	var logs []string
	for _, log := range m.logMessages[start:] {
		timestamp := logTimestampStyle.Render(log.Time.Format("15:04:05"))
		level := lipgloss.NewStyle().Foreground(log.Color).Bold(true).Render(fmt.Sprintf("[%-7s]", log.Level))
		logs = append(logs, fmt.Sprintf("%s %s %s", timestamp, level, dimStyle.Render(truncate(log.Message, width-24))))
	}

	content := strings.Join(logs, "\n")
	if content == "" {
		content = dimStyle.Render("No events yet...")
	}

	return panelStyle.Width(width).Render(
		lipgloss.JoinVertical(lipgloss.Left, title, content),
	)
}

func (m Model) renderHelp() string {
	help := `
  Timer:
    s        - Start the countdown, or stop it while running
    p        - Pause/Resume
    e        - End the rotation and show the next photo
    d        - Cycle the interval length

  Photos:
    u or /   - Enter a page URL (enter to fetch, esc to cancel)
    ↑/↓ j/k  - Scroll the photo list

  Session:
    w        - Save the session
    o        - Load the saved session

  Other:
    ctrl+l   - Clear events
    ?        - Toggle this help
    q        - Quit
`
	return panelStyle.Width(m.width - 2).Render(help)
}

func truncate(s string, n int) string {
	if n < 4 {
		n = 4
	}
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}
