package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

var (
	helpStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#626262")).Render
)

// ProgressModel renders a progress bar with the steps completed so far.
type ProgressModel struct {
	progress progress.Model
	title    string
	percent  float64
	message  string
	done     []string
}

// NewProgressModel creates a new progress bar model
func NewProgressModel(title string) ProgressModel {
	return ProgressModel{
		progress: progress.New(progress.WithDefaultGradient()),
		title:    title,
	}
}

// Init initializes the progress model
func (m ProgressModel) Init() tea.Cmd {
	return nil
}

// Update handles messages and updates the progress model
func (m ProgressModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC {
			return m, tea.Quit
		}
		return m, nil
	case tea.WindowSizeMsg:
		m.progress.Width = msg.Width - 4
		if m.progress.Width > 80 {
			m.progress.Width = 80
		}
		return m, nil
	case ProgressMsg:
		if m.message != "" && msg.Message != m.message {
			m.done = append(m.done, m.message)
		}
		m.percent = msg.Percent
		m.message = msg.Message
		if m.percent >= 1.0 {
			return m, tea.Quit
		}
		return m, nil
	default:
		return m, nil
	}
}

// View renders the progress bar
func (m ProgressModel) View() string {
	pad := strings.Repeat(" ", 2)

	var sb strings.Builder
	if m.title != "" {
		sb.WriteString("\n" + pad + m.title + "\n")
	}
	for _, line := range m.done {
		sb.WriteString(pad + successStyle.Render("✓") + " " + line + "\n")
	}
	sb.WriteString("\n" + pad + m.progress.ViewAs(m.percent) + "\n")
	sb.WriteString(pad + helpStyle(m.message) + "\n")
	return sb.String()
}

// ProgressMsg is a message type for updating progress
type ProgressMsg struct {
	Percent float64
	Message string
}

// SimpleProgress displays a simple text-based progress indicator
func SimpleProgress(current, total int, message string) string {
	percent := 0.0
	if total > 0 {
		percent = float64(current) / float64(total) * 100
	}
	filled := min(int(percent/5), 20)
	bar := "[" + strings.Repeat("=", filled) + strings.Repeat(" ", 20-filled) + "]"
	return fmt.Sprintf("%s %s %.0f%% (%d/%d)", message, bar, percent, current, total)
}
