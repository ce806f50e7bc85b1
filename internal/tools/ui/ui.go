package ui

import (
	"context"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// Task is the work shown by Run. progress replaces the status line.
type Task func(ctx context.Context, progress func(string)) ([]string, error)

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("63"))
	statusStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	okStyle      = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("42"))
	failStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("196"))
	detailStyle  = lipgloss.NewStyle().PaddingLeft(2)
	spinnerFrame = []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}
)

type tickMsg time.Time

type progressMsg string

type doneMsg struct {
	details []string
	err     error
}

type model struct {
	title   string
	status  string
	frame   int
	started time.Time
	done    bool
	details []string
	err     error
	cancel  context.CancelFunc
}

func (m model) Init() tea.Cmd {
	return tick()
}

func tick() tea.Cmd {
	return tea.Tick(100*time.Millisecond, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.String() == "ctrl+c" || msg.String() == "q" {
			m.cancel()
		}
		return m, nil
	case tickMsg:
		if m.done {
			return m, nil
		}
		m.frame = (m.frame + 1) % len(spinnerFrame)
		return m, tick()
	case progressMsg:
		m.status = string(msg)
		return m, nil
	case doneMsg:
		m.done = true
		m.details = msg.details
		m.err = msg.err
		return m, tea.Quit
	}
	return m, nil
}

func (m model) View() string {
	var b strings.Builder
	elapsed := time.Since(m.started).Truncate(100 * time.Millisecond)
	if !m.done {
		fmt.Fprintf(&b, "%s %s %s\n", spinnerFrame[m.frame], titleStyle.Render(m.title), statusStyle.Render(elapsed.String()))
		if m.status != "" {
			b.WriteString(detailStyle.Render(statusStyle.Render(m.status)) + "\n")
		}
		return b.String()
	}
	if m.err != nil {
		fmt.Fprintf(&b, "%s %s\n", failStyle.Render("FAIL"), titleStyle.Render(m.title))
	} else {
		fmt.Fprintf(&b, "%s %s %s\n", okStyle.Render("PASS"), titleStyle.Render(m.title), statusStyle.Render(elapsed.String()))
	}
	for _, d := range m.details {
		b.WriteString(detailStyle.Render(d) + "\n")
	}
	if m.err != nil {
		b.WriteString(detailStyle.Render(failStyle.Render(m.err.Error())) + "\n")
	}
	return b.String()
}

// Run executes task behind an interactive progress view and returns its
// result once the task finishes. q or ctrl+c cancels the task context.
func Run(title string, task Task) ([]string, error) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	p := tea.NewProgram(model{title: title, started: time.Now(), cancel: cancel})
	go func() {
		details, err := task(ctx, func(s string) { p.Send(progressMsg(s)) })
		p.Send(doneMsg{details: details, err: err})
	}()
	final, err := p.Run()
	if err != nil {
		return nil, fmt.Errorf("run terminal ui: %w", err)
	}
	m := final.(model)
	return m.details, m.err
}
