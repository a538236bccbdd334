// Package tui provides a live run monitor using Bubble Tea.
package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/joss/taskmesh/internal/scheduler"
)

// Styles
var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("205")).
			MarginLeft(2)

	infoStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241"))

	doneStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("42"))

	failStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196"))

	skipStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241")).
			Strikethrough(true)

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241")).
			MarginTop(1)
)

// Event is one progress update pushed into the monitor.
type Event struct {
	// Wave, when > 0, announces a new wave with the given task ids.
	Wave    int
	WaveIDs []string

	// Settled, when non-nil, reports a finished task.
	Settled *scheduler.Result

	// Done, when true, ends the run with the final status line.
	Done       bool
	FinalState string
}

// taskRow tracks display state for one plan task.
type taskRow struct {
	id     string
	status scheduler.Status
	millis int64
}

// Model is the run monitor.
type Model struct {
	planID  string
	events  <-chan Event
	rows    []taskRow
	index   map[string]int
	wave    int
	settled int
	final   string
	start   time.Time
	width   int

	spinner  spinner.Model
	progress progress.Model

	quitting bool
}

type eventMsg Event
type tickMsg time.Time

// New creates a monitor over the plan's tasks in execution order. Events
// arrive on the channel; closing it ends the monitor.
func New(planID string, taskIDs []string, events <-chan Event) Model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))

	rows := make([]taskRow, len(taskIDs))
	index := make(map[string]int, len(taskIDs))
	for i, id := range taskIDs {
		rows[i] = taskRow{id: id, status: scheduler.StatusPending}
		index[id] = i
	}

	return Model{
		planID:   planID,
		events:   events,
		rows:     rows,
		index:    index,
		start:    time.Now(),
		spinner:  s,
		progress: progress.New(progress.WithDefaultGradient()),
	}
}

// Init starts the spinner and event pump.
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.waitForEvent(), tickCmd())
}

func (m Model) waitForEvent() tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-m.events
		if !ok {
			return eventMsg(Event{Done: true})
		}
		return eventMsg(ev)
	}
}

func tickCmd() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// Update handles messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			m.quitting = true
			return m, tea.Quit
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.progress.Width = msg.Width - 8
		if m.progress.Width > 60 {
			m.progress.Width = 60
		}

	case eventMsg:
		ev := Event(msg)
		if ev.Wave > 0 {
			m.wave = ev.Wave
			for _, id := range ev.WaveIDs {
				if i, ok := m.index[id]; ok {
					m.rows[i].status = scheduler.StatusRunning
				}
			}
		}
		if ev.Settled != nil {
			if i, ok := m.index[ev.Settled.ID]; ok {
				m.rows[i].status = ev.Settled.Status
				m.rows[i].millis = ev.Settled.DurationMillis
			}
			m.settled++
		}
		if ev.Done {
			m.final = ev.FinalState
			if m.final == "" {
				m.final = "finished"
			}
			// Anything never attempted was skipped.
			for i := range m.rows {
				if !m.rows[i].status.Terminal() {
					m.rows[i].status = scheduler.StatusCancelled
				}
			}
			return m, tea.Quit
		}
		return m, m.waitForEvent()

	case tickMsg:
		return m, tickCmd()

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case progress.FrameMsg:
		pm, cmd := m.progress.Update(msg)
		m.progress = pm.(progress.Model)
		return m, cmd
	}

	return m, nil
}

// View renders the task list with a completion bar.
func (m Model) View() string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "%s\n\n", titleStyle.Render("taskmesh · "+m.planID))

	for _, row := range m.rows {
		sb.WriteString("  ")
		switch row.status {
		case scheduler.StatusRunning:
			fmt.Fprintf(&sb, "%s %s\n", m.spinner.View(), row.id)
		case scheduler.StatusCompleted:
			fmt.Fprintf(&sb, "%s %s %s\n", doneStyle.Render("✓"), row.id,
				infoStyle.Render(fmt.Sprintf("%.1fs", float64(row.millis)/1000)))
		case scheduler.StatusFailed:
			fmt.Fprintf(&sb, "%s %s\n", failStyle.Render("✗"), row.id)
		case scheduler.StatusCancelled:
			fmt.Fprintf(&sb, "%s\n", skipStyle.Render("⊘ "+row.id))
		default:
			fmt.Fprintf(&sb, "%s %s\n", infoStyle.Render("·"), row.id)
		}
	}

	ratio := 0.0
	if len(m.rows) > 0 {
		ratio = float64(m.settled) / float64(len(m.rows))
	}
	fmt.Fprintf(&sb, "\n  %s\n", m.progress.ViewAs(ratio))

	elapsed := time.Since(m.start).Round(time.Second)
	if m.final != "" {
		fmt.Fprintf(&sb, "\n  %s\n", infoStyle.Render(fmt.Sprintf("run %s in %s", m.final, elapsed)))
	} else {
		fmt.Fprintf(&sb, "\n  %s\n", infoStyle.Render(fmt.Sprintf("wave %d · %d/%d settled · %s",
			m.wave, m.settled, len(m.rows), elapsed)))
	}

	sb.WriteString(helpStyle.Render("  q: quit"))
	sb.WriteString("\n")

	if m.quitting {
		sb.WriteString("\n")
	}
	return sb.String()
}

// Run starts the monitor program and blocks until it exits.
func Run(m Model) error {
	_, err := tea.NewProgram(m).Run()
	return err
}
