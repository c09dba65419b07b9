// Package viz renders a terminal monitor for a running control node:
// lifecycle state, plant state, force command, missed-deadline count, and
// a scrolling pole-angle trace. Lifecycle transitions and teleop nudges
// are driven from the keyboard, exercising the control-plane path while
// the loop runs.
package viz

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/guptarohit/asciigraph"

	"github.com/san-kum/pendctl/internal/node"
)

const (
	historyCapacity = 120
	refreshInterval = 50 * time.Millisecond
	teleopStep      = 0.1
)

var (
	headerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("86")).Bold(true).MarginBottom(1)
	labelStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("245")).Width(18)
	valueStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("252"))
	alertStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("203"))
	graphStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("49")).Padding(1, 0)
	helpStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("240")).MarginTop(1)
)

type tickMsg time.Time

type Model struct {
	node      *node.Node
	history   []float64
	teleopPos float64
	lastErr   string
}

func NewModel(n *node.Node) Model {
	return Model{
		node:    n,
		history: make([]float64, 0, historyCapacity),
	}
}

func (m Model) Init() tea.Cmd {
	return tick()
}

func tick() tea.Cmd {
	return tea.Tick(refreshInterval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case "c":
			m.transition(m.node.Configure)
		case "a":
			m.transition(m.node.Activate)
		case "d":
			m.transition(m.node.Deactivate)
		case "left":
			m.teleopPos -= teleopStep
			m.node.SetTeleop(m.teleopPos, 0)
		case "right":
			m.teleopPos += teleopStep
			m.node.SetTeleop(m.teleopPos, 0)
		}
		return m, nil
	case tickMsg:
		snap := m.node.Snapshot()
		m.history = append(m.history, snap.State.PoleAngle)
		if len(m.history) > historyCapacity {
			m.history = m.history[1:]
		}
		return m, tick()
	}
	return m, nil
}

func (m *Model) transition(trigger func() error) {
	if err := trigger(); err != nil {
		m.lastErr = err.Error()
	} else {
		m.lastErr = ""
	}
}

func (m Model) View() string {
	snap := m.node.Snapshot()

	var b strings.Builder
	b.WriteString(headerStyle.Render("pendctl · inverted pendulum"))
	b.WriteString("\n")

	row := func(label, value string) {
		b.WriteString(labelStyle.Render(label))
		b.WriteString(valueStyle.Render(value))
		b.WriteString("\n")
	}
	row("lifecycle", snap.Lifecycle.String())
	row("cart position", fmt.Sprintf("%+.4f m", snap.State.CartPosition))
	row("cart velocity", fmt.Sprintf("%+.4f m/s", snap.State.CartVelocity))
	row("pole angle", fmt.Sprintf("%+.4f rad", snap.State.PoleAngle))
	row("pole velocity", fmt.Sprintf("%+.4f rad/s", snap.State.PoleVelocity))
	row("teleop target", fmt.Sprintf("%+.2f m", snap.Teleop.CartPosition))
	row("force command", fmt.Sprintf("%+.3f N", snap.ForceCommand))

	missed := fmt.Sprintf("%d", snap.MissedDeadlines)
	b.WriteString(labelStyle.Render("missed deadlines"))
	if snap.MissedDeadlines > 0 {
		b.WriteString(alertStyle.Render(missed))
	} else {
		b.WriteString(valueStyle.Render(missed))
	}
	b.WriteString("\n")

	if len(m.history) > 1 {
		graph := asciigraph.Plot(m.history,
			asciigraph.Height(8),
			asciigraph.Width(60),
			asciigraph.Caption("pole angle (rad)"),
		)
		b.WriteString(graphStyle.Render(graph))
		b.WriteString("\n")
	}

	if m.lastErr != "" {
		b.WriteString(alertStyle.Render("! " + m.lastErr))
		b.WriteString("\n")
	}

	b.WriteString(helpStyle.Render("c configure · a activate · d deactivate · ←/→ move cart target · q quit"))
	return b.String()
}

// Run blocks on the monitor UI until the user quits.
func Run(n *node.Node) error {
	p := tea.NewProgram(NewModel(n))
	_, err := p.Run()
	return err
}
