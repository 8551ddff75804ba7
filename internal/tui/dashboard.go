package tui

import (
	"context"
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/kyukei-panda/timescribe/internal/output"
	"github.com/kyukei-panda/timescribe/internal/runtime"
)

// tickMsg is sent when the refresh timer fires.
type tickMsg time.Time

// statusMsg carries a freshly loaded status.
type statusMsg struct {
	status *output.Status
}

// actionMsg reports the outcome of a timer action.
type actionMsg struct {
	action string
	err    error
}

// errMsg is sent when loading fails.
type errMsg struct {
	err error
}

// DashboardConfig holds configuration for the dashboard.
type DashboardConfig struct {
	Source          Source
	Location        *time.Location
	RefreshInterval time.Duration
	// Timeout bounds every status load and action.
	Timeout time.Duration
}

// DashboardModel is the bubbletea model of the dashboard.
type DashboardModel struct {
	source   Source
	location *time.Location
	status   *output.Status
	loadedAt time.Time

	width      int
	height     int
	err        error
	message    string
	messageExp time.Time

	refreshInterval time.Duration
	timeout         time.Duration
	now             func() time.Time
}

// NewDashboardModel creates a new dashboard model.
func NewDashboardModel(config DashboardConfig) *DashboardModel {
	if config.RefreshInterval == 0 {
		config.RefreshInterval = time.Second
	}
	if config.Timeout == 0 {
		config.Timeout = 5 * time.Second
	}
	if config.Location == nil {
		config.Location = time.Local
	}
	return &DashboardModel{
		source:          config.Source,
		location:        config.Location,
		refreshInterval: config.RefreshInterval,
		timeout:         config.Timeout,
		now:             time.Now,
	}
}

// Init starts the refresh loop.
func (m *DashboardModel) Init() tea.Cmd {
	return tea.Batch(m.tickCmd(), m.loadCmd())
}

// Update handles messages and updates the model.
func (m *DashboardModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKeyPress(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case tickMsg:
		if !m.messageExp.IsZero() && m.now().After(m.messageExp) {
			m.message = ""
			m.messageExp = time.Time{}
		}
		return m, tea.Batch(m.tickCmd(), m.loadCmd())

	case statusMsg:
		m.status = msg.status
		m.loadedAt = m.now()
		m.err = nil
		return m, nil

	case actionMsg:
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.setMessage(actionMessage(msg.action), 2*time.Second)
		return m, m.loadCmd()

	case errMsg:
		m.err = msg.err
		return m, nil
	}
	return m, nil
}

func (m *DashboardModel) handleKeyPress(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c", "esc":
		return m, tea.Quit
	case "w":
		return m, m.actionCmd(runtime.ActionWork)
	case "b":
		return m, m.actionCmd(runtime.ActionBreak)
	case "s":
		if m.status != nil && m.status.Interval == nil {
			m.setMessage("Timer is not running", 2*time.Second)
			return m, nil
		}
		return m, m.actionCmd(runtime.ActionStop)
	case "r":
		m.setMessage("Refreshed", time.Second)
		return m, m.loadCmd()
	}
	return m, nil
}

func actionMessage(action string) string {
	switch action {
	case runtime.ActionWork:
		return "Working"
	case runtime.ActionBreak:
		return "On break"
	default:
		return "Stopped"
	}
}

// View renders the dashboard.
func (m *DashboardModel) View() string {
	if m.width == 0 {
		return "Loading..."
	}

	sections := []string{m.renderHeader()}
	if m.err != nil {
		msg, suggestion := runtime.Describe(m.err)
		line := StyleError.Render("Error: " + msg)
		if suggestion != "" {
			line += "\n" + StyleSubtitle.Render(suggestion)
		}
		sections = append(sections, line)
	}
	if m.message != "" {
		sections = append(sections, StyleWarning.Render(m.message))
	}

	if m.status == nil {
		sections = append(sections, StyleSubtitle.Render("Loading status..."))
	} else {
		now := m.displayNow()
		sections = append(sections, StatusComponent{
			State:    m.status.State,
			Interval: m.status.Interval,
			Now:      now,
			Location: m.location,
			Width:    m.width,
		}.View())

		half := m.width / 2
		today := SummaryComponent{Title: "Today", Summary: m.status.Today, Width: half}.View()
		week := SummaryComponent{Title: "This week", Summary: m.status.Week, Width: half}.View()
		sections = append(sections, sideBySide(m.width, today, week))
	}

	sections = append(sections, HelpBar())
	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func (m *DashboardModel) renderHeader() string {
	title := StyleTitle.Render("TimeScribe")
	clock := StyleSubtitle.Render(m.now().In(m.location).Format("Mon Jan 2, 15:04:05"))
	return lipgloss.JoinHorizontal(lipgloss.Top, title, "  ", clock)
}

// displayNow advances the loaded status clock by the time since it was
// loaded, so the running duration ticks between refreshes.
func (m *DashboardModel) displayNow() time.Time {
	if m.status == nil || m.loadedAt.IsZero() {
		return m.now()
	}
	return m.status.Now.Add(m.now().Sub(m.loadedAt))
}

func (m *DashboardModel) setMessage(msg string, d time.Duration) {
	m.message = msg
	m.messageExp = m.now().Add(d)
}

func (m *DashboardModel) tickCmd() tea.Cmd {
	return tea.Tick(m.refreshInterval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m *DashboardModel) loadCmd() tea.Cmd {
	source, timeout := m.source, m.timeout
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		status, err := source.Status(ctx)
		if err != nil {
			return errMsg{err: fmt.Errorf("load status: %w", err)}
		}
		return statusMsg{status: status}
	}
}

func (m *DashboardModel) actionCmd(action string) tea.Cmd {
	source, timeout := m.source, m.timeout
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		return actionMsg{action: action, err: source.Transition(ctx, action)}
	}
}

// Run starts the dashboard in the alternate screen.
func Run(config DashboardConfig) error {
	p := tea.NewProgram(NewDashboardModel(config), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
