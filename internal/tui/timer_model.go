package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/balkashynov/jornada/internal/i18n"
	"github.com/balkashynov/jornada/internal/lifecycle"
	"github.com/balkashynov/jornada/internal/models"
)

// Controller is the part of lifecycle.Controller the timer drives
type Controller interface {
	State() lifecycle.State
	Start(ctx context.Context, notes string) error
	Pause(ctx context.Context) error
	Resume(ctx context.Context) error
	End(ctx context.Context, notes *string) (*models.WorkSession, error)
	RecoverSession(ctx context.Context) error
	DiscardSession(ctx context.Context) error
	Reload(ctx context.Context) error
}

// TimerModel represents the TUI model for a live work session
type TimerModel struct {
	width  int
	height int

	ctx      context.Context
	ctrl     Controller
	changes  <-chan struct{}
	messages i18n.Messages

	state lifecycle.State
	err   error
	ended *models.WorkSession

	keys keyMap
	help help.Model
	note textinput.Model

	// Animation state
	animation int

	// UI state
	askingNote bool
	quitting   bool
}

// stateChangedMsg is sent whenever the controller publishes a new state
type stateChangedMsg struct{}

// opDoneMsg carries the outcome of a lifecycle operation
type opDoneMsg struct {
	err   error
	ended *models.WorkSession
}

// animationTickMsg is sent for the header animation
type animationTickMsg struct{}

// NewTimerModel creates a timer bound to ctrl. changes signals state updates published by the controller.
func NewTimerModel(ctx context.Context, ctrl Controller, changes <-chan struct{}, messages i18n.Messages) TimerModel {
	note := textinput.New()
	note.Placeholder = "what did you work on? (optional)"
	note.CharLimit = 280
	note.Width = 50

	return TimerModel{
		ctx:      ctx,
		ctrl:     ctrl,
		changes:  changes,
		messages: messages,
		state:    ctrl.State(),
		keys:     newKeyMap(),
		help:     help.New(),
		note:     note,
	}
}

// Init starts listening for state changes and the animation ticker
func (m TimerModel) Init() tea.Cmd {
	return tea.Batch(m.waitForChange(), animationTick())
}

func (m TimerModel) waitForChange() tea.Cmd {
	changes := m.changes
	return func() tea.Msg {
		if _, ok := <-changes; !ok {
			return nil
		}
		return stateChangedMsg{}
	}
}

func animationTick() tea.Cmd {
	return tea.Tick(250*time.Millisecond, func(time.Time) tea.Msg {
		return animationTickMsg{}
	})
}

// run executes a lifecycle operation off the update loop
func (m TimerModel) run(op func(ctx context.Context) error) tea.Cmd {
	ctx := m.ctx
	return func() tea.Msg {
		return opDoneMsg{err: op(ctx)}
	}
}

func (m TimerModel) end(notes *string) tea.Cmd {
	ctx, ctrl := m.ctx, m.ctrl
	return func() tea.Msg {
		ended, err := ctrl.End(ctx, notes)
		return opDoneMsg{err: err, ended: ended}
	}
}

// Update handles messages
func (m TimerModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case stateChangedMsg:
		m.state = m.ctrl.State()
		return m, m.waitForChange()

	case animationTickMsg:
		if m.state.Phase == lifecycle.Active {
			m.animation = (m.animation + 1) % 4
		}
		if m.quitting {
			return m, nil
		}
		return m, animationTick()

	case opDoneMsg:
		m.err = msg.err
		m.state = m.ctrl.State()
		if msg.err == nil && msg.ended != nil {
			m.ended = msg.ended
			m.quitting = true
			return m, tea.Quit
		}
		return m, nil

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width
		return m, nil

	case tea.KeyMsg:
		if m.askingNote {
			return m.updateNote(msg)
		}
		return m.updateKeys(msg)
	}

	return m, nil
}

func (m TimerModel) updateNote(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEnter:
		m.askingNote = false
		m.note.Blur()
		var notes *string
		if v := strings.TrimSpace(m.note.Value()); v != "" {
			notes = &v
		}
		return m, m.end(notes)
	case tea.KeyEsc:
		m.askingNote = false
		m.note.Blur()
		m.note.Reset()
		return m, nil
	}

	var cmd tea.Cmd
	m.note, cmd = m.note.Update(msg)
	return m, cmd
}

func (m TimerModel) updateKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if key.Matches(msg, m.keys.Quit) {
		m.quitting = true
		return m, tea.Quit
	}
	if m.state.Loading {
		return m, nil
	}

	if m.state.Abandoned != nil {
		switch {
		case key.Matches(msg, m.keys.Recover):
			return m, m.run(m.ctrl.RecoverSession)
		case key.Matches(msg, m.keys.Discard):
			return m, m.run(m.ctrl.DiscardSession)
		}
		return m, nil
	}

	switch {
	case key.Matches(msg, m.keys.Refresh):
		return m, m.run(m.ctrl.Reload)
	case key.Matches(msg, m.keys.Start) && m.state.Phase == lifecycle.NoSession:
		return m, m.run(func(ctx context.Context) error { return m.ctrl.Start(ctx, "") })
	case key.Matches(msg, m.keys.Toggle) && m.state.Phase == lifecycle.Active:
		return m, m.run(m.ctrl.Pause)
	case key.Matches(msg, m.keys.Toggle) && m.state.Phase == lifecycle.Paused:
		return m, m.run(m.ctrl.Resume)
	case key.Matches(msg, m.keys.Stop) && m.state.Phase != lifecycle.NoSession:
		m.askingNote = true
		return m, m.note.Focus()
	}
	return m, nil
}

// bindings returns the keys that do something in the current state
func (m TimerModel) bindings() keyMap {
	k := m.keys
	abandoned := m.state.Abandoned != nil
	k.Start.SetEnabled(!abandoned && m.state.Phase == lifecycle.NoSession)
	k.Toggle.SetEnabled(!abandoned && m.state.Phase != lifecycle.NoSession)
	k.Stop.SetEnabled(!abandoned && m.state.Phase != lifecycle.NoSession)
	k.Recover.SetEnabled(abandoned)
	k.Discard.SetEnabled(abandoned)
	k.Refresh.SetEnabled(!abandoned)
	return k
}

// View renders the timer TUI
func (m TimerModel) View() string {
	if m.width == 0 || m.height == 0 {
		return "Loading..."
	}

	helpBar := lipgloss.NewStyle().
		Foreground(lipgloss.Color(ColorHelpText)).
		Align(lipgloss.Center).
		Width(m.width).
		Render(m.help.View(m.bindings()))

	// Available height for content (total minus help bar and gap)
	contentHeight := m.height - 2

	var content string
	if m.state.Abandoned != nil {
		content = m.renderAbandoned()
	} else {
		content = m.renderTimer()
	}

	panel := lipgloss.NewStyle().
		Width(m.width).
		Height(contentHeight).
		Align(lipgloss.Center, lipgloss.Center).
		Render(content)

	return lipgloss.JoinVertical(lipgloss.Left, panel, helpBar)
}

func (m TimerModel) center() lipgloss.Style {
	return lipgloss.NewStyle().Align(lipgloss.Center).Width(m.width)
}

func (m TimerModel) renderTimer() string {
	var components []string

	// Animated header
	header := "NO SESSION"
	headerColor := ColorDisabledText
	switch m.state.Phase {
	case lifecycle.Active:
		animChars := []string{"⏱", "⏲", "⏱", "⏲"}
		header = fmt.Sprintf("%s  WORKING  %s", animChars[m.animation], animChars[m.animation])
		headerColor = ColorAccentBright
	case lifecycle.Paused:
		header = "⏸  PAUSED  ⏸"
		headerColor = ColorWarning
	}
	components = append(components, m.center().Foreground(lipgloss.Color(headerColor)).Bold(true).Render(header))

	// Big clock, dimmed while the count is frozen
	clockColor := ColorAccentBright
	if m.state.Phase != lifecycle.Active {
		clockColor = ColorDisabledText
	}
	clockStyle := m.center().Foreground(lipgloss.Color(clockColor)).Bold(true)
	var clockLines []string
	for _, line := range bigClock(m.state.ElapsedTime) {
		clockLines = append(clockLines, clockStyle.Render(line))
	}
	components = append(components, strings.Join(clockLines, "\n"))

	// Session info
	infoStyle := m.center().Foreground(lipgloss.Color(ColorSecondaryText)).Italic(true)
	if s := m.state.Session; s != nil {
		info := fmt.Sprintf("Started at %s · %d pause(s)", s.StartTime.Local().Format("15:04:05"), m.state.PauseCount)
		components = append(components, infoStyle.Render(info))
		if s.Notes != "" {
			components = append(components, infoStyle.Render(s.Notes))
		}
	} else {
		components = append(components, infoStyle.Render("Press enter to start a session"))
	}

	if m.askingNote {
		box := lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color(ColorAccentMain)).
			Padding(0, 1).
			Render("Note: " + m.note.View())
		components = append(components, m.center().Render(box))
	}

	if m.err != nil {
		components = append(components, m.center().Foreground(lipgloss.Color(ColorError)).Render("Error: "+m.err.Error()))
	}

	return strings.Join(components, "\n\n")
}

func (m TimerModel) renderAbandoned() string {
	ab := m.state.Abandoned
	title := m.center().Foreground(lipgloss.Color(ColorWarning)).Bold(true).Render("⚠  OPEN SESSION FOUND  ⚠")
	prompt := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color(ColorWarning)).
		Foreground(lipgloss.Color(ColorPrimaryText)).
		Padding(1, 2).
		Width(min(m.width-4, 60)).
		Render(m.messages.AbandonedPrompt(ab.OpenFor))
	started := m.center().Foreground(lipgloss.Color(ColorSecondaryText)).Italic(true).
		Render("Started " + ab.StartTime.Local().Format("Jan 02 15:04"))

	components := []string{title, m.center().Render(prompt), started}
	if m.err != nil {
		components = append(components, m.center().Foreground(lipgloss.Color(ColorError)).Render("Error: "+m.err.Error()))
	}
	return strings.Join(components, "\n\n")
}
