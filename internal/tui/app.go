package tui

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	"github.com/muurk/husky/internal/logging"
	"github.com/muurk/husky/internal/session"
)

const (
	// TickInterval is how often the model re-reads the session snapshot
	TickInterval = 50 * time.Millisecond

	actionTimeout = 2 * time.Second
)

// Controller is the session engine as seen by the UI: a snapshot to render
// and the named actions. *session.Machine implements it.
type Controller interface {
	Snapshot() session.Snapshot
	Done() <-chan struct{}

	SubmitCredential(ctx context.Context, credential string) error
	SubmitPairingSubject(ctx context.Context, subject string) error
	SendMessage(ctx context.Context, text string) error
	Untie(ctx context.Context) error
	Logout(ctx context.Context) error
	AbortJob(ctx context.Context) error
	Continue(ctx context.Context) error
}

// Focus slots. Slot 0 is the screen header on Auth and Session.
const (
	focusHeader = iota
	focusFirstInput
	focusSecondInput
)

type tickMsg time.Time

type actionDoneMsg struct {
	action string
	err    error
}

// AppModel renders whatever screen the session engine is on and turns key
// presses into engine actions.
type AppModel struct {
	ctrl   Controller
	server string

	snap       session.Snapshot
	generation uint64

	// Transient input state, reset on every screen change
	focus      int
	credential textinput.Model
	subject    textinput.Model
	message    textinput.Model
	status     string

	progress progress.Model
	help     help.Model
	keys     keyMaps

	Width  int
	Height int
}

// NewAppModel creates the model for ctrl. server is the relay display name
// shown in the header and on the login screen.
func NewAppModel(ctrl Controller, server string) AppModel {
	credential := textinput.New()
	credential.Placeholder = "name:password"
	credential.CharLimit = 256
	credential.Prompt = ""

	subject := textinput.New()
	subject.Placeholder = "user to tie with"
	subject.CharLimit = 64
	subject.Prompt = ""

	message := textinput.New()
	message.Placeholder = "say something"
	message.CharLimit = 1024
	message.Prompt = ""

	width, height := GetTerminalSize()

	m := AppModel{
		ctrl:       ctrl,
		server:     server,
		credential: credential,
		subject:    subject,
		message:    message,
		progress:   progress.New(progress.WithDefaultGradient()),
		help:       help.New(),
		keys:       newKeyMaps(),
		Width:      width,
		Height:     height,
	}
	m.snap = ctrl.Snapshot()
	m.generation = m.snap.Generation
	m.resize()
	return m
}

// Init starts the render tick
func (m AppModel) Init() tea.Cmd {
	return tick()
}

func tick() tea.Cmd {
	return tea.Tick(TickInterval, func(t time.Time) tea.Msg { return tickMsg(t) })
}

// Update handles all messages
func (m AppModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.Width = msg.Width
		m.Height = msg.Height
		m.resize()
		return m, nil

	case tickMsg:
		select {
		case <-m.ctrl.Done():
			return m, tea.Quit
		default:
		}
		m.refresh()
		return m, tick()

	case actionDoneMsg:
		m.status = ""
		if msg.err != nil {
			logging.Debug("Action refused", zap.String("action", msg.action), zap.Error(msg.err))
			if !errors.Is(msg.err, session.ErrEmptyInput) {
				m.status = msg.err.Error()
			}
		}
		m.refresh()
		return m, nil

	case tea.KeyMsg:
		if key.Matches(msg, m.keys.global.Quit) {
			return m, tea.Quit
		}
		switch m.snap.Screen {
		case session.ScreenAuth:
			return m.updateAuth(msg)
		case session.ScreenJob:
			return m.updateJob(msg)
		case session.ScreenSession:
			return m.updateSession(msg)
		}
	}

	return m, nil
}

// refresh pulls the latest snapshot. A new generation means the engine
// swapped state, so transient input is dropped before the new screen is
// ever rendered.
func (m *AppModel) refresh() {
	snap := m.ctrl.Snapshot()
	if snap.Generation != m.generation {
		m.resetInputs()
		m.generation = snap.Generation
	}
	m.snap = snap
}

func (m *AppModel) resetInputs() {
	m.focus = focusHeader
	m.status = ""
	for _, in := range []*textinput.Model{&m.credential, &m.subject, &m.message} {
		in.Reset()
		in.Blur()
	}
}

func (m *AppModel) resize() {
	inputWidth := m.Width - 12
	if inputWidth < 10 {
		inputWidth = 10
	}
	m.credential.Width = inputWidth
	m.subject.Width = inputWidth
	m.message.Width = inputWidth
	m.progress.Width = inputWidth
	m.help.Width = m.Width - 4
}

// inputs returns the text inputs of the current screen in focus order
func (m *AppModel) inputs() []*textinput.Model {
	switch m.snap.Screen {
	case session.ScreenAuth:
		return []*textinput.Model{&m.credential}
	case session.ScreenSession:
		return []*textinput.Model{&m.subject, &m.message}
	}
	return nil
}

// moveFocus cycles through the header and the screen's inputs
func (m *AppModel) moveFocus(delta int) {
	inputs := m.inputs()
	slots := len(inputs) + 1
	m.focus = (m.focus + delta + slots) % slots
	for i, in := range inputs {
		if i+1 == m.focus {
			in.Focus()
		} else {
			in.Blur()
		}
	}
}

// focused returns the input holding focus, or nil on the header
func (m *AppModel) focused() *textinput.Model {
	inputs := m.inputs()
	if m.focus < focusFirstInput || m.focus > len(inputs) {
		return nil
	}
	return inputs[m.focus-1]
}

func (m AppModel) updateAuth(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.auth.Up):
		m.moveFocus(-1)
		return m, nil
	case key.Matches(msg, m.keys.auth.Down):
		m.moveFocus(1)
		return m, nil
	case key.Matches(msg, m.keys.auth.Submit):
		if m.focus != focusFirstInput {
			return m, nil
		}
		credential := strings.TrimSpace(m.credential.Value())
		return m, m.do("submit credential", func(ctx context.Context) error {
			return m.ctrl.SubmitCredential(ctx, credential)
		})
	}
	return m.updateFocused(msg)
}

func (m AppModel) updateJob(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	job := m.snap.Job
	if job == nil {
		return m, nil
	}
	switch {
	case key.Matches(msg, m.keys.job.Continue) && !job.Active():
		return m, m.do("continue", m.ctrl.Continue)
	case key.Matches(msg, m.keys.job.Abort) && job.Active():
		return m, m.do("abort job", m.ctrl.AbortJob)
	}
	return m, nil
}

func (m AppModel) updateSession(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.session.Up):
		m.moveFocus(-1)
		return m, nil
	case key.Matches(msg, m.keys.session.Down):
		m.moveFocus(1)
		return m, nil
	case key.Matches(msg, m.keys.session.Untie):
		return m, m.do("untie", m.ctrl.Untie)
	case key.Matches(msg, m.keys.session.Submit):
		switch m.focus {
		case focusHeader:
			return m, m.do("logout", m.ctrl.Logout)
		case focusFirstInput:
			subject := strings.TrimSpace(m.subject.Value())
			return m, m.do("tie", func(ctx context.Context) error {
				return m.ctrl.SubmitPairingSubject(ctx, subject)
			})
		case focusSecondInput:
			text := m.message.Value()
			m.message.Reset()
			return m, m.do("send message", func(ctx context.Context) error {
				return m.ctrl.SendMessage(ctx, text)
			})
		}
	}
	return m.updateFocused(msg)
}

// updateFocused forwards a key to the focused input
func (m AppModel) updateFocused(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	in := m.focused()
	if in == nil {
		return m, nil
	}
	var cmd tea.Cmd
	*in, cmd = in.Update(msg)
	return m, cmd
}

// do runs an engine action off the event loop
func (m AppModel) do(action string, fn func(context.Context) error) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), actionTimeout)
		defer cancel()
		return actionDoneMsg{action: action, err: fn(ctx)}
	}
}

// View renders the current screen
func (m AppModel) View() string {
	var content, helpText string

	switch m.snap.Screen {
	case session.ScreenAuth:
		content = m.renderAuth()
		helpText = m.help.View(m.keys.auth)
	case session.ScreenJob:
		content = m.renderJob()
		helpText = m.help.View(m.keys.job)
	case session.ScreenSession:
		content = m.renderSession()
		helpText = m.help.View(m.keys.session)
	}

	return RenderApplicationContainer(m.server, content, helpText, m.Width, m.Height)
}
