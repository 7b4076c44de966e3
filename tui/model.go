package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/yllada/connman-indicator/common"
	"github.com/yllada/connman-indicator/connman"
)

type rowKind int

const (
	rowService rowKind = iota
	rowMore
)

// row is one selectable line of the network list.
type row struct {
	kind    rowKind
	tech    connman.Kind
	service connman.ServiceView
	hidden  int
}

// prompt is the credential request being answered.
type prompt struct {
	event     connman.AuthEvent
	submitted bool
	missing   bool
}

// failure is shown for the linger period of a failed flow.
type failure struct {
	event connman.AuthEvent
}

type model struct {
	engine Engine

	keys    keyMap
	help    help.Model
	spinner spinner.Model
	input   textinput.Model

	snapshot connman.Snapshot
	rows     []row
	cursor   int
	showMore [len(connman.Kinds)]bool

	prompt  *prompt
	failure *failure
	width   int
}

func newModel(engine Engine) model {
	input := textinput.New()
	input.Placeholder = "passphrase"
	input.EchoMode = textinput.EchoPassword
	input.EchoCharacter = '•'
	input.CharLimit = 64
	input.Cursor.Style = lipgloss.NewStyle().Foreground(colorWarning)

	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = pendingStyle

	return model{
		engine:  engine,
		keys:    defaultKeyBindings,
		help:    help.New(),
		spinner: s,
		input:   input,
	}
}

func (m model) Init() tea.Cmd {
	return m.spinner.Tick
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.help.Width = msg.Width
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case snapshotMsg:
		m.snapshot = msg.snapshot
		m.rebuild()
		return m, nil

	case authMsg:
		return m.handleAuth(msg.event)

	case clearFailureMsg:
		if m.failure != nil && m.failure.event.FlowID == msg.flow {
			m.failure = nil
		}
		return m, nil

	case tea.KeyMsg:
		if m.prompt != nil && !m.prompt.submitted {
			return m.updatePrompt(msg)
		}
		return m.updateList(msg)
	}
	return m, nil
}

func (m model) handleAuth(event connman.AuthEvent) (tea.Model, tea.Cmd) {
	switch event.Type {
	case connman.AuthRequested:
		m.prompt = &prompt{event: event}
		m.failure = nil
		m.input.SetValue("")
		return m, m.input.Focus()
	case connman.AuthFailed:
		if m.prompt != nil && m.prompt.event.FlowID == event.FlowID {
			m.prompt = nil
			m.input.Blur()
		}
		m.failure = &failure{event: event}
		return m, clearFailureAfter(event.FlowID, event.Linger)
	default:
		if m.prompt != nil && m.prompt.event.FlowID == event.FlowID {
			m.prompt = nil
			m.input.Blur()
		}
		return m, nil
	}
}

func (m model) updatePrompt(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case msg.Type == tea.KeyCtrlC:
		return m, tea.Quit
	case key.Matches(msg, m.keys.Cancel):
		m.engine.CancelAuthentication(m.prompt.event.Path)
		return m, nil
	case key.Matches(msg, m.keys.Select):
		value := m.input.Value()
		if value == "" {
			p := *m.prompt
			p.missing = true
			m.prompt = &p
			return m, nil
		}
		p := *m.prompt
		p.submitted = true
		p.missing = false
		m.prompt = &p
		m.input.SetValue("")
		m.input.Blur()
		m.engine.SubmitPassphrase(p.event.Path, value)
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m model) updateList(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.Help):
		m.help.ShowAll = !m.help.ShowAll
	case key.Matches(msg, m.keys.Up):
		if m.cursor > 0 {
			m.cursor--
		}
	case key.Matches(msg, m.keys.Down):
		if m.cursor < len(m.rows)-1 {
			m.cursor++
		}
	case key.Matches(msg, m.keys.ToggleWifi):
		m.toggle(connman.KindWifi)
	case key.Matches(msg, m.keys.ToggleWire):
		m.toggle(connman.KindWired)
	case key.Matches(msg, m.keys.More):
		m.showMore[connman.KindWifi] = !m.showMore[connman.KindWifi]
		m.rebuild()
	case key.Matches(msg, m.keys.Select):
		m.activate()
	}
	return m, nil
}

func (m *model) toggle(kind connman.Kind) {
	view := m.snapshot.Technology(kind)
	if !view.Visible || view.Blocked || view.Pending {
		return
	}
	if view.Enabled {
		m.engine.DisableTechnology(kind)
	} else {
		m.engine.EnableTechnology(kind)
	}
}

func (m *model) activate() {
	if m.cursor >= len(m.rows) {
		return
	}
	r := m.rows[m.cursor]
	switch {
	case r.kind == rowMore:
		m.showMore[r.tech] = true
		m.rebuild()
	case r.service.Authenticating:
	case r.service.Connected():
		m.engine.DisconnectService(r.service.Path)
	default:
		m.engine.ConnectService(r.service.Path)
	}
}

// rebuild flattens the snapshot into rows, keeping the cursor on the same
// service when it is still listed.
func (m *model) rebuild() {
	var selected string
	if m.cursor < len(m.rows) {
		selected = m.rows[m.cursor].service.Path
	}

	m.rows = nil
	for _, kind := range connman.Kinds {
		view := m.snapshot.Technology(kind)
		if !view.Visible {
			continue
		}
		for _, v := range view.Direct {
			m.rows = append(m.rows, row{kind: rowService, tech: kind, service: v})
		}
		if len(view.Overflow) == 0 {
			continue
		}
		if m.showMore[kind] {
			for _, v := range view.Overflow {
				m.rows = append(m.rows, row{kind: rowService, tech: kind, service: v})
			}
		} else {
			m.rows = append(m.rows, row{kind: rowMore, tech: kind, hidden: len(view.Overflow)})
		}
	}

	for i, r := range m.rows {
		if selected != "" && r.service.Path == selected {
			m.cursor = i
			return
		}
	}
	if m.cursor >= len(m.rows) {
		m.cursor = len(m.rows) - 1
	}
	if m.cursor < 0 {
		m.cursor = 0
	}
}

func (m model) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render(common.AppName))
	b.WriteString("  ")
	b.WriteString(m.statusView())
	b.WriteString("\n")

	if m.snapshot.DaemonPresent {
		b.WriteString(m.listView())
	}

	if m.prompt != nil {
		b.WriteString(m.promptView())
		b.WriteString("\n")
	}
	if m.failure != nil {
		e := m.failure.event
		b.WriteString(errorStyle.Render(fmt.Sprintf("✗ %s: %s", e.ServiceName, e.Message)))
		b.WriteString("\n")
	}

	b.WriteString(helpStyle.Render(m.help.View(m.keys)))
	return appStyle.Render(b.String())
}

func (m model) statusView() string {
	s := m.snapshot
	switch {
	case !s.DaemonPresent:
		return offStyle.Render("ConnMan is not running")
	case !s.Synced:
		return m.spinner.View() + " Loading..."
	case s.Status.Kind == connman.StatusAcquiring:
		return m.spinner.View() + " " + pendingStyle.Render(s.Status.String())
	case s.Status.Kind == connman.StatusOffline:
		return faintStyle.Render(s.Status.String())
	default:
		return onStyle.Render(s.Status.String())
	}
}

func (m model) listView() string {
	var b strings.Builder
	i := 0
	for _, kind := range connman.Kinds {
		view := m.snapshot.Technology(kind)
		if !view.Visible {
			continue
		}
		b.WriteString(sectionStyle.Render(view.Label + "  " + powerLabel(view)))
		b.WriteString("\n")
		for ; i < len(m.rows) && m.rows[i].tech == kind; i++ {
			line := m.rowView(m.rows[i])
			if i == m.cursor {
				b.WriteString(selectedItemStyle.Render("> " + line))
			} else {
				b.WriteString(itemStyle.Render(line))
			}
			b.WriteString("\n")
		}
	}
	return b.String()
}

func powerLabel(view connman.TechnologyView) string {
	switch {
	case view.Blocked:
		return offStyle.Render("blocked")
	case view.Pending && view.PendingTarget:
		return pendingStyle.Render("turning on…")
	case view.Pending:
		return pendingStyle.Render("turning off…")
	case view.Enabled:
		return onStyle.Render("on")
	default:
		return offStyle.Render("off")
	}
}

func (m model) rowView(r row) string {
	if r.kind == rowMore {
		return faintStyle.Render(fmt.Sprintf("%s (%d)", common.OverflowLabel, r.hidden))
	}

	v := r.service
	var b strings.Builder
	if v.Connected() {
		b.WriteString("● ")
	} else {
		b.WriteString("  ")
	}
	b.WriteString(v.Name)
	if v.HasStrength && v.Kind == connman.KindWifi {
		b.WriteString("  ")
		b.WriteString(signalBars(v.Strength))
	}
	if v.Secured && v.Kind == connman.KindWifi {
		b.WriteString(" 🔒")
	}
	switch {
	case v.Authenticating:
		b.WriteString("  " + m.spinner.View())
	case v.State.Acquiring() && !v.Connected():
		b.WriteString("  " + pendingStyle.Render("connecting"))
	case v.State == connman.StateFailure:
		b.WriteString("  " + offStyle.Render("failed"))
	case v.Connected():
		b.WriteString("  " + faintStyle.Render(string(v.State)))
	}
	return b.String()
}

func (m model) promptView() string {
	p := m.prompt
	var b strings.Builder
	if p.submitted {
		b.WriteString(m.spinner.View())
		b.WriteString(" Connecting to " + p.event.ServiceName + "...")
		return promptBoxStyle.Render(b.String())
	}
	b.WriteString("Passphrase for " + p.event.ServiceName + "\n")
	b.WriteString(m.input.View())
	if p.missing {
		b.WriteString("\n" + offStyle.Render(common.ErrCredentialsMissing.Error()))
	}
	b.WriteString("\n" + faintStyle.Render("enter to connect, esc to cancel"))
	return promptBoxStyle.Render(b.String())
}
