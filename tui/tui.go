// Package tui is a terminal front end for the engine built on bubbletea.
package tui

import (
	"context"
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/google/uuid"
	"github.com/yllada/connman-indicator/common"
	"github.com/yllada/connman-indicator/connman"
)

// Engine is the part of connman.Manager the interface drives.
type Engine interface {
	Subscribe(fn func(connman.Snapshot)) (unsubscribe func())
	SetCredentialPrompt(prompt connman.CredentialPrompt)
	ConnectService(path string)
	DisconnectService(path string)
	EnableTechnology(kind connman.Kind)
	DisableTechnology(kind connman.Kind)
	SubmitPassphrase(path, passphrase string)
	CancelAuthentication(path string)
}

// Messages fed into the program from the engine's loop.
type (
	snapshotMsg struct{ snapshot connman.Snapshot }
	authMsg     struct{ event connman.AuthEvent }
	// clearFailureMsg ends the linger period of a failed flow.
	clearFailureMsg struct{ flow uuid.UUID }
)

// Run shows the interface until the user quits or ctx is done.
func Run(ctx context.Context, engine Engine) error {
	log := common.GetLogger().Component("tui")
	p := tea.NewProgram(newModel(engine), tea.WithAltScreen(), tea.WithContext(ctx))

	unsubscribe := engine.Subscribe(func(s connman.Snapshot) {
		p.Send(snapshotMsg{s})
	})
	defer unsubscribe()
	engine.SetCredentialPrompt(connman.CredentialPromptFunc(func(e connman.AuthEvent) {
		p.Send(authMsg{e})
	}))
	defer engine.SetCredentialPrompt(nil)

	_, err := p.Run()
	if ctx.Err() != nil {
		return nil
	}
	if err != nil {
		log.Error("Terminal interface failed: %v", err)
	}
	return err
}

func clearFailureAfter(flow uuid.UUID, linger time.Duration) tea.Cmd {
	return tea.Tick(linger, func(time.Time) tea.Msg {
		return clearFailureMsg{flow: flow}
	})
}

// =============================================================================
// Keys
// =============================================================================

type keyMap struct {
	Up         key.Binding
	Down       key.Binding
	Select     key.Binding
	ToggleWifi key.Binding
	ToggleWire key.Binding
	More       key.Binding
	Cancel     key.Binding
	Help       key.Binding
	Quit       key.Binding
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Select, k.ToggleWifi, k.Help, k.Quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Up, k.Down, k.Select, k.More},
		{k.ToggleWifi, k.ToggleWire, k.Cancel},
		{k.Help, k.Quit},
	}
}

var defaultKeyBindings = keyMap{
	Up:         key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "up")),
	Down:       key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "down")),
	Select:     key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "connect/disconnect")),
	ToggleWifi: key.NewBinding(key.WithKeys("w"), key.WithHelp("w", "toggle wifi")),
	ToggleWire: key.NewBinding(key.WithKeys("e"), key.WithHelp("e", "toggle wired")),
	More:       key.NewBinding(key.WithKeys("m"), key.WithHelp("m", "more networks")),
	Cancel:     key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "cancel")),
	Help:       key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "help")),
	Quit:       key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
}

// =============================================================================
// Styles
// =============================================================================

var (
	colorPrimary = lipgloss.Color("39")
	colorSuccess = lipgloss.Color("42")
	colorWarning = lipgloss.Color("214")
	colorError   = lipgloss.Color("196")
	colorFaint   = lipgloss.Color("243")

	appStyle          = lipgloss.NewStyle().Margin(1, 1)
	titleStyle        = lipgloss.NewStyle().Bold(true).Foreground(colorPrimary).Padding(0, 1)
	sectionStyle      = lipgloss.NewStyle().Bold(true).MarginTop(1)
	itemStyle         = lipgloss.NewStyle().PaddingLeft(2)
	selectedItemStyle = lipgloss.NewStyle().PaddingLeft(1).Foreground(colorPrimary).Bold(true)
	faintStyle        = lipgloss.NewStyle().Foreground(colorFaint)
	onStyle           = lipgloss.NewStyle().Foreground(colorSuccess)
	offStyle          = lipgloss.NewStyle().Foreground(colorError)
	pendingStyle      = lipgloss.NewStyle().Foreground(colorWarning)
	errorStyle        = lipgloss.NewStyle().Foreground(colorError).MarginTop(1)
	promptBoxStyle    = lipgloss.NewStyle().Border(lipgloss.RoundedBorder(), true).BorderForeground(colorWarning).Padding(0, 1).MarginTop(1)
	helpStyle         = lipgloss.NewStyle().MarginTop(1)

	signalExcellentStyle = lipgloss.NewStyle().Foreground(colorSuccess)
	signalGoodStyle      = lipgloss.NewStyle().Foreground(colorWarning)
	signalWeakStyle      = lipgloss.NewStyle().Foreground(colorError)
)

// signalBars renders strength with the thresholds of the tray icons.
func signalBars(strength uint8) string {
	switch {
	case strength > 80:
		return signalExcellentStyle.Render("▂▄▆█")
	case strength > 55:
		return signalGoodStyle.Render("▂▄▆") + faintStyle.Render("█")
	case strength > 30:
		return signalGoodStyle.Render("▂▄") + faintStyle.Render("▆█")
	case strength > 5:
		return signalWeakStyle.Render("▂") + faintStyle.Render("▄▆█")
	default:
		return faintStyle.Render("▂▄▆█")
	}
}
