package tui

import "github.com/charmbracelet/bubbles/key"

// globalKeyMap holds bindings active on every screen
type globalKeyMap struct {
	Up   key.Binding
	Down key.Binding
	Quit key.Binding
}

func newGlobalKeyMap() globalKeyMap {
	return globalKeyMap{
		Up: key.NewBinding(
			key.WithKeys("up", "shift+tab"),
			key.WithHelp("↑", "previous field"),
		),
		Down: key.NewBinding(
			key.WithKeys("down", "tab"),
			key.WithHelp("↓", "next field"),
		),
		Quit: key.NewBinding(
			key.WithKeys("ctrl+c", "f9"),
			key.WithHelp("f9/ctrl+c", "exit"),
		),
	}
}

// authKeyMap defines key bindings for the login screen
type authKeyMap struct {
	globalKeyMap
	Submit key.Binding
}

// ShortHelp returns keybindings to be shown in the mini help view
func (k authKeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Submit, k.Up, k.Down, k.Quit}
}

// FullHelp returns keybindings for the expanded help view
func (k authKeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{k.ShortHelp()}
}

// jobKeyMap defines key bindings for the job screen
type jobKeyMap struct {
	Continue key.Binding
	Abort    key.Binding
	Quit     key.Binding
}

// ShortHelp returns keybindings to be shown in the mini help view
func (k jobKeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Continue, k.Abort, k.Quit}
}

// FullHelp returns keybindings for the expanded help view
func (k jobKeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{k.ShortHelp()}
}

// sessionKeyMap defines key bindings for the chat screen
type sessionKeyMap struct {
	globalKeyMap
	Submit key.Binding
	Untie  key.Binding
}

// ShortHelp returns keybindings to be shown in the mini help view
func (k sessionKeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Submit, k.Untie, k.Up, k.Down, k.Quit}
}

// FullHelp returns keybindings for the expanded help view
func (k sessionKeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{k.ShortHelp()}
}

type keyMaps struct {
	global  globalKeyMap
	auth    authKeyMap
	job     jobKeyMap
	session sessionKeyMap
}

func newKeyMaps() keyMaps {
	global := newGlobalKeyMap()
	submit := key.NewBinding(
		key.WithKeys("enter"),
		key.WithHelp("enter", "submit"),
	)

	return keyMaps{
		global: global,
		auth: authKeyMap{
			globalKeyMap: global,
			Submit:       submit,
		},
		job: jobKeyMap{
			Continue: key.NewBinding(
				key.WithKeys("enter"),
				key.WithHelp("enter", "continue"),
			),
			Abort: key.NewBinding(
				key.WithKeys("esc"),
				key.WithHelp("esc", "abort"),
			),
			Quit: global.Quit,
		},
		session: sessionKeyMap{
			globalKeyMap: global,
			Submit:       submit,
			Untie: key.NewBinding(
				key.WithKeys("ctrl+u"),
				key.WithHelp("ctrl+u", "untie"),
			),
		},
	}
}
