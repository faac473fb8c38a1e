package tui

import "github.com/charmbracelet/bubbles/key"

type keyMap struct {
	Press key.Binding
	Quit  key.Binding
}

func defaultKeys() keyMap {
	return keyMap{
		Press: key.NewBinding(key.WithKeys("enter", " "), key.WithHelp("enter/space", "toggle")),
		Quit:  key.NewBinding(key.WithKeys("q", "esc", "ctrl+c"), key.WithHelp("q", "quit")),
	}
}

func (k keyMap) ShortHelp() []key.Binding  { return []key.Binding{k.Press, k.Quit} }
func (k keyMap) FullHelp() [][]key.Binding { return [][]key.Binding{k.ShortHelp()} }
