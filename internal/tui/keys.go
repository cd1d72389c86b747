package tui

import "github.com/charmbracelet/bubbles/key"

type keyMap struct {
	PlayPause    key.Binding
	PrevFrame    key.Binding
	NextFrame    key.Binding
	PrevSegment  key.Binding
	NextSegment  key.Binding
	Split        key.Binding
	Toggle       key.Binding
	Merge        key.Binding
	StartEarlier key.Binding
	StartLater   key.Binding
	ZoomIn       key.Binding
	ZoomOut      key.Binding
	Preview      key.Binding
	Replay       key.Binding
	Save         key.Binding
	Help         key.Binding
	Quit         key.Binding
}

func defaultKeys() keyMap {
	return keyMap{
		PlayPause:    key.NewBinding(key.WithKeys(" "), key.WithHelp("space", "play/pause")),
		PrevFrame:    key.NewBinding(key.WithKeys("left"), key.WithHelp("←", "prev frame")),
		NextFrame:    key.NewBinding(key.WithKeys("right"), key.WithHelp("→", "next frame")),
		PrevSegment:  key.NewBinding(key.WithKeys("up", "shift+tab"), key.WithHelp("↑", "prev segment")),
		NextSegment:  key.NewBinding(key.WithKeys("down", "tab"), key.WithHelp("↓", "next segment")),
		Split:        key.NewBinding(key.WithKeys("s"), key.WithHelp("s", "split")),
		Toggle:       key.NewBinding(key.WithKeys("d"), key.WithHelp("d", "delete/restore")),
		Merge:        key.NewBinding(key.WithKeys("m"), key.WithHelp("m", "merge")),
		StartEarlier: key.NewBinding(key.WithKeys("["), key.WithHelp("[", "start earlier")),
		StartLater:   key.NewBinding(key.WithKeys("]"), key.WithHelp("]", "start later")),
		ZoomIn:       key.NewBinding(key.WithKeys("+", "="), key.WithHelp("+", "zoom in")),
		ZoomOut:      key.NewBinding(key.WithKeys("-"), key.WithHelp("-", "zoom out")),
		Preview:      key.NewBinding(key.WithKeys("p"), key.WithHelp("p", "preview mode")),
		Replay:       key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "replay")),
		Save:         key.NewBinding(key.WithKeys("w"), key.WithHelp("w", "save")),
		Help:         key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "more keys")),
		Quit:         key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	}
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.PlayPause, k.Split, k.Toggle, k.Save, k.Help, k.Quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.PlayPause, k.PrevFrame, k.NextFrame, k.PrevSegment, k.NextSegment},
		{k.Split, k.Toggle, k.Merge, k.StartEarlier, k.StartLater},
		{k.ZoomIn, k.ZoomOut, k.Preview, k.Replay},
		{k.Save, k.Help, k.Quit},
	}
}
