package tui

import (
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/yoruanime/yoru/internal/playback"
)

// KeyMap defines keybindings for the watch view
type KeyMap struct {
	TogglePlay  key.Binding
	SeekBack    key.Binding
	SeekForward key.Binding
	VolumeUp    key.Binding
	VolumeDown  key.Binding
	Fullscreen  key.Binding
	Mute        key.Binding
	NextEpisode key.Binding
	PrevEpisode key.Binding
	ToggleDub   key.Binding
	NextSource  key.Binding
	Retry       key.Binding
	Jump        key.Binding
	CopyURL     key.Binding
	Help        key.Binding
	Quit        key.Binding
}

// DefaultKeyMap returns default keybindings
func DefaultKeyMap() KeyMap {
	return KeyMap{
		TogglePlay: key.NewBinding(
			key.WithKeys(" "),
			key.WithHelp("space", "play/pause"),
		),
		SeekBack: key.NewBinding(
			key.WithKeys("left", "h"),
			key.WithHelp("←/h", "seek -5s"),
		),
		SeekForward: key.NewBinding(
			key.WithKeys("right", "l"),
			key.WithHelp("→/l", "seek +5s"),
		),
		VolumeUp: key.NewBinding(
			key.WithKeys("up", "k"),
			key.WithHelp("↑/k", "volume up"),
		),
		VolumeDown: key.NewBinding(
			key.WithKeys("down", "j"),
			key.WithHelp("↓/j", "volume down"),
		),
		Fullscreen: key.NewBinding(
			key.WithKeys("f"),
			key.WithHelp("f", "fullscreen"),
		),
		Mute: key.NewBinding(
			key.WithKeys("m"),
			key.WithHelp("m", "mute"),
		),
		NextEpisode: key.NewBinding(
			key.WithKeys("n"),
			key.WithHelp("n", "next episode"),
		),
		PrevEpisode: key.NewBinding(
			key.WithKeys("p"),
			key.WithHelp("p", "previous episode"),
		),
		ToggleDub: key.NewBinding(
			key.WithKeys("d"),
			key.WithHelp("d", "sub/dub"),
		),
		NextSource: key.NewBinding(
			key.WithKeys("tab", "s"),
			key.WithHelp("tab/s", "next source"),
		),
		Retry: key.NewBinding(
			key.WithKeys("r"),
			key.WithHelp("r", "retry"),
		),
		Jump: key.NewBinding(
			key.WithKeys("/"),
			key.WithHelp("/", "jump to episode"),
		),
		CopyURL: key.NewBinding(
			key.WithKeys("y"),
			key.WithHelp("y", "copy stream url"),
		),
		Help: key.NewBinding(
			key.WithKeys("?"),
			key.WithHelp("?", "help"),
		),
		Quit: key.NewBinding(
			key.WithKeys("q", "ctrl+c"),
			key.WithHelp("q", "quit"),
		),
	}
}

// ShortHelp implements help.KeyMap
func (k KeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.TogglePlay, k.SeekForward, k.NextEpisode, k.Jump, k.Help, k.Quit}
}

// FullHelp implements help.KeyMap
func (k KeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.TogglePlay, k.SeekBack, k.SeekForward, k.VolumeUp, k.VolumeDown, k.Fullscreen, k.Mute},
		{k.NextEpisode, k.PrevEpisode, k.ToggleDub, k.NextSource, k.Retry},
		{k.Jump, k.CopyURL, k.Help, k.Quit},
	}
}

// playerCode maps a terminal key to the player key code it stands for
func (k KeyMap) playerCode(msg tea.KeyMsg) (string, bool) {
	switch {
	case key.Matches(msg, k.TogglePlay):
		return playback.KeySpace, true
	case key.Matches(msg, k.SeekBack):
		return playback.KeyArrowLeft, true
	case key.Matches(msg, k.SeekForward):
		return playback.KeyArrowRight, true
	case key.Matches(msg, k.VolumeUp):
		return playback.KeyArrowUp, true
	case key.Matches(msg, k.VolumeDown):
		return playback.KeyArrowDown, true
	case key.Matches(msg, k.Fullscreen):
		return playback.KeyF, true
	}
	return "", false
}
