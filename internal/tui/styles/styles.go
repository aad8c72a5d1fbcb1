package styles

import "github.com/charmbracelet/lipgloss"

// Oxocarbon palette
var (
	OxocarbonBase01 = lipgloss.Color("#393939") // Borders
	OxocarbonBase02 = lipgloss.Color("#525252")
	OxocarbonBase03 = lipgloss.Color("#767676") // Muted text
	OxocarbonBase04 = lipgloss.Color("#dde1e6") // Secondary foreground
	OxocarbonBase05 = lipgloss.Color("#f2f4f8") // Primary foreground
	OxocarbonWhite  = lipgloss.Color("#ffffff")

	OxocarbonTeal   = lipgloss.Color("#3ddbd9")
	OxocarbonBlue   = lipgloss.Color("#78a9ff")
	OxocarbonPink   = lipgloss.Color("#ee5396")
	OxocarbonRed    = lipgloss.Color("#ff5252")
	OxocarbonGreen  = lipgloss.Color("#42be65")
	OxocarbonPurple = lipgloss.Color("#be95ff") // main accent
	OxocarbonMauve  = lipgloss.Color("#d1aaff")
)

var (
	AppStyle = lipgloss.NewStyle().
			Padding(1, 2).
			Border(lipgloss.RoundedBorder()).
			BorderForeground(OxocarbonBase01)

	TitleStyle = lipgloss.NewStyle().
			Foreground(OxocarbonWhite).
			Background(OxocarbonPurple).
			Padding(0, 1).
			Bold(true)

	SubtitleStyle = lipgloss.NewStyle().
			Foreground(OxocarbonMauve).
			Bold(true)

	MetadataStyle = lipgloss.NewStyle().
			Foreground(OxocarbonBase04)

	HelpStyle = lipgloss.NewStyle().
			Foreground(OxocarbonBase03).
			Italic(true)

	HeaderStyle = lipgloss.NewStyle().
			Foreground(OxocarbonPurple).
			Bold(true).
			Underline(true).
			MarginTop(1)

	// Source switcher rows
	NormalItemStyle = lipgloss.NewStyle().
			PaddingLeft(2).
			Foreground(OxocarbonBase05)

	ActiveItemStyle = lipgloss.NewStyle().
			PaddingLeft(2).
			Foreground(OxocarbonGreen).
			Bold(true)

	ProgressFilledStyle = lipgloss.NewStyle().
				Foreground(OxocarbonPurple)

	ProgressEmptyStyle = lipgloss.NewStyle().
				Foreground(OxocarbonBase02)

	ErrorStyle = lipgloss.NewStyle().
			Foreground(OxocarbonRed).
			Bold(true)

	NotificationStyle = lipgloss.NewStyle().
				Foreground(OxocarbonGreen).
				Border(lipgloss.RoundedBorder()).
				BorderForeground(OxocarbonGreen).
				Padding(0, 1)

	StatusBadgeStyle = lipgloss.NewStyle().
				Padding(0, 1).
				Bold(true)
)

// StateColor picks the badge color for a session state name
func StateColor(state string) lipgloss.Color {
	switch state {
	case "playing":
		return OxocarbonGreen
	case "paused", "episode ended":
		return OxocarbonBlue
	case "resolving sources", "source selected":
		return OxocarbonTeal
	case "no sources", "resolution failed", "playback failed":
		return OxocarbonRed
	}
	return OxocarbonBase03
}

// Badge renders a session state badge
func Badge(state string) string {
	return StatusBadgeStyle.
		Foreground(OxocarbonWhite).
		Background(StateColor(state)).
		Render(state)
}
