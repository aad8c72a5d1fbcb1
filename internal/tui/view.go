package tui

import (
	"fmt"
	"math"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"

	"github.com/yoruanime/yoru/internal/playback"
	"github.com/yoruanime/yoru/internal/tui/styles"
)

const progressBarWidth = 30

// View implements tea.Model
func (m *Model) View() string {
	if m.quitting {
		return ""
	}

	width := m.width
	if width <= 0 {
		width = 80
	}
	inner := max(20, width-8)

	var b strings.Builder
	b.WriteString(styles.TitleStyle.Render(truncate(m.session.Title, inner-2)))
	b.WriteString("\n\n")
	b.WriteString(m.headerLine())
	b.WriteString("\n")

	state := m.ctrl.State()
	switch {
	case m.ctrl.Loading():
		b.WriteString(m.spinner.View() + styles.MetadataStyle.Render(" Loading sources..."))
	case state == playback.StateNoSources:
		b.WriteString(styles.ErrorStyle.Render("No sources found for this episode."))
		b.WriteString(styles.HelpStyle.Render(" Try another episode or switch sub/dub."))
	case state == playback.StateResolutionFailed, state == playback.StatePlaybackFailed:
		msg := state.String()
		if err := m.ctrl.Err(); err != nil {
			msg = err.Error()
		}
		b.WriteString(styles.ErrorStyle.Render(truncate(msg, inner)))
		b.WriteString(styles.HelpStyle.Render(" (r to retry)"))
	default:
		b.WriteString(m.progressLine())
	}
	b.WriteString("\n")

	if sources := m.sourcesView(inner); sources != "" {
		b.WriteString(sources)
	}

	if jump := m.jump.View(); jump != "" {
		b.WriteString("\n" + jump + "\n")
	}

	for _, n := range m.notifications {
		b.WriteString("\n" + styles.NotificationStyle.Render(n.Text))
	}
	if m.status != "" {
		b.WriteString("\n" + styles.HelpStyle.Render(m.status))
	}

	b.WriteString("\n\n" + m.help.View(m.keys))

	return styles.AppStyle.Width(width - 2).Render(b.String())
}

func (m *Model) headerLine() string {
	id := m.ctrl.Identity()
	episode := fmt.Sprintf("Episode %d", id.Episode)
	if m.session.TotalEpisodes > 0 {
		episode = fmt.Sprintf("Episode %d/%d", id.Episode, m.session.TotalEpisodes)
	}
	audio := "sub"
	if id.Dub {
		audio = "dub"
	}
	return lipgloss.JoinHorizontal(lipgloss.Center,
		styles.Badge(m.ctrl.State().String()),
		" ",
		styles.SubtitleStyle.Render(episode),
		styles.MetadataStyle.Render(" • "+audio),
	)
}

func (m *Model) progressLine() string {
	snap := m.ctrl.Snapshot()
	if snap.Duration <= 0 {
		return styles.MetadataStyle.Render("Waiting for player...")
	}

	filled := int(math.Round(snap.Progress() * progressBarWidth))
	filled = max(0, min(progressBarWidth, filled))
	bar := styles.ProgressFilledStyle.Render(strings.Repeat("━", filled)) +
		styles.ProgressEmptyStyle.Render(strings.Repeat("─", progressBarWidth-filled))

	volume := fmt.Sprintf("vol %d%%", int(math.Round(snap.Volume*100)))
	if snap.Muted {
		volume = "muted"
	}
	return fmt.Sprintf("%s %s %s  %s",
		styles.MetadataStyle.Render(formatClock(snap.CurrentTime)),
		bar,
		styles.MetadataStyle.Render(formatClock(snap.Duration)),
		styles.HelpStyle.Render(volume),
	)
}

func (m *Model) sourcesView(width int) string {
	candidates := m.ctrl.Candidates()
	if len(candidates) == 0 {
		return ""
	}
	_, active, _ := m.ctrl.Active()

	var b strings.Builder
	b.WriteString(styles.HeaderStyle.Render("Sources"))
	b.WriteString("\n")
	for i, c := range candidates {
		label := truncate(fmt.Sprintf("%d. %s", i+1, c.Label()), width-4)
		if i == active {
			b.WriteString(styles.ActiveItemStyle.Render("▶ " + label))
		} else {
			b.WriteString(styles.NormalItemStyle.Render("  " + label))
		}
		b.WriteString("\n")
	}
	return b.String()
}

// formatClock renders seconds as m:ss or h:mm:ss
func formatClock(seconds float64) string {
	total := int(math.Max(0, seconds))
	h, mnt, s := total/3600, total%3600/60, total%60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, mnt, s)
	}
	return fmt.Sprintf("%d:%02d", mnt, s)
}

// truncate fits text into width cells
func truncate(text string, width int) string {
	if width <= 3 || runewidth.StringWidth(text) <= width {
		return text
	}
	return runewidth.Truncate(text, width, "...")
}
