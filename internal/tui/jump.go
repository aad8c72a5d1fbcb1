package tui

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/sahilm/fuzzy"

	"github.com/yoruanime/yoru/internal/tui/styles"
)

// EpisodeJump is the episode search field
type EpisodeJump struct {
	input    textinput.Model
	active   bool
	episodes []int
	labels   []string
}

// NewEpisodeJump creates a jump field over the given episode numbers
func NewEpisodeJump(episodes []int) *EpisodeJump {
	ti := textinput.New()
	ti.Placeholder = "episode number or title..."
	ti.Prompt = ""
	ti.CharLimit = 64
	ti.PromptStyle = styles.SubtitleStyle
	ti.TextStyle = styles.MetadataStyle
	ti.PlaceholderStyle = styles.HelpStyle

	j := &EpisodeJump{input: ti}
	j.SetEpisodes(episodes)
	return j
}

// SetEpisodes replaces the searchable episode list
func (j *EpisodeJump) SetEpisodes(episodes []int) {
	j.episodes = episodes
	j.labels = make([]string, len(episodes))
	for i, ep := range episodes {
		j.labels[i] = fmt.Sprintf("Episode %d", ep)
	}
}

// Activate focuses the field
func (j *EpisodeJump) Activate() tea.Cmd {
	j.active = true
	j.input.SetValue("")
	j.input.Focus()
	return textinput.Blink
}

// Deactivate blurs and clears the field
func (j *EpisodeJump) Deactivate() {
	j.active = false
	j.input.Blur()
	j.input.SetValue("")
}

// IsActive reports whether the field has focus
func (j *EpisodeJump) IsActive() bool {
	return j.active
}

// Update handles input while focused
func (j *EpisodeJump) Update(msg tea.Msg) tea.Cmd {
	if !j.active {
		return nil
	}
	var cmd tea.Cmd
	j.input, cmd = j.input.Update(msg)
	return cmd
}

// Matches returns the episodes matching the current query, best first
func (j *EpisodeJump) Matches() []int {
	query := strings.TrimSpace(j.input.Value())
	if query == "" {
		return nil
	}

	if n, err := strconv.Atoi(query); err == nil {
		for _, ep := range j.episodes {
			if ep == n {
				return []int{ep}
			}
		}
	}

	found := fuzzy.Find(query, j.labels)
	out := make([]int, len(found))
	for i, m := range found {
		out[i] = j.episodes[m.Index]
	}
	return out
}

// Selected returns the best match for the query
func (j *EpisodeJump) Selected() (int, bool) {
	matches := j.Matches()
	if len(matches) == 0 {
		return 0, false
	}
	return matches[0], true
}

// SetWidth sets the width of the input
func (j *EpisodeJump) SetWidth(width int) {
	j.input.Width = max(10, width-20)
}

// View renders the field
func (j *EpisodeJump) View() string {
	if !j.active {
		return ""
	}
	label := styles.MetadataStyle.Render("Jump: ")
	prompt := styles.SubtitleStyle.Render("┃")
	hint := styles.HelpStyle.Render(" (enter to play • esc to cancel)")

	preview := ""
	if ep, ok := j.Selected(); ok {
		preview = styles.HelpStyle.Render(fmt.Sprintf(" → Episode %d", ep))
	}
	return label + prompt + " " + j.input.View() + preview + hint
}
