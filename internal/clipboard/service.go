package clipboard

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strings"

	"github.com/atotto/clipboard"
	tea "github.com/charmbracelet/bubbletea"
)

// writeAll is the system clipboard writer
var writeAll = clipboard.WriteAll

// CopiedMsg reports the outcome of a copy
type CopiedMsg struct {
	Text string
	Err  error
}

// Service copies text to the system clipboard
type Service struct {
	command string
	logger  *slog.Logger
}

// NewService creates a clipboard service. command, when set, is the
// fallback copy command (for example "wl-copy" or "clip.exe").
func NewService(command string, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{command: command, logger: logger.With("component", "clipboard")}
}

// Copy returns a command that copies text and reports a CopiedMsg
func (s *Service) Copy(ctx context.Context, text string) tea.Cmd {
	return func() tea.Msg {
		return CopiedMsg{Text: text, Err: s.Write(ctx, text)}
	}
}

// Write copies text, trying the system clipboard first, then the
// configured command, then clip.exe under WSL
func (s *Service) Write(ctx context.Context, text string) error {
	err := writeAll(text)
	if err == nil {
		s.logger.Debug("copied to clipboard", "text_length", len(text))
		return nil
	}
	s.logger.Warn("failed to copy to clipboard using primary method", "error", err)

	command := s.command
	if command == "" && isWSL() {
		command = "clip.exe"
	}
	if command == "" {
		return fmt.Errorf("failed to copy to clipboard: %w", err)
	}
	return s.copyWithCommand(ctx, text, command)
}

func (s *Service) copyWithCommand(ctx context.Context, text, command string) error {
	parts := parseCommand(command)
	if len(parts) == 0 {
		return fmt.Errorf("invalid clipboard command: %q", command)
	}

	cmd := exec.CommandContext(ctx, parts[0], parts[1:]...)
	cmd.Stdin = strings.NewReader(text)
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("clipboard command %q failed: %w", command, err)
	}
	s.logger.Debug("clipboard command succeeded", "command", command)
	return nil
}

// parseCommand splits a command string into arguments, respecting quotes
func parseCommand(command string) []string {
	var parts []string
	var current strings.Builder
	var quote rune

	flush := func() {
		if current.Len() > 0 {
			parts = append(parts, current.String())
			current.Reset()
		}
	}

	for _, r := range command {
		switch {
		case quote != 0 && r == quote:
			quote = 0
		case quote == 0 && (r == '\'' || r == '"'):
			quote = r
		case quote == 0 && r == ' ':
			flush()
		default:
			current.WriteRune(r)
		}
	}
	flush()

	return parts
}

func isWSL() bool {
	data, err := os.ReadFile("/proc/version")
	if err != nil {
		return false
	}
	version := strings.ToLower(string(data))
	return strings.Contains(version, "microsoft") || strings.Contains(version, "wsl")
}
