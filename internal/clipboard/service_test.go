package clipboard

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func stubWriteAll(t *testing.T, fn func(string) error) {
	t.Helper()
	orig := writeAll
	writeAll = fn
	t.Cleanup(func() { writeAll = orig })
}

func TestParseCommand(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{"wl-copy", []string{"wl-copy"}},
		{"xclip -selection clipboard", []string{"xclip", "-selection", "clipboard"}},
		{`sh -c "cat > out"`, []string{"sh", "-c", "cat > out"}},
		{`printf '%s'  x`, []string{"printf", "%s", "x"}},
		{"   ", nil},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, parseCommand(tt.in), tt.in)
	}
}

func TestCopy_Primary(t *testing.T) {
	var got string
	stubWriteAll(t, func(s string) error {
		got = s
		return nil
	})

	msg := NewService("", nil).Copy(context.Background(), "http://localhost/proxy?url=a")()
	assert.Equal(t, CopiedMsg{Text: "http://localhost/proxy?url=a"}, msg)
	assert.Equal(t, "http://localhost/proxy?url=a", got)
}

func TestCopy_FallbackCommand(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("requires sh")
	}
	stubWriteAll(t, func(string) error { return errors.New("no clipboard") })

	out := filepath.Join(t.TempDir(), "clip.txt")
	s := NewService(`sh -c "cat > `+out+`"`, nil)
	require.NoError(t, s.Write(context.Background(), "stream-url"))

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, "stream-url", string(data))
}

func TestCopy_FallbackFailure(t *testing.T) {
	stubWriteAll(t, func(string) error { return errors.New("no clipboard") })

	msg := NewService("definitely-not-a-clipboard-tool", nil).Copy(context.Background(), "x")().(CopiedMsg)
	assert.Error(t, msg.Err)
}
