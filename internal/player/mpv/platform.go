package mpv

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
)

// Platform represents the operating system platform
type Platform int

const (
	PlatformLinux Platform = iota
	PlatformWindows
	PlatformWSL
	PlatformMac
)

// IPCType represents the IPC connection type
type IPCType int

const (
	IPCUnixSocket IPCType = iota
	IPCNamedPipe
)

// IPCConfig holds IPC connection configuration
type IPCConfig struct {
	Type    IPCType
	Address string
}

// IsSocket reports whether the endpoint is a socket file to clean up
func (c *IPCConfig) IsSocket() bool {
	return c.Type == IPCUnixSocket
}

// Argument returns the mpv command-line flag for this endpoint
func (c *IPCConfig) Argument() string {
	return "--input-ipc-server=" + c.Address
}

// DetectPlatform detects the current platform
func DetectPlatform() Platform {
	switch runtime.GOOS {
	case "windows":
		return PlatformWindows
	case "darwin":
		return PlatformMac
	default:
		if isWSL() {
			return PlatformWSL
		}
		return PlatformLinux
	}
}

func isWSL() bool {
	data, err := os.ReadFile("/proc/version")
	if err != nil {
		return false
	}
	version := strings.ToLower(string(data))
	return strings.Contains(version, "microsoft") || strings.Contains(version, "wsl")
}

// ExecutableName returns the mpv binary name for the platform. WSL uses
// Linux mpv since gopv cannot reach Windows named pipes from there.
func ExecutableName(platform Platform) string {
	if platform == PlatformWindows {
		return "mpv.exe"
	}
	return "mpv"
}

// FindExecutable resolves the mpv binary, honouring an explicit override
func FindExecutable(platform Platform, override string) (string, error) {
	if override != "" {
		if _, err := os.Stat(override); err != nil {
			return "", fmt.Errorf("mpv not found at %s: %w", override, err)
		}
		return override, nil
	}

	name := ExecutableName(platform)
	path, err := exec.LookPath(name)
	if err != nil {
		return "", fmt.Errorf("%s not found in PATH, please install mpv or set player.mpv_path", name)
	}
	return path, nil
}

// NewIPCConfig generates a fresh IPC endpoint for the platform
func NewIPCConfig(platform Platform) (*IPCConfig, error) {
	suffix, err := randomSuffix()
	if err != nil {
		return nil, err
	}

	if platform == PlatformWindows {
		return &IPCConfig{
			Type:    IPCNamedPipe,
			Address: fmt.Sprintf(`\\.\pipe\yoru-mpv-%s`, suffix),
		}, nil
	}
	return &IPCConfig{
		Type:    IPCUnixSocket,
		Address: filepath.Join(os.TempDir(), fmt.Sprintf("yoru-mpv-%s.sock", suffix)),
	}, nil
}

func randomSuffix() (string, error) {
	b := make([]byte, 8)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
