//go:build !windows

package mpv

import "os"

// endpointReady reports whether mpv has created its IPC socket
func endpointReady(cfg *IPCConfig) bool {
	_, err := os.Stat(cfg.Address)
	return err == nil
}
