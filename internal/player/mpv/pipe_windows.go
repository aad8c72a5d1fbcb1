//go:build windows

package mpv

import (
	"time"

	"github.com/Microsoft/go-winio"
)

// endpointReady dials the named pipe with a short timeout
func endpointReady(cfg *IPCConfig) bool {
	timeout := 200 * time.Millisecond
	conn, err := winio.DialPipe(cfg.Address, &timeout)
	if err != nil {
		return false
	}
	conn.Close()
	return true
}
