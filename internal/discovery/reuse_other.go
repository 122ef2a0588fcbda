//go:build !(linux || darwin || freebsd || netbsd || openbsd || dragonfly)

package discovery

import "syscall"

// reuseControl is a no-op where SO_REUSEPORT is unavailable; only one agent
// per host can listen on the discovery port there.
func reuseControl(_, _ string, _ syscall.RawConn) error {
	return nil
}
