// Package sockopt applies the listener and dial socket options spec.md
// §9 asks the host binary to set, using the same syscall.RawConn.Control
// pattern the teacher pack's system dialer uses to reach into a raw fd
// before Go's net package finishes wiring the socket up.
package sockopt

import (
	"syscall"

	"golang.org/x/sys/unix"
)

// directBufferSize is the SO_RCVBUF/SO_SNDBUF size applied to
// direct-bypass and upstream HTTP-CONNECT sockets, which carry larger
// unproxied payloads than the average proxied tunnel.
const directBufferSize = 262144

// ControlListener is a net.ListenConfig.Control callback: SO_REUSEADDR
// so a restart doesn't trip "address already in use" against a socket
// still draining in TIME_WAIT.
func ControlListener(_, _ string, c syscall.RawConn) error {
	return c.Control(func(fd uintptr) {
		_ = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEADDR, 1)
	})
}

// ControlDial is a net.Dialer.Control callback applying TCP_NODELAY and
// SO_KEEPALIVE to every outbound socket (upstream proxies and direct
// targets alike), matching applyOutboundSocketOptions's TcpNoDelay and
// SO_KEEPALIVE handling.
func ControlDial(_, _ string, c syscall.RawConn) error {
	return c.Control(func(fd uintptr) {
		_ = unix.SetsockoptInt(int(fd), unix.IPPROTO_TCP, unix.TCP_NODELAY, 1)
		_ = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_KEEPALIVE, 1)
	})
}

// ControlDialLargeBuffers is ControlDial plus a wider SO_RCVBUF/SO_SNDBUF,
// applied to direct-bypass and HTTP-upstream dials (spec.md §9).
func ControlDialLargeBuffers(network, address string, c syscall.RawConn) error {
	if err := ControlDial(network, address, c); err != nil {
		return err
	}
	return c.Control(func(fd uintptr) {
		_ = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_RCVBUF, directBufferSize)
		_ = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_SNDBUF, directBufferSize)
	})
}
