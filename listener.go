/* ippserver - a self-contained network IPP server
 *
 * Dual-stack listener setup
 */

package main

import (
	"context"
	"fmt"
	"net"
	"syscall"
	"time"

	"golang.org/x/sys/unix"
)

// listener wraps net.Listener the way the reverse-proxy side of this
// codebase always has: Accept() is intercepted to tune the accepted
// TCP connection, rather than threading the tuning through every
// caller of Accept
type listener struct {
	net.Listener
}

func (l listener) Accept() (net.Conn, error) {
	conn, err := l.Listener.Accept()
	if err != nil {
		return nil, err
	}

	if tcpconn, ok := conn.(*net.TCPConn); ok {
		tcpconn.SetKeepAlive(true)
		tcpconn.SetKeepAlivePeriod(20 * time.Second)
	}

	return conn, nil
}

// Listeners holds the two sockets a printer accepts connections on:
// one bound to 0.0.0.0, one to [::], with IPV6_V6ONLY set so the two
// never race for the same port
type Listeners struct {
	IPv4 net.Listener
	IPv6 net.Listener
	Port int
}

// NewListeners opens the IPv4 and IPv6 listening sockets. If port is
// 0 the OS assigns one, which is then reused for the second socket so
// both families share a single canonical port. Go's net package gives
// no way to pass a custom listen(2) backlog, so ListenBacklog remains
// documentation of the intended value rather than a parameter threaded
// through to the kernel
func NewListeners(port int) (*Listeners, error) {
	lc := net.ListenConfig{Control: controlV6Only}

	ln6, err := lc.Listen(context.Background(), "tcp6", fmt.Sprintf("[::]:%d", port))
	if err != nil {
		return nil, fmt.Errorf("unable to create IPv6 listener: %w", err)
	}

	actualPort := ln6.Addr().(*net.TCPAddr).Port

	ln4, err := net.Listen("tcp4", fmt.Sprintf("0.0.0.0:%d", actualPort))
	if err != nil {
		ln6.Close()
		return nil, fmt.Errorf("unable to create IPv4 listener: %w", err)
	}

	return &Listeners{IPv4: listener{ln4}, IPv6: listener{ln6}, Port: actualPort}, nil
}

// controlV6Only forces IPV6_V6ONLY on the IPv6 socket, so it never
// shadows the IPv4 socket sharing the same port
func controlV6Only(network, address string, c syscall.RawConn) error {
	var sockErr error
	err := c.Control(func(fd uintptr) {
		sockErr = unix.SetsockoptInt(int(fd), unix.IPPROTO_IPV6, unix.IPV6_V6ONLY, 1)
	})
	if err != nil {
		return err
	}
	return sockErr
}

// Close closes both listening sockets
func (l *Listeners) Close() {
	l.IPv4.Close()
	l.IPv6.Close()
}
