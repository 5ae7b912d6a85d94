//go:build unix

package conn

import (
	"fmt"
	"net"
	"syscall"

	"golang.org/x/sys/unix"
)

// ReceiveBufferSize returns the kernel receive buffer size of c,
// clamped to [MinBufferSize, MaxBufferSize].
// It returns DefaultBufferSize if the size cannot be read.
func ReceiveBufferSize(c net.Conn) int {
	sc, ok := c.(syscall.Conn)
	if !ok {
		return DefaultBufferSize
	}
	rawConn, err := sc.SyscallConn()
	if err != nil {
		return DefaultBufferSize
	}

	var (
		size    int
		sockErr error
	)
	if err = rawConn.Control(func(fd uintptr) {
		size, sockErr = unix.GetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_RCVBUF)
	}); err != nil || sockErr != nil {
		return DefaultBufferSize
	}
	return clampBufferSize(size)
}

// SetNoDelay enables or disables Nagle's algorithm on c.
func SetNoDelay(c net.Conn, noDelay bool) error {
	if tc, ok := c.(*net.TCPConn); ok {
		return tc.SetNoDelay(noDelay)
	}

	sc, ok := c.(syscall.Conn)
	if !ok {
		return nil
	}
	rawConn, err := sc.SyscallConn()
	if err != nil {
		return err
	}

	value := 0
	if noDelay {
		value = 1
	}
	var sockErr error
	if err = rawConn.Control(func(fd uintptr) {
		sockErr = unix.SetsockoptInt(int(fd), unix.IPPROTO_TCP, unix.TCP_NODELAY, value)
	}); err != nil {
		return err
	}
	if sockErr != nil {
		return fmt.Errorf("failed to set socket option TCP_NODELAY: %w", sockErr)
	}
	return nil
}
