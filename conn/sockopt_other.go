//go:build !unix

package conn

import "net"

// ReceiveBufferSize returns DefaultBufferSize on platforms without SO_RCVBUF access.
func ReceiveBufferSize(c net.Conn) int {
	return DefaultBufferSize
}

// SetNoDelay enables or disables Nagle's algorithm on c.
func SetNoDelay(c net.Conn, noDelay bool) error {
	if tc, ok := c.(*net.TCPConn); ok {
		return tc.SetNoDelay(noDelay)
	}
	return nil
}
