package conn

import (
	"context"
	"errors"
	"net"
	"os"
	"syscall"
	"time"
)

// ALongTimeAgo is a non-zero time, far in the past, used for immediate deadlines.
var ALongTimeAgo = time.Unix(0, 0)

// IsTimeout returns whether err is a deadline expiry.
func IsTimeout(err error) bool {
	return errors.Is(err, os.ErrDeadlineExceeded)
}

// IsReset returns whether err reports that the connection was reset or aborted.
func IsReset(err error) bool {
	return errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ECONNABORTED) ||
		errors.Is(err, syscall.ENETRESET) ||
		errors.Is(err, syscall.EPIPE)
}

// IsClosed returns whether err reports an operation on a locally closed socket.
func IsClosed(err error) bool {
	return errors.Is(err, net.ErrClosed)
}

// InterruptOnDone arranges for all pending and future I/O on c to fail once ctx is done,
// by moving both deadlines into the past.
// The returned stop function releases the arrangement and reports whether it had not yet fired.
func InterruptOnDone(ctx context.Context, c net.Conn) (stop func() bool) {
	return context.AfterFunc(ctx, func() {
		_ = c.SetDeadline(ALongTimeAgo)
	})
}
