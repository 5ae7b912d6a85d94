package conn

import (
	"errors"
	"io"
	"net"
	"os"
	"syscall"
	"testing"
)

func readOpError(errno syscall.Errno) error {
	return &net.OpError{Op: "read", Net: "tcp", Err: os.NewSyscallError("read", errno)}
}

func TestIsReset(t *testing.T) {
	for _, c := range []struct {
		name string
		err  error
		want bool
	}{
		{"ECONNRESET", readOpError(syscall.ECONNRESET), true},
		{"ECONNABORTED", readOpError(syscall.ECONNABORTED), true},
		{"ENETRESET", readOpError(syscall.ENETRESET), true},
		{"EPIPE", readOpError(syscall.EPIPE), true},
		{"ETIMEDOUT", readOpError(syscall.ETIMEDOUT), false},
		{"EOF", io.EOF, false},
		{"Closed", net.ErrClosed, false},
		{"Other", errors.New("boom"), false},
	} {
		if got := IsReset(c.err); got != c.want {
			t.Errorf("IsReset(%s) = %v, want %v", c.name, got, c.want)
		}
	}
}
