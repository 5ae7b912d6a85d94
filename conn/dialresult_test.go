//go:build unix

package conn

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"testing"

	"golang.org/x/sys/unix"
)

func dialOpError(errno unix.Errno) error {
	return &net.OpError{Op: "dial", Net: "tcp", Err: os.NewSyscallError("connect", errno)}
}

func TestDialResultFromError(t *testing.T) {
	for _, c := range []struct {
		name            string
		err             error
		wantCode        DialResultCode
		wantUnreachable bool
	}{
		{"Success", nil, DialResultCodeSuccess, false},
		{"EACCES", dialOpError(unix.EACCES), DialResultCodeEACCES, false},
		{"EINVAL", dialOpError(unix.EINVAL), DialResultCodeErrOther, false},
		{"ENETDOWN", dialOpError(unix.ENETDOWN), DialResultCodeENETDOWN, true},
		{"ENETUNREACH", dialOpError(unix.ENETUNREACH), DialResultCodeENETUNREACH, true},
		{"ECONNRESET", dialOpError(unix.ECONNRESET), DialResultCodeECONNRESET, false},
		{"ETIMEDOUT", dialOpError(unix.ETIMEDOUT), DialResultCodeETIMEDOUT, false},
		{"ECONNREFUSED", dialOpError(unix.ECONNREFUSED), DialResultCodeECONNREFUSED, true},
		{"EHOSTDOWN", dialOpError(unix.EHOSTDOWN), DialResultCodeEHOSTDOWN, true},
		{"EHOSTUNREACH", dialOpError(unix.EHOSTUNREACH), DialResultCodeEHOSTUNREACH, true},
		{"DNSError", &net.OpError{Op: "dial", Net: "tcp", Err: &net.DNSError{Err: "no such host", Name: "example.invalid", IsNotFound: true}}, DialResultCodeErrDomainNameLookup, true},
		{"NoARecord", fmt.Errorf("lookup: %w", ErrNoARecord), DialResultCodeErrDomainNameLookup, true},
		{"LookupFailed", fmt.Errorf("%w: server returned SERVFAIL", ErrLookupFailed), DialResultCodeErrDomainNameLookup, true},
		{"LookupCanceled", fmt.Errorf("%w: %w", ErrLookupFailed, context.Canceled), DialResultCodeCanceled, false},
		{"Canceled", &net.OpError{Op: "dial", Net: "tcp", Err: context.Canceled}, DialResultCodeCanceled, false},
		{"Other", errors.New("something went wrong"), DialResultCodeErrOther, false},
	} {
		t.Run(c.name, func(t *testing.T) {
			r := DialResultFromError(c.err)
			if r.Code != c.wantCode {
				t.Errorf("r.Code = %d (%s), want %d (%s)", r.Code, r.Code, c.wantCode, c.wantCode)
			}
			if r.Err != c.err {
				t.Errorf("r.Err = %v, want %v", r.Err, c.err)
			}
			if got := r.Code.Unreachable(); got != c.wantUnreachable {
				t.Errorf("r.Code.Unreachable() = %v, want %v", got, c.wantUnreachable)
			}
		})
	}
}

func TestDialResultRefusedLoopback(t *testing.T) {
	ln, err := net.Listen("tcp4", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Failed to listen: %v", err)
	}
	addr := ln.Addr().(*net.TCPAddr).AddrPort()
	ln.Close()

	d := NewDialer(false, 0)
	c, err := d.DialContext(context.Background(), addr)
	if err == nil {
		c.Close()
		t.Skip("port was reused before the dial")
	}
	if code := DialResultCodeFromError(err); code != DialResultCodeECONNREFUSED {
		t.Errorf("DialResultCodeFromError(%v) = %s, want %s", err, code, DialResultCodeECONNREFUSED)
	}
}
