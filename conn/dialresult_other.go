//go:build !unix

package conn

import (
	"errors"
	"syscall"
)

func dialResultCodeFromErrno(err error) (DialResultCode, bool) {
	var errno syscall.Errno
	if !errors.As(err, &errno) {
		return 0, false
	}
	if errno == 0 {
		return DialResultCodeSuccess, true
	}
	return DialResultCodeErrOther, true
}
