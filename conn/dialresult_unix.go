//go:build unix

package conn

import (
	"errors"

	"golang.org/x/sys/unix"
)

func dialResultCodeFromErrno(err error) (DialResultCode, bool) {
	var errno unix.Errno
	if !errors.As(err, &errno) {
		return 0, false
	}

	switch errno {
	case 0:
		return DialResultCodeSuccess, true
	case unix.EACCES:
		return DialResultCodeEACCES, true
	case unix.ENETDOWN:
		return DialResultCodeENETDOWN, true
	case unix.ENETUNREACH:
		return DialResultCodeENETUNREACH, true
	case unix.ECONNRESET:
		return DialResultCodeECONNRESET, true
	case unix.ETIMEDOUT:
		return DialResultCodeETIMEDOUT, true
	case unix.ECONNREFUSED:
		return DialResultCodeECONNREFUSED, true
	case unix.EHOSTDOWN:
		return DialResultCodeEHOSTDOWN, true
	case unix.EHOSTUNREACH:
		return DialResultCodeEHOSTUNREACH, true
	default:
		return DialResultCodeErrOther, true
	}
}
