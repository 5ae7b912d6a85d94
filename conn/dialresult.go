package conn

import (
	"context"
	"errors"
	"net"
)

// DialResultCode is the result code of a dial operation.
type DialResultCode uint8

const (
	DialResultCodeSuccess DialResultCode = 0 // success

	// Based on Linux errno values.
	DialResultCodeEACCES       DialResultCode = 13  // EACCES       "permission denied" (denied by policy)
	DialResultCodeENETDOWN     DialResultCode = 100 // ENETDOWN     "network is down"
	DialResultCodeENETUNREACH  DialResultCode = 101 // ENETUNREACH  "network is unreachable"
	DialResultCodeECONNRESET   DialResultCode = 104 // ECONNRESET   "connection reset by peer"
	DialResultCodeETIMEDOUT    DialResultCode = 110 // ETIMEDOUT    "connection timed out"
	DialResultCodeECONNREFUSED DialResultCode = 111 // ECONNREFUSED "connection refused"
	DialResultCodeEHOSTDOWN    DialResultCode = 112 // EHOSTDOWN    "host is down"
	DialResultCodeEHOSTUNREACH DialResultCode = 113 // EHOSTUNREACH "no route to host"

	DialResultCodeCanceled            DialResultCode = 253 // dial aborted by cancellation
	DialResultCodeErrDomainNameLookup DialResultCode = 254 // domain name lookup error
	DialResultCodeErrOther            DialResultCode = 255 // other error
)

// DialResultCodeFromError parses the error and returns a [DialResultCode].
func DialResultCodeFromError(err error) DialResultCode {
	switch {
	case err == nil:
		return DialResultCodeSuccess
	case errors.Is(err, context.Canceled):
		return DialResultCodeCanceled
	case errors.Is(err, ErrNoARecord), errors.Is(err, ErrLookupFailed):
		return DialResultCodeErrDomainNameLookup
	}

	if code, ok := dialResultCodeFromErrno(err); ok {
		return code
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return DialResultCodeErrDomainNameLookup
	}
	return DialResultCodeErrOther
}

// String returns the string representation of the dial result code.
func (c DialResultCode) String() string {
	switch c {
	case DialResultCodeSuccess:
		return "success"
	case DialResultCodeEACCES:
		return "permission denied"
	case DialResultCodeENETDOWN:
		return "network is down"
	case DialResultCodeENETUNREACH:
		return "network is unreachable"
	case DialResultCodeECONNRESET:
		return "connection reset by peer"
	case DialResultCodeETIMEDOUT:
		return "connection timed out"
	case DialResultCodeECONNREFUSED:
		return "connection refused"
	case DialResultCodeEHOSTDOWN:
		return "host is down"
	case DialResultCodeEHOSTUNREACH:
		return "no route to host"
	case DialResultCodeCanceled:
		return "canceled"
	case DialResultCodeErrDomainNameLookup:
		return "domain name lookup error"
	case DialResultCodeErrOther:
		return "other error"
	default:
		return "unknown error"
	}
}

// Unreachable returns whether the code means the target could not be
// reached: refused, no route, host or network down, or name resolution failed.
func (c DialResultCode) Unreachable() bool {
	switch c {
	case DialResultCodeENETDOWN, DialResultCodeENETUNREACH,
		DialResultCodeECONNREFUSED,
		DialResultCodeEHOSTDOWN, DialResultCodeEHOSTUNREACH,
		DialResultCodeErrDomainNameLookup:
		return true
	default:
		return false
	}
}

// DialResult contains the result of a dial operation.
type DialResult struct {
	// Code is the result code of the dial operation.
	Code DialResultCode

	// Err is the error returned by the dial operation.
	Err error
}

// DialResultFromError parses the error and returns a [DialResult].
func DialResultFromError(err error) DialResult {
	return DialResult{
		Code: DialResultCodeFromError(err),
		Err:  err,
	}
}

// String returns the string representation of the dial result.
func (r DialResult) String() string {
	s := r.Code.String()
	if r.Err != nil {
		s += ": " + r.Err.Error()
	}
	return s
}
