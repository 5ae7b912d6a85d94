package socks5

import (
	"errors"
	"fmt"

	"github.com/subnet-socks/subnet-socks/conn"
)

// SOCKS version 5.
const Version = 5

// SOCKS5 authentication methods as defined in RFC 1928 section 3.
const (
	MethodNoAuthenticationRequired = 0
	MethodGSSAPI                   = 1
	MethodUsernamePassword         = 2
	MethodNoAcceptable             = 0xFF
)

// SOCKS5 request commands as defined in RFC 1928 section 4.
const (
	CmdConnect      = 1
	CmdBind         = 2
	CmdUDPAssociate = 3
)

// SOCKS5 address types as defined in RFC 1928 section 5.
const (
	AtypIPv4       = 1
	AtypDomainName = 3
	AtypIPv6       = 4
)

// SOCKS5 reply field values as defined in RFC 1928 section 6.
const (
	ReplySucceeded                     = 0
	ReplyGeneralSocksServerFailure     = 1
	ReplyConnectionNotAllowedByRuleset = 2
	ReplyNetworkUnreachable            = 3
	ReplyHostUnreachable               = 4
	ReplyConnectionRefused             = 5
	ReplyTTLExpired                    = 6
	ReplyCommandNotSupported           = 7
	ReplyAddressTypeNotSupported       = 8
)

const (
	// IPv4AddrLen is the length of an IPv4 SOCKS address, including ATYP and port.
	IPv4AddrLen = 1 + 4 + 2

	// IPv6AddrLen is the length of an IPv6 SOCKS address, including ATYP and port.
	IPv6AddrLen = 1 + 16 + 2

	// MaxAddrLen is the maximum length of a SOCKS address.
	MaxAddrLen = 1 + 1 + 255 + 2

	// ReplyLen is the length of every reply sent by the server.
	ReplyLen = 3 + IPv4AddrLen
)

// UnsupportedVersionError is an error type for unsupported SOCKS versions.
type UnsupportedVersionError byte

func (v UnsupportedVersionError) Error() string {
	return fmt.Sprintf("unsupported SOCKS version: %#X", byte(v))
}

func (UnsupportedVersionError) Is(target error) bool {
	return target == errors.ErrUnsupported
}

// UnsupportedAuthMethodError is an error type for unsupported SOCKS5 authentication methods.
type UnsupportedAuthMethodError byte

func (m UnsupportedAuthMethodError) Error() string {
	return fmt.Sprintf("unsupported authentication method: %#X", byte(m))
}

func (UnsupportedAuthMethodError) Is(target error) bool {
	return target == errors.ErrUnsupported
}

// UnsupportedCommandError is an error type for unsupported SOCKS5 request commands.
type UnsupportedCommandError byte

func (c UnsupportedCommandError) Error() string {
	return fmt.Sprintf("unsupported command: %#X", byte(c))
}

func (UnsupportedCommandError) Is(target error) bool {
	return target == errors.ErrUnsupported
}

// UnsupportedAddressTypeError is an error type for unknown SOCKS5 address types.
type UnsupportedAddressTypeError byte

func (a UnsupportedAddressTypeError) Error() string {
	return fmt.Sprintf("unsupported address type: %#X", byte(a))
}

func (UnsupportedAddressTypeError) Is(target error) bool {
	return target == errors.ErrUnsupported
}

// ReplyError is an error type for SOCKS5 reply errors.
type ReplyError byte

func (r ReplyError) Error() string {
	switch r {
	case ReplySucceeded:
		return "succeeded"
	case ReplyGeneralSocksServerFailure:
		return "general SOCKS server failure"
	case ReplyConnectionNotAllowedByRuleset:
		return "connection not allowed by ruleset"
	case ReplyNetworkUnreachable:
		return "network unreachable"
	case ReplyHostUnreachable:
		return "host unreachable"
	case ReplyConnectionRefused:
		return "connection refused"
	case ReplyTTLExpired:
		return "TTL expired"
	case ReplyCommandNotSupported:
		return "command not supported"
	case ReplyAddressTypeNotSupported:
		return "address type not supported"
	default:
		return fmt.Sprintf("unknown SOCKS5 reply error: %#X", byte(r))
	}
}

var (
	ErrNoAcceptableAuthMethod = errors.New("no acceptable authentication method")
	ErrEmptyDomainName        = errors.New("domain name is empty")
	errZeroNMETHODS           = errors.New("NMETHODS is 0")
)

// ReplyFromDialResult returns the reply field value for a failed or successful dial.
//
// Refused, unreachable, and down targets, as well as names without an
// IPv4 address, are reported as host unreachable. Every other failure is
// a general server failure.
func ReplyFromDialResult(r conn.DialResult) byte {
	switch {
	case r.Code == conn.DialResultCodeSuccess:
		return ReplySucceeded
	case r.Code.Unreachable():
		return ReplyHostUnreachable
	default:
		return ReplyGeneralSocksServerFailure
	}
}

// ReplyFromRequestError returns the reply to send for an error returned by [ReadRequest].
// ok is false when the connection must be dropped without a reply.
func ReplyFromRequestError(err error) (rep byte, ok bool) {
	var (
		cmdErr  UnsupportedCommandError
		atypErr UnsupportedAddressTypeError
	)
	switch {
	case errors.As(err, &cmdErr):
		return ReplyCommandNotSupported, true
	case errors.As(err, &atypErr):
		return ReplyAddressTypeNotSupported, true
	default:
		return 0, false
	}
}
