package socks5

import (
	"encoding/binary"
	"io"

	"github.com/subnet-socks/subnet-socks/conn"
)

// clientNegotiateAuthMethod offers method to the server and checks its selection.
func clientNegotiateAuthMethod(rw io.ReadWriter, method byte) error {
	if err := writeFull(rw, []byte{Version, 1, method}); err != nil {
		return err
	}

	// Read VER, METHOD.
	var b [2]byte
	if _, err := io.ReadFull(rw, b[:]); err != nil {
		return err
	}

	if b[0] != Version {
		return UnsupportedVersionError(b[0])
	}
	if b[1] != method {
		return UnsupportedAuthMethodError(b[1])
	}
	return nil
}

// ClientRequest completes the handshake and writes a request with the given command
// and target address to rw. It returns the bound address in the reply.
//
// A non-success reply is returned as a [ReplyError] after the whole reply is read.
func ClientRequest(rw io.ReadWriter, command byte, targetAddr conn.Addr) (conn.Addr, error) {
	if err := clientNegotiateAuthMethod(rw, MethodNoAuthenticationRequired); err != nil {
		return conn.Addr{}, err
	}

	b := AppendRequest(make([]byte, 0, 3+MaxAddrLen), command, targetAddr)
	if err := writeFull(rw, b); err != nil {
		return conn.Addr{}, err
	}

	// Read VER, REP, RSV, ATYP, and the first address byte.
	b = b[:5]
	if _, err := io.ReadFull(rw, b); err != nil {
		return conn.Addr{}, err
	}
	if b[0] != Version {
		return conn.Addr{}, UnsupportedVersionError(b[0])
	}
	rep := b[1]

	addr, err := ReadAddr(rw, b[3], b[4])
	if err != nil {
		return conn.Addr{}, err
	}
	if rep != ReplySucceeded {
		return conn.Addr{}, ReplyError(rep)
	}
	return addr, nil
}

// ClientConnect sends a CONNECT request to targetAddr and returns the bound address.
func ClientConnect(rw io.ReadWriter, targetAddr conn.Addr) (conn.Addr, error) {
	return ClientRequest(rw, CmdConnect, targetAddr)
}

// AppendRequest appends a raw request for command and addr to b.
func AppendRequest(b []byte, command byte, addr conn.Addr) []byte {
	b = append(b, Version, command, 0)
	return AppendAddr(b, addr)
}

// ReplyPort returns BND.PORT from a reply written by [WriteReply].
func ReplyPort(reply []byte) uint16 {
	return binary.BigEndian.Uint16(reply[ReplyLen-2:])
}
