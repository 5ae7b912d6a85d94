package socks5

import (
	"bytes"
	"encoding/binary"
	"io"

	"github.com/subnet-socks/subnet-socks/conn"
)

// Request is a decoded client request.
type Request struct {
	// Command is the CMD field.
	Command byte

	// Addr is the destination address and port.
	Addr conn.Addr
}

// ServerNegotiate processes the version identifier and method selection message from rw
// and selects "no authentication required".
//
//	+----+----------+----------+
//	|VER | NMETHODS | METHODS  |
//	+----+----------+----------+
//	| 1  |    1     | 1 to 255 |
//	+----+----------+----------+
//
// No reply is written when the message is rejected.
// A short write of the method selection reply is reported as [io.ErrShortWrite].
func ServerNegotiate(rw io.ReadWriter) error {
	var b [1 + 1 + 255]byte

	// Read VER and NMETHODS.
	if _, err := io.ReadFull(rw, b[:2]); err != nil {
		return err
	}

	// Check VER.
	if b[0] != Version {
		return UnsupportedVersionError(b[0])
	}

	// Check NMETHODS and read METHODS.
	nmethods := int(b[1])
	if nmethods == 0 {
		return errZeroNMETHODS
	}
	if _, err := io.ReadFull(rw, b[2:2+nmethods]); err != nil {
		return err
	}
	if bytes.IndexByte(b[2:2+nmethods], MethodNoAuthenticationRequired) == -1 {
		return ErrNoAcceptableAuthMethod
	}

	// Write method selection message.
	//
	// 	+-----+--------+
	// 	| VER | METHOD |
	// 	+-----+--------+
	// 	|  1  |   1    |
	// 	+-----+--------+
	return writeFull(rw, []byte{Version, MethodNoAuthenticationRequired})
}

// ReadRequest reads a request from r.
//
//	+----+-----+-------+------+----------+----------+
//	|VER | CMD |  RSV  | ATYP | DST.ADDR | DST.PORT |
//	+----+-----+-------+------+----------+----------+
//	| 1  |  1  | X'00' |  1   | Variable |    2     |
//	+----+-----+-------+------+----------+----------+
//
// The returned error is an [UnsupportedCommandError] for any command other
// than CONNECT, and an [UnsupportedAddressTypeError] for an unknown ATYP.
// When the command is rejected, the address is still read if its type is
// known, and req.Addr is valid if it could be decoded. The rest of a
// request with an unknown ATYP is left unread.
// Use [ReplyFromRequestError] to pick the reply for a failed request.
func ReadRequest(r io.Reader) (req Request, err error) {
	var b [5]byte

	// Read VER, CMD, RSV, ATYP, and the first address byte.
	if _, err = io.ReadFull(r, b[:]); err != nil {
		return req, err
	}

	// Check VER.
	if b[0] != Version {
		return req, UnsupportedVersionError(b[0])
	}

	req.Command = b[1]
	if req.Command != CmdConnect {
		// Consume the address so the connection can be closed cleanly after the reply.
		req.Addr, _ = ReadAddr(r, b[3], b[4])
		return req, UnsupportedCommandError(req.Command)
	}

	req.Addr, err = ReadAddr(r, b[3], b[4])
	return req, err
}

// AppendReply appends a reply with the REP field set to rep and the bound port to b.
//
//	+----+-----+-------+------+----------+----------+
//	|VER | REP |  RSV  | ATYP | BND.ADDR | BND.PORT |
//	+----+-----+-------+------+----------+----------+
//	| 1  |  1  | X'00' |  1   | Variable |    2     |
//	+----+-----+-------+------+----------+----------+
//
// BND.ADDR is always the IPv4 unspecified address.
func AppendReply(b []byte, rep byte, port uint16) []byte {
	b = append(b, Version, rep, 0, AtypIPv4, 0, 0, 0, 0)
	return binary.BigEndian.AppendUint16(b, port)
}

// WriteReply writes a reply to w. See [AppendReply].
func WriteReply(w io.Writer, rep byte, port uint16) error {
	var b [ReplyLen]byte
	return writeFull(w, AppendReply(b[:0], rep, port))
}

func writeFull(w io.Writer, b []byte) error {
	n, err := w.Write(b)
	if err != nil {
		return err
	}
	if n != len(b) {
		return io.ErrShortWrite
	}
	return nil
}
