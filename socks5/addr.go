package socks5

import (
	"encoding/binary"
	"io"
	"net/netip"

	"github.com/subnet-socks/subnet-socks/conn"
)

// ReadAddr reads a SOCKS address whose ATYP byte has already been consumed.
//
// For [AtypDomainName], first is the domain length byte that the caller
// read along with ATYP. For the other address types, first is the first
// byte of the address.
func ReadAddr(r io.Reader, atyp, first byte) (conn.Addr, error) {
	switch atyp {
	case AtypIPv4:
		var b [4 - 1 + 2]byte
		if _, err := io.ReadFull(r, b[:]); err != nil {
			return conn.Addr{}, err
		}
		ip := netip.AddrFrom4([4]byte{first, b[0], b[1], b[2]})
		port := binary.BigEndian.Uint16(b[3:])
		return conn.AddrFromIPPort(netip.AddrPortFrom(ip, port)), nil

	case AtypIPv6:
		var b [16 - 1 + 2]byte
		if _, err := io.ReadFull(r, b[:]); err != nil {
			return conn.Addr{}, err
		}
		var ip16 [16]byte
		ip16[0] = first
		copy(ip16[1:], b[:15])
		port := binary.BigEndian.Uint16(b[15:])
		return conn.AddrFromIPPort(netip.AddrPortFrom(netip.AddrFrom16(ip16), port)), nil

	case AtypDomainName:
		domainLen := int(first)
		if domainLen == 0 {
			return conn.Addr{}, ErrEmptyDomainName
		}
		b := make([]byte, domainLen+2)
		if _, err := io.ReadFull(r, b); err != nil {
			return conn.Addr{}, err
		}
		port := binary.BigEndian.Uint16(b[domainLen:])
		return conn.AddrFromDomainPort(string(b[:domainLen]), port)

	default:
		return conn.Addr{}, UnsupportedAddressTypeError(atyp)
	}
}

// AppendAddr appends addr as a SOCKS address to b.
//
// IPv4-mapped IPv6 addresses are written as IPv4 addresses.
// Domain names longer than 255 bytes are rejected by [conn.AddrFromDomainPort],
// so every valid [conn.Addr] can be encoded.
func AppendAddr(b []byte, addr conn.Addr) []byte {
	switch {
	case addr.IsIP():
		ip := addr.IP()
		if ip.Is4() || ip.Is4In6() {
			ip4 := ip.As4()
			b = append(b, AtypIPv4)
			b = append(b, ip4[:]...)
		} else {
			ip16 := ip.As16()
			b = append(b, AtypIPv6)
			b = append(b, ip16[:]...)
		}
	default:
		domain := addr.Domain()
		b = append(b, AtypDomainName, byte(len(domain)))
		b = append(b, domain...)
	}
	return binary.BigEndian.AppendUint16(b, addr.Port())
}
