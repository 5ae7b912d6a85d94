// Package subnet implements the IPv4 subnet containment check used by the
// same-subnet restriction policy.
package subnet

import (
	"encoding/binary"
	"errors"
	"fmt"
	"net/netip"

	"go4.org/netipx"
)

var (
	// ErrInvalidNetworkSpec is returned when a prefix length is out of range
	// or the base address has host bits set.
	ErrInvalidNetworkSpec = errors.New("invalid network specification")

	// ErrUnsupportedAddressFamily is returned when an IPv6 address is used
	// to build or query a prefix.
	ErrUnsupportedAddressFamily = errors.New("unsupported address family: only IPv4 is supported")
)

// Prefix is an IPv4 CIDR block.
//
// The zero value is 0.0.0.0/0, which contains every IPv4 address.
// A Prefix is immutable once built.
type Prefix struct {
	base uint32
	bits uint8
}

// mask returns the network mask for the given prefix length.
func mask(bits uint8) uint32 {
	if bits == 0 {
		return 0
	}
	return ^uint32(0) << (32 - bits)
}

// addrUint32 returns the IPv4 address as a big-endian integer.
// IPv4-mapped IPv6 addresses are unmapped.
func addrUint32(addr netip.Addr) (uint32, error) {
	addr = addr.Unmap()
	if !addr.Is4() {
		return 0, fmt.Errorf("%w: %s", ErrUnsupportedAddressFamily, addr)
	}
	b := addr.As4()
	return binary.BigEndian.Uint32(b[:]), nil
}

// NewPrefix returns the prefix base/bits.
//
// It fails with [ErrUnsupportedAddressFamily] if base is not an IPv4 address,
// and with [ErrInvalidNetworkSpec] if bits is outside [0, 32] or base has
// non-zero bits past the prefix.
func NewPrefix(base netip.Addr, bits int) (Prefix, error) {
	if bits < 0 || bits > 32 {
		return Prefix{}, fmt.Errorf("%w: prefix length %d out of range [0, 32]", ErrInvalidNetworkSpec, bits)
	}
	b, err := addrUint32(base)
	if err != nil {
		return Prefix{}, err
	}
	if b&mask(uint8(bits)) != b {
		return Prefix{}, fmt.Errorf("%w: %s has host bits set for /%d", ErrInvalidNetworkSpec, base, bits)
	}
	return Prefix{base: b, bits: uint8(bits)}, nil
}

// MustPrefix calls [NewPrefix] and panics on error.
func MustPrefix(base netip.Addr, bits int) Prefix {
	p, err := NewPrefix(base, bits)
	if err != nil {
		panic(err)
	}
	return p
}

// PrefixFromNetip converts a [netip.Prefix] into a Prefix.
// Unlike [NewPrefix], host bits are masked off instead of rejected.
func PrefixFromNetip(p netip.Prefix) (Prefix, error) {
	if !p.IsValid() {
		return Prefix{}, fmt.Errorf("%w: %s", ErrInvalidNetworkSpec, p)
	}
	return NewPrefix(p.Masked().Addr(), p.Bits())
}

// ParsePrefix parses a CIDR string such as "192.168.1.0/24".
// Host bits must be zero.
func ParsePrefix(s string) (Prefix, error) {
	p, err := netip.ParsePrefix(s)
	if err != nil {
		return Prefix{}, fmt.Errorf("%w: %w", ErrInvalidNetworkSpec, err)
	}
	return NewPrefix(p.Addr(), p.Bits())
}

// Addr returns the base address of the prefix.
func (p Prefix) Addr() netip.Addr {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], p.base)
	return netip.AddrFrom4(b)
}

// Bits returns the prefix length.
func (p Prefix) Bits() int {
	return int(p.bits)
}

// Mask returns the network mask as an IPv4 address.
func (p Prefix) Mask() netip.Addr {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], mask(p.bits))
	return netip.AddrFrom4(b)
}

// Netip returns the prefix as a [netip.Prefix].
func (p Prefix) Netip() netip.Prefix {
	return netip.PrefixFrom(p.Addr(), int(p.bits))
}

// LastAddr returns the last address in the prefix.
func (p Prefix) LastAddr() netip.Addr {
	return netipx.PrefixLastIP(p.Netip())
}

// Contains returns whether addr is inside the prefix.
// It returns false for any address that is not IPv4.
func (p Prefix) Contains(addr netip.Addr) bool {
	ok, _ := p.ContainsChecked(addr)
	return ok
}

// ContainsChecked is like [Prefix.Contains], but returns
// [ErrUnsupportedAddressFamily] for addresses that are not IPv4,
// so that callers can tell "outside" apart from "cannot evaluate".
func (p Prefix) ContainsChecked(addr netip.Addr) (bool, error) {
	a, err := addrUint32(addr)
	if err != nil {
		return false, err
	}
	return a&mask(p.bits) == p.base, nil
}

// String returns the CIDR notation of the prefix.
func (p Prefix) String() string {
	return p.Netip().String()
}

// MarshalText implements [encoding.TextMarshaler].
func (p Prefix) MarshalText() ([]byte, error) {
	return p.Netip().AppendTo(nil), nil
}

// UnmarshalText implements [encoding.TextUnmarshaler].
func (p *Prefix) UnmarshalText(text []byte) error {
	prefix, err := ParsePrefix(string(text))
	if err != nil {
		return err
	}
	*p = prefix
	return nil
}
