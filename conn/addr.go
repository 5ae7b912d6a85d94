package conn

import (
	"errors"
	"fmt"
	"net"
	"net/netip"
	"strconv"
)

// ErrDomainTooLong is returned when a domain name does not fit in a single length byte.
var ErrDomainTooLong = errors.New("domain name exceeds 255 bytes")

// Addr is a connection target requested by a client.
//
// An Addr is a port number combined with either an IP address or a domain name.
type Addr struct {
	ip     netip.Addr
	port   uint16
	domain string
}

// AddrFromIPPort returns an Addr from the provided netip.AddrPort.
func AddrFromIPPort(addrPort netip.AddrPort) Addr {
	return Addr{ip: addrPort.Addr(), port: addrPort.Port()}
}

// AddrFromDomainPort returns an Addr from the provided domain name and port number.
func AddrFromDomainPort(domain string, port uint16) (Addr, error) {
	if len(domain) > 255 {
		return Addr{}, fmt.Errorf("%w: %q", ErrDomainTooLong, domain)
	}
	return Addr{domain: domain, port: port}, nil
}

// MustAddrFromDomainPort calls [AddrFromDomainPort] and panics on error.
func MustAddrFromDomainPort(domain string, port uint16) Addr {
	addr, err := AddrFromDomainPort(domain, port)
	if err != nil {
		panic(err)
	}
	return addr
}

// AddrFromHostPort returns an Addr from the provided host string and port number.
// The host string may be an IP address literal or a domain name.
func AddrFromHostPort(host string, port uint16) (Addr, error) {
	if ip, err := netip.ParseAddr(host); err == nil {
		return Addr{ip: ip, port: port}, nil
	}
	return AddrFromDomainPort(host, port)
}

// ParseAddr parses s in host:port form.
func ParseAddr(s string) (Addr, error) {
	host, portString, err := net.SplitHostPort(s)
	if err != nil {
		return Addr{}, err
	}

	port, err := strconv.ParseUint(portString, 10, 16)
	if err != nil {
		return Addr{}, fmt.Errorf("failed to parse port string: %w", err)
	}
	return AddrFromHostPort(host, uint16(port))
}

// IsValid returns whether the address carries an IP address or a non-empty domain name.
func (a Addr) IsValid() bool {
	return a.ip.IsValid() || a.domain != ""
}

// IsIP returns whether the address is an IP address.
// If false, the address is a domain name.
func (a Addr) IsIP() bool {
	return a.ip.IsValid()
}

// IP returns the IP address, or the zero value for a domain name.
func (a Addr) IP() netip.Addr {
	return a.ip
}

// Domain returns the domain name, or an empty string for an IP address.
func (a Addr) Domain() string {
	return a.domain
}

// Port returns the port number.
func (a Addr) Port() uint16 {
	return a.port
}

// IPPort returns the address as a netip.AddrPort.
// For a domain name the returned value has a zero netip.Addr.
func (a Addr) IPPort() netip.AddrPort {
	return netip.AddrPortFrom(a.ip, a.port)
}

// WithIP returns a copy of a that targets ip instead of the domain name.
func (a Addr) WithIP(ip netip.Addr) Addr {
	return Addr{ip: ip, port: a.port}
}

// Host returns the IP address or the domain name as a string.
func (a Addr) Host() string {
	if a.ip.IsValid() {
		return a.ip.String()
	}
	return a.domain
}

// String returns the address in host:port form.
func (a Addr) String() string {
	if a.ip.IsValid() {
		return a.IPPort().String()
	}
	return net.JoinHostPort(a.domain, strconv.FormatUint(uint64(a.port), 10))
}

// MarshalText implements [encoding.TextMarshaler].
func (a Addr) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

// UnmarshalText implements [encoding.TextUnmarshaler].
func (a *Addr) UnmarshalText(text []byte) error {
	addr, err := ParseAddr(string(text))
	if err != nil {
		return err
	}
	*a = addr
	return nil
}
