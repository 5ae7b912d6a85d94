package conn

import (
	"context"
	"net"
	"net/netip"
	"time"

	"github.com/database64128/tfo-go/v2"
)

// Dialer opens outbound TCP connections to IPv4 or IPv6 targets.
type Dialer struct {
	dialer tfo.Dialer
}

// NewDialer returns a dialer with the specified options applied.
// A zero timeout leaves the dial bounded only by the context.
func NewDialer(dialerTFO bool, timeout time.Duration) *Dialer {
	d := &Dialer{}
	d.dialer.DisableTFO = !dialerTFO
	d.dialer.Fallback = true
	d.dialer.Timeout = timeout
	return d
}

// DialContext connects to addrPort. Cancelling ctx aborts a dial in progress.
func (d *Dialer) DialContext(ctx context.Context, addrPort netip.AddrPort) (net.Conn, error) {
	network := "tcp6"
	if addrPort.Addr().Unmap().Is4() {
		network = "tcp4"
		addrPort = netip.AddrPortFrom(addrPort.Addr().Unmap(), addrPort.Port())
	}
	return d.dialer.DialContext(ctx, network, addrPort.String(), nil)
}

// NewListenConfig returns a tfo.ListenConfig with the specified options applied.
func NewListenConfig(listenerTFO bool) (lc tfo.ListenConfig) {
	lc.DisableTFO = !listenerTFO
	lc.Fallback = true
	return
}

// LocalAddrPort returns the local address of c as a netip.AddrPort.
func LocalAddrPort(c net.Conn) netip.AddrPort {
	return AddrPortOf(c.LocalAddr())
}

// RemoteAddrPort returns the remote address of c as a netip.AddrPort.
func RemoteAddrPort(c net.Conn) netip.AddrPort {
	return AddrPortOf(c.RemoteAddr())
}

// AddrPortOf converts a TCP address to a netip.AddrPort.
// It returns the zero value if addr is nil or cannot be parsed.
func AddrPortOf(addr net.Addr) netip.AddrPort {
	switch a := addr.(type) {
	case *net.TCPAddr:
		return a.AddrPort()
	case nil:
		return netip.AddrPort{}
	default:
		ap, _ := netip.ParseAddrPort(a.String())
		return ap
	}
}
