package subnet

import (
	"fmt"
	"net"
	"net/netip"

	"go4.org/netipx"
)

// Interface is a network interface and its unicast addresses.
type Interface struct {
	Name  string
	Up    bool
	Addrs []netip.Prefix
}

// InterfaceSource lists the local network interfaces.
type InterfaceSource interface {
	Interfaces() ([]Interface, error)
}

// SystemInterfaces lists the interfaces of the host.
//
// SystemInterfaces implements [InterfaceSource].
type SystemInterfaces struct{}

// Interfaces implements [InterfaceSource.Interfaces].
func (SystemInterfaces) Interfaces() ([]Interface, error) {
	ifaces, err := net.Interfaces()
	if err != nil {
		return nil, fmt.Errorf("failed to list network interfaces: %w", err)
	}

	out := make([]Interface, 0, len(ifaces))
	for _, iface := range ifaces {
		addrs, err := iface.Addrs()
		if err != nil {
			return nil, fmt.Errorf("failed to get addresses of interface %s: %w", iface.Name, err)
		}

		prefixes := make([]netip.Prefix, 0, len(addrs))
		for _, addr := range addrs {
			ipNet, ok := addr.(*net.IPNet)
			if !ok {
				continue
			}
			prefix, ok := netipx.FromStdIPNet(ipNet)
			if !ok {
				continue
			}
			prefixes = append(prefixes, prefix)
		}

		out = append(out, Interface{
			Name:  iface.Name,
			Up:    iface.Flags&net.FlagUp != 0,
			Addrs: prefixes,
		})
	}
	return out, nil
}

// Lookup finds the subnet of the operational interface that owns the
// listen address.
//
// ok is false when no interface has the address, for example when
// listening on the unspecified address. IPv6 listen addresses never match.
func Lookup(src InterfaceSource, listen netip.Addr) (prefix Prefix, ifaceName string, ok bool, err error) {
	listen = listen.Unmap()
	if !listen.Is4() {
		return Prefix{}, "", false, nil
	}

	ifaces, err := src.Interfaces()
	if err != nil {
		return Prefix{}, "", false, err
	}

	for _, iface := range ifaces {
		if !iface.Up {
			continue
		}
		for _, addr := range iface.Addrs {
			if addr.Addr().Unmap() != listen {
				continue
			}
			prefix, err = PrefixFromNetip(netip.PrefixFrom(listen, addr.Bits()))
			if err != nil {
				return Prefix{}, "", false, err
			}
			return prefix, iface.Name, true, nil
		}
	}
	return Prefix{}, "", false, nil
}
