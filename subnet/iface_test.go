package subnet

import (
	"errors"
	"net/netip"
	"testing"
)

type staticInterfaces struct {
	ifaces []Interface
	err    error
}

func (s staticInterfaces) Interfaces() ([]Interface, error) {
	return s.ifaces, s.err
}

var testInterfaces = staticInterfaces{
	ifaces: []Interface{
		{
			Name:  "lo",
			Up:    true,
			Addrs: []netip.Prefix{netip.MustParsePrefix("127.0.0.1/8"), netip.MustParsePrefix("::1/128")},
		},
		{
			Name:  "eth0",
			Up:    true,
			Addrs: []netip.Prefix{netip.MustParsePrefix("192.168.1.23/24"), netip.MustParsePrefix("fe80::1/64")},
		},
		{
			Name:  "eth1",
			Up:    false,
			Addrs: []netip.Prefix{netip.MustParsePrefix("10.20.30.40/16")},
		},
	},
}

func TestLookup(t *testing.T) {
	for _, c := range []struct {
		name      string
		listen    netip.Addr
		wantOK    bool
		wantIface string
		want      string
	}{
		{"Loopback", netip.MustParseAddr("127.0.0.1"), true, "lo", "127.0.0.0/8"},
		{"Ethernet", netip.MustParseAddr("192.168.1.23"), true, "eth0", "192.168.1.0/24"},
		{"MappedEthernet", netip.MustParseAddr("::ffff:192.168.1.23"), true, "eth0", "192.168.1.0/24"},
		{"InterfaceDown", netip.MustParseAddr("10.20.30.40"), false, "", ""},
		{"Unspecified", netip.IPv4Unspecified(), false, "", ""},
		{"IPv6", netip.MustParseAddr("fe80::1"), false, "", ""},
		{"Unknown", netip.MustParseAddr("203.0.113.1"), false, "", ""},
	} {
		t.Run(c.name, func(t *testing.T) {
			prefix, iface, ok, err := Lookup(testInterfaces, c.listen)
			if err != nil {
				t.Fatalf("Lookup failed: %v", err)
			}
			if ok != c.wantOK {
				t.Fatalf("ok = %v, want %v", ok, c.wantOK)
			}
			if !ok {
				return
			}
			if iface != c.wantIface {
				t.Errorf("iface = %q, want %q", iface, c.wantIface)
			}
			if got := prefix.String(); got != c.want {
				t.Errorf("prefix = %s, want %s", got, c.want)
			}
		})
	}
}

func TestLookupError(t *testing.T) {
	errBoom := errors.New("boom")
	if _, _, _, err := Lookup(staticInterfaces{err: errBoom}, netip.MustParseAddr("127.0.0.1")); !errors.Is(err, errBoom) {
		t.Errorf("Lookup error = %v, want %v", err, errBoom)
	}
}

func TestSystemInterfacesLoopback(t *testing.T) {
	ifaces, err := SystemInterfaces{}.Interfaces()
	if err != nil {
		t.Skipf("cannot list interfaces: %v", err)
	}

	loopback := netip.MustParseAddr("127.0.0.1")
	found := false
	for _, iface := range ifaces {
		for _, addr := range iface.Addrs {
			if addr.Addr() == loopback && iface.Up {
				found = true
			}
		}
	}
	if !found {
		t.Skip("no operational interface owns 127.0.0.1")
	}

	prefix, _, ok, err := Lookup(SystemInterfaces{}, loopback)
	if err != nil {
		t.Fatalf("Lookup failed: %v", err)
	}
	if !ok {
		t.Fatal("Lookup(127.0.0.1) found nothing")
	}
	if !prefix.Contains(loopback) {
		t.Errorf("%s does not contain %s", prefix, loopback)
	}
}
