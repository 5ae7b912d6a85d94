package conn

import (
	"context"
	"errors"
	"net"
	"net/netip"
	"testing"
	"time"

	"github.com/miekg/dns"
	"golang.org/x/net/nettest"
)

var testZone = map[string][]dns.RR{
	"a.example.": {
		&dns.CNAME{Hdr: dns.RR_Header{Name: "a.example.", Rrtype: dns.TypeCNAME, Class: dns.ClassINET, Ttl: 60}, Target: "b.example."},
		&dns.A{Hdr: dns.RR_Header{Name: "b.example.", Rrtype: dns.TypeA, Class: dns.ClassINET, Ttl: 60}, A: net.IPv4(192, 0, 2, 10)},
		&dns.A{Hdr: dns.RR_Header{Name: "b.example.", Rrtype: dns.TypeA, Class: dns.ClassINET, Ttl: 60}, A: net.IPv4(192, 0, 2, 11)},
	},
	"empty.example.": {},
}

var testRcodes = map[string]int{
	"servfail.example.": dns.RcodeServerFailure,
	"refused.example.":  dns.RcodeRefused,
}

func startTestDNSServer(t *testing.T) string {
	t.Helper()

	pc, err := nettest.NewLocalPacketListener("udp4")
	if err != nil {
		t.Fatalf("Failed to listen: %v", err)
	}

	started := make(chan struct{})
	server := &dns.Server{
		PacketConn: pc,
		Handler: dns.HandlerFunc(func(w dns.ResponseWriter, r *dns.Msg) {
			m := new(dns.Msg)
			m.SetReply(r)
			if rcode, ok := testRcodes[r.Question[0].Name]; ok {
				m.Rcode = rcode
				_ = w.WriteMsg(m)
				return
			}
			rrs, ok := testZone[r.Question[0].Name]
			if !ok {
				m.Rcode = dns.RcodeNameError
			}
			if r.Question[0].Qtype == dns.TypeA {
				m.Answer = rrs
			}
			_ = w.WriteMsg(m)
		}),
		NotifyStartedFunc: func() { close(started) },
	}

	go func() { _ = server.ActivateAndServe() }()
	t.Cleanup(func() { _ = server.Shutdown() })
	<-started

	return pc.LocalAddr().String()
}

func TestDNSResolverLookupA(t *testing.T) {
	r := NewDNSResolver(startTestDNSServer(t), time.Second)
	ctx := context.Background()

	addr, err := r.LookupA(ctx, "a.example")
	if err != nil {
		t.Fatalf("LookupA failed: %v", err)
	}
	if want := netip.MustParseAddr("192.0.2.10"); addr != want {
		t.Errorf("LookupA = %s, want %s", addr, want)
	}

	for _, host := range []string{"empty.example", "missing.example"} {
		if _, err = r.LookupA(ctx, host); !errors.Is(err, ErrNoARecord) {
			t.Errorf("LookupA(%q) error = %v, want %v", host, err, ErrNoARecord)
		}
	}
}

func TestDNSResolverServerErrors(t *testing.T) {
	r := NewDNSResolver(startTestDNSServer(t), time.Second)

	for _, host := range []string{"servfail.example", "refused.example"} {
		_, err := r.LookupA(context.Background(), host)
		if !errors.Is(err, ErrLookupFailed) {
			t.Fatalf("LookupA(%q) error = %v, want %v", host, err, ErrLookupFailed)
		}
		if code := DialResultCodeFromError(err); code != DialResultCodeErrDomainNameLookup {
			t.Errorf("DialResultCodeFromError(%v) = %s, want %s", err, code, DialResultCodeErrDomainNameLookup)
		}
	}
}

func TestDNSResolverUnreachableServer(t *testing.T) {
	pc, err := nettest.NewLocalPacketListener("udp4")
	if err != nil {
		t.Fatalf("Failed to listen: %v", err)
	}
	server := pc.LocalAddr().String()
	pc.Close()

	r := NewDNSResolver(server, 200*time.Millisecond)
	_, err = r.LookupA(context.Background(), "a.example")
	if !errors.Is(err, ErrLookupFailed) {
		t.Fatalf("LookupA error = %v, want %v", err, ErrLookupFailed)
	}
	if !DialResultCodeFromError(err).Unreachable() {
		t.Errorf("DialResultCodeFromError(%v) is not unreachable", err)
	}
}

func TestFirstASkipsOtherRecords(t *testing.T) {
	rrs := []dns.RR{
		&dns.AAAA{Hdr: dns.RR_Header{Name: "x.", Rrtype: dns.TypeAAAA, Class: dns.ClassINET}, AAAA: net.ParseIP("2001:db8::1")},
		&dns.A{Hdr: dns.RR_Header{Name: "x.", Rrtype: dns.TypeA, Class: dns.ClassINET}, A: net.IPv4(203, 0, 113, 5)},
	}
	addr, err := firstA("x", rrs)
	if err != nil {
		t.Fatalf("firstA failed: %v", err)
	}
	if want := netip.MustParseAddr("203.0.113.5"); addr != want {
		t.Errorf("firstA = %s, want %s", addr, want)
	}
	if _, err = firstA("x", rrs[:1]); !errors.Is(err, ErrNoARecord) {
		t.Errorf("firstA without A records error = %v, want %v", err, ErrNoARecord)
	}
}

func TestSystemResolverLocalhost(t *testing.T) {
	addr, err := SystemResolver{}.LookupA(context.Background(), "localhost")
	if err != nil {
		t.Skipf("cannot resolve localhost: %v", err)
	}
	if !addr.Is4() {
		t.Errorf("LookupA(localhost) = %s, want an IPv4 address", addr)
	}
}
