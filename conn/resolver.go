package conn

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/netip"
	"time"

	"github.com/miekg/dns"
)

var (
	// ErrNoARecord is returned when a domain name has no IPv4 address.
	ErrNoARecord = errors.New("no A record found")

	// ErrLookupFailed is returned when a DNS server cannot be queried
	// or answers with an error other than NXDOMAIN.
	ErrLookupFailed = errors.New("domain name lookup failed")
)

// Resolver resolves domain names to IPv4 addresses.
type Resolver interface {
	// LookupA returns the first IPv4 address of host.
	// It returns an error wrapping [ErrNoARecord] if the name exists
	// but carries no IPv4 address.
	LookupA(ctx context.Context, host string) (netip.Addr, error)
}

// SystemResolver resolves names with the Go runtime resolver.
type SystemResolver struct {
	Resolver *net.Resolver
}

// LookupA implements [Resolver].
func (r SystemResolver) LookupA(ctx context.Context, host string) (netip.Addr, error) {
	resolver := r.Resolver
	if resolver == nil {
		resolver = net.DefaultResolver
	}

	addrs, err := resolver.LookupNetIP(ctx, "ip4", host)
	if err != nil {
		var dnsErr *net.DNSError
		if errors.As(err, &dnsErr) && dnsErr.IsNotFound {
			return netip.Addr{}, fmt.Errorf("%w: %s: %w", ErrNoARecord, host, err)
		}
		return netip.Addr{}, err
	}

	for _, addr := range addrs {
		if addr = addr.Unmap(); addr.Is4() {
			return addr, nil
		}
	}
	return netip.Addr{}, fmt.Errorf("%w: %s", ErrNoARecord, host)
}

// DNSResolver queries a single DNS server directly for A records.
type DNSResolver struct {
	server string
	client *dns.Client
}

// NewDNSResolver returns a resolver that sends queries to server (host:port) over UDP,
// retrying over TCP when the response is truncated.
func NewDNSResolver(server string, timeout time.Duration) *DNSResolver {
	return &DNSResolver{
		server: server,
		client: &dns.Client{Net: "udp", Timeout: timeout},
	}
}

// LookupA implements [Resolver].
func (r *DNSResolver) LookupA(ctx context.Context, host string) (netip.Addr, error) {
	m := new(dns.Msg)
	m.SetQuestion(dns.Fqdn(host), dns.TypeA)
	m.RecursionDesired = true

	in, _, err := r.client.ExchangeContext(ctx, m, r.server)
	if err != nil {
		return netip.Addr{}, fmt.Errorf("%w: failed to query %s for %s: %w", ErrLookupFailed, r.server, host, err)
	}

	if in.Truncated {
		tcpClient := *r.client
		tcpClient.Net = "tcp"
		in, _, err = tcpClient.ExchangeContext(ctx, m, r.server)
		if err != nil {
			return netip.Addr{}, fmt.Errorf("%w: failed to query %s over TCP for %s: %w", ErrLookupFailed, r.server, host, err)
		}
	}

	switch in.Rcode {
	case dns.RcodeSuccess:
	case dns.RcodeNameError:
		return netip.Addr{}, fmt.Errorf("%w: %s: NXDOMAIN", ErrNoARecord, host)
	default:
		return netip.Addr{}, fmt.Errorf("%w: %s: server %s returned %s", ErrLookupFailed, host, r.server, dns.RcodeToString[in.Rcode])
	}

	return firstA(host, in.Answer)
}

// firstA returns the first A record in rrs.
func firstA(host string, rrs []dns.RR) (netip.Addr, error) {
	for _, rr := range rrs {
		a, ok := rr.(*dns.A)
		if !ok {
			continue
		}
		if addr, ok := netip.AddrFromSlice(a.A); ok {
			if addr = addr.Unmap(); addr.Is4() {
				return addr, nil
			}
		}
	}
	return netip.Addr{}, fmt.Errorf("%w: %s", ErrNoARecord, host)
}
