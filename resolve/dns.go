package resolve

import (
	"context"
	"fmt"
	"net"
	"net/netip"
	"time"

	"github.com/miekg/dns"
)

// DNS queries A records from a given nameserver, bypassing the system
// resolver configuration.
type DNS struct {
	server string
	client *dns.Client
}

// NewDNS returns a resolver querying server (host:port) over UDP, falling
// back to TCP for truncated answers.
func NewDNS(server string, timeout time.Duration) *DNS {
	return &DNS{
		server: server,
		client: &dns.Client{Net: "udp", Timeout: timeout},
	}
}

// LookupNetIP resolves host to its IPv4 addresses. IP literals are
// returned as is.
func (r *DNS) LookupNetIP(ctx context.Context, network, host string) ([]netip.Addr, error) {
	if network != "ip4" && network != "ip" {
		return nil, fmt.Errorf("unsupported network %q", network)
	}

	if addr, err := netip.ParseAddr(host); err == nil {
		if !addr.Unmap().Is4() {
			return nil, &net.DNSError{Err: "not an IPv4 address", Name: host}
		}
		return []netip.Addr{addr.Unmap()}, nil
	}

	m := new(dns.Msg)
	m.SetQuestion(dns.Fqdn(host), dns.TypeA)

	in, err := r.exchange(ctx, m)
	if err != nil {
		return nil, &net.DNSError{Err: err.Error(), Name: host, Server: r.server, IsTemporary: true}
	}
	if in.Rcode != dns.RcodeSuccess {
		return nil, &net.DNSError{
			Err:        dns.RcodeToString[in.Rcode],
			Name:       host,
			Server:     r.server,
			IsNotFound: in.Rcode == dns.RcodeNameError,
		}
	}

	var addrs []netip.Addr
	for _, rr := range in.Answer {
		a, ok := rr.(*dns.A)
		if !ok {
			continue
		}
		if addr, ok := netip.AddrFromSlice(a.A); ok {
			addrs = append(addrs, addr.Unmap())
		}
	}
	if len(addrs) == 0 {
		return nil, &net.DNSError{Err: "no such host", Name: host, Server: r.server, IsNotFound: true}
	}
	return addrs, nil
}

func (r *DNS) exchange(ctx context.Context, m *dns.Msg) (*dns.Msg, error) {
	in, _, err := r.client.ExchangeContext(ctx, m, r.server)
	if err != nil {
		return nil, err
	}
	if in.Truncated {
		tcp := *r.client
		tcp.Net = "tcp"
		in, _, err = tcp.ExchangeContext(ctx, m, r.server)
	}
	return in, err
}
