package recon

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/miekg/dns"
)

const resolvConfPath = "/etc/resolv.conf"

var fallbackServers = []string{"1.1.1.1:53", "8.8.8.8:53"}

// errNoAnswer collapses NXDOMAIN, SERVFAIL, empty answers and timeouts.
// Callers treat every lookup failure the same way.
var errNoAnswer = errors.New("no A records")

// DNSClient sends A and NS queries to a fixed set of recursive servers.
type DNSClient struct {
	servers []string
	udp     *dns.Client
	tcp     *dns.Client
}

// NewDNSClient returns a client for the given servers ("host" or
// "host:port"). With no servers it reads the system resolver configuration
// and falls back to public resolvers.
func NewDNSClient(servers []string) *DNSClient {
	if len(servers) == 0 {
		servers = systemServers()
	}
	normalized := make([]string, 0, len(servers))
	for _, s := range servers {
		if _, _, err := net.SplitHostPort(s); err != nil {
			s = net.JoinHostPort(s, "53")
		}
		normalized = append(normalized, s)
	}
	return &DNSClient{
		servers: normalized,
		udp:     &dns.Client{Net: "udp"},
		tcp:     &dns.Client{Net: "tcp"},
	}
}

// Servers returns the resolver addresses in query order.
func (c *DNSClient) Servers() []string {
	return append([]string(nil), c.servers...)
}

func systemServers() []string {
	conf, err := dns.ClientConfigFromFile(resolvConfPath)
	if err != nil || len(conf.Servers) == 0 {
		return fallbackServers
	}
	out := make([]string, 0, len(conf.Servers))
	for _, s := range conf.Servers {
		out = append(out, net.JoinHostPort(s, conf.Port))
	}
	return out
}

// LookupA returns the IPv4 addresses of host, deduplicated in answer order.
// The deadline comes from ctx.
func (c *DNSClient) LookupA(ctx context.Context, host string) ([]string, error) {
	resp, err := c.query(ctx, host, dns.TypeA)
	if err != nil {
		return nil, err
	}
	var ips []string
	for _, rr := range resp.Answer {
		if a, ok := rr.(*dns.A); ok {
			ips = append(ips, a.A.String())
		}
	}
	ips = deduplicateStrings(ips)
	if len(ips) == 0 {
		return nil, errNoAnswer
	}
	return ips, nil
}

// LookupNS returns the authoritative nameserver hostnames for domain.
func (c *DNSClient) LookupNS(ctx context.Context, domain string) ([]string, error) {
	resp, err := c.query(ctx, domain, dns.TypeNS)
	if err != nil {
		return nil, err
	}
	var hosts []string
	for _, rr := range resp.Answer {
		if ns, ok := rr.(*dns.NS); ok {
			hosts = append(hosts, strings.ToLower(strings.TrimSuffix(ns.Ns, ".")))
		}
	}
	if len(hosts) == 0 {
		return nil, fmt.Errorf("no NS records for %s", domain)
	}
	return hosts, nil
}

func (c *DNSClient) query(ctx context.Context, name string, qtype uint16) (*dns.Msg, error) {
	msg := new(dns.Msg)
	msg.SetQuestion(dns.Fqdn(name), qtype)
	msg.RecursionDesired = true

	lastErr := errNoAnswer
	for _, server := range c.servers {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		resp, _, err := c.udp.ExchangeContext(ctx, msg, server)
		if err == nil && resp.Truncated {
			resp, _, err = c.tcp.ExchangeContext(ctx, msg, server)
		}
		if err != nil {
			lastErr = err
			continue
		}
		if resp.Rcode != dns.RcodeSuccess {
			return nil, fmt.Errorf("%s %s: %s", name, dns.TypeToString[qtype], dns.RcodeToString[resp.Rcode])
		}
		return resp, nil
	}
	return nil, lastErr
}

// withTimeout bounds a single lookup.
func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}

func deduplicateStrings(ss []string) []string {
	seen := make(map[string]bool, len(ss))
	var out []string
	for _, s := range ss {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}
