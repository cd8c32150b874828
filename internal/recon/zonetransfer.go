package recon

import (
	"context"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/miekg/dns"
	"github.com/sirupsen/logrus"
)

const (
	axfrDialTimeout = 10 * time.Second
	axfrReadTimeout = 30 * time.Second
	nsLookupTimeout = 5 * time.Second
)

// NSLookup finds the authoritative nameservers of a domain.
type NSLookup interface {
	LookupNS(ctx context.Context, domain string) ([]string, error)
}

// ZoneTransfer asks each authoritative nameserver for a full zone copy and
// reports the hostnames it gets back. Refusals are the norm and are not
// errors.
type ZoneTransfer struct {
	NS   NSLookup
	Port string
	Log  logrus.FieldLogger
}

// Hostnames returns every name at or under domain found by a successful
// transfer, deduplicated in first-seen order.
func (z *ZoneTransfer) Hostnames(ctx context.Context, domain string) []string {
	nsCtx, cancel := context.WithTimeout(ctx, nsLookupTimeout)
	nameservers, err := z.NS.LookupNS(nsCtx, domain)
	cancel()
	if err != nil {
		z.debug(domain, "", err)
		return nil
	}

	seen := make(map[string]bool)
	var hostnames []string

	for _, ns := range nameservers {
		if ctx.Err() != nil {
			break
		}

		names, err := z.attempt(ctx, domain, ns)
		if err != nil {
			z.debug(domain, ns, err)
			continue
		}
		if z.Log != nil {
			z.Log.WithFields(logrus.Fields{"domain": domain, "nameserver": ns, "records": len(names)}).Warn("zone transfer allowed")
		}
		for _, h := range names {
			if !seen[h] {
				seen[h] = true
				hostnames = append(hostnames, h)
			}
		}
	}

	return hostnames
}

func (z *ZoneTransfer) debug(domain, ns string, err error) {
	if z.Log == nil {
		return
	}
	z.Log.WithFields(logrus.Fields{"domain": domain, "nameserver": ns}).WithError(err).Debug("zone transfer failed")
}

// attempt performs a zone transfer against a single nameserver.
func (z *ZoneTransfer) attempt(ctx context.Context, domain, nameserver string) ([]string, error) {
	transfer := &dns.Transfer{
		DialTimeout: axfrDialTimeout,
		ReadTimeout: axfrReadTimeout,
	}

	msg := new(dns.Msg)
	msg.SetAxfr(dns.Fqdn(domain))

	port := z.Port
	if port == "" {
		port = "53"
	}
	channel, err := transfer.In(msg, net.JoinHostPort(nameserver, port))
	if err != nil {
		return nil, fmt.Errorf("AXFR to %s: %w", nameserver, err)
	}

	// The channel is drained to the end so the transfer goroutine exits.
	var (
		names    []string
		firstErr error
	)
	for envelope := range channel {
		if firstErr != nil {
			continue
		}
		if envelope.Error != nil {
			firstErr = fmt.Errorf("AXFR envelope from %s: %w", nameserver, envelope.Error)
			continue
		}
		for _, rr := range envelope.RR {
			names = append(names, rr.Header().Name)
		}
	}
	if firstErr != nil {
		return nil, firstErr
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	return zoneHostnames(names, domain), nil
}

// zoneHostnames keeps the record owner names at or under domain.
func zoneHostnames(owners []string, domain string) []string {
	domain = strings.ToLower(domain)
	suffix := "." + domain

	seen := make(map[string]bool)
	var out []string
	for _, owner := range owners {
		name := strings.ToLower(strings.TrimSuffix(owner, "."))
		if name == "" || strings.HasPrefix(name, "*.") {
			continue
		}
		if name != domain && !strings.HasSuffix(name, suffix) {
			continue
		}
		if !seen[name] {
			seen[name] = true
			out = append(out, name)
		}
	}
	return out
}
