package recon

import (
	"time"

	"github.com/sirupsen/logrus"
	"github.com/vulnverified/subsweep/internal/engine"
	"github.com/vulnverified/subsweep/internal/wordlist"
)

// Options configure the production stage implementations.
type Options struct {
	WordlistDir        string
	UserAgent          string
	Resolvers          []string
	CrtshURL           string
	HTTPRequestTimeout time.Duration
	HTTPHostTimeout    time.Duration
}

// Stages bundles the concrete phase implementations so callers can reach
// the passive source directly as well as through the engine.
type Stages struct {
	Candidates *CandidateBuilder
	Crtsh      *CrtshClient
	Resolver   *BruteResolver
	Prober     *Prober
}

// NewStages wires the network-backed implementations of every phase.
func NewStages(opts Options, log logrus.FieldLogger) *Stages {
	dnsClient := NewDNSClient(opts.Resolvers)
	log.WithField("resolvers", dnsClient.Servers()).Debug("dns client ready")

	crtsh := NewCrtshClient(opts.UserAgent, log.WithField("component", "crtsh"))
	if opts.CrtshURL != "" {
		crtsh.URLTemplate = opts.CrtshURL
	}

	prober := NewProber(opts.UserAgent, log.WithField("component", "http"))
	if opts.HTTPRequestTimeout > 0 {
		prober.RequestTimeout = opts.HTTPRequestTimeout
	}
	if opts.HTTPHostTimeout > 0 {
		prober.HostTimeout = opts.HTTPHostTimeout
	}

	return &Stages{
		Candidates: &CandidateBuilder{
			Wordlists: wordlist.Dir(opts.WordlistDir),
			Passive:   crtsh,
			Zone:      &ZoneTransfer{NS: dnsClient, Log: log.WithField("component", "axfr")},
			Log:       log.WithField("component", "candidates"),
		},
		Crtsh:    crtsh,
		Resolver: &BruteResolver{Lookup: dnsClient, Log: log.WithField("component", "dns")},
		Prober:   prober,
	}
}

// Engine returns the stages in the form the coordinator consumes.
func (s *Stages) Engine() engine.Stages {
	return engine.Stages{
		Candidates: s.Candidates,
		Resolver:   s.Resolver,
		Validator:  s.Prober,
	}
}
