// Package engine orchestrates a subdomain enumeration job: candidate
// generation, the DNS phase, the HTTP validation phase and the event stream
// that reports on all of them.
package engine

import (
	"context"
	"encoding/json"
	"time"
)

// Result is the top-level output of a completed enumeration job.
type Result struct {
	Domain          string             `json:"domain"`
	Total           int                `json:"total"`
	Count           int                `json:"count"`
	Subdomains      []ResolvedHost     `json:"subdomains"`
	LiveWebServices []ValidationResult `json:"live_web_services"`
	DNSOnly         []DNSOnlyResult    `json:"dns_only"`
	ElapsedTime     float64            `json:"elapsed_time"`
}

// ResolvedHost is a candidate that returned at least one A record.
type ResolvedHost struct {
	Host string   `json:"host"`
	IPs  []string `json:"ips"`
}

// ValidationResult is the HTTP classification of a resolved host.
// URL and Status are empty when neither scheme answered.
type ValidationResult struct {
	Subdomain string   `json:"subdomain"`
	URL       string   `json:"url"`
	Status    int      `json:"status"`
	IPs       []string `json:"ips"`
}

// Live reports whether the host answered on either scheme.
func (v ValidationResult) Live() bool {
	return v.Status != 0
}

// MarshalJSON writes url and status as null when the host is not live.
func (v ValidationResult) MarshalJSON() ([]byte, error) {
	out := struct {
		Subdomain string   `json:"subdomain"`
		URL       *string  `json:"url"`
		Status    *int     `json:"status"`
		IPs       []string `json:"ips"`
	}{Subdomain: v.Subdomain, IPs: v.IPs}
	if v.Live() {
		out.URL = &v.URL
		out.Status = &v.Status
	}
	return json.Marshal(out)
}

// DNSOnlyResult is a resolved host that served no HTTP response.
type DNSOnlyResult struct {
	Subdomain string   `json:"subdomain"`
	IPs       []string `json:"ips"`
}

// Classification partitions resolved hosts by HTTP liveness.
type Classification struct {
	LiveWebServices []ValidationResult
	DNSOnly         []DNSOnlyResult
}

// Add files v into the matching partition.
func (c *Classification) Add(v ValidationResult) {
	if v.Live() {
		c.LiveWebServices = append(c.LiveWebServices, v)
		return
	}
	c.DNSOnly = append(c.DNSOnly, DNSOnlyResult{Subdomain: v.Subdomain, IPs: v.IPs})
}

// Hooks receive engine callbacks. Engines serialize calls, so a hook never
// runs concurrently with another hook of the same job. Nil hooks are skipped.
type Hooks struct {
	Progress   func(Progress)
	Discovered func(ResolvedHost)
	Classified func(ValidationResult)
}

// EmitProgress calls the Progress hook if set.
func (h Hooks) EmitProgress(p Progress) {
	if h.Progress != nil {
		h.Progress(p)
	}
}

// EmitDiscovered calls the Discovered hook if set.
func (h Hooks) EmitDiscovered(r ResolvedHost) {
	if h.Discovered != nil {
		h.Discovered(r)
	}
}

// EmitClassified calls the Classified hook if set.
func (h Hooks) EmitClassified(v ValidationResult) {
	if h.Classified != nil {
		h.Classified(v)
	}
}

// ResolveOptions configure one DNS phase.
type ResolveOptions struct {
	Timeout     time.Duration
	Concurrency int
	Scale       Scale
}

// ValidateOptions configure one HTTP validation phase.
type ValidateOptions struct {
	Concurrency int
	Scale       Scale
}

// CandidateSource produces the ordered prefix list for a job.
type CandidateSource interface {
	Candidates(ctx context.Context, domain string, req Request) ([]string, error)
}

// Resolver runs the DNS phase over fully qualified candidate hosts.
type Resolver interface {
	Resolve(ctx context.Context, hosts []string, opts ResolveOptions, hooks Hooks) ([]ResolvedHost, error)
}

// Validator runs the HTTP validation phase over resolved hosts.
type Validator interface {
	Validate(ctx context.Context, hosts []ResolvedHost, opts ValidateOptions, hooks Hooks) (Classification, error)
}

// PassiveSource returns hostnames observed for a domain by a passive
// source. It never fails; an unavailable source yields nothing.
type PassiveSource interface {
	Subdomains(ctx context.Context, domain string) []string
}
