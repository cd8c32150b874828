package engine

import (
	"fmt"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/vulnverified/subsweep/internal/errs"
	"golang.org/x/net/idna"
	"golang.org/x/net/publicsuffix"
)

// Request bounds.
const (
	DefaultTimeout = 5.0
	MinTimeout     = 0.1
	MaxTimeout     = 30.0

	DefaultThreads = 30
	MinThreads     = 1
	MaxThreads     = 100

	DefaultPreset = "1"
)

// Request is the configuration of one enumeration job as received from a
// transport. Timeout is in seconds.
type Request struct {
	Domain         string  `json:"domain" yaml:"domain"`
	Preset         string  `json:"wordlist_preset" yaml:"wordlist_preset"`
	CustomWordlist string  `json:"custom_wordlist,omitempty" yaml:"custom_wordlist"`
	Passive        bool    `json:"passive" yaml:"passive"`
	AXFR           bool    `json:"axfr" yaml:"axfr"`
	SkipValidation bool    `json:"skip_validation" yaml:"skip_validation"`
	Timeout        float64 `json:"timeout" yaml:"timeout"`
	Threads        int     `json:"threads" yaml:"threads"`
}

// WithDefaults fills zero-valued fields with their defaults.
func (r Request) WithDefaults() Request {
	if r.Timeout == 0 {
		r.Timeout = DefaultTimeout
	}
	if r.Threads == 0 {
		r.Threads = DefaultThreads
	}
	if r.Preset == "" {
		r.Preset = DefaultPreset
	}
	return r
}

// Validate reports every problem with the request at once.
func (r Request) Validate() error {
	var result *multierror.Error
	if strings.TrimSpace(r.Domain) == "" {
		result = multierror.Append(result, fmt.Errorf("domain is required"))
	}
	if r.Timeout < MinTimeout || r.Timeout > MaxTimeout {
		result = multierror.Append(result, fmt.Errorf("timeout %.2fs outside [%.1f, %.0f]", r.Timeout, MinTimeout, MaxTimeout))
	}
	if r.Threads < MinThreads || r.Threads > MaxThreads {
		result = multierror.Append(result, fmt.Errorf("threads %d outside [%d, %d]", r.Threads, MinThreads, MaxThreads))
	}
	if err := result.ErrorOrNil(); err != nil {
		return fmt.Errorf("%w: %s", errs.ErrInvalidConfig, flatten(err))
	}
	return nil
}

// LookupTimeout is the per-lookup DNS deadline.
func (r Request) LookupTimeout() time.Duration {
	return time.Duration(r.Timeout * float64(time.Second))
}

// NormalizeDomain converts a user-supplied domain to its lower-case ASCII
// form. Public suffixes such as "com" or "co.uk" are rejected.
func NormalizeDomain(raw string) (string, error) {
	d := strings.TrimSuffix(strings.TrimSpace(raw), ".")
	if d == "" {
		return "", errs.InvalidConfig("domain is required")
	}
	ascii, err := idna.Lookup.ToASCII(d)
	if err != nil {
		// Plain ASCII names IDNA refuses, such as underscore labels, are
		// still valid DNS names and are used lower-cased.
		if !isPlainASCII(d) {
			return "", errs.InvalidConfig("domain %q: %v", raw, err)
		}
		ascii = d
	}
	ascii = strings.ToLower(ascii)
	if suffix, _ := publicsuffix.PublicSuffix(ascii); suffix == ascii {
		return "", errs.InvalidConfig("domain %q is a public suffix", raw)
	}
	return ascii, nil
}

func isPlainASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if c := s[i]; c <= ' ' || c >= 0x7f {
			return false
		}
	}
	return true
}

// flatten renders a multierror on one line for event messages.
func flatten(err error) string {
	merr, ok := err.(*multierror.Error)
	if !ok {
		return err.Error()
	}
	msgs := make([]string, 0, len(merr.Errors))
	for _, e := range merr.Errors {
		msgs = append(msgs, e.Error())
	}
	return strings.Join(msgs, "; ")
}
