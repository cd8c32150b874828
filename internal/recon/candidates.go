package recon

import (
	"context"
	"io/fs"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/vulnverified/subsweep/internal/engine"
	"github.com/vulnverified/subsweep/internal/errs"
	"github.com/vulnverified/subsweep/internal/wordlist"
)

// HostnameSource returns hostnames related to a domain. It never fails.
type HostnameSource interface {
	Hostnames(ctx context.Context, domain string) []string
}

// CandidateBuilder produces the prefix list for a job from a wordlist plus
// the optional passive and zone-transfer sources.
type CandidateBuilder struct {
	// Wordlists holds the preset files.
	Wordlists fs.FS
	Passive   engine.PassiveSource
	Zone      HostnameSource
	Log       logrus.FieldLogger
}

// Candidates implements engine.CandidateSource. Without augmentation the
// wordlist is returned as is, duplicates included. With augmentation the
// result is the ordered union: wordlist entries first, then new prefixes in
// the order each source reported them.
func (b *CandidateBuilder) Candidates(ctx context.Context, domain string, req engine.Request) ([]string, error) {
	words, err := b.wordlist(req)
	if err != nil {
		return nil, err
	}

	augment := (req.Passive && b.Passive != nil) || (req.AXFR && b.Zone != nil)
	if !augment {
		return words, nil
	}

	set := newOrderedSet(len(words))
	for _, w := range words {
		set.add(strings.ToLower(w))
	}

	if req.Passive && b.Passive != nil {
		before := set.len()
		for _, p := range extractPrefixes(b.Passive.Subdomains(ctx, domain), domain) {
			set.add(p)
		}
		b.logMerge("crt.sh", domain, set.len()-before)
	}
	if req.AXFR && b.Zone != nil {
		before := set.len()
		for _, p := range extractPrefixes(b.Zone.Hostnames(ctx, domain), domain) {
			set.add(p)
		}
		b.logMerge("axfr", domain, set.len()-before)
	}

	return set.items(), nil
}

func (b *CandidateBuilder) logMerge(source, domain string, added int) {
	if b.Log == nil {
		return
	}
	b.Log.WithFields(logrus.Fields{"source": source, "domain": domain, "added": added}).Info("merged candidates")
}

// wordlist picks the custom file when it exists, otherwise the preset.
func (b *CandidateBuilder) wordlist(req engine.Request) ([]string, error) {
	if req.CustomWordlist != "" {
		if info, err := os.Stat(req.CustomWordlist); err == nil && !info.IsDir() {
			return wordlist.LoadFile(req.CustomWordlist)
		}
	}

	preset := wordlist.Lookup(req.Preset)
	if preset.File == "" {
		if req.CustomWordlist != "" {
			return nil, errs.NotFound("custom wordlist %s", req.CustomWordlist)
		}
		return nil, errs.InvalidConfig("preset %q requires a custom wordlist path", preset.Name)
	}

	fsys := b.Wordlists
	if fsys == nil {
		fsys = wordlist.Builtin()
	}
	return wordlist.Load(fsys, preset.File)
}

// extractPrefixes turns hostnames into prefixes relative to domain. Names
// that are the domain itself or do not sit under it are dropped.
func extractPrefixes(hosts []string, domain string) []string {
	suffix := "." + domain
	var out []string
	for _, h := range hosts {
		h = strings.ToLower(strings.TrimSpace(h))
		if !strings.HasSuffix(h, suffix) {
			continue
		}
		prefix := strings.TrimSuffix(h, suffix)
		if prefix == "" || prefix == domain {
			continue
		}
		out = append(out, prefix)
	}
	return out
}

// orderedSet keeps the first occurrence of each string in insertion order.
type orderedSet struct {
	seen  map[string]struct{}
	order []string
}

func newOrderedSet(capacity int) *orderedSet {
	return &orderedSet{seen: make(map[string]struct{}, capacity), order: make([]string, 0, capacity)}
}

func (s *orderedSet) add(v string) {
	if _, ok := s.seen[v]; ok {
		return
	}
	s.seen[v] = struct{}{}
	s.order = append(s.order, v)
}

func (s *orderedSet) len() int { return len(s.order) }

func (s *orderedSet) items() []string { return s.order }
