package recon

import (
	"context"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"testing/fstest"

	"github.com/vulnverified/subsweep/internal/engine"
	"github.com/vulnverified/subsweep/internal/errs"
)

type staticPassive []string

func (s staticPassive) Subdomains(ctx context.Context, domain string) []string { return s }

type staticZone []string

func (s staticZone) Hostnames(ctx context.Context, domain string) []string { return s }

var testWordlists = fstest.MapFS{
	"top1k.txt":  {Data: []byte("# test list\nwww\nmail\nwww\nnonexistent\n")},
	"top10k.txt": {Data: []byte("www\napi\n")},
}

func TestCandidates_WordlistOnly(t *testing.T) {
	b := &CandidateBuilder{Wordlists: testWordlists, Passive: staticPassive{"api.example.com"}}

	got, err := b.Candidates(context.Background(), "example.com", engine.Request{Preset: "1"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// No augmentation: the list is used verbatim, duplicates included.
	want := []string{"www", "mail", "www", "nonexistent"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestCandidates_PassiveMerge(t *testing.T) {
	b := &CandidateBuilder{
		Wordlists: testWordlists,
		Passive: staticPassive{
			"api.example.com",
			"dev.example.com",
			"www.example.com",
			"example.com",
			"notexample.com",
			"deep.api.example.com",
		},
	}

	got, err := b.Candidates(context.Background(), "example.com", engine.Request{Preset: "2", Passive: true})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []string{"www", "api", "dev", "deep.api"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestCandidates_PassiveUnavailable(t *testing.T) {
	b := &CandidateBuilder{Wordlists: testWordlists, Passive: staticPassive(nil)}

	got, err := b.Candidates(context.Background(), "example.com", engine.Request{Preset: "2", Passive: true})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !reflect.DeepEqual(got, []string{"www", "api"}) {
		t.Errorf("got %v, want the wordlist unchanged", got)
	}
}

func TestCandidates_ZoneTransferMerge(t *testing.T) {
	b := &CandidateBuilder{
		Wordlists: testWordlists,
		Passive:   staticPassive{"dev.example.com"},
		Zone:      staticZone{"example.com", "vpn.example.com", "dev.example.com"},
	}

	got, err := b.Candidates(context.Background(), "example.com", engine.Request{Preset: "2", Passive: true, AXFR: true})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []string{"www", "api", "dev", "vpn"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestCandidates_CustomWordlist(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "mine.txt")
	if err := os.WriteFile(path, []byte("alpha\nbeta\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	b := &CandidateBuilder{Wordlists: testWordlists}

	tests := []struct {
		name    string
		req     engine.Request
		want    []string
		errKind func(error) bool
	}{
		{"custom wins over preset", engine.Request{Preset: "1", CustomWordlist: path}, []string{"alpha", "beta"}, nil},
		{"custom preset with file", engine.Request{Preset: "6", CustomWordlist: path}, []string{"alpha", "beta"}, nil},
		{"missing custom falls back to preset", engine.Request{Preset: "2", CustomWordlist: filepath.Join(dir, "gone.txt")}, []string{"www", "api"}, nil},
		{"custom preset without path", engine.Request{Preset: "6"}, nil, errs.IsInvalidConfig},
		{"custom preset with missing path", engine.Request{Preset: "6", CustomWordlist: filepath.Join(dir, "gone.txt")}, nil, errs.IsNotFound},
		{"preset file absent", engine.Request{Preset: "5"}, nil, errs.IsNotFound},
		{"unknown preset falls back", engine.Request{Preset: "99"}, []string{"www", "mail", "www", "nonexistent"}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := b.Candidates(context.Background(), "example.com", tt.req)
			if tt.errKind != nil {
				if err == nil || !tt.errKind(err) {
					t.Fatalf("err = %v, want matching kind", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCandidates_BuiltinDefault(t *testing.T) {
	b := &CandidateBuilder{}
	got, err := b.Candidates(context.Background(), "example.com", engine.Request{Preset: "1"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) < 500 {
		t.Errorf("builtin top1k has %d entries", len(got))
	}
}

func TestExtractPrefixes(t *testing.T) {
	got := extractPrefixes([]string{"A.example.com", "example.com", "b.c.example.com", "x.example.org", " d.example.com "}, "example.com")
	want := []string{"a", "b.c", "d"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
}
