package api

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/vulnverified/subsweep/internal/engine"
	"github.com/vulnverified/subsweep/internal/errs"
	"github.com/vulnverified/subsweep/internal/logx"
)

type fakeCandidates struct {
	prefixes []string
	err      error
}

func (f fakeCandidates) Candidates(ctx context.Context, domain string, req engine.Request) ([]string, error) {
	return f.prefixes, f.err
}

type fakeResolver struct {
	ips     map[string][]string
	err     error
	blocked chan struct{}
}

func (f *fakeResolver) Resolve(ctx context.Context, hosts []string, opts engine.ResolveOptions, hooks engine.Hooks) ([]engine.ResolvedHost, error) {
	if f.blocked != nil {
		<-ctx.Done()
		close(f.blocked)
		return nil, ctx.Err()
	}
	if f.err != nil {
		return nil, f.err
	}
	tracker := engine.NewProgressTracker(engine.PhaseDNS, len(hosts), opts.Scale)
	var out []engine.ResolvedHost
	for _, h := range hosts {
		if ips, ok := f.ips[h]; ok {
			r := engine.ResolvedHost{Host: h, IPs: ips}
			out = append(out, r)
			hooks.EmitDiscovered(r)
		}
		if p, ok := tracker.Advance(); ok {
			hooks.EmitProgress(p)
		}
	}
	return out, nil
}

type fakeValidator struct {
	live map[string]int
}

func (f fakeValidator) Validate(ctx context.Context, hosts []engine.ResolvedHost, opts engine.ValidateOptions, hooks engine.Hooks) (engine.Classification, error) {
	tracker := engine.NewProgressTracker(engine.PhaseHTTP, len(hosts), opts.Scale)
	var cls engine.Classification
	for _, h := range hosts {
		v := engine.ValidationResult{Subdomain: h.Host, IPs: h.IPs}
		if status, ok := f.live[h.Host]; ok {
			v.URL = "http://" + h.Host
			v.Status = status
		}
		cls.Add(v)
		hooks.EmitClassified(v)
		if p, ok := tracker.Advance(); ok {
			hooks.EmitProgress(p)
		}
	}
	return cls, nil
}

type staticPassive []string

func (s staticPassive) Subdomains(ctx context.Context, domain string) []string { return s }

func newTestServer(stages engine.Stages, passive engine.PassiveSource, opts Options) *Server {
	coord := engine.NewCoordinator(stages, engine.Options{}, logx.Discard())
	return New(coord, passive, opts, logx.Discard())
}

func defaultStages() engine.Stages {
	return engine.Stages{
		Candidates: fakeCandidates{prefixes: []string{"www", "mail", "nonexistent"}},
		Resolver: &fakeResolver{ips: map[string][]string{
			"www.example.com":  {"93.184.216.34"},
			"mail.example.com": {"93.184.216.35"},
		}},
		Validator: fakeValidator{live: map[string]int{"www.example.com": 200}},
	}
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHealthAndRoot(t *testing.T) {
	h := newTestServer(defaultStages(), staticPassive(nil), Options{}).Handler()

	rec := do(t, h, http.MethodGet, "/health", "")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"healthy"`) {
		t.Errorf("health: %d %s", rec.Code, rec.Body.String())
	}

	rec = do(t, h, http.MethodGet, "/", "")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "/api/enumerate") {
		t.Errorf("root: %d %s", rec.Code, rec.Body.String())
	}
}

func TestPresets(t *testing.T) {
	h := newTestServer(defaultStages(), staticPassive(nil), Options{}).Handler()

	rec := do(t, h, http.MethodGet, "/api/presets", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var body struct {
		Presets []map[string]any `json:"presets"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(body.Presets) != 6 {
		t.Fatalf("got %d presets, want 6", len(body.Presets))
	}
	if body.Presets[0]["filename"] != "top1k.txt" {
		t.Errorf("preset 1 filename = %v", body.Presets[0]["filename"])
	}
	custom := body.Presets[5]
	if v, ok := custom["filename"]; !ok || v != nil {
		t.Errorf("custom preset filename = %v (present %v), want null", v, ok)
	}
}

func TestPassive(t *testing.T) {
	tests := []struct {
		name      string
		passive   staticPassive
		body      string
		wantCode  int
		wantCount int
	}{
		{"results", staticPassive{"api.example.com", "www.example.com"}, `{"domain":"example.com"}`, http.StatusOK, 2},
		{"source unavailable", nil, `{"domain":"example.com"}`, http.StatusOK, 0},
		{"public suffix", nil, `{"domain":"co.uk"}`, http.StatusBadRequest, 0},
		{"malformed body", nil, `{"domain":`, http.StatusBadRequest, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newTestServer(defaultStages(), tt.passive, Options{}).Handler()
			rec := do(t, h, http.MethodPost, "/api/passive", tt.body)
			if rec.Code != tt.wantCode {
				t.Fatalf("status = %d, want %d (%s)", rec.Code, tt.wantCode, rec.Body.String())
			}
			if tt.wantCode != http.StatusOK {
				return
			}
			var resp passiveResponse
			if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if resp.Count != tt.wantCount || len(resp.Subdomains) != tt.wantCount {
				t.Errorf("got %+v, want count %d", resp, tt.wantCount)
			}
			if resp.Subdomains == nil {
				t.Error("subdomains decoded as null")
			}
		})
	}
}

func TestEnumerate(t *testing.T) {
	h := newTestServer(defaultStages(), staticPassive(nil), Options{}).Handler()

	rec := do(t, h, http.MethodPost, "/api/enumerate", `{"domain":"Example.COM"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	var result engine.Result
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if result.Domain != "example.com" || result.Total != 3 || result.Count != 2 {
		t.Errorf("unexpected result: %+v", result)
	}
	if len(result.LiveWebServices) != 1 || result.LiveWebServices[0].Subdomain != "www.example.com" {
		t.Errorf("live = %+v", result.LiveWebServices)
	}
	if len(result.DNSOnly) != 1 || result.DNSOnly[0].Subdomain != "mail.example.com" {
		t.Errorf("dns only = %+v", result.DNSOnly)
	}
}

func TestEnumerate_Errors(t *testing.T) {
	tests := []struct {
		name     string
		stages   engine.Stages
		body     string
		wantCode int
	}{
		{"missing domain", defaultStages(), `{"domain":""}`, http.StatusBadRequest},
		{"threads out of range", defaultStages(), `{"domain":"example.com","threads":500}`, http.StatusBadRequest},
		{"malformed body", defaultStages(), `not json`, http.StatusBadRequest},
		{
			"wordlist missing",
			engine.Stages{Candidates: fakeCandidates{err: errs.NotFound("wordlist top100k.txt")}, Resolver: &fakeResolver{}, Validator: fakeValidator{}},
			`{"domain":"example.com","wordlist_preset":"5"}`,
			http.StatusNotFound,
		},
		{
			"resolver failure",
			engine.Stages{Candidates: fakeCandidates{prefixes: []string{"www"}}, Resolver: &fakeResolver{err: errors.New("pool closed")}, Validator: fakeValidator{}},
			`{"domain":"example.com"}`,
			http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newTestServer(tt.stages, staticPassive(nil), Options{}).Handler()
			rec := do(t, h, http.MethodPost, "/api/enumerate", tt.body)
			if rec.Code != tt.wantCode {
				t.Fatalf("status = %d, want %d (%s)", rec.Code, tt.wantCode, rec.Body.String())
			}
			var body map[string]string
			if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if body["detail"] == "" {
				t.Error("missing detail")
			}
		})
	}
}

func readEvents(t *testing.T, body string) []map[string]any {
	t.Helper()
	var out []map[string]any
	sc := bufio.NewScanner(strings.NewReader(body))
	for sc.Scan() {
		var e map[string]any
		if err := json.Unmarshal(sc.Bytes(), &e); err != nil {
			t.Fatalf("bad line %q: %v", sc.Text(), err)
		}
		out = append(out, e)
	}
	return out
}

func TestStream(t *testing.T) {
	h := newTestServer(defaultStages(), staticPassive(nil), Options{}).Handler()

	rec := do(t, h, http.MethodPost, "/api/enumerate/stream", `{"domain":"example.com"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if rec.Header().Get("X-Job-ID") == "" {
		t.Error("missing X-Job-ID header")
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/x-ndjson" {
		t.Errorf("content type = %q", ct)
	}

	events := readEvents(t, rec.Body.String())
	if len(events) == 0 {
		t.Fatal("no events")
	}
	last := events[len(events)-1]
	if last["type"] != "complete" || last["count"] != float64(2) {
		t.Errorf("last event = %v", last)
	}

	counts := map[string]int{}
	prev := -1.0
	for _, e := range events {
		typ := e["type"].(string)
		counts[typ]++
		if typ == "progress" {
			pct := e["percentage"].(float64)
			if pct < prev {
				t.Errorf("progress went backwards: %v after %v", pct, prev)
			}
			prev = pct
		}
	}
	if counts["subdomain"] != 2 || counts["http_validated"] != 1 || counts["dns_only"] != 1 || counts["complete"] != 1 {
		t.Errorf("event counts = %v", counts)
	}
	if prev != 100 {
		t.Errorf("final progress = %v, want 100", prev)
	}
}

func TestStream_MalformedBody(t *testing.T) {
	h := newTestServer(defaultStages(), staticPassive(nil), Options{}).Handler()

	rec := do(t, h, http.MethodPost, "/api/enumerate/stream", `{"domain":`)
	events := readEvents(t, rec.Body.String())
	if len(events) != 1 {
		t.Fatalf("got %d events, want 1", len(events))
	}
	if events[0]["type"] != "error" {
		t.Errorf("event = %v", events[0])
	}
	if msg, _ := events[0]["message"].(string); !strings.Contains(msg, errs.ErrTransport.Error()) {
		t.Errorf("message = %q", msg)
	}
}

func TestStream_InvalidRequest(t *testing.T) {
	h := newTestServer(defaultStages(), staticPassive(nil), Options{}).Handler()

	rec := do(t, h, http.MethodPost, "/api/enumerate/stream", `{"domain":"example.com","timeout":99}`)
	events := readEvents(t, rec.Body.String())
	if len(events) != 1 || events[0]["type"] != "error" {
		t.Fatalf("events = %v", events)
	}
}

func TestStream_ClientDisconnectCancelsJob(t *testing.T) {
	blocked := make(chan struct{})
	stages := engine.Stages{
		Candidates: fakeCandidates{prefixes: []string{"www"}},
		Resolver:   &fakeResolver{blocked: blocked},
		Validator:  fakeValidator{},
	}
	srv := httptest.NewServer(newTestServer(stages, staticPassive(nil), Options{}).Handler())
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, srv.URL+"/api/enumerate/stream", strings.NewReader(`{"domain":"example.com"}`))
	if err != nil {
		t.Fatal(err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if resp.Header.Get("X-Job-ID") == "" {
		t.Error("missing X-Job-ID header")
	}
	cancel()
	resp.Body.Close()

	select {
	case <-blocked:
	case <-time.After(5 * time.Second):
		t.Fatal("job was not cancelled after client disconnect")
	}
}

func TestAdmissionLimit(t *testing.T) {
	h := newTestServer(defaultStages(), staticPassive(nil), Options{JobsPerMinute: 1, JobBurst: 1}).Handler()

	if rec := do(t, h, http.MethodPost, "/api/enumerate", `{"domain":"example.com"}`); rec.Code != http.StatusOK {
		t.Fatalf("first job status = %d", rec.Code)
	}
	rec := do(t, h, http.MethodPost, "/api/enumerate/stream", `{"domain":"example.com"}`)
	if rec.Code != http.StatusTooManyRequests {
		t.Errorf("second job status = %d, want 429", rec.Code)
	}

	// Non-job endpoints are not limited.
	if rec := do(t, h, http.MethodGet, "/api/presets", ""); rec.Code != http.StatusOK {
		t.Errorf("presets status = %d", rec.Code)
	}
}

func TestMethodNotAllowed(t *testing.T) {
	h := newTestServer(defaultStages(), staticPassive(nil), Options{}).Handler()
	rec := do(t, h, http.MethodGet, "/api/enumerate", "")
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("status = %d, want 405", rec.Code)
	}
}
