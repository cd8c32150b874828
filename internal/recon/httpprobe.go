package recon

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/vulnverified/subsweep/internal/engine"
	"golang.org/x/sync/errgroup"
)

const (
	defaultRequestTimeout = 5 * time.Second
	defaultHostTimeout    = 6 * time.Second
	httpProbeMaxBody      = 64 * 1024
)

// schemes are tried in order; the first one that answers wins.
var schemes = []string{"http", "https"}

// Prober runs the HTTP validation phase.
type Prober struct {
	Client    *http.Client
	UserAgent string
	// RequestTimeout bounds each GET; HostTimeout bounds all attempts for
	// one host.
	RequestTimeout time.Duration
	HostTimeout    time.Duration
	Log            logrus.FieldLogger
}

// NewProber returns a prober that skips certificate verification and
// follows up to five redirects.
func NewProber(userAgent string, log logrus.FieldLogger) *Prober {
	client := &http.Client{
		Transport: &http.Transport{
			TLSClientConfig:   &tls.Config{InsecureSkipVerify: true},
			DisableKeepAlives: true,
		},
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= 5 {
				return fmt.Errorf("too many redirects")
			}
			return nil
		},
	}
	return &Prober{
		Client:         client,
		UserAgent:      userAgent,
		RequestTimeout: defaultRequestTimeout,
		HostTimeout:    defaultHostTimeout,
		Log:            log,
	}
}

// Validate probes every host with at most opts.Concurrency requests in
// flight and partitions them into live web services and DNS-only hosts.
func (p *Prober) Validate(ctx context.Context, hosts []engine.ResolvedHost, opts engine.ValidateOptions, hooks engine.Hooks) (engine.Classification, error) {
	var (
		mu       sync.Mutex
		cls      engine.Classification
		panicErr error
		tracker  = engine.NewProgressTracker(engine.PhaseHTTP, len(hosts), opts.Scale)
	)

	limit := opts.Concurrency
	if limit < 1 {
		limit = 1
	}
	var g errgroup.Group
	g.SetLimit(limit)

	for _, h := range hosts {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			defer func() {
				if r := recover(); r != nil {
					mu.Lock()
					if panicErr == nil {
						panicErr = fmt.Errorf("http worker panic: %v", r)
					}
					mu.Unlock()
				}
			}()
			if ctx.Err() != nil {
				return nil
			}

			v := p.check(ctx, h)

			mu.Lock()
			defer mu.Unlock()
			if pr, ok := tracker.Advance(); ok {
				hooks.EmitProgress(pr)
			}
			cls.Add(v)
			hooks.EmitClassified(v)
			return nil
		})
	}
	_ = g.Wait()

	if panicErr != nil {
		return engine.Classification{}, panicErr
	}
	if err := ctx.Err(); err != nil {
		return engine.Classification{}, err
	}
	if p.Log != nil {
		p.Log.WithFields(logrus.Fields{
			"hosts": len(hosts),
			"live":  len(cls.LiveWebServices),
		}).Debug("http phase finished")
	}
	return cls, nil
}

// check classifies one host. Any status code counts as live.
func (p *Prober) check(ctx context.Context, h engine.ResolvedHost) engine.ValidationResult {
	v := engine.ValidationResult{Subdomain: h.Host, IPs: h.IPs}

	hostCtx, cancel := withTimeout(ctx, p.HostTimeout)
	defer cancel()

	for _, scheme := range schemes {
		url := scheme + "://" + h.Host
		if status, ok := p.status(hostCtx, url); ok {
			v.URL = url
			v.Status = status
			return v
		}
		if hostCtx.Err() != nil {
			break
		}
	}
	return v
}

func (p *Prober) status(ctx context.Context, url string) (int, bool) {
	reqCtx, cancel := withTimeout(ctx, p.RequestTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, url, nil)
	if err != nil {
		return 0, false
	}
	if p.UserAgent != "" {
		req.Header.Set("User-Agent", p.UserAgent)
	}

	resp, err := p.Client.Do(req)
	if err != nil {
		return 0, false
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, httpProbeMaxBody))

	if resp.StatusCode == 0 {
		return 0, false
	}
	return resp.StatusCode, true
}
