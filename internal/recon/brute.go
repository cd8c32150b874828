package recon

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/panjf2000/ants/v2"
	"github.com/sirupsen/logrus"
	"github.com/vulnverified/subsweep/internal/engine"
)

// HostLookup resolves the IPv4 addresses of a host. Any error means the
// host did not resolve.
type HostLookup interface {
	LookupA(ctx context.Context, host string) ([]string, error)
}

// BruteResolver runs the DNS phase: one A lookup per candidate on a fixed
// size worker pool.
type BruteResolver struct {
	Lookup HostLookup
	Log    logrus.FieldLogger
}

// Resolve looks up every host and returns those with at least one address,
// in completion order. Progress and discovery hooks are called from the
// worker that finished the task, one at a time.
func (r *BruteResolver) Resolve(ctx context.Context, hosts []string, opts engine.ResolveOptions, hooks engine.Hooks) ([]engine.ResolvedHost, error) {
	if len(hosts) == 0 {
		return nil, nil
	}
	size := opts.Concurrency
	if size < 1 {
		size = 1
	}

	var (
		mu       sync.Mutex
		found    []engine.ResolvedHost
		panicErr error
		tracker  = engine.NewProgressTracker(engine.PhaseDNS, len(hosts), opts.Scale)
	)

	pool, err := ants.NewPool(size)
	if err != nil {
		return nil, fmt.Errorf("dns worker pool: %w", err)
	}
	defer pool.Release()

	var wg sync.WaitGroup
	for _, host := range hosts {
		if ctx.Err() != nil {
			break
		}
		wg.Add(1)
		err := pool.Submit(func() {
			defer wg.Done()
			// Recorded before wg.Done runs so Wait observes it.
			defer func() {
				if p := recover(); p != nil {
					mu.Lock()
					if panicErr == nil {
						panicErr = fmt.Errorf("dns worker panic: %v", p)
					}
					mu.Unlock()
				}
			}()
			if ctx.Err() != nil {
				return
			}

			ips := r.lookup(ctx, host, opts)

			mu.Lock()
			defer mu.Unlock()
			if p, ok := tracker.Advance(); ok {
				hooks.EmitProgress(p)
			}
			if len(ips) == 0 {
				return
			}
			rh := engine.ResolvedHost{Host: strings.ToLower(host), IPs: ips}
			found = append(found, rh)
			hooks.EmitDiscovered(rh)
		})
		if err != nil {
			wg.Done()
			wg.Wait()
			return nil, fmt.Errorf("submit %s: %w", host, err)
		}
	}

	wg.Wait()

	mu.Lock()
	perr := panicErr
	mu.Unlock()
	if perr != nil {
		return nil, perr
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if r.Log != nil {
		r.Log.WithFields(logrus.Fields{"candidates": len(hosts), "resolved": len(found)}).Debug("dns phase finished")
	}
	return found, nil
}

func (r *BruteResolver) lookup(ctx context.Context, host string, opts engine.ResolveOptions) []string {
	lookupCtx, cancel := withTimeout(ctx, opts.Timeout)
	defer cancel()

	ips, err := r.Lookup.LookupA(lookupCtx, host)
	if err != nil {
		return nil
	}
	return ips
}
