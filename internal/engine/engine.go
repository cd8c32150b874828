package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/vulnverified/subsweep/internal/errs"
)

// State is the lifecycle position of a Job.
type State int

const (
	StateIdle State = iota
	StateResolving
	StateValidating
	StateCompleted
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateResolving:
		return "resolving"
	case StateValidating:
		return "validating"
	case StateCompleted:
		return "completed"
	case StateFailed:
		return "failed"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Job tracks one enumeration from request to terminal event.
type Job struct {
	ID      string
	Request Request

	mu     sync.Mutex
	domain string
	state  State
	total  int
}

func newJob(req Request) *Job {
	return &Job{ID: uuid.NewString(), Request: req}
}

// State returns the job's current state.
func (j *Job) State() State {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.state
}

// Domain returns the normalized target once the job has started.
func (j *Job) Domain() string {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.domain
}

// Total returns the candidate count once candidates have been generated.
func (j *Job) Total() int {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.total
}

func (j *Job) setState(s State) {
	j.mu.Lock()
	j.state = s
	j.mu.Unlock()
}

// Stages holds the injectable phase implementations.
type Stages struct {
	Candidates CandidateSource
	Resolver   Resolver
	Validator  Validator
}

// Options tune a Coordinator.
type Options struct {
	// HTTPConcurrency bounds in-flight HTTP validations per job.
	HTTPConcurrency int
	// EventBuffer is the capacity of the channel returned by Start.
	EventBuffer int
}

const (
	defaultHTTPConcurrency = 50
	defaultEventBuffer     = 256
)

// Coordinator runs enumeration jobs and turns their progress into events.
// A Coordinator holds no per-job state and may run jobs concurrently.
type Coordinator struct {
	stages Stages
	opts   Options
	log    logrus.FieldLogger
}

// NewCoordinator returns a Coordinator running jobs through stages.
func NewCoordinator(stages Stages, opts Options, log logrus.FieldLogger) *Coordinator {
	if opts.HTTPConcurrency < 1 {
		opts.HTTPConcurrency = defaultHTTPConcurrency
	}
	if opts.EventBuffer < 1 {
		opts.EventBuffer = defaultEventBuffer
	}
	return &Coordinator{stages: stages, opts: opts, log: log}
}

// Run executes a job synchronously. Every event, including the terminal
// complete or error event, is passed to emit in order. emit may be nil.
func (c *Coordinator) Run(ctx context.Context, req Request, emit func(Event)) (*Result, error) {
	if emit == nil {
		emit = func(Event) {}
	}
	return c.run(ctx, newJob(req), emit)
}

// Start executes a job in the background and returns its event stream. The
// channel is closed after the terminal event. Cancelling ctx aborts the job;
// events that cannot be delivered after that are dropped.
func (c *Coordinator) Start(ctx context.Context, req Request) (*Job, <-chan Event) {
	job := newJob(req)
	events := make(chan Event, c.opts.EventBuffer)

	go func() {
		defer close(events)
		send := func(e Event) {
			select {
			case events <- e:
			case <-ctx.Done():
			}
		}
		_, _ = c.run(ctx, job, send)
	}()

	return job, events
}

func (c *Coordinator) run(ctx context.Context, job *Job, emit func(Event)) (result *Result, err error) {
	start := time.Now()
	log := c.log.WithField("job", job.ID)

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", errs.ErrInternal, r)
			result = nil
		}
		if err != nil {
			job.setState(StateFailed)
			log.WithError(err).Warn("enumeration failed")
			emit(ErrorEvent(err))
		}
	}()

	req := job.Request.WithDefaults()
	if err := req.Validate(); err != nil {
		return nil, err
	}
	domain, err := NormalizeDomain(req.Domain)
	if err != nil {
		return nil, err
	}

	job.mu.Lock()
	job.domain = domain
	job.state = StateResolving
	job.mu.Unlock()
	log = log.WithField("domain", domain)

	prefixes, err := c.stages.Candidates.Candidates(ctx, domain, req)
	if err != nil {
		return nil, fmt.Errorf("candidate generation: %w", err)
	}
	hosts := make([]string, len(prefixes))
	for i, p := range prefixes {
		hosts[i] = strings.ToLower(strings.TrimSpace(p)) + "." + domain
	}
	job.mu.Lock()
	job.total = len(hosts)
	job.mu.Unlock()
	log.WithField("candidates", len(hosts)).Info("starting dns phase")

	scale := DNSScale
	if req.SkipValidation {
		scale = FullScale
	}
	lastPct := -1.0
	hooks := Hooks{
		Progress: func(p Progress) {
			lastPct = p.Percentage
			emit(ProgressEvent(p))
		},
		Discovered: func(h ResolvedHost) { emit(SubdomainEvent(h)) },
		Classified: func(v ValidationResult) { emit(ValidationEvent(v)) },
	}

	resolved, err := c.stages.Resolver.Resolve(ctx, hosts, ResolveOptions{
		Timeout:     req.LookupTimeout(),
		Concurrency: req.Threads,
		Scale:       scale,
	}, hooks)
	if err != nil {
		return nil, fmt.Errorf("dns phase: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("enumeration cancelled: %w", err)
	}

	result = &Result{
		Domain:          domain,
		Total:           len(hosts),
		Count:           len(resolved),
		Subdomains:      resolved,
		LiveWebServices: []ValidationResult{},
		DNSOnly:         []DNSOnlyResult{},
	}
	if result.Subdomains == nil {
		result.Subdomains = []ResolvedHost{}
	}

	if !req.SkipValidation && len(resolved) > 0 {
		job.setState(StateValidating)
		log.WithField("resolved", len(resolved)).Info("starting http phase")

		cls, err := c.stages.Validator.Validate(ctx, resolved, ValidateOptions{
			Concurrency: c.opts.HTTPConcurrency,
			Scale:       HTTPScale,
		}, hooks)
		if err != nil {
			return nil, fmt.Errorf("http phase: %w", err)
		}
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("enumeration cancelled: %w", err)
		}
		result.LiveWebServices = append(result.LiveWebServices, cls.LiveWebServices...)
		result.DNSOnly = append(result.DNSOnly, cls.DNSOnly...)
	}

	// A phase with nothing to do reports no progress of its own.
	if lastPct < 100 {
		closing := Progress{Phase: PhaseHTTP, Percentage: 100}
		if req.SkipValidation {
			closing = Progress{Phase: PhaseDNS, Percentage: 100, Completed: len(hosts), Total: len(hosts)}
		}
		emit(ProgressEvent(closing))
	}

	result.ElapsedTime = time.Since(start).Seconds()
	job.setState(StateCompleted)
	log.WithFields(logrus.Fields{
		"count":   result.Count,
		"live":    len(result.LiveWebServices),
		"elapsed": result.ElapsedTime,
	}).Info("enumeration complete")
	emit(CompleteEvent(result))
	return result, nil
}

// ErrStreamClosed is returned by Drain when the stream ends without a
// terminal event.
var ErrStreamClosed = errors.New("event stream closed before a terminal event")

// Drain forwards events in arrival order until a complete or error event has
// been forwarded, then returns. Anything queued behind the terminal event is
// discarded. Callers should cancel the job's context once Drain returns so
// the producer never blocks on an abandoned stream.
func Drain(ctx context.Context, events <-chan Event, forward func(Event) error) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case e, ok := <-events:
			if !ok {
				return ErrStreamClosed
			}
			if err := forward(e); err != nil {
				return err
			}
			if e.Terminal() {
				return nil
			}
		}
	}
}
