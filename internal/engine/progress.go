package engine

// Phase names a stage of the job for progress reporting.
type Phase string

const (
	PhaseDNS  Phase = "dns"
	PhaseHTTP Phase = "http"
)

// reportStep is the minimum percentage gain between two progress reports.
const reportStep = 5.0

// Progress is a snapshot of one phase's completion.
type Progress struct {
	Phase      Phase   `json:"phase"`
	Percentage float64 `json:"percentage"`
	Completed  int     `json:"completed"`
	Total      int     `json:"total"`
}

// Scale maps a phase's completion onto the job-wide percentage range
// [Base, Base+Span].
type Scale struct {
	Base float64
	Span float64
}

var (
	// FullScale reports a phase on 0-100.
	FullScale = Scale{Base: 0, Span: 100}
	// DNSScale is the DNS phase when HTTP validation follows.
	DNSScale = Scale{Base: 0, Span: 50}
	// HTTPScale is the HTTP validation phase.
	HTTPScale = Scale{Base: 50, Span: 50}
)

// ProgressTracker counts completed tasks and decides which completions are
// worth reporting: a report is due when the percentage has gained at least
// five points since the last one, or when the phase is done.
//
// ProgressTracker is not safe for concurrent use; engines call Advance while
// holding the lock that serializes their hooks.
type ProgressTracker struct {
	phase     Phase
	total     int
	completed int
	scale     Scale
	last      float64
}

// NewProgressTracker returns a tracker for total tasks reported on scale.
func NewProgressTracker(phase Phase, total int, scale Scale) *ProgressTracker {
	return &ProgressTracker{
		phase: phase,
		total: total,
		scale: scale,
		last:  scale.Base - reportStep,
	}
}

// Advance records one completed task and returns the snapshot to report,
// if any.
func (t *ProgressTracker) Advance() (Progress, bool) {
	if t.total == 0 {
		return Progress{}, false
	}
	if t.completed < t.total {
		t.completed++
	}
	pct := t.scale.Base + t.scale.Span*float64(t.completed)/float64(t.total)
	if pct < t.last+reportStep && t.completed != t.total {
		return Progress{}, false
	}
	t.last = pct
	return Progress{
		Phase:      t.phase,
		Percentage: pct,
		Completed:  t.completed,
		Total:      t.total,
	}, true
}

// Completed returns the number of tasks recorded so far.
func (t *ProgressTracker) Completed() int {
	return t.completed
}
