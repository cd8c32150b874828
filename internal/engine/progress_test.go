package engine

import "testing"

func collect(t *testing.T, tr *ProgressTracker, n int) []Progress {
	t.Helper()
	var out []Progress
	for i := 0; i < n; i++ {
		if p, ok := tr.Advance(); ok {
			out = append(out, p)
		}
	}
	return out
}

func TestProgressTracker_EveryFivePercent(t *testing.T) {
	tr := NewProgressTracker(PhaseDNS, 20, FullScale)
	got := collect(t, tr, 20)

	if len(got) != 20 {
		t.Fatalf("got %d reports, want 20", len(got))
	}
	for i, p := range got {
		want := float64(i+1) * 5
		if p.Percentage != want {
			t.Errorf("report %d: percentage = %v, want %v", i, p.Percentage, want)
		}
		if p.Completed != i+1 || p.Total != 20 {
			t.Errorf("report %d: completed/total = %d/%d", i, p.Completed, p.Total)
		}
	}
}

func TestProgressTracker_Thresholds(t *testing.T) {
	tests := []struct {
		name      string
		total     int
		scale     Scale
		maxEvents int
		final     float64
	}{
		{"large dns", 1000, FullScale, 21, 100},
		{"dns half scale", 1000, DNSScale, 11, 50},
		{"http scale", 1000, HTTPScale, 11, 100},
		{"three tasks", 3, FullScale, 3, 100},
		{"single task", 1, HTTPScale, 1, 100},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := NewProgressTracker(PhaseDNS, tt.total, tt.scale)
			got := collect(t, tr, tt.total)

			if len(got) == 0 || len(got) > tt.maxEvents {
				t.Fatalf("got %d reports, want 1..%d", len(got), tt.maxEvents)
			}
			last := got[len(got)-1]
			if last.Percentage != tt.final || last.Completed != tt.total {
				t.Errorf("final report = %+v, want %v at %d", last, tt.final, tt.total)
			}
			for i := 1; i < len(got); i++ {
				if got[i].Percentage < got[i-1].Percentage {
					t.Errorf("percentage decreased: %v -> %v", got[i-1].Percentage, got[i].Percentage)
				}
				if got[i].Percentage < got[i-1].Percentage+reportStep && got[i].Completed != tt.total {
					t.Errorf("report %d too close to previous: %v -> %v", i, got[i-1].Percentage, got[i].Percentage)
				}
			}
		})
	}
}

func TestProgressTracker_HTTPFirstReport(t *testing.T) {
	// One of twenty tasks maps to 52.5, above the initial 45+5 bar.
	tr := NewProgressTracker(PhaseHTTP, 20, HTTPScale)
	p, ok := tr.Advance()
	if !ok {
		t.Fatal("expected first completion to be reported")
	}
	if p.Percentage != 52.5 {
		t.Errorf("percentage = %v, want 52.5", p.Percentage)
	}
}

func TestProgressTracker_NeverExceedsTotal(t *testing.T) {
	tr := NewProgressTracker(PhaseDNS, 2, FullScale)
	collect(t, tr, 5)
	if tr.Completed() != 2 {
		t.Errorf("completed = %d, want 2", tr.Completed())
	}
}

func TestProgressTracker_EmptyPhase(t *testing.T) {
	tr := NewProgressTracker(PhaseDNS, 0, FullScale)
	if _, ok := tr.Advance(); ok {
		t.Error("empty phase should never report")
	}
}
