// Package output handles all subsweep CLI output formatting.
package output

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/fatih/color"
	"github.com/schollz/progressbar/v3"
	"github.com/vulnverified/subsweep/internal/engine"
)

// Console prints a job's event stream for a terminal: a progress bar plus
// one line per discovery.
type Console struct {
	w       io.Writer
	verbose bool
	silent  bool
	noColor bool

	mu    sync.Mutex
	bar   *progressbar.ProgressBar
	phase engine.Phase

	live   *color.Color
	dns    *color.Color
	found  *color.Color
	failed *color.Color
}

// NewConsole creates a console printer writing to w.
func NewConsole(w io.Writer, verbose, silent, noColor bool) *Console {
	c := &Console{
		w:       w,
		verbose: verbose,
		silent:  silent,
		noColor: noColor,
		live:    color.New(color.FgGreen, color.Bold),
		dns:     color.New(color.FgYellow),
		found:   color.New(color.FgCyan),
		failed:  color.New(color.FgRed, color.Bold),
	}
	if noColor {
		for _, col := range []*color.Color{c.live, c.dns, c.found, c.failed} {
			col.DisableColor()
		}
	}
	return c
}

// stage prints a phase header like "[dns] Resolving 1000 candidates".
func (c *Console) stage(p engine.Progress) {
	c.phase = p.Phase
	switch p.Phase {
	case engine.PhaseDNS:
		c.line(fmt.Sprintf("[%s] Resolving %d candidates", p.Phase, p.Total))
	case engine.PhaseHTTP:
		c.line(fmt.Sprintf("[%s] Validating %d hosts", p.Phase, p.Total))
	}
}

// Handle prints one event. It satisfies the forward function of
// engine.Drain and never fails.
func (c *Console) Handle(e engine.Event) error {
	if c.silent {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	switch e.Type {
	case engine.EventProgress:
		if e.Progress.Phase != c.phase {
			c.stage(e.Progress)
		}
		c.progress(e.Progress)
	case engine.EventSubdomain:
		if c.verbose {
			c.line(c.found.Sprint("[+]"), e.Host.Host, joinIPs(e.Host.IPs))
		}
	case engine.EventHTTPValidated:
		v := e.Validation
		c.line(c.live.Sprint("[LIVE]"), v.URL, fmt.Sprintf("[%d]", v.Status), joinIPs(v.IPs))
	case engine.EventDNSOnly:
		c.line(c.dns.Sprint("[DNS]"), e.Validation.Subdomain, joinIPs(e.Validation.IPs))
	case engine.EventComplete:
		c.finishBar()
		fmt.Fprintf(c.w, "\nCompleted in %.1fs: %d subdomains resolved\n", e.Elapsed, e.Count)
	case engine.EventError:
		c.finishBar()
		fmt.Fprintf(c.w, "%s %s\n", c.failed.Sprint("!"), e.Message)
	}
	return nil
}

func (c *Console) progress(p engine.Progress) {
	if c.bar == nil {
		c.bar = progressbar.NewOptions(100,
			progressbar.OptionSetWriter(c.w),
			progressbar.OptionEnableColorCodes(!c.noColor),
			progressbar.OptionSetWidth(40),
			progressbar.OptionShowDescriptionAtLineEnd(),
			progressbar.OptionSetTheme(c.theme()),
		)
	}
	c.bar.Describe(fmt.Sprintf("%s %d/%d", p.Phase, p.Completed, p.Total))
	_ = c.bar.Set(int(p.Percentage))
}

func (c *Console) theme() progressbar.Theme {
	t := progressbar.Theme{Saucer: "=", SaucerHead: ">", SaucerPadding: " ", BarStart: "[", BarEnd: "]"}
	if !c.noColor {
		t.Saucer = "[green]=[reset]"
		t.SaucerHead = "[green]>[reset]"
	}
	return t
}

func (c *Console) line(parts ...string) {
	c.clearBar()
	var nonEmpty []string
	for _, p := range parts {
		if p != "" {
			nonEmpty = append(nonEmpty, p)
		}
	}
	fmt.Fprintln(c.w, strings.Join(nonEmpty, " "))
}

func (c *Console) clearBar() {
	if c.bar != nil {
		_ = c.bar.Clear()
	}
}

func (c *Console) finishBar() {
	if c.bar != nil {
		_ = c.bar.Finish()
		fmt.Fprintln(c.w)
		c.bar = nil
	}
}

func joinIPs(ips []string) string {
	if len(ips) == 0 {
		return ""
	}
	return "(" + strings.Join(ips, ", ") + ")"
}
