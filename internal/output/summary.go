package output

import (
	"fmt"
	"io"

	"github.com/vulnverified/subsweep/internal/engine"
)

// Version is set via ldflags at build time.
var Version = "dev"

// WriteHeader prints the subsweep banner.
func WriteHeader(w io.Writer, noColor bool) {
	if noColor {
		fmt.Fprintf(w, "subsweep %s\n\n", Version)
	} else {
		fmt.Fprintf(w, "\033[1msubsweep %s\033[0m\n\n", Version)
	}
}

// WriteSummary prints the post-run totals.
func WriteSummary(w io.Writer, result *engine.Result, noColor bool) {
	validated := len(result.LiveWebServices)+len(result.DNSOnly) > 0

	fmt.Fprintln(w)
	label := func(s string) string {
		if noColor {
			return s
		}
		return "\033[1m" + s + "\033[0m"
	}

	fmt.Fprintf(w, "%s %s\n", label("Domain:"), result.Domain)
	fmt.Fprintf(w, "%s %d candidates, %d resolved\n", label("Subdomains:"), result.Total, result.Count)
	if validated {
		fmt.Fprintf(w, "%s %d live, %d DNS only\n", label("Web services:"), len(result.LiveWebServices), len(result.DNSOnly))
	}
	fmt.Fprintf(w, "%s %.2fs\n", label("Elapsed:"), result.ElapsedTime)
}
