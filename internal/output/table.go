package output

import (
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/vulnverified/subsweep/internal/engine"
	"github.com/vulnverified/subsweep/internal/wordlist"
)

// WriteTable renders the job's hosts as styled terminal tables: live web
// services first, then DNS-only hosts. When validation was skipped the
// resolved subdomains are listed instead.
func WriteTable(w io.Writer, result *engine.Result, noColor bool) {
	if len(result.Subdomains) == 0 {
		fmt.Fprintln(w, "\nNo subdomains resolved.")
		return
	}

	validated := len(result.LiveWebServices)+len(result.DNSOnly) > 0
	if !validated {
		rows := make([][]string, 0, len(result.Subdomains))
		for _, s := range result.Subdomains {
			rows = append(rows, []string{s.Host, joinCell(s.IPs)})
		}
		writeSection(w, "Resolved subdomains", []string{"Host", "IPs"}, rows, noColor)
		return
	}

	if len(result.LiveWebServices) > 0 {
		rows := make([][]string, 0, len(result.LiveWebServices))
		for _, v := range result.LiveWebServices {
			rows = append(rows, []string{v.Subdomain, truncate(v.URL, 60), strconv.Itoa(v.Status), joinCell(v.IPs)})
		}
		writeSection(w, "Live web services", []string{"Host", "URL", "Status", "IPs"}, rows, noColor)
	} else {
		fmt.Fprintln(w, "\nNo live web services discovered.")
	}

	if len(result.DNSOnly) > 0 {
		rows := make([][]string, 0, len(result.DNSOnly))
		for _, d := range result.DNSOnly {
			rows = append(rows, []string{d.Subdomain, joinCell(d.IPs)})
		}
		writeSection(w, "DNS only", []string{"Host", "IPs"}, rows, noColor)
	}
}

// WritePresets lists the wordlist presets.
func WritePresets(w io.Writer, presets []wordlist.Preset, noColor bool) {
	rows := make([][]string, 0, len(presets))
	for _, p := range presets {
		file := p.File
		if file == "" {
			file = "(custom path)"
		}
		rows = append(rows, []string{p.ID, p.Name, file})
	}
	writeSection(w, "Wordlist presets", []string{"ID", "Name", "File"}, rows, noColor)
}

func writeSection(w io.Writer, title string, headers []string, rows [][]string, noColor bool) {
	sort.Slice(rows, func(i, j int) bool {
		return rows[i][0] < rows[j][0]
	})

	fmt.Fprintln(w)
	fmt.Fprintf(w, "%s (%d)\n", title, len(rows))

	if noColor {
		writeSimpleTable(w, headers, rows)
		return
	}

	t := table.New().
		Headers(headers...).
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(lipgloss.Color("240"))).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("252"))
			}
			return lipgloss.NewStyle().Foreground(lipgloss.Color("250"))
		})

	for _, row := range rows {
		t.Row(row...)
	}

	fmt.Fprintln(w, t.Render())
}

func writeSimpleTable(w io.Writer, headers []string, rows [][]string) {
	// Calculate column widths.
	widths := make([]int, len(headers))
	for i, h := range headers {
		widths[i] = len(h)
	}
	for _, row := range rows {
		for i, cell := range row {
			if len(cell) > widths[i] {
				widths[i] = len(cell)
			}
		}
	}

	writeRow(w, headers, widths)

	// Separator.
	for i, width := range widths {
		if i > 0 {
			fmt.Fprint(w, "-+-")
		}
		fmt.Fprint(w, strings.Repeat("-", width))
	}
	fmt.Fprintln(w)

	for _, row := range rows {
		writeRow(w, row, widths)
	}
}

func writeRow(w io.Writer, cells []string, widths []int) {
	for i, cell := range cells {
		if i > 0 {
			fmt.Fprint(w, " | ")
		}
		if i == len(cells)-1 {
			fmt.Fprint(w, cell)
			continue
		}
		fmt.Fprintf(w, "%-*s", widths[i], cell)
	}
	fmt.Fprintln(w)
}

func joinCell(ips []string) string {
	return truncate(strings.Join(ips, ", "), 48)
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}
