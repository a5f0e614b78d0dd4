package report

import (
	"fmt"
	"io"

	"github.com/fatih/color"

	"github.com/tixaudit/tixaudit/pkg/types"
)

// ConsoleWriter prints a run summary to a terminal.
type ConsoleWriter struct {
	w       io.Writer
	heading *color.Color
	pass    *color.Color
	fail    *color.Color
	dim     *color.Color
}

// NewConsoleWriter builds a writer. noColor strips ANSI escapes, which also
// covers piped output and CI logs.
func NewConsoleWriter(w io.Writer, noColor bool) *ConsoleWriter {
	c := &ConsoleWriter{
		w:       w,
		heading: color.New(color.FgCyan, color.Bold),
		pass:    color.New(color.FgGreen),
		fail:    color.New(color.FgYellow, color.Bold),
		dim:     color.New(color.FgWhite),
	}
	if noColor {
		c.heading.DisableColor()
		c.pass.DisableColor()
		c.fail.DisableColor()
		c.dim.DisableColor()
	}
	return c
}

// WriteSummary prints the dataset sizes, one line per check, and the final
// status banner.
func (c *ConsoleWriter) WriteSummary(summary *types.RunSummary) {
	fmt.Fprintln(c.w, c.heading.Sprint("Files"))
	for _, d := range summary.Datasets {
		if d.Missing {
			fmt.Fprintf(c.w, "  %s\n", c.fail.Sprintf("%s: missing", d.Name))
		} else {
			fmt.Fprintf(c.w, "  %s\n", c.dim.Sprintf("%s: %d rows", d.Name, d.Rows))
		}
	}
	fmt.Fprintln(c.w)

	fmt.Fprintln(c.w, c.heading.Sprint("Checks"))
	for _, r := range summary.Results {
		if r.Passed() {
			fmt.Fprintf(c.w, "  %s %s\n", c.pass.Sprint("✅"), r.Check)
		} else {
			fmt.Fprintf(c.w, "  %s %s\n", c.fail.Sprint("⚠️"),
				c.fail.Sprintf("%s: %d issues (%.1f%%)", r.Check, r.Issues, r.Rate))
		}
	}
	fmt.Fprintln(c.w)

	if summary.TotalIssues() == 0 {
		fmt.Fprintln(c.w, c.pass.Sprint(banner(summary, false)))
	} else {
		fmt.Fprintln(c.w, c.fail.Sprint(banner(summary, false)))
	}
}
