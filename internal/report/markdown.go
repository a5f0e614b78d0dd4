// Package report renders audit results: a deterministic markdown document,
// a JSON metadata sidecar, and a colored console summary.
//
// The markdown body carries no timestamps, host names, or run IDs. Identical
// input bytes must produce a byte-identical report; everything volatile
// about a run lives in the sidecar and the run catalog.
package report

import (
	"fmt"
	"sort"
	"strings"

	"github.com/tixaudit/tixaudit/internal/checks"
	"github.com/tixaudit/tixaudit/pkg/types"
)

// DefaultTitle is used when the configuration does not set one.
const DefaultTitle = "Data Quality Report"

// topBlankColumns caps the missing-values appendix per dataset.
const topBlankColumns = 10

// RenderMarkdown emits the report document for a run summary.
func RenderMarkdown(title string, summary *types.RunSummary) []byte {
	if title == "" {
		title = DefaultTitle
	}

	var b strings.Builder

	fmt.Fprintf(&b, "# %s\n\n", title)
	fmt.Fprintf(&b, "%s\n\n", banner(summary, true))

	b.WriteString("## Files\n\n")
	for _, d := range summary.Datasets {
		if d.Missing {
			fmt.Fprintf(&b, "- %s: missing\n", d.Name)
		} else {
			fmt.Fprintf(&b, "- %s: %d rows\n", d.Name, d.Rows)
		}
	}
	b.WriteString("\n")

	b.WriteString("## Checks\n\n")
	b.WriteString("| Category | Check | Issues | Rows | Rate |\n")
	b.WriteString("|----------|-------|-------:|-----:|-----:|\n")
	for _, r := range summary.Results {
		fmt.Fprintf(&b, "| %s | %s | %d | %d | %.1f%% |\n",
			r.Category, r.Check, r.Issues, r.Rows, r.Rate)
	}
	b.WriteString("\n")

	b.WriteString("## Top issues\n\n")
	top := checks.TopIssues(summary.Results)
	if len(top) == 0 {
		b.WriteString("✅ No issues found.\n")
	} else {
		for i, r := range top {
			fmt.Fprintf(&b, "%d. ⚠️ **%s**: %d issues (%.1f%%)\n",
				i+1, r.Check, r.Issues, r.Rate)
		}
	}
	b.WriteString("\n")

	b.WriteString("## Missing values\n")
	for _, d := range summary.Datasets {
		if d.Missing {
			continue
		}
		fmt.Fprintf(&b, "\n### %s\n\n", d.Name)
		blanks := topBlanks(summary.MissingValues[d.Name])
		if len(blanks) == 0 {
			b.WriteString("- none\n")
			continue
		}
		for _, c := range blanks {
			fmt.Fprintf(&b, "- %s: %d\n", c.Column, c.Blanks)
		}
	}

	return []byte(b.String())
}

// banner builds the status line. Markdown gets bold markup, the console
// writer does not.
func banner(summary *types.RunSummary, markdown bool) string {
	total := summary.TotalIssues()
	if total == 0 {
		if markdown {
			return "✅ **All checks passed**"
		}
		return "✅ All checks passed"
	}
	if markdown {
		return fmt.Sprintf("⚠️ **%d issues detected across %d checks**", total, summary.FailedChecks())
	}
	return fmt.Sprintf("⚠️ %d issues detected across %d checks", total, summary.FailedChecks())
}

// topBlanks returns the non-zero blank counts sorted descending, capped at
// topBlankColumns. The sort is stable so ties keep column order.
func topBlanks(columns []types.ColumnBlanks) []types.ColumnBlanks {
	out := make([]types.ColumnBlanks, 0, len(columns))
	for _, c := range columns {
		if c.Blanks > 0 {
			out = append(out, c)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Blanks > out[j].Blanks
	})
	if len(out) > topBlankColumns {
		out = out[:topBlankColumns]
	}
	return out
}
