package report

import (
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"

	"github.com/codeworkout/nbfix/internal/repair"
)

// OutputFormat selects how outcomes are rendered.
type OutputFormat string

const (
	OutputFormatDefault OutputFormat = "default"
	OutputFormatJSONL   OutputFormat = "jsonl"
)

// ParseOutputFormat validates a user-supplied format name.
func ParseOutputFormat(s string) (OutputFormat, error) {
	switch OutputFormat(s) {
	case OutputFormatDefault, OutputFormatJSONL:
		return OutputFormat(s), nil
	default:
		return "", fmt.Errorf("unknown output format: %s (must be default or jsonl)", s)
	}
}

// Record is the JSONL representation of one outcome.
type Record struct {
	Path    string          `json:"path"`
	Status  repair.Status   `json:"status"`
	Cells   int             `json:"cells"`
	Changes []repair.Change `json:"changes,omitempty"`
	Error   string          `json:"error,omitempty"`
}

// NewRecord converts an outcome for serialization.
func NewRecord(o repair.Outcome) Record {
	r := Record{
		Path:    o.Path,
		Status:  o.Status,
		Cells:   o.Cells,
		Changes: o.Changes,
	}
	if o.Err != nil {
		r.Error = o.Err.Error()
	}
	return r
}

// FormatTable writes outcomes as a table with columns FILE, STATUS, CELLS,
// CHANGES and DETAIL. Returns the number of rows written.
func FormatTable(w io.Writer, outcomes []repair.Outcome) int {
	if len(outcomes) == 0 {
		fmt.Fprintln(w, "No notebooks processed")
		return 0
	}

	fmt.Fprintf(w, "%-32s %-13s %-6s %-8s %s\n",
		"FILE", "STATUS", "CELLS", "CHANGES", "DETAIL")
	fmt.Fprintf(w, "%-32s %-13s %-6s %-8s %s\n",
		"--------------------------------", "-------------", "------", "--------", "----------------------------------------")

	for _, o := range outcomes {
		fmt.Fprintf(w, "%-32s %-13s %-6s %-8d %s\n",
			formatFile(o.Path),
			o.Status,
			formatCells(o),
			len(o.Changes),
			formatDetail(o),
		)
	}

	fmt.Fprintf(w, "\n%s\n", Summarize(outcomes))
	return len(outcomes)
}

// FormatJSONL writes one JSON object per outcome.
func FormatJSONL(w io.Writer, outcomes []repair.Outcome) error {
	for _, o := range outcomes {
		data, err := json.Marshal(NewRecord(o))
		if err != nil {
			return fmt.Errorf("failed to marshal outcome to JSON: %w", err)
		}

		if _, err := fmt.Fprintf(w, "%s\n", data); err != nil {
			return fmt.Errorf("failed to write JSONL output: %w", err)
		}
	}

	return nil
}

// formatFile shows the base name, truncated for the table.
func formatFile(path string) string {
	name := filepath.Base(path)
	if len(name) > 32 {
		return name[:29] + "..."
	}
	return name
}

// formatCells shows "-" for files that were never parsed.
func formatCells(o repair.Outcome) string {
	if o.Status == repair.StatusSkipped || o.Status == repair.StatusFailed {
		return "-"
	}
	return fmt.Sprintf("%d", o.Cells)
}

// formatDetail summarizes change kinds or the error, max 40 characters.
func formatDetail(o repair.Outcome) string {
	var detail string
	switch {
	case o.Err != nil:
		detail = o.Err.Error()
	case len(o.Changes) > 0:
		counts := map[repair.ChangeKind]int{}
		for _, c := range o.Changes {
			counts[c.Kind]++
		}
		detail = fmt.Sprintf("%d replaced, %d generated, %d meta.id",
			counts[repair.ChangeIDReplaced],
			counts[repair.ChangeIDGenerated],
			counts[repair.ChangeMetadataIDRemoved])
	default:
		return "-"
	}

	if len(detail) > 40 {
		return detail[:37] + "..."
	}
	return detail
}
