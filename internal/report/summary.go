// Package report renders the outcomes of a repair run.
package report

import (
	"fmt"
	"strings"

	"github.com/codeworkout/nbfix/internal/repair"
)

// Summary counts outcomes by status.
type Summary struct {
	Updated     int
	WouldUpdate int
	Unchanged   int
	Skipped     int
	Failed      int
	Changes     int
}

// Summarize tallies outcomes.
func Summarize(outcomes []repair.Outcome) Summary {
	var s Summary
	for _, o := range outcomes {
		switch o.Status {
		case repair.StatusUpdated:
			s.Updated++
		case repair.StatusWouldUpdate:
			s.WouldUpdate++
		case repair.StatusUnchanged:
			s.Unchanged++
		case repair.StatusSkipped:
			s.Skipped++
		case repair.StatusFailed:
			s.Failed++
		}
		s.Changes += len(o.Changes)
	}
	return s
}

// Pending reports whether a check run found work to do or files it could not read.
func (s Summary) Pending() bool {
	return s.WouldUpdate > 0 || s.Updated > 0 || s.Failed > 0
}

func (s Summary) String() string {
	var parts []string
	if s.Updated > 0 {
		parts = append(parts, fmt.Sprintf("%d updated", s.Updated))
	}
	if s.WouldUpdate > 0 {
		parts = append(parts, fmt.Sprintf("%d would be updated", s.WouldUpdate))
	}
	if s.Unchanged > 0 {
		parts = append(parts, fmt.Sprintf("%d unchanged", s.Unchanged))
	}
	if s.Skipped > 0 {
		parts = append(parts, fmt.Sprintf("%d skipped", s.Skipped))
	}
	if s.Failed > 0 {
		parts = append(parts, fmt.Sprintf("%d failed", s.Failed))
	}
	if len(parts) == 0 {
		return "0 notebooks"
	}

	changeWord := "change"
	if s.Changes != 1 {
		changeWord = "changes"
	}
	return fmt.Sprintf("%s (%d %s)", strings.Join(parts, ", "), s.Changes, changeWord)
}
