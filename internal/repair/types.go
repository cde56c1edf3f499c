package repair

import "fmt"

// Status is the result of processing one notebook file.
type Status string

const (
	// StatusUpdated means the file had changes and was rewritten.
	StatusUpdated Status = "updated"
	// StatusWouldUpdate means the file has pending changes (dry run, not written).
	StatusWouldUpdate Status = "would_update"
	// StatusUnchanged means the file already satisfied every id invariant.
	StatusUnchanged Status = "unchanged"
	// StatusSkipped means the file does not exist.
	StatusSkipped Status = "skipped"
	// StatusFailed means the file could not be read or parsed.
	StatusFailed Status = "failed"
)

// ChangeKind describes a single mutation applied to a cell.
type ChangeKind string

const (
	ChangeMetadataIDRemoved ChangeKind = "metadata_id_removed"
	ChangeIDGenerated       ChangeKind = "id_generated"
	ChangeIDReplaced        ChangeKind = "id_replaced"
)

// Change records one mutation. Cell is the zero-based cell index.
type Change struct {
	Cell  int        `json:"cell"`
	Kind  ChangeKind `json:"kind"`
	OldID string     `json:"old_id,omitempty"`
	NewID string     `json:"new_id,omitempty"`
}

func (c Change) String() string {
	switch c.Kind {
	case ChangeMetadataIDRemoved:
		return fmt.Sprintf("cell %d: removed metadata.id %s", c.Cell, c.OldID)
	case ChangeIDGenerated:
		return fmt.Sprintf("cell %d: missing id -> generated %s", c.Cell, c.NewID)
	case ChangeIDReplaced:
		return fmt.Sprintf("cell %d: duplicate id %s -> replaced with %s", c.Cell, c.OldID, c.NewID)
	default:
		return fmt.Sprintf("cell %d: %s", c.Cell, c.Kind)
	}
}

// Outcome is the per-file result of a run.
type Outcome struct {
	Path    string
	Status  Status
	Cells   int
	Changes []Change
	// Err is set for skipped and failed files.
	Err error
}

// Changed reports whether the file needed any mutation.
func (o Outcome) Changed() bool {
	return len(o.Changes) > 0
}

// WriteError wraps a failure to persist a repaired notebook.
type WriteError struct {
	Path string
	Err  error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("failed to write %s: %v", e.Path, e.Err)
}

func (e *WriteError) Unwrap() error {
	return e.Err
}

// Observer receives progress notifications during a run.
type Observer interface {
	FileStarted(path string)
	ChangeApplied(path string, change Change)
	FileFinished(outcome Outcome)
}

type nopObserver struct{}

func (nopObserver) FileStarted(string) {}
func (nopObserver) ChangeApplied(string, Change) {}
func (nopObserver) FileFinished(Outcome) {}
