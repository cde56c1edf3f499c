// Package repair restores cell id invariants in notebook files: every cell
// has a present id, ids are unique across all files of a run, and no cell
// carries a stray metadata.id.
package repair

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/codeworkout/nbfix/internal/cellid"
	"github.com/codeworkout/nbfix/internal/notebook"
)

// ErrNotFound is attached to outcomes of files that do not exist.
var ErrNotFound = errors.New("file not found")

// Guard is consulted once before a run that may write files.
type Guard interface {
	EnsureClean(paths []string) error
}

// Options configures a Repairer.
type Options struct {
	// DryRun computes changes without writing any file.
	DryRun bool
	// Guard, if set, must approve the batch before any file is processed.
	Guard Guard
	// Observer receives progress events. Defaults to a no-op.
	Observer Observer
	// Root, if set, makes the owner names given to the seen set relative to
	// it, so invocations from different checkouts agree on them.
	Root string
}

// Repairer processes notebook files against a shared seen-id set.
type Repairer struct {
	seen cellid.Set
	gen  *cellid.Generator
	opts Options
}

// New creates a Repairer. seen is shared by every file the Repairer
// processes, so uniqueness holds across files.
func New(seen cellid.Set, gen *cellid.Generator, opts Options) *Repairer {
	if opts.Observer == nil {
		opts.Observer = nopObserver{}
	}
	return &Repairer{
		seen: seen,
		gen:  gen,
		opts: opts,
	}
}

// Run processes paths in order. Missing, unreadable and malformed files are
// recorded in their outcome and do not stop the batch. A write failure, a
// seen-set failure or a guard rejection stops the batch and is returned
// together with the outcomes gathered so far.
func (r *Repairer) Run(ctx context.Context, paths []string) ([]Outcome, error) {
	if r.opts.Guard != nil && !r.opts.DryRun {
		if err := r.opts.Guard.EnsureClean(existing(paths)); err != nil {
			return nil, err
		}
	}

	outcomes := make([]Outcome, 0, len(paths))
	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return outcomes, err
		}

		outcome, err := r.RepairFile(ctx, path)
		if err != nil {
			return outcomes, err
		}
		outcomes = append(outcomes, outcome)
	}

	return outcomes, nil
}

// RepairFile processes a single notebook. The returned error is non-nil only
// for failures that must abort the whole run.
func (r *Repairer) RepairFile(ctx context.Context, path string) (Outcome, error) {
	outcome := Outcome{Path: path}

	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		outcome.Status = StatusSkipped
		outcome.Err = ErrNotFound
		r.opts.Observer.FileFinished(outcome)
		return outcome, nil
	}

	r.opts.Observer.FileStarted(path)

	doc, err := notebook.Load(path)
	if err != nil {
		outcome.Status = StatusFailed
		outcome.Err = err
		r.opts.Observer.FileFinished(outcome)
		return outcome, nil
	}
	outcome.Cells = len(doc.Cells())

	changes, err := RepairCells(cellid.WithOwner(ctx, r.owner(path)), doc, r.seen, r.gen)
	if err != nil {
		return outcome, fmt.Errorf("%s: %w", path, err)
	}
	outcome.Changes = changes
	for _, change := range changes {
		r.opts.Observer.ChangeApplied(path, change)
	}

	switch {
	case len(changes) == 0:
		outcome.Status = StatusUnchanged
	case r.opts.DryRun:
		outcome.Status = StatusWouldUpdate
	default:
		if err := doc.Save(path); err != nil {
			return outcome, &WriteError{Path: path, Err: err}
		}
		outcome.Status = StatusUpdated
	}

	r.opts.Observer.FileFinished(outcome)
	return outcome, nil
}

// RepairCells applies the id rules to every cell of doc in order and returns
// the changes made. Each cell's id is recorded in seen, or replaced by a
// generated one when it is missing or already recorded.
func RepairCells(ctx context.Context, doc *notebook.Document, seen cellid.Set, gen *cellid.Generator) ([]Change, error) {
	var changes []Change

	for i, cell := range doc.Cells() {
		removed, ok, err := cell.RemoveMetadataID()
		if err != nil {
			return nil, fmt.Errorf("cell %d: %w", i, err)
		}
		if ok {
			changes = append(changes, Change{
				Cell:  i,
				Kind:  ChangeMetadataIDRemoved,
				OldID: displayValue(removed),
			})
		}

		id, hasID := cell.ID()
		if hasID {
			added, err := seen.Add(ctx, id)
			if err != nil {
				return nil, fmt.Errorf("cell %d: %w", i, err)
			}
			if added {
				continue
			}
		}

		change := Change{Cell: i, Kind: ChangeIDGenerated}
		if hasID {
			change.Kind = ChangeIDReplaced
			change.OldID = id
		} else if raw, present := cell.RawID(); present {
			// Non-string or empty id, replaced like a missing one
			change.OldID = raw
		}

		newID, err := gen.Next(ctx, seen)
		if err != nil {
			return nil, fmt.Errorf("cell %d: %w", i, err)
		}
		if err := cell.SetID(newID); err != nil {
			return nil, fmt.Errorf("cell %d: %w", i, err)
		}
		change.NewID = newID
		changes = append(changes, change)
	}

	return changes, nil
}

// displayValue renders a raw JSON value for messages: strings unquoted,
// anything else as written.
func displayValue(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}

// owner names path in claims on the seen set
func (r *Repairer) owner(path string) string {
	if r.opts.Root != "" {
		if rel, err := filepath.Rel(r.opts.Root, path); err == nil {
			return filepath.ToSlash(rel)
		}
	}
	return path
}

func existing(paths []string) []string {
	var out []string
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			out = append(out, p)
		}
	}
	return out
}
