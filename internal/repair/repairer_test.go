package repair

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/codeworkout/nbfix/internal/cellid"
	"github.com/codeworkout/nbfix/internal/notebook"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeNotebook writes a notebook whose cells carry the given ids.
// An empty string produces a cell without an id.
func writeNotebook(t *testing.T, dir, name string, ids ...string) string {
	t.Helper()

	cells := make([]map[string]any, 0, len(ids))
	for _, id := range ids {
		cell := map[string]any{
			"cell_type": "code",
			"metadata":  map[string]any{},
			"source":    []string{"x = 1"},
		}
		if id != "" {
			cell["id"] = id
		}
		cells = append(cells, cell)
	}

	data, err := json.MarshalIndent(map[string]any{
		"cells":          cells,
		"metadata":       map[string]any{},
		"nbformat":       4,
		"nbformat_minor": 5,
	}, "", " ")
	require.NoError(t, err)

	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, append(data, '\n'), 0644))
	return path
}

func writeRaw(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func readIDs(t *testing.T, path string) []string {
	t.Helper()
	doc, err := notebook.Load(path)
	require.NoError(t, err)

	var ids []string
	for _, cell := range doc.Cells() {
		id, ok := cell.ID()
		require.True(t, ok, "cell without id in %s", path)
		_, stray := cell.MetadataID()
		require.False(t, stray, "metadata.id left in %s", path)
		ids = append(ids, id)
	}
	return ids
}

func newTestRepairer(t *testing.T, opts Options) (*Repairer, *cellid.MemorySet) {
	t.Helper()
	gen, err := cellid.NewGenerator()
	require.NoError(t, err)
	seen := cellid.NewMemorySet()
	return New(seen, gen, opts), seen
}

func TestRun_GlobalUniqueness(t *testing.T) {
	dir := t.TempDir()
	values := writeNotebook(t, dir, "values.ipynb", "a", "", "b", "a")
	logical := writeNotebook(t, dir, "logical.ipynb", "b", "c", "")
	inputs := writeRaw(t, dir, "inputs.ipynb", `{"cells": [{"id": "d", "metadata": {"id": "d"}}]}`)

	r, _ := newTestRepairer(t, Options{})
	outcomes, err := r.Run(context.Background(), []string{values, logical, inputs})
	require.NoError(t, err)
	require.Len(t, outcomes, 3)

	for _, o := range outcomes {
		assert.Equal(t, StatusUpdated, o.Status, o.Path)
	}

	all := map[string]string{}
	for _, path := range []string{values, logical, inputs} {
		for _, id := range readIDs(t, path) {
			assert.NotEmpty(t, id)
			prev, dup := all[id]
			assert.False(t, dup, "id %s in %s already used in %s", id, path, prev)
			all[id] = path
		}
	}
	assert.Len(t, all, 8)

	// First occurrences survive
	ids := readIDs(t, values)
	assert.Equal(t, "a", ids[0])
	assert.Equal(t, "b", ids[2])
	assert.Equal(t, "c", readIDs(t, logical)[1])
	assert.Equal(t, "d", readIDs(t, inputs)[0])
}

func TestRun_DuplicateWithinDocument(t *testing.T) {
	dir := t.TempDir()
	path := writeNotebook(t, dir, "values.ipynb", "a", "a", "b")

	r, _ := newTestRepairer(t, Options{})
	outcomes, err := r.Run(context.Background(), []string{path})
	require.NoError(t, err)

	require.Len(t, outcomes[0].Changes, 1)
	change := outcomes[0].Changes[0]
	assert.Equal(t, ChangeIDReplaced, change.Kind)
	assert.Equal(t, 1, change.Cell)
	assert.Equal(t, "a", change.OldID)

	ids := readIDs(t, path)
	assert.Equal(t, "a", ids[0])
	assert.Equal(t, change.NewID, ids[1])
	assert.Equal(t, "b", ids[2])
	assert.NotEqual(t, "a", ids[1])
	assert.NotEqual(t, "b", ids[1])
}

func TestRun_Idempotent(t *testing.T) {
	dir := t.TempDir()
	paths := []string{
		writeNotebook(t, dir, "values.ipynb", "", "x", "x"),
		writeRaw(t, dir, "logical.ipynb", `{"cells": [{"id": "x", "metadata": {"id": 7}}], "metadata": {"title": "é"}}`),
	}

	first, _ := newTestRepairer(t, Options{})
	_, err := first.Run(context.Background(), paths)
	require.NoError(t, err)

	before := map[string][]byte{}
	for _, p := range paths {
		data, err := os.ReadFile(p)
		require.NoError(t, err)
		before[p] = data
	}

	second, _ := newTestRepairer(t, Options{})
	outcomes, err := second.Run(context.Background(), paths)
	require.NoError(t, err)

	for _, o := range outcomes {
		assert.Equal(t, StatusUnchanged, o.Status, o.Path)
		assert.Empty(t, o.Changes)

		after, err := os.ReadFile(o.Path)
		require.NoError(t, err)
		assert.Equal(t, before[o.Path], after)
	}
}

func TestRun_NoCellsPassesThrough(t *testing.T) {
	dir := t.TempDir()
	path := writeRaw(t, dir, "starting.ipynb", `{}`)

	r, _ := newTestRepairer(t, Options{})
	outcomes, err := r.Run(context.Background(), []string{path})
	require.NoError(t, err)

	assert.Equal(t, StatusUnchanged, outcomes[0].Status)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, `{}`, string(data), "file must not be rewritten")
}

func TestRun_ValidDocumentNotRewritten(t *testing.T) {
	dir := t.TempDir()
	// Deliberately not in canonical formatting, so a rewrite would be visible
	content := `{"cells":[{"id":"a","metadata":{}},{"id":"b"}],"nbformat":4}`
	path := writeRaw(t, dir, "values.ipynb", content)

	r, _ := newTestRepairer(t, Options{})
	outcomes, err := r.Run(context.Background(), []string{path})
	require.NoError(t, err)
	assert.Equal(t, StatusUnchanged, outcomes[0].Status)
	assert.Equal(t, 2, outcomes[0].Cells)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, content, string(data))
}

func TestRun_PerFileIsolation(t *testing.T) {
	dir := t.TempDir()
	malformed := writeRaw(t, dir, "values.ipynb", `{"cells": [`)
	missing := filepath.Join(dir, "logical.ipynb")
	good := writeNotebook(t, dir, "inputs.ipynb", "")

	r, _ := newTestRepairer(t, Options{})
	outcomes, err := r.Run(context.Background(), []string{malformed, missing, good})
	require.NoError(t, err)
	require.Len(t, outcomes, 3)

	assert.Equal(t, StatusFailed, outcomes[0].Status)
	assert.True(t, errors.Is(outcomes[0].Err, notebook.ErrMalformed))

	assert.Equal(t, StatusSkipped, outcomes[1].Status)
	assert.True(t, errors.Is(outcomes[1].Err, ErrNotFound))

	assert.Equal(t, StatusUpdated, outcomes[2].Status)

	data, err := os.ReadFile(malformed)
	require.NoError(t, err)
	assert.Equal(t, `{"cells": [`, string(data), "malformed file must be left untouched")
}

func TestRun_DryRun(t *testing.T) {
	dir := t.TempDir()
	path := writeNotebook(t, dir, "values.ipynb", "", "a", "a")
	before, err := os.ReadFile(path)
	require.NoError(t, err)

	guard := &recordingGuard{}
	r, _ := newTestRepairer(t, Options{DryRun: true, Guard: guard})
	outcomes, err := r.Run(context.Background(), []string{path})
	require.NoError(t, err)

	assert.Equal(t, StatusWouldUpdate, outcomes[0].Status)
	assert.Len(t, outcomes[0].Changes, 2)
	assert.False(t, guard.called, "guard is not consulted for dry runs")

	after, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestRun_GeneratedIDsAvoidSeenSet(t *testing.T) {
	dir := t.TempDir()
	path := writeNotebook(t, dir, "values.ipynb", "", "")

	// Every short candidate is "00000000", which is already taken
	gen, err := cellid.NewGenerator(cellid.WithRandom(zeroReader{}), cellid.WithMaxAttempts(2))
	require.NoError(t, err)
	seen := cellid.NewMemorySet("00000000")

	r := New(seen, gen, Options{})
	_, err = r.Run(context.Background(), []string{path})
	require.Error(t, err)
	assert.True(t, errors.Is(err, cellid.ErrExhausted))

	// The first cell got the full-length fallback before exhaustion
	n, err := seen.Len(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	// Aborted before writing
	ids := func() int {
		doc, err := notebook.Load(path)
		require.NoError(t, err)
		count := 0
		for _, c := range doc.Cells() {
			if _, ok := c.ID(); ok {
				count++
			}
		}
		return count
	}()
	assert.Equal(t, 0, ids)
}

func TestRun_GuardRejects(t *testing.T) {
	dir := t.TempDir()
	path := writeNotebook(t, dir, "values.ipynb", "")

	guard := &recordingGuard{err: errors.New("dirty")}
	r, _ := newTestRepairer(t, Options{Guard: guard})
	outcomes, err := r.Run(context.Background(), []string{path, filepath.Join(dir, "missing.ipynb")})
	require.Error(t, err)
	assert.Nil(t, outcomes)
	assert.Equal(t, []string{path}, guard.paths, "only existing files are checked")
}

func TestRun_Cancelled(t *testing.T) {
	dir := t.TempDir()
	path := writeNotebook(t, dir, "values.ipynb", "")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	r, _ := newTestRepairer(t, Options{})
	_, err := r.Run(ctx, []string{path})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRun_NamesOwnerOfEachID(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(dir, "week1"), 0755))
	values := writeNotebook(t, dir, "week1/values.ipynb", "a", "")
	logical := writeNotebook(t, dir, "logical.ipynb", "b")

	gen, err := cellid.NewGenerator()
	require.NoError(t, err)
	seen := &ownerRecordingSet{MemorySet: cellid.NewMemorySet(), owners: map[string]string{}}

	_, err = New(seen, gen, Options{Root: dir}).Run(context.Background(), []string{values, logical})
	require.NoError(t, err)

	ids := readIDs(t, values)
	assert.Equal(t, "week1/values.ipynb", seen.owners["a"])
	assert.Equal(t, "week1/values.ipynb", seen.owners[ids[1]], "generated ids are claimed for their file")
	assert.Equal(t, "logical.ipynb", seen.owners["b"])

	// Without a root the path itself is the owner
	seen = &ownerRecordingSet{MemorySet: cellid.NewMemorySet(), owners: map[string]string{}}
	_, err = New(seen, gen, Options{}).Run(context.Background(), []string{logical})
	require.NoError(t, err)
	assert.Equal(t, logical, seen.owners["b"])
}

func TestRun_Observer(t *testing.T) {
	dir := t.TempDir()
	path := writeRaw(t, dir, "values.ipynb", `{"cells": [{"metadata": {"id": "old"}}]}`)
	missing := filepath.Join(dir, "missing.ipynb")

	obs := &recordingObserver{}
	r, _ := newTestRepairer(t, Options{Observer: obs})
	_, err := r.Run(context.Background(), []string{path, missing})
	require.NoError(t, err)

	assert.Equal(t, []string{path}, obs.started)
	require.Len(t, obs.changes, 2)
	assert.Equal(t, ChangeMetadataIDRemoved, obs.changes[0].Kind)
	assert.Equal(t, "old", obs.changes[0].OldID)
	assert.Equal(t, ChangeIDGenerated, obs.changes[1].Kind)
	require.Len(t, obs.finished, 2)
	assert.Equal(t, StatusSkipped, obs.finished[1].Status)
}

func TestRepairCells_InvalidIDsReplaced(t *testing.T) {
	doc, err := notebook.Parse([]byte(`{"cells": [{"id": 5}, {"id": ""}, {"id": "ok"}]}`))
	require.NoError(t, err)

	gen, err := cellid.NewGenerator()
	require.NoError(t, err)

	changes, err := RepairCells(context.Background(), doc, cellid.NewMemorySet(), gen)
	require.NoError(t, err)
	require.Len(t, changes, 2)

	assert.Equal(t, ChangeIDGenerated, changes[0].Kind)
	assert.Equal(t, "5", changes[0].OldID)
	assert.Equal(t, `""`, changes[1].OldID)

	for _, cell := range doc.Cells() {
		_, ok := cell.ID()
		assert.True(t, ok)
	}
}

func TestWriteError(t *testing.T) {
	inner := os.ErrPermission
	err := &WriteError{Path: "/tmp/values.ipynb", Err: inner}
	assert.Contains(t, err.Error(), "failed to write /tmp/values.ipynb")
	assert.True(t, errors.Is(err, os.ErrPermission))
}

func TestChangeString(t *testing.T) {
	assert.Equal(t, "cell 2: duplicate id a -> replaced with b",
		Change{Cell: 2, Kind: ChangeIDReplaced, OldID: "a", NewID: "b"}.String())
	assert.Equal(t, "cell 0: missing id -> generated b",
		Change{Cell: 0, Kind: ChangeIDGenerated, NewID: "b"}.String())
	assert.Equal(t, "cell 1: removed metadata.id x",
		Change{Cell: 1, Kind: ChangeMetadataIDRemoved, OldID: "x"}.String())
}

type zeroReader struct{}

func (zeroReader) Read(p []byte) (int, error) {
	for i := range p {
		p[i] = 0
	}
	return len(p), nil
}

// ownerRecordingSet remembers the owner each accepted id was added for
type ownerRecordingSet struct {
	*cellid.MemorySet
	owners map[string]string
}

func (s *ownerRecordingSet) Add(ctx context.Context, id string) (bool, error) {
	added, err := s.MemorySet.Add(ctx, id)
	if added {
		s.owners[id] = cellid.OwnerFrom(ctx)
	}
	return added, err
}

type recordingGuard struct {
	called bool
	paths  []string
	err    error
}

func (g *recordingGuard) EnsureClean(paths []string) error {
	g.called = true
	g.paths = paths
	return g.err
}

type recordingObserver struct {
	started  []string
	changes  []Change
	finished []Outcome
}

func (o *recordingObserver) FileStarted(path string) { o.started = append(o.started, path) }
func (o *recordingObserver) ChangeApplied(_ string, c Change) { o.changes = append(o.changes, c) }
func (o *recordingObserver) FileFinished(outcome Outcome) { o.finished = append(o.finished, outcome) }
