package report

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/codeworkout/nbfix/internal/repair"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleOutcomes() []repair.Outcome {
	return []repair.Outcome{
		{
			Path:   "/nb/values.ipynb",
			Status: repair.StatusUpdated,
			Cells:  4,
			Changes: []repair.Change{
				{Cell: 1, Kind: repair.ChangeIDReplaced, OldID: "a", NewID: "1f2e3d4c"},
				{Cell: 2, Kind: repair.ChangeIDGenerated, NewID: "9a8b7c6d"},
			},
		},
		{Path: "/nb/logical.ipynb", Status: repair.StatusUnchanged, Cells: 3},
		{Path: "/nb/inputs.ipynb", Status: repair.StatusSkipped, Err: repair.ErrNotFound},
		{Path: "/nb/starting.ipynb", Status: repair.StatusFailed, Err: errors.New("malformed notebook: unexpected end of JSON input")},
	}
}

func TestFormatTable(t *testing.T) {
	t.Run("renders rows and summary", func(t *testing.T) {
		var buf bytes.Buffer
		n := FormatTable(&buf, sampleOutcomes())
		assert.Equal(t, 4, n)

		out := buf.String()
		assert.Contains(t, out, "FILE")
		assert.Contains(t, out, "values.ipynb")
		assert.Contains(t, out, "1 replaced, 1 generated, 0 meta.id")
		assert.Contains(t, out, "file not found")
		assert.Contains(t, out, "malformed notebook: unexpected end of...")
		assert.Contains(t, out, "1 updated, 1 unchanged, 1 skipped, 1 failed (2 changes)")

		// Header, separator, 4 rows, blank line, summary
		lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
		assert.Len(t, lines, 8)
	})

	t.Run("empty input", func(t *testing.T) {
		var buf bytes.Buffer
		assert.Equal(t, 0, FormatTable(&buf, nil))
		assert.Equal(t, "No notebooks processed\n", buf.String())
	})
}

func TestFormatJSONL(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, FormatJSONL(&buf, sampleOutcomes()))

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	require.Len(t, lines, 4)

	var first Record
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &first))
	assert.Equal(t, "/nb/values.ipynb", first.Path)
	assert.Equal(t, repair.StatusUpdated, first.Status)
	require.Len(t, first.Changes, 2)
	assert.Equal(t, "a", first.Changes[0].OldID)
	assert.Empty(t, first.Error)

	var skipped Record
	require.NoError(t, json.Unmarshal([]byte(lines[2]), &skipped))
	assert.Equal(t, "file not found", skipped.Error)
	assert.NotContains(t, lines[2], "changes")
}

func TestParseOutputFormat(t *testing.T) {
	f, err := ParseOutputFormat("jsonl")
	require.NoError(t, err)
	assert.Equal(t, OutputFormatJSONL, f)

	_, err = ParseOutputFormat("yaml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown output format")
}

func TestSummary(t *testing.T) {
	s := Summarize(sampleOutcomes())
	assert.Equal(t, Summary{Updated: 1, Unchanged: 1, Skipped: 1, Failed: 1, Changes: 2}, s)
	assert.True(t, s.Pending())

	clean := Summarize([]repair.Outcome{{Status: repair.StatusUnchanged}})
	assert.False(t, clean.Pending())
	assert.Equal(t, "1 unchanged (0 changes)", clean.String())

	dry := Summarize([]repair.Outcome{{Status: repair.StatusWouldUpdate, Changes: []repair.Change{{Kind: repair.ChangeIDGenerated}}}})
	assert.True(t, dry.Pending())
	assert.Equal(t, "1 would be updated (1 change)", dry.String())

	assert.Equal(t, "0 notebooks", Summary{}.String())
}
