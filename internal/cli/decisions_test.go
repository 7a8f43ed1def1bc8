package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/visit-planner/internal/model"
)

func TestReadDecisions(t *testing.T) {
	in := `
rep_id: rep-1
week_start: "2026-10-19"
decisions:
  - suggestion_id: s-low
    accepted: true
    candidate_ids: [c1, c3]
  - suggestion_id: s-none
    accepted: true
`
	f, err := ReadDecisions(strings.NewReader(in))
	require.NoError(t, err)
	assert.Equal(t, "rep-1", f.RepID)
	assert.Equal(t, "2026-10-19", f.WeekStart)
	assert.Equal(t, []model.Decision{
		{SuggestionID: "s-low", Accepted: true, CandidateIDs: []string{"c1", "c3"}},
		{SuggestionID: "s-none", Accepted: true},
	}, f.Decisions)
}

func TestReadDecisions_Empty(t *testing.T) {
	f, err := ReadDecisions(strings.NewReader(""))
	require.NoError(t, err)
	assert.Empty(t, f.Decisions)
}

func TestReadDecisions_UnknownField(t *testing.T) {
	_, err := ReadDecisions(strings.NewReader("decisions:\n  - suggestion_id: s1\n    accept: true\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse decisions")
}

func TestReadDecisions_MissingID(t *testing.T) {
	_, err := ReadDecisions(strings.NewReader("decisions:\n  - accepted: true\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decision 1 has no suggestion_id")
}

func TestReadDecisions_EmptyAcceptedSubset(t *testing.T) {
	_, err := ReadDecisions(strings.NewReader("decisions:\n  - suggestion_id: s1\n    accepted: true\n    candidate_ids: []\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decision 1 accepts an empty candidate_ids list")

	f, err := ReadDecisions(strings.NewReader("decisions:\n  - suggestion_id: s1\n    accepted: false\n    candidate_ids: []\n"))
	require.NoError(t, err)
	assert.False(t, f.Decisions[0].Accepted)
}

func TestWriteDecisionTemplate_RoundTrip(t *testing.T) {
	var buf bytes.Buffer
	err := WriteDecisionTemplate(&buf, "rep-1", monday, []model.Suggestion{lowPotential(), noNearby()})
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, "# LOW_POTENTIAL 2026-10-19, anchor Harbor Clinic")
	assert.Contains(t, out, "#   c1  Bayside Dental (high, 1.2 km)")
	assert.Contains(t, out, "# NO_NEARBY 2026-10-21, anchor a2")

	path := filepath.Join(t.TempDir(), "decisions.yaml")
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o600))

	f, err := LoadDecisions(path)
	require.NoError(t, err)
	assert.Equal(t, "rep-1", f.RepID)
	assert.Equal(t, "2026-10-19", f.WeekStart)
	require.Len(t, f.Decisions, 2)
	assert.Equal(t, model.Decision{SuggestionID: "s-low"}, f.Decisions[0])
	assert.Equal(t, model.Decision{SuggestionID: "s-none"}, f.Decisions[1])
}

func TestLoadDecisions_Missing(t *testing.T) {
	_, err := LoadDecisions(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}
