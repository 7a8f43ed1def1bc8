package cli

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/visit-planner/internal/model"
)

// DecisionFile is the on-disk form of a batch of decisions.
type DecisionFile struct {
	RepID     string           `yaml:"rep_id"`
	WeekStart string           `yaml:"week_start"`
	Decisions []model.Decision `yaml:"decisions"`
}

// ReadDecisions parses a decision file.
func ReadDecisions(r io.Reader) (*DecisionFile, error) {
	var f DecisionFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		if errors.Is(err, io.EOF) {
			return &DecisionFile{}, nil
		}
		return nil, eris.Wrap(err, "cli: parse decisions")
	}
	for i, d := range f.Decisions {
		if err := d.Validate(); err != nil {
			return nil, eris.Errorf("cli: decision %d %v", i+1, err)
		}
	}
	return &f, nil
}

// LoadDecisions reads a decision file from path.
func LoadDecisions(path string) (*DecisionFile, error) {
	fh, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "cli: open decisions %s", path)
	}
	defer fh.Close() //nolint:errcheck
	return ReadDecisions(fh)
}

// WriteDecisionTemplate writes a decision file with one rejecting entry
// per suggestion. Each entry carries a comment describing the suggestion
// so the file can be edited by hand.
func WriteDecisionTemplate(w io.Writer, repID string, weekStart time.Time, suggestions []model.Suggestion) error {
	f := DecisionFile{
		RepID:     repID,
		WeekStart: weekStart.Format(model.DateLayout),
		Decisions: make([]model.Decision, len(suggestions)),
	}
	for i, s := range suggestions {
		f.Decisions[i] = model.Decision{SuggestionID: s.ID}
	}

	var doc yaml.Node
	if err := doc.Encode(f); err != nil {
		return eris.Wrap(err, "cli: encode decisions")
	}
	if list := mappingValue(&doc, "decisions"); list != nil {
		for i, item := range list.Content {
			item.HeadComment = templateComment(suggestions[i])
		}
	}

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(&doc); err != nil {
		return eris.Wrap(err, "cli: write decisions")
	}
	return eris.Wrap(enc.Close(), "cli: write decisions")
}

func mappingValue(n *yaml.Node, key string) *yaml.Node {
	for i := 0; i+1 < len(n.Content); i += 2 {
		if n.Content[i].Value == key {
			return n.Content[i+1]
		}
	}
	return nil
}

func templateComment(s model.Suggestion) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s %s, anchor %s", s.Kind, s.Date.Format(model.DateLayout), anchorLabel(s.Anchor))
	for _, c := range s.Candidates {
		fmt.Fprintf(&b, "\n#   %s  %s (%s, %.1f km)", c.Candidate.ID, candidateLabel(c.Candidate), c.Candidate.PotentialTier, c.DistanceKM)
	}
	return b.String()
}
