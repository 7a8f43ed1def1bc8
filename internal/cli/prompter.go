package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/visit-planner/internal/model"
)

// Prompter asks the user to decide on suggestions interactively.
type Prompter struct {
	reader *bufio.Reader
	writer io.Writer
}

// NewPrompter creates a prompter reading answers from r and writing
// prompts to w.
func NewPrompter(r io.Reader, w io.Writer) *Prompter {
	return &Prompter{reader: bufio.NewReader(r), writer: w}
}

// DecideAll prompts for every suggestion in order.
func (p *Prompter) DecideAll(ctx context.Context, suggestions []model.Suggestion) ([]model.Decision, error) {
	decisions := make([]model.Decision, 0, len(suggestions))
	for i, s := range suggestions {
		fmt.Fprintln(p.writer, SubtleStyle.Render(fmt.Sprintf("[%d/%d]", i+1, len(suggestions))))
		d, err := p.Decide(ctx, s)
		if err != nil {
			return decisions, err
		}
		decisions = append(decisions, d)
	}
	return decisions, nil
}

// Decide shows one suggestion and reads the user's decision.
func (p *Prompter) Decide(ctx context.Context, s model.Suggestion) (model.Decision, error) {
	fmt.Fprintln(p.writer, RenderBox(string(s.Kind), FormatSuggestion(s)))

	if s.Kind == model.SuggestionNoNearby {
		fmt.Fprintln(p.writer, "  [A] Acknowledge")
		if _, err := p.promptChoice(ctx, "a"); err != nil {
			return model.Decision{}, err
		}
		return model.Decision{SuggestionID: s.ID, Accepted: true}, nil
	}

	fmt.Fprintln(p.writer, "  [A] Accept all")
	fmt.Fprintln(p.writer, "  [S] Select some")
	fmt.Fprintln(p.writer, "  [R] Reject all")
	choice, err := p.promptChoice(ctx, "a", "s", "r")
	if err != nil {
		return model.Decision{}, err
	}

	switch choice {
	case "a":
		ids := make([]string, len(s.Candidates))
		for i, c := range s.Candidates {
			ids[i] = c.Candidate.ID
		}
		fmt.Fprintln(p.writer, FormatSuccess(fmt.Sprintf("Accepted %d prospect(s)", len(ids))))
		return model.Decision{SuggestionID: s.ID, Accepted: true, CandidateIDs: ids}, nil
	case "s":
		ids, err := p.promptSubset(ctx, s.Candidates)
		if err != nil {
			return model.Decision{}, err
		}
		if len(ids) == 0 {
			fmt.Fprintln(p.writer, FormatWarning("Nothing selected, rejecting"))
			return model.Decision{SuggestionID: s.ID}, nil
		}
		fmt.Fprintln(p.writer, FormatSuccess(fmt.Sprintf("Accepted %d prospect(s)", len(ids))))
		return model.Decision{SuggestionID: s.ID, Accepted: true, CandidateIDs: ids}, nil
	default:
		fmt.Fprintln(p.writer, FormatWarning("Rejected"))
		return model.Decision{SuggestionID: s.ID}, nil
	}
}

// promptSubset reads a list of 1-based candidate numbers.
func (p *Prompter) promptSubset(ctx context.Context, cands []model.NearbyCandidate) ([]string, error) {
	for {
		fmt.Fprint(p.writer, FormatPrompt("Numbers (e.g. 1,3)"))
		line, err := p.readLine(ctx)
		if err != nil {
			return nil, err
		}
		ids, err := parseSelection(line, cands)
		if err != nil {
			fmt.Fprintln(p.writer, FormatError(err.Error()))
			continue
		}
		return ids, nil
	}
}

func parseSelection(line string, cands []model.NearbyCandidate) ([]string, error) {
	seen := make(map[int]bool)
	var ids []string
	for _, f := range strings.FieldsFunc(line, func(r rune) bool { return r == ',' || r == ' ' }) {
		n, err := strconv.Atoi(f)
		if err != nil || n < 1 || n > len(cands) {
			return nil, eris.Errorf("cli: %q is not a number between 1 and %d", f, len(cands))
		}
		if seen[n] {
			continue
		}
		seen[n] = true
		ids = append(ids, cands[n-1].Candidate.ID)
	}
	return ids, nil
}

// promptChoice re-prompts until the answer's first letter is one of valid.
func (p *Prompter) promptChoice(ctx context.Context, valid ...string) (string, error) {
	for {
		fmt.Fprint(p.writer, FormatPrompt("Choice"))
		line, err := p.readLine(ctx)
		if err != nil {
			return "", err
		}
		line = strings.ToLower(strings.TrimSpace(line))
		if line != "" {
			for _, v := range valid {
				if line[:1] == v {
					return v, nil
				}
			}
		}
		fmt.Fprintln(p.writer, FormatError("Invalid choice, try again"))
	}
}

// readLine reads one line, returning early when ctx is cancelled.
func (p *Prompter) readLine(ctx context.Context) (string, error) {
	type result struct {
		line string
		err  error
	}
	ch := make(chan result, 1)
	go func() {
		line, err := p.reader.ReadString('\n')
		ch <- result{line, err}
	}()

	select {
	case <-ctx.Done():
		return "", eris.Wrap(ctx.Err(), "cli: prompt cancelled")
	case r := <-ch:
		if r.err != nil && !(r.err == io.EOF && r.line != "") {
			return "", eris.Wrap(r.err, "cli: read input")
		}
		return strings.TrimSpace(r.line), nil
	}
}
