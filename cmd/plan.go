package main

import (
	"encoding/json"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/visit-planner/internal/cli"
	"github.com/sells-group/visit-planner/internal/model"
	"github.com/sells-group/visit-planner/internal/sheet"
)

var (
	planRep          string
	planWeek         string
	planJSON         bool
	planDecisionsOut string
	planDecisionsIn  string
	planOutput       string
)

var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Plan a rep's week",
}

var planAnalyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "List the suggestions that need a decision before execute",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		week, err := planTarget()
		if err != nil {
			return err
		}

		var decisions []model.Decision
		if planDecisionsIn != "" {
			if decisions, err = loadDecisions(planDecisionsIn, planRep, week); err != nil {
				return err
			}
		}

		engine, st, err := initEngine(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		res, err := engine.Analyze(ctx, planRep, week, decisions...)
		if err != nil {
			return err
		}

		if planDecisionsOut != "" {
			if err := writeTemplate(planDecisionsOut, res.RepID, res.WeekStart, res.Suggestions); err != nil {
				return err
			}
			zap.L().Info("decision template written", zap.String("path", planDecisionsOut))
		}

		out := cmd.OutOrStdout()
		if planJSON {
			return writeJSON(out, res)
		}
		if err := cli.RenderAnalyze(out, res); err != nil {
			return err
		}
		return cli.RenderWarnings(out, res.Trace)
	},
}

var planExecuteCmd = &cobra.Command{
	Use:   "execute",
	Short: "Build and persist the week schedule",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		week, err := planTarget()
		if err != nil {
			return err
		}
		if err := checkOutputPath(planOutput); err != nil {
			return err
		}

		var decisions []model.Decision
		if planDecisionsIn != "" {
			if decisions, err = loadDecisions(planDecisionsIn, planRep, week); err != nil {
				return err
			}
		}

		engine, st, err := initEngine(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		res, err := engine.Execute(ctx, planRep, week, decisions)
		if err != nil {
			return err
		}
		if err := exportSchedule(planOutput, res.Schedule); err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if planJSON {
			return writeJSON(out, res)
		}
		return cli.RenderExecute(out, res)
	},
}

var planInteractiveCmd = &cobra.Command{
	Use:   "interactive",
	Short: "Analyze, decide each suggestion on the terminal, then execute",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		week, err := planTarget()
		if err != nil {
			return err
		}
		if err := checkOutputPath(planOutput); err != nil {
			return err
		}

		engine, st, err := initEngine(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		out := cmd.OutOrStdout()
		analysis, err := engine.Analyze(ctx, planRep, week)
		if err != nil {
			return err
		}
		if err := cli.RenderAnalyze(out, analysis); err != nil {
			return err
		}

		prompter := cli.NewPrompter(cmd.InOrStdin(), out)
		decisions, err := prompter.DecideAll(ctx, analysis.Suggestions)
		if err != nil {
			return err
		}

		res, err := engine.Execute(ctx, planRep, analysis.WeekStart, decisions)
		if err != nil {
			return err
		}
		if err := exportSchedule(planOutput, res.Schedule); err != nil {
			return err
		}
		return cli.RenderExecute(out, res)
	},
}

// planTarget validates --rep and resolves --week.
func planTarget() (time.Time, error) {
	if strings.TrimSpace(planRep) == "" {
		return time.Time{}, eris.New("--rep is required")
	}
	return parseWeek(planWeek, time.Now())
}

// parseWeek parses a YYYY-MM-DD date. An empty value selects the Monday
// after now.
func parseWeek(s string, now time.Time) (time.Time, error) {
	if s == "" {
		d := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
		offset := (8 - int(d.Weekday())) % 7
		if offset == 0 {
			offset = 7
		}
		return d.AddDate(0, 0, offset), nil
	}
	t, err := time.Parse(model.DateLayout, s)
	if err != nil {
		return time.Time{}, eris.Errorf("--week must be a YYYY-MM-DD date, got %q", s)
	}
	return t, nil
}

// loadDecisions reads a decision file and checks that it was written for
// the same rep and week.
func loadDecisions(path, rep string, week time.Time) ([]model.Decision, error) {
	f, err := cli.LoadDecisions(path)
	if err != nil {
		return nil, err
	}
	if f.RepID != "" && f.RepID != rep {
		return nil, eris.Errorf("decision file %s is for rep %s, not %s", path, f.RepID, rep)
	}
	if f.WeekStart != "" {
		fw, err := time.Parse(model.DateLayout, f.WeekStart)
		if err != nil {
			return nil, eris.Errorf("decision file %s: bad week_start %q", path, f.WeekStart)
		}
		if !mondayOf(fw).Equal(mondayOf(week)) {
			return nil, eris.Errorf("decision file %s is for the week of %s", path, f.WeekStart)
		}
	}
	return f.Decisions, nil
}

func mondayOf(t time.Time) time.Time {
	d := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	return d.AddDate(0, 0, -((int(d.Weekday()) + 6) % 7))
}

func writeTemplate(path, rep string, week time.Time, suggestions []model.Suggestion) error {
	f, err := os.Create(path)
	if err != nil {
		return eris.Wrapf(err, "create %s", path)
	}
	if err := cli.WriteDecisionTemplate(f, rep, week, suggestions); err != nil {
		f.Close() //nolint:errcheck
		return err
	}
	return eris.Wrapf(f.Close(), "close %s", path)
}

func checkOutputPath(path string) error {
	if path == "" {
		return nil
	}
	_, err := sheet.ExportFormat(path)
	return err
}

func exportSchedule(path string, s model.WeekSchedule) error {
	if path == "" {
		return nil
	}
	format, err := sheet.ExportFormat(path)
	if err != nil {
		return err
	}
	if format == "xlsx" {
		err = sheet.WriteScheduleXLSX(path, s)
	} else {
		err = writeCSVFile(path, s)
	}
	if err != nil {
		return err
	}
	zap.L().Info("schedule exported", zap.String("path", path), zap.String("format", format))
	return nil
}

func writeCSVFile(path string, s model.WeekSchedule) error {
	f, err := os.Create(path)
	if err != nil {
		return eris.Wrapf(err, "create %s", path)
	}
	if err := sheet.WriteScheduleCSV(f, s); err != nil {
		f.Close() //nolint:errcheck
		return err
	}
	return eris.Wrapf(f.Close(), "close %s", path)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return eris.Wrap(enc.Encode(v), "encode json")
}

func init() {
	planCmd.PersistentFlags().StringVar(&planRep, "rep", "", "rep id (required)")
	planCmd.PersistentFlags().StringVar(&planWeek, "week", "", "any date of the target week, YYYY-MM-DD (default next Monday)")
	_ = planCmd.MarkPersistentFlagRequired("rep")

	planAnalyzeCmd.Flags().BoolVar(&planJSON, "json", false, "print the result as JSON")
	planAnalyzeCmd.Flags().StringVar(&planDecisionsIn, "decisions", "", "decision file already answered")
	planAnalyzeCmd.Flags().StringVar(&planDecisionsOut, "decisions-out", "", "write a decision template for the pending suggestions")

	planExecuteCmd.Flags().BoolVar(&planJSON, "json", false, "print the result as JSON")
	planExecuteCmd.Flags().StringVar(&planDecisionsIn, "decisions", "", "decision file (YAML)")
	planExecuteCmd.Flags().StringVar(&planOutput, "output", "", "export the schedule to .xlsx or .csv")

	planInteractiveCmd.Flags().StringVar(&planOutput, "output", "", "export the schedule to .xlsx or .csv")

	planCmd.AddCommand(planAnalyzeCmd, planExecuteCmd, planInteractiveCmd)
	rootCmd.AddCommand(planCmd)
}
