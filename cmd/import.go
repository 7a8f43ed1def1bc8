package main

import (
	"context"
	"fmt"
	"io"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/visit-planner/internal/cli"
	"github.com/sells-group/visit-planner/internal/sheet"
	"github.com/sells-group/visit-planner/internal/store"
)

var (
	importRep       string
	importSheet     string
	importCharset   string
	importDelimiter string
	importDryRun    bool
)

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Import candidates or anchors from an .xlsx or .csv sheet",
}

var importCandidatesCmd = &cobra.Command{
	Use:   "candidates <file>",
	Short: "Import prospects",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runImport(cmd, args[0], "candidates", func(ctx context.Context, st store.Store, rows [][]string) (int64, []sheet.RowIssue, error) {
			cands, issues, err := sheet.ParseCandidates(rows, importRep)
			if err != nil || importDryRun || st == nil {
				return int64(len(cands)), issues, err
			}
			n, err := st.UpsertCandidates(ctx, cands)
			return n, issues, err
		})
	},
}

var importAnchorsCmd = &cobra.Command{
	Use:   "anchors <file>",
	Short: "Import recurring anchor clients",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runImport(cmd, args[0], "anchors", func(ctx context.Context, st store.Store, rows [][]string) (int64, []sheet.RowIssue, error) {
			anchors, issues, err := sheet.ParseAnchors(rows, importRep)
			if err != nil || importDryRun || st == nil {
				return int64(len(anchors)), issues, err
			}
			n, err := st.UpsertAnchors(ctx, anchors)
			return n, issues, err
		})
	},
}

type importFunc func(ctx context.Context, st store.Store, rows [][]string) (int64, []sheet.RowIssue, error)

func runImport(cmd *cobra.Command, path, kind string, fn importFunc) error {
	ctx := cmd.Context()

	opts := sheet.ReadOptions{SheetName: importSheet, Charset: importCharset}
	if importDelimiter != "" {
		r := []rune(importDelimiter)
		if len(r) != 1 {
			return eris.Errorf("--delimiter must be a single character, got %q", importDelimiter)
		}
		opts.Delimiter = r[0]
	}
	rows, err := sheet.ReadRows(path, opts)
	if err != nil {
		return err
	}

	var st store.Store
	if !importDryRun {
		if err := cfg.Validate("store"); err != nil {
			return err
		}
		if st, err = initStore(ctx, cfg.Store); err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := st.Migrate(ctx); err != nil {
			return eris.Wrap(err, "migrate store")
		}
	}

	n, issues, err := fn(ctx, st, rows)
	if err != nil {
		return eris.Wrapf(err, "import %s", kind)
	}
	reportImport(cmd.OutOrStdout(), kind, n, issues, importDryRun)

	zap.L().Info("import complete",
		zap.String("kind", kind),
		zap.String("file", path),
		zap.Int64("rows", n),
		zap.Int("skipped", len(issues)),
		zap.Bool("dry_run", importDryRun),
	)
	return nil
}

func reportImport(w io.Writer, kind string, n int64, issues []sheet.RowIssue, dryRun bool) {
	for _, issue := range issues {
		fmt.Fprintln(w, cli.FormatWarning(issue.String()))
	}
	verb := "Imported"
	if dryRun {
		verb = "Validated"
	}
	fmt.Fprintln(w, cli.FormatSuccess(fmt.Sprintf("%s %d %s, skipped %d row(s)", verb, n, kind, len(issues))))
}

func init() {
	importCmd.PersistentFlags().StringVar(&importRep, "rep", "", "rep id for rows without a rep_id column")
	importCmd.PersistentFlags().StringVar(&importSheet, "sheet", "", "xlsx sheet name (default first sheet)")
	importCmd.PersistentFlags().StringVar(&importCharset, "charset", "", "csv character set, e.g. windows-1252")
	importCmd.PersistentFlags().StringVar(&importDelimiter, "delimiter", "", "csv field delimiter (default ,)")
	importCmd.PersistentFlags().BoolVar(&importDryRun, "dry-run", false, "parse and validate without writing")
	importCmd.AddCommand(importCandidatesCmd, importAnchorsCmd)
	rootCmd.AddCommand(importCmd)
}
