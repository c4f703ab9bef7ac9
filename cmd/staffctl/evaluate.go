package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/supportdesk/backend/internal/corpus"
	"github.com/supportdesk/backend/internal/evaluation"
	"github.com/supportdesk/backend/internal/matcher"
)

var (
	evalCorpusPath string
	evalThreshold  float64
	evalShowMisses bool
)

func init() {
	rootCmd.AddCommand(evaluateCmd)

	evaluateCmd.Flags().StringVar(&evalCorpusPath, "corpus", "", "corpus CSV (overrides corpus.path)")
	evaluateCmd.Flags().Float64Var(&evalThreshold, "threshold", -1, "match threshold (default: matcher.threshold)")
	evaluateCmd.Flags().BoolVar(&evalShowMisses, "misrouted", false, "List misrouted questions")
}

var evaluateCmd = &cobra.Command{
	Use:   "evaluate",
	Short: "Replay corpus questions through the matcher",
	Long: `Replay every question in the corpus question column through the matcher and
report how many return their own response, another response, or escalate.

Examples:
  staffctl evaluate
  staffctl evaluate --threshold 0.5 --misrouted
  staffctl evaluate --json`,
	Args: cobra.NoArgs,
	RunE: runEvaluate,
}

func runEvaluate(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	path := cfg.Corpus.Path
	if evalCorpusPath != "" {
		path = evalCorpusPath
	}
	threshold := cfg.Matcher.Threshold
	if evalThreshold >= 0 {
		threshold = evalThreshold
	}

	pairs, err := corpus.LoadFile(path, corpus.LoadOptions{
		ResponseColumn: cfg.Corpus.ResponseColumn,
		QuestionColumn: cfg.Corpus.QuestionColumn,
	})
	if err != nil {
		return err
	}

	index, err := corpus.NewIndex(pairs)
	if err != nil {
		return err
	}

	m, err := matcher.New(index, threshold)
	if err != nil {
		return err
	}

	report, err := evaluation.NewEvaluator(m).Run()
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if outputJSON {
		return writeJSON(out, report)
	}

	fmt.Fprint(out, evaluation.GenerateReport(report))
	if evalShowMisses {
		for _, item := range report.Misrouted {
			fmt.Fprintf(out, "  #%d -> #%d (%.3f) %s\n", item.Entry, item.Matched, item.Score, truncate(item.Question, 60))
		}
	}
	return nil
}
