package main

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/stellarlinkco/persona-ssr/internal/benchmark"
)

func newEvaluateCmd(st *cliState) *cobra.Command {
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "evaluate",
		Short: "Compare completed tasks against human benchmark distributions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			stor, err := st.openStore()
			if err != nil {
				return err
			}
			defer stor.Close()

			ev := &benchmark.Evaluator{
				Store:   stor,
				Ceiling: st.cfg.Evaluation.Ceiling,
				Trials:  st.cfg.Evaluation.Trials,
				Seed:    st.cfg.Evaluation.Seed,
			}
			report, err := ev.Evaluate(cmd.Context())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if jsonOut {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(report)
			}

			tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "BENCHMARK\tTASK\tCRITERION\tKS\tHUMAN\tSYNTH\tN")
			for _, m := range report.Matches {
				fmt.Fprintf(tw, "%d\t%s\t%s\t%.3f\t%.3f\t%.3f\t%d\n",
					m.BenchmarkID, m.Title, m.CriterionLabel, m.KSSimilarity, m.HumanMean, m.SyntheticMean, m.SampleSize)
			}
			if err := tw.Flush(); err != nil {
				return err
			}

			if !report.Defined {
				fmt.Fprintf(out, "correlation undefined: %d matched pair(s), need at least 2\n", len(report.Matches))
				return nil
			}
			ceiling := "configured"
			if report.SimulatedCeiling {
				ceiling = "simulated"
			}
			fmt.Fprintf(out, "correlation=%.3f ceiling=%.3f (%s) attainment=%.3f\n",
				report.Correlation, report.Ceiling, ceiling, report.Attainment)
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOut, "json", false, "emit the full report as JSON")
	return cmd
}
