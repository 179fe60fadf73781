package main

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/stellarlinkco/persona-ssr/internal/benchmark"
)

func newAggregateCmd(st *cliState) *cobra.Command {
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "aggregate",
		Short: "Average recorded ratings by gender, age and criterion",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			stor, err := st.openStore()
			if err != nil {
				return err
			}
			defer stor.Close()

			aggregates, err := benchmark.AggregateScores(cmd.Context(), stor)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if jsonOut {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(aggregates)
			}

			tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "GENDER\tAGE\tCRITERION\tAVERAGE\tSAMPLES")
			for _, a := range aggregates {
				fmt.Fprintf(tw, "%s\t%d\t%s\t%.3f\t%d\n", a.Gender, a.Age, a.Criterion, a.Average, a.Samples)
			}
			return tw.Flush()
		},
	}

	cmd.Flags().BoolVar(&jsonOut, "json", false, "emit aggregates as JSON")
	return cmd
}
