package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/stellarlinkco/persona-ssr/internal/store"
)

func newSeedCmd(st *cliState) *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Seed an empty store with starter personas, criteria and a template",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			stor, err := st.openStore()
			if err != nil {
				return err
			}
			defer stor.Close()

			summary, err := store.SeedDefaults(cmd.Context(), stor)
			if err != nil {
				return err
			}
			if !summary.Seeded {
				fmt.Fprintln(cmd.OutOrStdout(), "skipped: data already present")
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "seeded: personas=%d criteria=%d templates=%d\n",
				summary.Personas, summary.Criteria, summary.Templates)
			return nil
		},
	}
}
