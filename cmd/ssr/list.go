package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/stellarlinkco/persona-ssr/internal/oracle"
)

func newListCmd(st *cliState) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List stored personas, criteria, templates, tasks or sessions",
		Args:  cobra.NoArgs,
	}

	cmd.AddCommand(newListPersonasCmd(st))
	cmd.AddCommand(newListCriteriaCmd(st))
	cmd.AddCommand(newListTemplatesCmd(st))
	cmd.AddCommand(newListTasksCmd(st))
	cmd.AddCommand(newListSessionsCmd(st))
	return cmd
}

func newListPersonasCmd(st *cliState) *cobra.Command {
	return &cobra.Command{
		Use:   "personas",
		Short: "List personas",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			stor, err := st.openStore()
			if err != nil {
				return err
			}
			defer stor.Close()

			personas, err := stor.ListPersonas(cmd.Context())
			if err != nil {
				return err
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tNAME\tAGE\tGENDER\tNOTES")
			for _, p := range personas {
				fmt.Fprintf(tw, "%d\t%s\t%d\t%s\t%s\n", p.ID, p.Name, p.Age, p.Gender, p.Notes)
			}
			return tw.Flush()
		},
	}
}

func newListCriteriaCmd(st *cliState) *cobra.Command {
	return &cobra.Command{
		Use:   "criteria",
		Short: "List rating criteria",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			stor, err := st.openStore()
			if err != nil {
				return err
			}
			defer stor.Close()

			criteria, err := stor.ListCriteria(cmd.Context())
			if err != nil {
				return err
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tLABEL\tQUESTION")
			for _, c := range criteria {
				fmt.Fprintf(tw, "%d\t%s\t%s\n", c.ID, c.Label, c.Question)
			}
			return tw.Flush()
		},
	}
}

func newListTemplatesCmd(st *cliState) *cobra.Command {
	return &cobra.Command{
		Use:   "templates",
		Short: "List prompt templates",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			stor, err := st.openStore()
			if err != nil {
				return err
			}
			defer stor.Close()

			templates, err := stor.ListTemplates(cmd.Context())
			if err != nil {
				return err
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tNAME\tDESCRIPTION")
			for _, t := range templates {
				fmt.Fprintf(tw, "%d\t%s\t%s\n", t.ID, t.Name, t.Description)
			}
			return tw.Flush()
		},
	}
}

func newListTasksCmd(st *cliState) *cobra.Command {
	var status string

	cmd := &cobra.Command{
		Use:   "tasks",
		Short: "List evaluation tasks",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			stor, err := st.openStore()
			if err != nil {
				return err
			}
			defer stor.Close()

			tasks, err := stor.ListTasks(cmd.Context())
			if err != nil {
				return err
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tTITLE\tSTATUS\tMETHOD\tSESSION\tERROR")
			for _, t := range tasks {
				if status != "" && string(t.Status) != status {
					continue
				}
				fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\n", t.ID, t.Title, t.Status, t.Method, t.SessionLabel, t.Error)
			}
			return tw.Flush()
		},
	}

	cmd.Flags().StringVar(&status, "status", "", "only show tasks with this status")
	return cmd
}

func newListSessionsCmd(st *cliState) *cobra.Command {
	return &cobra.Command{
		Use:   "sessions",
		Short: "List oracle session artifacts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := st.load(); err != nil {
				return err
			}
			files, err := oracle.ListSessionFiles(oracle.SessionRootFromConfig(st.cfg))
			if err != nil {
				return err
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "PATH\tMODIFIED")
			for _, f := range files {
				fmt.Fprintf(tw, "%s\t%s\n", f.Path, f.Modified.Format("2006-01-02 15:04:05"))
			}
			return tw.Flush()
		},
	}
}
