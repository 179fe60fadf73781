package main

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"github.com/stellarlinkco/persona-ssr/internal/oracle"
	"github.com/stellarlinkco/persona-ssr/internal/queue"
	"github.com/stellarlinkco/persona-ssr/internal/store"
)

var errTasksFailed = errors.New("ssr: tasks failed")

func newWorkCmd(st *cliState) *cobra.Command {
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:   "work [task-id...]",
		Short: "Process pending evaluation tasks and wait for them to finish",
		Args:  cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWork(cmd, st, args, timeout)
		},
	}

	cmd.Flags().DurationVar(&timeout, "timeout", 10*time.Minute, "deadline for the whole batch")
	return cmd
}

func runWork(cmd *cobra.Command, st *cliState, args []string, timeout time.Duration) error {
	if err := st.load(); err != nil {
		return err
	}

	stor, err := store.Open(st.cfg)
	if err != nil {
		return err
	}
	defer stor.Close()

	orc, err := oracle.FromConfig(st.cfg)
	if err != nil {
		return err
	}

	q, err := queue.New(stor, orc, st.cfg)
	if err != nil {
		return err
	}
	q.Start()
	defer q.Stop()

	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()

	ids := make(map[int64]struct{})
	pending, err := stor.ListPendingTasks(ctx)
	if err != nil {
		return err
	}
	for _, t := range pending {
		ids[t.ID] = struct{}{}
	}
	for _, arg := range args {
		id, err := strconv.ParseInt(arg, 10, 64)
		if err != nil {
			return fmt.Errorf("work: invalid task id %q", arg)
		}
		ids[id] = struct{}{}
	}
	if len(ids) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "no pending tasks")
		return nil
	}

	ordered := make([]int64, 0, len(ids))
	for id := range ids {
		ordered = append(ordered, id)
	}
	sort.Slice(ordered, func(i, j int) bool { return ordered[i] < ordered[j] })

	for _, id := range ordered {
		if err := q.Enqueue(ctx, id); err != nil {
			return err
		}
	}

	done, err := awaitTasks(ctx, stor, ordered)
	if err != nil {
		return err
	}

	anyFailed := false
	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSTATUS\tERROR")
	for _, id := range ordered {
		t := done[id]
		fmt.Fprintf(tw, "%d\t%s\t%s\n", t.ID, t.Status, t.Error)
		if t.Status == store.StatusFailed {
			anyFailed = true
		}
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	if anyFailed {
		return errTasksFailed
	}
	return nil
}

// awaitTasks polls until every task reaches a terminal status or the
// context expires.
func awaitTasks(ctx context.Context, stor store.Store, ids []int64) (map[int64]*store.Task, error) {
	done := make(map[int64]*store.Task, len(ids))
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		for _, id := range ids {
			if _, ok := done[id]; ok {
				continue
			}
			t, err := stor.GetTask(ctx, id)
			if err != nil {
				return nil, err
			}
			if t.Status == store.StatusCompleted || t.Status == store.StatusFailed {
				done[id] = t
			}
		}
		if len(done) == len(ids) {
			return done, nil
		}

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("work: %w", ctx.Err())
		case <-ticker.C:
		}
	}
}
