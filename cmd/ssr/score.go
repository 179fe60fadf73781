package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/stellarlinkco/persona-ssr/internal/ssr"
)

type scoreOptions struct {
	anchors     []string
	anchorSet   string
	temperature float64
	seed        int64
	jsonOut     bool
}

// newScoreCmd maps a single reaction text onto a Likert distribution
// without touching the store or the oracle.
func newScoreCmd() *cobra.Command {
	var opts scoreOptions

	cmd := &cobra.Command{
		Use:   "score <text>",
		Short: "Map a reaction text to a 5-point rating distribution",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScore(cmd, args[0], &opts)
		},
	}

	cmd.Flags().StringArrayVar(&opts.anchors, "anchor", nil, "anchor sentence, repeated exactly 5 times (overrides --anchor-set)")
	cmd.Flags().StringVar(&opts.anchorSet, "anchor-set", "retention", "built-in anchor set: retention|spend")
	cmd.Flags().Float64Var(&opts.temperature, "temperature", 1.0, "softmax temperature")
	cmd.Flags().Int64Var(&opts.seed, "seed", 0, "seed for the uniform fallback tie-break (0 means none)")
	cmd.Flags().BoolVar(&opts.jsonOut, "json", false, "emit the distribution as JSON")

	return cmd
}

func runScore(cmd *cobra.Command, text string, opts *scoreOptions) error {
	anchors := opts.anchors
	if len(anchors) == 0 {
		switch strings.ToLower(strings.TrimSpace(opts.anchorSet)) {
		case "retention":
			anchors = ssr.DefaultRetentionAnchors
		case "spend":
			anchors = ssr.DefaultSpendAnchors
		default:
			return fmt.Errorf("score: unknown anchor set %q", opts.anchorSet)
		}
	}
	set, err := ssr.NewAnchorSet(anchors)
	if err != nil {
		return fmt.Errorf("score: %w", err)
	}

	var seed *int64
	if opts.seed != 0 {
		seed = &opts.seed
	}

	mapper := ssr.Mapper{Temperature: opts.temperature}
	dist, err := mapper.Map(text, set, ssr.MethodTFIDF, seed)
	if err != nil {
		return fmt.Errorf("score: %w", err)
	}

	out := cmd.OutOrStdout()
	if opts.jsonOut {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(dist)
	}

	for i, p := range dist.Probs {
		fmt.Fprintf(out, "%d: %.4f\n", i+1, p)
	}
	fmt.Fprintf(out, "mode=%d mean=%.3f method=%s\n", dist.Mode, dist.Mean(), dist.Method)
	return nil
}
