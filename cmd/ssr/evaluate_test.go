package main

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stellarlinkco/persona-ssr/internal/benchmark"
	"github.com/stellarlinkco/persona-ssr/internal/ssr"
	"github.com/stellarlinkco/persona-ssr/internal/store"
)

// seedScoredTask inserts a completed task with a single point-mass
// result so evaluate has something to match against.
func seedScoredTask(t *testing.T, st *store.SQLiteStore, title, sessionLabel string, rating int) int64 {
	t.Helper()
	ctx := context.Background()

	taskID, err := st.CreateTask(ctx, &store.Task{
		Title:        title,
		StimulusText: "stimulus for " + title,
		SessionLabel: sessionLabel,
		PersonaIDs:   []int64{1},
		CriterionIDs: []int64{1},
		Method:       ssr.MethodTFIDF,
	})
	if err != nil {
		t.Fatalf("CreateTask: %v", err)
	}

	var dist ssr.Distribution
	dist.Probs[rating-1] = 1
	dist.Mode = rating
	dist.Method = ssr.MethodTFIDF
	if _, err := st.CreateResult(ctx, &store.Result{
		TaskID:       taskID,
		PersonaID:    1,
		CriterionID:  1,
		Summary:      "seeded",
		Distribution: dist,
	}); err != nil {
		t.Fatalf("CreateResult: %v", err)
	}
	if err := st.SetTaskStatus(ctx, taskID, store.StatusCompleted, ""); err != nil {
		t.Fatalf("SetTaskStatus: %v", err)
	}
	return taskID
}

func seedBenchmark(t *testing.T, st *store.SQLiteStore, label, sessionLabel string, dist [ssr.Scale]float64) {
	t.Helper()
	if _, err := st.CreateBenchmark(context.Background(), &store.Benchmark{
		Label:        label,
		SessionLabel: sessionLabel,
		CriterionID:  1,
		Distribution: dist,
		SampleSize:   120,
	}); err != nil {
		t.Fatalf("CreateBenchmark: %v", err)
	}
}

func TestEvaluateCommand_Undefined(t *testing.T) {
	configPath, dbPath := writeCLIConfig(t)
	if _, err := runCLI(t, "seed", "--config", configPath); err != nil {
		t.Fatalf("seed: %v", err)
	}

	st := openCLIStore(t, dbPath)
	seedScoredTask(t, st, "Solo event", "wave-solo", 4)
	seedBenchmark(t, st, "Solo bench", "wave-solo", [ssr.Scale]float64{0, 0, 0, 1, 0})

	out, err := runCLI(t, "evaluate", "--config", configPath)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if !strings.Contains(out, "correlation undefined") {
		t.Fatalf("output: %q", out)
	}
	if !strings.Contains(out, "Solo event") {
		t.Fatalf("match table missing task: %q", out)
	}
}

func TestEvaluateCommand_ConfiguredCeiling(t *testing.T) {
	configPath, dbPath := writeCLIConfig(t)
	if _, err := runCLI(t, "seed", "--config", configPath); err != nil {
		t.Fatalf("seed: %v", err)
	}

	st := openCLIStore(t, dbPath)
	seedScoredTask(t, st, "Low event", "wave-low", 2)
	seedScoredTask(t, st, "High event", "wave-high", 5)
	seedBenchmark(t, st, "Low bench", "wave-low", [ssr.Scale]float64{0, 1, 0, 0, 0})
	seedBenchmark(t, st, "High bench", "wave-high", [ssr.Scale]float64{0, 0, 0, 0, 1})

	out, err := runCLI(t, "evaluate", "--config", configPath, "--json")
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}

	var report benchmark.Report
	if err := json.Unmarshal([]byte(out), &report); err != nil {
		t.Fatalf("unmarshal %q: %v", out, err)
	}
	if !report.Defined {
		t.Fatalf("expected defined report: %+v", report)
	}
	if len(report.Matches) != 2 {
		t.Fatalf("matches: got %d want %d", len(report.Matches), 2)
	}
	if report.SimulatedCeiling {
		t.Fatalf("expected configured ceiling, got simulated")
	}
	if report.Ceiling != 0.9 {
		t.Fatalf("ceiling: got %v want %v", report.Ceiling, 0.9)
	}
	// Two point-mass pairs in the same order correlate perfectly.
	if report.Correlation < 0.999 {
		t.Fatalf("correlation: got %v", report.Correlation)
	}
	for _, m := range report.Matches {
		if m.KSSimilarity < 0.999 {
			t.Fatalf("ks: got %v for %q", m.KSSimilarity, m.Title)
		}
	}
}

func TestAggregateCommand(t *testing.T) {
	configPath, dbPath := writeCLIConfig(t)
	if _, err := runCLI(t, "seed", "--config", configPath); err != nil {
		t.Fatalf("seed: %v", err)
	}

	st := openCLIStore(t, dbPath)
	seedScoredTask(t, st, "Agg event", "wave-agg", 4)

	out, err := runCLI(t, "aggregate", "--config", configPath)
	if err != nil {
		t.Fatalf("aggregate: %v", err)
	}
	if !strings.Contains(out, "Retention intent") {
		t.Fatalf("output: %q", out)
	}
	if !strings.Contains(out, "4.000") {
		t.Fatalf("expected average 4.000 in %q", out)
	}

	out, err = runCLI(t, "aggregate", "--config", configPath, "--json")
	if err != nil {
		t.Fatalf("aggregate json: %v", err)
	}
	var aggregates []benchmark.Aggregate
	if err := json.Unmarshal([]byte(out), &aggregates); err != nil {
		t.Fatalf("unmarshal %q: %v", out, err)
	}
	if len(aggregates) != 1 || aggregates[0].Samples != 1 {
		t.Fatalf("aggregates: %+v", aggregates)
	}
}

func TestExplicitConfigMustExist(t *testing.T) {
	t.Parallel()

	_, err := runCLI(t, "list", "personas", "--config", "/no/such/config.yaml")
	if err == nil {
		t.Fatalf("expected error for missing explicit config")
	}
}
