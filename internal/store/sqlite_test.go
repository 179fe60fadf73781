package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stellarlinkco/persona-ssr/internal/ssr"
)

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()

	st, err := NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	t.Cleanup(func() {
		if err := st.Close(); err != nil {
			t.Errorf("close store: %v", err)
		}
	})
	return st
}

func testAnchors() []string {
	return []string{
		"I would definitely stop.",
		"I would probably stop.",
		"I am not sure.",
		"I would probably keep going.",
		"I would definitely keep going.",
	}
}

func seedCriterion(t *testing.T, st *SQLiteStore) int64 {
	t.Helper()
	id, err := st.CreateCriterion(context.Background(), &Criterion{
		Label:    "retention",
		Question: "Would you keep playing next week?",
		Anchors:  testAnchors(),
	})
	if err != nil {
		t.Fatalf("CreateCriterion: %v", err)
	}
	return id
}

func seedTask(t *testing.T, st *SQLiteStore, mutate func(*Task)) int64 {
	t.Helper()
	task := &Task{
		Title:        "banner check",
		StimulusText: "New seasonal event banner",
		PersonaIDs:   []int64{1},
		CriterionIDs: []int64{1},
		Method:       ssr.MethodTFIDF,
	}
	if mutate != nil {
		mutate(task)
	}
	id, err := st.CreateTask(context.Background(), task)
	if err != nil {
		t.Fatalf("CreateTask: %v", err)
	}
	return id
}

func TestSQLiteStorePersonaRoundtrip(t *testing.T) {
	t.Parallel()
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	id, err := st.CreatePersona(ctx, &Persona{
		Name:   "Mika",
		Age:    29,
		Gender: "female",
		Notes:  "plays daily, spends rarely",
	})
	if err != nil {
		t.Fatalf("CreatePersona: %v", err)
	}
	if id <= 0 {
		t.Fatalf("persona id = %d, want positive", id)
	}

	got, err := st.GetPersona(ctx, id)
	if err != nil {
		t.Fatalf("GetPersona: %v", err)
	}
	if got.Name != "Mika" || got.Age != 29 || got.Gender != "female" {
		t.Errorf("got %+v", got)
	}
	if got.CreatedAt.IsZero() {
		t.Error("CreatedAt not set")
	}

	all, err := st.ListPersonas(ctx)
	if err != nil {
		t.Fatalf("ListPersonas: %v", err)
	}
	if len(all) != 1 {
		t.Fatalf("got %d personas, want 1", len(all))
	}

	if err := st.DeletePersona(ctx, id); err != nil {
		t.Fatalf("DeletePersona: %v", err)
	}
	if _, err := st.GetPersona(ctx, id); !errors.Is(err, ErrNotFound) {
		t.Errorf("after delete err = %v, want ErrNotFound", err)
	}
}

func TestSQLiteStoreCreatePersonaRejectsEmptyName(t *testing.T) {
	t.Parallel()
	st := newTestSQLiteStore(t)

	if _, err := st.CreatePersona(context.Background(), &Persona{Name: "  "}); err == nil {
		t.Fatal("expected error for blank name")
	}
}

func TestSQLiteStoreCriterionAnchorsRoundtrip(t *testing.T) {
	t.Parallel()
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	id := seedCriterion(t, st)
	got, err := st.GetCriterion(ctx, id)
	if err != nil {
		t.Fatalf("GetCriterion: %v", err)
	}
	if len(got.Anchors) != ssr.Scale {
		t.Fatalf("got %d anchors, want %d", len(got.Anchors), ssr.Scale)
	}
	if got.Anchors[0] != testAnchors()[0] || got.Anchors[4] != testAnchors()[4] {
		t.Errorf("anchors mangled: %v", got.Anchors)
	}

	_, err = st.CreateCriterion(ctx, &Criterion{
		Label:    "bad",
		Question: "q",
		Anchors:  []string{"only", "three", "anchors"},
	})
	if err == nil {
		t.Fatal("expected error for wrong anchor count")
	}
}

func TestSQLiteStoreTaskRoundtrip(t *testing.T) {
	t.Parallel()
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	seed := int64(42)
	templateID, err := st.CreateTemplate(ctx, &PromptTemplate{
		Name:    "short",
		Content: "Answer in one paragraph.",
	})
	if err != nil {
		t.Fatalf("CreateTemplate: %v", err)
	}

	id := seedTask(t, st, func(task *Task) {
		task.PersonaIDs = []int64{3, 5}
		task.CriterionIDs = []int64{7}
		task.SessionLabel = "wave-1"
		task.OperationContext = map[string]string{"game_title": "Starfall"}
		task.PromptTemplateID = &templateID
		task.Seed = &seed
	})

	got, err := st.GetTask(ctx, id)
	if err != nil {
		t.Fatalf("GetTask: %v", err)
	}
	if got.Status != StatusPending {
		t.Errorf("status = %q, want pending", got.Status)
	}
	if len(got.PersonaIDs) != 2 || got.PersonaIDs[1] != 5 {
		t.Errorf("persona ids = %v", got.PersonaIDs)
	}
	if got.OperationContext["game_title"] != "Starfall" {
		t.Errorf("operation context = %v", got.OperationContext)
	}
	if got.PromptTemplateID == nil || *got.PromptTemplateID != templateID {
		t.Errorf("template id = %v, want %d", got.PromptTemplateID, templateID)
	}
	if got.Seed == nil || *got.Seed != 42 {
		t.Errorf("seed = %v, want 42", got.Seed)
	}
	if got.Method != ssr.MethodTFIDF {
		t.Errorf("method = %q", got.Method)
	}
}

func TestSQLiteStoreTaskDefaultsMethodToOracle(t *testing.T) {
	t.Parallel()
	st := newTestSQLiteStore(t)

	id := seedTask(t, st, func(task *Task) { task.Method = "" })
	got, err := st.GetTask(context.Background(), id)
	if err != nil {
		t.Fatalf("GetTask: %v", err)
	}
	if got.Method != ssr.MethodOracle {
		t.Errorf("method = %q, want %q", got.Method, ssr.MethodOracle)
	}
	if got.PromptTemplateID != nil || got.Seed != nil {
		t.Errorf("nullable fields not nil: template=%v seed=%v", got.PromptTemplateID, got.Seed)
	}
}

func TestSQLiteStoreCreateTaskRejectsUnknownMethod(t *testing.T) {
	t.Parallel()
	st := newTestSQLiteStore(t)

	_, err := st.CreateTask(context.Background(), &Task{
		Title:        "bad",
		PersonaIDs:   []int64{1},
		CriterionIDs: []int64{1},
		Method:       "markov",
	})
	if err == nil {
		t.Fatal("expected error for unknown method")
	}
}

func TestSQLiteStoreListPendingTasksOrder(t *testing.T) {
	t.Parallel()
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	first := seedTask(t, st, nil)
	second := seedTask(t, st, nil)
	third := seedTask(t, st, nil)

	if err := st.SetTaskStatus(ctx, second, StatusCompleted, ""); err != nil {
		t.Fatalf("SetTaskStatus: %v", err)
	}

	pending, err := st.ListPendingTasks(ctx)
	if err != nil {
		t.Fatalf("ListPendingTasks: %v", err)
	}
	if len(pending) != 2 {
		t.Fatalf("got %d pending, want 2", len(pending))
	}
	if pending[0].ID != first || pending[1].ID != third {
		t.Errorf("pending order = [%d %d], want [%d %d]", pending[0].ID, pending[1].ID, first, third)
	}
}

func TestSQLiteStoreSetTaskStatus(t *testing.T) {
	t.Parallel()
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	id := seedTask(t, st, nil)

	if err := st.SetTaskStatus(ctx, id, StatusFailed, "oracle timed out"); err != nil {
		t.Fatalf("SetTaskStatus: %v", err)
	}
	got, err := st.GetTask(ctx, id)
	if err != nil {
		t.Fatalf("GetTask: %v", err)
	}
	if got.Status != StatusFailed || got.Error != "oracle timed out" {
		t.Errorf("got status=%q error=%q", got.Status, got.Error)
	}

	// Re-enqueue clears the error.
	if err := st.SetTaskStatus(ctx, id, StatusPending, "stale"); err != nil {
		t.Fatalf("SetTaskStatus: %v", err)
	}
	got, err = st.GetTask(ctx, id)
	if err != nil {
		t.Fatalf("GetTask: %v", err)
	}
	if got.Status != StatusPending || got.Error != "" {
		t.Errorf("got status=%q error=%q, want pending with empty error", got.Status, got.Error)
	}

	if err := st.SetTaskStatus(ctx, id, "paused", ""); err == nil {
		t.Error("expected error for invalid status")
	}
	if err := st.SetTaskStatus(ctx, 9999, StatusRunning, ""); !errors.Is(err, ErrNotFound) {
		t.Errorf("missing task err = %v, want ErrNotFound", err)
	}
}

func TestSQLiteStoreResultRoundtrip(t *testing.T) {
	t.Parallel()
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	taskID := seedTask(t, st, nil)
	dist := ssr.Distribution{
		Probs:  [ssr.Scale]float64{0.1, 0.1, 0.2, 0.3, 0.3},
		Mode:   4,
		Method: ssr.MethodTFIDF,
	}

	id, err := st.CreateResult(ctx, &Result{
		TaskID:       taskID,
		PersonaID:    1,
		CriterionID:  1,
		Summary:      "Cautiously positive about the event.",
		Distribution: dist,
		SessionRef:   "sessions/2026/08/28",
	})
	if err != nil {
		t.Fatalf("CreateResult: %v", err)
	}
	if id <= 0 {
		t.Fatalf("result id = %d, want positive", id)
	}

	results, err := st.ListResults(ctx, ResultFilter{TaskID: taskID})
	if err != nil {
		t.Fatalf("ListResults: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("got %d results, want 1", len(results))
	}
	got := results[0]
	if got.Rating != 4 {
		t.Errorf("rating = %d, want mode 4", got.Rating)
	}
	if got.Distribution.Probs != dist.Probs {
		t.Errorf("probs = %v, want %v", got.Distribution.Probs, dist.Probs)
	}
	if got.Distribution.Method != ssr.MethodTFIDF {
		t.Errorf("method = %q", got.Distribution.Method)
	}
}

func TestSQLiteStoreCreateResultRejectsInvalidDistribution(t *testing.T) {
	t.Parallel()
	st := newTestSQLiteStore(t)

	taskID := seedTask(t, st, nil)
	_, err := st.CreateResult(context.Background(), &Result{
		TaskID:      taskID,
		PersonaID:   1,
		CriterionID: 1,
		Distribution: ssr.Distribution{
			Probs:  [ssr.Scale]float64{0.5, 0.5, 0.5, 0.5, 0.5},
			Mode:   1,
			Method: ssr.MethodUniform,
		},
	})
	if err == nil {
		t.Fatal("expected error for non-normalized distribution")
	}
}

func TestSQLiteStoreListResultsFilters(t *testing.T) {
	t.Parallel()
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	doneTask := seedTask(t, st, func(task *Task) { task.SessionLabel = "wave-1" })
	pendingTask := seedTask(t, st, func(task *Task) { task.SessionLabel = "wave-2" })
	if err := st.SetTaskStatus(ctx, doneTask, StatusCompleted, ""); err != nil {
		t.Fatalf("SetTaskStatus: %v", err)
	}

	uniform := *ssr.Uniform(ssr.MethodUniform)
	for i, taskID := range []int64{doneTask, pendingTask} {
		_, err := st.CreateResult(ctx, &Result{
			TaskID:       taskID,
			PersonaID:    int64(i + 1),
			CriterionID:  int64(i + 1),
			Distribution: uniform,
		})
		if err != nil {
			t.Fatalf("CreateResult: %v", err)
		}
	}

	tests := []struct {
		name   string
		filter ResultFilter
		want   int
	}{
		{"all", ResultFilter{}, 2},
		{"by task", ResultFilter{TaskID: doneTask}, 1},
		{"by criterion", ResultFilter{CriterionID: 2}, 1},
		{"by session", ResultFilter{SessionLabel: "wave-1"}, 1},
		{"completed only", ResultFilter{CompletedTasksOnly: true}, 1},
		{"no match", ResultFilter{SessionLabel: "wave-9"}, 0},
	}
	for _, tc := range tests {
		results, err := st.ListResults(ctx, tc.filter)
		if err != nil {
			t.Fatalf("%s: ListResults: %v", tc.name, err)
		}
		if len(results) != tc.want {
			t.Errorf("%s: got %d results, want %d", tc.name, len(results), tc.want)
		}
	}
}

func TestSQLiteStoreBenchmarkRoundtrip(t *testing.T) {
	t.Parallel()
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	critID := seedCriterion(t, st)
	id, err := st.CreateBenchmark(ctx, &Benchmark{
		Label:        "playtest cohort A",
		SessionLabel: "wave-1",
		CriterionID:  critID,
		Distribution: [ssr.Scale]float64{0.05, 0.15, 0.2, 0.35, 0.25},
		SampleSize:   120,
	})
	if err != nil {
		t.Fatalf("CreateBenchmark: %v", err)
	}

	all, err := st.ListBenchmarks(ctx)
	if err != nil {
		t.Fatalf("ListBenchmarks: %v", err)
	}
	if len(all) != 1 {
		t.Fatalf("got %d benchmarks, want 1", len(all))
	}
	got := all[0]
	if got.ID != id || got.CriterionID != critID || got.SampleSize != 120 {
		t.Errorf("got %+v", got)
	}
	if got.Distribution[3] != 0.35 {
		t.Errorf("distribution = %v", got.Distribution)
	}

	if _, err := st.CreateBenchmark(ctx, &Benchmark{Label: "bad", CriterionID: critID}); err == nil {
		t.Error("expected error for zero sample size")
	}
}

func TestSQLiteStoreOpenMemory(t *testing.T) {
	t.Parallel()

	st, err := NewSQLiteStore(":memory:")
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	defer st.Close()

	if _, err := st.ListTasks(context.Background()); err != nil {
		t.Fatalf("ListTasks on fresh memory store: %v", err)
	}
}
