// Package benchmark compares synthetic rating distributions against
// human-collected reference distributions and reports how much of the
// attainable correlation the engine reaches.
package benchmark

import (
	"context"
	"errors"
	"math"
	"math/rand"

	"github.com/stellarlinkco/persona-ssr/internal/ssr"
	"github.com/stellarlinkco/persona-ssr/internal/store"
)

// Match is one benchmark row paired with the completed task panel it was
// scored against.
type Match struct {
	BenchmarkID    int64   `json:"benchmark_id"`
	TaskID         int64   `json:"task_id"`
	Title          string  `json:"title"`
	SessionLabel   string  `json:"session_label,omitempty"`
	CriterionID    int64   `json:"criterion_id"`
	CriterionLabel string  `json:"criterion"`
	KSSimilarity   float64 `json:"ks_similarity"`
	HumanMean      float64 `json:"human_mean"`
	SyntheticMean  float64 `json:"synthetic_mean"`
	SampleSize     int     `json:"sample_size"`
}

// Report is the full evaluation outcome.
type Report struct {
	Matches []Match `json:"matches"`
	// Correlation is the Pearson correlation between human and synthetic
	// means across matches. Meaningless below two matches.
	Correlation float64 `json:"correlation"`
	// Ceiling is the correlation maximum attainment is measured against,
	// either configured or estimated by split-half simulation.
	Ceiling          float64 `json:"ceiling"`
	Attainment       float64 `json:"correlation_attainment"`
	SimulatedCeiling bool    `json:"simulated_ceiling"`
	// Defined is false when fewer than two benchmark rows matched a
	// panel; the correlation fields are zero then.
	Defined bool `json:"defined"`
}

// Panel is the per-criterion average of a task's result distributions.
type Panel struct {
	CriterionID  int64              `json:"criterion_id"`
	Label        string             `json:"criterion"`
	Distribution [ssr.Scale]float64 `json:"distribution"`
	MeanRating   float64            `json:"mean_rating"`
	SampleSize   int                `json:"sample_size"`
}

// Normalize rescales a distribution to sum to one. A non-positive total
// yields the uniform distribution.
func Normalize(values [ssr.Scale]float64) [ssr.Scale]float64 {
	total := 0.0
	for _, v := range values {
		total += v
	}
	if total <= 0 {
		var uniform [ssr.Scale]float64
		for i := range uniform {
			uniform[i] = 1.0 / ssr.Scale
		}
		return uniform
	}
	var out [ssr.Scale]float64
	for i, v := range values {
		out[i] = v / total
	}
	return out
}

// ExpectedRating returns the probability-weighted mean rating on the
// 1..5 scale.
func ExpectedRating(values [ssr.Scale]float64) float64 {
	probs := Normalize(values)
	mean := 0.0
	for i, p := range probs {
		mean += float64(i+1) * p
	}
	return mean
}

// KSSimilarity is 1 minus the largest cumulative-distribution gap
// between the two distributions, clamped at zero. Identical shapes score
// 1.0; fully opposed point masses score 0.0.
func KSSimilarity(human, synthetic [ssr.Scale]float64) float64 {
	h := Normalize(human)
	s := Normalize(synthetic)

	maxDiff := 0.0
	cumH, cumS := 0.0, 0.0
	for i := 0; i < ssr.Scale; i++ {
		cumH += h[i]
		cumS += s[i]
		if d := math.Abs(cumH - cumS); d > maxDiff {
			maxDiff = d
		}
	}
	return math.Max(0, 1.0-maxDiff)
}

// Pearson returns the sample correlation of x and y, or zero when it is
// undefined (mismatched lengths, empty input, zero variance).
func Pearson(x, y []float64) float64 {
	if len(x) != len(y) || len(x) == 0 {
		return 0
	}

	meanX, meanY := 0.0, 0.0
	for i := range x {
		meanX += x[i]
		meanY += y[i]
	}
	meanX /= float64(len(x))
	meanY /= float64(len(y))

	num, denX, denY := 0.0, 0.0, 0.0
	for i := range x {
		dx := x[i] - meanX
		dy := y[i] - meanY
		num += dx * dy
		denX += dx * dx
		denY += dy * dy
	}
	if denX == 0 || denY == 0 {
		return 0
	}
	return num / (math.Sqrt(denX) * math.Sqrt(denY))
}

// TaskPanels averages a task's normalized result distributions per
// criterion.
func TaskPanels(results []*store.Result, criteria map[int64]*store.Criterion) map[int64]*Panel {
	panels := make(map[int64]*Panel)
	for _, r := range results {
		criterion, ok := criteria[r.CriterionID]
		if !ok {
			continue
		}
		panel, ok := panels[r.CriterionID]
		if !ok {
			panel = &Panel{CriterionID: r.CriterionID, Label: criterion.Label}
			panels[r.CriterionID] = panel
		}
		norm := Normalize(r.Distribution.Probs)
		for i, v := range norm {
			panel.Distribution[i] += v
		}
		panel.SampleSize++
	}

	for _, panel := range panels {
		for i := range panel.Distribution {
			panel.Distribution[i] /= float64(panel.SampleSize)
		}
		panel.MeanRating = ExpectedRating(panel.Distribution)
	}
	return panels
}

// sampleMean draws sampleSize ratings from the distribution and returns
// their mean.
func sampleMean(dist [ssr.Scale]float64, sampleSize int, rng *rand.Rand) float64 {
	if sampleSize <= 0 {
		sampleSize = 1
	}
	probs := Normalize(dist)

	var cum [ssr.Scale]float64
	running := 0.0
	for i, p := range probs {
		running += p
		cum[i] = running
	}

	total := 0
	for n := 0; n < sampleSize; n++ {
		u := rng.Float64()
		rating := ssr.Scale
		for i, c := range cum {
			if u <= c {
				rating = i + 1
				break
			}
		}
		total += rating
	}
	return float64(total) / float64(sampleSize)
}

// SimulateAttainment estimates the attainable correlation ceiling by
// split-half simulation: each trial draws two independent human samples
// per benchmark and correlates one against the synthetic means and the
// other against the first. Returns the mean attainment and mean ceiling
// over all trials.
func SimulateAttainment(benchmarks []*store.Benchmark, syntheticMeans []float64, trials int, seed int64) (attainment, ceiling float64) {
	if len(benchmarks) == 0 || len(benchmarks) != len(syntheticMeans) {
		return 0, 0
	}
	if trials <= 0 {
		trials = 1
	}
	rng := rand.New(rand.NewSource(seed))

	sumRho, sumCeiling := 0.0, 0.0
	draw := make([]float64, len(benchmarks))
	control := make([]float64, len(benchmarks))
	for t := 0; t < trials; t++ {
		for i, b := range benchmarks {
			draw[i] = sampleMean(b.Distribution, b.SampleSize, rng)
			control[i] = sampleMean(b.Distribution, b.SampleSize, rng)
		}
		sumRho += Pearson(draw, syntheticMeans)
		sumCeiling += Pearson(draw, control)
	}

	meanRho := sumRho / float64(trials)
	meanCeiling := sumCeiling / float64(trials)
	if meanCeiling == 0 {
		return 0, 0
	}
	return meanRho / meanCeiling, meanCeiling
}

// Evaluator runs benchmark comparisons against the store.
type Evaluator struct {
	Store store.Store
	// Ceiling is the configured correlation ceiling. Zero selects the
	// simulated split-half estimate.
	Ceiling float64
	Trials  int
	Seed    int64
}

// Evaluate pairs every benchmark with a completed task and reports
// per-match similarity plus overall correlation attainment.
func (e *Evaluator) Evaluate(ctx context.Context) (*Report, error) {
	if e == nil || e.Store == nil {
		return nil, errors.New("benchmark: nil evaluator store")
	}

	benchmarks, err := e.Store.ListBenchmarks(ctx)
	if err != nil {
		return nil, err
	}
	report := &Report{Matches: []Match{}}
	if len(benchmarks) == 0 {
		return report, nil
	}

	criteriaList, err := e.Store.ListCriteria(ctx)
	if err != nil {
		return nil, err
	}
	criteria := make(map[int64]*store.Criterion, len(criteriaList))
	for _, c := range criteriaList {
		criteria[c.ID] = c
	}

	tasks, err := e.Store.ListTasks(ctx)
	if err != nil {
		return nil, err
	}
	var completed []*store.Task
	for _, t := range tasks {
		if t.Status == store.StatusCompleted {
			completed = append(completed, t)
		}
	}

	panelCache := make(map[int64]map[int64]*Panel)
	panelsFor := func(taskID int64) (map[int64]*Panel, error) {
		if panels, ok := panelCache[taskID]; ok {
			return panels, nil
		}
		results, err := e.Store.ListResults(ctx, store.ResultFilter{TaskID: taskID})
		if err != nil {
			return nil, err
		}
		panels := TaskPanels(results, criteria)
		panelCache[taskID] = panels
		return panels, nil
	}

	var (
		matched        []*store.Benchmark
		humanMeans     []float64
		syntheticMeans []float64
	)
	for _, bench := range benchmarks {
		task := matchTask(bench, completed)
		if task == nil {
			continue
		}
		panels, err := panelsFor(task.ID)
		if err != nil {
			return nil, err
		}
		panel, ok := panels[bench.CriterionID]
		if !ok {
			continue
		}

		humanMean := ExpectedRating(bench.Distribution)
		matched = append(matched, bench)
		humanMeans = append(humanMeans, humanMean)
		syntheticMeans = append(syntheticMeans, panel.MeanRating)
		report.Matches = append(report.Matches, Match{
			BenchmarkID:    bench.ID,
			TaskID:         task.ID,
			Title:          task.Title,
			SessionLabel:   bench.SessionLabel,
			CriterionID:    bench.CriterionID,
			CriterionLabel: panel.Label,
			KSSimilarity:   KSSimilarity(bench.Distribution, panel.Distribution),
			HumanMean:      humanMean,
			SyntheticMean:  panel.MeanRating,
			SampleSize:     panel.SampleSize,
		})
	}

	if len(matched) < 2 {
		return report, nil
	}
	report.Defined = true
	report.Correlation = Pearson(humanMeans, syntheticMeans)

	if e.Ceiling > 0 {
		report.Ceiling = e.Ceiling
		report.Attainment = report.Correlation / e.Ceiling
		return report, nil
	}

	report.SimulatedCeiling = true
	report.Attainment, report.Ceiling = SimulateAttainment(matched, syntheticMeans, e.Trials, e.Seed)
	return report, nil
}

// matchTask finds the completed task a benchmark row refers to: by
// session label when the row has one, otherwise by benchmark label
// against the task title. First match in submission order wins.
func matchTask(bench *store.Benchmark, tasks []*store.Task) *store.Task {
	for _, t := range tasks {
		if bench.SessionLabel != "" {
			if t.SessionLabel == bench.SessionLabel {
				return t
			}
			continue
		}
		if bench.Label == t.Title {
			return t
		}
	}
	return nil
}
