package benchmark

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/stellarlinkco/persona-ssr/internal/store"
)

// Aggregate is the average rating for one demographic bucket and
// criterion across every stored result.
type Aggregate struct {
	Gender    string  `json:"gender"`
	Age       int     `json:"age"`
	Criterion string  `json:"criterion"`
	Average   float64 `json:"average"`
	Samples   int     `json:"samples"`
}

// AggregateScores buckets all results by persona gender, persona age and
// criterion label, ordered by bucket key for stable output.
func AggregateScores(ctx context.Context, st store.Store) ([]Aggregate, error) {
	if st == nil {
		return nil, errors.New("benchmark: nil store")
	}

	results, err := st.ListResults(ctx, store.ResultFilter{})
	if err != nil {
		return nil, err
	}

	personas := make(map[int64]*store.Persona)
	criteria := make(map[int64]*store.Criterion)

	type bucket struct {
		agg   Aggregate
		total int
	}
	buckets := make(map[string]*bucket)

	for _, r := range results {
		persona, ok := personas[r.PersonaID]
		if !ok {
			persona, err = st.GetPersona(ctx, r.PersonaID)
			if err != nil {
				if errors.Is(err, store.ErrNotFound) {
					continue
				}
				return nil, err
			}
			personas[r.PersonaID] = persona
		}
		criterion, ok := criteria[r.CriterionID]
		if !ok {
			criterion, err = st.GetCriterion(ctx, r.CriterionID)
			if err != nil {
				if errors.Is(err, store.ErrNotFound) {
					continue
				}
				return nil, err
			}
			criteria[r.CriterionID] = criterion
		}

		key := fmt.Sprintf("%s-%d-%s", persona.Gender, persona.Age, criterion.Label)
		b, ok := buckets[key]
		if !ok {
			b = &bucket{agg: Aggregate{
				Gender:    persona.Gender,
				Age:       persona.Age,
				Criterion: criterion.Label,
			}}
			buckets[key] = b
		}
		b.total += r.Rating
		b.agg.Samples++
	}

	keys := make([]string, 0, len(buckets))
	for key := range buckets {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	out := make([]Aggregate, 0, len(keys))
	for _, key := range keys {
		b := buckets[key]
		b.agg.Average = float64(b.total) / float64(b.agg.Samples)
		out = append(out, b.agg)
	}
	return out, nil
}
