package store

import (
	"context"

	"github.com/stellarlinkco/persona-ssr/internal/ssr"
)

// SeedSummary reports what SeedDefaults created. Seeded is false when
// the store already held personas and nothing was written.
type SeedSummary struct {
	Seeded    bool `json:"seeded"`
	Personas  int  `json:"personas"`
	Criteria  int  `json:"criteria"`
	Templates int  `json:"templates"`
}

// SeedDefaults populates an empty store with starter personas, criteria
// and a prompt template so a fresh install can enqueue tasks right away.
func SeedDefaults(ctx context.Context, s Store) (SeedSummary, error) {
	existing, err := s.ListPersonas(ctx)
	if err != nil {
		return SeedSummary{}, err
	}
	if len(existing) > 0 {
		return SeedSummary{}, nil
	}

	personas := []*Persona{
		{Name: "Casual A", Age: 19, Gender: "Female", Notes: "Plays daily, no spending"},
		{Name: "Core B", Age: 32, Gender: "Male", Notes: "Spends $100-200 per month"},
		{Name: "Returnee C", Age: 28, Gender: "Female", Notes: "Comes back only for events"},
	}
	criteria := []*Criterion{
		{
			Label:    "Retention intent",
			Question: "Would you keep playing this game after this initiative?",
			Anchors:  ssr.DefaultRetentionAnchors,
		},
		{
			Label:    "Spend intent",
			Question: "Would you want to pay after this initiative?",
			Anchors:  ssr.DefaultSpendAnchors,
		},
	}
	templates := []*PromptTemplate{
		{
			Name:        "LiveOps baseline",
			Description: "Default LiveOps evaluation prompt",
			Content:     "Share a candid view on retention and monetization impact for players.",
		},
	}

	for _, p := range personas {
		if _, err := s.CreatePersona(ctx, p); err != nil {
			return SeedSummary{}, err
		}
	}
	for _, c := range criteria {
		if _, err := s.CreateCriterion(ctx, c); err != nil {
			return SeedSummary{}, err
		}
	}
	for _, t := range templates {
		if _, err := s.CreateTemplate(ctx, t); err != nil {
			return SeedSummary{}, err
		}
	}

	return SeedSummary{
		Seeded:    true,
		Personas:  len(personas),
		Criteria:  len(criteria),
		Templates: len(templates),
	}, nil
}
