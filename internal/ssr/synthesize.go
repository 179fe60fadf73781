package ssr

import (
	"fmt"
	"math/rand"
	"strings"
)

// ContextKey pairs a recognized operation-context key with its report label.
type ContextKey struct {
	Key   string
	Label string
}

// RecognizedContextKeys lists the operation-context keys the prompt
// composition and synthesis steps understand, in render order. Unknown
// keys are carried in the mapping but not rendered.
var RecognizedContextKeys = []ContextKey{
	{Key: "game_title", Label: "Game"},
	{Key: "genre", Label: "Genre"},
	{Key: "target_metric", Label: "Target KPI"},
	{Key: "liveops_cadence", Label: "Cadence"},
	{Key: "monetization", Label: "Monetization"},
	{Key: "seasonality", Label: "Seasonality"},
	{Key: "notes", Label: "Notes"},
}

// FormatContext renders the recognized operation-context entries as a
// single "Label:value | Label:value" line. Empty values are skipped.
func FormatContext(operationContext map[string]string) string {
	if len(operationContext) == 0 {
		return ""
	}

	parts := make([]string, 0, len(RecognizedContextKeys))
	for _, ck := range RecognizedContextKeys {
		if v := strings.TrimSpace(operationContext[ck.Key]); v != "" {
			parts = append(parts, ck.Label+":"+v)
		}
	}
	return strings.Join(parts, " | ")
}

// SynthesisInput describes one persona reaction to synthesize offline.
type SynthesisInput struct {
	PersonaID        int64
	PersonaAge       int
	PersonaGender    string
	CriterionLabel   string
	Guidance         string
	Stimulus         string
	OperationContext map[string]string
	TemplateText     string
	Seed             *int64
}

var synthesisLeads = []string{
	"From my point of view",
	"Intuitively",
	"Frankly",
	"As a player",
	"Based on my habits",
	"Considering well-being",
	"As a gamer",
	"From how I play social games",
}

var synthesisOpinions = []string{
	"it seems useful",
	"pricing will decide it",
	"I want to try it",
	"I'd weigh it carefully",
	"it has appeal",
	"it feels promising",
	"there are challenges",
	"sustained support seems key",
	"timing of releases will sway me",
}

// SynthesizeResponse produces a deterministic persona-flavored reaction
// text without any oracle call. The same seed and persona id always
// produce the same text, so tfidf-method runs are reproducible.
func SynthesizeResponse(in SynthesisInput) string {
	seed := int64(0)
	if in.Seed != nil {
		seed = *in.Seed
	}
	rng := rand.New(rand.NewSource(seed + in.PersonaID))

	gender := strings.TrimSpace(in.PersonaGender)
	if gender == "" {
		gender = "unknown"
	}
	demographic := fmt.Sprintf("%d-year-old %s", in.PersonaAge, gender)
	lead := synthesisLeads[rng.Intn(len(synthesisLeads))]
	opinion := synthesisOpinions[rng.Intn(len(synthesisOpinions))]

	var sb strings.Builder
	sb.WriteString(lead)
	sb.WriteString(", viewing this as a ")
	sb.WriteString(demographic)
	sb.WriteString(". ")
	sb.WriteString(strings.TrimSpace(in.Stimulus))
	if g := strings.TrimSpace(in.Guidance); g != "" {
		sb.WriteString(" ")
		sb.WriteString(g)
	}
	if t := strings.TrimSpace(in.TemplateText); t != "" {
		sb.WriteString(" ")
		sb.WriteString(t)
	}
	sb.WriteString(" As a result, from the lens of ")
	sb.WriteString(strings.TrimSpace(in.CriterionLabel))
	sb.WriteString(" I feel ")
	sb.WriteString(opinion)
	sb.WriteString(".")
	if ctx := FormatContext(in.OperationContext); ctx != "" {
		sb.WriteString(" Ops context: ")
		sb.WriteString(ctx)
		sb.WriteString(".")
	}
	return sb.String()
}
