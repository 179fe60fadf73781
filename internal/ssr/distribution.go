package ssr

import (
	"fmt"
	"math"
	"strings"
)

// sumTolerance bounds how far the probabilities may drift from 1.0.
const sumTolerance = 1e-6

// Method identifies which mapping path produced a Distribution.
type Method string

const (
	// MethodOracle runs the full pipeline: external oracle reaction text,
	// then similarity mapping against the anchors.
	MethodOracle Method = "oracle"
	// MethodTFIDF skips the oracle and maps the stimulus text directly.
	MethodTFIDF Method = "tfidf"
	// MethodUniform skips scoring entirely and returns the flat distribution.
	MethodUniform Method = "uniform"
)

// ParseMethod validates a similarity method selector. Empty input selects
// the oracle-backed default.
func ParseMethod(s string) (Method, error) {
	switch Method(strings.ToLower(strings.TrimSpace(s))) {
	case "", MethodOracle:
		return MethodOracle, nil
	case MethodTFIDF:
		return MethodTFIDF, nil
	case MethodUniform:
		return MethodUniform, nil
	default:
		return "", fmt.Errorf("ssr: unknown similarity method %q", s)
	}
}

// Distribution is a probability distribution over the five Likert ratings.
// Probs[0] is the probability of rating 1. Mode is the 1-based index of
// the maximum entry, ties resolved to the lowest rating. Method records
// which mapping path actually ran, which may differ from the requested
// one only when a recorded fallback substituted it.
type Distribution struct {
	Probs  [Scale]float64 `json:"probs"`
	Mode   int            `json:"mode"`
	Method Method         `json:"method"`
}

// Uniform returns the flat distribution tagged with the given method.
func Uniform(method Method) *Distribution {
	d := &Distribution{Method: method}
	for i := range d.Probs {
		d.Probs[i] = 1.0 / Scale
	}
	d.Mode = 1
	return d
}

// Validate checks the probability-simplex invariants.
func (d *Distribution) Validate() error {
	if d == nil {
		return fmt.Errorf("ssr: nil distribution")
	}

	sum := 0.0
	for i, p := range d.Probs {
		if p < 0 || math.IsNaN(p) || math.IsInf(p, 0) {
			return fmt.Errorf("ssr: probability %d out of range: %v", i+1, p)
		}
		sum += p
	}
	if math.Abs(sum-1.0) > sumTolerance {
		return fmt.Errorf("ssr: probabilities sum to %v, want 1", sum)
	}
	if d.Mode < 1 || d.Mode > Scale {
		return fmt.Errorf("ssr: mode %d out of range 1..%d", d.Mode, Scale)
	}
	return nil
}

// Mean returns the expected rating sum(i * p_i) for ratings 1..Scale.
func (d *Distribution) Mean() float64 {
	if d == nil {
		return 0
	}
	mean := 0.0
	for i, p := range d.Probs {
		mean += float64(i+1) * p
	}
	return mean
}

// argmax returns the 1-based index of the maximum score, lowest index on ties.
func argmax(scores [Scale]float64) int {
	best := 0
	for i := 1; i < Scale; i++ {
		if scores[i] > scores[best] {
			best = i
		}
	}
	return best + 1
}

// softmax maps raw similarity scores onto the probability simplex. The
// maximum score is subtracted first, so the result is invariant to a
// uniform additive shift and stable for large inputs. Equal scores yield
// the exact uniform distribution.
func softmax(scores [Scale]float64, temperature float64) [Scale]float64 {
	if temperature <= 0 {
		temperature = 1.0
	}

	maxScore := scores[0]
	for _, s := range scores[1:] {
		if s > maxScore {
			maxScore = s
		}
	}

	var out [Scale]float64
	sum := 0.0
	for i, s := range scores {
		out[i] = math.Exp((s - maxScore) / temperature)
		sum += out[i]
	}
	for i := range out {
		out[i] /= sum
	}
	return out
}
