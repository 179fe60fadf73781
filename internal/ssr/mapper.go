package ssr

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"unicode"
)

// Mapper converts free-form reaction text into a Likert Distribution by
// semantic-similarity scoring against an AnchorSet.
type Mapper struct {
	// Temperature divides the raw similarity scores before the softmax.
	// Zero or negative selects the default of 1.0.
	Temperature float64
}

// Map scores text against the anchors and returns a Distribution tagged
// with the given method.
//
// The seed is accepted for every method so callers never branch on it;
// the cosine path is fully deterministic and ignores it today, reserved
// for stochastic mapping variants.
func (m *Mapper) Map(text string, anchors *AnchorSet, method Method, seed *int64) (*Distribution, error) {
	if m == nil {
		return nil, errors.New("ssr: nil mapper")
	}
	if anchors == nil {
		return nil, errNilAnchorSet
	}

	switch method {
	case MethodUniform:
		// Explicit caller choice, never a silent substitute.
		return Uniform(MethodUniform), nil
	case MethodOracle, MethodTFIDF:
	default:
		return nil, fmt.Errorf("ssr: unknown similarity method %q", method)
	}

	_ = seed

	text = NormalizeText(text)
	if text == "" {
		// Graceful degradation: no text to score, keep the method tag.
		return Uniform(method), nil
	}

	scores := cosineScores(text, anchors)
	probs := softmax(scores, m.Temperature)

	return &Distribution{
		Probs:  probs,
		Mode:   argmax(probs),
		Method: method,
	}, nil
}

// cosineScores fits a TF-IDF vectorization jointly over the free text and
// the five anchors so vocabulary is shared, then returns the cosine
// similarity between the text vector and each anchor vector. A text with
// no vocabulary overlap scores 0 against every anchor.
func cosineScores(text string, anchors *AnchorSet) [Scale]float64 {
	docs := make([][]string, 0, Scale+1)
	docs = append(docs, tokenize(text))
	for _, a := range anchors.Sentences {
		docs = append(docs, tokenize(NormalizeText(a)))
	}

	vocab := make(map[string]int)
	for _, doc := range docs {
		for _, term := range doc {
			if _, ok := vocab[term]; !ok {
				vocab[term] = len(vocab)
			}
		}
	}

	df := make([]int, len(vocab))
	for _, doc := range docs {
		seen := make(map[int]struct{}, len(doc))
		for _, term := range doc {
			seen[vocab[term]] = struct{}{}
		}
		for idx := range seen {
			df[idx]++
		}
	}

	// Smoothed IDF: every term keeps positive weight even when it occurs
	// in all six documents.
	n := float64(len(docs))
	idf := make([]float64, len(vocab))
	for i, d := range df {
		idf[i] = math.Log((1+n)/(1+float64(d))) + 1
	}

	vectors := make([][]float64, len(docs))
	for i, doc := range docs {
		vec := make([]float64, len(vocab))
		for _, term := range doc {
			vec[vocab[term]] += 1
		}
		norm := 0.0
		for j := range vec {
			vec[j] *= idf[j]
			norm += vec[j] * vec[j]
		}
		if norm > 0 {
			norm = math.Sqrt(norm)
			for j := range vec {
				vec[j] /= norm
			}
		}
		vectors[i] = vec
	}

	var scores [Scale]float64
	textVec := vectors[0]
	for i := 0; i < Scale; i++ {
		dot := 0.0
		for j := range textVec {
			dot += textVec[j] * vectors[i+1][j]
		}
		scores[i] = dot
	}
	return scores
}

// tokenize lowercases and splits on any rune that is not a letter or digit.
func tokenize(s string) []string {
	return strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}
