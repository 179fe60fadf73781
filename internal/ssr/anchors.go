package ssr

import (
	"errors"
	"fmt"
	"strings"
)

// Scale is the number of ordinal ratings on the Likert scale.
const Scale = 5

// AnchorSet holds the ordinal reference sentences for one criterion.
// Index 0 corresponds to rating 1, index Scale-1 to rating 5. An anchor
// set must not change once results have been scored against it, since
// that would invalidate comparability of earlier distributions.
type AnchorSet struct {
	Sentences [Scale]string
}

// DefaultRetentionAnchors describe increasing intent to keep playing.
var DefaultRetentionAnchors = []string{
	"Would not continue at all",
	"Unlikely to continue",
	"Neutral",
	"Somewhat likely to continue",
	"Very likely to continue",
}

// DefaultSpendAnchors describe increasing intent to pay.
var DefaultSpendAnchors = []string{
	"No intent to spend",
	"Prefer not to spend now",
	"Might spend depending on conditions",
	"Would spend with discounts or perks",
	"Eager to spend",
}

// NewAnchorSet validates and builds an AnchorSet from exactly Scale sentences.
func NewAnchorSet(sentences []string) (*AnchorSet, error) {
	if len(sentences) != Scale {
		return nil, fmt.Errorf("ssr: anchor set needs %d sentences, got %d", Scale, len(sentences))
	}

	var out AnchorSet
	for i, s := range sentences {
		s = strings.TrimSpace(s)
		if s == "" {
			return nil, fmt.Errorf("ssr: anchor %d is blank", i+1)
		}
		out.Sentences[i] = s
	}
	return &out, nil
}

// MustAnchorSet builds an AnchorSet and panics on invalid input. For
// package-level defaults and tests only.
func MustAnchorSet(sentences []string) *AnchorSet {
	a, err := NewAnchorSet(sentences)
	if err != nil {
		panic(err)
	}
	return a
}

// NormalizeText collapses newlines and trims whitespace so anchor and
// reaction texts compare on content only. Empty input stays empty.
func NormalizeText(text string) string {
	return strings.TrimSpace(strings.ReplaceAll(text, "\n", " "))
}

var errNilAnchorSet = errors.New("ssr: nil anchor set")
