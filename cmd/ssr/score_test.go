package main

import (
	"encoding/json"
	"math"
	"strings"
	"testing"

	"github.com/stellarlinkco/persona-ssr/internal/ssr"
)

func TestScoreCommand_JSON(t *testing.T) {
	t.Parallel()

	out, err := runCLI(t, "score", "I would definitely keep playing this game every day", "--json")
	if err != nil {
		t.Fatalf("score: %v", err)
	}

	var dist ssr.Distribution
	if err := json.Unmarshal([]byte(out), &dist); err != nil {
		t.Fatalf("unmarshal %q: %v", out, err)
	}
	if dist.Method != ssr.MethodTFIDF {
		t.Fatalf("method: got %q want %q", dist.Method, ssr.MethodTFIDF)
	}
	sum := 0.0
	for _, p := range dist.Probs {
		if p < 0 {
			t.Fatalf("negative probability in %v", dist.Probs)
		}
		sum += p
	}
	if math.Abs(sum-1) > 1e-6 {
		t.Fatalf("probabilities sum to %v", sum)
	}
	if dist.Mode < 1 || dist.Mode > ssr.Scale {
		t.Fatalf("mode out of range: %d", dist.Mode)
	}
}

func TestScoreCommand_Table(t *testing.T) {
	t.Parallel()

	out, err := runCLI(t, "score", "I am done with this game")
	if err != nil {
		t.Fatalf("score: %v", err)
	}
	for _, want := range []string{"1: ", "5: ", "mode=", "mean=", "method=tfidf"} {
		if !strings.Contains(out, want) {
			t.Fatalf("output %q missing %q", out, want)
		}
	}
}

func TestScoreCommand_Deterministic(t *testing.T) {
	t.Parallel()

	first, err := runCLI(t, "score", "spending feels worth it lately", "--anchor-set", "spend", "--json")
	if err != nil {
		t.Fatalf("score: %v", err)
	}
	second, err := runCLI(t, "score", "spending feels worth it lately", "--anchor-set", "spend", "--json")
	if err != nil {
		t.Fatalf("score: %v", err)
	}
	if first != second {
		t.Fatalf("outputs differ:\n%s\n%s", first, second)
	}
}

func TestScoreCommand_AnchorValidation(t *testing.T) {
	t.Parallel()

	_, err := runCLI(t, "score", "some text", "--anchor", "one", "--anchor", "two")
	if err == nil {
		t.Fatalf("expected error for short anchor list")
	}

	_, err = runCLI(t, "score", "some text", "--anchor-set", "mystery")
	if err == nil || !strings.Contains(err.Error(), "unknown anchor set") {
		t.Fatalf("err = %v", err)
	}
}
