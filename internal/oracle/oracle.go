package oracle

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// FailureKind classifies why an oracle invocation failed.
type FailureKind string

const (
	// FailureTimeout means the external process exceeded its deadline and
	// was killed.
	FailureTimeout FailureKind = "timeout"
	// FailureOracleError means the process exited non-zero or produced no
	// usable output.
	FailureOracleError FailureKind = "oracle_error"
	// FailureInvalidStimulus means the stimulus could not be prepared
	// (for example an undecodable image payload); no process was spawned.
	FailureInvalidStimulus FailureKind = "invalid_stimulus"
)

// Failure is a classified oracle failure. It aborts the current task only;
// retrying is a caller decision, never done inside an invoker.
type Failure struct {
	Kind    FailureKind
	Message string
}

// Error formats the failure for task records.
func (f *Failure) Error() string {
	if f == nil {
		return "oracle: failure <nil>"
	}
	msg := strings.TrimSpace(f.Message)
	if msg == "" {
		return fmt.Sprintf("oracle: %s", f.Kind)
	}
	return fmt.Sprintf("oracle: %s: %s", f.Kind, msg)
}

// Request describes a single oracle invocation.
type Request struct {
	Prompt      string
	ImageBase64 string        // transport-encoded image payload, optional
	ImageName   string        // original filename, used for the temp suffix
	Timeout     time.Duration // zero selects the invoker default
	ExtraFlags  []string      // appended verbatim before the prompt (CLI backends)
}

// Outcome is a successful oracle reaction.
type Outcome struct {
	// Text is the final textual output of the oracle, not the full
	// transcript.
	Text string
	// SessionRef is an opaque reference to the session artifact the
	// external tool writes as a side effect. The engine records it but
	// neither constructs nor parses the artifact.
	SessionRef string
}

// Oracle invokes the external text-generation process. Implementations are
// synchronous and must never run two invocations concurrently; callers
// block for the duration of the call, bounded by the request timeout.
type Oracle interface {
	Invoke(ctx context.Context, req *Request) (*Outcome, error)
}
