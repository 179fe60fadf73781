package oracle

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

const (
	defaultCodexBinary  = "codex"
	defaultCodexModel   = "gpt-5.1"
	defaultCodexSandbox = "read-only"
	defaultTimeout      = 120 * time.Second
)

// CodexInvoker runs the codex CLI in non-interactive exec mode. The tool
// is stateful and single-session, so a mutex serializes every invocation
// regardless of how many goroutines hold the invoker.
type CodexInvoker struct {
	Binary         string
	Model          string
	Sandbox        string
	DefaultTimeout time.Duration
	SessionRoot    string // overrides the ~/.codex/sessions convention, for tests

	mu sync.Mutex
}

// NewCodexInvoker builds a CodexInvoker with defaults filled in.
func NewCodexInvoker(binary, model, sandbox string, timeout time.Duration) *CodexInvoker {
	c := &CodexInvoker{
		Binary:         strings.TrimSpace(binary),
		Model:          strings.TrimSpace(model),
		Sandbox:        strings.TrimSpace(sandbox),
		DefaultTimeout: timeout,
	}
	if c.Binary == "" {
		c.Binary = defaultCodexBinary
	}
	if c.Model == "" {
		c.Model = defaultCodexModel
	}
	if c.Sandbox == "" {
		c.Sandbox = defaultCodexSandbox
	}
	if c.DefaultTimeout <= 0 {
		c.DefaultTimeout = defaultTimeout
	}
	return c
}

// Invoke spawns one codex exec process and captures its final message.
// The scratch directory holding the output file and any materialized
// image is removed regardless of outcome.
func (c *CodexInvoker) Invoke(ctx context.Context, req *Request) (*Outcome, error) {
	if c == nil {
		return nil, errors.New("oracle: nil codex invoker")
	}
	if ctx == nil {
		return nil, errors.New("oracle: nil context")
	}
	if req == nil {
		return nil, errors.New("oracle: nil request")
	}
	prompt := strings.TrimSpace(req.Prompt)
	if prompt == "" {
		return nil, errors.New("oracle: empty prompt")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	scratch, err := os.MkdirTemp("", "ssr-oracle-*")
	if err != nil {
		return nil, fmt.Errorf("oracle: create scratch dir: %w", err)
	}
	defer func() { _ = os.RemoveAll(scratch) }()

	outPath := filepath.Join(scratch, "last-message.txt")
	args := []string{
		"exec",
		"--model", c.Model,
		"--sandbox", c.Sandbox,
		"--color", "never",
		"--output-last-message", outPath,
	}

	if req.ImageBase64 != "" {
		imgPath, err := materializeImage(scratch, req.ImageBase64, req.ImageName)
		if err != nil {
			return nil, &Failure{Kind: FailureInvalidStimulus, Message: err.Error()}
		}
		args = append(args, "--image", imgPath)
	}

	args = append(args, req.ExtraFlags...)
	args = append(args, prompt)

	timeout := req.Timeout
	if timeout <= 0 {
		timeout = c.DefaultTimeout
	}
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, c.Binary, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	runErr := cmd.Run()

	if runCtx.Err() == context.DeadlineExceeded {
		return nil, &Failure{
			Kind:    FailureTimeout,
			Message: fmt.Sprintf("killed after %s", timeout),
		}
	}
	if runErr != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			msg = strings.TrimSpace(stdout.String())
		}
		if msg == "" {
			msg = runErr.Error()
		}
		return nil, &Failure{Kind: FailureOracleError, Message: msg}
	}

	text, err := os.ReadFile(outPath)
	if err != nil {
		return nil, &Failure{
			Kind:    FailureOracleError,
			Message: fmt.Sprintf("read last message: %v", err),
		}
	}
	trimmed := strings.TrimSpace(string(text))
	if trimmed == "" {
		return nil, &Failure{Kind: FailureOracleError, Message: "oracle returned empty output"}
	}

	return &Outcome{
		Text:       trimmed,
		SessionRef: SessionDayDir(c.sessionRoot(), time.Now().UTC()),
	}, nil
}

func (c *CodexInvoker) sessionRoot() string {
	if c != nil && strings.TrimSpace(c.SessionRoot) != "" {
		return c.SessionRoot
	}
	return DefaultSessionRoot()
}

// materializeImage decodes the transport-encoded payload into the scratch
// directory, keeping the original extension so the tool can sniff the type.
func materializeImage(dir, payload, name string) (string, error) {
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return "", fmt.Errorf("decode image payload: %v", err)
	}
	if len(data) == 0 {
		return "", errors.New("empty image payload")
	}

	suffix := filepath.Ext(name)
	if suffix == "" {
		suffix = ".png"
	}
	path := filepath.Join(dir, "input"+suffix)
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return "", fmt.Errorf("write image: %v", err)
	}
	return path, nil
}
