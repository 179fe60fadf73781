package oracle

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

const (
	defaultClaudeModel     = "claude-sonnet-4-5-20250929"
	defaultClaudeMaxTokens = 1024
)

// ClaudeInvoker satisfies the oracle contract with the Anthropic messages
// API. Like every invoker it is single-shot and serialized.
type ClaudeInvoker struct {
	client         anthropic.Client
	model          string
	defaultTimeout time.Duration

	mu sync.Mutex
}

// NewClaudeInvoker builds an Anthropic-backed invoker.
func NewClaudeInvoker(apiKey, model string, timeout time.Duration) *ClaudeInvoker {
	opts := []option.RequestOption{option.WithMaxRetries(0)}
	if key := strings.TrimSpace(apiKey); key != "" {
		opts = append(opts, option.WithAPIKey(key))
	}

	m := strings.TrimSpace(model)
	if m == "" {
		m = defaultClaudeModel
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	return &ClaudeInvoker{
		client:         anthropic.NewClient(opts...),
		model:          m,
		defaultTimeout: timeout,
	}
}

// Invoke sends one single-shot message and returns the concatenated text.
func (c *ClaudeInvoker) Invoke(ctx context.Context, req *Request) (*Outcome, error) {
	if c == nil {
		return nil, errors.New("oracle: nil claude invoker")
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

	blocks := []anthropic.ContentBlockParamUnion{anthropic.NewTextBlock(prompt)}
	if req.ImageBase64 != "" {
		if _, err := base64.StdEncoding.DecodeString(req.ImageBase64); err != nil {
			return nil, &Failure{
				Kind:    FailureInvalidStimulus,
				Message: fmt.Sprintf("decode image payload: %v", err),
			}
		}
		blocks = append(blocks, anthropic.NewImageBlockBase64(imageMediaType(req.ImageName), req.ImageBase64))
	}

	timeout := req.Timeout
	if timeout <= 0 {
		timeout = c.defaultTimeout
	}
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	msg, err := c.client.Messages.New(runCtx, anthropic.MessageNewParams{
		Model:     anthropic.Model(c.model),
		MaxTokens: defaultClaudeMaxTokens,
		Messages: []anthropic.MessageParam{
			{Role: anthropic.MessageParamRoleUser, Content: blocks},
		},
	})
	if err != nil {
		if runCtx.Err() == context.DeadlineExceeded {
			return nil, &Failure{
				Kind:    FailureTimeout,
				Message: fmt.Sprintf("cancelled after %s", timeout),
			}
		}
		return nil, &Failure{Kind: FailureOracleError, Message: err.Error()}
	}

	var sb strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			sb.WriteString(block.AsText().Text)
		}
	}
	text := strings.TrimSpace(sb.String())
	if text == "" {
		return nil, &Failure{Kind: FailureOracleError, Message: "oracle returned empty output"}
	}

	return &Outcome{Text: text, SessionRef: msg.ID}, nil
}
