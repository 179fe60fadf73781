package oracle

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

const defaultOpenAIModel = "gpt-4o"

// OpenAIInvoker satisfies the oracle contract with the OpenAI chat API
// instead of the codex CLI. It exists for deployments without the CLI
// installed; the queue treats both backends identically.
type OpenAIInvoker struct {
	client         *openai.Client
	model          string
	defaultTimeout time.Duration

	mu sync.Mutex
}

// NewOpenAIInvoker builds an API-backed invoker.
func NewOpenAIInvoker(apiKey, baseURL, model string, timeout time.Duration) *OpenAIInvoker {
	cfg := openai.DefaultConfig(strings.TrimSpace(apiKey))
	if v := strings.TrimSpace(baseURL); v != "" {
		cfg.BaseURL = strings.TrimRight(v, "/")
	}

	m := strings.TrimSpace(model)
	if m == "" {
		m = defaultOpenAIModel
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	return &OpenAIInvoker{
		client:         openai.NewClientWithConfig(cfg),
		model:          m,
		defaultTimeout: timeout,
	}
}

// Invoke sends one single-shot chat completion and returns its text.
func (o *OpenAIInvoker) Invoke(ctx context.Context, req *Request) (*Outcome, error) {
	if o == nil || o.client == nil {
		return nil, errors.New("oracle: nil openai invoker")
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

	o.mu.Lock()
	defer o.mu.Unlock()

	msg := openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser}
	if req.ImageBase64 != "" {
		if _, err := base64.StdEncoding.DecodeString(req.ImageBase64); err != nil {
			return nil, &Failure{
				Kind:    FailureInvalidStimulus,
				Message: fmt.Sprintf("decode image payload: %v", err),
			}
		}
		msg.MultiContent = []openai.ChatMessagePart{
			{Type: openai.ChatMessagePartTypeText, Text: prompt},
			{
				Type: openai.ChatMessagePartTypeImageURL,
				ImageURL: &openai.ChatMessageImageURL{
					URL: fmt.Sprintf("data:%s;base64,%s", imageMediaType(req.ImageName), req.ImageBase64),
				},
			},
		}
	} else {
		msg.Content = prompt
	}

	timeout := req.Timeout
	if timeout <= 0 {
		timeout = o.defaultTimeout
	}
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	resp, err := o.client.CreateChatCompletion(runCtx, openai.ChatCompletionRequest{
		Model:    o.model,
		Messages: []openai.ChatCompletionMessage{msg},
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
	if len(resp.Choices) == 0 {
		return nil, &Failure{Kind: FailureOracleError, Message: "empty choices"}
	}

	text := strings.TrimSpace(resp.Choices[0].Message.Content)
	if text == "" {
		return nil, &Failure{Kind: FailureOracleError, Message: "oracle returned empty output"}
	}

	return &Outcome{Text: text, SessionRef: resp.ID}, nil
}

// imageMediaType maps a filename extension to its MIME type, defaulting
// to PNG for unknown extensions.
func imageMediaType(name string) string {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".gif":
		return "image/gif"
	case ".webp":
		return "image/webp"
	default:
		return "image/png"
	}
}
