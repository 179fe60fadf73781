package oracle

import (
	"errors"
	"fmt"
	"strings"

	"github.com/stellarlinkco/persona-ssr/internal/config"
)

// FromConfig builds the configured oracle backend.
func FromConfig(cfg *config.Config) (Oracle, error) {
	if cfg == nil {
		return nil, errors.New("oracle: missing config")
	}

	backend := strings.ToLower(strings.TrimSpace(cfg.Oracle.Backend))
	if backend == "" {
		backend = "codex"
	}

	switch backend {
	case "codex":
		inv := NewCodexInvoker(cfg.Oracle.Binary, cfg.Oracle.Model, cfg.Oracle.Sandbox, cfg.Oracle.Timeout)
		inv.SessionRoot = strings.TrimSpace(cfg.Oracle.SessionRoot)
		return inv, nil
	case "openai":
		return NewOpenAIInvoker(cfg.Oracle.APIKey, cfg.Oracle.BaseURL, cfg.Oracle.Model, cfg.Oracle.Timeout), nil
	case "claude":
		return NewClaudeInvoker(cfg.Oracle.APIKey, cfg.Oracle.Model, cfg.Oracle.Timeout), nil
	default:
		return nil, fmt.Errorf("oracle: unsupported backend %q", backend)
	}
}

// SessionRootFromConfig resolves the session artifact root for listing.
func SessionRootFromConfig(cfg *config.Config) string {
	if cfg != nil {
		if root := strings.TrimSpace(cfg.Oracle.SessionRoot); root != "" {
			return root
		}
	}
	return DefaultSessionRoot()
}
