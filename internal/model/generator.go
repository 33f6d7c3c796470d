package model

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/harunnryd/opsgate/internal/logger"
	"github.com/harunnryd/opsgate/internal/model/contract"
)

const (
	noChoicesReply        = "LLM returned no choices. Please check runtime logs."
	unexpectedFormatReply = "LLM returned an unexpected response format."
	unreachableReplyFmt   = "LLM endpoint not reachable. Returning deterministic fallback. Reason: %v"
)

// Generator turns a system role and a user prompt into text. Generate never
// fails: provider errors come back as deterministic fallback text.
type Generator struct {
	router ModelRouter
	model  string
}

func NewGenerator(router ModelRouter, model string) *Generator {
	return &Generator{router: router, model: model}
}

func (g *Generator) Generate(ctx context.Context, system, user string) (reply string) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("Model provider panicked, using fallback reply", "model", g.model, "panic", r, "trace_id", logger.GetTraceID(ctx))
			reply = fmt.Sprintf(unreachableReplyFmt, fmt.Errorf("provider panic: %v", r))
		}
	}()

	resp, err := g.router.Route(ctx, g.model, contract.CompletionRequest{
		System:   system,
		Messages: []contract.Message{{Role: "user", Content: user}},
	})

	switch {
	case err == nil && resp != nil:
		return resp.Content
	case err == nil:
		return unexpectedFormatReply
	case errors.Is(err, contract.ErrNoChoices):
		slog.Warn("Model returned no choices", "model", g.model, "trace_id", logger.GetTraceID(ctx))
		return noChoicesReply
	case errors.Is(err, contract.ErrUnexpectedFormat):
		slog.Warn("Model returned unexpected format", "model", g.model, "trace_id", logger.GetTraceID(ctx))
		return unexpectedFormatReply
	default:
		slog.Warn("Model unavailable, using fallback reply", "model", g.model, "error", err, "trace_id", logger.GetTraceID(ctx))
		return fmt.Sprintf(unreachableReplyFmt, err)
	}
}
