package ai

import (
	"context"

	"github.com/bryanwahyu/automaton-relay/internal/domain/reporting"
)

// Client port for AI-backed finding summaries
type Client interface {
	Summarize(ctx context.Context, f *reporting.Finding) (string, error)
}
