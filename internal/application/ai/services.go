package ai

import (
	"context"
	"strings"

	"github.com/bryanwahyu/automaton-relay/internal/domain/ai"
	"github.com/bryanwahyu/automaton-relay/internal/domain/reporting"
)

const annotationCategory = "ai_summary"

type Service struct {
	client ai.Client
}

func NewService(client ai.Client) *Service {
	return &Service{client: client}
}

// Annotate asks the AI client for a summary of the finding and wraps it as
// one markdown enrichment. Empty summaries produce no enrichment.
func (s *Service) Annotate(ctx context.Context, f *reporting.Finding) (*reporting.Enrichment, error) {
	summary, err := s.client.Summarize(ctx, f)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(summary) == "" {
		return nil, nil
	}
	return &reporting.Enrichment{
		Blocks:   []reporting.Block{reporting.MarkdownBlock{Text: summary}},
		Category: annotationCategory,
	}, nil
}
