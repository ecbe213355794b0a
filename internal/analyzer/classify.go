package analyzer

import (
	"context"
	"fmt"

	"github.com/mikey/mail-spam-analyzer/internal/core"
)

// Classify returns the label the configured decider assigns to analysis.
// Unlike Decide it works on the feature record alone, so the whitelist and
// the verdict cache are not consulted.
func (s *Service) Classify(ctx context.Context, analysis *core.MailAnalysis) (core.Label, error) {
	v, err := s.decider.Decide(ctx, analysis)
	if err != nil {
		return "", fmt.Errorf("failed to classify %s: %w", analysis.MessageID, err)
	}
	return v.Label, nil
}

// IsSpam reports whether the configured decider labels analysis as spam
func (s *Service) IsSpam(ctx context.Context, analysis *core.MailAnalysis) (bool, error) {
	label, err := s.Classify(ctx, analysis)
	if err != nil {
		return false, err
	}
	return label == core.LabelSpam, nil
}

// ClassifyMultiple returns one verdict per analysis, in order. Batch capable
// deciders receive the whole slice in a single call.
func (s *Service) ClassifyMultiple(ctx context.Context, analyses []*core.MailAnalysis) ([]*core.Verdict, error) {
	if batch, ok := s.decider.(core.BatchDecider); ok {
		verdicts, err := batch.DecideAll(ctx, analyses)
		if err != nil {
			return nil, fmt.Errorf("failed to classify batch: %w", err)
		}
		return verdicts, nil
	}

	verdicts := make([]*core.Verdict, len(analyses))
	for i, a := range analyses {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		v, err := s.decider.Decide(ctx, a)
		if err != nil {
			return nil, fmt.Errorf("failed to classify %s: %w", a.MessageID, err)
		}
		verdicts[i] = v
	}
	return verdicts, nil
}
