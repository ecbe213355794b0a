package decision

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/mikey/mail-spam-analyzer/internal/core"
)

// LLMDecider asks a language model for the verdict
type LLMDecider struct {
	client    core.LLMClient
	threshold float64
	logger    *zap.Logger
}

// NewLLMDecider creates a decider backed by client. Scores at or above
// threshold are spam regardless of the flag the model returned.
func NewLLMDecider(client core.LLMClient, threshold float64, logger *zap.Logger) *LLMDecider {
	return &LLMDecider{client: client, threshold: threshold, logger: logger}
}

// Name implements core.Decider
func (d *LLMDecider) Name() string {
	return StrategyLLM
}

// Decide implements core.Decider
func (d *LLMDecider) Decide(ctx context.Context, a *core.MailAnalysis) (*core.Verdict, error) {
	v, err := d.client.AssessEmail(ctx, a)
	if err != nil {
		return nil, fmt.Errorf("failed to assess email with LLM: %w", err)
	}

	if d.threshold > 0 && v.Score >= d.threshold && !v.IsSpam {
		d.logger.Debug("Score above threshold, overriding model flag",
			zap.String("message_id", a.MessageID),
			zap.Float64("score", v.Score),
			zap.Float64("threshold", d.threshold))
		v.IsSpam = true
	}

	v.Label = core.LabelHam
	if v.IsSpam {
		v.Label = core.LabelSpam
	}
	v.Strategy = d.Name()
	if v.AnalyzedAt.IsZero() {
		v.AnalyzedAt = time.Now()
	}
	return v, nil
}

// Close releases the client when it holds resources
func (d *LLMDecider) Close() error {
	if closer, ok := d.client.(interface{ Close() error }); ok {
		return closer.Close()
	}
	return nil
}
