package decision

import (
	"context"
	"fmt"
	"time"

	"github.com/mikey/mail-spam-analyzer/internal/core"
)

// DefaultForbiddenWordsThreshold is the forbidden word ratio above which
// authenticated mail with links is downgraded to a warning
const DefaultForbiddenWordsThreshold = 0.05

// RuleTree is the hand-written decision chain over the header and body signals.
// It has no state besides its threshold and is safe for concurrent use.
type RuleTree struct {
	threshold float64
}

// NewRuleTree creates a rule tree. A non-positive threshold selects the default.
func NewRuleTree(threshold float64) *RuleTree {
	if threshold <= 0 {
		threshold = DefaultForbiddenWordsThreshold
	}
	return &RuleTree{threshold: threshold}
}

// Name implements core.Decider
func (t *RuleTree) Name() string {
	return StrategyRules
}

// Threshold returns the forbidden word ratio in use
func (t *RuleTree) Threshold() float64 {
	return t.threshold
}

// Evaluate walks the chain and returns the label with the reason it was reached
func (t *RuleTree) Evaluate(a *core.MailAnalysis) (core.Label, string) {
	h, b := a.Headers, a.Body

	switch {
	case b.ContainsScript:
		return core.LabelSpam, "body contains script content"
	case h.AuthWarn:
		return core.LabelSpam, "authentication warning present"
	case !h.HasSPF && !h.DomainMatches:
		return core.LabelSpam, "no SPF pass and sender domain does not match the delivering server"
	case b.HasUnsecureLinks && b.ForbiddenWordsPercentage > t.threshold:
		return core.LabelWarning, fmt.Sprintf("insecure links and forbidden word ratio %.2f above %.2f",
			b.ForbiddenWordsPercentage, t.threshold)
	default:
		return core.LabelTrust, "authenticated sender without suspicious content"
	}
}

// Decide implements core.Decider
func (t *RuleTree) Decide(_ context.Context, a *core.MailAnalysis) (*core.Verdict, error) {
	label, reason := t.Evaluate(a)

	score := 0.0
	switch label {
	case core.LabelSpam:
		score = 1.0
	case core.LabelWarning:
		score = 0.5
	}

	return &core.Verdict{
		Label:       label,
		IsSpam:      label == core.LabelSpam,
		Score:       score,
		Confidence:  1.0,
		Explanation: reason,
		Strategy:    t.Name(),
		AnalyzedAt:  time.Now(),
	}, nil
}
