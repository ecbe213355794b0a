package analyzer

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mikey/mail-spam-analyzer/internal/core"
	"github.com/mikey/mail-spam-analyzer/internal/decision"
)

func analyses(t *testing.T, svc *Service, emails ...*core.Email) []*core.MailAnalysis {
	t.Helper()
	out := make([]*core.MailAnalysis, len(emails))
	for i, e := range emails {
		a, err := svc.Analyze(context.Background(), e)
		require.NoError(t, err)
		out[i] = a
	}
	return out
}

func TestClassifyAndIsSpam(t *testing.T) {
	svc := newService(t, decision.NewRuleTree(0), nil, "spammer.biz")
	ctx := context.Background()
	as := analyses(t, svc, trustedEmail(), spamEmail(), warningEmail())

	tests := []struct {
		analysis *core.MailAnalysis
		label    core.Label
		spam     bool
	}{
		{as[0], core.LabelTrust, false},
		// The whitelist only applies to Decide
		{as[1], core.LabelSpam, true},
		{as[2], core.LabelWarning, false},
	}

	for _, tt := range tests {
		t.Run(tt.analysis.MessageID, func(t *testing.T) {
			label, err := svc.Classify(ctx, tt.analysis)
			require.NoError(t, err)
			assert.Equal(t, tt.label, label)

			spam, err := svc.IsSpam(ctx, tt.analysis)
			require.NoError(t, err)
			assert.Equal(t, tt.spam, spam)
		})
	}
}

func TestClassifyMultiple(t *testing.T) {
	for _, d := range []core.Decider{decision.NewRuleTree(0), decision.NewClassifier(decision.DefaultModel())} {
		t.Run(d.Name(), func(t *testing.T) {
			svc := newService(t, d, nil)
			ctx := context.Background()
			as := analyses(t, svc, trustedEmail(), spamEmail(), warningEmail())

			verdicts, err := svc.ClassifyMultiple(ctx, as)
			require.NoError(t, err)
			require.Len(t, verdicts, len(as))

			for i, a := range as {
				single, err := d.Decide(ctx, a)
				require.NoError(t, err)
				assert.Equal(t, single.Label, verdicts[i].Label)
			}
			assert.Equal(t, core.LabelSpam, verdicts[1].Label)
		})
	}
}

func TestClassifyMultipleCancelled(t *testing.T) {
	svc := newService(t, decision.NewRuleTree(0), nil)
	as := analyses(t, svc, trustedEmail())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := svc.ClassifyMultiple(ctx, as)
	assert.ErrorIs(t, err, context.Canceled)
}
