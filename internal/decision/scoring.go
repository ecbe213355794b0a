package decision

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/mikey/mail-spam-analyzer/internal/core"
)

// DefaultScoreCutoff separates ham from spam; scores strictly above it are spam
const DefaultScoreCutoff = 3.5

// Weights are the penalties of the scoring strategy. Every weight is added when
// its signal is bad: a missing authentication result or a present content red flag.
// Keys follow analyzer.weights.<key> in the configuration.
type Weights struct {
	HasSPF           float64 `mapstructure:"has_spf"`
	HasDKIM          float64 `mapstructure:"has_dkim"`
	HasDMARC         float64 `mapstructure:"has_dmarc"`
	DomainMatches    float64 `mapstructure:"domain_matches"`
	AuthWarn         float64 `mapstructure:"auth_warn"`
	SuspectSubject   float64 `mapstructure:"suspect_subject"`
	SubjectUppercase float64 `mapstructure:"subject_uppercase"`
	InvalidDate      float64 `mapstructure:"invalid_date"`
	UppercaseBody    float64 `mapstructure:"uppercase_body"`
	Script           float64 `mapstructure:"script"`
	Form             float64 `mapstructure:"form"`
	UnsecureLinks    float64 `mapstructure:"unsecure_links"`
	ForbiddenWords   float64 `mapstructure:"forbidden_words_percentage"`
	Executable       float64 `mapstructure:"attach_is_executable"`
}

// DefaultWeights returns the built-in penalties
func DefaultWeights() Weights {
	return Weights{
		HasSPF:           2.0,
		HasDKIM:          0.5,
		HasDMARC:         0.5,
		DomainMatches:    1.5,
		AuthWarn:         2.0,
		SuspectSubject:   1.0,
		SubjectUppercase: 0.5,
		InvalidDate:      0.5,
		UppercaseBody:    0.5,
		Script:           3.0,
		Form:             1.0,
		UnsecureLinks:    0.5,
		ForbiddenWords:   1.0,
		Executable:       2.0,
	}
}

// Scorer sums weighted penalties and compares the total to a cutoff
type Scorer struct {
	weights Weights
	cutoff  float64
}

// NewScorer creates a scorer. A non-positive cutoff selects the default.
func NewScorer(weights Weights, cutoff float64) *Scorer {
	if cutoff <= 0 {
		cutoff = DefaultScoreCutoff
	}
	return &Scorer{weights: weights, cutoff: cutoff}
}

// Name implements core.Decider
func (s *Scorer) Name() string {
	return StrategyScore
}

// Score returns the penalty total and the signals that contributed to it
func (s *Scorer) Score(a *core.MailAnalysis) (float64, []string) {
	h, b, at := a.Headers, a.Body, a.Attachments
	w := s.weights

	var (
		score   float64
		reasons []string
	)
	add := func(cond bool, weight float64, reason string) {
		if cond && weight != 0 {
			score += weight
			reasons = append(reasons, reason)
		}
	}

	// Absent authentication
	add(!h.HasSPF, w.HasSPF, "no SPF pass")
	add(!h.HasDKIM, w.HasDKIM, "no DKIM")
	add(!h.HasDMARC, w.HasDMARC, "no DMARC pass")
	add(!h.DomainMatches, w.DomainMatches, "sender domain mismatch")

	// Present red flags
	add(h.AuthWarn, w.AuthWarn, "authentication warning")
	add(h.HasSuspectSubject, w.SuspectSubject, "suspect subject")
	add(h.SubjectIsUppercase, w.SubjectUppercase, "uppercase subject")
	add(h.SendDate == nil || !h.SendDate.Valid(), w.InvalidDate, "missing or implausible send date")
	add(b.IsUppercase, w.UppercaseBody, "uppercase body")
	add(b.ContainsScript, w.Script, "script content")
	add(b.ContainsForm, w.Form, "form content")
	add(b.HasUnsecureLinks, w.UnsecureLinks, "insecure links")
	add(at.AttachmentIsExecutable, w.Executable, "executable attachment")

	if b.ForbiddenWordsPercentage > 0 && w.ForbiddenWords != 0 {
		score += b.ForbiddenWordsPercentage * w.ForbiddenWords * 10
		reasons = append(reasons, fmt.Sprintf("forbidden words %.0f%%", b.ForbiddenWordsPercentage*100))
	}

	return score, reasons
}

// Decide implements core.Decider
func (s *Scorer) Decide(_ context.Context, a *core.MailAnalysis) (*core.Verdict, error) {
	score, reasons := s.Score(a)

	label := core.LabelHam
	if score > s.cutoff {
		label = core.LabelSpam
	}

	explanation := "no penalties"
	if len(reasons) > 0 {
		explanation = strings.Join(reasons, ", ")
	}

	return &core.Verdict{
		Label:       label,
		IsSpam:      label == core.LabelSpam,
		Score:       score,
		Confidence:  clamp01(math.Abs(score-s.cutoff) / s.cutoff),
		Explanation: fmt.Sprintf("score %.2f (cutoff %.2f): %s", score, s.cutoff, explanation),
		Strategy:    s.Name(),
		AnalyzedAt:  time.Now(),
	}, nil
}
