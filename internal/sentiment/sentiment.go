package sentiment

import (
	"math"

	"github.com/jonreiter/govader"
)

// Analyzer scores text polarity in [-1, 1] and subjectivity in [0, 1] with
// the VADER lexicon. It is safe for concurrent use once built.
type Analyzer struct {
	vader *govader.SentimentIntensityAnalyzer
}

// New returns an analyzer backed by the VADER lexicon
func New() *Analyzer {
	return &Analyzer{vader: govader.NewSentimentIntensityAnalyzer()}
}

// Score returns the polarity and subjectivity of text. Polarity is the VADER
// compound score; subjectivity is the share of the text carrying sentiment.
// Text without any lexicon word scores (0, 0).
func (a *Analyzer) Score(text string) (polarity, subjectivity float64) {
	s := a.vader.PolarityScores(text)
	return clamp(s.Compound, -1, 1), clamp(s.Positive+s.Negative, 0, 1)
}

func clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return math.Max(lo, math.Min(hi, v))
}
