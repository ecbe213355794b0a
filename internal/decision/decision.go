// Package decision turns the feature record of a message into a verdict.
// Every strategy implements core.Decider; the analyzer picks one at
// construction time and never branches on the strategy itself.
package decision

import "errors"

// Strategy names, as used by analyzer.strategy and in verdicts
const (
	StrategyRules      = "rules"
	StrategyScore      = "score"
	StrategyClassifier = "classifier"
	StrategyLLM        = "llm"
)

// ErrFeatureMismatch is returned when a model was trained on a different feature layout
var ErrFeatureMismatch = errors.New("model features do not match the analysis vector")

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
