package factory

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/mikey/mail-spam-analyzer/internal/config"
	"github.com/mikey/mail-spam-analyzer/internal/core"
	"github.com/mikey/mail-spam-analyzer/internal/decision"
)

// DeciderFactory creates the decision strategy named by analyzer.strategy
type DeciderFactory struct {
	cfg    *config.Config
	logger *zap.Logger
	llm    *LLMFactory
}

// NewDeciderFactory creates a new decider factory. The LLM factory is only
// used when the llm strategy is configured.
func NewDeciderFactory(cfg *config.Config, logger *zap.Logger, llm *LLMFactory) *DeciderFactory {
	return &DeciderFactory{
		cfg:    cfg,
		logger: logger,
		llm:    llm,
	}
}

// CreateDecider creates the configured decider
func (f *DeciderFactory) CreateDecider() (core.Decider, error) {
	analyzerCfg := f.cfg.GetAnalyzer()

	switch analyzerCfg.Strategy {
	case decision.StrategyRules:
		return decision.NewRuleTree(analyzerCfg.ForbiddenWordsThreshold), nil

	case decision.StrategyScore:
		weights := decision.DefaultWeights()
		if err := f.cfg.UnmarshalKey("analyzer.weights", &weights); err != nil {
			return nil, err
		}
		return decision.NewScorer(weights, analyzerCfg.ScoreCutoff), nil

	case decision.StrategyClassifier:
		model := decision.DefaultModel()
		if analyzerCfg.ModelPath != "" {
			loaded, err := decision.LoadModel(analyzerCfg.ModelPath)
			if err != nil {
				return nil, err
			}
			model = loaded
			f.logger.Info("Loaded classifier model", zap.String("path", analyzerCfg.ModelPath))
		}
		return decision.NewClassifier(model), nil

	case decision.StrategyLLM:
		client, err := f.llm.CreateLLMClient()
		if err != nil {
			return nil, err
		}
		return decision.NewLLMDecider(client, f.cfg.GetLLM().Threshold, f.logger), nil

	default:
		return nil, fmt.Errorf("unsupported decision strategy: %s", analyzerCfg.Strategy)
	}
}
