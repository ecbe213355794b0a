package factory

import (
	"errors"
	"io/fs"

	"go.uber.org/zap"

	"github.com/mikey/mail-spam-analyzer/internal/analyzer"
	"github.com/mikey/mail-spam-analyzer/internal/config"
	"github.com/mikey/mail-spam-analyzer/internal/core"
	"github.com/mikey/mail-spam-analyzer/internal/domain"
	"github.com/mikey/mail-spam-analyzer/internal/inspect"
	"github.com/mikey/mail-spam-analyzer/internal/metrics"
	"github.com/mikey/mail-spam-analyzer/internal/sentiment"
	"github.com/mikey/mail-spam-analyzer/internal/utils"
	"github.com/mikey/mail-spam-analyzer/internal/whitelist"
	"github.com/mikey/mail-spam-analyzer/internal/wordlist"
)

// AnalyzerFactory assembles the analysis service from configuration
type AnalyzerFactory struct {
	cfg           *config.Config
	logger        *zap.Logger
	recorder      *metrics.Recorder
	textProcessor *utils.TextProcessor
}

// NewAnalyzerFactory creates a new analyzer factory. recorder may be nil.
// The factory owns the text processor shared by the body inspector and the
// LLM prompt builders.
func NewAnalyzerFactory(cfg *config.Config, logger *zap.Logger, recorder *metrics.Recorder) *AnalyzerFactory {
	return &AnalyzerFactory{
		cfg:           cfg,
		logger:        logger,
		recorder:      recorder,
		textProcessor: utils.NewTextProcessor(logger),
	}
}

// TextProcessor returns the text processor used for normalization and prompts
func (f *AnalyzerFactory) TextProcessor() *utils.TextProcessor {
	return f.textProcessor
}

// CreateResolver creates the DNS resolver
func (f *AnalyzerFactory) CreateResolver() (domain.Resolver, error) {
	dnsCfg, err := f.cfg.GetDNS()
	if err != nil {
		return nil, err
	}
	return domain.NewDNSResolver(dnsCfg.Servers, dnsCfg.Timeout, dnsCfg.MaxInFlight, f.logger, f.recorder), nil
}

// LoadWordlist reads the forbidden words list. A missing file leaves the
// list empty; any other read error is returned.
func (f *AnalyzerFactory) LoadWordlist() (*wordlist.Wordlist, error) {
	path := f.cfg.GetString("analyzer.wordlist_path")
	words, err := wordlist.Load(path)
	if errors.Is(err, fs.ErrNotExist) {
		f.logger.Warn("Wordlist not found, forbidden word checks disabled", zap.String("path", path))
		return wordlist.New(), nil
	}
	if err != nil {
		return nil, err
	}
	f.logger.Info("Loaded wordlist", zap.String("path", path), zap.Int("words", words.Len()))
	return words, nil
}

// CreateService wires the inspectors around resolver and decider. cache may be nil.
func (f *AnalyzerFactory) CreateService(
	resolver domain.Resolver,
	words *wordlist.Wordlist,
	decider core.Decider,
	cache core.CacheRepository,
) (*analyzer.Service, error) {
	analyzerCfg := f.cfg.GetAnalyzer()
	cacheCfg, err := f.cfg.GetCache()
	if err != nil {
		return nil, err
	}

	headers := inspect.NewHeaderInspector(words, resolver, analyzerCfg.VerifyDKIM, f.logger)
	body := inspect.NewBodyInspector(words, sentiment.New(), f.textProcessor, analyzerCfg.UppercaseRatio, f.logger)
	checker := whitelist.NewChecker(f.cfg.GetStringSlice("spam.whitelisted_domains"), f.logger)

	f.logger.Info("Analyzer configured",
		zap.String("strategy", decider.Name()),
		zap.Int("concurrency", analyzerCfg.Concurrency),
		zap.Bool("cache", cache != nil))

	return analyzer.NewService(
		resolver,
		headers,
		body,
		decider,
		cache,
		checker,
		f.recorder,
		f.logger,
		analyzer.Options{
			Concurrency:  analyzerCfg.Concurrency,
			CacheEnabled: cache != nil,
			CacheTTL:     cacheCfg.TTL,
		},
	), nil
}
