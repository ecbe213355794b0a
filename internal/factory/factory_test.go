package factory

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mikey/mail-spam-analyzer/internal/adapters/cache"
	"github.com/mikey/mail-spam-analyzer/internal/adapters/filter"
	"github.com/mikey/mail-spam-analyzer/internal/config"
	"github.com/mikey/mail-spam-analyzer/internal/core"
	"github.com/mikey/mail-spam-analyzer/internal/decision"
	"github.com/mikey/mail-spam-analyzer/internal/utils"
	"github.com/mikey/mail-spam-analyzer/internal/wordlist"
)

func newDeciderFactory(cfg *config.Config) *DeciderFactory {
	logger := zap.NewNop()
	return NewDeciderFactory(cfg, logger, NewLLMFactory(cfg, logger, utils.NewTextProcessor(logger)))
}

func TestCreateDecider(t *testing.T) {
	tests := []struct {
		strategy string
		want     string
	}{
		{"rules", decision.StrategyRules},
		{"score", decision.StrategyScore},
		{"classifier", decision.StrategyClassifier},
	}

	for _, tt := range tests {
		t.Run(tt.strategy, func(t *testing.T) {
			v := config.NewEmptyViper()
			v.Set("analyzer.strategy", tt.strategy)

			d, err := newDeciderFactory(config.NewFromViper(v)).CreateDecider()
			require.NoError(t, err)
			assert.Equal(t, tt.want, d.Name())
		})
	}
}

func TestCreateDeciderErrors(t *testing.T) {
	tests := []struct {
		name string
		set  map[string]any
	}{
		{"unknown strategy", map[string]any{"analyzer.strategy": "coin-flip"}},
		{"missing model file", map[string]any{"analyzer.strategy": "classifier", "analyzer.model_path": "/nonexistent/model.json"}},
		{"llm without api key", map[string]any{"analyzer.strategy": "llm", "llm.provider": "openai"}},
		{"unknown llm provider", map[string]any{"analyzer.strategy": "llm", "llm.provider": "oracle"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := config.NewEmptyViper()
			for k, val := range tt.set {
				v.Set(k, val)
			}
			_, err := newDeciderFactory(config.NewFromViper(v)).CreateDecider()
			assert.Error(t, err)
		})
	}
}

func TestCreateScorerWithConfiguredWeights(t *testing.T) {
	v := config.NewEmptyViper()
	v.Set("analyzer.strategy", "score")
	v.Set("analyzer.weights.script", 9)

	d, err := newDeciderFactory(config.NewFromViper(v)).CreateDecider()
	require.NoError(t, err)
	scorer, ok := d.(*decision.Scorer)
	require.True(t, ok)

	withScript, _ := scorer.Score(&core.MailAnalysis{Body: core.BodyAnalysis{ContainsScript: true}})
	without, _ := scorer.Score(&core.MailAnalysis{})
	assert.InDelta(t, 9, withScript-without, 1e-9)

	// Weights that were not configured keep their defaults
	withSPF, _ := scorer.Score(&core.MailAnalysis{Headers: core.HeaderAnalysis{HasSPF: true}})
	assert.InDelta(t, decision.DefaultWeights().HasSPF, without-withSPF, 1e-9)
}

func TestCreateCacheRepository(t *testing.T) {
	logger := zap.NewNop()

	v := config.NewEmptyViper()
	repo, err := NewCacheFactory(config.NewFromViper(v), logger).CreateCacheRepository()
	require.NoError(t, err)
	mem, ok := repo.(*cache.MemoryCache)
	require.True(t, ok)
	mem.Stop()

	v.Set("cache.enabled", false)
	repo, err = NewCacheFactory(config.NewFromViper(v), logger).CreateCacheRepository()
	require.NoError(t, err)
	assert.Nil(t, repo)

	v.Set("cache.enabled", true)
	v.Set("cache.type", "sqlite")
	v.Set("cache.sqlite_path", filepath.Join(t.TempDir(), "nested", "cache.db"))
	repo, err = NewCacheFactory(config.NewFromViper(v), logger).CreateCacheRepository()
	require.NoError(t, err)
	sqlite, ok := repo.(*cache.SQLiteCache)
	require.True(t, ok)
	sqlite.Stop()

	v.Set("cache.type", "floppy")
	_, err = NewCacheFactory(config.NewFromViper(v), logger).CreateCacheRepository()
	assert.Error(t, err)
}

func newAnalyzerFactory(cfg *config.Config) *AnalyzerFactory {
	return NewAnalyzerFactory(cfg, zap.NewNop(), nil)
}

func TestLoadWordlist(t *testing.T) {
	v := config.NewEmptyViper()
	v.Set("analyzer.wordlist_path", filepath.Join(t.TempDir(), "missing.txt"))
	words, err := newAnalyzerFactory(config.NewFromViper(v)).LoadWordlist()
	require.NoError(t, err)
	assert.Equal(t, 0, words.Len())

	path := filepath.Join(t.TempDir(), "words.txt")
	require.NoError(t, os.WriteFile(path, []byte("viagra\nfree money\n"), 0o644))
	v.Set("analyzer.wordlist_path", path)
	words, err = newAnalyzerFactory(config.NewFromViper(v)).LoadWordlist()
	require.NoError(t, err)
	assert.Equal(t, 2, words.Len())
}

func TestCreateServiceAndFilters(t *testing.T) {
	v := config.NewEmptyViper()
	v.Set("dns.servers", []string{"127.0.0.1:53"})
	cfg := config.NewFromViper(v)
	f := newAnalyzerFactory(cfg)
	require.NotNil(t, f.TextProcessor())
	assert.Same(t, f.TextProcessor(), f.TextProcessor())

	resolver, err := f.CreateResolver()
	require.NoError(t, err)

	svc, err := f.CreateService(resolver, wordlist.New(), decision.NewRuleTree(0), nil)
	require.NoError(t, err)
	assert.Equal(t, decision.StrategyRules, svc.Strategy())

	postfix, err := NewFilterFactory(cfg, zap.NewNop(), svc).CreateEmailFilter()
	require.NoError(t, err)
	assert.IsType(t, &filter.PostfixFilter{}, postfix)

	v.Set("server.filter_type", "cli")
	cli, err := NewFilterFactory(cfg, zap.NewNop(), svc).CreateEmailFilter()
	require.NoError(t, err)
	assert.IsType(t, &filter.CliFilter{}, cli)

	v.Set("server.filter_type", "milter")
	_, err = NewFilterFactory(cfg, zap.NewNop(), svc).CreateEmailFilter()
	assert.Error(t, err)
}
