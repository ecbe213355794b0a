package di

import (
	"go.uber.org/dig"
	"go.uber.org/zap"

	"github.com/mikey/mail-spam-analyzer/internal/analyzer"
	"github.com/mikey/mail-spam-analyzer/internal/config"
	"github.com/mikey/mail-spam-analyzer/internal/core"
	"github.com/mikey/mail-spam-analyzer/internal/domain"
	"github.com/mikey/mail-spam-analyzer/internal/factory"
	"github.com/mikey/mail-spam-analyzer/internal/logging"
	"github.com/mikey/mail-spam-analyzer/internal/metrics"
	"github.com/mikey/mail-spam-analyzer/internal/ports"
	"github.com/mikey/mail-spam-analyzer/internal/utils"
	"github.com/mikey/mail-spam-analyzer/internal/wordlist"
)

// BuildContainer creates and configures a dependency injection container for the filter daemon
func BuildContainer() (*dig.Container, error) {
	container := dig.New()

	// Register configuration
	if err := container.Provide(config.New); err != nil {
		return nil, err
	}

	// Register logger
	if err := container.Provide(logging.InitLogger); err != nil {
		return nil, err
	}

	if err := provideAnalysis(container); err != nil {
		return nil, err
	}

	// Register email filter
	if err := container.Provide(factory.NewFilterFactory); err != nil {
		return nil, err
	}
	if err := container.Provide(func(f *factory.FilterFactory) (ports.EmailFilter, error) {
		return f.CreateEmailFilter()
	}); err != nil {
		return nil, err
	}

	return container, nil
}

// provideAnalysis registers everything between the configuration and the
// analysis service. It expects *config.Config and *zap.Logger to be provided.
func provideAnalysis(container *dig.Container) error {
	// Register metrics
	if err := container.Provide(metrics.NewRecorder); err != nil {
		return err
	}

	// Register factories
	if err := container.Provide(factory.NewLLMFactory); err != nil {
		return err
	}
	if err := container.Provide(factory.NewDeciderFactory); err != nil {
		return err
	}
	if err := container.Provide(factory.NewCacheFactory); err != nil {
		return err
	}
	if err := container.Provide(factory.NewAnalyzerFactory); err != nil {
		return err
	}

	// Register text processor
	if err := container.Provide(func(f *factory.AnalyzerFactory) *utils.TextProcessor {
		return f.TextProcessor()
	}); err != nil {
		return err
	}

	// Register decider
	if err := container.Provide(func(f *factory.DeciderFactory) (core.Decider, error) {
		return f.CreateDecider()
	}); err != nil {
		return err
	}

	// Register cache repository
	if err := container.Provide(func(f *factory.CacheFactory) (core.CacheRepository, error) {
		return f.CreateCacheRepository()
	}); err != nil {
		return err
	}

	// Register resolver and wordlist
	if err := container.Provide(func(f *factory.AnalyzerFactory) (domain.Resolver, error) {
		return f.CreateResolver()
	}); err != nil {
		return err
	}
	if err := container.Provide(func(f *factory.AnalyzerFactory) (*wordlist.Wordlist, error) {
		return f.LoadWordlist()
	}); err != nil {
		return err
	}

	// Register analysis service
	return container.Provide(func(
		f *factory.AnalyzerFactory,
		resolver domain.Resolver,
		words *wordlist.Wordlist,
		decider core.Decider,
		cache core.CacheRepository,
	) (*analyzer.Service, error) {
		return f.CreateService(resolver, words, decider, cache)
	})
}

// Shutdown releases the decider and cache resources
func Shutdown(logger *zap.Logger, decider core.Decider, cache core.CacheRepository) {
	if closer, ok := decider.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			logger.Error("Failed to close decider", zap.Error(err))
		}
	}

	if stopper, ok := cache.(interface{ Stop() }); ok {
		stopper.Stop()
	}
}
