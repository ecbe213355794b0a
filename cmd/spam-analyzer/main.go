package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/mikey/mail-spam-analyzer/internal/adapters/filter"
	"github.com/mikey/mail-spam-analyzer/internal/core"
	"github.com/mikey/mail-spam-analyzer/internal/di"
	"github.com/mikey/mail-spam-analyzer/internal/mailfile"
)

func main() {
	flags, err := di.ParseFlags(os.Args[1:], os.Stderr)
	if errors.Is(err, flag.ErrHelp) {
		return
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(2)
	}

	container, err := di.BuildCLIContainer(flags)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to build dependency container: %v\n", err)
		os.Exit(1)
	}

	var summary *filter.Summary
	err = container.Invoke(func(
		logger *zap.Logger,
		cli *filter.CliFilter,
		decider core.Decider,
		cache core.CacheRepository,
	) error {
		defer logger.Sync()
		defer di.Shutdown(logger, decider, cache)

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		emails, skipped := mailfile.Collect(flags.Paths)
		logger.Debug("Collected input",
			zap.Int("messages", len(emails)),
			zap.Int("skipped", len(skipped)))

		summary, err = cli.ProcessBatch(ctx, emails, skipped)
		return err
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Application error: %v\n", err)
		os.Exit(1)
	}

	if summary.Failed > 0 || summary.Skipped > 0 {
		os.Exit(3)
	}
}
