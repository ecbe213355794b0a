package di

import (
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"go.uber.org/dig"
	"go.uber.org/zap"

	"github.com/mikey/mail-spam-analyzer/internal/adapters/filter"
	"github.com/mikey/mail-spam-analyzer/internal/analyzer"
	"github.com/mikey/mail-spam-analyzer/internal/config"
	"github.com/mikey/mail-spam-analyzer/internal/logging"
)

// CLIFlags contains all command line flags for the CLI application
type CLIFlags struct {
	// Decision flags
	Strategy      string
	ModelPath     string
	Threshold     float64
	ScoreCutoff   float64
	Provider      string
	MaxPromptSize int

	// Analysis flags
	Concurrency int
	Wordlist    string
	DNSServers  string
	Whitelist   string
	VerifyDKIM  bool
	Cache       bool

	// Output flags
	Verbose    bool
	JSON       bool
	JSONLog    bool
	ConfigFile string

	// Paths are the files, directories and mbox archives to analyze
	Paths []string

	set map[string]bool
}

// ParseFlags parses command line arguments into a CLIFlags struct
func ParseFlags(args []string, output io.Writer) (*CLIFlags, error) {
	flags := &CLIFlags{set: make(map[string]bool)}
	fs := flag.NewFlagSet("spam-analyzer", flag.ContinueOnError)
	fs.SetOutput(output)
	fs.Usage = func() {
		fmt.Fprintf(output, "Usage: spam-analyzer [flags] <file|dir|mbox>...\n\n")
		fs.PrintDefaults()
	}

	// Decision flags
	fs.StringVar(&flags.Strategy, "strategy", "rules", "Decision strategy (rules, score, classifier, llm)")
	fs.StringVar(&flags.ModelPath, "model", "", "Classifier model file (embedded default if empty)")
	fs.Float64Var(&flags.Threshold, "threshold", 0.05, "Forbidden words ratio above which insecure links raise a warning")
	fs.Float64Var(&flags.ScoreCutoff, "cutoff", 3.5, "Score above which the score strategy reports spam")
	fs.StringVar(&flags.Provider, "provider", "bedrock", "LLM provider for the llm strategy (bedrock, gemini, openai)")
	fs.IntVar(&flags.MaxPromptSize, "max-prompt-size", 4096, "Maximum prompt size sent to the LLM")

	// Analysis flags
	fs.IntVar(&flags.Concurrency, "concurrency", 8, "Messages analyzed at once")
	fs.StringVar(&flags.Wordlist, "wordlist", "", "Forbidden words file, one entry per line")
	fs.StringVar(&flags.DNSServers, "dns", "", "Comma-separated DNS servers (host:port), resolv.conf if empty")
	fs.StringVar(&flags.Whitelist, "whitelist", "", "Comma-separated list of whitelisted domains")
	fs.BoolVar(&flags.VerifyDKIM, "verify-dkim", false, "Cryptographically verify DKIM signatures")
	fs.BoolVar(&flags.Cache, "cache", false, "Reuse verdicts for identical messages")

	// Output flags
	fs.BoolVar(&flags.Verbose, "verbose", false, "Print every feature and enable debug logging")
	fs.BoolVar(&flags.JSON, "json", false, "Print one JSON record per message")
	fs.BoolVar(&flags.JSONLog, "json-log", false, "Output logs in JSON format")
	fs.StringVar(&flags.ConfigFile, "config", "", "Path to config file; flags given explicitly still win")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	fs.Visit(func(f *flag.Flag) { flags.set[f.Name] = true })

	flags.Paths = fs.Args()
	if len(flags.Paths) == 0 {
		fs.Usage()
		return nil, fmt.Errorf("no input given")
	}
	return flags, nil
}

// BuildCLIContainer creates and configures a dependency injection container for the CLI application
func BuildCLIContainer(flags *CLIFlags) (*dig.Container, error) {
	container := dig.New()

	// Register flags
	if err := container.Provide(func() *CLIFlags { return flags }); err != nil {
		return nil, err
	}

	// Register logger
	if err := container.Provide(func(flags *CLIFlags) (*zap.Logger, error) {
		return logging.InitConsoleLogger(flags.Verbose, flags.JSONLog)
	}); err != nil {
		return nil, err
	}

	// Register configuration
	if err := container.Provide(func(flags *CLIFlags, logger *zap.Logger) (*config.Config, error) {
		return createConfig(flags, logger)
	}); err != nil {
		return nil, err
	}

	if err := provideAnalysis(container); err != nil {
		return nil, err
	}

	// Register batch reporter
	if err := container.Provide(func(service *analyzer.Service, logger *zap.Logger, flags *CLIFlags) *filter.CliFilter {
		return filter.NewCliFilter(service, logger, os.Stdout, flags.Verbose, flags.JSON)
	}); err != nil {
		return nil, err
	}

	return container, nil
}

// createConfig starts from the config file when one is given, or from the
// defaults with the cache turned off, and applies the explicitly set flags
func createConfig(flags *CLIFlags, logger *zap.Logger) (*config.Config, error) {
	var cfg *config.Config
	if flags.ConfigFile != "" {
		loaded, err := config.NewFromFile(flags.ConfigFile)
		if err != nil {
			return nil, err
		}
		logger.Info("Loaded configuration from file", zap.String("file", flags.ConfigFile))
		cfg = loaded
	} else {
		v := config.NewEmptyViper()
		v.Set("cache.enabled", false)
		cfg = config.NewFromViper(v)
	}
	applyFlags(cfg, flags)
	return cfg, nil
}

func applyFlags(cfg *config.Config, flags *CLIFlags) {
	v := cfg.GetViper()
	v.Set("server.filter_type", "cli")

	// Without a config file every flag applies, defaults included
	explicit := func(name string) bool {
		return flags.ConfigFile == "" || flags.set[name]
	}

	if explicit("strategy") {
		v.Set("analyzer.strategy", flags.Strategy)
	}
	if explicit("model") && flags.ModelPath != "" {
		v.Set("analyzer.model_path", flags.ModelPath)
	}
	if explicit("threshold") {
		v.Set("analyzer.forbidden_words_threshold", flags.Threshold)
	}
	if explicit("cutoff") {
		v.Set("analyzer.score_cutoff", flags.ScoreCutoff)
	}
	if explicit("provider") {
		v.Set("llm.provider", flags.Provider)
	}
	if explicit("max-prompt-size") {
		for _, provider := range []string{"bedrock", "gemini", "openai"} {
			v.Set(provider+".max_prompt_size", flags.MaxPromptSize)
		}
	}
	if explicit("concurrency") {
		v.Set("analyzer.concurrency", flags.Concurrency)
	}
	if explicit("wordlist") && flags.Wordlist != "" {
		v.Set("analyzer.wordlist_path", flags.Wordlist)
	}
	if explicit("dns") && flags.DNSServers != "" {
		v.Set("dns.servers", splitList(flags.DNSServers))
	}
	if explicit("whitelist") && flags.Whitelist != "" {
		v.Set("spam.whitelisted_domains", splitList(flags.Whitelist))
	}
	if explicit("verify-dkim") {
		v.Set("analyzer.verify_dkim", flags.VerifyDKIM)
	}
	if flags.set["cache"] {
		v.Set("cache.enabled", flags.Cache)
	}
	v.Set("cli.verbose", flags.Verbose)
	v.Set("cli.json", flags.JSON)
}

func splitList(s string) []string {
	var out []string
	for _, item := range strings.Split(s, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
