package di

import (
	"flag"
	"io"
	"time"

	"go.uber.org/dig"
	"go.uber.org/zap"

	"github.com/mikey/phish-detector/internal/adapters/filter"
	"github.com/mikey/phish-detector/internal/config"
	"github.com/mikey/phish-detector/internal/core"
	"github.com/mikey/phish-detector/internal/factory"
	"github.com/mikey/phish-detector/internal/logging"
)

// CLIFlags contains all command line flags for the CLI application
type CLIFlags struct {
	// Input flags
	InputFile string
	TextMode  bool
	Subject   string
	Headers   string

	// Analysis flags
	RulesetPath    string
	TrustedDomains string
	MaxBodySize    int

	// Output flags
	JSONOutput bool
	Verbose    bool
	JSONLog    bool
	ConfigFile string
}

// ParseFlags parses command line flags and returns a CLIFlags struct
func ParseFlags(fs *flag.FlagSet, args []string) (*CLIFlags, error) {
	flags := &CLIFlags{}

	// Input flags
	fs.StringVar(&flags.InputFile, "file", "", "Input file (use stdin if not specified)")
	fs.BoolVar(&flags.TextMode, "text", false, "Treat input as a plain message body instead of an .eml file")
	fs.StringVar(&flags.Subject, "subject", "", "Subject to analyze with -text")
	fs.StringVar(&flags.Headers, "headers", "", "Raw header block to analyze with -text")

	// Analysis flags
	fs.StringVar(&flags.RulesetPath, "ruleset", "", "Path to a YAML ruleset overriding the shipped one")
	fs.StringVar(&flags.TrustedDomains, "trusted", "", "Comma-separated list of trusted sender domains")
	fs.IntVar(&flags.MaxBodySize, "max-body-size", 0, "Maximum body size to analyze (0 uses the configured value)")

	// Output flags
	fs.BoolVar(&flags.JSONOutput, "json", false, "Print the analysis result as JSON")
	fs.BoolVar(&flags.Verbose, "verbose", false, "Show per-signal insights and debug logs")
	fs.BoolVar(&flags.JSONLog, "json-log", false, "Output logs in JSON format")
	fs.StringVar(&flags.ConfigFile, "config", "", "Path to config file")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	return flags, nil
}

// BuildCLIContainer creates and configures a dependency injection container for the CLI application
func BuildCLIContainer(flags *CLIFlags, out io.Writer) (*dig.Container, error) {
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

	// Register analysis service with no cache
	if err := container.Provide(func(
		analyzer core.Analyzer,
		parser core.MessageParser,
		logger *zap.Logger,
	) *core.AnalysisService {
		return core.NewAnalysisService(
			analyzer,
			parser,
			nil, // No cache for CLI
			logger,
			false,
			time.Duration(0),
		)
	}); err != nil {
		return nil, err
	}

	// Register CLI filter
	if err := container.Provide(factory.NewFilterFactory); err != nil {
		return nil, err
	}
	if err := container.Provide(func(f *factory.FilterFactory, flags *CLIFlags) *filter.CliFilter {
		return f.CreateCliFilter(out, flags.Verbose, flags.JSONOutput)
	}); err != nil {
		return nil, err
	}

	return container, nil
}

// createConfig loads the config file when one is given and applies flag overrides
func createConfig(flags *CLIFlags, logger *zap.Logger) (*config.Config, error) {
	var cfg *config.Config
	if flags.ConfigFile != "" {
		loaded, err := config.NewFromFile(flags.ConfigFile)
		if err != nil {
			return nil, err
		}
		logger.Info("Loaded configuration from file", zap.String("file", loaded.GetViper().ConfigFileUsed()))
		cfg = loaded
	} else {
		cfg = config.NewFromViper(config.NewEmptyViper())
	}

	if flags.RulesetPath != "" {
		cfg.Set("analysis.ruleset_path", flags.RulesetPath)
	}
	if flags.TrustedDomains != "" {
		cfg.Set("analysis.trusted_sender_domains", flags.TrustedDomains)
	}
	if flags.MaxBodySize > 0 {
		cfg.Set("analysis.max_body_size", flags.MaxBodySize)
	}
	return cfg, nil
}
