package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"

	"go.uber.org/zap"

	"github.com/mikey/phish-detector/internal/adapters/filter"
	"github.com/mikey/phish-detector/internal/core"
	"github.com/mikey/phish-detector/internal/di"
)

// Exit codes: 0 legitimate, 1 suspicious, 2 phishing, 3 error
const (
	exitSuspicious = 1
	exitPhishing   = 2
	exitError      = 3
)

func main() {
	flags, err := di.ParseFlags(flag.CommandLine, os.Args[1:])
	if err != nil {
		os.Exit(exitError)
	}

	container, err := di.BuildCLIContainer(flags, os.Stdout)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to build dependency container: %v\n", err)
		os.Exit(exitError)
	}

	var verdict core.Verdict
	err = container.Invoke(func(logger *zap.Logger, cli *filter.CliFilter, flags *di.CLIFlags) error {
		defer logger.Sync()

		result, err := run(logger, cli, flags)
		if err != nil {
			return err
		}
		verdict = result.Verdict
		return nil
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(exitError)
	}

	switch verdict {
	case core.VerdictPhishing:
		os.Exit(exitPhishing)
	case core.VerdictSuspicious:
		os.Exit(exitSuspicious)
	}
}

func run(logger *zap.Logger, cli *filter.CliFilter, flags *di.CLIFlags) (*core.AnalysisResult, error) {
	input, err := readInput(logger, flags.InputFile)
	if err != nil {
		return nil, err
	}

	ctx := context.Background()
	if flags.TextMode {
		return cli.ProcessText(ctx, core.TextRequest{
			Subject: flags.Subject,
			Body:    string(input),
			Headers: flags.Headers,
		})
	}
	return cli.ProcessMessage(ctx, input)
}

// readInput reads the message from file or stdin
func readInput(logger *zap.Logger, path string) ([]byte, error) {
	if path == "" {
		logger.Debug("Reading input from stdin")
		return io.ReadAll(os.Stdin)
	}

	logger.Debug("Reading input from file", zap.String("file", path))
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read input file: %w", err)
	}
	return data, nil
}
