package filter

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"go.uber.org/zap"

	"github.com/mikey/phish-detector/internal/core"
)

// TextAnalyzer analyzes both raw messages and pasted text
type TextAnalyzer interface {
	MessageAnalyzer
	AnalyzeText(ctx context.Context, req core.TextRequest) (*core.AnalysisResult, error)
}

// CliFilter implements a command-line interface for phishing detection
type CliFilter struct {
	service    TextAnalyzer
	logger     *zap.Logger
	out        io.Writer
	verbose    bool
	jsonOutput bool
}

// NewCliFilter creates a new CLI filter
func NewCliFilter(service TextAnalyzer, logger *zap.Logger, out io.Writer, verbose, jsonOutput bool) *CliFilter {
	return &CliFilter{
		service:    service,
		logger:     logger,
		out:        out,
		verbose:    verbose,
		jsonOutput: jsonOutput,
	}
}

// ProcessMessage analyzes a raw message and prints the results
func (f *CliFilter) ProcessMessage(ctx context.Context, raw []byte) (*core.AnalysisResult, error) {
	f.logger.Debug("Processing message", zap.Int("size", len(raw)))

	start := time.Now()
	result, err := f.service.AnalyzeFile(ctx, raw)
	if err != nil {
		f.logger.Error("Failed to analyze email", zap.Error(err))
		return nil, err
	}
	return result, f.render(result, time.Since(start))
}

// ProcessText analyzes pasted text and prints the results
func (f *CliFilter) ProcessText(ctx context.Context, req core.TextRequest) (*core.AnalysisResult, error) {
	f.logger.Debug("Processing text", zap.Int("body_size", len(req.Body)))

	start := time.Now()
	result, err := f.service.AnalyzeText(ctx, req)
	if err != nil {
		f.logger.Error("Failed to analyze text", zap.Error(err))
		return nil, err
	}
	return result, f.render(result, time.Since(start))
}

func (f *CliFilter) render(result *core.AnalysisResult, duration time.Duration) error {
	if f.jsonOutput {
		enc := json.NewEncoder(f.out)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	}

	w := &errWriter{w: f.out}
	if result.Metadata.FromAddress != nil || result.Metadata.Subject != nil {
		w.printf("=== Email Summary ===\n")
		w.printf("From: %s\n", deref(result.Metadata.FromAddress))
		if result.Metadata.ReplyTo != nil {
			w.printf("Reply-To: %s\n", *result.Metadata.ReplyTo)
		}
		w.printf("To: %v\n", result.Metadata.ToAddresses)
		w.printf("Subject: %s\n\n", deref(result.Metadata.Subject))
	}

	w.printf("=== Results ===\n")
	w.printf("Verdict: %s\n", result.Verdict)
	w.printf("Confidence: %.4f\n", result.Confidence)
	w.printf("Model version: %s\n", result.ModelVersion)
	if f.verbose {
		w.printf("Processing time: %v\n", duration)
	}

	w.printf("\n=== Highlights ===\n")
	if len(result.Highlights) == 0 {
		w.printf("(none)\n")
	}
	for _, h := range result.Highlights {
		w.printf("- %s\n", h)
	}

	if f.verbose {
		w.printf("\n=== Insights ===\n")
		tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
		fmt.Fprintf(tw, "SIGNAL\tVALUE\tWEIGHT\tDESCRIPTION\n")
		for _, in := range result.Insights {
			fmt.Fprintf(tw, "%s\t%g\t%g\t%s\n", in.Name, in.Value, in.Weight, in.Description)
		}
		if err := tw.Flush(); err != nil {
			return err
		}
	}
	return w.err
}

// Start is a no-op for the CLI filter
func (f *CliFilter) Start() error {
	return nil
}

// Stop is a no-op for the CLI filter
func (f *CliFilter) Stop() error {
	return nil
}

func deref(s *string) string {
	if s == nil {
		return "(unknown)"
	}
	return *s
}

// errWriter keeps the first write error
type errWriter struct {
	w   io.Writer
	err error
}

func (e *errWriter) Write(p []byte) (int, error) {
	if e.err != nil {
		return 0, e.err
	}
	n, err := e.w.Write(p)
	e.err = err
	return n, err
}

func (e *errWriter) printf(format string, args ...any) {
	fmt.Fprintf(e, format, args...)
}
