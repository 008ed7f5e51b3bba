package factory

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/mikey/phish-detector/internal/adapters/eml"
	"github.com/mikey/phish-detector/internal/config"
	"github.com/mikey/phish-detector/internal/heuristics"
	"github.com/mikey/phish-detector/internal/utils"
)

// AnalyzerFactory creates the heuristic analyzer and message parser
type AnalyzerFactory struct {
	cfg    *config.Config
	logger *zap.Logger
	text   *utils.TextProcessor
}

// NewAnalyzerFactory creates a new analyzer factory
func NewAnalyzerFactory(cfg *config.Config, logger *zap.Logger, text *utils.TextProcessor) *AnalyzerFactory {
	return &AnalyzerFactory{
		cfg:    cfg,
		logger: logger,
		text:   text,
	}
}

// LoadRuleset returns the configured ruleset, the shipped one unless
// analysis.ruleset_path is set. Configured trusted sender domains are
// added to the ruleset's own.
func (f *AnalyzerFactory) LoadRuleset() (*heuristics.Ruleset, error) {
	analysis := f.cfg.GetAnalysis()

	rules := heuristics.DefaultRuleset()
	if analysis.RulesetPath != "" {
		loaded, err := heuristics.LoadRuleset(analysis.RulesetPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load ruleset: %w", err)
		}
		f.logger.Info("Loaded ruleset",
			zap.String("path", analysis.RulesetPath),
			zap.String("version", loaded.Version))
		rules = loaded
	}

	if len(analysis.TrustedSenderDomains) > 0 {
		rules.TrustedSenderDomains = append(rules.TrustedSenderDomains, analysis.TrustedSenderDomains...)
		f.logger.Info("Loaded trusted sender domains", zap.Strings("domains", analysis.TrustedSenderDomains))
	}

	return rules, nil
}

// CreateAnalyzer creates the heuristic analyzer
func (f *AnalyzerFactory) CreateAnalyzer() (*heuristics.Analyzer, error) {
	rules, err := f.LoadRuleset()
	if err != nil {
		return nil, err
	}
	return heuristics.NewAnalyzer(rules, f.text, f.logger, f.cfg.GetAnalysis().MaxBodySize)
}

// CreateParser creates the RFC 5322 message parser
func (f *AnalyzerFactory) CreateParser() *eml.Parser {
	return eml.NewParser(f.logger)
}
