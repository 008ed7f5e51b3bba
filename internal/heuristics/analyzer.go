package heuristics

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/mikey/phish-detector/internal/core"
	"github.com/mikey/phish-detector/internal/utils"
	"github.com/mikey/phish-detector/internal/whitelist"
)

// Analyzer implements core.Analyzer with the rule-based extractor and scorer
type Analyzer struct {
	rules       *Ruleset
	extractor   *Extractor
	scorer      *Scorer
	text        *utils.TextProcessor
	logger      *zap.Logger
	maxBodySize int
	fingerprint string
}

// NewAnalyzer validates a private copy of rules and builds an analyzer on it
func NewAnalyzer(rules *Ruleset, text *utils.TextProcessor, logger *zap.Logger, maxBodySize int) (*Analyzer, error) {
	if rules == nil {
		rules = DefaultRuleset()
	}
	rs := rules.Clone()
	if err := rs.Validate(); err != nil {
		return nil, fmt.Errorf("invalid ruleset: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if text == nil {
		text = utils.NewTextProcessor(logger)
	}

	fingerprint, err := fingerprintOf(rs, maxBodySize)
	if err != nil {
		return nil, err
	}

	trusted := whitelist.NewChecker(rs.TrustedSenderDomains, logger)

	logger.Info("Initialized heuristic analyzer",
		zap.String("version", rs.Version),
		zap.Int("signals", len(rs.Signals)),
		zap.Int("max_body_size", maxBodySize))

	return &Analyzer{
		rules:       rs,
		extractor:   NewExtractor(rs, text, trusted),
		scorer:      NewScorer(rs),
		text:        text,
		logger:      logger,
		maxBodySize: maxBodySize,
		fingerprint: fingerprint,
	}, nil
}

// fingerprintOf hashes everything that can change a result
func fingerprintOf(rs *Ruleset, maxBodySize int) (string, error) {
	data, err := yaml.Marshal(struct {
		Rules       *Ruleset     `yaml:"rules"`
		Signals     []SignalRule `yaml:"signals"`
		MaxBodySize int          `yaml:"max_body_size"`
	}{rs, rs.Signals, maxBodySize})
	if err != nil {
		return "", fmt.Errorf("failed to fingerprint ruleset: %w", err)
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

// Version returns the ruleset version reported as model_version
func (a *Analyzer) Version() string {
	return a.rules.Version
}

// Fingerprint identifies the ruleset together with the analyzer settings
func (a *Analyzer) Fingerprint() string {
	return a.fingerprint
}

// Ruleset returns a copy of the active ruleset
func (a *Analyzer) Ruleset() *Ruleset {
	return a.rules.Clone()
}

// Analyze extracts and scores every signal of the email
func (a *Analyzer) Analyze(email *core.Email) (*core.AnalysisResult, error) {
	if email == nil {
		return nil, fmt.Errorf("%w: no message", core.ErrInvalidInput)
	}

	normalized := *email
	normalized.Subject = a.text.SanitizeUTF8(email.Subject)
	normalized.Body = a.text.ProcessText(email.Body, a.maxBodySize)
	normalized.HTMLBody = a.text.ProcessText(email.HTMLBody, a.maxBodySize)
	if strings.TrimSpace(normalized.Body) == "" {
		return nil, fmt.Errorf("%w: body is empty", core.ErrInvalidInput)
	}
	if normalized.HTMLBody == "" && a.text.LooksLikeHTML(normalized.Body) {
		normalized.HTMLBody = normalized.Body
	}

	features := a.extractor.Extract(&normalized)
	score := a.scorer.Score(features)

	a.logger.Debug("Scored message",
		zap.Float64("confidence", score.Confidence),
		zap.String("verdict", string(score.Verdict)),
		zap.Int("suspicious_keywords", features.SuspiciousKeywords),
		zap.Int("links", len(features.Links)),
		zap.Int("suspicious_links", len(features.SuspiciousLinks)))

	return &core.AnalysisResult{
		Verdict:      score.Verdict,
		Confidence:   score.Confidence,
		ModelVersion: a.rules.Version,
		Metadata:     core.NewEmailMetadata(email),
		Highlights:   score.Highlights,
		Insights:     score.Insights,
	}, nil
}
