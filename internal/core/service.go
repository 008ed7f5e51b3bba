package core

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"hash"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// AnalysisService is the core service for phishing detection
type AnalysisService struct {
	analyzer     Analyzer
	parser       MessageParser
	cache        ResultCache
	logger       *zap.Logger
	cacheEnabled bool
	cacheTTL     time.Duration
}

// NewAnalysisService creates a new analysis service
func NewAnalysisService(
	analyzer Analyzer,
	parser MessageParser,
	cache ResultCache,
	logger *zap.Logger,
	cacheEnabled bool,
	cacheTTL time.Duration,
) *AnalysisService {
	return &AnalysisService{
		analyzer:     analyzer,
		parser:       parser,
		cache:        cache,
		logger:       logger,
		cacheEnabled: cacheEnabled && cache != nil,
		cacheTTL:     cacheTTL,
	}
}

// ModelVersion returns the ruleset version reported in results
func (s *AnalysisService) ModelVersion() string {
	return s.analyzer.Version()
}

// AnalyzeText analyzes a message supplied as subject, body and optional raw headers
func (s *AnalysisService) AnalyzeText(ctx context.Context, req TextRequest) (*AnalysisResult, error) {
	if strings.TrimSpace(req.Body) == "" {
		return nil, fmt.Errorf("%w: body is empty", ErrInvalidInput)
	}

	key := s.fingerprint("text", req.Subject, req.Body, req.Headers)
	if cached := s.lookup(ctx, key); cached != nil {
		return cached, nil
	}

	email := &Email{
		Subject: req.Subject,
		Body:    req.Body,
	}

	// Headers only enrich the analysis, a broken block is not fatal
	if strings.TrimSpace(req.Headers) != "" {
		parsed, err := s.parser.ParseHeaderBlock(req.Headers)
		if err != nil {
			s.logger.Debug("Ignoring unparseable header block", zap.Error(err))
		} else {
			email.From = parsed.From
			email.ReplyTo = parsed.ReplyTo
			email.To = parsed.To
			if email.Subject == "" {
				email.Subject = parsed.Subject
			}
		}
	}

	return s.analyze(ctx, key, email)
}

// AnalyzeFile analyzes a raw RFC 5322 (.eml) message
func (s *AnalysisService) AnalyzeFile(ctx context.Context, raw []byte) (*AnalysisResult, error) {
	if len(raw) == 0 {
		return nil, fmt.Errorf("%w: message is empty", ErrInvalidInput)
	}

	key := s.fingerprint("eml", string(raw))
	if cached := s.lookup(ctx, key); cached != nil {
		return cached, nil
	}

	email, err := s.parser.ParseMessage(raw)
	if err != nil {
		return nil, err
	}

	return s.analyze(ctx, key, email)
}

func (s *AnalysisService) analyze(ctx context.Context, key string, email *Email) (*AnalysisResult, error) {
	result, err := s.analyzer.Analyze(email)
	if err != nil {
		return nil, err
	}
	result.AnalyzedAt = time.Now()
	result.ProcessingID = uuid.NewString()

	s.logger.Info("Analyzed message",
		zap.String("processing_id", result.ProcessingID),
		zap.String("from", email.From),
		zap.String("verdict", string(result.Verdict)),
		zap.Float64("confidence", result.Confidence),
		zap.Int("highlights", len(result.Highlights)))

	// Update cache with result if enabled
	if s.cacheEnabled {
		now := time.Now()
		entry := &CacheEntry{
			Key:       key,
			Result:    result.Clone(),
			StoredAt:  now,
			ExpiresAt: now.Add(s.cacheTTL),
		}
		if err := s.cache.Set(ctx, entry); err != nil {
			s.logger.Error("Failed to update cache", zap.Error(err))
		}
	}

	return result, nil
}

func (s *AnalysisService) lookup(ctx context.Context, key string) *AnalysisResult {
	if !s.cacheEnabled {
		return nil
	}
	entry, err := s.cache.Get(ctx, key)
	if err != nil || entry == nil || entry.Result == nil {
		return nil
	}
	s.logger.Debug("Cache hit", zap.String("key", key))

	result := entry.Result.Clone()
	result.AnalyzedAt = time.Now()
	result.ProcessingID = uuid.NewString()
	return result
}

// fingerprint hashes the analyzer configuration with every input field, length-prefixed
func (s *AnalysisService) fingerprint(kind string, parts ...string) string {
	h := sha256.New()
	writeField(h, s.analyzer.Fingerprint())
	writeField(h, kind)
	for _, p := range parts {
		writeField(h, p)
	}
	return hex.EncodeToString(h.Sum(nil))
}

func writeField(h hash.Hash, s string) {
	fmt.Fprintf(h, "%d:", len(s))
	h.Write([]byte(s))
}
