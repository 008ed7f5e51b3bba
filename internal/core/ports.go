package core

import (
	"context"
)

// Analyzer turns a normalized email into an analysis result
type Analyzer interface {
	// Analyze scores an email; it fails with ErrInvalidInput when the body is empty
	Analyze(email *Email) (*AnalysisResult, error)

	// Version identifies the ruleset used by the analyzer
	Version() string

	// Fingerprint changes whenever anything that affects results changes,
	// including settings the version does not cover
	Fingerprint() string
}

// MessageParser extracts normalized fields from raw messages
type MessageParser interface {
	// ParseMessage parses a raw RFC 5322 message
	ParseMessage(raw []byte) (*Email, error)

	// ParseHeaderBlock parses a raw header block without a body
	ParseHeaderBlock(block string) (*Email, error)
}

// ResultCache defines the interface for caching analysis results
type ResultCache interface {
	// Get retrieves a cached entry by key
	Get(ctx context.Context, key string) (*CacheEntry, error)

	// Set stores a cache entry
	Set(ctx context.Context, entry *CacheEntry) error

	// Delete removes a cache entry
	Delete(ctx context.Context, key string) error

	// Cleanup removes expired entries
	Cleanup(ctx context.Context) error
}
