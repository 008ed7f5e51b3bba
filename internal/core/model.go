package core

import (
	"time"
)

// Verdict is the categorical classification of a message
type Verdict string

const (
	VerdictPhishing   Verdict = "phishing"
	VerdictSuspicious Verdict = "suspicious"
	VerdictLegitimate Verdict = "legitimate"
)

// Valid reports whether v is one of the known verdicts
func (v Verdict) Valid() bool {
	switch v {
	case VerdictPhishing, VerdictSuspicious, VerdictLegitimate:
		return true
	}
	return false
}

// Email represents a normalized email message
type Email struct {
	From     string
	ReplyTo  string
	To       []string
	Subject  string
	Body     string
	HTMLBody string
}

// TextRequest is the input of the raw text entry point
type TextRequest struct {
	Subject string `json:"subject,omitempty"`
	Body    string `json:"body"`
	Headers string `json:"headers,omitempty"`
}

// Insight is one named signal observed in a message
type Insight struct {
	Name        string  `json:"name"`
	Value       float64 `json:"value"`
	Weight      float64 `json:"weight"`
	Description string  `json:"description"`
}

// EmailMetadata echoes the request fields back to the caller
type EmailMetadata struct {
	Subject     *string  `json:"subject"`
	FromAddress *string  `json:"from_address"`
	ReplyTo     *string  `json:"reply_to"`
	ToAddresses []string `json:"to_addresses"`
}

// NewEmailMetadata builds metadata from an email, mapping empty values to null
func NewEmailMetadata(email *Email) EmailMetadata {
	to := make([]string, 0, len(email.To))
	to = append(to, email.To...)
	return EmailMetadata{
		Subject:     optional(email.Subject),
		FromAddress: optional(email.From),
		ReplyTo:     optional(email.ReplyTo),
		ToAddresses: to,
	}
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// AnalysisResult represents the result of phishing analysis
type AnalysisResult struct {
	Verdict      Verdict       `json:"verdict"`
	Confidence   float64       `json:"confidence"`
	ModelVersion string        `json:"model_version"`
	Metadata     EmailMetadata `json:"metadata"`
	Highlights   []string      `json:"highlights"`
	Insights     []Insight     `json:"insights"`

	AnalyzedAt   time.Time `json:"-"`
	ProcessingID string    `json:"-"`
}

// Clone returns a deep copy of the result
func (r *AnalysisResult) Clone() *AnalysisResult {
	out := *r
	out.Highlights = append([]string{}, r.Highlights...)
	out.Insights = append([]Insight{}, r.Insights...)
	out.Metadata.ToAddresses = append([]string{}, r.Metadata.ToAddresses...)
	return &out
}

// CacheEntry is a stored analysis result keyed by input fingerprint
type CacheEntry struct {
	Key       string
	Result    *AnalysisResult
	StoredAt  time.Time
	ExpiresAt time.Time
}
