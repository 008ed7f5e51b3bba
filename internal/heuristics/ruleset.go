package heuristics

import (
	"fmt"
	"slices"
	"sort"
	"strings"

	"github.com/mikey/phish-detector/internal/core"
)

// DefaultVersion is the ruleset version reported as model_version
const DefaultVersion = "0.1.0-ml"

// Verdict thresholds of the default ruleset
const (
	PhishingThreshold   = 0.7
	SuspiciousThreshold = 0.35
)

// Ruleset is the complete, validated scoring configuration
type Ruleset struct {
	Version string `yaml:"version"`

	PhishingThreshold   float64 `yaml:"phishing_threshold"`
	SuspiciousThreshold float64 `yaml:"suspicious_threshold"`

	SuspiciousKeywords   []string `yaml:"suspicious_keywords"`
	TrustKeywords        []string `yaml:"trust_keywords"`
	UrgencyTerms         []string `yaml:"urgency_terms"`
	SuspiciousTLDs       []string `yaml:"suspicious_tlds"`
	ShortenerDomains     []string `yaml:"shortener_domains"`
	SpellingExclusions   []string `yaml:"spelling_exclusions"`
	TrustedSenderDomains []string `yaml:"trusted_sender_domains"`

	// Uppercase ratio is 0 below this many letters
	MinUppercaseLetters int `yaml:"min_uppercase_letters"`

	// Body lengths, in runes, outside of which length_score rises
	ShortBodyLength int `yaml:"short_body_length"`
	LongBodyLength  int `yaml:"long_body_length"`

	// Signals are scored and reported in this order
	Signals []SignalRule `yaml:"-"`
}

// DefaultRuleset returns the shipped ruleset
func DefaultRuleset() *Ruleset {
	return &Ruleset{
		Version:             DefaultVersion,
		PhishingThreshold:   PhishingThreshold,
		SuspiciousThreshold: SuspiciousThreshold,
		SuspiciousKeywords: []string{
			"verify your account",
			"confirm your identity",
			"verify identity",
			"update your information",
			"update payment",
			"unusual activity",
			"suspicious activity",
			"account suspended",
			"suspended",
			"click here",
			"login immediately",
			"password expired",
			"security alert",
			"act now",
			"urgent",
			"limited time offer",
			"you have won",
			"claim your prize",
			"wire transfer",
			"gift card",
		},
		TrustKeywords: []string{
			"thank you",
			"thanks for your order",
			"your order",
			"receipt",
			"invoice attached",
			"meeting",
			"schedule",
			"newsletter",
			"unsubscribe",
			"privacy policy",
		},
		UrgencyTerms: []string{
			"immediately",
			"immediate",
			"asap",
			"now",
			"right away",
			"expire",
			"expires",
			"expiring",
			"deadline",
			"final notice",
			"last chance",
			"within 24 hours",
			"today only",
			"hurry",
		},
		SuspiciousTLDs: []string{
			"tk", "ml", "ga", "cf", "gq", "xyz", "top", "click",
			"download", "zip", "review", "country", "work", "loan",
		},
		ShortenerDomains: []string{
			"bit.ly", "tinyurl.com", "goo.gl", "t.co", "ow.ly", "is.gd",
			"buff.ly", "rebrand.ly", "cutt.ly", "shorturl.at", "rb.gy", "t.ly",
		},
		SpellingExclusions: []string{
			"www", "zzz", "hmm", "mmm", "aaa", "b2b", "b2c", "p2p", "w3c",
		},
		MinUppercaseLetters: 20,
		ShortBodyLength:     30,
		LongBodyLength:      20000,
		Signals: []SignalRule{
			{Name: SignalSuspiciousKeywords, Weight: 0.35, Cap: 3, Visibility: 1,
				Description: "Occurrences of phrases commonly used in phishing"},
			{Name: SignalTrustKeywords, Weight: -0.15, Cap: 3, Visibility: 1,
				Description: "Occurrences of phrases common in legitimate correspondence"},
			{Name: SignalLinkCount, Weight: 0.05, Cap: 3, Visibility: 4,
				Description: "Number of links in the body"},
			{Name: SignalSuspiciousDomains, Weight: 0.30, Cap: 1, Visibility: 1,
				Description: "Links pointing to risky TLDs, IP addresses, punycode hosts or URL shorteners"},
			{Name: SignalLinkTextMismatch, Weight: 0.15, Cap: 1, Visibility: 1,
				Description: "Link text naming a different domain than the link target"},
			{Name: SignalHTMLRatio, Weight: 0.05, Cap: 0.5, Visibility: 0.3,
				Description: "Share of the body taken by markup"},
			{Name: SignalLengthScore, Weight: 0.05, Cap: 1, Visibility: 0.5,
				Description: "Distance of the body length from the typical range"},
			{Name: SignalUppercaseRatio, Weight: 0.10, Cap: 0.5, Visibility: 0.3,
				Description: "Share of uppercase letters in the body"},
			{Name: SignalExclamationCount, Weight: 0.05, Cap: 3, Visibility: 3,
				Description: "Exclamation marks in subject and body"},
			{Name: SignalUrgencyWords, Weight: 0.15, Cap: 2, Visibility: 2,
				Description: "Words and phrases pressing for immediate action"},
			{Name: SignalMisspellings, Weight: 0.05, Cap: 3, Visibility: 2,
				Description: "Tokens with implausible spelling or digit substitutions"},
			{Name: SignalSenderMismatch, Weight: 0.20, Cap: 1, Visibility: 1,
				Description: "Reply-To or link domains differ from the sender domain"},
			{Name: SignalSuspiciousSender, Weight: 0.12, Cap: 1, Visibility: 1,
				Description: "Sender domain uses a risky TLD"},
			{Name: SignalTrustedSender, Weight: -0.50, Cap: 1, Visibility: 1,
				Description: "Sender domain is on the trusted list"},
		},
	}
}

// Clone returns a deep copy with lists normalized to lower case
func (r *Ruleset) Clone() *Ruleset {
	out := *r
	out.SuspiciousKeywords = normalizeList(r.SuspiciousKeywords)
	out.TrustKeywords = normalizeList(r.TrustKeywords)
	out.UrgencyTerms = normalizeList(r.UrgencyTerms)
	out.SuspiciousTLDs = normalizeList(r.SuspiciousTLDs)
	out.ShortenerDomains = normalizeList(r.ShortenerDomains)
	out.SpellingExclusions = normalizeList(r.SpellingExclusions)
	out.TrustedSenderDomains = normalizeList(r.TrustedSenderDomains)
	out.Signals = slices.Clone(r.Signals)
	return &out
}

func normalizeList(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		s = strings.Trim(strings.ToLower(strings.TrimSpace(s)), ".")
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}

// Validate checks that the ruleset can be scored with
func (r *Ruleset) Validate() error {
	if r.Version == "" {
		return fmt.Errorf("ruleset version is empty")
	}
	if !(r.SuspiciousThreshold > 0 && r.SuspiciousThreshold < r.PhishingThreshold && r.PhishingThreshold <= 1) {
		return fmt.Errorf("thresholds must satisfy 0 < suspicious (%v) < phishing (%v) <= 1",
			r.SuspiciousThreshold, r.PhishingThreshold)
	}
	if r.ShortBodyLength < 0 || r.LongBodyLength <= r.ShortBodyLength {
		return fmt.Errorf("body length band [%d, %d] is invalid", r.ShortBodyLength, r.LongBodyLength)
	}
	if r.MinUppercaseLetters < 0 {
		return fmt.Errorf("min_uppercase_letters must not be negative")
	}
	if len(r.Signals) == 0 {
		return fmt.Errorf("ruleset defines no signals")
	}

	seen := make(map[Signal]bool, len(r.Signals))
	last := CategoryKeywords
	for _, rule := range r.Signals {
		category, ok := rule.Name.Category()
		if !ok {
			return fmt.Errorf("unknown signal %q", rule.Name)
		}
		if seen[rule.Name] {
			return fmt.Errorf("signal %q defined twice", rule.Name)
		}
		seen[rule.Name] = true

		if category < last {
			return fmt.Errorf("signal %q (%s) is out of category order", rule.Name, category)
		}
		last = category

		if rule.Cap <= 0 {
			return fmt.Errorf("signal %q: cap must be positive", rule.Name)
		}
		if rule.Visibility <= 0 {
			return fmt.Errorf("signal %q: visibility must be positive", rule.Name)
		}
		if rule.Name.IsCounterSignal() && rule.Weight > 0 {
			return fmt.Errorf("signal %q: counter-signal weight must not be positive", rule.Name)
		}
		if !rule.Name.IsCounterSignal() && rule.Weight < 0 {
			return fmt.Errorf("signal %q: weight must not be negative", rule.Name)
		}
	}
	return nil
}

// Rule returns the rule of a signal, if the ruleset defines it
func (r *Ruleset) Rule(name Signal) (SignalRule, bool) {
	for _, rule := range r.Signals {
		if rule.Name == name {
			return rule, true
		}
	}
	return SignalRule{}, false
}

type verdictBand struct {
	min     float64
	verdict core.Verdict
}

func (r *Ruleset) bands() []verdictBand {
	bands := []verdictBand{
		{min: r.PhishingThreshold, verdict: core.VerdictPhishing},
		{min: r.SuspiciousThreshold, verdict: core.VerdictSuspicious},
	}
	sort.Slice(bands, func(i, j int) bool { return bands[i].min > bands[j].min })
	return bands
}

// Classify maps a confidence onto a verdict using the threshold bands
func (r *Ruleset) Classify(confidence float64) core.Verdict {
	for _, band := range r.bands() {
		if confidence >= band.min {
			return band.verdict
		}
	}
	return core.VerdictLegitimate
}

// sortSignals restores category order, keeping relative order within a category
func sortSignals(signals []SignalRule) {
	sort.SliceStable(signals, func(i, j int) bool {
		ci, _ := signals[i].Name.Category()
		cj, _ := signals[j].Name.Category()
		return ci < cj
	})
}
