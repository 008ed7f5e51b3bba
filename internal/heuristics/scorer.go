package heuristics

import (
	"fmt"
	"math"
	"strings"

	"github.com/mikey/phish-detector/internal/core"
)

// Score is the outcome of scoring one set of features
type Score struct {
	Confidence float64
	Verdict    core.Verdict
	Highlights []string
	Insights   []core.Insight
}

// Scorer combines feature values into a confidence and verdict
type Scorer struct {
	rules *Ruleset
}

// NewScorer creates a scorer for a validated ruleset
func NewScorer(rules *Ruleset) *Scorer {
	return &Scorer{rules: rules}
}

// Score computes confidence, verdict, highlights and one insight per signal
func (s *Scorer) Score(f Features) Score {
	var (
		sum        float64
		highlights = make([]string, 0)
		insights   = make([]core.Insight, 0, len(s.rules.Signals))
	)

	for _, rule := range s.rules.Signals {
		value := f.Value(rule.Name)
		sum += rule.Contribution(value)

		insights = append(insights, core.Insight{
			Name:        string(rule.Name),
			Value:       round4(value),
			Weight:      rule.Weight,
			Description: rule.Description,
		})

		if rule.Visible(value) {
			highlights = append(highlights, s.highlight(rule.Name, f))
		}
	}

	confidence := round4(math.Max(0, math.Min(1, sum)))
	return Score{
		Confidence: confidence,
		Verdict:    s.rules.Classify(confidence),
		Highlights: highlights,
		Insights:   insights,
	}
}

func round4(v float64) float64 {
	return math.Round(v*10000) / 10000
}

// highlight renders the sentence reported for a visible signal
func (s *Scorer) highlight(name Signal, f Features) string {
	switch name {
	case SignalSuspiciousKeywords:
		return fmt.Sprintf("Contains suspicious phrases: %s", quoteList(f.MatchedKeywords))
	case SignalTrustKeywords:
		return fmt.Sprintf("Contains %d phrase(s) typical of legitimate mail", f.TrustKeywords)
	case SignalLinkCount:
		return fmt.Sprintf("Contains %d links", len(f.Links))
	case SignalSuspiciousDomains:
		return fmt.Sprintf("Links to suspicious domains: %s", strings.Join(uniqueHosts(f.SuspiciousLinks), ", "))
	case SignalLinkTextMismatch:
		return "Link text shows a different domain than the link target"
	case SignalHTMLRatio:
		return fmt.Sprintf("Body is %.0f%% markup", f.HTMLRatio*100)
	case SignalLengthScore:
		if f.BodyLength < s.rules.ShortBodyLength {
			return fmt.Sprintf("Unusually short body (%d characters)", f.BodyLength)
		}
		return fmt.Sprintf("Unusually long body (%d characters)", f.BodyLength)
	case SignalUppercaseRatio:
		return fmt.Sprintf("Excessive uppercase text (%.0f%% of letters)", f.UppercaseRatio*100)
	case SignalExclamationCount:
		return fmt.Sprintf("Excessive exclamation marks (%d)", f.ExclamationCount)
	case SignalUrgencyWords:
		return fmt.Sprintf("Urgent language: %s", quoteList(f.MatchedUrgency))
	case SignalMisspellings:
		return fmt.Sprintf("Contains %d misspelled or obfuscated words", f.Misspellings)
	case SignalSenderMismatch:
		return fmt.Sprintf("Reply-To or link domains do not match sender domain %s", f.SenderDomain)
	case SignalSuspiciousSender:
		return fmt.Sprintf("Sender domain %s uses a high-risk TLD", f.SenderDomain)
	case SignalTrustedSender:
		return fmt.Sprintf("Sender domain %s is trusted", f.SenderDomain)
	}
	return string(name)
}

func quoteList(items []string) string {
	quoted := make([]string, len(items))
	for i, item := range items {
		quoted[i] = fmt.Sprintf("%q", item)
	}
	return strings.Join(quoted, ", ")
}

func uniqueHosts(links []string) []string {
	seen := make(map[string]bool, len(links))
	hosts := make([]string, 0, len(links))
	for _, link := range links {
		host := linkHost(link)
		if host == "" {
			host = link
		}
		if !seen[host] {
			seen[host] = true
			hosts = append(hosts, host)
		}
	}
	return hosts
}
