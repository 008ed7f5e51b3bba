package heuristics

import (
	"regexp"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/mikey/phish-detector/internal/core"
	"github.com/mikey/phish-detector/internal/utils"
	"github.com/mikey/phish-detector/internal/whitelist"
)

// Features holds the raw signal values of one message
type Features struct {
	SuspiciousKeywords int
	MatchedKeywords    []string
	TrustKeywords      int

	Links            []string
	SuspiciousLinks  []string
	LinkTextMismatch bool

	HTMLRatio        float64
	BodyLength       int
	LengthScore      float64
	UppercaseRatio   float64
	ExclamationCount int

	UrgencyWords   int
	MatchedUrgency []string
	Misspellings   int

	SenderDomain           string
	SenderDomainMismatch   bool
	SuspiciousSenderDomain bool
	TrustedSender          bool
}

// Value returns the raw value of a signal
func (f Features) Value(s Signal) float64 {
	switch s {
	case SignalSuspiciousKeywords:
		return float64(f.SuspiciousKeywords)
	case SignalTrustKeywords:
		return float64(f.TrustKeywords)
	case SignalLinkCount:
		return float64(len(f.Links))
	case SignalSuspiciousDomains:
		return float64(len(f.SuspiciousLinks))
	case SignalLinkTextMismatch:
		return boolValue(f.LinkTextMismatch)
	case SignalHTMLRatio:
		return f.HTMLRatio
	case SignalLengthScore:
		return f.LengthScore
	case SignalUppercaseRatio:
		return f.UppercaseRatio
	case SignalExclamationCount:
		return float64(f.ExclamationCount)
	case SignalUrgencyWords:
		return float64(f.UrgencyWords)
	case SignalMisspellings:
		return float64(f.Misspellings)
	case SignalSenderMismatch:
		return boolValue(f.SenderDomainMismatch)
	case SignalSuspiciousSender:
		return boolValue(f.SuspiciousSenderDomain)
	case SignalTrustedSender:
		return boolValue(f.TrustedSender)
	}
	return 0
}

func boolValue(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

// Extractor computes Features from a normalized email
type Extractor struct {
	rules      *Ruleset
	text       *utils.TextProcessor
	trusted    *whitelist.Checker
	hosts      *hostClassifier
	urgency    []*regexp.Regexp
	exclusions map[string]struct{}
	// matches every keyword and urgency term, nil when the ruleset has none
	phrases *regexp.Regexp
}

// NewExtractor creates an extractor for a validated ruleset
func NewExtractor(rules *Ruleset, text *utils.TextProcessor, trusted *whitelist.Checker) *Extractor {
	e := &Extractor{
		rules:      rules,
		text:       text,
		trusted:    trusted,
		hosts:      newHostClassifier(rules.SuspiciousTLDs, rules.ShortenerDomains),
		exclusions: make(map[string]struct{}, len(rules.SpellingExclusions)),
	}
	for _, term := range rules.UrgencyTerms {
		e.urgency = append(e.urgency, regexp.MustCompile(`\b`+regexp.QuoteMeta(term)+`\b`))
	}
	for _, word := range rules.SpellingExclusions {
		e.exclusions[word] = struct{}{}
	}
	e.phrases = phrasePattern(append(append([]string{}, rules.SuspiciousKeywords...), rules.UrgencyTerms...))
	return e
}

// phrasePattern builds a case-insensitive alternation, longest phrase first
func phrasePattern(phrases []string) *regexp.Regexp {
	parts := make([]string, 0, len(phrases))
	for _, phrase := range phrases {
		if words := strings.Fields(phrase); len(words) > 0 {
			for i, w := range words {
				words[i] = regexp.QuoteMeta(w)
			}
			parts = append(parts, strings.Join(words, `\s+`))
		}
	}
	if len(parts) == 0 {
		return nil
	}
	sort.SliceStable(parts, func(i, j int) bool { return len(parts[i]) > len(parts[j]) })
	return regexp.MustCompile(`(?i)` + strings.Join(parts, "|"))
}

// filler strips keywords and urgency terms; length, case and markup are measured on the rest
func (e *Extractor) filler(text string) string {
	if e.phrases == nil {
		return text
	}
	return e.phrases.ReplaceAllString(text, "")
}

// Extract computes every signal of the ruleset; missing optional fields yield zero values
func (e *Extractor) Extract(email *core.Email) Features {
	var f Features

	normalized := e.text.NormalizeText(email.Subject + " " + email.Body)
	f.SuspiciousKeywords, f.MatchedKeywords = countPhrases(normalized, e.rules.SuspiciousKeywords)
	f.TrustKeywords, _ = countPhrases(normalized, e.rules.TrustKeywords)
	f.UrgencyWords, f.MatchedUrgency = e.countUrgency(normalized)

	e.extractLinks(email, &f)

	visible := e.text.StripTags(email.Body)
	rest := e.filler(email.Body)

	// Markup share only means something for HTML content
	markup := email.HTMLBody
	if markup == "" && e.text.LooksLikeHTML(email.Body) {
		markup = email.Body
	}
	if markup = e.filler(markup); len(markup) > 0 {
		f.HTMLRatio = float64(e.text.MarkupLength(markup)) / float64(len(markup))
	}

	f.BodyLength = utf8.RuneCountInString(strings.TrimSpace(rest))
	f.LengthScore = e.lengthScore(f.BodyLength)
	f.UppercaseRatio = e.uppercaseRatio(e.text.StripTags(rest))
	f.ExclamationCount = strings.Count(email.Subject, "!") + strings.Count(visible, "!")
	f.Misspellings = e.countMisspellings(visible)

	e.extractSender(email, &f)
	return f
}

func (e *Extractor) extractLinks(email *core.Email, f *Features) {
	f.Links = extractLinks(email.Body)
	if len(f.Links) == 0 && email.HTMLBody != "" && email.HTMLBody != email.Body {
		f.Links = extractLinks(email.HTMLBody)
	}
	for _, link := range f.Links {
		if e.hosts.isSuspicious(linkHost(link)) {
			f.SuspiciousLinks = append(f.SuspiciousLinks, link)
		}
	}

	f.LinkTextMismatch = hasLinkTextMismatch(email.Body)
	if !f.LinkTextMismatch && email.HTMLBody != "" && email.HTMLBody != email.Body {
		f.LinkTextMismatch = hasLinkTextMismatch(email.HTMLBody)
	}
}

func (e *Extractor) extractSender(email *core.Email, f *Features) {
	fromDomain := domainOf(email.From)
	f.SenderDomain = fromDomain
	if fromDomain == "" {
		return
	}

	fromRegistrable := registrableDomain(fromDomain)
	if replyDomain := domainOf(email.ReplyTo); replyDomain != "" && registrableDomain(replyDomain) != fromRegistrable {
		f.SenderDomainMismatch = true
	}
	if len(f.Links) > 0 && !e.anyLinkOn(f.Links, fromRegistrable) {
		f.SenderDomainMismatch = true
	}

	f.SuspiciousSenderDomain = e.hosts.hasSuspiciousTLD(fromDomain)
	f.TrustedSender = e.trusted.IsWhitelisted(email.From)
}

func (e *Extractor) anyLinkOn(links []string, domain string) bool {
	for _, link := range links {
		if host := linkHost(link); host != "" && registrableDomain(host) == domain {
			return true
		}
	}
	return false
}

// countPhrases counts every occurrence of every phrase; matched lists the phrases found
func countPhrases(text string, phrases []string) (total int, matched []string) {
	for _, phrase := range phrases {
		if n := strings.Count(text, phrase); n > 0 {
			total += n
			matched = append(matched, phrase)
		}
	}
	return total, matched
}

func (e *Extractor) countUrgency(text string) (total int, matched []string) {
	for i, re := range e.urgency {
		if n := len(re.FindAllStringIndex(text, -1)); n > 0 {
			total += n
			matched = append(matched, e.rules.UrgencyTerms[i])
		}
	}
	return total, matched
}

// lengthScore is 0 inside the normal band and rises linearly to 1 outside it
func (e *Extractor) lengthScore(length int) float64 {
	short, long := e.rules.ShortBodyLength, e.rules.LongBodyLength
	switch {
	case length < short:
		return float64(short-length) / float64(short)
	case length > long:
		return min(1, float64(length-long)/float64(long))
	}
	return 0
}

func (e *Extractor) uppercaseRatio(text string) float64 {
	letters, upper := 0, 0
	for _, r := range text {
		if !unicode.IsLetter(r) {
			continue
		}
		letters++
		if unicode.IsUpper(r) {
			upper++
		}
	}
	if letters == 0 || letters < e.rules.MinUppercaseLetters {
		return 0
	}
	return float64(upper) / float64(letters)
}

func (e *Extractor) countMisspellings(text string) int {
	count := 0
	for _, field := range strings.Fields(text) {
		lower := strings.ToLower(field)
		if strings.Contains(lower, "://") || strings.Contains(lower, "@") || strings.HasPrefix(lower, "www.") {
			continue
		}
		token := strings.TrimFunc(lower, func(r rune) bool {
			return !unicode.IsLetter(r) && !unicode.IsDigit(r)
		})
		if token == "" {
			continue
		}
		if _, ok := e.exclusions[token]; ok {
			continue
		}
		if isAnomalousToken(token) {
			count++
		}
	}
	return count
}

// isAnomalousToken flags overlong letter runs, tripled letters and digits inside words
func isAnomalousToken(token string) bool {
	runes := []rune(token)
	run, longest, repeat := 0, 0, 1

	for i, r := range runes {
		if unicode.IsLetter(r) {
			run++
			longest = max(longest, run)
		} else {
			run = 0
		}

		if i > 0 && r == runes[i-1] && unicode.IsLetter(r) {
			repeat++
			if repeat >= 3 {
				return true
			}
		} else {
			repeat = 1
		}

		if unicode.IsDigit(r) && i > 0 && i < len(runes)-1 &&
			unicode.IsLetter(runes[i-1]) && unicode.IsLetter(runes[i+1]) {
			return true
		}
	}

	return longest >= 18
}
