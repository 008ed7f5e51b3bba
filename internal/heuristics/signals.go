package heuristics

// Signal identifies one independently computed feature of a message
type Signal string

const (
	SignalSuspiciousKeywords Signal = "suspicious_keywords"
	SignalTrustKeywords      Signal = "trust_signal_keywords"
	SignalLinkCount          Signal = "link_count"
	SignalSuspiciousDomains  Signal = "suspicious_domain_count"
	SignalLinkTextMismatch   Signal = "link_text_mismatch"
	SignalHTMLRatio          Signal = "html_ratio"
	SignalLengthScore        Signal = "length_score"
	SignalUppercaseRatio     Signal = "uppercase_ratio"
	SignalExclamationCount   Signal = "exclamation_count"
	SignalUrgencyWords       Signal = "urgency_word_count"
	SignalMisspellings       Signal = "misspelling_estimate"
	SignalSenderMismatch     Signal = "sender_domain_mismatch"
	SignalSuspiciousSender   Signal = "suspicious_sender_domain"
	SignalTrustedSender      Signal = "trusted_sender"
)

// Category groups signals; highlights and insights are ordered by category
type Category int

const (
	CategoryKeywords Category = iota
	CategoryLinks
	CategoryStructure
	CategoryLanguage
	CategoryHeaders
)

func (c Category) String() string {
	switch c {
	case CategoryKeywords:
		return "keywords"
	case CategoryLinks:
		return "links"
	case CategoryStructure:
		return "structure"
	case CategoryLanguage:
		return "language"
	case CategoryHeaders:
		return "headers"
	}
	return "unknown"
}

var signalCategories = map[Signal]Category{
	SignalSuspiciousKeywords: CategoryKeywords,
	SignalTrustKeywords:      CategoryKeywords,
	SignalLinkCount:          CategoryLinks,
	SignalSuspiciousDomains:  CategoryLinks,
	SignalLinkTextMismatch:   CategoryLinks,
	SignalHTMLRatio:          CategoryStructure,
	SignalLengthScore:        CategoryStructure,
	SignalUppercaseRatio:     CategoryStructure,
	SignalExclamationCount:   CategoryStructure,
	SignalUrgencyWords:       CategoryLanguage,
	SignalMisspellings:       CategoryLanguage,
	SignalSenderMismatch:     CategoryHeaders,
	SignalSuspiciousSender:   CategoryHeaders,
	SignalTrustedSender:      CategoryHeaders,
}

// Counter-signals indicate legitimacy and may only lower the score
var counterSignals = map[Signal]bool{
	SignalTrustKeywords: true,
	SignalTrustedSender: true,
}

// Category returns the category of a known signal
func (s Signal) Category() (Category, bool) {
	c, ok := signalCategories[s]
	return c, ok
}

// IsCounterSignal reports whether the signal indicates legitimacy
func (s Signal) IsCounterSignal() bool {
	return counterSignals[s]
}

// SignalRule is the static scoring configuration of one signal
type SignalRule struct {
	Name Signal `yaml:"name"`

	// Weight is the contribution of the fully saturated signal; negative for counter-signals
	Weight float64 `yaml:"weight"`

	// Cap is the raw value at which the signal saturates
	Cap float64 `yaml:"cap"`

	// Visibility is the raw value from which a highlight is emitted
	Visibility float64 `yaml:"visibility"`

	Description string `yaml:"description"`
}

// Normalize maps a raw value onto [0,1], saturating at Cap
func (r SignalRule) Normalize(value float64) float64 {
	if value <= 0 || r.Cap <= 0 {
		return 0
	}
	return min(1, value/r.Cap)
}

// Contribution is the weighted, normalized value added to the confidence sum
func (r SignalRule) Contribution(value float64) float64 {
	return r.Normalize(value) * r.Weight
}

// Visible reports whether a raw value is high enough to be highlighted
func (r SignalRule) Visible(value float64) bool {
	return value >= r.Visibility
}
