package heuristics

import (
	"net"
	"net/url"
	"regexp"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/idna"
	"golang.org/x/net/publicsuffix"
)

var (
	linkPattern       = regexp.MustCompile("(?i)\\b(?:https?://|www\\.)[^\\s<>\"'`]+")
	domainLikePattern = regexp.MustCompile(`(?i)(?:https?://)?((?:[a-z0-9](?:[a-z0-9-]*[a-z0-9])?\.)+[a-z]{2,})`)
)

// extractLinks returns the URL-like substrings of text in order of appearance
func extractLinks(text string) []string {
	matches := linkPattern.FindAllString(text, -1)
	links := make([]string, 0, len(matches))
	for _, m := range matches {
		m = strings.TrimRight(m, ".,;:!?)]}")
		if m != "" {
			links = append(links, m)
		}
	}
	return links
}

// linkHost returns the lower-cased host of a link, or "" if it has none
func linkHost(link string) string {
	link = strings.TrimSpace(link)
	if strings.HasPrefix(strings.ToLower(link), "www.") {
		link = "http://" + link
	}
	u, err := url.Parse(link)
	if err != nil {
		rest := link
		if i := strings.Index(rest, "://"); i >= 0 {
			rest = rest[i+3:]
		} else {
			return ""
		}
		if i := strings.IndexAny(rest, "/?#"); i >= 0 {
			rest = rest[:i]
		}
		if i := strings.LastIndex(rest, "@"); i >= 0 {
			rest = rest[i+1:]
		}
		return strings.ToLower(strings.TrimSuffix(rest, "."))
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return ""
	}
	return strings.ToLower(strings.TrimSuffix(u.Hostname(), "."))
}

// registrableDomain returns the eTLD+1 of host, or host itself when it has none
func registrableDomain(host string) string {
	host = strings.ToLower(strings.Trim(host, ". "))
	if host == "" || net.ParseIP(host) != nil {
		return host
	}
	domain, err := publicsuffix.EffectiveTLDPlusOne(host)
	if err != nil {
		return host
	}
	return domain
}

// domainOf returns the lower-cased domain of an address, or "" if there is none
func domainOf(address string) string {
	at := strings.LastIndex(address, "@")
	if at < 0 || at == len(address)-1 {
		return ""
	}
	return strings.ToLower(strings.Trim(address[at+1:], ">. "))
}

// hostClassifier flags hosts commonly used to disguise link targets
type hostClassifier struct {
	tlds       map[string]struct{}
	shorteners map[string]struct{}
}

func newHostClassifier(tlds, shorteners []string) *hostClassifier {
	c := &hostClassifier{
		tlds:       make(map[string]struct{}, len(tlds)),
		shorteners: make(map[string]struct{}, len(shorteners)),
	}
	for _, tld := range tlds {
		c.tlds[strings.TrimPrefix(tld, ".")] = struct{}{}
	}
	for _, s := range shorteners {
		c.shorteners[s] = struct{}{}
	}
	return c
}

func (c *hostClassifier) hasSuspiciousTLD(host string) bool {
	tld := host
	if i := strings.LastIndex(host, "."); i >= 0 {
		tld = host[i+1:]
	}
	_, ok := c.tlds[tld]
	return ok
}

func (c *hostClassifier) isShortener(host string) bool {
	_, ok := c.shorteners[strings.TrimPrefix(host, "www.")]
	return ok
}

// isSuspicious reports whether a link host is an IP literal, an IDN, a shortener or on a risky TLD
func (c *hostClassifier) isSuspicious(host string) bool {
	if host == "" {
		return false
	}
	if net.ParseIP(strings.Trim(host, "[]")) != nil {
		return true
	}
	ascii, err := idna.Punycode.ToASCII(host)
	if err != nil || ascii != host || strings.Contains(ascii, "xn--") {
		return true
	}
	return c.hasSuspiciousTLD(host) || c.isShortener(host)
}

type anchor struct {
	href string
	text string
}

// findAnchors collects every <a href> of a markup fragment with its visible text
func findAnchors(markup string) []anchor {
	var (
		anchors []anchor
		current *anchor
		text    strings.Builder
	)

	z := html.NewTokenizer(strings.NewReader(markup))
	for {
		switch z.Next() {
		case html.ErrorToken:
			return anchors
		case html.StartTagToken:
			name, hasAttr := z.TagName()
			if string(name) != "a" {
				continue
			}
			href := ""
			for hasAttr {
				var key, val []byte
				key, val, hasAttr = z.TagAttr()
				if string(key) == "href" {
					href = string(val)
				}
			}
			current = &anchor{href: href}
			text.Reset()
		case html.TextToken:
			if current != nil {
				text.Write(z.Text())
			}
		case html.EndTagToken:
			name, _ := z.TagName()
			if string(name) == "a" && current != nil {
				current.text = strings.TrimSpace(text.String())
				anchors = append(anchors, *current)
				current = nil
			}
		}
	}
}

// displayedDomain returns the domain an anchor text claims to link to, if any
func displayedDomain(text string) string {
	m := domainLikePattern.FindStringSubmatch(text)
	if m == nil {
		return ""
	}
	domain := strings.ToLower(m[1])
	explicit := strings.Contains(strings.ToLower(m[0]), "://") || strings.HasPrefix(domain, "www.")
	if !explicit {
		// Bare names like "invoice.pdf" only count on a real public suffix
		if _, icann := publicsuffix.PublicSuffix(domain); !icann {
			return ""
		}
	}
	return domain
}

// hasLinkTextMismatch reports whether any anchor shows one domain and targets another
func hasLinkTextMismatch(markup string) bool {
	if !strings.Contains(strings.ToLower(markup), "<a") {
		return false
	}
	for _, a := range findAnchors(markup) {
		target := linkHost(a.href)
		if target == "" {
			continue
		}
		shown := displayedDomain(a.text)
		if shown == "" {
			continue
		}
		if registrableDomain(shown) != registrableDomain(target) {
			return true
		}
	}
	return false
}
