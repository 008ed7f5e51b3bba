package heuristics

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractLinks(t *testing.T) {
	text := "Visit http://secure-login.tk/verify, or www.example.com/help. Also (https://bit.ly/abc)!"
	assert.Equal(t, []string{
		"http://secure-login.tk/verify",
		"www.example.com/help",
		"https://bit.ly/abc",
	}, extractLinks(text))

	assert.Empty(t, extractLinks("no links in here"))
}

func TestLinkHost(t *testing.T) {
	tests := []struct {
		link string
		want string
	}{
		{"http://secure-login.tk/verify", "secure-login.tk"},
		{"HTTPS://Mail.Example.COM:8443/x", "mail.example.com"},
		{"www.example.com/help", "www.example.com"},
		{"http://user@evil.tk/login", "evil.tk"},
		{"http://[::1]/admin", "::1"},
		{"mailto:someone@example.com", ""},
		{"#top", ""},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, linkHost(tt.link), tt.link)
	}
}

func TestRegistrableDomain(t *testing.T) {
	tests := []struct {
		host string
		want string
	}{
		{"mail.paypal.com", "paypal.com"},
		{"paypal.com", "paypal.com"},
		{"login.paypal.co.uk", "paypal.co.uk"},
		{"secure-login.tk", "secure-login.tk"},
		{"192.168.1.10", "192.168.1.10"},
		{"", ""},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, registrableDomain(tt.host), tt.host)
	}
}

func TestHostClassifier(t *testing.T) {
	rules := DefaultRuleset()
	hosts := newHostClassifier(rules.SuspiciousTLDs, rules.ShortenerDomains)

	tests := []struct {
		name string
		host string
		want bool
	}{
		{"risky tld", "secure-login.tk", true},
		{"ipv4 literal", "192.168.1.10", true},
		{"ipv6 literal", "::1", true},
		{"shortener", "bit.ly", true},
		{"shortener with www", "www.tinyurl.com", true},
		{"punycode", "xn--pypal-4ve.com", true},
		{"non-ascii lookalike", "pаypal.com", true},
		{"ordinary domain", "www.example.com", false},
		{"tld as label", "tk.example.com", false},
		{"empty", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, hosts.isSuspicious(tt.host))
		})
	}
}

func TestFindAnchors(t *testing.T) {
	markup := `<p>Hello <A HREF="https://example.com/a">the <b>first</b> link</A> and <a>bare</a></p>`
	anchors := findAnchors(markup)

	assert.Equal(t, []anchor{
		{href: "https://example.com/a", text: "the first link"},
		{href: "", text: "bare"},
	}, anchors)
}

func TestHasLinkTextMismatch(t *testing.T) {
	tests := []struct {
		name   string
		markup string
		want   bool
	}{
		{
			name:   "displayed domain differs from target",
			markup: `<a href="http://evil.tk/login">www.paypal.com</a>`,
			want:   true,
		},
		{
			name:   "bare public domain differs from target",
			markup: `<a href="http://evil.tk/login">paypal.com</a>`,
			want:   true,
		},
		{
			name:   "same registrable domain",
			markup: `<a href="https://www.paypal.com/signin">https://paypal.com</a>`,
			want:   false,
		},
		{
			name:   "text without a domain",
			markup: `<a href="http://evil.tk/login">Click here</a>`,
			want:   false,
		},
		{
			name:   "file name is not a domain",
			markup: `<a href="https://files.example.com/invoice.pdf">invoice.pdf</a>`,
			want:   false,
		},
		{
			name:   "non-web target",
			markup: `<a href="mailto:help@paypal.com">paypal.com</a>`,
			want:   false,
		},
		{
			name:   "no anchors",
			markup: `plain text mentioning paypal.com`,
			want:   false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, hasLinkTextMismatch(tt.markup))
		})
	}
}

func TestDomainOf(t *testing.T) {
	assert.Equal(t, "example.com", domainOf("alice@Example.com"))
	assert.Equal(t, "example.com", domainOf("Alice <alice@example.com>"))
	assert.Equal(t, "", domainOf("no address"))
	assert.Equal(t, "", domainOf("trailing@"))
}
