package filter

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/mikey/phish-detector/internal/core"
)

func phishingResult() *core.AnalysisResult {
	return &core.AnalysisResult{
		Verdict:    core.VerdictPhishing,
		Confidence: 0.76371,
		Highlights: []string{`Contains suspicious phrases: "click here"`, "Links to suspicious domains: a.tk"},
	}
}

func TestAnnotateMessageCRLF(t *testing.T) {
	raw := []byte("From: a@example.com\r\nSubject: Hello\r\nX-Phishing-Verdict: legitimate\r\n\r\nbody line\r\n")

	out := string(annotateMessage(raw, annotation{
		headers: DefaultHeaderNames(),
		result:  phishingResult(),
	}))

	assert.Equal(t, "X-Phishing-Verdict: phishing\r\n"+
		"X-Phishing-Confidence: 0.7637\r\n"+
		`X-Phishing-Reasons: Contains suspicious phrases: "click here"; Links to suspicious domains: a.tk`+"\r\n"+
		"From: a@example.com\r\n"+
		"Subject: Hello\r\n"+
		"\r\n"+
		"body line\r\n", out)
}

func TestAnnotateMessageSubjectPrefix(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{
			name: "plain subject",
			raw:  "Subject: Verify now\n\nbody",
			want: "Subject: [PHISHING] Verify now\n",
		},
		{
			name: "folded subject",
			raw:  "Subject: Verify\n now\nFrom: a@b.c\n\nbody",
			want: "Subject: [PHISHING] Verify now\nFrom: a@b.c\n",
		},
		{
			name: "already prefixed",
			raw:  "Subject: [PHISHING] Verify now\n\nbody",
			want: "Subject: [PHISHING] Verify now\n",
		},
		{
			name: "missing subject",
			raw:  "From: a@b.c\n\nbody",
			want: "From: a@b.c\nSubject: [PHISHING]\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := string(annotateMessage([]byte(tt.raw), annotation{
				headers:       DefaultHeaderNames(),
				result:        phishingResult(),
				subjectPrefix: "[PHISHING] ",
			}))
			assert.Contains(t, out, tt.want)
			assert.True(t, strings.HasSuffix(out, "\n\nbody"))
		})
	}
}

func TestAnnotateMessageAnalysisError(t *testing.T) {
	raw := []byte("Subject: hi\n\nbody")
	out := string(annotateMessage(raw, annotation{
		headers:     DefaultHeaderNames(),
		analysisErr: errors.New("invalid input:\n message has no usable body"),
	}))

	assert.Equal(t, "X-Phishing-Analysis-Error: invalid input: message has no usable body\nSubject: hi\n\nbody", out)
}

func TestAnnotateMessageNoHighlights(t *testing.T) {
	out := string(annotateMessage([]byte("Subject: hi\n\nbody"), annotation{
		headers: DefaultHeaderNames(),
		result:  &core.AnalysisResult{Verdict: core.VerdictLegitimate},
	}))
	assert.Contains(t, out, "X-Phishing-Reasons: none\n")
	assert.Contains(t, out, "X-Phishing-Confidence: 0.0000\n")
}

func TestSplitMessage(t *testing.T) {
	header, body, newline := splitMessage([]byte("A: 1\r\nB: 2\r\n\r\nbody\r\n"))
	assert.Equal(t, "A: 1\r\nB: 2", string(header))
	assert.Equal(t, "body\r\n", string(body))
	assert.Equal(t, "\r\n", newline)

	header, body, newline = splitMessage([]byte("A: 1\n"))
	assert.Equal(t, "A: 1", string(header))
	assert.Empty(t, body)
	assert.Equal(t, "\n", newline)
}
