package filter

import (
	"bytes"
	"fmt"
	"mime"
	"strings"

	"github.com/mikey/phish-detector/internal/core"
)

// HeaderNames are the headers prepended to filtered messages
type HeaderNames struct {
	Verdict    string
	Confidence string
	Reasons    string
	Error      string
}

// DefaultHeaderNames returns the standard X-Phishing-* header names
func DefaultHeaderNames() HeaderNames {
	return HeaderNames{
		Verdict:    "X-Phishing-Verdict",
		Confidence: "X-Phishing-Confidence",
		Reasons:    "X-Phishing-Reasons",
		Error:      "X-Phishing-Analysis-Error",
	}
}

func (h HeaderNames) all() []string {
	return []string{h.Verdict, h.Confidence, h.Reasons, h.Error}
}

// annotation describes how a message is rewritten before re-injection
type annotation struct {
	headers       HeaderNames
	result        *core.AnalysisResult
	analysisErr   error
	subjectPrefix string
}

// annotateMessage prepends the analysis headers, drops inbound copies of them
// and optionally prefixes the subject; the body is kept byte for byte
func annotateMessage(raw []byte, a annotation) []byte {
	header, body, newline := splitMessage(raw)

	var out bytes.Buffer
	if a.analysisErr != nil {
		fmt.Fprintf(&out, "%s: %s%s", a.headers.Error, headerValue(a.analysisErr.Error()), newline)
	} else if a.result != nil {
		reasons := "none"
		if len(a.result.Highlights) > 0 {
			reasons = strings.Join(a.result.Highlights, "; ")
		}
		fmt.Fprintf(&out, "%s: %s%s", a.headers.Verdict, a.result.Verdict, newline)
		fmt.Fprintf(&out, "%s: %.4f%s", a.headers.Confidence, a.result.Confidence, newline)
		fmt.Fprintf(&out, "%s: %s%s", a.headers.Reasons, headerValue(reasons), newline)
	}

	lines := headerFields(header)
	subjectSeen := false
	for _, field := range lines {
		name := fieldName(field)
		if containsFold(a.headers.all(), name) {
			continue
		}
		if strings.EqualFold(name, "Subject") && a.subjectPrefix != "" && !subjectSeen {
			subjectSeen = true
			field = prefixSubject(field, a.subjectPrefix)
		}
		out.WriteString(strings.Join(field, newline))
		out.WriteString(newline)
	}
	if a.subjectPrefix != "" && !subjectSeen {
		fmt.Fprintf(&out, "Subject: %s%s", strings.TrimSpace(a.subjectPrefix), newline)
	}

	out.WriteString(newline)
	out.Write(body)
	return out.Bytes()
}

// splitMessage separates the header block from the body
func splitMessage(raw []byte) (header, body []byte, newline string) {
	crlf := bytes.Index(raw, []byte("\r\n\r\n"))
	lf := bytes.Index(raw, []byte("\n\n"))

	switch {
	case crlf >= 0 && (lf < 0 || crlf < lf):
		return raw[:crlf], raw[crlf+4:], "\r\n"
	case lf >= 0:
		return raw[:lf], raw[lf+2:], "\n"
	}

	newline = "\n"
	if bytes.Contains(raw, []byte("\r\n")) {
		newline = "\r\n"
	}
	return bytes.TrimRight(raw, "\r\n"), nil, newline
}

// headerFields groups raw header lines into fields, folded continuations included
func headerFields(header []byte) [][]string {
	var fields [][]string
	for _, line := range strings.Split(string(header), "\n") {
		line = strings.TrimSuffix(line, "\r")
		if line == "" {
			continue
		}
		if (line[0] == ' ' || line[0] == '\t') && len(fields) > 0 {
			fields[len(fields)-1] = append(fields[len(fields)-1], line)
			continue
		}
		fields = append(fields, []string{line})
	}
	return fields
}

func fieldName(field []string) string {
	name, _, found := strings.Cut(field[0], ":")
	if !found {
		return ""
	}
	return strings.TrimSpace(name)
}

func prefixSubject(field []string, prefix string) []string {
	_, value, _ := strings.Cut(strings.Join(field, ""), ":")
	value = strings.TrimSpace(value)

	decoded, err := new(mime.WordDecoder).DecodeHeader(value)
	if err != nil {
		decoded = value
	}
	if strings.HasPrefix(decoded, prefix) {
		return field
	}
	return []string{"Subject: " + prefix + value}
}

// headerValue keeps a value on a single header line
func headerValue(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func containsFold(list []string, s string) bool {
	for _, item := range list {
		if item != "" && strings.EqualFold(item, s) {
			return true
		}
	}
	return false
}
