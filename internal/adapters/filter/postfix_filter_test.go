package filter

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/emersion/go-smtp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mikey/phish-detector/internal/core"
)

type mockAnalyzer struct {
	mock.Mock
}

func (m *mockAnalyzer) AnalyzeFile(ctx context.Context, raw []byte) (*core.AnalysisResult, error) {
	args := m.Called(ctx, raw)
	result, _ := args.Get(0).(*core.AnalysisResult)
	return result, args.Error(1)
}

func (m *mockAnalyzer) AnalyzeText(ctx context.Context, req core.TextRequest) (*core.AnalysisResult, error) {
	args := m.Called(ctx, req)
	result, _ := args.Get(0).(*core.AnalysisResult)
	return result, args.Error(1)
}

type forwarded struct {
	sender     string
	recipients []string
	data       []byte
}

func newTestPostfixFilter(analyzer MessageAnalyzer, opts PostfixOptions) (*PostfixFilter, *[]forwarded) {
	opts.PostfixEnabled = true
	f := NewPostfixFilter(analyzer, zap.NewNop(), opts)
	var sent []forwarded
	f.forward = func(sender string, recipients []string, data []byte) error {
		sent = append(sent, forwarded{sender: sender, recipients: recipients, data: data})
		return nil
	}
	return f, &sent
}

const testMessage = "From: a@evil.tk\r\nSubject: Verify\r\n\r\nClick here http://evil.tk\r\n"

func TestPostfixFilterAnnotatesAndForwards(t *testing.T) {
	analyzer := new(mockAnalyzer)
	analyzer.On("AnalyzeFile", mock.Anything, []byte(testMessage)).Return(phishingResult(), nil)

	f, sent := newTestPostfixFilter(analyzer, PostfixOptions{ModifySubject: true})
	err := f.filterMessage("a@evil.tk", []string{"bob@example.com"}, []byte(testMessage))
	require.NoError(t, err)

	require.Len(t, *sent, 1)
	msg := (*sent)[0]
	assert.Equal(t, "a@evil.tk", msg.sender)
	assert.Equal(t, []string{"bob@example.com"}, msg.recipients)
	assert.True(t, bytes.HasPrefix(msg.data, []byte("X-Phishing-Verdict: phishing\r\n")))
	assert.Contains(t, string(msg.data), "Subject: [PHISHING] Verify\r\n")
	assert.True(t, strings.HasSuffix(string(msg.data), "\r\n\r\nClick here http://evil.tk\r\n"))
	analyzer.AssertExpectations(t)
}

func TestPostfixFilterBlocksPhishing(t *testing.T) {
	analyzer := new(mockAnalyzer)
	analyzer.On("AnalyzeFile", mock.Anything, mock.Anything).Return(phishingResult(), nil)

	f, sent := newTestPostfixFilter(analyzer, PostfixOptions{BlockPhishing: true})
	err := f.filterMessage("a@evil.tk", []string{"bob@example.com"}, []byte(testMessage))

	var smtpErr *smtp.SMTPError
	require.True(t, errors.As(err, &smtpErr))
	assert.Equal(t, 550, smtpErr.Code)
	assert.Equal(t, smtp.EnhancedCode{5, 7, 1}, smtpErr.EnhancedCode)
	assert.Empty(t, *sent)
}

func TestPostfixFilterDoesNotBlockSuspicious(t *testing.T) {
	analyzer := new(mockAnalyzer)
	analyzer.On("AnalyzeFile", mock.Anything, mock.Anything).Return(&core.AnalysisResult{
		Verdict:    core.VerdictSuspicious,
		Confidence: 0.4,
	}, nil)

	f, sent := newTestPostfixFilter(analyzer, PostfixOptions{BlockPhishing: true, ModifySubject: true})
	require.NoError(t, f.filterMessage("a@b.c", []string{"d@e.f"}, []byte(testMessage)))

	require.Len(t, *sent, 1)
	assert.Contains(t, string((*sent)[0].data), "X-Phishing-Verdict: suspicious\r\n")
	assert.Contains(t, string((*sent)[0].data), "Subject: Verify\r\n")
}

func TestPostfixFilterAcceptsOnAnalysisError(t *testing.T) {
	analyzer := new(mockAnalyzer)
	analyzer.On("AnalyzeFile", mock.Anything, mock.Anything).
		Return(nil, fmt.Errorf("%w: message has no usable body", core.ErrInvalidInput))

	f, sent := newTestPostfixFilter(analyzer, PostfixOptions{BlockPhishing: true})
	require.NoError(t, f.filterMessage("a@b.c", []string{"d@e.f"}, []byte(testMessage)))

	require.Len(t, *sent, 1)
	data := string((*sent)[0].data)
	assert.True(t, strings.HasPrefix(data, "X-Phishing-Analysis-Error: invalid input: message has no usable body\r\n"))
	assert.NotContains(t, data, "X-Phishing-Verdict")
}

func TestPostfixFilterForwardFailure(t *testing.T) {
	analyzer := new(mockAnalyzer)
	analyzer.On("AnalyzeFile", mock.Anything, mock.Anything).Return(phishingResult(), nil)

	f, _ := newTestPostfixFilter(analyzer, PostfixOptions{})
	f.forward = func(string, []string, []byte) error { return errors.New("connection refused") }

	assert.Error(t, f.filterMessage("a@b.c", []string{"d@e.f"}, []byte(testMessage)))
}

func TestSMTPSessionCollectsEnvelope(t *testing.T) {
	analyzer := new(mockAnalyzer)
	analyzer.On("AnalyzeFile", mock.Anything, []byte(testMessage)).Return(phishingResult(), nil)

	f, sent := newTestPostfixFilter(analyzer, PostfixOptions{})
	session, err := (&smtpBackend{filter: f}).NewSession(nil)
	require.NoError(t, err)

	require.NoError(t, session.Mail("a@evil.tk", nil))
	require.NoError(t, session.Rcpt("bob@example.com", nil))
	require.NoError(t, session.Rcpt("carol@example.com", nil))
	require.NoError(t, session.Data(strings.NewReader(testMessage)))

	require.Len(t, *sent, 1)
	assert.Equal(t, []string{"bob@example.com", "carol@example.com"}, (*sent)[0].recipients)

	session.Reset()
	assert.Empty(t, session.(*smtpSession).recipients)
	assert.NoError(t, session.Logout())
}

func TestNewPostfixFilterDefaults(t *testing.T) {
	f := NewPostfixFilter(new(mockAnalyzer), zap.NewNop(), PostfixOptions{ModifySubject: true})
	assert.Equal(t, "[PHISHING] ", f.opts.SubjectPrefix)
	assert.Equal(t, DefaultHeaderNames(), f.opts.Headers)
	assert.Equal(t, "localhost", f.opts.Domain)
	assert.NoError(t, f.Stop())
}
