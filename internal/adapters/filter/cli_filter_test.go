package filter

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mikey/phish-detector/internal/core"
)

func cliResult() *core.AnalysisResult {
	from := "a@evil.tk"
	result := phishingResult()
	result.ModelVersion = "0.1.0-ml"
	result.Metadata = core.EmailMetadata{FromAddress: &from, ToAddresses: []string{}}
	result.Insights = []core.Insight{{Name: "suspicious_keywords", Value: 3, Weight: 0.35, Description: "phrases"}}
	return result
}

func TestCliFilterText(t *testing.T) {
	analyzer := new(mockAnalyzer)
	analyzer.On("AnalyzeFile", mock.Anything, []byte("raw")).Return(cliResult(), nil)

	var out bytes.Buffer
	f := NewCliFilter(analyzer, zap.NewNop(), &out, true, false)
	result, err := f.ProcessMessage(context.Background(), []byte("raw"))
	require.NoError(t, err)
	assert.Equal(t, core.VerdictPhishing, result.Verdict)

	text := out.String()
	assert.Contains(t, text, "From: a@evil.tk\n")
	assert.Contains(t, text, "Subject: (unknown)\n")
	assert.Contains(t, text, "Verdict: phishing\n")
	assert.Contains(t, text, "Confidence: 0.7637\n")
	assert.Contains(t, text, "- Links to suspicious domains: a.tk\n")
	assert.Contains(t, text, "suspicious_keywords")
}

func TestCliFilterJSON(t *testing.T) {
	analyzer := new(mockAnalyzer)
	req := core.TextRequest{Body: "Click here"}
	analyzer.On("AnalyzeText", mock.Anything, req).Return(cliResult(), nil)

	var out bytes.Buffer
	f := NewCliFilter(analyzer, zap.NewNop(), &out, false, true)
	_, err := f.ProcessText(context.Background(), req)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(out.Bytes(), &decoded))
	assert.Equal(t, "phishing", decoded["verdict"])
	assert.Equal(t, "0.1.0-ml", decoded["model_version"])
	assert.NotContains(t, decoded, "ProcessingID")
}

func TestCliFilterError(t *testing.T) {
	analyzer := new(mockAnalyzer)
	analyzer.On("AnalyzeText", mock.Anything, mock.Anything).Return(nil, core.ErrInvalidInput)

	var out bytes.Buffer
	f := NewCliFilter(analyzer, zap.NewNop(), &out, false, false)
	_, err := f.ProcessText(context.Background(), core.TextRequest{})
	assert.True(t, errors.Is(err, core.ErrInvalidInput))
	assert.Empty(t, out.String())
}
