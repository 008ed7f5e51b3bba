package ports

import (
	"context"

	"github.com/mikey/phish-detector/internal/core"
)

// EmailFilter defines the interface for inbound mail adapters
type EmailFilter interface {
	// ProcessMessage analyzes a raw RFC 5322 message
	ProcessMessage(ctx context.Context, raw []byte) (*core.AnalysisResult, error)

	// Start starts the email filter service
	Start() error

	// Stop stops the email filter service
	Stop() error
}
