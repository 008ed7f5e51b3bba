package filter

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"time"

	"github.com/emersion/go-smtp"
	"go.uber.org/zap"

	"github.com/mikey/phish-detector/internal/core"
)

// MessageAnalyzer analyzes raw RFC 5322 messages
type MessageAnalyzer interface {
	AnalyzeFile(ctx context.Context, raw []byte) (*core.AnalysisResult, error)
}

// PostfixOptions configures the Postfix content filter
type PostfixOptions struct {
	ListenAddr      string
	Domain          string
	PostfixAddr     string
	PostfixPort     int
	PostfixEnabled  bool
	BlockPhishing   bool
	ModifySubject   bool
	SubjectPrefix   string
	Headers         HeaderNames
	MaxMessageBytes int64
	AnalysisTimeout time.Duration
}

// PostfixFilter implements a Postfix content filter
type PostfixFilter struct {
	service MessageAnalyzer
	logger  *zap.Logger
	opts    PostfixOptions
	server  *smtp.Server

	// forward re-injects a message, sendToPostfix unless replaced
	forward func(sender string, recipients []string, data []byte) error
}

// NewPostfixFilter creates a new Postfix content filter
func NewPostfixFilter(service MessageAnalyzer, logger *zap.Logger, opts PostfixOptions) *PostfixFilter {
	// If subject prefix is not set but modify subject is enabled, use default prefix
	if opts.SubjectPrefix == "" && opts.ModifySubject {
		opts.SubjectPrefix = "[PHISHING] "
	}
	if opts.Headers == (HeaderNames{}) {
		opts.Headers = DefaultHeaderNames()
	}
	if opts.Domain == "" {
		opts.Domain = "localhost"
	}
	if opts.MaxMessageBytes <= 0 {
		opts.MaxMessageBytes = 30 * 1024 * 1024
	}
	if opts.AnalysisTimeout <= 0 {
		opts.AnalysisTimeout = 10 * time.Second
	}

	f := &PostfixFilter{
		service: service,
		logger:  logger,
		opts:    opts,
	}
	f.forward = f.sendToPostfix
	return f
}

// Start starts the Postfix filter service
func (f *PostfixFilter) Start() error {
	f.server = smtp.NewServer(&smtpBackend{filter: f})

	f.server.Addr = f.opts.ListenAddr
	f.server.Domain = f.opts.Domain
	f.server.ReadTimeout = 30 * time.Second
	f.server.WriteTimeout = 30 * time.Second
	f.server.MaxMessageBytes = f.opts.MaxMessageBytes
	f.server.MaxRecipients = 50

	f.logger.Info("Postfix filter starting", zap.String("address", f.opts.ListenAddr))

	go func() {
		if err := f.server.ListenAndServe(); err != nil && !errors.Is(err, smtp.ErrServerClosed) {
			f.logger.Error("SMTP server error", zap.Error(err))
		}
	}()

	return nil
}

// Stop stops the Postfix filter service
func (f *PostfixFilter) Stop() error {
	if f.server != nil {
		return f.server.Close()
	}
	return nil
}

// ProcessMessage analyzes a raw message without re-injecting it
func (f *PostfixFilter) ProcessMessage(ctx context.Context, raw []byte) (*core.AnalysisResult, error) {
	return f.service.AnalyzeFile(ctx, raw)
}

// filterMessage analyzes a message and re-injects the annotated copy;
// a phishing verdict is rejected instead when blocking is enabled
func (f *PostfixFilter) filterMessage(sender string, recipients []string, raw []byte) error {
	ctx, cancel := context.WithTimeout(context.Background(), f.opts.AnalysisTimeout)
	defer cancel()

	result, analysisErr := f.service.AnalyzeFile(ctx, raw)
	if analysisErr != nil {
		// Accept the message but flag the failure
		f.logger.Error("Failed to analyze email",
			zap.Error(analysisErr),
			zap.String("sender", sender))
	}

	if analysisErr == nil && result.Verdict == core.VerdictPhishing && f.opts.BlockPhishing {
		f.logger.Info("Rejecting phishing email",
			zap.String("sender", sender),
			zap.Float64("confidence", result.Confidence),
			zap.Strings("highlights", result.Highlights))
		return &smtp.SMTPError{
			Code:         550,
			EnhancedCode: smtp.EnhancedCode{5, 7, 1},
			Message:      fmt.Sprintf("Message rejected as phishing (confidence: %.2f)", result.Confidence),
		}
	}

	a := annotation{
		headers:     f.opts.Headers,
		result:      result,
		analysisErr: analysisErr,
	}
	if analysisErr == nil && result.Verdict == core.VerdictPhishing && f.opts.ModifySubject {
		a.subjectPrefix = f.opts.SubjectPrefix
	}
	annotated := annotateMessage(raw, a)

	if !f.opts.PostfixEnabled {
		f.logger.Warn("Postfix forwarding disabled, this is likely a misconfiguration")
		return nil
	}
	if err := f.forward(sender, recipients, annotated); err != nil {
		f.logger.Error("Failed to send email back to Postfix",
			zap.Error(err),
			zap.String("sender", sender))
		return err
	}

	if result != nil {
		f.logger.Info("Processed email",
			zap.String("sender", sender),
			zap.String("verdict", string(result.Verdict)),
			zap.Float64("confidence", result.Confidence))
	}
	return nil
}

// sendToPostfix sends the processed email back to Postfix on the configured port using go-smtp
func (f *PostfixFilter) sendToPostfix(sender string, recipients []string, emailData []byte) error {
	postfixAddr := net.JoinHostPort(f.opts.PostfixAddr, fmt.Sprint(f.opts.PostfixPort))

	hostname, err := os.Hostname()
	if err != nil {
		hostname = "localhost"
	}

	conn, err := net.DialTimeout("tcp", postfixAddr, 10*time.Second)
	if err != nil {
		return fmt.Errorf("failed to connect to Postfix: %w", err)
	}
	if err := conn.SetDeadline(time.Now().Add(30 * time.Second)); err != nil {
		conn.Close()
		return fmt.Errorf("failed to set connection deadline: %w", err)
	}

	c := smtp.NewClient(conn)
	defer c.Close()

	if err := c.Hello(hostname); err != nil {
		return fmt.Errorf("EHLO failed: %w", err)
	}
	if err := c.Mail(sender, nil); err != nil {
		return fmt.Errorf("MAIL FROM failed: %w", err)
	}

	// Continue with other recipients even if one fails
	recipientOK := false
	for _, recipient := range recipients {
		if err := c.Rcpt(recipient, nil); err != nil {
			f.logger.Warn("RCPT TO failed for recipient",
				zap.String("recipient", recipient),
				zap.Error(err))
		} else {
			recipientOK = true
		}
	}
	if !recipientOK {
		return fmt.Errorf("all recipients were rejected")
	}

	wc, err := c.Data()
	if err != nil {
		return fmt.Errorf("DATA command failed: %w", err)
	}
	if _, err := wc.Write(emailData); err != nil {
		wc.Close()
		return fmt.Errorf("failed to send email data: %w", err)
	}
	if err := wc.Close(); err != nil {
		return fmt.Errorf("failed to close data writer: %w", err)
	}

	// The message is delivered at this point
	if err := c.Quit(); err != nil {
		f.logger.Warn("QUIT command failed", zap.Error(err))
	}
	return nil
}

// smtpBackend implements the go-smtp Backend interface
type smtpBackend struct {
	filter *PostfixFilter
}

// NewSession creates a new SMTP session
func (b *smtpBackend) NewSession(_ *smtp.Conn) (smtp.Session, error) {
	return &smtpSession{filter: b.filter}, nil
}

// smtpSession implements the go-smtp Session interface
type smtpSession struct {
	filter     *PostfixFilter
	sender     string
	recipients []string
}

func (s *smtpSession) Reset() {
	s.sender = ""
	s.recipients = nil
}

func (s *smtpSession) Mail(from string, _ *smtp.MailOptions) error {
	s.sender = from
	return nil
}

func (s *smtpSession) Rcpt(to string, _ *smtp.RcptOptions) error {
	s.recipients = append(s.recipients, to)
	return nil
}

func (s *smtpSession) Data(r io.Reader) error {
	raw, err := io.ReadAll(r)
	if err != nil {
		s.filter.logger.Error("Failed to read message data", zap.Error(err))
		return err
	}
	return s.filter.filterMessage(s.sender, s.recipients, raw)
}

func (s *smtpSession) Logout() error {
	return nil
}
