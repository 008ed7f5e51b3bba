package factory

import (
	"io"

	"go.uber.org/zap"

	"github.com/mikey/phish-detector/internal/adapters/filter"
	"github.com/mikey/phish-detector/internal/adapters/httpapi"
	"github.com/mikey/phish-detector/internal/config"
	"github.com/mikey/phish-detector/internal/core"
)

// FilterFactory creates the mail-facing frontends of the analysis service
type FilterFactory struct {
	cfg     *config.Config
	logger  *zap.Logger
	service *core.AnalysisService
}

// NewFilterFactory creates a new filter factory
func NewFilterFactory(cfg *config.Config, logger *zap.Logger, service *core.AnalysisService) *FilterFactory {
	return &FilterFactory{
		cfg:     cfg,
		logger:  logger,
		service: service,
	}
}

// CreatePostfixFilter creates the SMTP content filter from server.smtp.*
func (f *FilterFactory) CreatePostfixFilter() (*filter.PostfixFilter, error) {
	smtpCfg, err := f.cfg.GetSMTP()
	if err != nil {
		return nil, err
	}

	return filter.NewPostfixFilter(f.service, f.logger, filter.PostfixOptions{
		ListenAddr:      smtpCfg.ListenAddress,
		Domain:          smtpCfg.Domain,
		PostfixAddr:     smtpCfg.PostfixAddress,
		PostfixPort:     smtpCfg.PostfixPort,
		PostfixEnabled:  smtpCfg.PostfixEnabled,
		BlockPhishing:   smtpCfg.BlockPhishing,
		ModifySubject:   smtpCfg.ModifySubject,
		SubjectPrefix:   smtpCfg.SubjectPrefix,
		MaxMessageBytes: smtpCfg.MaxMessageBytes,
		AnalysisTimeout: smtpCfg.AnalysisTimeout,
		Headers: filter.HeaderNames{
			Verdict:    smtpCfg.Headers.Verdict,
			Confidence: smtpCfg.Headers.Confidence,
			Reasons:    smtpCfg.Headers.Reasons,
			Error:      smtpCfg.Headers.Error,
		},
	}), nil
}

// CreateCliFilter creates the report-printing filter used by phish-check
func (f *FilterFactory) CreateCliFilter(out io.Writer, verbose, jsonOutput bool) *filter.CliFilter {
	return filter.NewCliFilter(f.service, f.logger, out, verbose, jsonOutput)
}

// CreateHTTPServer creates the HTTP API server from server.http.*
func (f *FilterFactory) CreateHTTPServer() *httpapi.Server {
	httpCfg := f.cfg.GetHTTP()

	router := httpapi.NewRouter(f.service, f.logger, httpapi.Options{
		AllowedOrigins: httpCfg.AllowedOrigins,
		MaxUploadBytes: httpCfg.MaxUploadBytes,
		StaticDir:      httpCfg.StaticDir,
	})
	return httpapi.NewServer(httpCfg.Address, router, f.logger)
}
