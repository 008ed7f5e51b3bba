package config

import "time"

// HTTPConfig represents the configuration for the HTTP API
type HTTPConfig struct {
	Address        string
	AllowedOrigins []string
	MaxUploadBytes int64
	StaticDir      string
}

// SMTPHeaders names the headers added by the SMTP filter
type SMTPHeaders struct {
	Verdict    string
	Confidence string
	Reasons    string
	Error      string
}

// SMTPConfig represents the configuration for the Postfix content filter
type SMTPConfig struct {
	Enabled         bool
	ListenAddress   string
	Domain          string
	MaxMessageBytes int64
	AnalysisTimeout time.Duration
	BlockPhishing   bool
	ModifySubject   bool
	SubjectPrefix   string
	Headers         SMTPHeaders
	PostfixEnabled  bool
	PostfixAddress  string
	PostfixPort     int
}

// AnalysisConfig represents the configuration for the heuristic analyzer
type AnalysisConfig struct {
	RulesetPath          string
	TrustedSenderDomains []string
	MaxBodySize          int
}

// CacheConfig represents the configuration for the result cache
type CacheConfig struct {
	Enabled          bool
	Type             string
	TTL              time.Duration
	CleanupFrequency time.Duration
	SQLitePath       string
	MySQLDSN         string
	PostgresDSN      string
}

// GetHTTP returns the HTTP API configuration
func (c *Config) GetHTTP() HTTPConfig {
	return HTTPConfig{
		Address:        c.GetString("server.http.address"),
		AllowedOrigins: c.GetStringSlice("server.http.allowed_origins"),
		MaxUploadBytes: c.GetInt64("server.http.max_upload_bytes"),
		StaticDir:      c.GetString("server.http.static_dir"),
	}
}

// GetSMTP returns the SMTP filter configuration
func (c *Config) GetSMTP() (SMTPConfig, error) {
	timeout, err := c.GetDuration("server.smtp.analysis_timeout")
	if err != nil {
		return SMTPConfig{}, err
	}

	return SMTPConfig{
		Enabled:         c.GetBool("server.smtp.enabled"),
		ListenAddress:   c.GetString("server.smtp.listen_address"),
		Domain:          c.GetString("server.smtp.domain"),
		MaxMessageBytes: c.GetInt64("server.smtp.max_message_bytes"),
		AnalysisTimeout: timeout,
		BlockPhishing:   c.GetBool("server.smtp.block_phishing"),
		ModifySubject:   c.GetBool("server.smtp.modify_subject"),
		SubjectPrefix:   c.GetString("server.smtp.subject_prefix"),
		Headers: SMTPHeaders{
			Verdict:    c.GetString("server.smtp.headers.verdict"),
			Confidence: c.GetString("server.smtp.headers.confidence"),
			Reasons:    c.GetString("server.smtp.headers.reasons"),
			Error:      c.GetString("server.smtp.headers.error"),
		},
		PostfixEnabled: c.GetBool("server.smtp.postfix.enabled"),
		PostfixAddress: c.GetString("server.smtp.postfix.address"),
		PostfixPort:    c.GetInt("server.smtp.postfix.port"),
	}, nil
}

// GetAnalysis returns the analyzer configuration
func (c *Config) GetAnalysis() AnalysisConfig {
	return AnalysisConfig{
		RulesetPath:          c.GetString("analysis.ruleset_path"),
		TrustedSenderDomains: c.GetStringSlice("analysis.trusted_sender_domains"),
		MaxBodySize:          c.GetInt("analysis.max_body_size"),
	}
}

// GetCache returns the cache configuration
func (c *Config) GetCache() (CacheConfig, error) {
	ttl, err := c.GetDuration("cache.ttl")
	if err != nil {
		return CacheConfig{}, err
	}
	cleanup, err := c.GetDuration("cache.cleanup_frequency")
	if err != nil {
		return CacheConfig{}, err
	}

	return CacheConfig{
		Enabled:          c.GetBool("cache.enabled"),
		Type:             c.GetString("cache.type"),
		TTL:              ttl,
		CleanupFrequency: cleanup,
		SQLitePath:       c.GetString("cache.sqlite_path"),
		MySQLDSN:         c.GetString("cache.mysql_dsn"),
		PostgresDSN:      c.GetString("cache.postgres_dsn"),
	}, nil
}
