package eml

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"mime/quotedprintable"
	"net/mail"
	"net/textproto"
	"strings"

	"go.uber.org/zap"

	"github.com/mikey/phish-detector/internal/core"
)

const (
	maxNestingDepth = 8
	maxPartSize     = 10 << 20
)

// Parser turns RFC 5322 messages into core.Email values
type Parser struct {
	logger  *zap.Logger
	address *mail.AddressParser
}

// NewParser creates a new message parser
func NewParser(logger *zap.Logger) *Parser {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Parser{
		logger:  logger,
		address: &mail.AddressParser{WordDecoder: wordDecoder},
	}
}

// parts collects the first plain and html bodies found in a MIME tree
type parts struct {
	plain string
	html  string
	first string
}

// ParseMessage parses a raw message; the plain text part is preferred as body, the html part otherwise
func (p *Parser) ParseMessage(raw []byte) (*core.Email, error) {
	msg, err := mail.ReadMessage(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("%w: failed to parse message: %v", core.ErrInvalidInput, err)
	}

	email := p.fromHeader(msg.Header)

	var found parts
	p.walk(textproto.MIMEHeader(msg.Header), msg.Body, 0, &found)

	email.HTMLBody = found.html
	switch {
	case strings.TrimSpace(found.plain) != "":
		email.Body = found.plain
	case strings.TrimSpace(found.html) != "":
		email.Body = found.html
	default:
		email.Body = found.first
	}

	if strings.TrimSpace(email.Body) == "" {
		return nil, fmt.Errorf("%w: message has no usable body", core.ErrInvalidInput)
	}

	p.logger.Debug("Parsed message",
		zap.String("from", email.From),
		zap.Int("body_size", len(email.Body)),
		zap.Bool("has_html", email.HTMLBody != ""))

	return email, nil
}

// ParseHeaderBlock parses a raw header block such as the one pasted into the text entry point
func (p *Parser) ParseHeaderBlock(block string) (*core.Email, error) {
	block = strings.TrimSpace(block)
	if block == "" {
		return nil, fmt.Errorf("%w: header block is empty", core.ErrInvalidInput)
	}

	msg, err := mail.ReadMessage(strings.NewReader(block + "\r\n\r\n"))
	if err != nil {
		return nil, fmt.Errorf("%w: failed to parse headers: %v", core.ErrInvalidInput, err)
	}

	return p.fromHeader(msg.Header), nil
}

func (p *Parser) fromHeader(header mail.Header) *core.Email {
	email := &core.Email{
		From:    p.parseAddress(header.Get("From")),
		ReplyTo: p.parseAddress(header.Get("Reply-To")),
		Subject: strings.TrimSpace(decodeHeader(header.Get("Subject"))),
		To:      make([]string, 0),
	}

	for _, value := range header["To"] {
		email.To = append(email.To, p.parseAddressList(value)...)
	}

	return email
}

// parseAddress returns the bare address, or the decoded header when it is not a valid address
func (p *Parser) parseAddress(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return ""
	}
	addr, err := p.address.Parse(value)
	if err != nil {
		p.logger.Debug("Unparseable address", zap.String("value", value), zap.Error(err))
		return strings.TrimSpace(decodeHeader(value))
	}
	return addr.Address
}

func (p *Parser) parseAddressList(value string) []string {
	list, err := p.address.ParseList(value)
	if err == nil {
		out := make([]string, 0, len(list))
		for _, addr := range list {
			out = append(out, addr.Address)
		}
		return out
	}

	var out []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(decodeHeader(item)); item != "" {
			out = append(out, item)
		}
	}
	return out
}

// walk descends a MIME tree collecting text bodies; attachments are skipped
func (p *Parser) walk(header textproto.MIMEHeader, body io.Reader, depth int, found *parts) {
	mediaType, params, err := mime.ParseMediaType(header.Get("Content-Type"))
	if err != nil || mediaType == "" {
		mediaType, params = "text/plain", map[string]string{}
	}

	if strings.HasPrefix(mediaType, "multipart/") {
		boundary := params["boundary"]
		if boundary == "" || depth >= maxNestingDepth {
			p.logger.Debug("Skipping multipart section",
				zap.String("media_type", mediaType),
				zap.Int("depth", depth))
			return
		}

		mr := multipart.NewReader(body, boundary)
		for {
			part, err := mr.NextPart()
			if err == io.EOF {
				return
			}
			if err != nil {
				p.logger.Debug("Stopped reading multipart body", zap.Error(err))
				return
			}
			p.walk(part.Header, part, depth+1, found)
		}
	}

	if isAttachment(header) || (mediaType != "text/plain" && mediaType != "text/html") {
		return
	}

	data, err := io.ReadAll(io.LimitReader(transferDecoder(header.Get("Content-Transfer-Encoding"), body), maxPartSize))
	if err != nil {
		p.logger.Debug("Failed to decode part",
			zap.String("media_type", mediaType),
			zap.Error(err))
		if len(data) == 0 {
			return
		}
	}
	text := decodeCharset(data, params["charset"])

	if found.first == "" {
		found.first = text
	}
	switch {
	case mediaType == "text/plain" && found.plain == "":
		found.plain = text
	case mediaType == "text/html" && found.html == "":
		found.html = text
	}
}

func isAttachment(header textproto.MIMEHeader) bool {
	disposition, _, err := mime.ParseMediaType(header.Get("Content-Disposition"))
	return err == nil && disposition == "attachment"
}

// transferDecoder undoes a Content-Transfer-Encoding
func transferDecoder(encoding string, body io.Reader) io.Reader {
	switch strings.ToLower(strings.TrimSpace(encoding)) {
	case "base64":
		return base64.NewDecoder(base64.StdEncoding, body)
	case "quoted-printable":
		return quotedprintable.NewReader(body)
	}
	return body
}
