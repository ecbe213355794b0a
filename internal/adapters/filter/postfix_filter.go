package filter

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net"
	"os"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/emersion/go-message/textproto"
	"github.com/emersion/go-smtp"
	"go.uber.org/zap"

	"github.com/mikey/mail-spam-analyzer/internal/config"
	"github.com/mikey/mail-spam-analyzer/internal/core"
	"github.com/mikey/mail-spam-analyzer/internal/mailfile"
)

const (
	defaultSubjectPrefix = "[**SPAM**] "
	analysisTimeout      = 30 * time.Second
	analysisErrorHeader  = "X-Spam-Analysis-Error"
)

// PostfixFilter implements a Postfix content filter. Mail arrives over SMTP,
// is tagged with the verdict and re-injected into Postfix.
type PostfixFilter struct {
	processor Processor
	logger    *zap.Logger
	cfg       config.ServerConfig
	server    *smtp.Server
}

// NewPostfixFilter creates a new Postfix content filter
func NewPostfixFilter(processor Processor, cfg config.ServerConfig, logger *zap.Logger) *PostfixFilter {
	if cfg.SubjectPrefix == "" && cfg.ModifySubject {
		cfg.SubjectPrefix = defaultSubjectPrefix
	}
	return &PostfixFilter{
		processor: processor,
		logger:    logger,
		cfg:       cfg,
	}
}

func (f *PostfixFilter) newServer() *smtp.Server {
	s := smtp.NewServer(&smtpBackend{filter: f})
	s.Addr = f.cfg.ListenAddress
	s.Domain = "localhost"
	s.ReadTimeout = 30 * time.Second
	s.WriteTimeout = 30 * time.Second
	s.MaxMessageBytes = 30 * 1024 * 1024
	s.MaxRecipients = 50
	return s
}

// Start starts the Postfix filter service
func (f *PostfixFilter) Start() error {
	f.server = f.newServer()

	f.logger.Info("Postfix filter starting", zap.String("address", f.cfg.ListenAddress))

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

// ProcessEmail analyzes email without touching the SMTP flow
func (f *PostfixFilter) ProcessEmail(ctx context.Context, email *core.Email) (*core.Verdict, error) {
	r := f.processor.Process(ctx, email)
	return r.Verdict, r.Err
}

// filterMessage decides raw and returns the message to re-inject. A non-nil
// *smtp.SMTPError means the message is rejected.
func (f *PostfixFilter) filterMessage(ctx context.Context, sender string, recipients []string, raw []byte) ([]byte, error) {
	email, err := mailfile.Parse(raw)
	if err != nil {
		f.logger.Error("Failed to parse email message", zap.Error(err), zap.String("sender", sender))
		return nil, &smtp.SMTPError{
			Code:         554,
			EnhancedCode: smtp.EnhancedCode{5, 6, 0},
			Message:      "Malformed message",
		}
	}
	if email.From == "" {
		email.From = sender
	}
	email.To = append(email.To[:0:0], recipients...)

	r := f.processor.Process(ctx, email)
	verdict := r.Verdict
	if r.Err != nil {
		f.logger.Error("Failed to analyze email",
			zap.Error(r.Err),
			zap.String("sender", sender))

		// Deliver untouched verdict-wise but leave a trace of the failure
		verdict = &core.Verdict{
			Label:       core.LabelHam,
			Explanation: fmt.Sprintf("Error during analysis: %v", r.Err),
			Strategy:    "error",
			AnalyzedAt:  time.Now(),
		}
	}

	if isSpam(verdict) && f.cfg.BlockSpam && r.Err == nil {
		f.logger.Info("Rejecting spam email",
			zap.String("from", sender),
			zap.Float64("score", verdict.Score),
			zap.String("reason", verdict.Explanation),
			zap.String("strategy", verdict.Strategy))
		return nil, &smtp.SMTPError{
			Code:         550,
			EnhancedCode: smtp.EnhancedCode{5, 7, 1},
			Message:      fmt.Sprintf("Rejected as spam (score: %.2f)", verdict.Score),
		}
	}

	var subject string
	if isSpam(verdict) && f.cfg.ModifySubject && !strings.HasPrefix(email.Subject, f.cfg.SubjectPrefix) {
		subject = f.cfg.SubjectPrefix + email.Subject
	}

	tagged, err := f.tagMessage(raw, verdict, r.Err, subject)
	if err != nil {
		return nil, err
	}

	f.logger.Info("Processed email",
		zap.String("from", sender),
		zap.String("label", string(verdict.Label)),
		zap.Float64("score", verdict.Score),
		zap.String("strategy", verdict.Strategy))

	return tagged, nil
}

// tagMessage adds the verdict headers to raw, replacing the subject when
// subject is not empty. The body is copied unchanged.
func (f *PostfixFilter) tagMessage(raw []byte, verdict *core.Verdict, analysisErr error, subject string) ([]byte, error) {
	br := bufio.NewReader(bytes.NewReader(raw))
	h, err := textproto.ReadHeader(br)
	if err != nil {
		return nil, fmt.Errorf("failed to read message header: %w", err)
	}

	h.Set(f.cfg.Headers.Spam, fmt.Sprintf("%t", isSpam(verdict)))
	h.Set(f.cfg.Headers.Score, fmt.Sprintf("%.4f", verdict.Score))
	h.Set(f.cfg.Headers.Verdict, fmt.Sprintf("%s (%s)", verdict.Label, verdict.Strategy))
	h.Set(f.cfg.Headers.Reason, headerSafe(verdict.Explanation))
	if analysisErr != nil {
		h.Set(analysisErrorHeader, headerSafe(analysisErr.Error()))
	}
	if subject != "" {
		h.Set("Subject", encodeHeader(subject))
	}

	var out bytes.Buffer
	if err := textproto.WriteHeader(&out, h); err != nil {
		return nil, fmt.Errorf("failed to write message header: %w", err)
	}
	if _, err := io.Copy(&out, br); err != nil {
		return nil, fmt.Errorf("failed to copy message body: %w", err)
	}
	return out.Bytes(), nil
}

// sendToPostfix sends the processed email back to Postfix on the configured port
func (f *PostfixFilter) sendToPostfix(sender string, recipients []string, emailData []byte) error {
	postfixAddr := net.JoinHostPort(f.cfg.Postfix.Address, fmt.Sprintf("%d", f.cfg.Postfix.Port))

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

	recipientOK := false
	for _, recipient := range recipients {
		if err := c.Rcpt(recipient, nil); err != nil {
			f.logger.Warn("RCPT TO failed for recipient",
				zap.String("recipient", recipient),
				zap.Error(err))
			continue
		}
		recipientOK = true
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

	// The message is already accepted at this point
	if err := c.Quit(); err != nil {
		f.logger.Warn("QUIT command failed", zap.Error(err))
	}

	return nil
}

func isSpam(v *core.Verdict) bool {
	return v.Label == core.LabelSpam || (v.Label == "" && v.IsSpam)
}

// headerSafe folds a free text value onto one header line
func headerSafe(s string) string {
	return encodeHeader(strings.Join(strings.Fields(s), " "))
}

func encodeHeader(s string) string {
	for i := 0; i < len(s); i++ {
		if s[i] >= utf8.RuneSelf {
			return mime.QEncoding.Encode("utf-8", s)
		}
	}
	return s
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

// Reset resets the session state
func (s *smtpSession) Reset() {
	s.sender = ""
	s.recipients = nil
}

// Mail sets the sender address
func (s *smtpSession) Mail(from string, _ *smtp.MailOptions) error {
	s.sender = from
	return nil
}

// Rcpt adds a recipient
func (s *smtpSession) Rcpt(to string, _ *smtp.RcptOptions) error {
	s.recipients = append(s.recipients, to)
	return nil
}

// Data handles the email data
func (s *smtpSession) Data(r io.Reader) error {
	raw, err := io.ReadAll(r)
	if err != nil {
		s.filter.logger.Error("Failed to read message data", zap.Error(err))
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), analysisTimeout)
	defer cancel()

	tagged, err := s.filter.filterMessage(ctx, s.sender, s.recipients, raw)
	if err != nil {
		return err
	}

	if !s.filter.cfg.Postfix.Enabled {
		s.filter.logger.Warn("Postfix forwarding disabled, this is likely a misconfiguration")
		return nil
	}

	if err := s.filter.sendToPostfix(s.sender, s.recipients, tagged); err != nil {
		s.filter.logger.Error("Failed to send email back to Postfix",
			zap.Error(err),
			zap.String("sender", s.sender))
		return err
	}
	return nil
}

// Logout handles SMTP logout
func (s *smtpSession) Logout() error {
	return nil
}
