package analyzer

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/mikey/mail-spam-analyzer/internal/core"
	"github.com/mikey/mail-spam-analyzer/internal/domain"
	"github.com/mikey/mail-spam-analyzer/internal/inspect"
	"github.com/mikey/mail-spam-analyzer/internal/metrics"
	"github.com/mikey/mail-spam-analyzer/internal/whitelist"
)

// DefaultConcurrency is the number of messages analyzed at once in a batch
const DefaultConcurrency = 8

// StrategyWhitelist and StrategyCache mark verdicts that did not come from a decider
const (
	StrategyWhitelist = "whitelist"
	StrategyCache     = "cache"
)

// Options tune the service
type Options struct {
	Concurrency  int
	CacheEnabled bool
	CacheTTL     time.Duration
}

// Result is the outcome for one message. Err is set when the message could
// not be analyzed or decided; the other messages of a batch are unaffected.
type Result struct {
	Email    *core.Email
	Analysis *core.MailAnalysis
	Verdict  *core.Verdict
	Err      error
}

// Service is the core service for spam analysis. All of its collaborators
// are read-only after construction so it is safe for concurrent use.
type Service struct {
	resolver  domain.Resolver
	headers   *inspect.HeaderInspector
	body      *inspect.BodyInspector
	decider   core.Decider
	cache     core.CacheRepository
	whitelist *whitelist.Checker
	metrics   *metrics.Recorder
	logger    *zap.Logger
	opts      Options
}

// NewService creates a new analysis service. cache, whitelist and recorder may be nil.
func NewService(
	resolver domain.Resolver,
	headers *inspect.HeaderInspector,
	body *inspect.BodyInspector,
	decider core.Decider,
	cache core.CacheRepository,
	whitelist *whitelist.Checker,
	recorder *metrics.Recorder,
	logger *zap.Logger,
	opts Options,
) *Service {
	if opts.Concurrency <= 0 {
		opts.Concurrency = DefaultConcurrency
	}
	if cache == nil {
		opts.CacheEnabled = false
	}
	return &Service{
		resolver:  resolver,
		headers:   headers,
		body:      body,
		decider:   decider,
		cache:     cache,
		whitelist: whitelist,
		metrics:   recorder,
		logger:    logger,
		opts:      opts,
	}
}

// Strategy returns the name of the configured decider
func (s *Service) Strategy() string {
	return s.decider.Name()
}

// Analyze extracts the feature record of email. Header and body inspection
// run concurrently; DNS failures degrade to the unknown domain and only a
// cancelled context is reported as an error.
func (s *Service) Analyze(ctx context.Context, email *core.Email) (*core.MailAnalysis, error) {
	start := time.Now()

	// Both inspectors judge against the server that delivered the message
	server := inspect.ServerDomain(ctx, s.resolver, email)

	var (
		headers core.HeaderAnalysis
		body    core.BodyAnalysis
		g       errgroup.Group
	)
	g.Go(func() error {
		headers = s.headers.Inspect(ctx, email, server)
		return nil
	})
	g.Go(func() error {
		body = s.body.Inspect(email.Body, server)
		return nil
	})
	attachments := inspect.InspectAttachments(email.Attachments)
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("failed to analyze %s: %w", describe(email), err)
	}

	analysis := &core.MailAnalysis{
		FilePath:    email.Source,
		MessageID:   messageID(email),
		From:        sender(email),
		Subject:     email.Subject,
		Headers:     headers,
		Body:        body,
		Attachments: attachments,
	}

	s.metrics.ObserveAnalysis(time.Since(start))
	s.logger.Debug("Email analyzed",
		zap.String("message_id", analysis.MessageID),
		zap.String("server_domain", server.Name()),
		zap.Duration("duration", time.Since(start)))

	return analysis, nil
}

// Decide reaches the verdict for an analyzed message: authenticated whitelisted
// senders are trusted outright, cached verdicts are reused, anything else goes
// to the decider.
func (s *Service) Decide(ctx context.Context, email *core.Email, analysis *core.MailAnalysis) (*core.Verdict, error) {
	if v := s.shortcut(ctx, email, analysis); v != nil {
		return s.finish(v), nil
	}

	v, err := s.decider.Decide(ctx, analysis)
	if err != nil {
		s.metrics.ObserveFailure()
		return nil, fmt.Errorf("failed to decide %s: %w", describe(email), err)
	}

	s.store(ctx, email, v)
	return s.finish(v), nil
}

// Process analyzes and decides a single message
func (s *Service) Process(ctx context.Context, email *core.Email) *Result {
	r := &Result{Email: email}
	r.Analysis, r.Err = s.Analyze(ctx, email)
	if r.Err != nil {
		s.metrics.ObserveFailure()
		return r
	}
	r.Verdict, r.Err = s.Decide(ctx, email, r.Analysis)
	return r
}

// AnalyzeBatch processes emails with at most Options.Concurrency messages in
// flight. Results are returned in input order and a failing message never
// aborts the batch. Deciders that support it get all pending analyses at once.
func (s *Service) AnalyzeBatch(ctx context.Context, emails []*core.Email) []*Result {
	results := make([]*Result, len(emails))
	batch, isBatch := s.decider.(core.BatchDecider)

	var g errgroup.Group
	g.SetLimit(s.opts.Concurrency)
	for i, email := range emails {
		results[i] = &Result{Email: email}
		g.Go(func() error {
			r := results[i]
			if !isBatch {
				*r = *s.Process(ctx, email)
				return nil
			}
			r.Analysis, r.Err = s.Analyze(ctx, email)
			if r.Err != nil {
				s.metrics.ObserveFailure()
			}
			return nil
		})
	}
	_ = g.Wait()

	if isBatch {
		s.decideBatch(ctx, batch, results)
	}

	s.logger.Info("Batch analyzed",
		zap.Int("messages", len(emails)),
		zap.Int("failures", countFailures(results)),
		zap.String("strategy", s.decider.Name()))

	return results
}

func (s *Service) decideBatch(ctx context.Context, batch core.BatchDecider, results []*Result) {
	var (
		pending  []*Result
		analyses []*core.MailAnalysis
	)
	for _, r := range results {
		if r.Err != nil {
			continue
		}
		if v := s.shortcut(ctx, r.Email, r.Analysis); v != nil {
			r.Verdict = s.finish(v)
			continue
		}
		pending = append(pending, r)
		analyses = append(analyses, r.Analysis)
	}
	if len(pending) == 0 {
		return
	}

	verdicts, err := batch.DecideAll(ctx, analyses)
	if err != nil {
		for _, r := range pending {
			s.metrics.ObserveFailure()
			r.Err = fmt.Errorf("failed to decide %s: %w", describe(r.Email), err)
		}
		return
	}
	for i, r := range pending {
		s.store(ctx, r.Email, verdicts[i])
		r.Verdict = s.finish(verdicts[i])
	}
}

// shortcut returns the whitelist or cached verdict, or nil when the decider must run
func (s *Service) shortcut(ctx context.Context, email *core.Email, analysis *core.MailAnalysis) *core.Verdict {
	if s.whitelist != nil && s.whitelist.IsWhitelisted(analysis.From) {
		// From is trivially forged, so the sender must also be authenticated
		if !analysis.Headers.DomainMatches && !analysis.Headers.HasSPF {
			s.logger.Warn("Whitelisted sender failed authentication, not bypassing",
				zap.String("sender", analysis.From),
				zap.String("server_domain", analysis.Headers.ServerDomain))
			return s.cached(ctx, email, analysis)
		}
		s.logger.Info("Skipping spam check for whitelisted domain",
			zap.String("sender", analysis.From),
			zap.String("action", "whitelist_bypass"))

		return &core.Verdict{
			Label:       core.LabelTrust,
			Confidence:  1.0,
			Explanation: "Sender domain is whitelisted",
			Strategy:    StrategyWhitelist,
		}
	}

	return s.cached(ctx, email, analysis)
}

// cached returns the cached verdict for email, or nil
func (s *Service) cached(ctx context.Context, email *core.Email, analysis *core.MailAnalysis) *core.Verdict {
	if !s.opts.CacheEnabled {
		return nil
	}
	entry, err := s.cache.Get(ctx, Fingerprint(email))
	if err != nil {
		return nil
	}
	s.logger.Debug("Cache hit for message", zap.String("message_id", analysis.MessageID))
	return &core.Verdict{
		Label:       entry.Label,
		IsSpam:      entry.IsSpam,
		Score:       entry.Score,
		Confidence:  1.0,
		Explanation: "Result from cache",
		Strategy:    StrategyCache,
	}
}

func (s *Service) store(ctx context.Context, email *core.Email, v *core.Verdict) {
	if !s.opts.CacheEnabled {
		return
	}
	now := time.Now()
	entry := &core.CacheEntry{
		Key:       Fingerprint(email),
		Label:     v.Label,
		IsSpam:    v.IsSpam,
		Score:     v.Score,
		Strategy:  v.Strategy,
		LastSeen:  now,
		ExpiresAt: now.Add(s.opts.CacheTTL),
	}
	if err := s.cache.Set(ctx, entry); err != nil {
		s.logger.Error("Failed to update cache", zap.Error(err))
	}
}

func (s *Service) finish(v *core.Verdict) *core.Verdict {
	if v.AnalyzedAt.IsZero() {
		v.AnalyzedAt = time.Now()
	}
	if v.ProcessingID == "" {
		v.ProcessingID = uuid.NewString()
	}
	s.metrics.ObserveVerdict(string(v.Label), v.Strategy)
	return v
}

// Fingerprint identifies a message for the verdict cache
func Fingerprint(email *core.Email) string {
	h := sha256.New()
	for _, part := range []string{messageID(email), sender(email), email.Subject, email.Body} {
		h.Write([]byte(part))
		h.Write([]byte{0})
	}
	if received, ok := email.Header("Received"); ok {
		h.Write([]byte(received))
	}
	return hex.EncodeToString(h.Sum(nil))
}

func messageID(email *core.Email) string {
	if email.ID != "" {
		return email.ID
	}
	id, _ := email.Header("Message-ID")
	return id
}

func sender(email *core.Email) string {
	if from, ok := email.Header("From"); ok {
		return from
	}
	return email.From
}

func describe(email *core.Email) string {
	switch {
	case email.Source != "":
		return email.Source
	case messageID(email) != "":
		return messageID(email)
	default:
		return "message"
	}
}

func countFailures(results []*Result) int {
	n := 0
	for _, r := range results {
		if r.Err != nil {
			n++
		}
	}
	return n
}
