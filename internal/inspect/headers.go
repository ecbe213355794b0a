package inspect

import (
	"bytes"
	"context"
	"strings"
	"unicode"

	"github.com/emersion/go-msgauth/dkim"
	"go.uber.org/zap"

	"github.com/mikey/mail-spam-analyzer/internal/core"
	"github.com/mikey/mail-spam-analyzer/internal/date"
	"github.com/mikey/mail-spam-analyzer/internal/domain"
	"github.com/mikey/mail-spam-analyzer/internal/wordlist"
)

// HeaderInspector extracts authentication, subject and date signals from headers
type HeaderInspector struct {
	words      *wordlist.Wordlist
	resolver   domain.Resolver
	verifyDKIM bool
	logger     *zap.Logger
}

// NewHeaderInspector creates a new header inspector
func NewHeaderInspector(words *wordlist.Wordlist, resolver domain.Resolver, verifyDKIM bool, logger *zap.Logger) *HeaderInspector {
	return &HeaderInspector{
		words:      words,
		resolver:   resolver,
		verifyDKIM: verifyDKIM,
		logger:     logger,
	}
}

// Inspect analyzes the headers of email. server is the domain of the
// delivering server, see ServerDomain.
func (i *HeaderInspector) Inspect(ctx context.Context, email *core.Email, server domain.Domain) core.HeaderAnalysis {
	from, _ := email.Header("From")
	if from == "" {
		from = email.From
	}
	fromDomain := domain.Extract(ctx, i.resolver, from)

	subject := email.Subject
	if subject == "" {
		subject, _ = email.Header("Subject")
	}
	suspect, upper := AnalyzeSubject(subject, i.words.Words())

	result := core.HeaderAnalysis{
		HasSPF:             HasSPF(email),
		HasDKIM:            HasDKIM(email),
		HasDMARC:           HasDMARC(email),
		DomainMatches:      fromDomain.Equal(server),
		AuthWarn:           HasAuthWarning(email),
		HasSuspectSubject:  suspect,
		SubjectIsUppercase: upper,
		SendDate:           SendDate(email),
		FromDomain:         fromDomain.Name(),
		ServerDomain:       server.Name(),
	}

	if received := email.HeaderValues("Received"); len(received) > 0 {
		result.ReceivedDate = ReceivedDate(received[0])
	}

	if i.verifyDKIM {
		result.DKIMVerified = i.verify(ctx, email)
	}

	return result
}

// verify checks the DKIM signatures cryptographically; true if any verifies
func (i *HeaderInspector) verify(ctx context.Context, email *core.Email) bool {
	if len(email.Raw) == 0 || len(email.HeaderValues("DKIM-Signature")) == 0 || i.resolver == nil {
		return false
	}

	verifications, err := dkim.VerifyWithOptions(bytes.NewReader(email.Raw), &dkim.VerifyOptions{
		LookupTXT: func(name string) ([]string, error) {
			return i.resolver.LookupTXT(ctx, name)
		},
	})
	if err != nil {
		i.logger.Debug("DKIM verification failed", zap.String("message_id", email.ID), zap.Error(err))
		return false
	}

	for _, v := range verifications {
		if v.Err == nil {
			return true
		}
		i.logger.Debug("DKIM signature rejected",
			zap.String("message_id", email.ID),
			zap.String("domain", v.Domain),
			zap.Error(v.Err))
	}
	return false
}

// ServerDomain returns the domain named in the "from" clause of the first
// Received header, or the sentinel when there is none.
func ServerDomain(ctx context.Context, r domain.Resolver, email *core.Email) domain.Domain {
	received := email.HeaderValues("Received")
	if len(received) == 0 {
		return domain.Unknown()
	}
	clause := ReceivedFromClause(received[0])
	if clause == "" {
		return domain.Unknown()
	}
	return domain.Extract(ctx, r, clause)
}

// ReceivedFromClause returns the text between "from" and "by" of a Received header
func ReceivedFromClause(received string) string {
	m := receivedFromPattern.FindStringSubmatch(received)
	if m == nil {
		return ""
	}
	return strings.TrimSpace(m[1])
}

// ReceivedDate parses the timestamp after the last ';' of a Received header
func ReceivedDate(received string) *date.Date {
	i := strings.LastIndex(received, ";")
	if i < 0 {
		return nil
	}
	d, err := date.Parse(strings.TrimSpace(received[i+1:]))
	if err != nil {
		return nil
	}
	return d
}

// SendDate parses the Date header, nil when absent
func SendDate(email *core.Email) *date.Date {
	value, ok := email.Header("Date")
	if !ok {
		return nil
	}
	d, err := date.Parse(value)
	if err != nil {
		return nil
	}
	return d
}

// HasSPF reports an SPF pass in Received-SPF or, failing that, Authentication-Results
func HasSPF(email *core.Email) bool {
	spf, ok := email.Header("Received-SPF")
	if !ok {
		spf, ok = email.Header("Authentication-Results")
	}
	return ok && strings.Contains(strings.ToLower(spf), "pass")
}

// HasDKIM reports a DKIM signature or a dkim=pass authentication result
func HasDKIM(email *core.Email) bool {
	if _, ok := email.Header("DKIM-Signature"); ok {
		return true
	}
	results, ok := email.Header("Authentication-Results")
	return ok && strings.Contains(strings.ToLower(results), "dkim=pass")
}

// HasDMARC reports a dmarc=pass authentication result
func HasDMARC(email *core.Email) bool {
	results, ok := email.Header("Authentication-Results")
	return ok && strings.Contains(strings.ToLower(results), "dmarc=pass")
}

// HasAuthWarning reports an X-Authentication-Warning header
func HasAuthWarning(email *core.Email) bool {
	_, ok := email.Header("X-Authentication-Warning")
	return ok
}

// AnalyzeSubject flags obfuscated or forbidden words in the subject, and
// separately whether it is written in capitals.
func AnalyzeSubject(subject string, words []string) (suspect, upper bool) {
	if subject == "" {
		return false, false
	}
	upper = IsUpper(subject)

	if gappyPattern.MatchString(subject) {
		return true, upper
	}
	lower := strings.ToLower(subject)
	for _, word := range words {
		if strings.Contains(lower, word) {
			return true, upper
		}
	}
	return false, upper
}

// IsUpper reports whether s has at least one cased letter and no lower-case ones
func IsUpper(s string) bool {
	cased := false
	for _, r := range s {
		if unicode.IsLower(r) || unicode.IsTitle(r) {
			return false
		}
		if unicode.IsUpper(r) {
			cased = true
		}
	}
	return cased
}
