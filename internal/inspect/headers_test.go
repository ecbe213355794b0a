package inspect

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mikey/mail-spam-analyzer/internal/core"
	"github.com/mikey/mail-spam-analyzer/internal/domain"
	"github.com/mikey/mail-spam-analyzer/internal/wordlist"
)

type stubResolver struct {
	ptr map[string]string
}

func (s *stubResolver) LookupAddr(_ context.Context, ip string) ([]string, error) {
	if name, ok := s.ptr[ip]; ok {
		return []string{name}, nil
	}
	return nil, errors.New("nxdomain")
}

func (s *stubResolver) LookupHost(context.Context, string) ([]string, error) {
	return nil, errors.New("nxdomain")
}

func (s *stubResolver) LookupTXT(context.Context, string) ([]string, error) {
	return nil, errors.New("nxdomain")
}

func emailWithHeaders(headers map[string][]string) *core.Email {
	return &core.Email{Headers: headers}
}

func TestAuthenticationSignals(t *testing.T) {
	tests := []struct {
		name    string
		headers map[string][]string
		spf     bool
		dkim    bool
		dmarc   bool
		warn    bool
	}{
		{
			name: "all pass",
			headers: map[string][]string{
				"Received-Spf":           {"Pass (sender SPF authorized)"},
				"Authentication-Results": {"mx.example.net; dkim=pass header.d=example.com; spf=pass; dmarc=pass"},
			},
			spf: true, dkim: true, dmarc: true,
		},
		{
			name: "spf from authentication results",
			headers: map[string][]string{
				"Authentication-Results": {"mx.example.net; spf=pass smtp.mailfrom=example.com"},
			},
			spf: true,
		},
		{
			name: "received-spf wins over authentication results",
			headers: map[string][]string{
				"Received-SPF":           {"softfail (domain does not designate sender)"},
				"Authentication-Results": {"mx.example.net; spf=pass"},
			},
		},
		{
			name: "signature present is enough for dkim",
			headers: map[string][]string{
				"DKIM-Signature": {"v=1; a=rsa-sha256; d=example.com"},
			},
			dkim: true,
		},
		{
			name: "authentication warning",
			headers: map[string][]string{
				"X-Authentication-Warning": {"host.example.com: user set sender"},
			},
			warn: true,
		},
		{
			name:    "nothing",
			headers: map[string][]string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := emailWithHeaders(tt.headers)
			assert.Equal(t, tt.spf, HasSPF(e))
			assert.Equal(t, tt.dkim, HasDKIM(e))
			assert.Equal(t, tt.dmarc, HasDMARC(e))
			assert.Equal(t, tt.warn, HasAuthWarning(e))
		})
	}
}

func TestAnalyzeSubject(t *testing.T) {
	words := []string{"viagra", "free money"}

	tests := []struct {
		subject string
		suspect bool
		upper   bool
	}{
		{"Meeting notes", false, false},
		{"MEETING NOTES", false, true},
		{"V-i-a-g-r-a for you", true, false},
		{"f*r*e*e", true, false},
		{"GET FREE MONEY NOW", true, true},
		{"Cheap Viagra", true, false},
		{"", false, false},
		{"1234", false, false},
	}

	for _, tt := range tests {
		t.Run(tt.subject, func(t *testing.T) {
			suspect, upper := AnalyzeSubject(tt.subject, words)
			assert.Equal(t, tt.suspect, suspect)
			assert.Equal(t, tt.upper, upper)
		})
	}
}

func TestReceivedParsing(t *testing.T) {
	received := "from mail.example.com (mail.example.com [192.0.2.25])\r\n" +
		"\tby mx.example.net with ESMTPS id abc123;\r\n" +
		"\tWed, 17 Feb 2021 10:00:05 +0100"

	assert.Equal(t, "mail.example.com (mail.example.com [192.0.2.25])", ReceivedFromClause(received))

	d := ReceivedDate(received)
	require.NotNil(t, d)
	assert.True(t, d.IsRFC2822())
	assert.Equal(t, 2021, d.Time().Year())

	assert.Equal(t, "", ReceivedFromClause("by localhost with SMTP; Wed, 17 Feb 2021 10:00:05 +0100"))
	assert.Nil(t, ReceivedDate("from somewhere by elsewhere"))
}

func TestServerDomain(t *testing.T) {
	r := &stubResolver{ptr: map[string]string{"192.0.2.25": "relay.example.com"}}
	ctx := context.Background()

	e := emailWithHeaders(map[string][]string{"Received": {
		"from [192.0.2.25] by mx.example.net; Wed, 17 Feb 2021 10:00:05 +0100",
		"from ignored.example.org by mx.example.net",
	}})
	assert.Equal(t, "relay.example.com", ServerDomain(ctx, r, e).Name())

	assert.True(t, ServerDomain(ctx, r, emailWithHeaders(nil)).IsUnknown())
	assert.True(t, ServerDomain(ctx, r, emailWithHeaders(map[string][]string{
		"Received": {"from unknown (HELO x) by mx.example.net"},
	})).IsUnknown())
}

func TestHeaderInspector(t *testing.T) {
	ctx := context.Background()
	inspector := NewHeaderInspector(wordlist.New("lottery"), &stubResolver{}, false, zap.NewNop())

	e := &core.Email{
		Subject: "You won the LOTTERY",
		Headers: map[string][]string{
			"From":                   {"Alice <alice@example.com>"},
			"Date":                   {"Wed, 17 Feb 2021 10:00:00 +0100"},
			"Received":               {"from mail.example.com by mx.example.net; Wed, 17 Feb 2021 10:00:05 +0100"},
			"Authentication-Results": {"mx.example.net; spf=pass; dkim=pass; dmarc=pass"},
		},
	}
	server := ServerDomain(ctx, &stubResolver{}, e)
	h := inspector.Inspect(ctx, e, server)

	assert.True(t, h.HasSPF)
	assert.True(t, h.HasDKIM)
	assert.True(t, h.HasDMARC)
	assert.True(t, h.DomainMatches)
	assert.False(t, h.AuthWarn)
	assert.True(t, h.HasSuspectSubject)
	assert.False(t, h.SubjectIsUppercase)
	require.NotNil(t, h.SendDate)
	assert.True(t, h.SendDate.IsRFC2822())
	require.NotNil(t, h.ReceivedDate)
	assert.Equal(t, "example.com", h.FromDomain)
	assert.Equal(t, "mail.example.com", h.ServerDomain)
	assert.False(t, h.DKIMVerified)
}

func TestDomainMatchWithSentinels(t *testing.T) {
	ctx := context.Background()
	inspector := NewHeaderInspector(wordlist.New(), &stubResolver{}, false, zap.NewNop())

	mismatch := &core.Email{Headers: map[string][]string{
		"From":     {"alice@example.com"},
		"Received": {"from mx.other.org by mx.example.net"},
	}}
	assert.False(t, inspector.Inspect(ctx, mismatch, ServerDomain(ctx, nil, mismatch)).DomainMatches)

	noDomain := &core.Email{Headers: map[string][]string{
		"From": {"postmaster"},
	}}
	h := inspector.Inspect(ctx, noDomain, domain.Unknown())
	assert.True(t, h.DomainMatches)
	assert.Nil(t, h.SendDate)
	assert.Nil(t, h.ReceivedDate)

	knownSender := &core.Email{Headers: map[string][]string{
		"From": {"alice@example.com"},
	}}
	assert.False(t, inspector.Inspect(ctx, knownSender, domain.Unknown()).DomainMatches)
}
