package filter

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/mail"
	"strings"
	"testing"
	"time"

	"github.com/emersion/go-smtp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mikey/mail-spam-analyzer/internal/analyzer"
	"github.com/mikey/mail-spam-analyzer/internal/config"
	"github.com/mikey/mail-spam-analyzer/internal/core"
	"github.com/mikey/mail-spam-analyzer/internal/mailfile"
)

// fakeProcessor returns the verdict keyed by subject
type fakeProcessor struct {
	verdicts map[string]*core.Verdict
}

func (p *fakeProcessor) Process(_ context.Context, email *core.Email) *analyzer.Result {
	r := &analyzer.Result{
		Email:    email,
		Analysis: &core.MailAnalysis{FilePath: email.Source, MessageID: email.ID, From: email.From, Subject: email.Subject},
	}
	v, ok := p.verdicts[email.Subject]
	if !ok {
		r.Err = errors.New("decider unavailable")
		return r
	}
	copied := *v
	r.Verdict = &copied
	return r
}

func (p *fakeProcessor) AnalyzeBatch(ctx context.Context, emails []*core.Email) []*analyzer.Result {
	results := make([]*analyzer.Result, len(emails))
	for i, e := range emails {
		results[i] = p.Process(ctx, e)
	}
	return results
}

func newProcessor() *fakeProcessor {
	return &fakeProcessor{verdicts: map[string]*core.Verdict{
		"Lunch":     {Label: core.LabelTrust, Score: 0, Strategy: "rules", Explanation: "authenticated"},
		"Win big":   {Label: core.LabelSpam, IsSpam: true, Score: 0.9, Strategy: "score", Explanation: "script\nand forbidden words"},
		"Click me":  {Label: core.LabelWarning, Score: 0.5, Strategy: "rules"},
		"Quarterly": {Label: core.LabelHam, Score: 0.2, Strategy: "classifier"},
	}}
}

func rawMessage(subject string) []byte {
	return []byte("Received: from mail.example.com by mx.example.net; Wed, 17 Feb 2021 10:00:05 +0100\r\n" +
		"From: Alice <alice@example.com>\r\n" +
		"To: bob@example.net\r\n" +
		"Subject: " + subject + "\r\n" +
		"Message-ID: <1@example.com>\r\n" +
		"\r\n" +
		"Hello Bob,\r\nsee you at noon.\r\n")
}

func serverConfig() config.ServerConfig {
	cfg := config.NewFromViper(config.NewEmptyViper()).GetServer()
	cfg.ModifySubject = true
	return cfg
}

func readTagged(t *testing.T, raw []byte) *mail.Message {
	t.Helper()
	msg, err := mail.ReadMessage(bytes.NewReader(raw))
	require.NoError(t, err)
	return msg
}

func TestFilterMessageTagsHeaders(t *testing.T) {
	f := NewPostfixFilter(newProcessor(), serverConfig(), zap.NewNop())
	ctx := context.Background()

	tests := []struct {
		subject     string
		wantStatus  string
		wantVerdict string
		wantSubject string
	}{
		{"Lunch", "false", "Trust (rules)", "Lunch"},
		{"Win big", "true", "Spam (score)", "[SPAM] Win big"},
		{"Click me", "false", "Warning (rules)", "Click me"},
	}

	for _, tt := range tests {
		t.Run(tt.subject, func(t *testing.T) {
			out, err := f.filterMessage(ctx, "alice@example.com", []string{"bob@example.net"}, rawMessage(tt.subject))
			require.NoError(t, err)

			msg := readTagged(t, out)
			assert.Equal(t, tt.wantStatus, msg.Header.Get("X-Spam-Status"))
			assert.Equal(t, tt.wantVerdict, msg.Header.Get("X-Spam-Verdict"))
			assert.Equal(t, tt.wantSubject, msg.Header.Get("Subject"))
			assert.Equal(t, "<1@example.com>", msg.Header.Get("Message-ID"))

			body, err := io.ReadAll(msg.Body)
			require.NoError(t, err)
			assert.Equal(t, "Hello Bob,\r\nsee you at noon.\r\n", string(body))
		})
	}
}

func TestFilterMessageReasonIsOneLine(t *testing.T) {
	f := NewPostfixFilter(newProcessor(), serverConfig(), zap.NewNop())

	out, err := f.filterMessage(context.Background(), "alice@example.com", nil, rawMessage("Win big"))
	require.NoError(t, err)
	assert.Equal(t, "script and forbidden words", readTagged(t, out).Header.Get("X-Spam-Reason"))
	assert.Equal(t, "0.9000", readTagged(t, out).Header.Get("X-Spam-Score"))
}

func TestFilterMessageKeepsExistingPrefix(t *testing.T) {
	p := newProcessor()
	p.verdicts["[SPAM] Win big"] = p.verdicts["Win big"]
	f := NewPostfixFilter(p, serverConfig(), zap.NewNop())

	out, err := f.filterMessage(context.Background(), "alice@example.com", nil, rawMessage("[SPAM] Win big"))
	require.NoError(t, err)
	assert.Equal(t, "[SPAM] Win big", readTagged(t, out).Header.Get("Subject"))
}

func TestFilterMessageBlocksSpam(t *testing.T) {
	cfg := serverConfig()
	cfg.BlockSpam = true
	f := NewPostfixFilter(newProcessor(), cfg, zap.NewNop())
	ctx := context.Background()

	_, err := f.filterMessage(ctx, "alice@example.com", nil, rawMessage("Win big"))
	var smtpErr *smtp.SMTPError
	require.ErrorAs(t, err, &smtpErr)
	assert.Equal(t, 550, smtpErr.Code)

	// Warnings are delivered even when blocking
	_, err = f.filterMessage(ctx, "alice@example.com", nil, rawMessage("Click me"))
	assert.NoError(t, err)
}

func TestFilterMessageAnalysisFailure(t *testing.T) {
	cfg := serverConfig()
	cfg.BlockSpam = true
	f := NewPostfixFilter(newProcessor(), cfg, zap.NewNop())

	out, err := f.filterMessage(context.Background(), "alice@example.com", nil, rawMessage("Unknown"))
	require.NoError(t, err)

	msg := readTagged(t, out)
	assert.Equal(t, "false", msg.Header.Get("X-Spam-Status"))
	assert.Equal(t, "decider unavailable", msg.Header.Get("X-Spam-Analysis-Error"))
}

func TestDefaultSubjectPrefix(t *testing.T) {
	cfg := serverConfig()
	cfg.SubjectPrefix = ""
	f := NewPostfixFilter(newProcessor(), cfg, zap.NewNop())
	assert.Equal(t, defaultSubjectPrefix, f.cfg.SubjectPrefix)
}

type captureBackend struct {
	got chan []byte
}

func (b *captureBackend) NewSession(*smtp.Conn) (smtp.Session, error) {
	return &captureSession{got: b.got}, nil
}

type captureSession struct {
	got chan []byte
}

func (s *captureSession) Reset()                               {}
func (s *captureSession) Logout() error                        { return nil }
func (s *captureSession) Mail(string, *smtp.MailOptions) error { return nil }
func (s *captureSession) Rcpt(string, *smtp.RcptOptions) error { return nil }
func (s *captureSession) Data(r io.Reader) error {
	b, err := io.ReadAll(r)
	s.got <- b
	return err
}

func TestSessionReinjectsIntoPostfix(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	backend := &captureBackend{got: make(chan []byte, 1)}
	downstream := smtp.NewServer(backend)
	downstream.Domain = "localhost"
	go downstream.Serve(l)
	defer downstream.Close()

	cfg := serverConfig()
	cfg.Postfix = config.PostfixConfig{
		Enabled: true,
		Address: "127.0.0.1",
		Port:    l.Addr().(*net.TCPAddr).Port,
	}
	f := NewPostfixFilter(newProcessor(), cfg, zap.NewNop())

	session, err := (&smtpBackend{filter: f}).NewSession(nil)
	require.NoError(t, err)
	require.NoError(t, session.Mail("alice@example.com", nil))
	require.NoError(t, session.Rcpt("bob@example.net", nil))
	require.NoError(t, session.Data(bytes.NewReader(rawMessage("Win big"))))

	select {
	case got := <-backend.got:
		msg := readTagged(t, got)
		assert.Equal(t, "true", msg.Header.Get("X-Spam-Status"))
		assert.Equal(t, "[SPAM] Win big", msg.Header.Get("Subject"))
	case <-time.After(5 * time.Second):
		t.Fatal("message was not re-injected")
	}
}

func TestCliBatchReport(t *testing.T) {
	var out bytes.Buffer
	f := NewCliFilter(newProcessor(), zap.NewNop(), &out, false, false)

	emails := []*core.Email{
		{Source: "a.eml", Subject: "Lunch"},
		{Source: "b.eml", Subject: "Win big"},
		{Source: "c.eml", Subject: "Unknown"},
		{Source: "d.eml", Subject: "Win big"},
	}
	skipped := []mailfile.Skipped{{Source: "e.eml", Err: mailfile.ErrInvalidEmail}}

	summary, err := f.ProcessBatch(context.Background(), emails, skipped)
	require.NoError(t, err)

	assert.Equal(t, 4, summary.Total)
	assert.Equal(t, 1, summary.Failed)
	assert.Equal(t, 1, summary.Skipped)
	assert.Equal(t, map[core.Label]int{core.LabelTrust: 1, core.LabelSpam: 2}, summary.Labels)
	assert.InDelta(t, 0.6, summary.MeanScore, 1e-9)

	report := out.String()
	assert.Less(t, strings.Index(report, "a.eml: Trust"), strings.Index(report, "b.eml: Spam"))
	assert.Contains(t, report, "c.eml: error: decider unavailable")
	assert.Contains(t, report, "e.eml: skipped")
	assert.Contains(t, report, "Spam: 2")
}

func TestCliJSONOutput(t *testing.T) {
	var out bytes.Buffer
	f := NewCliFilter(newProcessor(), zap.NewNop(), &out, false, true)

	v, err := f.ProcessEmail(context.Background(), &core.Email{Source: "a.eml", ID: "<1@example.com>", Subject: "Quarterly"})
	require.NoError(t, err)
	assert.Equal(t, core.LabelHam, v.Label)

	var rec struct {
		Source    string         `json:"source"`
		MessageID string         `json:"message_id"`
		Features  map[string]any `json:"features"`
		Verdict   core.Verdict   `json:"verdict"`
	}
	require.NoError(t, json.Unmarshal(out.Bytes(), &rec))
	assert.Equal(t, "a.eml", rec.Source)
	assert.Equal(t, "<1@example.com>", rec.MessageID)
	assert.Equal(t, core.LabelHam, rec.Verdict.Label)
	assert.NotEmpty(t, rec.Features)
}
