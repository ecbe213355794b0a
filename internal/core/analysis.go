package core

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/mikey/mail-spam-analyzer/internal/date"
)

// FeatureNames is the order of MailAnalysis.ToList. Trained models are keyed
// to it, so entries may only ever be appended.
var FeatureNames = []string{
	"has_spf",
	"has_dkim",
	"has_dmarc",
	"domain_matches",
	"auth_warn",
	"has_suspect_subject",
	"subject_is_uppercase",
	"send_date_is_RFC2822_compliant",
	"send_date_tz_is_valid",
	"has_received_date",
	"uppercase_body",
	"script",
	"images",
	"https_only",
	"mailto",
	"links",
	"bad_words_percentage",
	"html",
	"form",
	"polarity",
	"subjectivity",
	"attachments",
	"attach_is_executable",
}

// Feature indexes into the vector returned by ToList
const (
	FeatureHasSPF = iota
	FeatureHasDKIM
	FeatureHasDMARC
	FeatureDomainMatches
	FeatureAuthWarn
	FeatureSuspectSubject
	FeatureSubjectUppercase
	FeatureSendDateRFC2822
	FeatureSendDateTZValid
	FeatureHasReceivedDate
	FeatureUppercaseBody
	FeatureScript
	FeatureImages
	FeatureHTTPSOnly
	FeatureMailto
	FeatureLinks
	FeatureBadWords
	FeatureHTML
	FeatureForm
	FeaturePolarity
	FeatureSubjectivity
	FeatureAttachments
	FeatureExecutable
)

// MailAnalysis is the feature record of one message. It is built once by the
// analyzer and never modified afterwards.
type MailAnalysis struct {
	FilePath    string
	MessageID   string
	From        string
	Subject     string
	Headers     HeaderAnalysis
	Body        BodyAnalysis
	Attachments AttachmentAnalysis
}

// ToList flattens the analysis into the fixed-order feature vector
func (a *MailAnalysis) ToList() []float64 {
	h, b, at := a.Headers, a.Body, a.Attachments

	return []float64{
		boolFeature(h.HasSPF),
		boolFeature(h.HasDKIM),
		boolFeature(h.HasDMARC),
		boolFeature(h.DomainMatches),
		boolFeature(h.AuthWarn),
		boolFeature(h.HasSuspectSubject),
		boolFeature(h.SubjectIsUppercase),
		boolFeature(h.SendDate != nil && h.SendDate.IsRFC2822()),
		boolFeature(h.SendDate != nil && h.SendDate.TZValid()),
		boolFeature(h.ReceivedDate != nil),
		boolFeature(b.IsUppercase),
		boolFeature(b.ContainsScript),
		boolFeature(b.HasImages),
		boolFeature(b.HTTPSOnly),
		boolFeature(b.HasMailto),
		boolFeature(b.HasLinks),
		b.ForbiddenWordsPercentage,
		boolFeature(b.ContainsHTML),
		boolFeature(b.ContainsForm),
		b.TextPolarity,
		b.TextSubjectivity,
		boolFeature(at.HasAttachments),
		boolFeature(at.AttachmentIsExecutable),
	}
}

// ToMap returns the nested serialization form of the analysis
func (a *MailAnalysis) ToMap() map[string]any {
	h, b, at := a.Headers, a.Body, a.Attachments

	return map[string]any{
		"file_path":  a.FilePath,
		"message_id": a.MessageID,
		"from":       a.From,
		"subject":    a.Subject,
		"headers": map[string]any{
			"has_spf":              h.HasSPF,
			"has_dkim":             h.HasDKIM,
			"has_dmarc":            h.HasDMARC,
			"domain_matches":       h.DomainMatches,
			"auth_warn":            h.AuthWarn,
			"has_suspect_subject":  h.HasSuspectSubject,
			"subject_is_uppercase": h.SubjectIsUppercase,
			"send_date":            dateMap(h.SendDate),
			"received_date":        dateMap(h.ReceivedDate),
			"from_domain":          h.FromDomain,
			"server_domain":        h.ServerDomain,
			"dkim_verified":        h.DKIMVerified,
		},
		"body": map[string]any{
			"has_links":                  b.HasLinks,
			"has_mailto":                 b.HasMailto,
			"https_only":                 b.HTTPSOnly,
			"has_unsecure_links":         b.HasUnsecureLinks,
			"contains_script":            b.ContainsScript,
			"contains_form":              b.ContainsForm,
			"contains_html":              b.ContainsHTML,
			"has_images":                 b.HasImages,
			"is_uppercase":               b.IsUppercase,
			"forbidden_words_percentage": b.ForbiddenWordsPercentage,
			"text_polarity":              b.TextPolarity,
			"text_subjectivity":          b.TextSubjectivity,
		},
		"attachments": map[string]any{
			"has_attachments":          at.HasAttachments,
			"attachment_is_executable": at.AttachmentIsExecutable,
		},
	}
}

// Summary renders the identity and feature vector as "name: value" lines
func (a *MailAnalysis) Summary() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "From: %s\nSubject: %s\n", a.From, a.Subject)
	if a.Headers.FromDomain != "" {
		fmt.Fprintf(&sb, "Sender domain: %s\nServer domain: %s\n", a.Headers.FromDomain, a.Headers.ServerDomain)
	}
	for i, v := range a.ToList() {
		fmt.Fprintf(&sb, "%s: %s\n", FeatureNames[i], strconv.FormatFloat(v, 'f', -1, 64))
	}
	return sb.String()
}

func dateMap(d *date.Date) map[string]any {
	if d == nil {
		return nil
	}
	return d.ToMap()
}

func boolFeature(v bool) float64 {
	if v {
		return 1
	}
	return 0
}
