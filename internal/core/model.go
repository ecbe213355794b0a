package core

import (
	"strings"
	"time"

	"github.com/mikey/mail-spam-analyzer/internal/date"
)

// Email represents a parsed email message
type Email struct {
	ID          string
	Source      string
	From        string
	To          []string
	Subject     string
	Body        string
	HTML        bool
	Headers     map[string][]string
	Attachments []Attachment
	Raw         []byte
}

// Attachment describes one attached MIME part
type Attachment struct {
	FileName    string
	ContentType string
	Size        int
}

// HeaderValues returns every value of a header. Parsers canonicalize header
// names differently (DKIM-Signature vs Dkim-Signature), so the lookup ignores case.
func (e *Email) HeaderValues(name string) []string {
	if values, ok := e.Headers[name]; ok {
		return values
	}
	for key, values := range e.Headers {
		if strings.EqualFold(key, name) {
			return values
		}
	}
	return nil
}

// Header returns the first value of a header and whether it was present
func (e *Email) Header(name string) (string, bool) {
	values := e.HeaderValues(name)
	if len(values) == 0 {
		return "", false
	}
	return values[0], true
}

// Label is the outcome of a decision strategy
type Label string

const (
	LabelTrust   Label = "Trust"
	LabelWarning Label = "Warning"
	LabelSpam    Label = "Spam"
	LabelHam     Label = "Ham"
)

// Verdict represents the decision reached for one message
type Verdict struct {
	Label        Label     `json:"label"`
	IsSpam       bool      `json:"is_spam"`
	Score        float64   `json:"score"`
	Confidence   float64   `json:"confidence"`
	Explanation  string    `json:"explanation"`
	Strategy     string    `json:"strategy"`
	AnalyzedAt   time.Time `json:"analyzed_at"`
	ProcessingID string    `json:"processing_id,omitempty"`
}

// HeaderAnalysis holds the signals extracted from the message headers
type HeaderAnalysis struct {
	HasSPF             bool
	HasDKIM            bool
	HasDMARC           bool
	DomainMatches      bool
	AuthWarn           bool
	HasSuspectSubject  bool
	SubjectIsUppercase bool
	SendDate           *date.Date
	ReceivedDate       *date.Date

	// Informational, not part of the feature vector
	FromDomain   string
	ServerDomain string
	DKIMVerified bool
}

// BodyAnalysis holds the signals extracted from the message body
type BodyAnalysis struct {
	HasLinks                 bool
	HasMailto                bool
	HTTPSOnly                bool
	HasUnsecureLinks         bool
	ContainsScript           bool
	ContainsForm             bool
	ContainsHTML             bool
	HasImages                bool
	IsUppercase              bool
	ForbiddenWordsPercentage float64
	TextPolarity             float64
	TextSubjectivity         float64
}

// AttachmentAnalysis holds the signals extracted from the attachments
type AttachmentAnalysis struct {
	HasAttachments         bool
	AttachmentIsExecutable bool
}

// CacheEntry represents a cached verdict for a message fingerprint
type CacheEntry struct {
	Key       string
	Label     Label
	IsSpam    bool
	Score     float64
	Strategy  string
	LastSeen  time.Time
	ExpiresAt time.Time
}
