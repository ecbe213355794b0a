package inspect

import (
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/mikey/mail-spam-analyzer/internal/core"
	"github.com/mikey/mail-spam-analyzer/internal/domain"
	"github.com/mikey/mail-spam-analyzer/internal/sentiment"
	"github.com/mikey/mail-spam-analyzer/internal/utils"
	"github.com/mikey/mail-spam-analyzer/internal/wordlist"
)

// DefaultUppercaseRatio is the share of capitalized tokens above which a body counts as shouting
const DefaultUppercaseRatio = 0.6

// BodyInspector extracts content signals from the message body
type BodyInspector struct {
	words          *wordlist.Wordlist
	sentiment      *sentiment.Analyzer
	textProcessor  *utils.TextProcessor
	uppercaseRatio float64
	logger         *zap.Logger
}

// NewBodyInspector creates a new body inspector
func NewBodyInspector(
	words *wordlist.Wordlist,
	analyzer *sentiment.Analyzer,
	textProcessor *utils.TextProcessor,
	uppercaseRatio float64,
	logger *zap.Logger,
) *BodyInspector {
	if uppercaseRatio <= 0 {
		uppercaseRatio = DefaultUppercaseRatio
	}
	return &BodyInspector{
		words:          words,
		sentiment:      analyzer,
		textProcessor:  textProcessor,
		uppercaseRatio: uppercaseRatio,
		logger:         logger,
	}
}

// Inspect analyzes body. sender is the resolved domain of the sending
// server; plain http links back to it are tolerated.
func (i *BodyInspector) Inspect(body string, sender domain.Domain) core.BodyAnalysis {
	body = i.textProcessor.Normalize(body)

	// Capitals are judged before the body is folded to lower case
	isUpper := IsUppercase(body, i.uppercaseRatio)
	body = strings.ToLower(body)

	links := ExtractLinks(body)
	containsHTML := HasHTML(body)

	result := core.BodyAnalysis{
		HasLinks:         len(links) > 0,
		HasMailto:        mailtoPattern.MatchString(body),
		HTTPSOnly:        HTTPSOnly(links),
		HasUnsecureLinks: HasUnsecureLinks(body, sender),
		ContainsScript:   HasScript(body),
		ContainsForm:     htmlFormPattern.MatchString(body),
		ContainsHTML:     containsHTML,
		HasImages:        imageTagPattern.MatchString(body),
		IsUppercase:      isUpper,
	}

	// Links and markup are noise for word and sentiment scoring
	text := body
	for _, link := range links {
		text = strings.ReplaceAll(text, link, "")
	}
	if containsHTML {
		plain, err := StripHTML(text)
		if err != nil {
			i.logger.Debug("Failed to strip HTML, scoring raw text", zap.Error(err))
		} else {
			text = plain
		}
	}

	result.ForbiddenWordsPercentage = PercentageOfBadWords(text, i.words.Words())
	result.TextPolarity, result.TextSubjectivity = i.sentiment.Score(text)

	return result
}

// ExtractLinks returns the http and https links of body. Bare domains are
// only considered when the body has no scheme-qualified or mailto link.
func ExtractLinks(body string) []string {
	http := httpLinkPattern.FindAllString(body, -1)
	https := httpsLinkPattern.FindAllString(body, -1)

	var links []string
	if len(http) == 0 && len(https) == 0 && !mailtoPattern.MatchString(body) {
		links = append(links, shortLinkPattern.FindAllString(body, -1)...)
	}
	for _, link := range http {
		if !strings.Contains(link, ignoredHTTPLink) {
			links = append(links, link)
		}
	}
	for _, link := range https {
		if !strings.Contains(link, ignoredHTTPSLink) {
			links = append(links, link)
		}
	}
	return links
}

// HTTPSOnly reports whether there are links and all of them use https
func HTTPSOnly(links []string) bool {
	if len(links) == 0 {
		return false
	}
	for _, link := range links {
		if !strings.Contains(link, "https://") {
			return false
		}
	}
	return true
}

// HasUnsecureLinks reports a plain http link to anywhere but the sender's own
// domain. Markup namespace links are not links a reader can follow.
func HasUnsecureLinks(body string, sender domain.Domain) bool {
	for _, link := range httpLinkPattern.FindAllString(body, -1) {
		if strings.Contains(link, ignoredHTTPLink) {
			continue
		}
		u, err := url.Parse(link)
		if err != nil || u.Hostname() == "" {
			return true
		}
		if sender.IsUnknown() || !domain.FromString(u.Hostname()).Equal(sender) {
			return true
		}
	}
	return false
}

// HasScript reports script tags or inline event handlers
func HasScript(body string) bool {
	for _, marker := range unsafeMarkers {
		if strings.Contains(body, marker) {
			return true
		}
	}
	return false
}

// HasHTML reports whether body contains markup
func HasHTML(body string) bool {
	return htmlTagPattern.MatchString(body)
}

// StripHTML returns the visible text of an HTML document
func StripHTML(body string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err != nil {
		return "", err
	}
	doc.Find("script, style").Remove()
	return doc.Text(), nil
}

// IsUppercase reports whether more than ratio of the whitespace separated tokens are in capitals
func IsUppercase(body string, ratio float64) bool {
	tokens := strings.Fields(body)
	if len(tokens) == 0 {
		return false
	}
	count := 0
	for _, tok := range tokens {
		if IsUpper(tok) {
			count++
		}
	}
	return float64(count)/float64(len(tokens)) > ratio
}

// PercentageOfBadWords is the ratio of forbidden words to all words in body.
// A phrase entry counts once per word it contains.
func PercentageOfBadWords(body string, words []string) float64 {
	total := len(strings.Fields(body))
	if total == 0 {
		return 0
	}
	bad := 0
	for _, word := range words {
		if strings.Contains(body, word) {
			bad += len(strings.Fields(word))
		}
	}
	return float64(bad) / float64(total)
}
