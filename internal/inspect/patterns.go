package inspect

import "regexp"

var (
	mailtoPattern    = regexp.MustCompile(`mailto:(\w+@\w+\.\w+)(\?subject=(.+))?`)
	httpLinkPattern  = regexp.MustCompile(`http://([A-Za-z0-9]+\.)+[A-Za-z0-9]{2,6}(:\d{1,5})?([/A-Za-z0-9\.&=\?]*)?`)
	httpsLinkPattern = regexp.MustCompile(`https://([A-Za-z0-9]+\.)+[A-Za-z0-9]{2,6}(:\d{1,5})?([/A-Za-z0-9\.&=\?]*)?`)
	shortLinkPattern = regexp.MustCompile(`([A-Za-z0-9]+\.)+[A-Za-z]{2,6}(:\d{1,5})?([/A-Za-z0-9\.=&\?]*)?`)

	// Words broken up with filler, e.g. "V-i-a-g-r-a", "f*r*e*e" or "fr<!---->ee"
	gappyPattern = regexp.MustCompile(`([A-Za-z0-9]+(<!--*-->|\*|\-))+`)

	// Any tag; a matched open/close pair always contains one
	htmlTagPattern  = regexp.MustCompile(`<[^>]+>`)
	htmlFormPattern = regexp.MustCompile(`(?s)<\s*form`)
	imageTagPattern = regexp.MustCompile(`(?s)<\s*img`)

	receivedFromPattern = regexp.MustCompile(`(?is)^\s*from\s+(.+?)(?:\s+by\s|;|\z)`)
)

// Markers of active content; substring matches so malformed markup is caught too
var unsafeMarkers = []string{"<script>", "</script>", "onload", "onerror"}

// Link matches that are boilerplate rather than content
const (
	ignoredHTTPLink  = "www.w3.org"
	ignoredHTTPSLink = "spamassassin"
)
