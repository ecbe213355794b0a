package domain

import (
	"context"
	"net/mail"
	"regexp"
	"strings"
)

var (
	namePattern = regexp.MustCompile(`([\-A-Za-z0-9]+\.)+[A-Za-z]{2,6}`)
	ipPattern   = regexp.MustCompile(`(?:\d{1,3}\.){3}\d{1,3}`)
)

// Extract finds the domain a header field refers to. Names win over
// addresses, so "mail.example.com (1.2.3.4)" yields mail.example.com.
// A field mentioning "unknown" yields the sentinel.
func Extract(ctx context.Context, r Resolver, field string) Domain {
	if field == "" || strings.Contains(field, UnknownName) {
		return Unknown()
	}

	// Prefer the host part of a parseable address over display-name text
	if addr, err := mail.ParseAddress(field); err == nil {
		if at := strings.LastIndex(addr.Address, "@"); at >= 0 {
			if name := namePattern.FindString(addr.Address[at+1:]); name != "" {
				return FromString(name)
			}
		}
	}

	if name := namePattern.FindString(field); name != "" {
		return FromString(name)
	}
	if ip := ipPattern.FindString(field); ip != "" {
		return FromIP(ctx, r, ip)
	}
	return Unknown()
}
