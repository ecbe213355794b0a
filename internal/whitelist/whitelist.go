package whitelist

import (
	"net/mail"
	"strings"

	"go.uber.org/zap"

	"github.com/mikey/mail-spam-analyzer/internal/domain"
)

// Checker provides functionality to check if sender domains are whitelisted
type Checker struct {
	domains []domain.Domain
	logger  *zap.Logger
}

// NewChecker creates a new whitelist checker. A whitelisted domain also
// covers all of its subdomains.
func NewChecker(domains []string, logger *zap.Logger) *Checker {
	var normalized []domain.Domain
	for _, name := range domains {
		d := domain.FromString(name)
		if d.IsUnknown() {
			continue
		}
		normalized = append(normalized, d)
	}

	if len(normalized) > 0 && logger != nil {
		names := make([]string, len(normalized))
		for i, d := range normalized {
			names[i] = d.Name()
		}
		logger.Info("Initialized whitelist checker", zap.Strings("domains", names))
	}

	return &Checker{
		domains: normalized,
		logger:  logger,
	}
}

// IsWhitelisted checks if the sender's domain is in the whitelist.
// from may be a bare address or a full From header value.
func (c *Checker) IsWhitelisted(from string) bool {
	if len(c.domains) == 0 {
		return false
	}

	address := from
	if addr, err := mail.ParseAddress(from); err == nil {
		address = addr.Address
	}
	at := strings.LastIndex(address, "@")
	if at < 0 || at == len(address)-1 {
		return false
	}
	sender := domain.FromString(address[at+1:])

	for _, whitelisted := range c.domains {
		if sender.IsSubdomain(whitelisted) {
			if c.logger != nil {
				c.logger.Debug("Domain is whitelisted",
					zap.String("domain", sender.Name()),
					zap.String("email", from))
			}
			return true
		}
	}

	return false
}
