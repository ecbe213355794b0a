package ports

import (
	"context"

	"github.com/mikey/mail-spam-analyzer/internal/core"
)

// EmailFilter defines the interface for email filtering
type EmailFilter interface {
	// ProcessEmail analyzes an email and returns the verdict reached for it
	ProcessEmail(ctx context.Context, email *core.Email) (*core.Verdict, error)

	// Start starts the email filter service
	Start() error

	// Stop stops the email filter service
	Stop() error
}
