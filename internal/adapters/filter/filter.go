package filter

import (
	"context"

	"github.com/mikey/mail-spam-analyzer/internal/analyzer"
	"github.com/mikey/mail-spam-analyzer/internal/core"
)

// Processor analyzes and decides messages. *analyzer.Service implements it.
type Processor interface {
	Process(ctx context.Context, email *core.Email) *analyzer.Result
	AnalyzeBatch(ctx context.Context, emails []*core.Email) []*analyzer.Result
}
