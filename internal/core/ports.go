package core

import (
	"context"
)

// Decider turns a feature record into a verdict
type Decider interface {
	// Name identifies the strategy in verdicts, logs and metrics
	Name() string

	// Decide produces the verdict for one analysis
	Decide(ctx context.Context, analysis *MailAnalysis) (*Verdict, error)
}

// BatchDecider is implemented by strategies that are cheaper per message when called with a whole batch
type BatchDecider interface {
	Decider

	// DecideAll returns one verdict per analysis, in the same order
	DecideAll(ctx context.Context, analyses []*MailAnalysis) ([]*Verdict, error)
}

// LLMClient defines the interface for asking a language model about a message
type LLMClient interface {
	// AssessEmail asks the model for a verdict on the analyzed message
	AssessEmail(ctx context.Context, analysis *MailAnalysis) (*Verdict, error)
}

// CacheRepository defines the interface for caching verdicts by message fingerprint
type CacheRepository interface {
	// Get retrieves a cached entry
	Get(ctx context.Context, key string) (*CacheEntry, error)

	// Set stores a cache entry
	Set(ctx context.Context, entry *CacheEntry) error

	// Delete removes a cache entry
	Delete(ctx context.Context, key string) error

	// Cleanup removes expired entries
	Cleanup(ctx context.Context) error
}
