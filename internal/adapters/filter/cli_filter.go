package filter

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/mikey/mail-spam-analyzer/internal/analyzer"
	"github.com/mikey/mail-spam-analyzer/internal/core"
	"github.com/mikey/mail-spam-analyzer/internal/mailfile"
)

// Summary aggregates the outcome of a batch
type Summary struct {
	Total     int
	Failed    int
	Skipped   int
	Labels    map[core.Label]int
	MeanScore float64
	Duration  time.Duration
}

// CliFilter implements a command-line interface for spam detection
type CliFilter struct {
	processor  Processor
	logger     *zap.Logger
	out        io.Writer
	verbose    bool
	jsonOutput bool
}

// NewCliFilter creates a new CLI filter writing its report to out
func NewCliFilter(processor Processor, logger *zap.Logger, out io.Writer, verbose, jsonOutput bool) *CliFilter {
	return &CliFilter{
		processor:  processor,
		logger:     logger,
		out:        out,
		verbose:    verbose,
		jsonOutput: jsonOutput,
	}
}

// ProcessEmail processes one email and displays the result
func (f *CliFilter) ProcessEmail(ctx context.Context, email *core.Email) (*core.Verdict, error) {
	f.logger.Debug("Processing email", zap.String("source", email.Source))

	r := f.processor.Process(ctx, email)
	if err := f.report(r); err != nil {
		return nil, err
	}
	return r.Verdict, r.Err
}

// ProcessBatch analyzes emails concurrently, reports every result in input
// order followed by the skipped inputs, and returns the aggregate
func (f *CliFilter) ProcessBatch(ctx context.Context, emails []*core.Email, skipped []mailfile.Skipped) (*Summary, error) {
	start := time.Now()
	results := f.processor.AnalyzeBatch(ctx, emails)

	for _, r := range results {
		if err := f.report(r); err != nil {
			return nil, err
		}
	}
	for _, s := range skipped {
		f.logger.Warn("Skipped input", zap.String("source", s.Source), zap.Error(s.Err))
		if !f.jsonOutput {
			fmt.Fprintf(f.out, "%s: skipped: %v\n", s.Source, s.Err)
		}
	}

	summary := Summarize(results)
	summary.Skipped = len(skipped)
	summary.Duration = time.Since(start)

	if !f.jsonOutput {
		f.printSummary(summary)
	}
	return summary, nil
}

// Summarize counts labels and averages the score of the decided messages
func Summarize(results []*analyzer.Result) *Summary {
	s := &Summary{Total: len(results), Labels: make(map[core.Label]int)}
	var total float64
	decided := 0
	for _, r := range results {
		if r.Err != nil || r.Verdict == nil {
			s.Failed++
			continue
		}
		s.Labels[r.Verdict.Label]++
		total += r.Verdict.Score
		decided++
	}
	if decided > 0 {
		s.MeanScore = total / float64(decided)
	}
	return s
}

type jsonRecord struct {
	Source    string         `json:"source,omitempty"`
	MessageID string         `json:"message_id,omitempty"`
	Features  map[string]any `json:"features,omitempty"`
	Verdict   *core.Verdict  `json:"verdict,omitempty"`
	Error     string         `json:"error,omitempty"`
}

func (f *CliFilter) report(r *analyzer.Result) error {
	if f.jsonOutput {
		rec := jsonRecord{Source: r.Email.Source, Verdict: r.Verdict}
		if r.Analysis != nil {
			rec.MessageID = r.Analysis.MessageID
			rec.Features = r.Analysis.ToMap()
		}
		if r.Err != nil {
			rec.Error = r.Err.Error()
		}
		line, err := json.Marshal(rec)
		if err != nil {
			return fmt.Errorf("failed to encode result: %w", err)
		}
		_, err = fmt.Fprintf(f.out, "%s\n", line)
		return err
	}

	name := r.Email.Source
	if name == "" {
		name = r.Email.ID
	}
	if r.Err != nil {
		fmt.Fprintf(f.out, "%s: error: %v\n", name, r.Err)
		return nil
	}

	fmt.Fprintf(f.out, "%s: %s (score %.4f, %s)\n", name, r.Verdict.Label, r.Verdict.Score, r.Verdict.Strategy)
	if f.verbose {
		fmt.Fprintf(f.out, "  From: %s\n  Subject: %s\n", r.Analysis.From, r.Analysis.Subject)
		if r.Verdict.Explanation != "" {
			fmt.Fprintf(f.out, "  Explanation: %s\n", r.Verdict.Explanation)
		}
		values := r.Analysis.ToList()
		for i, feature := range core.FeatureNames {
			fmt.Fprintf(f.out, "  %-28s %g\n", feature, values[i])
		}
	}
	return nil
}

func (f *CliFilter) printSummary(s *Summary) {
	fmt.Fprintf(f.out, "\n=== Summary ===\n")
	fmt.Fprintf(f.out, "Messages: %d (failed %d, skipped %d)\n", s.Total, s.Failed, s.Skipped)

	labels := make([]string, 0, len(s.Labels))
	for label := range s.Labels {
		labels = append(labels, string(label))
	}
	sort.Strings(labels)
	for _, label := range labels {
		fmt.Fprintf(f.out, "%s: %d\n", label, s.Labels[core.Label(label)])
	}

	fmt.Fprintf(f.out, "Mean score: %.4f\n", s.MeanScore)
	fmt.Fprintf(f.out, "Processing time: %v\n", s.Duration)
}

// Start is a no-op for the CLI filter
func (f *CliFilter) Start() error {
	return nil
}

// Stop is a no-op for the CLI filter
func (f *CliFilter) Stop() error {
	return nil
}
