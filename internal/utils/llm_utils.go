package utils

import (
	"fmt"
	"time"

	"github.com/mikey/mail-spam-analyzer/internal/core"
)

// AssessmentPromptFormat is shared by all LLM adapters. The single verb is
// the analysis summary.
const AssessmentPromptFormat = `You are a spam detection system. Below are the signals extracted from an email:
authentication results, sender and server domains, subject checks and body content checks.
Boolean signals are 1 for true and 0 for false; polarity is in [-1, 1], subjectivity and
bad_words_percentage in [0, 1].

Respond with a JSON object containing:
- is_spam: boolean (true if spam, false if not)
- score: number between 0 and 1 (higher means more likely to be spam)
- confidence: number between 0 and 1 (how confident you are in your assessment)
- explanation: string (brief explanation of why you think it's spam or not)

Signals:
%s
Respond only with the JSON object and nothing else.`

// AssessmentResponse represents the structured response from the LLM
type AssessmentResponse struct {
	IsSpam      bool    `json:"is_spam"`
	Score       float64 `json:"score"`
	Confidence  float64 `json:"confidence"`
	Explanation string  `json:"explanation"`
}

// BuildAssessmentPrompt renders the prompt for analysis, capped at maxSize bytes
func (tp *TextProcessor) BuildAssessmentPrompt(analysis *core.MailAnalysis, maxSize int) string {
	return fmt.Sprintf(AssessmentPromptFormat, tp.ProcessText(analysis.Summary(), maxSize))
}

// ParseAssessment converts a raw model response into a verdict
func ParseAssessment(text string) (*core.Verdict, error) {
	var resp AssessmentResponse
	if err := ExtractJSONObject(text, &resp); err != nil {
		return nil, err
	}
	if resp.Score < 0 || resp.Score > 1 {
		return nil, fmt.Errorf("LLM score %v outside [0, 1]", resp.Score)
	}

	return &core.Verdict{
		IsSpam:      resp.IsSpam,
		Score:       resp.Score,
		Confidence:  resp.Confidence,
		Explanation: resp.Explanation,
		AnalyzedAt:  time.Now(),
	}, nil
}
