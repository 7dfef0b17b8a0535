package ai

import (
	"context"
	"fmt"
	"strings"
)

// Provider is the interface for text generation integrations. The engine
// uses it to paraphrase structured findings into conversational answers.
type Provider interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// MockProvider provides canned responses for development and testing. It
// keys on the findings embedded in the prompt so the output stays loosely
// consistent with the structured answer it paraphrases.
type MockProvider struct{}

// NewMockProvider creates a new mock provider
func NewMockProvider() *MockProvider {
	return &MockProvider{}
}

// Generate produces a mock conversational response
func (m *MockProvider) Generate(ctx context.Context, prompt string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if strings.TrimSpace(prompt) == "" {
		return "", fmt.Errorf("empty prompt")
	}

	findings := extractFindings(prompt)
	lower := strings.ToLower(findings)

	switch {
	case strings.Contains(lower, "no data found"):
		return "I could not find any monitoring records for that time range. " +
			"The collector may not have been running, or you may want to widen the window.", nil
	case strings.Contains(lower, "vpn"):
		return fmt.Sprintf("Here is what the monitoring data shows about your connection: %s "+
			"Let me know if you want the speed or location details for the same period.", findings), nil
	case strings.Contains(lower, "cpu"):
		return fmt.Sprintf("Looking at the latest snapshot of your machine: %s "+
			"Nothing in these numbers stands out as a problem.", findings), nil
	case strings.Contains(lower, "location"):
		return fmt.Sprintf("According to the most recent record, %s", findings), nil
	default:
		return fmt.Sprintf("Summary of the matching monitoring records: %s", findings), nil
	}
}

// extractFindings pulls the findings line out of the enrichment prompt. If
// the prompt does not follow the expected layout the whole prompt is used.
func extractFindings(prompt string) string {
	for _, line := range strings.Split(prompt, "\n") {
		if rest, ok := strings.CutPrefix(line, "Findings:"); ok {
			return strings.TrimSpace(rest)
		}
	}
	return strings.TrimSpace(prompt)
}
