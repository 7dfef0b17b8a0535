package ai

import (
	"context"
	"strings"
	"testing"
)

func TestMockProviderGenerate(t *testing.T) {
	p := NewMockProvider()

	tests := []struct {
		name   string
		prompt string
		want   string
	}{
		{
			name:   "vpn findings",
			prompt: "User question: was vpn on?\nFindings: VPN status: no_vpn. No VPN or proxy in use.\nAnswer:",
			want:   "no_vpn",
		},
		{
			name:   "system findings",
			prompt: "User question: how is my pc?\nFindings: CPU: 42.5%, RAM: 61.2%\nAnswer:",
			want:   "42.5",
		},
		{
			name:   "no data",
			prompt: "User question: today?\nFindings: No data found for the requested time or criteria.\nAnswer:",
			want:   "could not find",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := p.Generate(context.Background(), tt.prompt)
			if err != nil {
				t.Fatalf("Generate: %v", err)
			}
			if !strings.Contains(got, tt.want) {
				t.Errorf("Generate() = %q, want it to contain %q", got, tt.want)
			}
		})
	}
}

func TestMockProviderEmptyPrompt(t *testing.T) {
	p := NewMockProvider()
	if _, err := p.Generate(context.Background(), "   "); err == nil {
		t.Error("expected error for empty prompt")
	}
}

func TestMockProviderHonorsCancellation(t *testing.T) {
	p := NewMockProvider()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := p.Generate(ctx, "Findings: anything"); err == nil {
		t.Error("expected error for cancelled context")
	}
}

func TestExtractFindings(t *testing.T) {
	got := extractFindings("User question: q\nFindings: VPN status: no_vpn.\nAnswer:")
	if got != "VPN status: no_vpn." {
		t.Errorf("extractFindings = %q", got)
	}

	// Fallback for free-form prompts.
	if got := extractFindings("  just text  "); got != "just text" {
		t.Errorf("extractFindings fallback = %q", got)
	}
}
