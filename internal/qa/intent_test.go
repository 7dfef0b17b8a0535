package qa

import (
	"testing"

	"github.com/machine-telemetry-qa-platform/internal/models"
)

func TestClassifyPrimaryPatterns(t *testing.T) {
	c := NewIntentClassifier()

	tests := []struct {
		question string
		category models.IntentCategory
	}{
		{"Was the VPN on in the last 2 hours?", models.IntentVPNStatus},
		{"is my vpn connected", models.IntentVPNStatus},
		{"am I using a proxy?", models.IntentVPNStatus},
		{"How fast was my internet at 14:30?", models.IntentSpeedInfo},
		{"run a speed test summary", models.IntentSpeedInfo},
		{"what was the ping yesterday", models.IntentSpeedInfo},
		{"what is my cpu usage", models.IntentSystemInfo},
		{"how much ram is used", models.IntentSystemInfo},
		{"disk space this week", models.IntentSystemInfo},
		{"what is my ip address", models.IntentLocationInfo},
		{"which country am I in", models.IntentLocationInfo},
		{"how many computers have data this week?", models.IntentDeviceListing},
		{"list the machines that reported", models.IntentDeviceListing},
		{"when was the latest record taken", models.IntentTimeAnalysis},
		{"what is the record count for today", models.IntentTimeAnalysis},
		{"show me the data coverage", models.IntentDataCoverage},
		{"what happened yesterday", models.IntentGeneralStatus},
		{"give me an overview", models.IntentGeneralStatus},
	}

	for _, tt := range tests {
		t.Run(tt.question, func(t *testing.T) {
			intent := c.Classify(tt.question)
			if intent.Category != tt.category {
				t.Fatalf("category = %q, want %q (rule %q)", intent.Category, tt.category, intent.MatchedRule)
			}
			if intent.Confidence < 0.8 || intent.Confidence > 0.9 {
				t.Errorf("confidence = %v, want within [0.8, 0.9] for a primary match", intent.Confidence)
			}
		})
	}
}

func TestClassifyVPNConfidence(t *testing.T) {
	c := NewIntentClassifier()

	for _, q := range []string{"vpn connected?", "was vpn on?", "is the VPN active right now"} {
		intent := c.Classify(q)
		if intent.Category != models.IntentVPNStatus {
			t.Errorf("Classify(%q) category = %q, want vpn_status", q, intent.Category)
		}
		if intent.Confidence < 0.8 {
			t.Errorf("Classify(%q) confidence = %v, want >= 0.8", q, intent.Confidence)
		}
	}
}

func TestClassifyKeywordFallback(t *testing.T) {
	c := NewIntentClassifier()

	tests := []struct {
		question string
		category models.IntentCategory
		rule     string
	}{
		{"is my laptop ok", models.IntentDeviceListing, "keyword_device"},
		{"anything recent?", models.IntentTimeAnalysis, "keyword_time"},
		{"show me the history", models.IntentDataCoverage, "keyword_data"},
	}

	for _, tt := range tests {
		t.Run(tt.question, func(t *testing.T) {
			intent := c.Classify(tt.question)
			if intent.Category != tt.category {
				t.Fatalf("category = %q, want %q", intent.Category, tt.category)
			}
			if intent.MatchedRule != tt.rule {
				t.Errorf("matched rule = %q, want %q", intent.MatchedRule, tt.rule)
			}
			if intent.Confidence != 0.70 {
				t.Errorf("confidence = %v, want 0.70 for a keyword-bag match", intent.Confidence)
			}
		})
	}
}

func TestClassifyDefault(t *testing.T) {
	c := NewIntentClassifier()

	intent := c.Classify("hello")
	if intent.Category != models.IntentGeneralStatus {
		t.Fatalf("category = %q, want general_status", intent.Category)
	}
	if intent.MatchedRule != "default" {
		t.Errorf("matched rule = %q, want default", intent.MatchedRule)
	}
	if intent.Confidence < 0.5 || intent.Confidence > 0.6 {
		t.Errorf("confidence = %v, want within [0.5, 0.6]", intent.Confidence)
	}
}

func TestClassifyIsPure(t *testing.T) {
	c := NewIntentClassifier()

	first := c.Classify("was vpn on this morning?")
	for i := 0; i < 10; i++ {
		if got := c.Classify("was vpn on this morning?"); got != first {
			t.Fatalf("classification changed between calls: %+v vs %+v", got, first)
		}
	}
}
