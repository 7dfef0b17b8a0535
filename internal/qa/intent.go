package qa

import (
	"regexp"
	"strings"

	"github.com/machine-telemetry-qa-platform/internal/models"
)

// Classification confidence tiers. A primary pattern hit is a strong signal;
// the keyword-bag fallback is a weaker hint; the final default is a guess.
const (
	confidencePrimary  = 0.85
	confidenceFallback = 0.70
	confidenceDefault  = 0.55
)

// IntentRule maps a category to its ordered sub-patterns. Any sub-pattern
// match claims the category; categories are tried in table order and the
// first claiming category wins.
type IntentRule struct {
	Category models.IntentCategory
	Patterns []*regexp.Regexp
}

// defaultIntentRules is the built-in English rule table. Category order is a
// contract: a question matching both vpn_status and general_status patterns
// classifies as vpn_status because it appears first.
func defaultIntentRules() []IntentRule {
	return []IntentRule{
		{
			Category: models.IntentVPNStatus,
			Patterns: compileAll(
				`vpn.*(connect|active|enabled|status|\bon\b|\bup\b)`,
				`(connect|using|status).*vpn`,
				`\bvpn\b`,
				`\bproxy\b`,
				`connection.*secure`,
			),
		},
		{
			Category: models.IntentSpeedInfo,
			Patterns: compileAll(
				`speed.*test`,
				`internet.*speed`,
				`download.*speed`,
				`upload.*speed`,
				`\bping\b`,
				`\bbandwidth\b`,
				`\bmbps\b`,
				`how fast`,
			),
		},
		{
			Category: models.IntentSystemInfo,
			Patterns: compileAll(
				`system.*(status|performance|load)`,
				`\bcpu\b`,
				`\bram\b`,
				`memory.*(usage|used|full)`,
				`disk.*(usage|used|full|space)`,
				`\bperformance\b`,
			),
		},
		{
			Category: models.IntentLocationInfo,
			Patterns: compileAll(
				`ip.*address`,
				`\blocation\b`,
				`\bwhere\b`,
				`which.*city`,
				`which.*country`,
			),
		},
		{
			Category: models.IntentDeviceListing,
			Patterns: compileAll(
				`(which|how many|what).*(computer|device|machine|host)`,
				`list.*(computer|device|machine|host)`,
				`(computer|device|machine|host)s?.*report`,
			),
		},
		{
			Category: models.IntentTimeAnalysis,
			Patterns: compileAll(
				`(earliest|latest|first|last).*(record|snapshot|entry)`,
				`(when|what time).*(record|data|snapshot)`,
				`record.*count`,
			),
		},
		{
			Category: models.IntentDataCoverage,
			Patterns: compileAll(
				`(data|record).*coverage`,
				`how (much|many).*(data|records)`,
				`(missing|gaps).*(data|records)`,
				`which.*sections`,
			),
		},
		{
			Category: models.IntentGeneralStatus,
			Patterns: compileAll(
				`what.*(status|happened|going on)`,
				`\bsummary\b`,
				`\boverview\b`,
				`how.*(everything|things)`,
			),
		},
	}
}

// Keyword bags for the coarse fallback tier, checked in this order when no
// category pattern matched.
var (
	deviceWords = []string{"computer", "device", "machine", "host", "laptop", "pc"}
	timeWords   = []string{"when", "time", "hour", "date", "recent"}
	dataWords   = []string{"data", "record", "log", "history"}
)

// IntentClassifier assigns a category to question text using an ordered,
// immutable rule table. It is a pure function of its input and safe for
// concurrent use.
type IntentClassifier struct {
	rules []IntentRule
}

// NewIntentClassifier returns a classifier with the built-in English rules.
func NewIntentClassifier() *IntentClassifier {
	return &IntentClassifier{rules: defaultIntentRules()}
}

// NewIntentClassifierWithRules returns a classifier over a custom rule table.
func NewIntentClassifierWithRules(rules []IntentRule) *IntentClassifier {
	return &IntentClassifier{rules: rules}
}

// Classify returns the intent of the question. It always returns a usable
// intent; unrecognized questions fall back to general_status.
func (c *IntentClassifier) Classify(question string) models.Intent {
	q := strings.ToLower(question)

	for _, rule := range c.rules {
		for _, p := range rule.Patterns {
			if p.MatchString(q) {
				return models.Intent{
					Category:    rule.Category,
					Confidence:  confidencePrimary,
					MatchedRule: p.String(),
				}
			}
		}
	}

	// Coarse keyword-bag tier: a weaker hint than a pattern hit, but better
	// than defaulting straight to general_status.
	if containsAny(q, deviceWords) {
		return models.Intent{Category: models.IntentDeviceListing, Confidence: confidenceFallback, MatchedRule: "keyword_device"}
	}
	if containsAny(q, timeWords) {
		return models.Intent{Category: models.IntentTimeAnalysis, Confidence: confidenceFallback, MatchedRule: "keyword_time"}
	}
	if containsAny(q, dataWords) {
		return models.Intent{Category: models.IntentDataCoverage, Confidence: confidenceFallback, MatchedRule: "keyword_data"}
	}

	return models.Intent{
		Category:    models.IntentGeneralStatus,
		Confidence:  confidenceDefault,
		MatchedRule: "default",
	}
}

func compileAll(patterns ...string) []*regexp.Regexp {
	res := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		res = append(res, regexp.MustCompile(p))
	}
	return res
}

func containsAny(q string, words []string) bool {
	for _, w := range words {
		if strings.Contains(q, w) {
			return true
		}
	}
	return false
}
