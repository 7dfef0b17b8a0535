package qa

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/machine-telemetry-qa-platform/internal/models"
)

// TimeRule pairs a matcher with a window builder. Rules are tried in table
// order and the first match wins; there is no scoring or backtracking. The
// table order is a contract: reordering it changes which window a question
// resolves to when multiple phrases appear (e.g. "today at 14:30").
type TimeRule struct {
	Name  string
	Re    *regexp.Regexp
	Build func(m []string, now time.Time) models.TimeWindow
}

// clockTolerance is the half-width of the window built around a specific
// clock time ("at 14:30" means 14:00-15:00).
const clockTolerance = 30 * time.Minute

// defaultTimeRules is the built-in English rule table, highest priority first:
//
//  1. relative duration  "last N minutes/hours/days"
//  2. relative day count "N days/weeks/months ago" (whole calendar day)
//  3. clock time         "HH:MM" (+-30min around today's occurrence)
//  4. named day          "today" / "yesterday"
//  5. day part           "this morning" (12h) / "this evening" (6h)
//  6. named period       "this week" (7d) / "this month" (30d)
func defaultTimeRules() []TimeRule {
	return []TimeRule{
		{
			Name: "relative_duration",
			Re:   regexp.MustCompile(`last (\d+) (minute|hour|day)s?`),
			Build: func(m []string, now time.Time) models.TimeWindow {
				n, _ := strconv.Atoi(m[1])
				var d time.Duration
				switch m[2] {
				case "minute":
					d = time.Duration(n) * time.Minute
				case "hour":
					d = time.Duration(n) * time.Hour
				case "day":
					d = time.Duration(n) * 24 * time.Hour
				}
				return models.TimeWindow{Start: now.Add(-d), End: now}
			},
		},
		{
			Name: "relative_day",
			Re:   regexp.MustCompile(`(\d+) (day|week|month)s? ago`),
			Build: func(m []string, now time.Time) models.TimeWindow {
				n, _ := strconv.Atoi(m[1])
				days := n
				switch m[2] {
				case "week":
					days = n * 7
				case "month":
					days = n * 30
				}
				return wholeDay(now.AddDate(0, 0, -days))
			},
		},
		{
			Name: "clock_time",
			Re:   regexp.MustCompile(`\b([01]?\d|2[0-3]):([0-5]\d)\b`),
			Build: func(m []string, now time.Time) models.TimeWindow {
				hour, _ := strconv.Atoi(m[1])
				minute, _ := strconv.Atoi(m[2])
				// Always today's occurrence, even when HH:MM is still ahead
				// of now; legacy behavior, kept deliberately.
				target := time.Date(now.Year(), now.Month(), now.Day(), hour, minute, 0, 0, now.Location())
				return models.TimeWindow{
					Start: target.Add(-clockTolerance),
					End:   target.Add(clockTolerance),
				}
			},
		},
		{
			Name: "today",
			Re:   regexp.MustCompile(`\btoday\b`),
			Build: func(m []string, now time.Time) models.TimeWindow {
				return models.TimeWindow{Start: midnight(now), End: now}
			},
		},
		{
			Name: "yesterday",
			Re:   regexp.MustCompile(`\byesterday\b`),
			Build: func(m []string, now time.Time) models.TimeWindow {
				return wholeDay(now.AddDate(0, 0, -1))
			},
		},
		{
			Name: "this_morning",
			Re:   regexp.MustCompile(`\bthis morning\b`),
			Build: func(m []string, now time.Time) models.TimeWindow {
				return models.TimeWindow{Start: now.Add(-12 * time.Hour), End: now}
			},
		},
		{
			Name: "this_evening",
			Re:   regexp.MustCompile(`\bthis evening\b`),
			Build: func(m []string, now time.Time) models.TimeWindow {
				return models.TimeWindow{Start: now.Add(-6 * time.Hour), End: now}
			},
		},
		{
			Name: "this_week",
			Re:   regexp.MustCompile(`\bthis week\b`),
			Build: func(m []string, now time.Time) models.TimeWindow {
				return models.TimeWindow{Start: now.Add(-7 * 24 * time.Hour), End: now}
			},
		},
		{
			Name: "this_month",
			Re:   regexp.MustCompile(`\bthis month\b`),
			Build: func(m []string, now time.Time) models.TimeWindow {
				return models.TimeWindow{Start: now.Add(-30 * 24 * time.Hour), End: now}
			},
		},
	}
}

// TimeRangeResolver extracts a time window from question text using an
// ordered, immutable rule table. It holds no mutable state and is safe for
// concurrent use.
type TimeRangeResolver struct {
	rules []TimeRule
}

// NewTimeRangeResolver returns a resolver with the built-in English rules.
func NewTimeRangeResolver() *TimeRangeResolver {
	return &TimeRangeResolver{rules: defaultTimeRules()}
}

// NewTimeRangeResolverWithRules returns a resolver over a custom rule table,
// allowing localized or extended pattern sets without touching the pipeline.
func NewTimeRangeResolverWithRules(rules []TimeRule) *TimeRangeResolver {
	return &TimeRangeResolver{rules: rules}
}

// Resolve returns the window the question refers to, relative to now.
// When no rule matches, the window defaults to the last 24 hours and is
// tagged "default_24h".
func (r *TimeRangeResolver) Resolve(question string, now time.Time) models.TimeWindow {
	q := strings.ToLower(question)
	for _, rule := range r.rules {
		if m := rule.Re.FindStringSubmatch(q); m != nil {
			w := rule.Build(m, now)
			w.MatchedRule = rule.Name
			return w
		}
	}
	return models.TimeWindow{
		Start:       now.Add(-24 * time.Hour),
		End:         now,
		MatchedRule: "default_24h",
	}
}

// midnight returns 00:00:00 of t's calendar day.
func midnight(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// wholeDay returns the closed window [00:00:00, 23:59:59.999] of t's day.
func wholeDay(t time.Time) models.TimeWindow {
	start := midnight(t)
	return models.TimeWindow{
		Start: start,
		End:   start.Add(24*time.Hour - time.Millisecond),
	}
}
