package qa

import (
	"testing"
	"time"
)

// Fixed reference clock: 2024-01-15 16:00:00 UTC, a Monday.
var testNow = time.Date(2024, 1, 15, 16, 0, 0, 0, time.UTC)

func TestResolveRelativeDurations(t *testing.T) {
	r := NewTimeRangeResolver()

	tests := []struct {
		question string
		start    time.Time
	}{
		{"was the vpn on in the last 2 hours?", testNow.Add(-2 * time.Hour)},
		{"last 30 minutes please", testNow.Add(-30 * time.Minute)},
		{"speed over the last 3 days", testNow.Add(-3 * 24 * time.Hour)},
		{"last 1 hour", testNow.Add(-time.Hour)},
	}

	for _, tt := range tests {
		t.Run(tt.question, func(t *testing.T) {
			w := r.Resolve(tt.question, testNow)
			if w.MatchedRule != "relative_duration" {
				t.Fatalf("matched rule = %q, want relative_duration", w.MatchedRule)
			}
			if !w.End.Equal(testNow) {
				t.Errorf("end = %v, want %v", w.End, testNow)
			}
			if !w.Start.Equal(tt.start) {
				t.Errorf("start = %v, want %v", w.Start, tt.start)
			}
		})
	}
}

func TestResolveRelativeDayCount(t *testing.T) {
	r := NewTimeRangeResolver()

	tests := []struct {
		question string
		day      time.Time
	}{
		{"what happened 2 days ago", time.Date(2024, 1, 13, 0, 0, 0, 0, time.UTC)},
		{"1 week ago", time.Date(2024, 1, 8, 0, 0, 0, 0, time.UTC)},
		{"1 month ago", time.Date(2023, 12, 16, 0, 0, 0, 0, time.UTC)},
	}

	for _, tt := range tests {
		t.Run(tt.question, func(t *testing.T) {
			w := r.Resolve(tt.question, testNow)
			if w.MatchedRule != "relative_day" {
				t.Fatalf("matched rule = %q, want relative_day", w.MatchedRule)
			}
			if !w.Start.Equal(tt.day) {
				t.Errorf("start = %v, want %v", w.Start, tt.day)
			}
			wantEnd := tt.day.Add(24*time.Hour - time.Millisecond)
			if !w.End.Equal(wantEnd) {
				t.Errorf("end = %v, want %v", w.End, wantEnd)
			}
		})
	}
}

func TestResolveClockTime(t *testing.T) {
	r := NewTimeRangeResolver()

	w := r.Resolve("how fast was my internet at 14:30?", testNow)
	if w.MatchedRule != "clock_time" {
		t.Fatalf("matched rule = %q, want clock_time", w.MatchedRule)
	}
	target := time.Date(2024, 1, 15, 14, 30, 0, 0, time.UTC)
	if !w.Start.Equal(target.Add(-30 * time.Minute)) {
		t.Errorf("start = %v, want %v", w.Start, target.Add(-30*time.Minute))
	}
	if !w.End.Equal(target.Add(30 * time.Minute)) {
		t.Errorf("end = %v, want %v", w.End, target.Add(30*time.Minute))
	}
}

func TestResolveClockTimeInFutureStaysOnToday(t *testing.T) {
	// Asking about 23:00 at 16:00 still builds the window around today's
	// 23:00; there is no rollback to the previous day.
	r := NewTimeRangeResolver()

	w := r.Resolve("what about 23:00?", testNow)
	target := time.Date(2024, 1, 15, 23, 0, 0, 0, time.UTC)
	if !w.Start.Equal(target.Add(-30 * time.Minute)) {
		t.Errorf("start = %v, want %v", w.Start, target.Add(-30*time.Minute))
	}
	if !w.End.Equal(target.Add(30 * time.Minute)) {
		t.Errorf("end = %v, want %v", w.End, target.Add(30*time.Minute))
	}
}

func TestResolveNamedDays(t *testing.T) {
	r := NewTimeRangeResolver()

	w := r.Resolve("how is the system today?", testNow)
	if w.MatchedRule != "today" {
		t.Fatalf("matched rule = %q, want today", w.MatchedRule)
	}
	if !w.Start.Equal(time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("start = %v, want midnight", w.Start)
	}
	if !w.End.Equal(testNow) {
		t.Errorf("end = %v, want now", w.End)
	}

	w = r.Resolve("was the vpn on yesterday?", testNow)
	if w.MatchedRule != "yesterday" {
		t.Fatalf("matched rule = %q, want yesterday", w.MatchedRule)
	}
	if !w.Start.Equal(time.Date(2024, 1, 14, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("start = %v, want previous midnight", w.Start)
	}
	wantEnd := time.Date(2024, 1, 14, 23, 59, 59, int(999*time.Millisecond), time.UTC)
	if !w.End.Equal(wantEnd) {
		t.Errorf("end = %v, want %v", w.End, wantEnd)
	}
}

func TestResolveDayPartsAndPeriods(t *testing.T) {
	r := NewTimeRangeResolver()

	tests := []struct {
		question string
		rule     string
		lookback time.Duration
	}{
		{"any vpn use this morning?", "this_morning", 12 * time.Hour},
		{"speed this evening?", "this_evening", 6 * time.Hour},
		{"devices this week", "this_week", 7 * 24 * time.Hour},
		{"coverage this month", "this_month", 30 * 24 * time.Hour},
	}

	for _, tt := range tests {
		t.Run(tt.rule, func(t *testing.T) {
			w := r.Resolve(tt.question, testNow)
			if w.MatchedRule != tt.rule {
				t.Fatalf("matched rule = %q, want %q", w.MatchedRule, tt.rule)
			}
			if !w.Start.Equal(testNow.Add(-tt.lookback)) {
				t.Errorf("start = %v, want %v", w.Start, testNow.Add(-tt.lookback))
			}
			if !w.End.Equal(testNow) {
				t.Errorf("end = %v, want now", w.End)
			}
		})
	}
}

func TestResolveDefaultWindow(t *testing.T) {
	r := NewTimeRangeResolver()

	w := r.Resolve("is the vpn connected?", testNow)
	if w.MatchedRule != "default_24h" {
		t.Fatalf("matched rule = %q, want default_24h", w.MatchedRule)
	}
	if !w.Start.Equal(testNow.Add(-24 * time.Hour)) {
		t.Errorf("start = %v, want now-24h", w.Start)
	}
	if !w.End.Equal(testNow) {
		t.Errorf("end = %v, want now", w.End)
	}
}

func TestResolvePriorityOrderIsFixed(t *testing.T) {
	r := NewTimeRangeResolver()

	// A question carrying both a clock time and a named day resolves by the
	// higher-priority clock rule.
	w := r.Resolve("today at 14:30", testNow)
	if w.MatchedRule != "clock_time" {
		t.Errorf("matched rule = %q, want clock_time to win over today", w.MatchedRule)
	}

	// Relative duration outranks everything.
	w = r.Resolve("last 2 hours today at 14:30", testNow)
	if w.MatchedRule != "relative_duration" {
		t.Errorf("matched rule = %q, want relative_duration", w.MatchedRule)
	}
}

func TestResolvedWindowsAreOrdered(t *testing.T) {
	r := NewTimeRangeResolver()

	questions := []string{
		"last 5 minutes", "3 days ago", "09:45", "today", "yesterday",
		"this morning", "this evening", "this week", "this month", "anything",
	}
	for _, q := range questions {
		w := r.Resolve(q, testNow)
		if err := w.Validate(); err != nil {
			t.Errorf("Resolve(%q): %v", q, err)
		}
	}
}
