package qa

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/machine-telemetry-qa-platform/internal/models"
)

type fakeSearcher struct {
	records   []models.MonitoringSnapshot
	err       error
	lastQuery models.CompiledQuery
	calls     int
}

func (f *fakeSearcher) Search(ctx context.Context, query models.CompiledQuery) ([]models.MonitoringSnapshot, error) {
	f.lastQuery = query
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.records, nil
}

type fakeGenerator struct {
	text  string
	err   error
	calls int
}

func (f *fakeGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	f.calls++
	return f.text, f.err
}

func newTestPipeline(searcher SnapshotSearcher, generator Generator) *Pipeline {
	return NewPipeline(
		NewTimeRangeResolver(),
		NewIntentClassifier(),
		NewQueryCompiler(0, models.QueryScope{}),
		searcher,
		generator,
		DefaultPipelineConfig(),
	)
}

func TestProcessVPNQuestionEndToEnd(t *testing.T) {
	record := models.MonitoringSnapshot{
		CollectedAt: time.Date(2024, 1, 15, 15, 10, 0, 0, time.UTC),
		Hostname:    "office-pc",
		Username:    "alice",
		WebData: &models.WebData{
			VPNDetection: &models.VPNDetection{Status: "no_vpn", Message: "No VPN or proxy in use."},
		},
	}
	searcher := &fakeSearcher{records: []models.MonitoringSnapshot{record}}
	p := newTestPipeline(searcher, nil)

	answer := p.Process(context.Background(), "was the vpn on in the last 2 hours?", testNow)

	if answer.Intent.Category != models.IntentVPNStatus {
		t.Fatalf("intent = %q, want vpn_status", answer.Intent.Category)
	}
	if answer.StructuredText != "VPN status: no_vpn. No VPN or proxy in use." {
		t.Errorf("structured text = %q", answer.StructuredText)
	}
	wantStart := time.Date(2024, 1, 15, 14, 0, 0, 0, time.UTC)
	if !answer.TimeWindow.Start.Equal(wantStart) || !answer.TimeWindow.End.Equal(testNow) {
		t.Errorf("window = [%v, %v], want [14:00, 16:00]", answer.TimeWindow.Start, answer.TimeWindow.End)
	}
	if answer.RecordCount != 1 {
		t.Errorf("record count = %d, want 1", answer.RecordCount)
	}
	// Deterministic category: no enrichment, structured text verbatim.
	if answer.NaturalText != answer.StructuredText {
		t.Errorf("natural text = %q, want structured text verbatim", answer.NaturalText)
	}
	// The compiled query must carry the VPN existence filter.
	if len(searcher.lastQuery.RequireSections) != 1 || searcher.lastQuery.RequireSections[0] != SectionVPNDetection {
		t.Errorf("require sections = %v", searcher.lastQuery.RequireSections)
	}
}

func TestProcessEmptyStoreReturnsSentinel(t *testing.T) {
	searcher := &fakeSearcher{}
	p := newTestPipeline(searcher, nil)

	answer := p.Process(context.Background(), "today", testNow)

	if answer.StructuredText != NotFoundText {
		t.Errorf("structured text = %q, want sentinel", answer.StructuredText)
	}
	if answer.RecordCount != 0 {
		t.Errorf("record count = %d, want 0", answer.RecordCount)
	}
	if answer.TimeWindow.MatchedRule != "today" {
		t.Errorf("matched rule = %q, want today", answer.TimeWindow.MatchedRule)
	}
}

func TestProcessDeviceListingAcrossWindow(t *testing.T) {
	mk := func(user, host string, ts time.Time) models.MonitoringSnapshot {
		return models.MonitoringSnapshot{CollectedAt: ts, Hostname: host, Username: user}
	}
	searcher := &fakeSearcher{records: []models.MonitoringSnapshot{
		mk("bob", "lab-pc", testNow.Add(-time.Hour)),
		mk("alice", "office-pc", testNow.Add(-3*time.Hour)),
		mk("bob", "lab-pc", testNow.Add(-30*time.Hour)),
	}}
	p := newTestPipeline(searcher, nil)

	answer := p.Process(context.Background(), "how many computers have data this week?", testNow)

	if answer.Intent.Category != models.IntentDeviceListing {
		t.Fatalf("intent = %q, want device_listing", answer.Intent.Category)
	}
	if answer.TimeWindow.MatchedRule != "this_week" {
		t.Errorf("matched rule = %q, want this_week", answer.TimeWindow.MatchedRule)
	}
	want := "2 devices reported data: alice@office-pc, bob@lab-pc"
	if answer.StructuredText != want {
		t.Errorf("structured text = %q, want %q", answer.StructuredText, want)
	}
}

func TestProcessRepositoryErrorDegradesToNoData(t *testing.T) {
	searcher := &fakeSearcher{err: errors.New("connection refused")}
	p := newTestPipeline(searcher, nil)

	answer := p.Process(context.Background(), "system status today?", testNow)

	if answer.StructuredText != NotFoundText {
		t.Errorf("structured text = %q, want sentinel on repository failure", answer.StructuredText)
	}
	if answer.RecordCount != 0 {
		t.Errorf("record count = %d, want 0", answer.RecordCount)
	}
}

func TestProcessEnrichesOnlyGeneralStatus(t *testing.T) {
	records := []models.MonitoringSnapshot{{
		CollectedAt: testNow.Add(-time.Hour),
		Hostname:    "office-pc",
		Username:    "alice",
		SystemData: &models.SystemData{
			CPU: &models.CPUStats{CPUPercent: 12.0},
		},
	}}

	gen := &fakeGenerator{text: "Everything looks calm: CPU is barely busy."}
	p := newTestPipeline(&fakeSearcher{records: records}, gen)

	// general_status question: enrichment applies.
	answer := p.Process(context.Background(), "what happened?", testNow)
	if answer.Intent.Category != models.IntentGeneralStatus {
		t.Fatalf("intent = %q, want general_status", answer.Intent.Category)
	}
	if answer.NaturalText != gen.text {
		t.Errorf("natural text = %q, want generated text", answer.NaturalText)
	}
	if gen.calls != 1 {
		t.Errorf("generator calls = %d, want 1", gen.calls)
	}

	// Deterministic category: the generator must not run.
	answer = p.Process(context.Background(), "what is my cpu usage?", testNow)
	if answer.NaturalText != answer.StructuredText {
		t.Errorf("natural text = %q, want structured verbatim", answer.NaturalText)
	}
	if gen.calls != 1 {
		t.Errorf("generator calls = %d, want still 1", gen.calls)
	}
}

func TestProcessGeneratorFailureKeepsStructuredText(t *testing.T) {
	records := []models.MonitoringSnapshot{{
		CollectedAt: testNow.Add(-time.Hour),
		Hostname:    "office-pc",
		SystemData:  &models.SystemData{CPU: &models.CPUStats{CPUPercent: 12.0}},
	}}

	tests := []struct {
		name string
		gen  *fakeGenerator
	}{
		{"error", &fakeGenerator{err: errors.New("model unavailable")}},
		{"empty output", &fakeGenerator{text: "   "}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newTestPipeline(&fakeSearcher{records: records}, tt.gen)
			answer := p.Process(context.Background(), "summary please", testNow)
			if answer.NaturalText != answer.StructuredText {
				t.Errorf("natural text = %q, want structured fallback", answer.NaturalText)
			}
		})
	}
}

func TestProcessIsIdempotent(t *testing.T) {
	records := []models.MonitoringSnapshot{{
		CollectedAt: testNow.Add(-time.Hour),
		Hostname:    "office-pc",
		Username:    "alice",
		WebData: &models.WebData{
			SpeedTest: &models.SpeedTest{DownloadSpeed: 80, UploadSpeed: 10, Ping: 20},
		},
	}}
	p := newTestPipeline(&fakeSearcher{records: records}, nil)

	first := p.Process(context.Background(), "how fast is my internet?", testNow)
	second := p.Process(context.Background(), "how fast is my internet?", testNow)

	// The answer id and processing timestamp differ per call; everything
	// else must be identical for identical inputs and store state.
	first.ID, second.ID = "", ""
	first.Timestamp, second.Timestamp = time.Time{}, time.Time{}
	if first != second {
		t.Errorf("answers differ:\n%+v\n%+v", first, second)
	}
}

func TestProcessNeverReturnsEmptyAnswerText(t *testing.T) {
	p := newTestPipeline(&fakeSearcher{err: errors.New("down")}, &fakeGenerator{err: errors.New("down")})

	for _, q := range []string{"", "vpn?", "garbage question 12:99", "what happened?"} {
		answer := p.Process(context.Background(), q, testNow)
		if answer.StructuredText == "" || answer.NaturalText == "" {
			t.Errorf("Process(%q) returned empty text: %+v", q, answer)
		}
	}
}
