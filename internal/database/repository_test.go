package database

import (
	"strings"
	"testing"
	"time"

	"github.com/machine-telemetry-qa-platform/internal/models"
)

func TestSectionPredicate(t *testing.T) {
	tests := []struct {
		name     string
		path     string
		argIndex int
		want     string
		wantKey  string
		wantErr  bool
	}{
		{
			name:     "web data vpn detection",
			path:     "web_data.vpn_detection",
			argIndex: 3,
			want:     "web_data ? $3",
			wantKey:  "vpn_detection",
		},
		{
			name:     "system data cpu",
			path:     "system_data.cpu",
			argIndex: 4,
			want:     "system_data ? $4",
			wantKey:  "cpu",
		},
		{
			name:    "unknown column",
			path:    "secrets.token",
			wantErr: true,
		},
		{
			name:    "no key segment",
			path:    "web_data",
			wantErr: true,
		},
		{
			name:    "empty path",
			path:    "",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := sectionPredicate(tt.path, tt.argIndex)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("sectionPredicate(%q) = %q, want error", tt.path, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("sectionPredicate(%q): %v", tt.path, err)
			}
			if got != tt.want {
				t.Errorf("predicate = %q, want %q", got, tt.want)
			}
			if key := sectionKey(tt.path); key != tt.wantKey {
				t.Errorf("sectionKey = %q, want %q", key, tt.wantKey)
			}
		})
	}
}

func TestUnmarshalSectionEmptyInputLeavesNil(t *testing.T) {
	var dest *StoreStats
	if err := unmarshalSection(nil, &dest); err != nil {
		t.Fatalf("unmarshalSection(nil): %v", err)
	}
	if dest != nil {
		t.Errorf("dest = %+v, want nil for NULL column", dest)
	}

	if err := unmarshalSection([]byte(`{"total_snapshots": 7}`), &dest); err != nil {
		t.Fatalf("unmarshalSection: %v", err)
	}
	if dest == nil || dest.TotalSnapshots != 7 {
		t.Errorf("dest = %+v, want decoded value", dest)
	}
}

func TestSectionValuesBindNullForMissingSections(t *testing.T) {
	collected := time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC)

	// System-only snapshot, the shape an offline machine produces
	systemOnly := &models.MonitoringSnapshot{
		CollectedAt: collected,
		Hostname:    "office-pc",
		Username:    "alice",
		SystemData: &models.SystemData{
			CPU: &models.CPUStats{CPUPercent: 42.5},
		},
	}

	systemJSON, webJSON, err := sectionValues(systemOnly)
	if err != nil {
		t.Fatalf("sectionValues: %v", err)
	}
	if systemJSON == nil {
		t.Error("systemJSON = nil, want encoded section")
	}
	if b, ok := systemJSON.([]byte); !ok || !strings.Contains(string(b), `"cpu_percent":42.5`) {
		t.Errorf("systemJSON = %v, want JSON bytes carrying cpu_percent", systemJSON)
	}
	// The web section must be an untyped nil so the driver binds SQL NULL.
	// A typed-nil []byte would reach Postgres as zero-length jsonb input
	// and the insert would fail.
	if webJSON != nil {
		t.Errorf("webJSON = %#v, want untyped nil for missing section", webJSON)
	}

	webOnly := &models.MonitoringSnapshot{
		CollectedAt: collected,
		Hostname:    "office-pc",
		Username:    "alice",
		WebData: &models.WebData{
			VPNDetection: &models.VPNDetection{Status: "no_vpn"},
		},
	}

	systemJSON, webJSON, err = sectionValues(webOnly)
	if err != nil {
		t.Fatalf("sectionValues: %v", err)
	}
	if systemJSON != nil {
		t.Errorf("systemJSON = %#v, want untyped nil for missing section", systemJSON)
	}
	if webJSON == nil {
		t.Error("webJSON = nil, want encoded section")
	}
}

func TestBuildSearchQueryPlaceholderNumbering(t *testing.T) {
	window := models.TimeWindow{
		Start: time.Date(2026, 3, 9, 0, 0, 0, 0, time.UTC),
		End:   time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC),
	}

	query := models.CompiledQuery{
		Window:          window,
		RequireSections: []string{"web_data.vpn_detection", "system_data.cpu"},
		Scope:           models.QueryScope{Hostname: "office-pc", Username: "alice"},
		Descending:      true,
		Limit:           25,
	}

	sqlQuery, args, err := buildSearchQuery(query)
	if err != nil {
		t.Fatalf("buildSearchQuery: %v", err)
	}

	wantClauses := []string{
		"collected_at >= $1 AND collected_at <= $2",
		"web_data ? $3",
		"system_data ? $4",
		"hostname = $5",
		"username = $6",
		"ORDER BY collected_at DESC",
		"LIMIT $7",
	}
	for _, clause := range wantClauses {
		if !strings.Contains(sqlQuery, clause) {
			t.Errorf("query missing clause %q:\n%s", clause, sqlQuery)
		}
	}

	wantArgs := []interface{}{
		window.Start, window.End, "vpn_detection", "cpu", "office-pc", "alice", 25,
	}
	if len(args) != len(wantArgs) {
		t.Fatalf("got %d args, want %d: %v", len(args), len(wantArgs), args)
	}
	for i, want := range wantArgs {
		if args[i] != want {
			t.Errorf("args[%d] = %v, want %v", i, args[i], want)
		}
	}
}

func TestBuildSearchQueryDefaults(t *testing.T) {
	sqlQuery, args, err := buildSearchQuery(models.CompiledQuery{
		Window: models.TimeWindow{
			Start: time.Date(2026, 3, 9, 0, 0, 0, 0, time.UTC),
			End:   time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC),
		},
	})
	if err != nil {
		t.Fatalf("buildSearchQuery: %v", err)
	}

	if !strings.Contains(sqlQuery, "ORDER BY collected_at ASC") {
		t.Errorf("query should default to ascending order:\n%s", sqlQuery)
	}
	if !strings.Contains(sqlQuery, "LIMIT $3") {
		t.Errorf("limit should be the third placeholder with no extra filters:\n%s", sqlQuery)
	}
	if got := args[len(args)-1]; got != models.DefaultResultLimit {
		t.Errorf("limit arg = %v, want default %d", got, models.DefaultResultLimit)
	}
}

func TestBuildSearchQueryRejectsUnknownSection(t *testing.T) {
	_, _, err := buildSearchQuery(models.CompiledQuery{
		RequireSections: []string{"secrets.token"},
	})
	if err == nil {
		t.Fatal("expected error for unknown section column")
	}
}
