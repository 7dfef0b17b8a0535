package models

import (
	"encoding/json"
	"strings"
	"testing"
	"time"
)

func validSnapshot() MonitoringSnapshot {
	return MonitoringSnapshot{
		CollectedAt: time.Date(2024, 1, 15, 15, 10, 0, 0, time.UTC),
		Hostname:    "office-pc",
		Username:    "alice",
		SystemData:  &SystemData{CPU: &CPUStats{CPUPercent: 42.5}},
	}
}

func TestSnapshotValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*MonitoringSnapshot)
		wantErr string
	}{
		{"valid", func(s *MonitoringSnapshot) {}, ""},
		{"missing timestamp", func(s *MonitoringSnapshot) { s.CollectedAt = time.Time{} }, "collection_timestamp"},
		{"missing hostname", func(s *MonitoringSnapshot) { s.Hostname = "" }, "hostname"},
		{"no data sections", func(s *MonitoringSnapshot) { s.SystemData = nil; s.WebData = nil }, "at least one"},
		{"web data only is enough", func(s *MonitoringSnapshot) {
			s.SystemData = nil
			s.WebData = &WebData{IPAddress: "203.0.113.7"}
		}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := validSnapshot()
			tt.mutate(&s)
			err := s.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("Validate() = %v, want nil", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("Validate() = %v, want error containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestSnapshotAccessorsDegradeOnMissingSections(t *testing.T) {
	var bare MonitoringSnapshot

	if _, ok := bare.CPUPercent(); ok {
		t.Error("CPUPercent() ok on bare snapshot")
	}
	if _, ok := bare.MemoryPercent(); ok {
		t.Error("MemoryPercent() ok on bare snapshot")
	}
	if _, ok := bare.DiskPercent(); ok {
		t.Error("DiskPercent() ok on bare snapshot")
	}
	if _, ok := bare.VPN(); ok {
		t.Error("VPN() ok on bare snapshot")
	}
	if _, ok := bare.Speed(); ok {
		t.Error("Speed() ok on bare snapshot")
	}
	if _, ok := bare.Location(); ok {
		t.Error("Location() ok on bare snapshot")
	}
	if _, ok := bare.IP(); ok {
		t.Error("IP() ok on bare snapshot")
	}

	// A present parent section with absent children still degrades.
	partial := MonitoringSnapshot{
		SystemData: &SystemData{Memory: &MemoryStats{}},
		WebData:    &WebData{},
	}
	if _, ok := partial.MemoryPercent(); ok {
		t.Error("MemoryPercent() ok without virtual_memory")
	}
	if _, ok := partial.IP(); ok {
		t.Error("IP() ok on empty ip_address")
	}
}

func TestSnapshotAccessorsReturnValues(t *testing.T) {
	s := validSnapshot()
	s.SystemData.Memory = &MemoryStats{VirtualMemory: &VirtualMemory{Percent: 61.2}}
	s.SystemData.Disk = &DiskStats{DiskUsage: &DiskUsage{Main: &PartitionUsage{Percent: 77.8}}}
	s.WebData = &WebData{
		IPAddress:    "203.0.113.7",
		IPInfo:       &IPInfo{City: "Istanbul", Country: "TR"},
		SpeedTest:    &SpeedTest{DownloadSpeed: 94.21, UploadSpeed: 11.38, Ping: 14.5},
		VPNDetection: &VPNDetection{Status: "no_vpn"},
	}

	if v, ok := s.CPUPercent(); !ok || v != 42.5 {
		t.Errorf("CPUPercent() = %v, %v", v, ok)
	}
	if v, ok := s.MemoryPercent(); !ok || v != 61.2 {
		t.Errorf("MemoryPercent() = %v, %v", v, ok)
	}
	if v, ok := s.DiskPercent(); !ok || v != 77.8 {
		t.Errorf("DiskPercent() = %v, %v", v, ok)
	}
	if vpn, ok := s.VPN(); !ok || vpn.Status != "no_vpn" {
		t.Errorf("VPN() = %+v, %v", vpn, ok)
	}
	if speed, ok := s.Speed(); !ok || speed.DownloadSpeed != 94.21 {
		t.Errorf("Speed() = %+v, %v", speed, ok)
	}
	if loc, ok := s.Location(); !ok || loc.City != "Istanbul" {
		t.Errorf("Location() = %+v, %v", loc, ok)
	}
	if ip, ok := s.IP(); !ok || ip != "203.0.113.7" {
		t.Errorf("IP() = %q, %v", ip, ok)
	}
}

func TestSnapshotWireFieldNames(t *testing.T) {
	// Collectors and the store both speak this wire format; the top-level
	// keys are a compatibility contract.
	s := validSnapshot()
	s.WebData = &WebData{VPNDetection: &VPNDetection{Status: "vpn_active", Message: "Org matches a hosting provider."}}

	raw, err := json.Marshal(s)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	for _, key := range []string{
		`"collection_timestamp"`, `"hostname"`, `"username"`,
		`"system_data"`, `"web_data"`, `"vpn_detection"`, `"cpu_percent"`,
	} {
		if !strings.Contains(string(raw), key) {
			t.Errorf("marshaled snapshot missing %s: %s", key, raw)
		}
	}
}

func TestTimeWindowValidate(t *testing.T) {
	now := time.Date(2024, 1, 15, 16, 0, 0, 0, time.UTC)

	ok := TimeWindow{Start: now.Add(-time.Hour), End: now}
	if err := ok.Validate(); err != nil {
		t.Errorf("Validate() = %v, want nil", err)
	}

	// Zero-width windows are legal; an instant is still an interval.
	instant := TimeWindow{Start: now, End: now}
	if err := instant.Validate(); err != nil {
		t.Errorf("Validate() on instant = %v, want nil", err)
	}

	inverted := TimeWindow{Start: now, End: now.Add(-time.Hour)}
	if err := inverted.Validate(); err == nil {
		t.Error("Validate() = nil on inverted window")
	}
}

func TestQueryScopeIsZero(t *testing.T) {
	if !(QueryScope{}).IsZero() {
		t.Error("empty scope must be zero")
	}
	if (QueryScope{Hostname: "office-pc"}).IsZero() {
		t.Error("host-scoped must not be zero")
	}
	if (QueryScope{Username: "alice"}).IsZero() {
		t.Error("user-scoped must not be zero")
	}
}
