package collector

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/machine-telemetry-qa-platform/config"
	"github.com/machine-telemetry-qa-platform/internal/models"
)

func TestDetectVPN(t *testing.T) {
	tests := []struct {
		name            string
		info            *models.IPInfo
		expectedCountry string
		wantStatus      string
		wantInMessage   string
	}{
		{
			name:            "residential ISP in expected country",
			info:            &models.IPInfo{Country: "TR", Org: "AS9121 Turk Telekom"},
			expectedCountry: "TR",
			wantStatus:      "no_vpn",
			wantInMessage:   "No VPN or proxy",
		},
		{
			name:            "foreign exit country",
			info:            &models.IPInfo{Country: "NL", Org: "AS9121 Turk Telekom"},
			expectedCountry: "TR",
			wantStatus:      "vpn_active",
			wantInMessage:   "geolocated in NL",
		},
		{
			name:            "hosting provider org",
			info:            &models.IPInfo{Country: "TR", Org: "AS13335 Cloudflare Hosting"},
			expectedCountry: "TR",
			wantStatus:      "vpn_active",
			wantInMessage:   "hosting",
		},
		{
			name:            "vpn provider org",
			info:            &models.IPInfo{Country: "TR", Org: "SuperVPN Ltd"},
			expectedCountry: "TR",
			wantStatus:      "vpn_active",
			wantInMessage:   "tunnel or hosting provider",
		},
		{
			name:            "country check is case insensitive",
			info:            &models.IPInfo{Country: "tr", Org: "Turk Telekom"},
			expectedCountry: "TR",
			wantStatus:      "no_vpn",
		},
		{
			name:            "no expected country skips geography check",
			info:            &models.IPInfo{Country: "DE", Org: "Deutsche Telekom"},
			expectedCountry: "",
			wantStatus:      "no_vpn",
		},
		{
			name:       "missing geolocation",
			info:       nil,
			wantStatus: "unknown",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DetectVPN(tt.info, tt.expectedCountry)
			if got.Status != tt.wantStatus {
				t.Fatalf("status = %q, want %q (message %q)", got.Status, tt.wantStatus, got.Message)
			}
			if tt.wantInMessage != "" && !strings.Contains(strings.ToLower(got.Message), strings.ToLower(tt.wantInMessage)) {
				t.Errorf("message = %q, want it to contain %q", got.Message, tt.wantInMessage)
			}
		})
	}
}

func TestWebProberCollect(t *testing.T) {
	ipServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("203.0.113.7\n"))
	}))
	defer ipServer.Close()

	geoServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"ip":"203.0.113.7","city":"Istanbul","region":"Istanbul","country":"TR","org":"AS9121 Turk Telekom"}`))
	}))
	defer geoServer.Close()

	prober := NewWebProber(config.CollectorConfig{
		ExpectedCountry: "TR",
		IPEchoURL:       ipServer.URL,
		IPInfoURL:       geoServer.URL,
	})

	data, err := prober.Collect(context.Background(), false)
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}

	if data.IPAddress != "203.0.113.7" {
		t.Errorf("IPAddress = %q", data.IPAddress)
	}
	if data.IPInfo == nil || data.IPInfo.City != "Istanbul" {
		t.Errorf("IPInfo = %+v", data.IPInfo)
	}
	if data.VPNDetection == nil || data.VPNDetection.Status != "no_vpn" {
		t.Errorf("VPNDetection = %+v", data.VPNDetection)
	}
	if data.SpeedTest != nil {
		t.Errorf("SpeedTest = %+v, want nil without speed probe", data.SpeedTest)
	}
}

func TestWebProberCollectWithSpeed(t *testing.T) {
	payload := strings.Repeat("x", 1<<16)
	probeServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/ip":
			w.Write([]byte("203.0.113.7"))
		case "/geo":
			w.Write([]byte(`{"ip":"203.0.113.7","country":"TR","org":"Turk Telekom"}`))
		default:
			w.Write([]byte(payload))
		}
	}))
	defer probeServer.Close()

	prober := NewWebProber(config.CollectorConfig{
		ExpectedCountry: "TR",
		IPEchoURL:       probeServer.URL + "/ip",
		IPInfoURL:       probeServer.URL + "/geo",
		SpeedProbeURL:   probeServer.URL + "/blob",
	})

	data, err := prober.Collect(context.Background(), true)
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}

	if data.SpeedTest == nil {
		t.Fatal("SpeedTest = nil, want measurement")
	}
	if data.SpeedTest.DownloadSpeed <= 0 {
		t.Errorf("DownloadSpeed = %v, want > 0", data.SpeedTest.DownloadSpeed)
	}
	if data.SpeedTest.Ping <= 0 {
		t.Errorf("Ping = %v, want > 0", data.SpeedTest.Ping)
	}
}

func TestWebProberAllProbesFailing(t *testing.T) {
	down := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "unavailable", http.StatusServiceUnavailable)
	}))
	defer down.Close()

	prober := NewWebProber(config.CollectorConfig{
		IPEchoURL: down.URL,
		IPInfoURL: down.URL,
	})

	if _, err := prober.Collect(context.Background(), false); err == nil {
		t.Error("expected error when every probe fails")
	}
}

type capturePublisher struct {
	published []*models.MonitoringSnapshot
}

func (p *capturePublisher) PublishSnapshot(s *models.MonitoringSnapshot) (string, error) {
	p.published = append(p.published, s)
	return "msg-1", nil
}

func TestCollectorProducesValidSnapshot(t *testing.T) {
	geoServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"ip":"203.0.113.7","country":"TR","org":"Turk Telekom"}`))
	}))
	defer geoServer.Close()

	c := New(config.CollectorConfig{
		Interval:        time.Minute,
		SpeedTestEvery:  6,
		ExpectedCountry: "TR",
		IPEchoURL:       geoServer.URL, // not a bare IP, echo probe fails soft
		IPInfoURL:       geoServer.URL,
	}, &capturePublisher{})

	snapshot := c.Collect(context.Background())

	if err := snapshot.Validate(); err != nil {
		t.Fatalf("collected snapshot invalid: %v", err)
	}
	if snapshot.Hostname == "" {
		t.Error("hostname not populated")
	}
	if snapshot.CollectedAt.IsZero() {
		t.Error("collection timestamp not populated")
	}
	if snapshot.WebData == nil || snapshot.WebData.VPNDetection == nil {
		t.Errorf("web data = %+v, want VPN verdict", snapshot.WebData)
	}
}

func TestSpeedTestCadence(t *testing.T) {
	c := New(config.CollectorConfig{SpeedTestEvery: 3}, &capturePublisher{})

	// First capture runs the speed probe, the next two skip it.
	var due []bool
	for i := 0; i < 6; i++ {
		due = append(due, c.speedTestDue())
		c.sinceSpeedTest++
	}

	want := []bool{true, false, false, true, false, false}
	for i := range want {
		if due[i] != want[i] {
			t.Fatalf("capture %d: speedTestDue = %v, want %v (%v)", i, due[i], want[i], due)
		}
	}
}
