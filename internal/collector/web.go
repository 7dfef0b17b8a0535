package collector

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/machine-telemetry-qa-platform/config"
	"github.com/machine-telemetry-qa-platform/internal/models"
)

// uploadPayloadSize is the body size for the upload leg of the speed probe.
const uploadPayloadSize = 1 << 20 // 1 MiB

// vpnOrgKeywords are organization-name fragments that indicate the public IP
// belongs to a tunnel or hosting provider rather than a residential ISP.
var vpnOrgKeywords = []string{"vpn", "hosting", "datacenter", "data center", "proxy", "cloud", "tor"}

// WebProber collects network-facing metrics: public IP, geolocation, VPN
// posture and, on a reduced cadence, connection speed.
type WebProber struct {
	config config.CollectorConfig
	client *http.Client
}

// NewWebProber creates a web prober from collector configuration.
func NewWebProber(cfg config.CollectorConfig) *WebProber {
	return &WebProber{
		config: cfg,
		client: &http.Client{Timeout: 15 * time.Second},
	}
}

// Collect gathers web data. Sub-probes fail soft; an error is returned only
// when nothing at all was collected.
func (w *WebProber) Collect(ctx context.Context, withSpeed bool) (*models.WebData, error) {
	data := &models.WebData{}

	ip, ipErr := w.fetchPublicIP(ctx)
	if ipErr == nil {
		data.IPAddress = ip
	}

	info, echoedIP, infoErr := w.fetchIPInfo(ctx)
	if infoErr == nil {
		data.IPInfo = info
		data.VPNDetection = DetectVPN(info, w.config.ExpectedCountry)
		if data.IPAddress == "" {
			// the geolocation service echoes the caller address too
			data.IPAddress = echoedIP
		}
	}

	if withSpeed {
		if speed, err := w.measureSpeed(ctx); err == nil {
			data.SpeedTest = speed
		}
	}

	if data.IPAddress == "" && data.IPInfo == nil && data.SpeedTest == nil {
		if ipErr != nil {
			return nil, fmt.Errorf("all web probes failed: %w", ipErr)
		}
		return nil, fmt.Errorf("all web probes failed: %w", infoErr)
	}
	return data, nil
}

func (w *WebProber) fetchPublicIP(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, w.config.IPEchoURL, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create IP echo request: %w", err)
	}

	resp, err := w.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("IP echo request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("IP echo returned status %d", resp.StatusCode)
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 64))
	if err != nil {
		return "", fmt.Errorf("failed to read IP echo body: %w", err)
	}

	ip := strings.TrimSpace(string(raw))
	if net.ParseIP(ip) == nil {
		return "", fmt.Errorf("IP echo returned %q, not an address", ip)
	}
	return ip, nil
}

// ipInfoResponse mirrors the geolocation service's JSON document.
type ipInfoResponse struct {
	IP       string `json:"ip"`
	City     string `json:"city"`
	Region   string `json:"region"`
	Country  string `json:"country"`
	Loc      string `json:"loc"`
	Org      string `json:"org"`
	Postal   string `json:"postal"`
	Timezone string `json:"timezone"`
}

func (w *WebProber) fetchIPInfo(ctx context.Context) (*models.IPInfo, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, w.config.IPInfoURL, nil)
	if err != nil {
		return nil, "", fmt.Errorf("failed to create geolocation request: %w", err)
	}

	resp, err := w.client.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("geolocation request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("geolocation returned status %d", resp.StatusCode)
	}

	var body ipInfoResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, "", fmt.Errorf("failed to decode geolocation response: %w", err)
	}

	info := &models.IPInfo{
		City:     body.City,
		Region:   body.Region,
		Country:  body.Country,
		Loc:      body.Loc,
		Org:      body.Org,
		Postal:   body.Postal,
		Timezone: body.Timezone,
	}
	return info, body.IP, nil
}

// DetectVPN applies the heuristic VPN verdict: a public IP geolocated outside
// the expected country, or owned by a tunnel/hosting organization, suggests
// the machine's traffic is exiting through a VPN.
func DetectVPN(info *models.IPInfo, expectedCountry string) *models.VPNDetection {
	if info == nil {
		return &models.VPNDetection{
			Status:  "unknown",
			Message: "No geolocation data available for VPN analysis.",
		}
	}

	if expectedCountry != "" && info.Country != "" && !strings.EqualFold(info.Country, expectedCountry) {
		return &models.VPNDetection{
			Status: "vpn_active",
			Message: fmt.Sprintf("Public IP is geolocated in %s but %s was expected.",
				info.Country, expectedCountry),
		}
	}

	org := strings.ToLower(info.Org)
	for _, keyword := range vpnOrgKeywords {
		if strings.Contains(org, keyword) {
			return &models.VPNDetection{
				Status:  "vpn_active",
				Message: fmt.Sprintf("IP organization %q matches a known tunnel or hosting provider.", info.Org),
			}
		}
	}

	return &models.VPNDetection{
		Status:  "no_vpn",
		Message: "No VPN or proxy in use.",
	}
}

// measureSpeed estimates download and upload throughput in Mbps plus a ping
// in milliseconds, using timed HTTP transfers over fresh connections.
func (w *WebProber) measureSpeed(ctx context.Context) (*models.SpeedTest, error) {
	ping, err := w.measurePing(ctx)
	if err != nil {
		return nil, err
	}

	download, err := w.measureDownload(ctx)
	if err != nil {
		return nil, err
	}

	// Upload failure degrades to zero rather than dropping the whole probe.
	upload, err := w.measureUpload(ctx)
	if err != nil {
		upload = 0
	}

	return &models.SpeedTest{
		DownloadSpeed: download,
		UploadSpeed:   upload,
		Ping:          ping,
	}, nil
}

// measurePing times a TCP connect to the speed probe host.
func (w *WebProber) measurePing(ctx context.Context) (float64, error) {
	parsed, err := url.Parse(w.config.SpeedProbeURL)
	if err != nil {
		return 0, fmt.Errorf("bad speed probe URL: %w", err)
	}

	host := parsed.Host
	if parsed.Port() == "" {
		port := "443"
		if parsed.Scheme == "http" {
			port = "80"
		}
		host = net.JoinHostPort(parsed.Hostname(), port)
	}

	var d net.Dialer
	start := time.Now()
	conn, err := d.DialContext(ctx, "tcp", host)
	elapsed := float64(time.Since(start).Microseconds()) / 1000.0
	if err != nil {
		return 0, fmt.Errorf("ping dial failed: %w", err)
	}
	conn.Close()

	return elapsed, nil
}

func (w *WebProber) measureDownload(ctx context.Context) (float64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, w.config.SpeedProbeURL, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to create download request: %w", err)
	}
	req.Header.Set("Cache-Control", "no-cache, no-store, must-revalidate")
	req.Header.Set("Pragma", "no-cache")

	client := freshConnectionClient()
	start := time.Now()
	resp, err := client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("download request failed: %w", err)
	}
	defer resp.Body.Close()

	bytesRead, err := io.Copy(io.Discard, resp.Body)
	duration := time.Since(start)
	if err != nil {
		return 0, fmt.Errorf("failed to read download body: %w", err)
	}
	if duration <= 0 || bytesRead == 0 {
		return 0, fmt.Errorf("download probe transferred no data")
	}

	return mbps(bytesRead, duration), nil
}

func (w *WebProber) measureUpload(ctx context.Context) (float64, error) {
	payload := bytes.Repeat([]byte("x"), uploadPayloadSize)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.config.SpeedProbeURL, bytes.NewReader(payload))
	if err != nil {
		return 0, fmt.Errorf("failed to create upload request: %w", err)
	}
	req.Header.Set("Content-Type", "application/octet-stream")

	client := freshConnectionClient()
	start := time.Now()
	resp, err := client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("upload request failed: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	duration := time.Since(start)
	if duration <= 0 {
		return 0, fmt.Errorf("upload probe measured no elapsed time")
	}

	return mbps(int64(len(payload)), duration), nil
}

// freshConnectionClient disables keep-alives so each probe measures a full
// connection, not a reused one.
func freshConnectionClient() *http.Client {
	return &http.Client{
		Timeout: 30 * time.Second,
		Transport: &http.Transport{
			DisableKeepAlives:  true,
			DisableCompression: true,
		},
	}
}

func mbps(transferred int64, duration time.Duration) float64 {
	return float64(transferred*8) / duration.Seconds() / 1e6
}
