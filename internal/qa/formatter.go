package qa

import (
	"fmt"
	"sort"
	"strings"

	"github.com/machine-telemetry-qa-platform/internal/models"
)

// NotFoundText is the fixed sentinel returned whenever no snapshot matches
// the compiled query, regardless of intent.
const NotFoundText = "No data found for the requested time or criteria."

// missingValue stands in for any absent metric inside an otherwise
// renderable answer.
const missingValue = "N/A"

// FormatResponse renders the matched snapshots into the deterministic
// structured answer for the intent. Snapshots arrive most-recent-first.
// Missing sub-sections degrade to N/A or omitted fragments; formatting
// never panics.
func FormatResponse(intent models.Intent, records []models.MonitoringSnapshot, window models.TimeWindow) string {
	if len(records) == 0 {
		return NotFoundText
	}

	latest := records[0]

	switch intent.Category {
	case models.IntentVPNStatus:
		return formatVPNStatus(latest)
	case models.IntentSpeedInfo:
		return formatSpeedInfo(latest)
	case models.IntentSystemInfo:
		return formatSystemInfo(latest)
	case models.IntentLocationInfo:
		return formatLocationInfo(latest)
	case models.IntentDeviceListing:
		return formatDeviceListing(records)
	case models.IntentTimeAnalysis:
		return formatTimeAnalysis(records, window)
	case models.IntentDataCoverage:
		return formatDataCoverage(records)
	case models.IntentGeneralStatus:
		return formatGeneralStatus(latest)
	default:
		return formatGeneralStatus(latest)
	}
}

func formatVPNStatus(s models.MonitoringSnapshot) string {
	vpn, ok := s.VPN()
	if !ok {
		return "VPN status: unknown. No detection details available."
	}
	message := vpn.Message
	if message == "" {
		message = "No details."
	}
	return fmt.Sprintf("VPN status: %s. %s", vpn.Status, message)
}

func formatSpeedInfo(s models.MonitoringSnapshot) string {
	speed, ok := s.Speed()
	if !ok {
		return fmt.Sprintf("Speed info - Download: %s Mbps, Upload: %s Mbps, Ping: %s ms",
			missingValue, missingValue, missingValue)
	}
	return fmt.Sprintf("Speed info - Download: %.2f Mbps, Upload: %.2f Mbps, Ping: %.2f ms",
		speed.DownloadSpeed, speed.UploadSpeed, speed.Ping)
}

func formatSystemInfo(s models.MonitoringSnapshot) string {
	return fmt.Sprintf("System status - CPU: %s%%, RAM: %s%%, Disk: %s%%",
		percentOrNA(s.CPUPercent()),
		percentOrNA(s.MemoryPercent()),
		percentOrNA(s.DiskPercent()))
}

func formatLocationInfo(s models.MonitoringSnapshot) string {
	city, country := missingValue, missingValue
	if info, ok := s.Location(); ok {
		if info.City != "" {
			city = info.City
		}
		if info.Country != "" {
			country = info.Country
		}
	}
	ip := missingValue
	if addr, ok := s.IP(); ok {
		ip = addr
	}
	return fmt.Sprintf("Location: %s, %s (%s)", city, country, ip)
}

// formatDeviceListing reports the distinct (user, device) pairs across all
// returned snapshots, not just the latest one.
func formatDeviceListing(records []models.MonitoringSnapshot) string {
	seen := make(map[string]bool)
	for _, r := range records {
		user := r.Username
		if user == "" {
			user = "unknown"
		}
		host := r.Hostname
		if host == "" {
			host = "unknown"
		}
		seen[user+"@"+host] = true
	}

	devices := make([]string, 0, len(seen))
	for d := range seen {
		devices = append(devices, d)
	}
	sort.Strings(devices)

	noun := "devices"
	if len(devices) == 1 {
		noun = "device"
	}
	return fmt.Sprintf("%d %s reported data: %s", len(devices), noun, strings.Join(devices, ", "))
}

// formatTimeAnalysis summarizes the record count and the observed time span
// within the resolved window.
func formatTimeAnalysis(records []models.MonitoringSnapshot, window models.TimeWindow) string {
	earliest := records[0].CollectedAt
	latest := records[0].CollectedAt
	for _, r := range records[1:] {
		if r.CollectedAt.Before(earliest) {
			earliest = r.CollectedAt
		}
		if r.CollectedAt.After(latest) {
			latest = r.CollectedAt
		}
	}

	noun := "records"
	if len(records) == 1 {
		noun = "record"
	}
	return fmt.Sprintf("%d %s between %s and %s on %s",
		len(records), noun,
		earliest.Format("15:04:05"), latest.Format("15:04:05"),
		window.Start.Format("2006-01-02"))
}

// formatDataCoverage counts how many snapshots carry each sub-section.
func formatDataCoverage(records []models.MonitoringSnapshot) string {
	var systemCount, webCount int
	for _, r := range records {
		if r.SystemData != nil {
			systemCount++
		}
		if r.WebData != nil {
			webCount++
		}
	}
	return fmt.Sprintf("Coverage: system data in %d of %d records, web data in %d of %d records",
		systemCount, len(records), webCount, len(records))
}

// formatGeneralStatus joins independently-optional fragments from the most
// recent snapshot. A fragment appears only when its source section exists,
// so a record with no VPN analysis produces no VPN noise at all.
func formatGeneralStatus(s models.MonitoringSnapshot) string {
	var parts []string

	if vpn, ok := s.VPN(); ok {
		parts = append(parts, fmt.Sprintf("VPN: %s", vpn.Status))
	}

	if s.SystemData != nil {
		parts = append(parts, fmt.Sprintf("CPU: %s%%, RAM: %s%%",
			percentOrNA(s.CPUPercent()), percentOrNA(s.MemoryPercent())))
	}

	if info, ok := s.Location(); ok {
		city, country := info.City, info.Country
		if city == "" {
			city = missingValue
		}
		if country == "" {
			country = missingValue
		}
		parts = append(parts, fmt.Sprintf("Location: %s, %s", city, country))
	}

	if len(parts) == 0 {
		return NotFoundText
	}
	return strings.Join(parts, " | ")
}

func percentOrNA(v float64, ok bool) string {
	if !ok {
		return missingValue
	}
	return fmt.Sprintf("%.1f", v)
}
