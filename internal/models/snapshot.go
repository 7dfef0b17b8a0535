package models

import (
	"fmt"
	"time"
)

// MonitoringSnapshot represents one persisted telemetry capture: the machine's
// system state plus its network posture at a point in time. Both sub-sections
// are optional because collectors may skip expensive probes (speed tests run
// on a reduced cadence) or fail soft on individual sources.
type MonitoringSnapshot struct {
	// CollectedAt is the capture timestamp; all time-window filtering keys on it
	CollectedAt time.Time `json:"collection_timestamp"`

	// Hostname identifies the reporting machine
	Hostname string `json:"hostname"`

	// Username is the local account the collector ran under
	Username string `json:"username"`

	// SystemData holds local machine metrics (CPU, memory, disk, uptime)
	SystemData *SystemData `json:"system_data,omitempty"`

	// WebData holds network-facing metrics (IP, geolocation, speed, VPN posture)
	WebData *WebData `json:"web_data,omitempty"`
}

// SystemData groups local machine metrics.
type SystemData struct {
	CPU      *CPUStats     `json:"cpu,omitempty"`
	Memory   *MemoryStats  `json:"memory,omitempty"`
	Disk     *DiskStats    `json:"disk,omitempty"`
	Network  *NetworkStats `json:"network,omitempty"`
	Platform *PlatformInfo `json:"system,omitempty"`
}

// CPUStats holds processor utilization data.
type CPUStats struct {
	CPUPercent       float64 `json:"cpu_percent"`
	CPUCountLogical  int     `json:"cpu_count_logical,omitempty"`
	CPUCountPhysical int     `json:"cpu_count_physical,omitempty"`
}

// MemoryStats wraps virtual memory usage.
type MemoryStats struct {
	VirtualMemory *VirtualMemory `json:"virtual_memory,omitempty"`
}

// VirtualMemory holds RAM usage in bytes plus the used percentage.
type VirtualMemory struct {
	Total     uint64  `json:"total"`
	Used      uint64  `json:"used"`
	Available uint64  `json:"available"`
	Percent   float64 `json:"percent"`
}

// DiskStats wraps disk usage per mount.
type DiskStats struct {
	DiskUsage *DiskUsage `json:"disk_usage,omitempty"`
}

// DiskUsage holds usage for the main (root) partition.
type DiskUsage struct {
	Main *PartitionUsage `json:"main,omitempty"`
}

// PartitionUsage holds usage for a single partition in bytes.
type PartitionUsage struct {
	Total   uint64  `json:"total"`
	Used    uint64  `json:"used"`
	Free    uint64  `json:"free"`
	Percent float64 `json:"percent"`
}

// NetworkStats wraps interface I/O counters.
type NetworkStats struct {
	NetworkIO *NetworkIO `json:"network_io,omitempty"`
}

// NetworkIO holds cumulative interface counters.
type NetworkIO struct {
	BytesSent   uint64 `json:"bytes_sent"`
	BytesRecv   uint64 `json:"bytes_recv"`
	PacketsSent uint64 `json:"packets_sent"`
	PacketsRecv uint64 `json:"packets_recv"`
}

// PlatformInfo describes the operating system and uptime.
type PlatformInfo struct {
	System        string `json:"system,omitempty"`
	Release       string `json:"release,omitempty"`
	UptimeSeconds int64  `json:"uptime_seconds,omitempty"`
}

// WebData groups network-facing metrics.
type WebData struct {
	IPAddress    string        `json:"ip_address,omitempty"`
	IPInfo       *IPInfo       `json:"ip_info,omitempty"`
	SpeedTest    *SpeedTest    `json:"speed_test,omitempty"`
	VPNDetection *VPNDetection `json:"vpn_detection,omitempty"`
}

// IPInfo holds geolocation metadata for the public IP.
type IPInfo struct {
	City     string `json:"city,omitempty"`
	Region   string `json:"region,omitempty"`
	Country  string `json:"country,omitempty"`
	Loc      string `json:"loc,omitempty"`
	Org      string `json:"org,omitempty"`
	Postal   string `json:"postal,omitempty"`
	Timezone string `json:"timezone,omitempty"`
}

// SpeedTest holds connectivity measurement results in Mbps / ms.
type SpeedTest struct {
	DownloadSpeed float64 `json:"download_speed"`
	UploadSpeed   float64 `json:"upload_speed"`
	Ping          float64 `json:"ping"`
}

// VPNDetection holds the VPN posture verdict for a snapshot.
type VPNDetection struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// Validate checks that a snapshot carries the minimum fields required for
// storage and later retrieval.
func (s *MonitoringSnapshot) Validate() error {
	if s.CollectedAt.IsZero() {
		return fmt.Errorf("collection_timestamp is required")
	}
	if s.Hostname == "" {
		return fmt.Errorf("hostname is required")
	}
	if s.SystemData == nil && s.WebData == nil {
		return fmt.Errorf("snapshot must carry at least one of system_data or web_data")
	}
	return nil
}

// CPUPercent returns the CPU utilization if the snapshot carries it.
func (s *MonitoringSnapshot) CPUPercent() (float64, bool) {
	if s.SystemData == nil || s.SystemData.CPU == nil {
		return 0, false
	}
	return s.SystemData.CPU.CPUPercent, true
}

// MemoryPercent returns the RAM utilization if the snapshot carries it.
func (s *MonitoringSnapshot) MemoryPercent() (float64, bool) {
	if s.SystemData == nil || s.SystemData.Memory == nil || s.SystemData.Memory.VirtualMemory == nil {
		return 0, false
	}
	return s.SystemData.Memory.VirtualMemory.Percent, true
}

// DiskPercent returns the root partition utilization if the snapshot carries it.
func (s *MonitoringSnapshot) DiskPercent() (float64, bool) {
	if s.SystemData == nil || s.SystemData.Disk == nil ||
		s.SystemData.Disk.DiskUsage == nil || s.SystemData.Disk.DiskUsage.Main == nil {
		return 0, false
	}
	return s.SystemData.Disk.DiskUsage.Main.Percent, true
}

// VPN returns the VPN detection section if present.
func (s *MonitoringSnapshot) VPN() (*VPNDetection, bool) {
	if s.WebData == nil || s.WebData.VPNDetection == nil {
		return nil, false
	}
	return s.WebData.VPNDetection, true
}

// Speed returns the speed test section if present.
func (s *MonitoringSnapshot) Speed() (*SpeedTest, bool) {
	if s.WebData == nil || s.WebData.SpeedTest == nil {
		return nil, false
	}
	return s.WebData.SpeedTest, true
}

// Location returns the IP geolocation section if present.
func (s *MonitoringSnapshot) Location() (*IPInfo, bool) {
	if s.WebData == nil || s.WebData.IPInfo == nil {
		return nil, false
	}
	return s.WebData.IPInfo, true
}

// IP returns the public IP address if present.
func (s *MonitoringSnapshot) IP() (string, bool) {
	if s.WebData == nil || s.WebData.IPAddress == "" {
		return "", false
	}
	return s.WebData.IPAddress, true
}
