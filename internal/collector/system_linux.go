//go:build linux

package collector

import (
	"fmt"
	"os"
	"runtime"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sys/unix"

	"github.com/machine-telemetry-qa-platform/internal/models"
)

// cpuSampleGap is the delta window for the CPU utilization sample.
const cpuSampleGap = 200 * time.Millisecond

// collectSystemData gathers local machine metrics from /proc and syscalls.
// Sub-probes fail soft; an error is returned only when nothing was collected.
func collectSystemData() (*models.SystemData, error) {
	data := &models.SystemData{}
	var firstErr error

	if cpu, err := collectCPU(); err == nil {
		data.CPU = cpu
	} else if firstErr == nil {
		firstErr = err
	}

	if mem, err := collectMemory(); err == nil {
		data.Memory = mem
	} else if firstErr == nil {
		firstErr = err
	}

	if disk, err := collectDisk("/"); err == nil {
		data.Disk = disk
	} else if firstErr == nil {
		firstErr = err
	}

	if network, err := collectNetwork(); err == nil {
		data.Network = network
	} else if firstErr == nil {
		firstErr = err
	}

	if platform, err := collectPlatform(); err == nil {
		data.Platform = platform
	} else if firstErr == nil {
		firstErr = err
	}

	if data.CPU == nil && data.Memory == nil && data.Disk == nil && data.Network == nil && data.Platform == nil {
		return nil, fmt.Errorf("all system probes failed: %w", firstErr)
	}
	return data, nil
}

func collectCPU() (*models.CPUStats, error) {
	idle1, total1, err := readCPUTicks()
	if err != nil {
		return nil, err
	}
	time.Sleep(cpuSampleGap)
	idle2, total2, err := readCPUTicks()
	if err != nil {
		return nil, err
	}

	var percent float64
	if total2 > total1 {
		percent = 100.0 * (1.0 - float64(idle2-idle1)/float64(total2-total1))
	}

	return &models.CPUStats{
		CPUPercent:       percent,
		CPUCountLogical:  runtime.NumCPU(),
		CPUCountPhysical: physicalCoreCount(),
	}, nil
}

// readCPUTicks returns the aggregate idle and total jiffies from /proc/stat.
func readCPUTicks() (idle, total uint64, err error) {
	raw, err := os.ReadFile("/proc/stat")
	if err != nil {
		return 0, 0, fmt.Errorf("failed to read /proc/stat: %w", err)
	}

	for _, line := range strings.Split(string(raw), "\n") {
		if !strings.HasPrefix(line, "cpu ") {
			continue
		}
		fields := strings.Fields(line)[1:]
		for i, f := range fields {
			v, err := strconv.ParseUint(f, 10, 64)
			if err != nil {
				return 0, 0, fmt.Errorf("bad /proc/stat field %q: %w", f, err)
			}
			total += v
			// idle + iowait
			if i == 3 || i == 4 {
				idle += v
			}
		}
		return idle, total, nil
	}
	return 0, 0, fmt.Errorf("no aggregate cpu line in /proc/stat")
}

func physicalCoreCount() int {
	raw, err := os.ReadFile("/proc/cpuinfo")
	if err != nil {
		return 0
	}

	cores := make(map[string]bool)
	var physicalID string
	for _, line := range strings.Split(string(raw), "\n") {
		key, value, found := strings.Cut(line, ":")
		if !found {
			continue
		}
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)
		switch key {
		case "physical id":
			physicalID = value
		case "core id":
			cores[physicalID+"/"+value] = true
		}
	}
	return len(cores)
}

func collectMemory() (*models.MemoryStats, error) {
	raw, err := os.ReadFile("/proc/meminfo")
	if err != nil {
		return nil, fmt.Errorf("failed to read /proc/meminfo: %w", err)
	}

	values := make(map[string]uint64)
	for _, line := range strings.Split(string(raw), "\n") {
		key, rest, found := strings.Cut(line, ":")
		if !found {
			continue
		}
		fields := strings.Fields(rest)
		if len(fields) == 0 {
			continue
		}
		kb, err := strconv.ParseUint(fields[0], 10, 64)
		if err != nil {
			continue
		}
		values[key] = kb * 1024
	}

	total := values["MemTotal"]
	available := values["MemAvailable"]
	if total == 0 {
		return nil, fmt.Errorf("MemTotal missing from /proc/meminfo")
	}

	used := total - available
	return &models.MemoryStats{
		VirtualMemory: &models.VirtualMemory{
			Total:     total,
			Used:      used,
			Available: available,
			Percent:   100.0 * float64(used) / float64(total),
		},
	}, nil
}

func collectDisk(path string) (*models.DiskStats, error) {
	var stat unix.Statfs_t
	if err := unix.Statfs(path, &stat); err != nil {
		return nil, fmt.Errorf("statfs %s: %w", path, err)
	}

	blockSize := uint64(stat.Bsize)
	total := stat.Blocks * blockSize
	free := stat.Bavail * blockSize
	used := total - free
	if total == 0 {
		return nil, fmt.Errorf("statfs %s reported zero size", path)
	}

	return &models.DiskStats{
		DiskUsage: &models.DiskUsage{
			Main: &models.PartitionUsage{
				Total:   total,
				Used:    used,
				Free:    free,
				Percent: 100.0 * float64(used) / float64(total),
			},
		},
	}, nil
}

func collectNetwork() (*models.NetworkStats, error) {
	raw, err := os.ReadFile("/proc/net/dev")
	if err != nil {
		return nil, fmt.Errorf("failed to read /proc/net/dev: %w", err)
	}

	io := &models.NetworkIO{}
	for _, line := range strings.Split(string(raw), "\n") {
		name, rest, found := strings.Cut(line, ":")
		if !found {
			continue
		}
		if strings.TrimSpace(name) == "lo" {
			continue
		}
		fields := strings.Fields(rest)
		if len(fields) < 10 {
			continue
		}
		recvBytes, _ := strconv.ParseUint(fields[0], 10, 64)
		recvPackets, _ := strconv.ParseUint(fields[1], 10, 64)
		sentBytes, _ := strconv.ParseUint(fields[8], 10, 64)
		sentPackets, _ := strconv.ParseUint(fields[9], 10, 64)

		io.BytesRecv += recvBytes
		io.PacketsRecv += recvPackets
		io.BytesSent += sentBytes
		io.PacketsSent += sentPackets
	}

	return &models.NetworkStats{NetworkIO: io}, nil
}

func collectPlatform() (*models.PlatformInfo, error) {
	var uts unix.Utsname
	if err := unix.Uname(&uts); err != nil {
		return nil, fmt.Errorf("uname: %w", err)
	}

	var info unix.Sysinfo_t
	var uptime int64
	if err := unix.Sysinfo(&info); err == nil {
		uptime = int64(info.Uptime)
	}

	return &models.PlatformInfo{
		System:        unix.ByteSliceToString(uts.Sysname[:]),
		Release:       unix.ByteSliceToString(uts.Release[:]),
		UptimeSeconds: uptime,
	}, nil
}
