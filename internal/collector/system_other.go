//go:build !linux

package collector

import (
	"runtime"

	"github.com/machine-telemetry-qa-platform/internal/models"
)

// collectSystemData reports only coarse platform facts on non-Linux hosts.
// The /proc-backed probes have no portable equivalent here.
func collectSystemData() (*models.SystemData, error) {
	return &models.SystemData{
		CPU: &models.CPUStats{
			CPUCountLogical: runtime.NumCPU(),
		},
		Platform: &models.PlatformInfo{
			System: runtime.GOOS,
		},
	}, nil
}
