package collector

import (
	"context"
	"log"
	"os"
	"os/user"
	"time"

	"github.com/machine-telemetry-qa-platform/config"
	"github.com/machine-telemetry-qa-platform/internal/models"
)

// Publisher delivers a collected snapshot downstream. The NATS queue is the
// production implementation; tests substitute a capture fake.
type Publisher interface {
	PublishSnapshot(snapshot *models.MonitoringSnapshot) (string, error)
}

// Collector captures periodic monitoring snapshots of the local machine and
// its network posture. Individual probes fail soft: a snapshot with only one
// of its two sections is still worth publishing.
type Collector struct {
	config    config.CollectorConfig
	publisher Publisher
	web       *WebProber

	hostname string
	username string

	// captures since the last speed test; the speed probe is expensive and
	// runs on a reduced cadence
	sinceSpeedTest int
}

// New creates a collector bound to a publisher.
func New(cfg config.CollectorConfig, publisher Publisher) *Collector {
	hostname, err := os.Hostname()
	if err != nil {
		hostname = "unknown"
	}

	username := ""
	if u, err := user.Current(); err == nil {
		username = u.Username
	}

	return &Collector{
		config:    cfg,
		publisher: publisher,
		web:       NewWebProber(cfg),
		hostname:  hostname,
		username:  username,
	}
}

// Run captures snapshots on the configured interval until the context is
// cancelled. The first capture happens immediately.
func (c *Collector) Run(ctx context.Context) error {
	ticker := time.NewTicker(c.config.Interval)
	defer ticker.Stop()

	c.captureAndPublish(ctx)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			c.captureAndPublish(ctx)
		}
	}
}

func (c *Collector) captureAndPublish(ctx context.Context) {
	snapshot := c.Collect(ctx)
	if err := snapshot.Validate(); err != nil {
		log.Printf("Skipping unpublishable snapshot: %v", err)
		return
	}

	messageID, err := c.publisher.PublishSnapshot(snapshot)
	if err != nil {
		log.Printf("Failed to publish snapshot: %v", err)
		return
	}
	log.Printf("Published snapshot %s (host=%s)", messageID, snapshot.Hostname)
}

// Collect captures one snapshot. System and web probes run independently and
// a failure in either leaves its section nil.
func (c *Collector) Collect(ctx context.Context) *models.MonitoringSnapshot {
	snapshot := &models.MonitoringSnapshot{
		CollectedAt: time.Now().UTC(),
		Hostname:    c.hostname,
		Username:    c.username,
	}

	systemData, err := collectSystemData()
	if err != nil {
		log.Printf("System probe failed: %v", err)
	} else {
		snapshot.SystemData = systemData
	}

	withSpeed := c.speedTestDue()
	webData, err := c.web.Collect(ctx, withSpeed)
	if err != nil {
		log.Printf("Web probe failed: %v", err)
	} else {
		snapshot.WebData = webData
		if withSpeed && webData.SpeedTest != nil {
			c.sinceSpeedTest = 0
		}
	}
	c.sinceSpeedTest++

	return snapshot
}

// speedTestDue reports whether this capture should include the speed probe.
func (c *Collector) speedTestDue() bool {
	if c.config.SpeedTestEvery <= 1 {
		return true
	}
	return c.sinceSpeedTest%c.config.SpeedTestEvery == 0
}
