package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	appconfig "github.com/machine-telemetry-qa-platform/config"
	"github.com/machine-telemetry-qa-platform/internal/collector"
	"github.com/machine-telemetry-qa-platform/internal/queue"
)

var (
	natsURL  = flag.String("nats-url", "", "NATS server URL (overrides NATS_URL)")
	interval = flag.Duration("interval", 0, "Capture interval (overrides COLLECTOR_INTERVAL)")
	once     = flag.Bool("once", false, "Capture and publish a single snapshot, then exit")
)

func main() {
	flag.Parse()

	cfg := appconfig.Load()
	if *interval > 0 {
		cfg.Collector.Interval = *interval
	}

	url := cfg.NATS.URL
	if *natsURL != "" {
		url = *natsURL
	}

	log.Printf("Starting telemetry collector")
	log.Printf("NATS URL: %s", url)
	log.Printf("Capture interval: %v (speed test every %d captures)", cfg.Collector.Interval, cfg.Collector.SpeedTestEvery)

	natsConfig := queue.DefaultNATSConfig()
	natsConfig.URL = url

	snapshotQueue, err := queue.NewNATSSnapshotQueue(natsConfig)
	if err != nil {
		log.Fatalf("Failed to connect to NATS: %v", err)
	}
	defer snapshotQueue.Close()

	c := collector.New(cfg.Collector, snapshotQueue)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if *once {
		captureCtx, captureCancel := context.WithTimeout(ctx, time.Minute)
		defer captureCancel()

		snapshot := c.Collect(captureCtx)
		if err := snapshot.Validate(); err != nil {
			log.Fatalf("Capture produced no publishable data: %v", err)
		}
		messageID, err := snapshotQueue.PublishSnapshot(snapshot)
		if err != nil {
			log.Fatalf("Failed to publish snapshot: %v", err)
		}
		log.Printf("Published snapshot %s", messageID)
		return
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigCh
		log.Printf("Received shutdown signal")
		cancel()
	}()

	if err := c.Run(ctx); err != nil && err != context.Canceled {
		log.Printf("Collector error: %v", err)
	}
	log.Printf("Collector stopped")
}
