package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	appconfig "github.com/machine-telemetry-qa-platform/config"
	"github.com/machine-telemetry-qa-platform/internal/database"
	"github.com/machine-telemetry-qa-platform/internal/metrics"
	"github.com/machine-telemetry-qa-platform/internal/queue"
	"github.com/machine-telemetry-qa-platform/internal/tracing"
)

// IngestWorker consumes snapshots from the queue and commits them to the
// store. The queue ack is deferred until after the database commit, so a
// crash between the two redelivers instead of losing data.
type IngestWorker struct {
	queue       *queue.NATSSnapshotQueue
	snapshots   *database.SnapshotRepository
	broadcaster metrics.Broadcaster
}

func NewIngestWorker(q *queue.NATSSnapshotQueue, snapshots *database.SnapshotRepository, broadcaster metrics.Broadcaster) *IngestWorker {
	return &IngestWorker{
		queue:       q,
		snapshots:   snapshots,
		broadcaster: broadcaster,
	}
}

func (w *IngestWorker) Start() error {
	return w.queue.ConsumeSnapshots(w.handleSnapshot)
}

func (w *IngestWorker) handleSnapshot(msg *queue.SnapshotMessage) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	snapshot := msg.Snapshot
	if err := w.snapshots.Save(ctx, &snapshot); err != nil {
		return fmt.Errorf("failed to store snapshot %s: %w", msg.MessageID, err)
	}

	if err := w.queue.AckSnapshot(msg.MessageID); err != nil {
		// The snapshot is committed; a redelivery hits the unique constraint
		// and becomes a no-op, so log and move on
		log.Printf("Warning: failed to ack snapshot %s: %v", msg.MessageID, err)
	}

	metrics.ObserveSnapshotIngested(snapshot.Hostname)
	w.broadcaster.BroadcastSnapshot(&snapshot)
	w.broadcaster.BroadcastCollectorStatus(snapshot.Hostname, "active", snapshot.CollectedAt)

	log.Printf("Stored snapshot %s (host=%s, user=%s, collected=%s)",
		msg.MessageID, snapshot.Hostname, snapshot.Username,
		snapshot.CollectedAt.Format(time.RFC3339))

	return nil
}

// queueMetricsLoop refreshes queue lag gauges on a fixed cadence
func queueMetricsLoop(ctx context.Context, q *queue.NATSSnapshotQueue) {
	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := q.UpdateQueueMetrics(); err != nil {
				log.Printf("Failed to update queue metrics: %v", err)
			}
		}
	}
}

func main() {
	cfg := appconfig.Load()

	log.Printf("Starting snapshot ingest worker")
	log.Printf("NATS URL: %s", cfg.NATS.URL)
	log.Printf("Database: %s@%s:%d/%s", cfg.Database.User, cfg.Database.Host, cfg.Database.Port, cfg.Database.Database)

	tracingConfig := tracing.DefaultConfig("snapshot-ingest")
	tracingConfig.OTLPEndpoint = cfg.Tracing.Endpoint
	tracingConfig.Enabled = cfg.Tracing.Enabled

	shutdownTracing, err := tracing.InitTracer(tracingConfig)
	if err != nil {
		log.Fatalf("Failed to initialize tracing: %v", err)
	}
	defer func() {
		if err := shutdownTracing(context.Background()); err != nil {
			log.Printf("Error shutting down tracing: %v", err)
		}
	}()

	dbConfig := database.DefaultConnectionConfig()
	dbConfig.Host = cfg.Database.Host
	dbConfig.Port = cfg.Database.Port
	dbConfig.User = cfg.Database.User
	dbConfig.Password = cfg.Database.Password
	dbConfig.Database = cfg.Database.Database
	dbConfig.SSLMode = cfg.Database.SSLMode

	conn, err := database.NewConnection(dbConfig)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer conn.Close()
	log.Printf("Connected to database")

	snapshots := database.NewSnapshotRepository(conn)

	natsConfig := queue.DefaultNATSConfig()
	natsConfig.URL = cfg.NATS.URL

	snapshotQueue, err := queue.NewNATSSnapshotQueue(natsConfig)
	if err != nil {
		log.Fatalf("Failed to connect to NATS: %v", err)
	}
	defer snapshotQueue.Close()
	log.Printf("Connected to NATS")

	// Real-time updates go to the API's websocket hub when configured
	var broadcaster metrics.Broadcaster
	if wsEndpoint := os.Getenv("WS_BROADCAST_ENDPOINT"); wsEndpoint != "" {
		broadcaster = metrics.NewWebSocketBroadcaster(wsEndpoint)
		log.Printf("Broadcasting updates to %s", wsEndpoint)
	} else {
		broadcaster = metrics.NewNullBroadcaster()
	}
	defer broadcaster.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go queueMetricsLoop(ctx, snapshotQueue)

	// Metrics and health endpoint
	mux := http.NewServeMux()
	mux.Handle(cfg.Metrics.Path, promhttp.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{
			"status":  "healthy",
			"service": "snapshot-ingest",
		})
	})

	metricsServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Metrics.Port),
		Handler: mux,
	}
	go func() {
		log.Printf("Metrics available at http://localhost:%d%s", cfg.Metrics.Port, cfg.Metrics.Path)
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Metrics server failed: %v", err)
		}
	}()

	worker := NewIngestWorker(snapshotQueue, snapshots, broadcaster)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	errCh := make(chan error, 1)
	go func() {
		if err := worker.Start(); err != nil {
			errCh <- err
		}
	}()

	log.Printf("Ingest worker started")

	select {
	case <-sigCh:
		log.Printf("Received shutdown signal")
	case err := <-errCh:
		log.Printf("Ingest worker error: %v", err)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := metricsServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("Metrics server shutdown error: %v", err)
	}

	log.Printf("Ingest worker stopped")
}
