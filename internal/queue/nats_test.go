package queue

import (
	"testing"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/machine-telemetry-qa-platform/internal/models"
)

// TestDefaultNATSConfig tests the default configuration
func TestDefaultNATSConfig(t *testing.T) {
	config := DefaultNATSConfig()

	if config.URL != nats.DefaultURL {
		t.Errorf("Expected default URL %s, got %s", nats.DefaultURL, config.URL)
	}

	if config.MaxDeliver != DefaultMaxDeliver {
		t.Errorf("Expected MaxDeliver %d, got %d", DefaultMaxDeliver, config.MaxDeliver)
	}

	if config.AckWait != DefaultAckWait {
		t.Errorf("Expected AckWait %v, got %v", DefaultAckWait, config.AckWait)
	}

	if config.MaxAckPending != DefaultMaxAckPending {
		t.Errorf("Expected MaxAckPending %d, got %d", DefaultMaxAckPending, config.MaxAckPending)
	}

	if !config.EnableDLQ {
		t.Error("Expected DLQ to be enabled by default")
	}
}

func testSnapshot() *models.MonitoringSnapshot {
	return &models.MonitoringSnapshot{
		CollectedAt: time.Now(),
		Hostname:    "test-host",
		Username:    "test-user",
		WebData: &models.WebData{
			IPAddress:    "203.0.113.7",
			VPNDetection: &models.VPNDetection{Status: "no_vpn"},
		},
	}
}

// TestNATSSnapshotQueue_PublishAndConsume tests the basic publish/consume flow
// This test requires a running NATS server (skip if not available)
func TestNATSSnapshotQueue_PublishAndConsume(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test")
	}

	config := DefaultNATSConfig()
	config.URL = "nats://localhost:4222"

	queue, err := NewNATSSnapshotQueue(config)
	if err != nil {
		t.Skipf("NATS server not available: %v", err)
		return
	}
	defer queue.Close()

	messageID, err := queue.PublishSnapshot(testSnapshot())
	if err != nil {
		t.Fatalf("Failed to publish snapshot: %v", err)
	}

	received := make(chan bool, 1)
	handler := func(msg *SnapshotMessage) error {
		if msg.MessageID == messageID {
			received <- true
			return queue.AckSnapshot(msg.MessageID)
		}
		return nil
	}

	err = queue.ConsumeSnapshots(handler)
	if err != nil {
		t.Fatalf("Failed to start consuming: %v", err)
	}

	select {
	case <-received:
		// Success
	case <-time.After(5 * time.Second):
		t.Fatal("Timeout waiting for message")
	}
}

// TestNATSSnapshotQueue_Validation tests snapshot validation before publishing
func TestNATSSnapshotQueue_Validation(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test")
	}

	config := DefaultNATSConfig()
	config.URL = "nats://localhost:4222"

	queue, err := NewNATSSnapshotQueue(config)
	if err != nil {
		t.Skipf("NATS server not available: %v", err)
		return
	}
	defer queue.Close()

	// Missing hostname and data sections
	invalid := &models.MonitoringSnapshot{
		CollectedAt: time.Now(),
	}

	if _, err := queue.PublishSnapshot(invalid); err == nil {
		t.Error("Expected error for invalid snapshot, got nil")
	}
}

// TestNATSSnapshotQueue_MaxDeliveries tests DLQ routing after max deliveries
func TestNATSSnapshotQueue_MaxDeliveries(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test")
	}

	config := DefaultNATSConfig()
	config.URL = "nats://localhost:4222"
	config.MaxDeliver = 2 // Set low for faster testing

	queue, err := NewNATSSnapshotQueue(config)
	if err != nil {
		t.Skipf("NATS server not available: %v", err)
		return
	}
	defer queue.Close()

	if _, err := queue.PublishSnapshot(testSnapshot()); err != nil {
		t.Fatalf("Failed to publish snapshot: %v", err)
	}

	// Handler that always fails to trigger redelivery
	deliveryCount := 0
	handler := func(msg *SnapshotMessage) error {
		deliveryCount++
		t.Logf("Delivery attempt %d for message %s", deliveryCount, msg.MessageID)
		return queue.NackSnapshot(msg.MessageID)
	}

	err = queue.ConsumeSnapshots(handler)
	if err != nil {
		t.Fatalf("Failed to start consuming: %v", err)
	}

	// Wait for redeliveries to complete
	time.Sleep(3 * time.Second)

	if deliveryCount < 2 {
		t.Errorf("Expected at least 2 delivery attempts, got %d", deliveryCount)
	}
}
