package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/machine-telemetry-qa-platform/internal/models"
)

const (
	// Stream names
	StreamNameSnapshots = "monitoring-snapshots"
	StreamNameDLQ       = "monitoring-snapshots-dlq"

	// Subject names
	SubjectSnapshots = "monitoring.snapshots"
	SubjectDLQ       = "monitoring.dlq"

	// Consumer names
	ConsumerNameIngest = "ingest"

	// Configuration defaults
	DefaultMaxDeliver      = 5
	DefaultAckWait         = 30 * time.Second
	DefaultMaxAckPending   = 1000
	DefaultStreamRetention = 7 * 24 * time.Hour
)

// NATSConfig holds configuration for NATS JetStream connection
type NATSConfig struct {
	URL             string
	StreamRetention time.Duration
	MaxDeliver      int
	AckWait         time.Duration
	MaxAckPending   int
	EnableDLQ       bool
	ReconnectWait   time.Duration
	MaxReconnects   int
}

// DefaultNATSConfig returns a NATSConfig with sensible defaults
func DefaultNATSConfig() *NATSConfig {
	return &NATSConfig{
		URL:             nats.DefaultURL,
		StreamRetention: DefaultStreamRetention,
		MaxDeliver:      DefaultMaxDeliver,
		AckWait:         DefaultAckWait,
		MaxAckPending:   DefaultMaxAckPending,
		EnableDLQ:       true,
		ReconnectWait:   2 * time.Second,
		MaxReconnects:   -1, // Unlimited reconnects
	}
}

// SnapshotMessage wraps one snapshot with a delivery identity. The message ID
// keys acknowledgment, so the ingest worker can defer the ack until the
// snapshot is committed to the store.
type SnapshotMessage struct {
	MessageID string                    `json:"message_id"`
	Snapshot  models.MonitoringSnapshot `json:"snapshot"`
}

// NATSSnapshotQueue moves collector snapshots to the ingest worker over
// NATS JetStream with at-least-once delivery and a DLQ for poison messages.
type NATSSnapshotQueue struct {
	config    *NATSConfig
	nc        *nats.Conn
	js        jetstream.JetStream
	ctx       context.Context
	ctxCancel context.CancelFunc

	// Subscription management
	consumerMu sync.Mutex
	consumer   jetstream.Consumer

	// Message tracking for acknowledgment
	msgMu    sync.RWMutex
	messages map[string]jetstream.Msg
}

// NewNATSSnapshotQueue creates a new NATS JetStream snapshot queue
func NewNATSSnapshotQueue(config *NATSConfig) (*NATSSnapshotQueue, error) {
	if config == nil {
		config = DefaultNATSConfig()
	}

	ctx, cancel := context.WithCancel(context.Background())

	q := &NATSSnapshotQueue{
		config:    config,
		ctx:       ctx,
		ctxCancel: cancel,
		messages:  make(map[string]jetstream.Msg),
	}

	if err := q.connect(); err != nil {
		cancel()
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	if err := q.createStreams(); err != nil {
		cancel()
		q.nc.Close()
		return nil, fmt.Errorf("failed to create streams: %w", err)
	}

	return q, nil
}

// connect establishes connection to NATS server
func (q *NATSSnapshotQueue) connect() error {
	opts := []nats.Option{
		nats.ReconnectWait(q.config.ReconnectWait),
		nats.MaxReconnects(q.config.MaxReconnects),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			if err != nil {
				log.Printf("NATS disconnected: %v", err)
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Printf("NATS reconnected to %s", nc.ConnectedUrl())
			natsReconnectsTotal.Inc()
		}),
		nats.ClosedHandler(func(nc *nats.Conn) {
			log.Println("NATS connection closed")
		}),
	}

	nc, err := nats.Connect(q.config.URL, opts...)
	if err != nil {
		return fmt.Errorf("failed to connect to NATS at %s: %w", q.config.URL, err)
	}

	q.nc = nc

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return fmt.Errorf("failed to create JetStream context: %w", err)
	}

	q.js = js
	return nil
}

// createStreams creates the necessary JetStream streams
func (q *NATSSnapshotQueue) createStreams() error {
	snapshotStream := jetstream.StreamConfig{
		Name:        StreamNameSnapshots,
		Subjects:    []string{SubjectSnapshots},
		Storage:     jetstream.FileStorage,
		Retention:   jetstream.WorkQueuePolicy,
		MaxAge:      q.config.StreamRetention,
		Replicas:    1,
		Discard:     jetstream.DiscardOld,
		Description: "Monitoring snapshot stream with at-least-once delivery",
	}

	_, err := q.js.CreateOrUpdateStream(q.ctx, snapshotStream)
	if err != nil {
		return fmt.Errorf("failed to create snapshot stream: %w", err)
	}

	if q.config.EnableDLQ {
		dlqStream := jetstream.StreamConfig{
			Name:        StreamNameDLQ,
			Subjects:    []string{SubjectDLQ},
			Storage:     jetstream.FileStorage,
			Retention:   jetstream.LimitsPolicy,
			MaxAge:      30 * 24 * time.Hour, // Keep DLQ messages for 30 days
			Replicas:    1,
			Description: "Dead letter queue for poison messages",
		}

		_, err := q.js.CreateOrUpdateStream(q.ctx, dlqStream)
		if err != nil {
			return fmt.Errorf("failed to create DLQ stream: %w", err)
		}
	}

	return nil
}

// PublishSnapshot publishes one collected snapshot to the queue. The snapshot
// is validated first and wrapped in an envelope carrying a fresh message ID.
func (q *NATSSnapshotQueue) PublishSnapshot(snapshot *models.MonitoringSnapshot) (string, error) {
	if err := snapshot.Validate(); err != nil {
		return "", fmt.Errorf("invalid snapshot: %w", err)
	}

	msg := SnapshotMessage{
		MessageID: uuid.New().String(),
		Snapshot:  *snapshot,
	}

	data, err := json.Marshal(msg)
	if err != nil {
		return "", fmt.Errorf("failed to marshal snapshot message: %w", err)
	}

	_, err = q.js.Publish(q.ctx, SubjectSnapshots, data)
	if err != nil {
		return "", fmt.Errorf("failed to publish snapshot: %w", err)
	}

	return msg.MessageID, nil
}

// ConsumeSnapshots starts consuming snapshots from the queue and processes
// them with the handler. A handler that returns nil must follow up with
// AckSnapshot once its transaction commits; a failing handler triggers
// redelivery until MaxDeliver, then DLQ routing.
func (q *NATSSnapshotQueue) ConsumeSnapshots(handler func(*SnapshotMessage) error) error {
	q.consumerMu.Lock()
	defer q.consumerMu.Unlock()

	consumerConfig := jetstream.ConsumerConfig{
		Name:          ConsumerNameIngest,
		Durable:       ConsumerNameIngest,
		AckPolicy:     jetstream.AckExplicitPolicy,
		MaxDeliver:    q.config.MaxDeliver,
		AckWait:       q.config.AckWait,
		MaxAckPending: q.config.MaxAckPending,
		FilterSubject: SubjectSnapshots,
		Description:   "Ingest consumer with explicit acknowledgment",
	}

	consumer, err := q.js.CreateOrUpdateConsumer(q.ctx, StreamNameSnapshots, consumerConfig)
	if err != nil {
		return fmt.Errorf("failed to create consumer: %w", err)
	}

	q.consumer = consumer

	_, err = consumer.Consume(func(msg jetstream.Msg) {
		var snapshotMsg SnapshotMessage
		if err := json.Unmarshal(msg.Data(), &snapshotMsg); err != nil {
			log.Printf("Failed to unmarshal snapshot message: %v", err)

			metadata, _ := msg.Metadata()
			if metadata != nil && metadata.NumDelivered >= uint64(q.config.MaxDeliver) {
				q.sendToDLQ(msg.Data(), fmt.Sprintf("unmarshal error: %v", err))
			}

			msg.Nak()
			return
		}

		// Store message for later acknowledgment
		q.msgMu.Lock()
		q.messages[snapshotMsg.MessageID] = msg
		q.msgMu.Unlock()

		if err := handler(&snapshotMsg); err != nil {
			log.Printf("Failed to process snapshot %s: %v", snapshotMsg.MessageID, err)

			metadata, _ := msg.Metadata()
			if metadata != nil && metadata.NumDelivered >= uint64(q.config.MaxDeliver) {
				log.Printf("Snapshot %s exceeded max deliveries, sending to DLQ", snapshotMsg.MessageID)
				q.sendToDLQ(msg.Data(), fmt.Sprintf("processing failed after %d attempts: %v", q.config.MaxDeliver, err))
				msg.Ack() // Ack to remove from main stream
			} else {
				msg.Nak() // Negative ack for retry
			}

			q.msgMu.Lock()
			delete(q.messages, snapshotMsg.MessageID)
			q.msgMu.Unlock()
			return
		}

		// Handler succeeded, but don't ack yet - let AckSnapshot do it
		// once the store transaction has committed.
	})

	if err != nil {
		return fmt.Errorf("failed to start consuming: %w", err)
	}

	return nil
}

// AckSnapshot acknowledges successful processing of a snapshot message.
// Call only after the snapshot is durably stored.
func (q *NATSSnapshotQueue) AckSnapshot(messageID string) error {
	q.msgMu.Lock()
	msg, exists := q.messages[messageID]
	if !exists {
		q.msgMu.Unlock()
		return fmt.Errorf("message not found for ID: %s", messageID)
	}
	delete(q.messages, messageID)
	q.msgMu.Unlock()

	return msg.Ack()
}

// NackSnapshot negatively acknowledges a snapshot message for redelivery
func (q *NATSSnapshotQueue) NackSnapshot(messageID string) error {
	q.msgMu.Lock()
	msg, exists := q.messages[messageID]
	if !exists {
		q.msgMu.Unlock()
		return fmt.Errorf("message not found for ID: %s", messageID)
	}
	delete(q.messages, messageID)
	q.msgMu.Unlock()

	return msg.Nak()
}

// sendToDLQ sends a message to the dead letter queue
func (q *NATSSnapshotQueue) sendToDLQ(data []byte, reason string) {
	if !q.config.EnableDLQ {
		return
	}

	dlqMessagesTotal.Inc()

	dlqMsg := map[string]interface{}{
		"original_data": string(data),
		"reason":        reason,
		"timestamp":     time.Now().Unix(),
	}

	dlqData, err := json.Marshal(dlqMsg)
	if err != nil {
		log.Printf("Failed to marshal DLQ message: %v", err)
		return
	}

	// Publish to DLQ (fire and forget)
	_, err = q.js.Publish(q.ctx, SubjectDLQ, dlqData)
	if err != nil {
		log.Printf("Failed to publish to DLQ: %v", err)
	}
}

// Close gracefully shuts down the snapshot queue
func (q *NATSSnapshotQueue) Close() error {
	q.ctxCancel()

	if q.nc != nil {
		q.nc.Close()
	}

	return nil
}

// GetConsumerInfo returns information about the consumer for monitoring
func (q *NATSSnapshotQueue) GetConsumerInfo() (*jetstream.ConsumerInfo, error) {
	q.consumerMu.Lock()
	defer q.consumerMu.Unlock()

	if q.consumer == nil {
		return nil, fmt.Errorf("consumer not initialized")
	}

	return q.consumer.Info(q.ctx)
}

// RepublishFromDLQ republishes a message from the DLQ back to the main stream
func (q *NATSSnapshotQueue) RepublishFromDLQ(dlqMessageID string) error {
	if !q.config.EnableDLQ {
		return fmt.Errorf("DLQ is not enabled")
	}

	stream, err := q.js.Stream(q.ctx, StreamNameDLQ)
	if err != nil {
		return fmt.Errorf("failed to get DLQ stream: %w", err)
	}

	consumerConfig := jetstream.ConsumerConfig{
		FilterSubject: SubjectDLQ,
		AckPolicy:     jetstream.AckExplicitPolicy,
	}

	consumer, err := stream.CreateConsumer(q.ctx, consumerConfig)
	if err != nil {
		return fmt.Errorf("failed to create DLQ consumer: %w", err)
	}

	var found bool
	msgBatch, err := consumer.Fetch(100) // Fetch up to 100 messages
	if err != nil {
		return fmt.Errorf("failed to fetch from DLQ: %w", err)
	}

	for msg := range msgBatch.Messages() {
		var dlqMsg map[string]interface{}
		if err := json.Unmarshal(msg.Data(), &dlqMsg); err != nil {
			msg.Ack()
			continue
		}

		originalData, ok := dlqMsg["original_data"].(string)
		if !ok {
			msg.Ack()
			continue
		}

		var snapshotMsg SnapshotMessage
		if err := json.Unmarshal([]byte(originalData), &snapshotMsg); err != nil {
			msg.Ack()
			continue
		}

		if snapshotMsg.MessageID == dlqMessageID {
			_, err := q.js.Publish(q.ctx, SubjectSnapshots, []byte(originalData))
			if err != nil {
				return fmt.Errorf("failed to republish snapshot: %w", err)
			}

			msg.Ack()
			found = true
			log.Printf("Successfully republished snapshot %s from DLQ", snapshotMsg.MessageID)
			break
		}

		msg.Ack()
	}

	if !found {
		return fmt.Errorf("message with ID %s not found in DLQ", dlqMessageID)
	}

	return nil
}

// ListDLQMessages returns a list of messages currently in the DLQ
func (q *NATSSnapshotQueue) ListDLQMessages(limit int) ([]map[string]interface{}, error) {
	if !q.config.EnableDLQ {
		return nil, fmt.Errorf("DLQ is not enabled")
	}

	stream, err := q.js.Stream(q.ctx, StreamNameDLQ)
	if err != nil {
		return nil, fmt.Errorf("failed to get DLQ stream: %w", err)
	}

	consumerConfig := jetstream.ConsumerConfig{
		FilterSubject: SubjectDLQ,
		AckPolicy:     jetstream.AckNonePolicy, // Don't require ack for listing
	}

	consumer, err := stream.CreateConsumer(q.ctx, consumerConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create DLQ consumer: %w", err)
	}

	msgBatch, err := consumer.Fetch(limit)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch from DLQ: %w", err)
	}

	var messages []map[string]interface{}
	for msg := range msgBatch.Messages() {
		var dlqMsg map[string]interface{}
		if err := json.Unmarshal(msg.Data(), &dlqMsg); err != nil {
			continue
		}
		messages = append(messages, dlqMsg)
	}

	return messages, nil
}

// UpdateQueueMetrics updates Prometheus metrics for queue status.
// Call periodically to monitor queue health.
func (q *NATSSnapshotQueue) UpdateQueueMetrics() error {
	info, err := q.GetConsumerInfo()
	if err != nil {
		return fmt.Errorf("failed to get consumer info: %w", err)
	}

	// Pending messages in stream
	queueLagMessages.Set(float64(info.NumPending))

	// Delivered but not yet acknowledged
	queueAckPendingMessages.Set(float64(info.NumAckPending))

	return nil
}
