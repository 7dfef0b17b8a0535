package metrics

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/machine-telemetry-qa-platform/internal/models"
)

// Broadcaster pushes real-time monitoring updates to subscribed clients
type Broadcaster interface {
	BroadcastSnapshot(snapshot *models.MonitoringSnapshot)
	BroadcastAnswer(answer *models.Answer)
	BroadcastCollectorStatus(hostname string, status string, lastSeen time.Time)
	BroadcastDashboardUpdate(summary map[string]interface{})
	Close()
}

// WebSocketBroadcaster broadcasts updates to WebSocket clients via HTTP
type WebSocketBroadcaster struct {
	endpoint   string
	httpClient *http.Client
	buffer     chan *BroadcastMessage
	ctx        context.Context
	cancel     context.CancelFunc
	wg         sync.WaitGroup
}

// BroadcastMessage represents a message to be broadcast
type BroadcastMessage struct {
	Channel string                 `json:"channel"`
	Data    map[string]interface{} `json:"data"`
}

// NewWebSocketBroadcaster creates a new WebSocket broadcaster
func NewWebSocketBroadcaster(wsEndpoint string) *WebSocketBroadcaster {
	ctx, cancel := context.WithCancel(context.Background())

	b := &WebSocketBroadcaster{
		endpoint: wsEndpoint,
		httpClient: &http.Client{
			Timeout: 5 * time.Second,
		},
		buffer: make(chan *BroadcastMessage, 1000),
		ctx:    ctx,
		cancel: cancel,
	}

	// Start worker goroutines
	for i := 0; i < 4; i++ {
		b.wg.Add(1)
		go b.worker()
	}

	return b
}

// worker processes broadcast messages from the buffer
func (b *WebSocketBroadcaster) worker() {
	defer b.wg.Done()

	for {
		select {
		case msg := <-b.buffer:
			if err := b.send(msg); err != nil {
				log.Printf("[Broadcaster] Failed to send message: %v", err)
			}
		case <-b.ctx.Done():
			return
		}
	}
}

// send sends a broadcast message to the WebSocket server
func (b *WebSocketBroadcaster) send(msg *BroadcastMessage) error {
	jsonData, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	req, err := http.NewRequestWithContext(b.ctx, "POST", b.endpoint+"/broadcast", bytes.NewBuffer(jsonData))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")

	resp, err := b.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	return nil
}

// BroadcastSnapshot broadcasts a freshly ingested snapshot to subscribers
func (b *WebSocketBroadcaster) BroadcastSnapshot(snapshot *models.MonitoringSnapshot) {
	deviceChannel := fmt.Sprintf("device:%s", snapshot.Hostname)

	data := map[string]interface{}{
		"hostname":     snapshot.Hostname,
		"username":     snapshot.Username,
		"collected_at": snapshot.CollectedAt.UTC().Format(time.RFC3339Nano),
		"has_system":   snapshot.SystemData != nil,
		"has_web":      snapshot.WebData != nil,
	}
	if vpn, ok := snapshot.VPN(); ok {
		data["vpn_status"] = vpn.Status
	}
	if cpu, ok := snapshot.CPUPercent(); ok {
		data["cpu_percent"] = cpu
	}

	b.enqueue(&BroadcastMessage{
		Channel: deviceChannel,
		Data:    data,
	})

	// Also broadcast to dashboard channel for overview updates
	b.enqueue(&BroadcastMessage{
		Channel: "dashboard",
		Data: map[string]interface{}{
			"type":   "snapshot",
			"update": data,
		},
	})
}

// BroadcastAnswer broadcasts a completed question/answer exchange
func (b *WebSocketBroadcaster) BroadcastAnswer(answer *models.Answer) {
	data := map[string]interface{}{
		"answer_id":    answer.ID,
		"query":        answer.Query,
		"intent":       string(answer.Intent.Category),
		"confidence":   answer.Intent.Confidence,
		"record_count": answer.RecordCount,
		"text":         answer.NaturalText,
		"timestamp":    answer.Timestamp.UTC().Format(time.RFC3339Nano),
	}

	b.enqueue(&BroadcastMessage{
		Channel: "answers",
		Data:    data,
	})

	b.enqueue(&BroadcastMessage{
		Channel: "dashboard",
		Data: map[string]interface{}{
			"type":   "answer",
			"answer": data,
		},
	})
}

// BroadcastCollectorStatus broadcasts collector liveness updates
func (b *WebSocketBroadcaster) BroadcastCollectorStatus(hostname string, status string, lastSeen time.Time) {
	data := map[string]interface{}{
		"hostname":  hostname,
		"status":    status,
		"last_seen": lastSeen.UTC().Format(time.RFC3339Nano),
	}

	b.enqueue(&BroadcastMessage{
		Channel: "collectors",
		Data:    data,
	})

	// Also update dashboard
	b.enqueue(&BroadcastMessage{
		Channel: "dashboard",
		Data: map[string]interface{}{
			"type":             "collector_status",
			"collector_status": data,
		},
	})
}

// BroadcastDashboardUpdate broadcasts a general dashboard update
func (b *WebSocketBroadcaster) BroadcastDashboardUpdate(summary map[string]interface{}) {
	b.enqueue(&BroadcastMessage{
		Channel: "dashboard",
		Data: map[string]interface{}{
			"type":    "summary",
			"summary": summary,
		},
	})
}

// enqueue adds a message to the broadcast buffer
func (b *WebSocketBroadcaster) enqueue(msg *BroadcastMessage) {
	select {
	case b.buffer <- msg:
	default:
		// Buffer full, drop message
		log.Printf("[Broadcaster] Buffer full, dropping message for channel: %s", msg.Channel)
	}
}

// Close stops the broadcaster
func (b *WebSocketBroadcaster) Close() {
	b.cancel()
	b.wg.Wait()
	close(b.buffer)
}

// NullBroadcaster is a no-op broadcaster for when real-time updates are disabled
type NullBroadcaster struct{}

func NewNullBroadcaster() *NullBroadcaster {
	return &NullBroadcaster{}
}

func (n *NullBroadcaster) BroadcastSnapshot(snapshot *models.MonitoringSnapshot) {}

func (n *NullBroadcaster) BroadcastAnswer(answer *models.Answer) {}

func (n *NullBroadcaster) BroadcastCollectorStatus(hostname, status string, lastSeen time.Time) {}

func (n *NullBroadcaster) BroadcastDashboardUpdate(summary map[string]interface{}) {}

func (n *NullBroadcaster) Close() {}
