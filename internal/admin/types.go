package admin

import "time"

// RetentionSettings controls how long stored data is kept before cleanup
type RetentionSettings struct {
	SnapshotRetentionDays int       `json:"snapshot_retention_days"`
	AnswerRetentionDays   int       `json:"answer_retention_days"`
	UpdatedAt             time.Time `json:"updated_at"`
	UpdatedBy             string    `json:"updated_by"`
}

// UpdateRetentionRequest carries partial retention updates
type UpdateRetentionRequest struct {
	SnapshotRetentionDays *int `json:"snapshot_retention_days,omitempty"`
	AnswerRetentionDays   *int `json:"answer_retention_days,omitempty"`
}

// SystemHealth represents overall system health
type SystemHealth struct {
	Status            string          `json:"status"`
	Timestamp         time.Time       `json:"timestamp"`
	Database          ComponentHealth `json:"database"`
	Queue             ComponentHealth `json:"queue"`
	QueueLag          int64           `json:"queue_lag"`
	AckPending        int64           `json:"ack_pending"`
	DBOpenConnections int             `json:"db_open_connections"`
	DBInUse           int             `json:"db_in_use"`
}

// ComponentHealth represents health of a single component
type ComponentHealth struct {
	Status    string    `json:"status"`
	Message   string    `json:"message,omitempty"`
	Latency   float64   `json:"latency_ms,omitempty"`
	LastCheck time.Time `json:"last_check"`
}
