package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/machine-telemetry-qa-platform/internal/models"
)

// Repository provides common database operations
type Repository struct {
	conn *Connection
}

// NewRepository creates a new repository instance
func NewRepository(conn *Connection) *Repository {
	return &Repository{
		conn: conn,
	}
}

// Connection returns the underlying database connection
func (r *Repository) Connection() *Connection {
	return r.conn
}

// WithTransaction executes a function within a database transaction
func (r *Repository) WithTransaction(ctx context.Context, fn func(*sql.Tx) error) error {
	return r.WithTransactionOptions(ctx, nil, fn)
}

// WithTransactionOptions executes a function within a database transaction with specific options
func (r *Repository) WithTransactionOptions(ctx context.Context, opts *sql.TxOptions, fn func(*sql.Tx) error) error {
	tx, err := r.conn.BeginTx(ctx, opts)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			tx.Rollback()
			panic(p) // Re-throw panic after rollback
		}
	}()

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("transaction failed: %v, rollback failed: %w", err, rbErr)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// RetryableOperation executes an operation with exponential backoff retry logic
func (r *Repository) RetryableOperation(ctx context.Context, maxRetries int, operation func() error) error {
	var lastErr error
	backoff := time.Millisecond * 100

	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			// Wait with exponential backoff
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
				backoff *= 2
				if backoff > time.Second*10 {
					backoff = time.Second * 10 // Cap at 10 seconds
				}
			}
		}

		lastErr = operation()
		if lastErr == nil {
			return nil // Success
		}

		// Only retry if the error is retryable
		if !IsRetryableError(lastErr) {
			return lastErr
		}
	}

	return fmt.Errorf("operation failed after %d retries: %w", maxRetries, lastErr)
}

// HealthCheck performs a basic health check on the database
func (r *Repository) HealthCheck(ctx context.Context) error {
	// Test basic connectivity
	if err := r.conn.Ping(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}

	// Test a simple query
	var result int
	err := r.conn.QueryRowContext(ctx, "SELECT 1").Scan(&result)
	if err != nil {
		return fmt.Errorf("database query test failed: %w", err)
	}

	if result != 1 {
		return fmt.Errorf("database query returned unexpected result: %d", result)
	}

	return nil
}

// GetConnectionStats returns database connection pool statistics
func (r *Repository) GetConnectionStats() sql.DBStats {
	return r.conn.Stats()
}

// SnapshotRepository provides operations for the snapshots table. The system
// and web sub-documents live in JSONB columns so collectors can evolve their
// payloads without schema churn, while existence filters stay indexable.
type SnapshotRepository struct {
	*Repository
}

// NewSnapshotRepository creates a new snapshot repository
func NewSnapshotRepository(conn *Connection) *SnapshotRepository {
	return &SnapshotRepository{
		Repository: NewRepository(conn),
	}
}

// Save persists one snapshot. The snapshot must pass Validate. A snapshot
// with the same device identity and collection timestamp is a queue
// redelivery and is silently skipped.
func (r *SnapshotRepository) Save(ctx context.Context, snapshot *models.MonitoringSnapshot) error {
	if err := snapshot.Validate(); err != nil {
		return fmt.Errorf("invalid snapshot: %w", err)
	}

	systemJSON, webJSON, err := sectionValues(snapshot)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO snapshots (hostname, username, collected_at, system_data, web_data)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (hostname, username, collected_at) DO NOTHING`

	_, err = r.conn.ExecContext(ctx, query,
		snapshot.Hostname, snapshot.Username, snapshot.CollectedAt, systemJSON, webJSON)
	if err != nil {
		return fmt.Errorf("failed to insert snapshot: %w", err)
	}

	return nil
}

// sectionValues encodes the snapshot's optional sections as bind parameters.
// A missing section must bind SQL NULL, so the values are typed interface{}:
// a nil []byte parameter is still non-NULL to the driver and Postgres rejects
// the resulting zero-length jsonb input.
func sectionValues(snapshot *models.MonitoringSnapshot) (systemJSON, webJSON interface{}, err error) {
	if snapshot.SystemData != nil {
		b, err := json.Marshal(snapshot.SystemData)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to encode system_data: %w", err)
		}
		systemJSON = b
	}
	if snapshot.WebData != nil {
		b, err := json.Marshal(snapshot.WebData)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to encode web_data: %w", err)
		}
		webJSON = b
	}
	return systemJSON, webJSON, nil
}

// Search executes a compiled query and returns matching snapshots. Results
// are ordered by collection timestamp per query.Descending and capped at
// query.Limit.
func (r *SnapshotRepository) Search(ctx context.Context, query models.CompiledQuery) ([]models.MonitoringSnapshot, error) {
	sqlQuery, args, err := buildSearchQuery(query)
	if err != nil {
		return nil, err
	}

	rows, err := r.conn.QueryContext(ctx, sqlQuery, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query snapshots: %w", err)
	}
	defer rows.Close()

	var snapshots []models.MonitoringSnapshot
	for rows.Next() {
		var (
			s          models.MonitoringSnapshot
			systemJSON []byte
			webJSON    []byte
		)
		if err := rows.Scan(&s.Hostname, &s.Username, &s.CollectedAt, &systemJSON, &webJSON); err != nil {
			return nil, fmt.Errorf("failed to scan snapshot row: %w", err)
		}
		if err := unmarshalSection(systemJSON, &s.SystemData); err != nil {
			return nil, fmt.Errorf("failed to decode system_data: %w", err)
		}
		if err := unmarshalSection(webJSON, &s.WebData); err != nil {
			return nil, fmt.Errorf("failed to decode web_data: %w", err)
		}
		snapshots = append(snapshots, s)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating snapshot rows: %w", err)
	}

	return snapshots, nil
}

// StoreStats summarizes the stored snapshot population.
type StoreStats struct {
	TotalSnapshots  int64      `json:"total_snapshots"`
	DistinctDevices int64      `json:"distinct_devices"`
	WithSystemData  int64      `json:"with_system_data"`
	WithWebData     int64      `json:"with_web_data"`
	OldestSnapshot  *time.Time `json:"oldest_snapshot,omitempty"`
	NewestSnapshot  *time.Time `json:"newest_snapshot,omitempty"`
}

// Stats reports store-wide counts and the covered time span.
func (r *SnapshotRepository) Stats(ctx context.Context) (*StoreStats, error) {
	query := `
		SELECT COUNT(*),
		       COUNT(DISTINCT (hostname, username)),
		       COUNT(system_data),
		       COUNT(web_data),
		       MIN(collected_at),
		       MAX(collected_at)
		FROM snapshots`

	stats := &StoreStats{}
	var oldest, newest sql.NullTime
	err := r.conn.QueryRowContext(ctx, query).Scan(
		&stats.TotalSnapshots, &stats.DistinctDevices,
		&stats.WithSystemData, &stats.WithWebData,
		&oldest, &newest)
	if err != nil {
		return nil, fmt.Errorf("failed to query store stats: %w", err)
	}

	if oldest.Valid {
		stats.OldestSnapshot = &oldest.Time
	}
	if newest.Valid {
		stats.NewestSnapshot = &newest.Time
	}

	return stats, nil
}

// DeleteOlderThan removes snapshots whose collection timestamp predates the
// retention cutoff and returns how many rows were deleted.
func (r *SnapshotRepository) DeleteOlderThan(ctx context.Context, olderThan time.Duration) (int64, error) {
	cutoff := time.Now().Add(-olderThan)
	query := "DELETE FROM snapshots WHERE collected_at < $1"

	result, err := r.conn.ExecContext(ctx, query, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to delete old snapshots: %w", err)
	}

	rowsDeleted, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get deleted rows count: %w", err)
	}

	return rowsDeleted, nil
}

// CountOlderThan reports how many snapshots predate the retention cutoff
// without deleting anything. Used by cleanup dry runs.
func (r *SnapshotRepository) CountOlderThan(ctx context.Context, olderThan time.Duration) (int64, error) {
	cutoff := time.Now().Add(-olderThan)

	var count int64
	err := r.conn.QueryRowContext(ctx, "SELECT COUNT(*) FROM snapshots WHERE collected_at < $1", cutoff).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count old snapshots: %w", err)
	}
	return count, nil
}

// AnswerRepository provides operations for the answers table, the audit log
// of every question the engine has answered.
type AnswerRepository struct {
	*Repository
}

// NewAnswerRepository creates a new answer repository
func NewAnswerRepository(conn *Connection) *AnswerRepository {
	return &AnswerRepository{
		Repository: NewRepository(conn),
	}
}

// Save records one answered question.
func (r *AnswerRepository) Save(ctx context.Context, answer *models.Answer) error {
	query := `
		INSERT INTO answers (
			answer_id, query, intent, confidence, window_start, window_end,
			record_count, structured_text, natural_text, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	_, err := r.conn.ExecContext(ctx, query,
		answer.ID, answer.Query, string(answer.Intent.Category), answer.Intent.Confidence,
		answer.TimeWindow.Start, answer.TimeWindow.End,
		answer.RecordCount, answer.StructuredText, answer.NaturalText, answer.Timestamp)
	if err != nil {
		return fmt.Errorf("failed to insert answer: %w", err)
	}

	return nil
}

// Recent returns the latest answered questions, newest first.
func (r *AnswerRepository) Recent(ctx context.Context, limit int) ([]models.Answer, error) {
	if limit <= 0 {
		limit = models.DefaultResultLimit
	}

	query := `
		SELECT answer_id, query, intent, confidence, window_start, window_end,
		       record_count, structured_text, natural_text, created_at
		FROM answers
		ORDER BY created_at DESC
		LIMIT $1`

	rows, err := r.conn.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query recent answers: %w", err)
	}
	defer rows.Close()

	var answers []models.Answer
	for rows.Next() {
		var (
			a        models.Answer
			category string
		)
		err := rows.Scan(
			&a.ID, &a.Query, &category, &a.Intent.Confidence,
			&a.TimeWindow.Start, &a.TimeWindow.End,
			&a.RecordCount, &a.StructuredText, &a.NaturalText, &a.Timestamp)
		if err != nil {
			return nil, fmt.Errorf("failed to scan answer row: %w", err)
		}
		a.Intent.Category = models.IntentCategory(category)
		answers = append(answers, a)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating answer rows: %w", err)
	}

	return answers, nil
}

// CountOlderThan reports how many answers predate the retention cutoff.
func (r *AnswerRepository) CountOlderThan(ctx context.Context, olderThan time.Duration) (int64, error) {
	cutoff := time.Now().Add(-olderThan)

	var count int64
	err := r.conn.QueryRowContext(ctx, "SELECT COUNT(*) FROM answers WHERE created_at < $1", cutoff).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count old answers: %w", err)
	}
	return count, nil
}

// DeleteOlderThan removes answers whose creation time predates the retention
// cutoff and returns how many rows were deleted.
func (r *AnswerRepository) DeleteOlderThan(ctx context.Context, olderThan time.Duration) (int64, error) {
	cutoff := time.Now().Add(-olderThan)

	result, err := r.conn.ExecContext(ctx, "DELETE FROM answers WHERE created_at < $1", cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to delete old answers: %w", err)
	}

	rowsDeleted, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get deleted rows count: %w", err)
	}

	return rowsDeleted, nil
}

// buildSearchQuery translates a compiled query into SQL and its bind
// arguments. Placeholders are numbered in append order: window bounds first,
// then one per required section, then scope equality, limit last.
func buildSearchQuery(query models.CompiledQuery) (string, []interface{}, error) {
	var sb strings.Builder
	sb.WriteString(`
		SELECT hostname, username, collected_at, system_data, web_data
		FROM snapshots
		WHERE collected_at >= $1 AND collected_at <= $2`)

	args := []interface{}{query.Window.Start, query.Window.End}

	for _, section := range query.RequireSections {
		predicate, err := sectionPredicate(section, len(args)+1)
		if err != nil {
			return "", nil, err
		}
		sb.WriteString(" AND ")
		sb.WriteString(predicate)
		args = append(args, sectionKey(section))
	}

	if query.Scope.Hostname != "" {
		args = append(args, query.Scope.Hostname)
		fmt.Fprintf(&sb, " AND hostname = $%d", len(args))
	}
	if query.Scope.Username != "" {
		args = append(args, query.Scope.Username)
		fmt.Fprintf(&sb, " AND username = $%d", len(args))
	}

	direction := "ASC"
	if query.Descending {
		direction = "DESC"
	}
	fmt.Fprintf(&sb, " ORDER BY collected_at %s", direction)

	limit := query.Limit
	if limit <= 0 {
		limit = models.DefaultResultLimit
	}
	args = append(args, limit)
	fmt.Fprintf(&sb, " LIMIT $%d", len(args))

	return sb.String(), args, nil
}

// sectionPredicate maps a dotted section path ("web_data.vpn_detection") to a
// JSONB existence predicate on the owning column. The column segment is
// validated against the known columns; the key segment is bound as a query
// parameter.
func sectionPredicate(path string, argIndex int) (string, error) {
	column, _, ok := splitSectionPath(path)
	if !ok {
		return "", fmt.Errorf("invalid section path %q", path)
	}
	switch column {
	case "system_data", "web_data":
		return fmt.Sprintf("%s ? $%d", column, argIndex), nil
	default:
		return "", fmt.Errorf("unknown snapshot column %q in section path %q", column, path)
	}
}

func sectionKey(path string) string {
	_, key, _ := splitSectionPath(path)
	return key
}

func splitSectionPath(path string) (column, key string, ok bool) {
	parts := strings.SplitN(path, ".", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", false
	}
	return parts[0], parts[1], true
}

func unmarshalSection(raw []byte, dest interface{}) error {
	if len(raw) == 0 {
		return nil
	}
	return json.Unmarshal(raw, dest)
}
