package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"time"

	appconfig "github.com/machine-telemetry-qa-platform/config"
	"github.com/machine-telemetry-qa-platform/internal/database"
	"github.com/machine-telemetry-qa-platform/internal/metrics"
)

var (
	dryRun                = flag.Bool("dry-run", false, "Report what would be deleted without deleting")
	snapshotRetentionDays = flag.Int("snapshot-retention-days", 30, "Number of days to retain snapshots")
	answerRetentionDays   = flag.Int("answer-retention-days", 90, "Number of days to retain answered questions")
	healthCheck           = flag.Bool("health-check", false, "Perform database health check only")
)

func main() {
	flag.Parse()

	cfg := appconfig.Load()

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

	log.Printf("Connected to database %s@%s:%d/%s", cfg.Database.User, cfg.Database.Host, cfg.Database.Port, cfg.Database.Database)

	if *healthCheck {
		if err := runHealthCheck(conn); err != nil {
			log.Fatalf("Health check failed: %v", err)
		}
		return
	}

	if err := runCleanup(conn); err != nil {
		log.Fatalf("Cleanup failed: %v", err)
	}
}

func runCleanup(conn *database.Connection) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	snapshots := database.NewSnapshotRepository(conn)
	answers := database.NewAnswerRepository(conn)

	if err := cleanupSnapshots(ctx, snapshots); err != nil {
		return fmt.Errorf("failed to clean up snapshots: %w", err)
	}

	if err := cleanupAnswers(ctx, answers); err != nil {
		return fmt.Errorf("failed to clean up answers: %w", err)
	}

	log.Println("Cleanup completed successfully")
	return nil
}

func cleanupSnapshots(ctx context.Context, repo *database.SnapshotRepository) error {
	retention := time.Duration(*snapshotRetentionDays) * 24 * time.Hour
	cutoff := time.Now().Add(-retention)

	log.Printf("Cleaning up snapshots older than %s (retention: %d days)",
		cutoff.Format("2006-01-02 15:04:05"), *snapshotRetentionDays)

	count, err := repo.CountOlderThan(ctx, retention)
	if err != nil {
		return err
	}
	log.Printf("Found %d snapshot(s) past retention", count)

	if count == 0 {
		return nil
	}

	if *dryRun {
		log.Printf("DRY RUN: Would delete %d snapshot(s)", count)
		return nil
	}

	deleted, err := repo.DeleteOlderThan(ctx, retention)
	if err != nil {
		return err
	}
	metrics.ObserveSnapshotsDeleted(deleted)
	log.Printf("Deleted %d snapshot(s)", deleted)

	// Update table statistics
	if _, err := repo.Connection().ExecContext(ctx, "ANALYZE snapshots"); err != nil {
		log.Printf("Warning: Failed to analyze snapshots table: %v", err)
	}

	return nil
}

func cleanupAnswers(ctx context.Context, repo *database.AnswerRepository) error {
	retention := time.Duration(*answerRetentionDays) * 24 * time.Hour
	cutoff := time.Now().Add(-retention)

	log.Printf("Cleaning up answers older than %s (retention: %d days)",
		cutoff.Format("2006-01-02 15:04:05"), *answerRetentionDays)

	count, err := repo.CountOlderThan(ctx, retention)
	if err != nil {
		return err
	}
	log.Printf("Found %d answer(s) past retention", count)

	if count == 0 {
		return nil
	}

	if *dryRun {
		log.Printf("DRY RUN: Would delete %d answer(s)", count)
		return nil
	}

	deleted, err := repo.DeleteOlderThan(ctx, retention)
	if err != nil {
		return err
	}
	log.Printf("Deleted %d answer(s)", deleted)

	if _, err := repo.Connection().ExecContext(ctx, "ANALYZE answers"); err != nil {
		log.Printf("Warning: Failed to analyze answers table: %v", err)
	}

	return nil
}

func runHealthCheck(conn *database.Connection) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := conn.Ping(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}
	log.Println("Database connectivity OK")

	poolStats := conn.Stats()
	log.Printf("Connection pool: Open=%d InUse=%d Idle=%d MaxOpen=%d",
		poolStats.OpenConnections, poolStats.InUse, poolStats.Idle, poolStats.MaxOpenConnections)

	snapshots := database.NewSnapshotRepository(conn)
	stats, err := snapshots.Stats(ctx)
	if err != nil {
		return fmt.Errorf("failed to query store statistics: %w", err)
	}

	log.Printf("Snapshots: total=%d devices=%d with_system=%d with_web=%d",
		stats.TotalSnapshots, stats.DistinctDevices, stats.WithSystemData, stats.WithWebData)

	if stats.OldestSnapshot != nil {
		log.Printf("Oldest snapshot: %s (age: %v)",
			stats.OldestSnapshot.Format(time.RFC3339), time.Since(*stats.OldestSnapshot).Round(time.Hour))
	} else {
		log.Println("No snapshots in database")
	}
	if stats.NewestSnapshot != nil {
		log.Printf("Newest snapshot: %s", stats.NewestSnapshot.Format(time.RFC3339))
	}

	// Table and index sizes
	sizeQuery := `
		SELECT
			pg_size_pretty(pg_total_relation_size('snapshots')) as snapshots_size,
			pg_size_pretty(pg_total_relation_size('answers')) as answers_size
	`
	var snapshotsSize, answersSize string
	if err := conn.QueryRowContext(ctx, sizeQuery).Scan(&snapshotsSize, &answersSize); err != nil {
		log.Printf("Warning: Failed to get table sizes: %v", err)
	} else {
		log.Printf("Table sizes: snapshots=%s answers=%s", snapshotsSize, answersSize)
	}

	// Dead tuples suggest the autovacuum is falling behind
	vacuumQuery := `
		SELECT
			relname,
			n_dead_tup,
			n_live_tup
		FROM pg_stat_user_tables
		WHERE schemaname = 'public'
		AND n_dead_tup > 1000
		ORDER BY n_dead_tup DESC
		LIMIT 5
	`
	rows, err := conn.QueryContext(ctx, vacuumQuery)
	if err != nil {
		log.Printf("Warning: Failed to check vacuum status: %v", err)
	} else {
		defer rows.Close()
		needsVacuum := false
		for rows.Next() {
			var table string
			var deadTuples, liveTuples int64
			if err := rows.Scan(&table, &deadTuples, &liveTuples); err != nil {
				log.Printf("Error scanning vacuum row: %v", err)
				continue
			}
			if !needsVacuum {
				log.Println("Tables needing vacuum:")
				needsVacuum = true
			}
			log.Printf("  - %s: %d dead tuples (%d live)", table, deadTuples, liveTuples)
		}
		if err := rows.Err(); err != nil {
			log.Printf("Warning: Error iterating vacuum rows: %v", err)
		}
		if !needsVacuum {
			log.Println("All tables are well-maintained")
		}
	}

	log.Println("Database health check completed successfully")
	return nil
}
